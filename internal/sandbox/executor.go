package sandbox

import (
	"fmt"
	"sort"
	"strings"
)

// Executor identifies an interpreter able to run a script file.
type Executor string

const (
	Bash    Executor = "bash"
	Sh      Executor = "sh"
	Zsh     Executor = "zsh"
	Python3 Executor = "python3"
	Python  Executor = "python"
	Node    Executor = "node"
	Ruby    Executor = "ruby"
	Perl    Executor = "perl"
)

// Template is the argv prefix of an executor; the script path is appended.
type Template []string

// DefaultTemplates maps every supported executor to its command.
var DefaultTemplates = map[Executor]Template{
	Bash:    {"bash"},
	Sh:      {"sh"},
	Zsh:     {"zsh"},
	Python3: {"python3"},
	Python:  {"python"},
	Node:    {"node"},
	Ruby:    {"ruby"},
	Perl:    {"perl"},
}

// Command returns the argv that runs scriptPath.
func (t Template) Command(scriptPath string) []string {
	argv := make([]string, 0, len(t)+1)
	argv = append(argv, t...)
	return append(argv, scriptPath)
}

// UnknownExecutorError reports an executor id with no command template.
type UnknownExecutorError struct {
	ID        string
	Supported []string
}

func (e *UnknownExecutorError) Error() string {
	return fmt.Sprintf("unsupported executor: %s", e.ID)
}

// Diagnostic is the stderr text of the synthetic outcome.
func (e *UnknownExecutorError) Diagnostic() string {
	return fmt.Sprintf("unsupported executor: %s (supported: %s)", e.ID, strings.Join(e.Supported, ", "))
}

func supported(templates map[Executor]Template) []string {
	ids := make([]string, 0, len(templates))
	for id := range templates {
		ids = append(ids, string(id))
	}
	sort.Strings(ids)
	return ids
}
