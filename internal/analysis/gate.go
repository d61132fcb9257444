// Package analysis runs an external linter over a generated script before
// it is allowed to execute.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/hb-chen/mkbi/pkg/logger"
)

// Tool identifies a static analysis command.
type Tool string

const (
	Shellcheck Tool = "shellcheck"
	Pyflakes   Tool = "pyflakes"
	Ruff       Tool = "ruff"
	Flake8     Tool = "flake8"
	Eslint     Tool = "eslint"
	PerlCheck  Tool = "perl"
)

// Command is the argv prefix of a tool; the script path is appended.
type Command []string

// DefaultCommands maps every supported tool to its invocation.
var DefaultCommands = map[Tool]Command{
	Shellcheck: {"shellcheck"},
	Pyflakes:   {"pyflakes"},
	Ruff:       {"ruff", "check"},
	Flake8:     {"flake8"},
	Eslint:     {"eslint"},
	PerlCheck:  {"perl", "-c"},
}

const defaultTimeout = time.Minute

// Report is the verdict of one analysis pass.
type Report struct {
	Tool   string
	Passed bool
	// Output is the tool's combined output, or a warning when the check
	// was skipped.
	Output  string
	Skipped bool
}

// Gate checks scripts with the tool a skill names.
type Gate struct {
	commands map[Tool]Command
	lookPath func(string) (string, error)
	timeout  time.Duration
}

// Option configures a Gate.
type Option func(*Gate)

// WithCommands replaces the tool table.
func WithCommands(commands map[Tool]Command) Option {
	return func(g *Gate) {
		g.commands = commands
	}
}

// WithLookPath overrides how tool binaries are located.
func WithLookPath(lookPath func(string) (string, error)) Option {
	return func(g *Gate) {
		g.lookPath = lookPath
	}
}

// WithTimeout bounds a single tool invocation.
func WithTimeout(d time.Duration) Option {
	return func(g *Gate) {
		g.timeout = d
	}
}

// NewGate creates a gate using DefaultCommands.
func NewGate(opts ...Option) *Gate {
	g := &Gate{
		commands: DefaultCommands,
		lookPath: exec.LookPath,
		timeout:  defaultTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check runs tool against scriptPath. An empty tool passes with no output.
// An unknown tool or a tool missing from PATH passes with a warning; only
// a tool that runs and exits nonzero fails the check.
func (g *Gate) Check(ctx context.Context, tool, scriptPath string) *Report {
	if tool == "" {
		return &Report{Passed: true}
	}

	command, ok := g.commands[Tool(tool)]
	if !ok || len(command) == 0 {
		msg := fmt.Sprintf("unknown static analysis tool: %s — skipping", tool)
		logger.Warnf("%s", msg)
		return &Report{Tool: tool, Passed: true, Output: msg, Skipped: true}
	}

	binary, err := g.lookPath(command[0])
	if err != nil {
		msg := fmt.Sprintf("%s not found on PATH — skipping static analysis", command[0])
		logger.Warnf("%s", msg)
		return &Report{Tool: tool, Passed: true, Output: msg, Skipped: true}
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	args := append(append([]string{}, command[1:]...), scriptPath)
	out, err := exec.CommandContext(ctx, binary, args...).CombinedOutput()
	report := &Report{
		Tool:   tool,
		Passed: err == nil,
		Output: strings.TrimSpace(string(out)),
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case ctx.Err() != nil:
		report.Output = strings.TrimSpace(report.Output + fmt.Sprintf("\n%s timed out after %s", tool, g.timeout))
	case !errors.As(err, &exitErr):
		report.Output = strings.TrimSpace(report.Output + "\n" + err.Error())
	}

	logger.Debugf("Static analysis %s on %s: passed=%t", tool, scriptPath, report.Passed)
	return report
}
