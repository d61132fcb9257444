package skill

import (
	"fmt"
	"strings"
	"time"
)

// Message is one preset conversation turn.
type Message struct {
	Role    string `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// Skill represents a skill definition. A Skill is never mutated after the
// loader returns it, so it is safe to share across concurrent runs.
type Skill struct {
	// Name is the record's filename stem and the registry key.
	Name string

	// Executor identifies the command template used to run scripts.
	Executor string

	// FileExtension is the suffix of the generated temp script, with a leading dot.
	FileExtension string

	// StaticAnalysis names the linter run before execution; empty disables it.
	StaticAnalysis string

	// Timeout overrides the service execution timeout when positive.
	Timeout time.Duration

	// InterpreterHistory is prepended to every Interpreter call.
	InterpreterHistory []Message

	// FabricatorHistory is prepended to every Fabricator call.
	FabricatorHistory []Message

	// Path information
	SourcePath string
	LoadedAt   time.Time
}

// Info is the listing view of a skill.
type Info struct {
	Name     string  `json:"name"`
	Executor string  `json:"executor"`
	Analysis *string `json:"analysis"`
}

// Info returns the listing view of s.
func (s *Skill) Info() Info {
	info := Info{Name: s.Name, Executor: s.Executor}
	if s.StaticAnalysis != "" {
		analysis := s.StaticAnalysis
		info.Analysis = &analysis
	}
	return info
}

// ConfigurationError reports a skills source that cannot produce a registry.
type ConfigurationError struct {
	Dir    string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("skills configuration %s: %s: %v", e.Dir, e.Reason, e.Err)
	}
	return fmt.Sprintf("skills configuration %s: %s", e.Dir, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// UnknownSkillError is returned by Resolve for names absent from the registry.
type UnknownSkillError struct {
	Name      string
	Available []string
}

func (e *UnknownSkillError) Error() string {
	return fmt.Sprintf("skill not found: %s (available: %s)", e.Name, strings.Join(e.Available, ", "))
}
