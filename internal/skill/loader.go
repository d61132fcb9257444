package skill

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hb-chen/mkbi/pkg/logger"
)

// Loader loads skills from a directory
type Loader struct {
	skillsDir string
}

// NewLoader creates a new skill loader
func NewLoader(skillsDir string) *Loader {
	return &Loader{
		skillsDir: skillsDir,
	}
}

// Dir returns the directory the loader scans.
func (l *Loader) Dir() string {
	return l.skillsDir
}

// Load scans the skills directory and builds a registry from every record
// in it. Loading is all-or-nothing: a missing directory, an unreadable or
// malformed record, a duplicate name, or an empty result is a
// *ConfigurationError and no registry is returned.
func (l *Loader) Load() (*Registry, error) {
	entries, err := os.ReadDir(l.skillsDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &ConfigurationError{Dir: l.skillsDir, Reason: "directory does not exist"}
		}
		return nil, &ConfigurationError{Dir: l.skillsDir, Reason: "cannot read directory", Err: err}
	}

	skills := make(map[string]*Skill)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if !recordExtensions[strings.ToLower(filepath.Ext(name))] {
			continue
		}

		s, err := ParseFile(filepath.Join(l.skillsDir, name))
		if err != nil {
			return nil, &ConfigurationError{Dir: l.skillsDir, Reason: "invalid skill record", Err: err}
		}
		if prev, dup := skills[s.Name]; dup {
			return nil, &ConfigurationError{
				Dir:    l.skillsDir,
				Reason: fmt.Sprintf("duplicate skill %q in %s and %s", s.Name, filepath.Base(prev.SourcePath), name),
			}
		}
		skills[s.Name] = s
		logger.Debugf("Loaded skill %s (executor=%s, analysis=%q)", s.Name, s.Executor, s.StaticAnalysis)
	}

	if len(skills) == 0 {
		return nil, &ConfigurationError{Dir: l.skillsDir, Reason: "no skill records found"}
	}

	return newRegistry(skills), nil
}
