package graph

import (
	"errors"
	"fmt"
	"os"

	"github.com/hb-chen/mkbi/internal/skill"
	"github.com/hb-chen/mkbi/pkg/logger"
)

// Run is the scope of one pipeline run. It pins the skill snapshot the run
// started with and owns every temporary file the run creates.
type Run struct {
	ID    string
	Skill *skill.Skill

	files []string
}

// NewRun creates the scope for a run of s.
func NewRun(id string, s *skill.Skill) *Run {
	return &Run{ID: id, Skill: s}
}

// WriteScript stores script in a fresh temporary file named with the
// skill's extension and returns its path. The file is removed by Cleanup.
func (r *Run) WriteScript(script string) (string, error) {
	f, err := os.CreateTemp("", "mkbi-*"+r.Skill.FileExtension)
	if err != nil {
		return "", fmt.Errorf("creating script file: %w", err)
	}
	r.files = append(r.files, f.Name())

	if _, err := f.WriteString(script); err != nil {
		f.Close()
		return "", fmt.Errorf("writing script file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("writing script file: %w", err)
	}
	return f.Name(), nil
}

// Cleanup removes the run's temporary files. Files that are already gone
// are not an error.
func (r *Run) Cleanup() {
	for _, path := range r.files {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warnf("Failed to remove %s: %v", path, err)
		}
	}
	r.files = nil
}
