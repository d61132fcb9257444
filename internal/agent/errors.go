package agent

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrEmptyScript aborts a run whose Fabricator response is empty.
var ErrEmptyScript = errors.New("Fabricator returned an empty script.")

// AnalysisError aborts a run whose script failed static analysis.
type AnalysisError struct {
	Tool   string
	Output string
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("%s reported errors — execution aborted.", e.Tool)
}

// TimeoutError is set on a run whose script was killed at its deadline.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("Execution timed out after %ss.", strconv.FormatFloat(e.Timeout.Seconds(), 'f', -1, 64))
}
