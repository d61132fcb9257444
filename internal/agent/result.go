package agent

import (
	"time"

	"github.com/hb-chen/mkbi/internal/sandbox"
	"github.com/hb-chen/mkbi/internal/state"
)

// Execution is the reported form of a sandboxed process outcome.
type Execution struct {
	Stdout     string `json:"stdout"`
	Stderr     string `json:"stderr"`
	ExitCode   *int   `json:"exit_code"`
	TimedOut   bool   `json:"timed_out"`
	DurationMS int64  `json:"duration_ms"`
}

// Result is the full record of one pipeline run. Error is non-nil iff the
// run aborted; in that case Execution is nil or timed out.
type Result struct {
	RunID               string      `json:"run_id"`
	Skill               string      `json:"skill"`
	Stage               state.Stage `json:"stage"`
	InterpreterResponse string      `json:"interpreter_response"`
	FabricatorResponse  string      `json:"fabricator_response"`
	Script              string      `json:"script"`
	AnalysisPassed      bool        `json:"analysis_passed"`
	AnalysisOutput      string      `json:"analysis_output"`
	Execution           *Execution  `json:"execution"`
	Error               *string     `json:"error"`

	Elapsed time.Duration `json:"-"`
}

// Output is the output-only projection of a run.
type Output struct {
	Output  string        `json:"output"`
	Elapsed time.Duration `json:"-"`
}

// Aborted reports whether the run ended with an error.
func (r *Result) Aborted() bool {
	return r.Error != nil
}

// OutputOnly projects the run to its stdout, or to the error text if the
// run aborted. Partial output of a timed-out run is never substituted.
func (r *Result) OutputOnly() *Output {
	out := &Output{Elapsed: r.Elapsed}
	switch {
	case r.Error != nil:
		out.Output = *r.Error
	case r.Execution != nil:
		out.Output = r.Execution.Stdout
	}
	return out
}

func newResult(s *state.RunState, elapsed time.Duration) *Result {
	r := &Result{
		RunID:               s.RunID,
		Skill:               s.Skill,
		Stage:               s.Stage,
		InterpreterResponse: s.InterpreterResponse,
		FabricatorResponse:  s.FabricatorResponse,
		Script:              s.FabricatorResponse,
		AnalysisPassed:      s.AnalysisPassed,
		AnalysisOutput:      s.AnalysisOutput,
		Execution:           newExecution(s.Execution),
		Elapsed:             elapsed,
	}
	if s.Error != "" {
		msg := s.Error
		r.Error = &msg
	}
	return r
}

func newExecution(o *sandbox.Outcome) *Execution {
	if o == nil {
		return nil
	}
	return &Execution{
		Stdout:     o.Stdout,
		Stderr:     o.Stderr,
		ExitCode:   o.ExitCode,
		TimedOut:   o.TimedOut,
		DurationMS: o.DurationMS(),
	}
}
