package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hb-chen/mkbi/internal/analysis"
	"github.com/hb-chen/mkbi/internal/graph"
	"github.com/hb-chen/mkbi/internal/sandbox"
)

// ExecutorAgent gates scripts with static analysis and runs them in the
// sandbox. It implements the graph.Executor interface.
type ExecutorAgent struct {
	gate    *analysis.Gate
	runner  *sandbox.Runner
	timeout time.Duration
}

// NewExecutorAgent creates a new executor agent. timeout applies to skills
// that do not set their own.
func NewExecutorAgent(gate *analysis.Gate, runner *sandbox.Runner, timeout time.Duration) *ExecutorAgent {
	return &ExecutorAgent{
		gate:    gate,
		runner:  runner,
		timeout: timeout,
	}
}

// Timeout returns the execution timeout for a run of the given skill.
func (a *ExecutorAgent) Timeout(run *graph.Run) time.Duration {
	if run.Skill.Timeout > 0 {
		return run.Skill.Timeout
	}
	return a.timeout
}

// Analyze runs the skill's analysis tool on the script. A failing verdict
// is returned together with an *AnalysisError.
func (a *ExecutorAgent) Analyze(ctx context.Context, run *graph.Run, scriptPath string) (*analysis.Report, error) {
	report := a.gate.Check(context.WithoutCancel(ctx), run.Skill.StaticAnalysis, scriptPath)
	if !report.Passed {
		return report, &AnalysisError{Tool: report.Tool, Output: report.Output}
	}
	return report, nil
}

// Execute runs the script. The only cancellation is the timeout: the
// caller's context being done does not stop the process.
//
// An executor that never started yields no outcome and an error; a timeout
// yields the partial outcome and a *TimeoutError.
func (a *ExecutorAgent) Execute(ctx context.Context, run *graph.Run, scriptPath string) (*sandbox.Outcome, error) {
	timeout := a.Timeout(run)
	outcome := a.runner.Run(context.WithoutCancel(ctx), run.Skill.Executor, scriptPath, timeout)

	if !outcome.Started() {
		var unknown *sandbox.UnknownExecutorError
		if errors.As(outcome.Err, &unknown) {
			return nil, unknown
		}
		return nil, fmt.Errorf("failed to start executor %s: %w", run.Skill.Executor, outcome.Err)
	}
	if outcome.TimedOut {
		return outcome, &TimeoutError{Timeout: timeout}
	}
	return outcome, nil
}
