package graph

import (
	"context"
	"time"

	"github.com/hb-chen/mkbi/internal/analysis"
	"github.com/hb-chen/mkbi/internal/sandbox"
	"github.com/hb-chen/mkbi/internal/state"
)

// Node names
const (
	NodeInterpreting = string(state.StageInterpreting)
	NodeFabricating  = string(state.StageFabricating)
	NodeAnalyzing    = string(state.StageAnalyzing)
	NodeExecuting    = string(state.StageExecuting)
)

// Interpreter drafts a solution for a request.
type Interpreter interface {
	Interpret(ctx context.Context, run *Run, request string) (string, error)
}

// Fabricator turns a draft into a script. A non-nil error aborts the run;
// the response is recorded either way.
type Fabricator interface {
	Fabricate(ctx context.Context, run *Run, request, draft string) (string, error)
}

// Executor gates and runs a script file. A non-nil error aborts the run;
// any report or outcome returned with it is still recorded.
type Executor interface {
	Analyze(ctx context.Context, run *Run, scriptPath string) (*analysis.Report, error)
	Execute(ctx context.Context, run *Run, scriptPath string) (*sandbox.Outcome, error)
}

// NodeFunc is a graph node over the map form of state.RunState.
type NodeFunc func(ctx context.Context, stateMap map[string]any) (map[string]any, error)

// createInterpretingNode calls the Interpreter with the request as the only
// new user message.
func (b *PipelineGraphBuilder) createInterpretingNode(run *Run) NodeFunc {
	return b.traced(run, NodeInterpreting, func(ctx context.Context, s *state.RunState) {
		response, err := b.interpreter.Interpret(ctx, run, s.Request)
		s.InterpreterResponse = response
		if err != nil {
			b.abort(ctx, run, s, NodeInterpreting, err)
		}
	})
}

// createFabricatingNode calls the Fabricator with request, separator and draft.
func (b *PipelineGraphBuilder) createFabricatingNode(run *Run) NodeFunc {
	return b.traced(run, NodeFabricating, func(ctx context.Context, s *state.RunState) {
		response, err := b.fabricator.Fabricate(ctx, run, s.Request, s.InterpreterResponse)
		s.FabricatorResponse = response
		if err != nil {
			b.abort(ctx, run, s, NodeFabricating, err)
		}
	})
}

// createAnalyzingNode writes the script to the run's temp file and gates it.
func (b *PipelineGraphBuilder) createAnalyzingNode(run *Run) NodeFunc {
	return b.traced(run, NodeAnalyzing, func(ctx context.Context, s *state.RunState) {
		path, err := run.WriteScript(s.FabricatorResponse)
		if err != nil {
			b.abort(ctx, run, s, NodeAnalyzing, err)
			return
		}
		s.ScriptPath = path

		report, err := b.executor.Analyze(ctx, run, path)
		if report != nil {
			s.AnalysisPassed = report.Passed
			s.AnalysisOutput = report.Output
			_ = b.tracer.TraceAnalysis(ctx, run.ID, report)
		}
		if err != nil {
			b.abort(ctx, run, s, NodeAnalyzing, err)
		}
	})
}

// createExecutingNode runs the script in the sandbox.
func (b *PipelineGraphBuilder) createExecutingNode(run *Run) NodeFunc {
	return b.traced(run, NodeExecuting, func(ctx context.Context, s *state.RunState) {
		outcome, err := b.executor.Execute(ctx, run, s.ScriptPath)
		if outcome != nil {
			s.Execution = outcome
			_ = b.tracer.TraceExecution(ctx, run.ID, outcome)
		}
		if err != nil {
			b.abort(ctx, run, s, NodeExecuting, err)
			return
		}
		s.Stage = state.StageCompleted
	})
}

// traced adapts a state mutation into a NodeFunc that enters the node's
// stage and reports start and end to the tracer.
func (b *PipelineGraphBuilder) traced(run *Run, name string, fn func(ctx context.Context, s *state.RunState)) NodeFunc {
	return func(ctx context.Context, stateMap map[string]any) (map[string]any, error) {
		s := state.FromMap(stateMap)
		s.Stage = state.Stage(name)

		_ = b.tracer.TraceNodeStart(ctx, name, run.ID)
		start := time.Now()
		fn(ctx, s)
		_ = b.tracer.TraceNodeEnd(ctx, name, run.ID, time.Since(start))

		return s.ToMap(), nil
	}
}

func (b *PipelineGraphBuilder) abort(ctx context.Context, run *Run, s *state.RunState, node string, err error) {
	_ = b.tracer.TraceError(ctx, run.ID, node, err)
	s.Abort(err)
}
