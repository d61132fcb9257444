package graph

import (
	"context"
	"fmt"

	"github.com/smallnest/langgraphgo/graph"

	"github.com/hb-chen/mkbi/internal/state"
	"github.com/hb-chen/mkbi/internal/tracer"
)

// PipelineGraphBuilder builds the interpret, fabricate, analyze, execute
// state machine using langgraphgo.
type PipelineGraphBuilder struct {
	interpreter Interpreter
	fabricator  Fabricator
	executor    Executor
	tracer      tracer.ExecutionTracer
}

// NewPipelineGraphBuilder creates a new graph builder
func NewPipelineGraphBuilder(interpreter Interpreter, fabricator Fabricator, executor Executor, tr tracer.ExecutionTracer) *PipelineGraphBuilder {
	if tr == nil {
		tr = tracer.NewMultiTracer()
	}
	return &PipelineGraphBuilder{
		interpreter: interpreter,
		fabricator:  fabricator,
		executor:    executor,
		tracer:      tr,
	}
}

// Build creates the StateGraph for one run. Every node after the entry
// point is reached only if the previous one did not abort; an abort routes
// straight to END.
func (b *PipelineGraphBuilder) Build(run *Run) (*graph.StateGraph[map[string]any], error) {
	if run == nil || run.Skill == nil {
		return nil, fmt.Errorf("run has no skill")
	}

	g := graph.NewStateGraph[map[string]any]()
	g.SetSchema(graph.NewMapSchema())

	g.AddNode(NodeInterpreting, "Interpreter: drafts a solution for the request", b.createInterpretingNode(run))
	g.AddNode(NodeFabricating, "Fabricator: turns the draft into a runnable script", b.createFabricatingNode(run))
	g.AddNode(NodeAnalyzing, "Static analysis gate over the script file", b.createAnalyzingNode(run))
	g.AddNode(NodeExecuting, "Sandboxed, timeout-bounded script execution", b.createExecutingNode(run))

	g.SetEntryPoint(NodeInterpreting)
	g.AddConditionalEdge(NodeInterpreting, unlessAborted(NodeFabricating))
	g.AddConditionalEdge(NodeFabricating, unlessAborted(NodeAnalyzing))
	g.AddConditionalEdge(NodeAnalyzing, unlessAborted(NodeExecuting))
	g.AddEdge(NodeExecuting, graph.END)

	return g, nil
}

// Invoke builds, compiles and runs the graph for run starting from s.
func (b *PipelineGraphBuilder) Invoke(ctx context.Context, run *Run, s *state.RunState) (*state.RunState, error) {
	g, err := b.Build(run)
	if err != nil {
		return s, err
	}

	runnable, err := g.Compile()
	if err != nil {
		return s, fmt.Errorf("failed to compile pipeline graph: %w", err)
	}

	resultMap, err := runnable.Invoke(ctx, s.ToMap())
	if err != nil {
		return s, fmt.Errorf("pipeline graph failed: %w", err)
	}
	return state.FromMap(resultMap), nil
}

// unlessAborted routes to next, or to END once the run has aborted.
func unlessAborted(next string) func(ctx context.Context, stateMap map[string]any) string {
	return func(ctx context.Context, stateMap map[string]any) string {
		if state.FromMap(stateMap).Aborted() {
			return graph.END
		}
		return next
	}
}
