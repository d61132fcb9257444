package agent

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/hb-chen/mkbi/internal/graph"
	"github.com/hb-chen/mkbi/internal/skill"
	"github.com/hb-chen/mkbi/internal/state"
	"github.com/hb-chen/mkbi/internal/tracer"
	"github.com/hb-chen/mkbi/pkg/logger"
)

type runIDKey struct{}

// WithRunID attaches the id to use for the next run started with ctx.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFromContext returns the id set by WithRunID, or a new one.
func RunIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(runIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.NewString()
}

// Pipeline represents the agent execution pipeline
type Pipeline struct {
	builder     *graph.PipelineGraphBuilder
	interpreter *InterpreterAgent
	tracer      tracer.ExecutionTracer
}

// NewPipeline creates a new pipeline over the given agents
func NewPipeline(interpreter *InterpreterAgent, fabricator *FabricatorAgent, executor *ExecutorAgent, tr tracer.ExecutionTracer) *Pipeline {
	tr = orNoop(tr)
	return &Pipeline{
		builder:     graph.NewPipelineGraphBuilder(interpreter, fabricator, executor, tr),
		interpreter: interpreter,
		tracer:      tr,
	}
}

// Run drives one request through interpret, fabricate, analyze and execute
// using the given skill snapshot. It always returns a well-formed result;
// every abort is reported in Result.Error. The run's temporary script is
// removed before Run returns.
func (p *Pipeline) Run(ctx context.Context, s *skill.Skill, request string) *Result {
	start := time.Now()
	runID := RunIDFromContext(ctx)

	run := graph.NewRun(runID, s)
	defer run.Cleanup()

	logger.Infof("Run %s started: skill=%s", runID, s.Name)
	final, err := p.builder.Invoke(ctx, run, state.New(runID, s.Name, request))
	if err != nil {
		_ = p.tracer.TraceError(ctx, runID, "pipeline", err)
		final.Abort(err)
	}

	elapsed := time.Since(start)
	_ = p.tracer.TraceRunEnd(ctx, final, elapsed)
	return newResult(final, elapsed)
}

// Interpret runs only the Interpreter stage, for dry-run inspection.
func (p *Pipeline) Interpret(ctx context.Context, s *skill.Skill, request string) (string, error) {
	run := graph.NewRun(RunIDFromContext(ctx), s)
	return p.interpreter.Interpret(ctx, run, request)
}
