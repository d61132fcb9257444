package tracer

import (
	"context"
	"fmt"
	"time"

	"github.com/hb-chen/mkbi/internal/analysis"
	"github.com/hb-chen/mkbi/internal/sandbox"
	"github.com/hb-chen/mkbi/internal/state"
	"github.com/hb-chen/mkbi/pkg/logger"
)

// Trace levels
const (
	LevelMinimal  = "minimal"
	LevelStandard = "standard"
	LevelDetailed = "detailed"
)

// ExecutionTracer interface for tracing pipeline events
type ExecutionTracer interface {
	// TraceNodeStart records when a node starts execution
	TraceNodeStart(ctx context.Context, nodeName, runID string) error

	// TraceNodeEnd records when a node completes execution
	TraceNodeEnd(ctx context.Context, nodeName, runID string, duration time.Duration) error

	// TraceLLMRequest records a model call about to be issued
	TraceLLMRequest(ctx context.Context, runID, stage, prompt string) error

	// TraceLLMResponse records the end of a model call; err is the call's failure, if any
	TraceLLMResponse(ctx context.Context, runID, stage, response string, duration time.Duration, err error) error

	// TraceAnalysis records a static analysis verdict
	TraceAnalysis(ctx context.Context, runID string, report *analysis.Report) error

	// TraceExecution records a sandboxed process outcome
	TraceExecution(ctx context.Context, runID string, outcome *sandbox.Outcome) error

	// TraceError records an error event
	TraceError(ctx context.Context, runID, nodeName string, err error) error

	// TraceRunEnd records the final state of a run
	TraceRunEnd(ctx context.Context, s *state.RunState, duration time.Duration) error

	// Close closes the tracer and flushes any pending data
	Close() error
}

// New builds the tracer used by the pipeline: structured logs at level
// plus Prometheus metrics.
func New(level string) ExecutionTracer {
	return NewMultiTracer(NewLogTracer(level), NewMetricsTracer())
}

// MultiTracer combines multiple tracers
type MultiTracer struct {
	tracers []ExecutionTracer
}

// NewMultiTracer creates a new multi-tracer that forwards events to all tracers
func NewMultiTracer(tracers ...ExecutionTracer) *MultiTracer {
	return &MultiTracer{tracers: tracers}
}

// each forwards one event to every tracer. Failures are logged and the
// remaining tracers still run; the last error is returned.
func (m *MultiTracer) each(event string, fn func(ExecutionTracer) error) error {
	var lastErr error
	for _, t := range m.tracers {
		if err := fn(t); err != nil {
			logger.Warnf("[MultiTracer] Failed to trace %s: tracer=%T, error=%v", event, t, err)
			lastErr = err
		}
	}
	return lastErr
}

func (m *MultiTracer) TraceNodeStart(ctx context.Context, nodeName, runID string) error {
	return m.each("node start", func(t ExecutionTracer) error {
		return t.TraceNodeStart(ctx, nodeName, runID)
	})
}

func (m *MultiTracer) TraceNodeEnd(ctx context.Context, nodeName, runID string, duration time.Duration) error {
	return m.each("node end", func(t ExecutionTracer) error {
		return t.TraceNodeEnd(ctx, nodeName, runID, duration)
	})
}

func (m *MultiTracer) TraceLLMRequest(ctx context.Context, runID, stage, prompt string) error {
	return m.each("LLM request", func(t ExecutionTracer) error {
		return t.TraceLLMRequest(ctx, runID, stage, prompt)
	})
}

func (m *MultiTracer) TraceLLMResponse(ctx context.Context, runID, stage, response string, duration time.Duration, err error) error {
	return m.each("LLM response", func(t ExecutionTracer) error {
		return t.TraceLLMResponse(ctx, runID, stage, response, duration, err)
	})
}

func (m *MultiTracer) TraceAnalysis(ctx context.Context, runID string, report *analysis.Report) error {
	return m.each("analysis", func(t ExecutionTracer) error {
		return t.TraceAnalysis(ctx, runID, report)
	})
}

func (m *MultiTracer) TraceExecution(ctx context.Context, runID string, outcome *sandbox.Outcome) error {
	return m.each("execution", func(t ExecutionTracer) error {
		return t.TraceExecution(ctx, runID, outcome)
	})
}

func (m *MultiTracer) TraceError(ctx context.Context, runID, nodeName string, err error) error {
	return m.each("error", func(t ExecutionTracer) error {
		return t.TraceError(ctx, runID, nodeName, err)
	})
}

func (m *MultiTracer) TraceRunEnd(ctx context.Context, s *state.RunState, duration time.Duration) error {
	return m.each("run end", func(t ExecutionTracer) error {
		return t.TraceRunEnd(ctx, s, duration)
	})
}

func (m *MultiTracer) Close() error {
	var errors []error
	for _, t := range m.tracers {
		if err := t.Close(); err != nil {
			logger.Warnf("[MultiTracer] Failed to close tracer: tracer=%T, error=%v", t, err)
			errors = append(errors, err)
		}
	}
	if len(errors) > 0 {
		return fmt.Errorf("failed to close %d tracer(s): %v", len(errors), errors)
	}
	return nil
}

// Outcome classifies a finished run for metrics and logs.
func Outcome(s *state.RunState) string {
	switch {
	case s.Execution != nil && s.Execution.TimedOut:
		return "timeout"
	case s.Aborted():
		return "aborted"
	default:
		return "completed"
	}
}
