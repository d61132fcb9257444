package tracer

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hb-chen/mkbi/internal/analysis"
	"github.com/hb-chen/mkbi/internal/sandbox"
	"github.com/hb-chen/mkbi/internal/state"
)

var (
	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mkbi_pipeline_runs_total",
			Help: "Total number of pipeline runs by final outcome",
		},
		[]string{"skill", "outcome"},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mkbi_pipeline_stage_duration_seconds",
			Help:    "Duration of pipeline stages in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"stage"},
	)

	LLMCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mkbi_llm_calls_total",
			Help: "Total number of model calls by stage and status",
		},
		[]string{"stage", "status"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mkbi_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "code"},
	)

	SkillsLoaded = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mkbi_skills_loaded",
			Help: "Number of skills in the active registry",
		},
	)
)

// MetricsTracer implements ExecutionTracer by updating Prometheus metrics
type MetricsTracer struct{}

// NewMetricsTracer creates a new metrics tracer
func NewMetricsTracer() *MetricsTracer {
	return &MetricsTracer{}
}

func (m *MetricsTracer) TraceNodeStart(ctx context.Context, nodeName, runID string) error {
	return nil
}

func (m *MetricsTracer) TraceNodeEnd(ctx context.Context, nodeName, runID string, duration time.Duration) error {
	StageDuration.WithLabelValues(nodeName).Observe(duration.Seconds())
	return nil
}

func (m *MetricsTracer) TraceLLMRequest(ctx context.Context, runID, stage, prompt string) error {
	return nil
}

func (m *MetricsTracer) TraceLLMResponse(ctx context.Context, runID, stage, response string, duration time.Duration, err error) error {
	status := "ok"
	switch {
	case err != nil:
		status = "error"
	case response == "":
		status = "empty"
	}
	LLMCalls.WithLabelValues(stage, status).Inc()
	return nil
}

func (m *MetricsTracer) TraceAnalysis(ctx context.Context, runID string, report *analysis.Report) error {
	return nil
}

func (m *MetricsTracer) TraceExecution(ctx context.Context, runID string, outcome *sandbox.Outcome) error {
	return nil
}

func (m *MetricsTracer) TraceError(ctx context.Context, runID, nodeName string, err error) error {
	return nil
}

func (m *MetricsTracer) TraceRunEnd(ctx context.Context, s *state.RunState, duration time.Duration) error {
	PipelineRuns.WithLabelValues(s.Skill, Outcome(s)).Inc()
	return nil
}

func (m *MetricsTracer) Close() error {
	return nil
}
