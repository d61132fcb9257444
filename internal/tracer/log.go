package tracer

import (
	"context"
	"time"

	"github.com/hb-chen/mkbi/internal/analysis"
	"github.com/hb-chen/mkbi/internal/sandbox"
	"github.com/hb-chen/mkbi/internal/state"
	"github.com/hb-chen/mkbi/pkg/logger"
)

const truncateAt = 200

// LogTracer implements ExecutionTracer using structured logging
type LogTracer struct {
	level string // minimal, standard, detailed
}

// NewLogTracer creates a new log tracer
func NewLogTracer(level string) *LogTracer {
	switch level {
	case LevelMinimal, LevelStandard, LevelDetailed:
	default:
		level = LevelStandard
	}
	return &LogTracer{level: level}
}

func (l *LogTracer) TraceNodeStart(ctx context.Context, nodeName, runID string) error {
	if l.level == LevelMinimal {
		return nil
	}
	logger.Infof("[Tracer] Node started: run=%s, node=%s", runID, nodeName)
	return nil
}

func (l *LogTracer) TraceNodeEnd(ctx context.Context, nodeName, runID string, duration time.Duration) error {
	if l.level == LevelMinimal {
		return nil
	}
	logger.Infof("[Tracer] Node completed: run=%s, node=%s, duration=%v", runID, nodeName, duration)
	return nil
}

func (l *LogTracer) TraceLLMRequest(ctx context.Context, runID, stage, prompt string) error {
	if l.level != LevelDetailed {
		return nil
	}
	logger.Debugf("[Tracer] LLM request: run=%s, stage=%s, prompt=%s", runID, stage, truncate(prompt))
	return nil
}

func (l *LogTracer) TraceLLMResponse(ctx context.Context, runID, stage, response string, duration time.Duration, err error) error {
	if err != nil {
		logger.Errorf("[Tracer] LLM call failed: run=%s, stage=%s, duration=%v, error=%v", runID, stage, duration, err)
		return nil
	}
	if l.level != LevelDetailed {
		return nil
	}
	logger.Debugf("[Tracer] LLM response: run=%s, stage=%s, duration=%v, response=%s", runID, stage, duration, truncate(response))
	return nil
}

func (l *LogTracer) TraceAnalysis(ctx context.Context, runID string, report *analysis.Report) error {
	if l.level == LevelMinimal || report.Tool == "" {
		return nil
	}
	logger.Infof("[Tracer] Static analysis: run=%s, tool=%s, passed=%t, skipped=%t", runID, report.Tool, report.Passed, report.Skipped)
	if l.level == LevelDetailed && report.Output != "" {
		logger.Debugf("[Tracer] Static analysis output: run=%s, output=%s", runID, truncate(report.Output))
	}
	return nil
}

func (l *LogTracer) TraceExecution(ctx context.Context, runID string, outcome *sandbox.Outcome) error {
	if l.level == LevelMinimal {
		return nil
	}
	if outcome.ExitCode != nil {
		logger.Infof("[Tracer] Script finished: run=%s, exit_code=%d, duration=%v", runID, *outcome.ExitCode, outcome.Duration)
	} else {
		logger.Infof("[Tracer] Script timed out: run=%s, duration=%v", runID, outcome.Duration)
	}
	if l.level == LevelDetailed {
		logger.Debugf("[Tracer] Script output: run=%s, stdout=%s, stderr=%s", runID, truncate(outcome.Stdout), truncate(outcome.Stderr))
	}
	return nil
}

func (l *LogTracer) TraceError(ctx context.Context, runID, nodeName string, err error) error {
	// Always log errors regardless of level
	logger.Errorf("[Tracer] Error occurred: run=%s, node=%s, error=%v", runID, nodeName, err)
	return nil
}

func (l *LogTracer) TraceRunEnd(ctx context.Context, s *state.RunState, duration time.Duration) error {
	logger.Infof("[Tracer] Run finished: run=%s, skill=%s, outcome=%s, duration=%v", s.RunID, s.Skill, Outcome(s), duration)
	return nil
}

func (l *LogTracer) Close() error {
	return nil
}

func truncate(s string) string {
	if len(s) > truncateAt {
		return s[:truncateAt] + "..."
	}
	return s
}
