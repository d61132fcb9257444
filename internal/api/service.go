package api

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/hb-chen/mkbi/internal/agent"
	"github.com/hb-chen/mkbi/internal/skill"
	"github.com/hb-chen/mkbi/internal/tracer"
	"github.com/hb-chen/mkbi/pkg/logger"
)

// ErrEmptyRequest rejects a call without request text.
var ErrEmptyRequest = errors.New("request must not be empty")

// Pipeline runs requests against a skill.
type Pipeline interface {
	Run(ctx context.Context, s *skill.Skill, request string) *agent.Result
	Interpret(ctx context.Context, s *skill.Skill, request string) (string, error)
}

// Health is the liveness view of the service.
type Health struct {
	Status        string  `json:"status"`
	Model         string  `json:"model"`
	DefaultSkill  string  `json:"default_skill"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// Interpretation is the result of an interpret-only call.
type Interpretation struct {
	Response string        `json:"response"`
	Elapsed  time.Duration `json:"-"`
}

// Service is the process-wide facade over the skill store and the pipeline.
// It is constructed once and shared by every request handler.
type Service struct {
	store        *skill.Store
	pipeline     Pipeline
	defaultSkill string
	model        string
	startedAt    time.Time
}

// NewService creates the facade. defaultSkill is used when a call names no
// skill; model is only reported by Health.
func NewService(store *skill.Store, pipeline Pipeline, defaultSkill, model string) *Service {
	tracer.SkillsLoaded.Set(float64(store.Current().Count()))
	return &Service{
		store:        store,
		pipeline:     pipeline,
		defaultSkill: defaultSkill,
		model:        model,
		startedAt:    time.Now(),
	}
}

// DefaultSkill returns the skill used by the unscoped operations.
func (s *Service) DefaultSkill() string {
	return s.defaultSkill
}

// Health reports liveness and uptime.
func (s *Service) Health() Health {
	return Health{
		Status:        "ok",
		Model:         s.model,
		DefaultSkill:  s.defaultSkill,
		UptimeSeconds: Round(time.Since(s.startedAt).Seconds(), 2),
	}
}

// ListSkills lists the active registry ordered by name.
func (s *Service) ListSkills() []skill.Info {
	return s.store.Current().Infos()
}

// ReloadSkills rebuilds the registry from disk and swaps it in whole. On
// error the previous registry stays active.
func (s *Service) ReloadSkills() ([]skill.Info, error) {
	registry, err := s.store.Reload()
	if err != nil {
		logger.Errorf("Skill reload failed, keeping %d skills: %v", s.store.Current().Count(), err)
		return nil, err
	}
	tracer.SkillsLoaded.Set(float64(registry.Count()))
	logger.Infof("Skills reloaded: %v", registry.Names())
	return registry.Infos(), nil
}

// resolve pins the skill snapshot for one call. An empty name selects the
// default skill.
func (s *Service) resolve(name string) (*skill.Skill, error) {
	if name == "" {
		name = s.defaultSkill
	}
	return s.store.Current().Resolve(name)
}

// Execute runs the full pipeline. Pipeline aborts are reported in the
// result; the only errors are an unknown skill or an empty request.
func (s *Service) Execute(ctx context.Context, skillName, request string) (*agent.Result, error) {
	if request == "" {
		return nil, ErrEmptyRequest
	}
	sk, err := s.resolve(skillName)
	if err != nil {
		return nil, err
	}
	logger.Infof("execute [%s]: %s", sk.Name, clip(request))
	return s.pipeline.Run(ctx, sk, request), nil
}

// ExecuteOutput runs the full pipeline and projects it to its output.
func (s *Service) ExecuteOutput(ctx context.Context, skillName, request string) (*agent.Output, error) {
	result, err := s.Execute(ctx, skillName, request)
	if err != nil {
		return nil, err
	}
	return result.OutputOnly(), nil
}

// Interpret runs only the Interpreter stage.
func (s *Service) Interpret(ctx context.Context, skillName, request string) (*Interpretation, error) {
	if request == "" {
		return nil, ErrEmptyRequest
	}
	sk, err := s.resolve(skillName)
	if err != nil {
		return nil, err
	}
	logger.Infof("interpret [%s]: %s", sk.Name, clip(request))

	start := time.Now()
	response, err := s.pipeline.Interpret(ctx, sk, request)
	if err != nil {
		return nil, err
	}
	return &Interpretation{Response: response, Elapsed: time.Since(start)}, nil
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

func clip(s string) string {
	const limit = 120
	r := []rune(s)
	if len(r) > limit {
		return string(r[:limit])
	}
	return s
}
