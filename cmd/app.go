package cmd

import (
	"fmt"

	"github.com/hb-chen/mkbi/internal/agent"
	"github.com/hb-chen/mkbi/internal/analysis"
	"github.com/hb-chen/mkbi/internal/api"
	"github.com/hb-chen/mkbi/internal/config"
	"github.com/hb-chen/mkbi/internal/llm"
	"github.com/hb-chen/mkbi/internal/sandbox"
	"github.com/hb-chen/mkbi/internal/skill"
	"github.com/hb-chen/mkbi/internal/tracer"
)

// initPipeline wires the model client, agents and tracer.
func initPipeline(cfg *config.Config) (*agent.Pipeline, *llm.Client, error) {
	if cfg.LLM.Model == "" {
		return nil, nil, fmt.Errorf("llm.model is not configured")
	}

	llmClient, err := llm.NewClient(cfg.LLM.Provider, cfg.LLM.APIKey, cfg.LLM.URL, cfg.LLM.Model)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	tr := tracer.New(cfg.Log.Trace)
	interpreter := agent.NewInterpreterAgent(llmClient, sampling(cfg.Interpreter), tr)
	fabricator := agent.NewFabricatorAgent(llmClient, sampling(cfg.Fabricator), tr)
	executor := agent.NewExecutorAgent(analysis.NewGate(), sandbox.NewRunner(), cfg.Execution.Timeout)

	return agent.NewPipeline(interpreter, fabricator, executor, tr), llmClient, nil
}

// initService loads the skills and builds the service facade. The default
// skill must exist in the initial registry.
func initService(cfg *config.Config) (*api.Service, error) {
	store, err := skill.NewStore(cfg.Skills.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load skills: %w", err)
	}
	if !store.Current().Exists(cfg.Skills.Default) {
		return nil, fmt.Errorf("default skill %q not found in %s (available: %v)",
			cfg.Skills.Default, cfg.Skills.Dir, store.Current().Names())
	}

	pipeline, llmClient, err := initPipeline(cfg)
	if err != nil {
		return nil, err
	}

	return api.NewService(store, pipeline, cfg.Skills.Default, llmClient.Model()), nil
}

func sampling(s config.Sampling) llm.Sampling {
	return llm.Sampling{
		Temperature: s.Temperature,
		TopP:        s.TopP,
		MaxTokens:   s.MaxTokens,
	}
}
