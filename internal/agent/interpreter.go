package agent

import (
	"context"
	"time"

	"github.com/hb-chen/mkbi/internal/graph"
	"github.com/hb-chen/mkbi/internal/llm"
	"github.com/hb-chen/mkbi/internal/skill"
	"github.com/hb-chen/mkbi/internal/tracer"
)

// Generator issues one chat generation call.
type Generator interface {
	Generate(ctx context.Context, req llm.Request) (string, error)
}

// InterpreterAgent drafts a solution for a request using the skill's
// interpreter history.
type InterpreterAgent struct {
	llm      Generator
	sampling llm.Sampling
	tracer   tracer.ExecutionTracer
}

// NewInterpreterAgent creates a new interpreter agent
func NewInterpreterAgent(gen Generator, sampling llm.Sampling, tr tracer.ExecutionTracer) *InterpreterAgent {
	return &InterpreterAgent{llm: gen, sampling: sampling, tracer: orNoop(tr)}
}

// Interpret sends request as a single user message after the skill's history.
func (a *InterpreterAgent) Interpret(ctx context.Context, run *graph.Run, request string) (string, error) {
	return generate(ctx, a.llm, a.tracer, run.ID, llm.Request{
		Stage:    llm.StageInterpreter,
		History:  run.Skill.InterpreterHistory,
		Messages: []skill.Message{llm.UserMessage(request)},
		Sampling: a.sampling,
	})
}

// FabricatorAgent turns the Interpreter's draft into a runnable script.
type FabricatorAgent struct {
	llm      Generator
	sampling llm.Sampling
	tracer   tracer.ExecutionTracer
}

// NewFabricatorAgent creates a new fabricator agent
func NewFabricatorAgent(gen Generator, sampling llm.Sampling, tr tracer.ExecutionTracer) *FabricatorAgent {
	return &FabricatorAgent{llm: gen, sampling: sampling, tracer: orNoop(tr)}
}

// Fabricate sends "<request> [KCR] <draft>" as a single user message after
// the skill's fabricator history. An empty response is ErrEmptyScript.
func (a *FabricatorAgent) Fabricate(ctx context.Context, run *graph.Run, request, draft string) (string, error) {
	script, err := generate(ctx, a.llm, a.tracer, run.ID, llm.Request{
		Stage:    llm.StageFabricator,
		History:  run.Skill.FabricatorHistory,
		Messages: []skill.Message{llm.UserMessage(llm.FabricatorPrompt(request, draft))},
		Sampling: a.sampling,
	})
	if err != nil {
		return "", err
	}
	if script == "" {
		return "", ErrEmptyScript
	}
	return script, nil
}

func generate(ctx context.Context, gen Generator, tr tracer.ExecutionTracer, runID string, req llm.Request) (string, error) {
	prompt := ""
	if n := len(req.Messages); n > 0 {
		prompt = req.Messages[n-1].Content
	}
	_ = tr.TraceLLMRequest(ctx, runID, req.Stage, prompt)

	start := time.Now()
	response, err := gen.Generate(ctx, req)
	_ = tr.TraceLLMResponse(ctx, runID, req.Stage, response, time.Since(start), err)
	return response, err
}

func orNoop(tr tracer.ExecutionTracer) tracer.ExecutionTracer {
	if tr == nil {
		return tracer.NewMultiTracer()
	}
	return tr
}
