package agent

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hb-chen/mkbi/internal/analysis"
	"github.com/hb-chen/mkbi/internal/llm"
	"github.com/hb-chen/mkbi/internal/sandbox"
	"github.com/hb-chen/mkbi/internal/skill"
	"github.com/hb-chen/mkbi/internal/state"
)

// scriptedLLM answers each stage with a fixed response and records requests.
type scriptedLLM struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]error
	requests  []llm.Request
}

func (s *scriptedLLM) Generate(ctx context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if err := s.errs[req.Stage]; err != nil {
		return "", &llm.GatewayError{Stage: req.Stage, Err: err}
	}
	return s.responses[req.Stage], nil
}

var (
	interpSampling = llm.Sampling{Temperature: 0.7, TopP: 1}
	fabSampling    = llm.Sampling{Temperature: 0.2, TopP: 0.9}
)

func newPipeline(gen Generator, gate *analysis.Gate) *Pipeline {
	if gate == nil {
		gate = analysis.NewGate()
	}
	return NewPipeline(
		NewInterpreterAgent(gen, interpSampling, nil),
		NewFabricatorAgent(gen, fabSampling, nil),
		NewExecutorAgent(gate, sandbox.NewRunner(), 5*time.Second),
		nil,
	)
}

func echoSkill() *skill.Skill {
	return &skill.Skill{
		Name:               "echo",
		Executor:           "bash",
		FileExtension:      ".sh",
		InterpreterHistory: []skill.Message{{Role: "system", Content: "interpret"}},
		FabricatorHistory:  []skill.Message{{Role: "system", Content: "fabricate"}},
	}
}

func TestRunEchoRoundTrip(t *testing.T) {
	gen := &scriptedLLM{responses: map[string]string{
		llm.StageInterpreter: "use echo",
		llm.StageFabricator:  "echo hello",
	}}

	res := newPipeline(gen, nil).Run(context.Background(), echoSkill(), "anything")

	require.Nil(t, res.Error)
	assert.Equal(t, state.StageCompleted, res.Stage)
	require.NotNil(t, res.Execution)
	assert.Equal(t, "hello\n", res.Execution.Stdout)
	require.NotNil(t, res.Execution.ExitCode)
	assert.Equal(t, 0, *res.Execution.ExitCode)
	assert.False(t, res.Execution.TimedOut)
	assert.True(t, res.AnalysisPassed)
	assert.Empty(t, res.AnalysisOutput)
	assert.Equal(t, "echo hello", res.Script)
	assert.Equal(t, "hello\n", res.OutputOnly().Output)
}

func TestRunFabricatorMessage(t *testing.T) {
	gen := &scriptedLLM{responses: map[string]string{
		llm.StageInterpreter: "draft text",
		llm.StageFabricator:  "true",
	}}
	s := echoSkill()

	newPipeline(gen, nil).Run(context.Background(), s, "open firefox")

	require.Len(t, gen.requests, 2)
	interp, fab := gen.requests[0], gen.requests[1]

	assert.Equal(t, s.InterpreterHistory, interp.History)
	assert.Equal(t, []skill.Message{{Role: "user", Content: "open firefox"}}, interp.Messages)
	assert.Equal(t, interpSampling, interp.Sampling)

	assert.Equal(t, s.FabricatorHistory, fab.History)
	assert.Equal(t, []skill.Message{{Role: "user", Content: "open firefox [KCR] draft text"}}, fab.Messages)
	assert.Equal(t, fabSampling, fab.Sampling)
}

func TestRunEmptyScriptAborts(t *testing.T) {
	gen := &scriptedLLM{responses: map[string]string{llm.StageInterpreter: "draft"}}

	res := newPipeline(gen, nil).Run(context.Background(), echoSkill(), "x")

	require.NotNil(t, res.Error)
	assert.Equal(t, "Fabricator returned an empty script.", *res.Error)
	assert.Nil(t, res.Execution)
	assert.False(t, res.AnalysisPassed)
	assert.Equal(t, state.StageAborted, res.Stage)
	assert.Equal(t, *res.Error, res.OutputOnly().Output)
}

func TestRunFailingAnalysisAbortsAndRemovesScript(t *testing.T) {
	gen := &scriptedLLM{responses: map[string]string{
		llm.StageInterpreter: "draft",
		llm.StageFabricator:  "echo $UNQUOTED",
	}}
	gate := analysis.NewGate(analysis.WithCommands(map[analysis.Tool]analysis.Command{
		"fakecheck": {"sh", "-c", `echo "$0:1:6: SC2086"; exit 1`},
	}))
	s := echoSkill()
	s.StaticAnalysis = "fakecheck"

	res := newPipeline(gen, gate).Run(context.Background(), s, "x")

	require.NotNil(t, res.Error)
	assert.Equal(t, "fakecheck reported errors — execution aborted.", *res.Error)
	assert.Nil(t, res.Execution)
	assert.False(t, res.AnalysisPassed)
	assert.Contains(t, res.AnalysisOutput, "SC2086")

	path := regexp.MustCompile(`^(.*\.sh):1:6`).FindStringSubmatch(res.AnalysisOutput)
	require.Len(t, path, 2)
	assert.NoFileExists(t, path[1])
}

func TestRunMissingAnalysisToolIsAdvisory(t *testing.T) {
	gen := &scriptedLLM{responses: map[string]string{
		llm.StageInterpreter: "draft",
		llm.StageFabricator:  "echo ok",
	}}
	gate := analysis.NewGate(analysis.WithLookPath(func(string) (string, error) {
		return "", errors.New("not found")
	}))
	s := echoSkill()
	s.StaticAnalysis = "shellcheck"

	res := newPipeline(gen, gate).Run(context.Background(), s, "x")

	require.Nil(t, res.Error)
	assert.True(t, res.AnalysisPassed)
	assert.Equal(t, "shellcheck not found on PATH — skipping static analysis", res.AnalysisOutput)
	assert.Equal(t, "ok\n", res.Execution.Stdout)
}

func TestRunTimeoutIsSoftFailure(t *testing.T) {
	gen := &scriptedLLM{responses: map[string]string{
		llm.StageInterpreter: "draft",
		llm.StageFabricator:  "echo partial\nsleep 30\n",
	}}
	s := echoSkill()
	s.Timeout = 300 * time.Millisecond

	res := newPipeline(gen, nil).Run(context.Background(), s, "x")

	require.NotNil(t, res.Error)
	assert.Equal(t, "Execution timed out after 0.3s.", *res.Error)
	require.NotNil(t, res.Execution)
	assert.True(t, res.Execution.TimedOut)
	assert.Nil(t, res.Execution.ExitCode)
	assert.Equal(t, "partial\n", res.Execution.Stdout)
	assert.Equal(t, *res.Error, res.OutputOnly().Output, "partial output is not substituted")
}

func TestRunGatewayErrorAborts(t *testing.T) {
	gen := &scriptedLLM{errs: map[string]error{llm.StageInterpreter: errors.New("connection refused")}}

	res := newPipeline(gen, nil).Run(context.Background(), echoSkill(), "x")

	require.NotNil(t, res.Error)
	assert.Equal(t, "interpreter call failed: connection refused", *res.Error)
	assert.Len(t, gen.requests, 1)
	assert.Nil(t, res.Execution)
}

func TestRunUnsupportedExecutor(t *testing.T) {
	gen := &scriptedLLM{responses: map[string]string{
		llm.StageInterpreter: "draft",
		llm.StageFabricator:  "DISPLAY 'HI'.",
	}}
	s := echoSkill()
	s.Executor = "cobol"

	res := newPipeline(gen, nil).Run(context.Background(), s, "x")

	require.NotNil(t, res.Error)
	assert.Equal(t, "unsupported executor: cobol", *res.Error)
	assert.Nil(t, res.Execution)
}

func TestRunNonzeroExitCompletes(t *testing.T) {
	gen := &scriptedLLM{responses: map[string]string{
		llm.StageInterpreter: "draft",
		llm.StageFabricator:  "echo bad >&2; exit 4",
	}}

	res := newPipeline(gen, nil).Run(context.Background(), echoSkill(), "x")

	assert.Nil(t, res.Error)
	assert.Equal(t, state.StageCompleted, res.Stage)
	assert.Equal(t, 4, *res.Execution.ExitCode)
	assert.Equal(t, "bad\n", res.Execution.Stderr)
	assert.Empty(t, res.OutputOnly().Output)
}

func TestRunUsesContextRunID(t *testing.T) {
	gen := &scriptedLLM{responses: map[string]string{llm.StageInterpreter: "d", llm.StageFabricator: "true"}}
	ctx := WithRunID(context.Background(), "req-42")

	res := newPipeline(gen, nil).Run(ctx, echoSkill(), "x")
	assert.Equal(t, "req-42", res.RunID)

	other := newPipeline(gen, nil).Run(context.Background(), echoSkill(), "x")
	assert.NotEmpty(t, other.RunID)
	assert.NotEqual(t, "req-42", other.RunID)
}

func TestInterpretOnly(t *testing.T) {
	gen := &scriptedLLM{responses: map[string]string{llm.StageInterpreter: "the plan"}}

	out, err := newPipeline(gen, nil).Interpret(context.Background(), echoSkill(), "x")
	require.NoError(t, err)
	assert.Equal(t, "the plan", out)
	assert.Len(t, gen.requests, 1)
}

func TestMarkdownReporter(t *testing.T) {
	code := 0
	res := &Result{
		RunID:     "run-7",
		Skill:     "echo",
		Stage:     state.StageCompleted,
		Script:    "echo hello",
		Execution: &Execution{Stdout: "hello\n", ExitCode: &code},
	}

	var buf bytes.Buffer
	require.NoError(t, NewMarkdownReporter("", false).Write(&buf, "say hello", res))
	assert.Contains(t, buf.String(), "`run-7`")
	assert.Contains(t, buf.String(), "✅ Completed")
	assert.Contains(t, buf.String(), "```\nhello\n```")

	dir := t.TempDir()
	path, err := NewMarkdownReporter(dir, true).GenerateReport("say hello", res)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.Regexp(t, `run-7\.md$`, path)
}
