package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/hb-chen/mkbi/internal/skill"
)

// recordingModel is an llms.Model that captures the last call.
type recordingModel struct {
	messages []llms.MessageContent
	options  llms.CallOptions
	response *llms.ContentResponse
	err      error
}

func (m *recordingModel) GenerateContent(_ context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	m.options = llms.CallOptions{}
	for _, opt := range options {
		opt(&m.options)
	}
	return m.response, m.err
}

func (m *recordingModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func text(t *testing.T, m llms.MessageContent) string {
	t.Helper()
	require.Len(t, m.Parts, 1)
	part, ok := m.Parts[0].(llms.TextContent)
	require.True(t, ok)
	return part.Text
}

func TestGenerateSendsHistoryFirst(t *testing.T) {
	model := &recordingModel{response: &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: "draft"}, {Content: "ignored"}},
	}}
	c := NewClientWithModel(model, "gpt-test")

	out, err := c.Generate(context.Background(), Request{
		Stage: StageInterpreter,
		History: []skill.Message{
			{Role: "system", Content: "be brief"},
			{Role: "user", Content: "example"},
			{Role: "assistant", Content: "reply"},
		},
		Messages: []skill.Message{UserMessage("list files")},
		Sampling: Sampling{Temperature: 0.3, TopP: 0.9, MaxTokens: 256},
	})
	require.NoError(t, err)
	assert.Equal(t, "draft", out)

	require.Len(t, model.messages, 4)
	roles := []llms.ChatMessageType{}
	for _, m := range model.messages {
		roles = append(roles, m.Role)
	}
	assert.Equal(t, []llms.ChatMessageType{
		llms.ChatMessageTypeSystem,
		llms.ChatMessageTypeHuman,
		llms.ChatMessageTypeAI,
		llms.ChatMessageTypeHuman,
	}, roles)
	assert.Equal(t, "be brief", text(t, model.messages[0]))
	assert.Equal(t, "list files", text(t, model.messages[3]))

	assert.Equal(t, "gpt-test", model.options.Model)
	assert.InDelta(t, 0.3, model.options.Temperature, 1e-9)
	assert.InDelta(t, 0.9, model.options.TopP, 1e-9)
	assert.Equal(t, 256, model.options.MaxTokens)
}

func TestGenerateZeroTemperatureIsSent(t *testing.T) {
	model := &recordingModel{response: &llms.ContentResponse{}}
	c := NewClientWithModel(model, "")

	_, err := c.Generate(context.Background(), Request{Sampling: Sampling{Temperature: 0, TopP: 1}})
	require.NoError(t, err)
	assert.Zero(t, model.options.Temperature)
	assert.Equal(t, 1.0, model.options.TopP)
	assert.Empty(t, model.options.Model)
	assert.Zero(t, model.options.MaxTokens)
}

func TestGenerateNoChoicesIsEmpty(t *testing.T) {
	c := NewClientWithModel(&recordingModel{response: &llms.ContentResponse{}}, "m")

	out, err := c.Generate(context.Background(), Request{Messages: []skill.Message{UserMessage("x")}})
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestGenerateWrapsTransportErrors(t *testing.T) {
	cause := errors.New("401 unauthorized")
	c := NewClientWithModel(&recordingModel{err: cause}, "m")

	_, err := c.Generate(context.Background(), Request{Stage: StageFabricator})

	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, StageFabricator, gwErr.Stage)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "fabricator call failed: 401 unauthorized", err.Error())
}

func TestFabricatorPrompt(t *testing.T) {
	assert.Equal(t, "open firefox [KCR] use xdg-open", FabricatorPrompt("open firefox", "use xdg-open"))
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient("openai", "", "", "gpt-4o")
	assert.Error(t, err)

	_, err = NewClient("anthropic", "k", "", "m")
	assert.ErrorContains(t, err, "unsupported LLM provider")
}
