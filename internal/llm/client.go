package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/hb-chen/mkbi/internal/skill"
)

// Sampling holds the generation parameters of one stage.
type Sampling struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// Request is a single chat generation call.
type Request struct {
	// Stage names the caller in errors and logs.
	Stage string
	// History is sent first, in order, followed by Messages.
	History  []skill.Message
	Messages []skill.Message
	Sampling Sampling
}

// GatewayError reports a failed generation call.
type GatewayError struct {
	Stage string
	Err   error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s call failed: %v", e.Stage, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// Client wraps the LLM client
type Client struct {
	llm   llms.Model
	model string // Model name for API calls
}

// NewClient creates a new LLM client
func NewClient(provider, apiKey, url, modelName string) (*Client, error) {
	var llmModel llms.Model
	var err error

	switch provider {
	case "", "openai":
		if apiKey == "" {
			return nil, errors.New("no API key configured (llm.api_key, LLM_API_KEY or OPENAI_API_KEY)")
		}
		opts := []openai.Option{
			openai.WithToken(apiKey),
		}
		if url != "" {
			opts = append(opts, openai.WithBaseURL(url))
		}
		if modelName != "" {
			opts = append(opts, openai.WithModel(modelName))
		}
		llmModel, err = openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create OpenAI client: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", provider)
	}

	return &Client{llm: llmModel, model: modelName}, nil
}

// NewClientWithModel wraps an existing model, e.g. a fake in tests.
func NewClientWithModel(model llms.Model, modelName string) *Client {
	return &Client{llm: model, model: modelName}
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.model
}

// Generate issues one chat call and returns the text of the first choice,
// or "" when the backend returns none. Failures are *GatewayError.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	messages := make([]llms.MessageContent, 0, len(req.History)+len(req.Messages))
	for _, m := range req.History {
		messages = append(messages, llms.TextParts(roleOf(m.Role), m.Content))
	}
	for _, m := range req.Messages {
		messages = append(messages, llms.TextParts(roleOf(m.Role), m.Content))
	}

	options := []llms.CallOption{
		llms.WithTemperature(req.Sampling.Temperature),
		llms.WithTopP(req.Sampling.TopP),
	}
	if c.model != "" {
		options = append(options, llms.WithModel(c.model))
	}
	if req.Sampling.MaxTokens > 0 {
		options = append(options, llms.WithMaxTokens(req.Sampling.MaxTokens))
	}

	response, err := c.llm.GenerateContent(ctx, messages, options...)
	if err != nil {
		return "", &GatewayError{Stage: req.Stage, Err: err}
	}
	if response == nil || len(response.Choices) == 0 {
		return "", nil
	}
	return response.Choices[0].Content, nil
}

func roleOf(role string) llms.ChatMessageType {
	switch role {
	case "system":
		return llms.ChatMessageTypeSystem
	case "user", "human":
		return llms.ChatMessageTypeHuman
	case "assistant", "ai":
		return llms.ChatMessageTypeAI
	default:
		return llms.ChatMessageTypeGeneric
	}
}
