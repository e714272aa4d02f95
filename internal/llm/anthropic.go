package llm

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient implements the Client interface using the Anthropic
// Messages API.
type AnthropicClient struct {
	client       anthropic.Client
	model        anthropic.Model
	systemPrompt string
	maxTokens    int
	temperature  float64
}

// AnthropicConfig holds configuration for the Anthropic client.
type AnthropicConfig struct {
	APIKey       string
	Model        string  // e.g., "claude-3-7-sonnet-latest"
	SystemPrompt string  // Optional custom system prompt
	MaxTokens    int     // Cap on generated tokens (default 500)
	Temperature  float64 // Sampling temperature (default 0.7)
}

// NewAnthropicClient creates a new Anthropic client.
func NewAnthropicClient(cfg AnthropicConfig) *AnthropicClient {
	model := anthropic.Model(cfg.Model)
	if cfg.Model == "" {
		model = anthropic.ModelClaude3_7SonnetLatest
	}
	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = SystemPrompt
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 500
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = 0.7
	}
	return &AnthropicClient{
		client:       anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:        model,
		systemPrompt: systemPrompt,
		maxTokens:    maxTokens,
		temperature:  temperature,
	}
}

// StreamCompletion streams a completion, calling sink once per text delta.
func (c *AnthropicClient) StreamCompletion(ctx context.Context, messages []Message, sink func(string)) error {
	params := anthropic.MessageNewParams{
		Model:       c.model,
		MaxTokens:   int64(c.maxTokens),
		Temperature: anthropic.Float(c.temperature),
		System:      []anthropic.TextBlockParam{{Text: c.systemPrompt}},
	}
	for _, m := range messages {
		if m.Role == "assistant" {
			params.Messages = append(params.Messages, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		} else {
			params.Messages = append(params.Messages, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	stream := c.client.Messages.NewStreaming(ctx, params)
	for stream.Next() {
		event := stream.Current()
		switch eventVariant := event.AsAny().(type) {
		case anthropic.ContentBlockDeltaEvent:
			switch deltaVariant := eventVariant.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				if deltaVariant.Text != "" {
					sink(deltaVariant.Text)
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	return nil
}
