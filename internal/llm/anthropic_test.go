package llm

import (
	"testing"

	"github.com/anthropics/anthropic-sdk-go"
)

func TestNewAnthropicClient(t *testing.T) {
	t.Run("default values", func(t *testing.T) {
		client := NewAnthropicClient(AnthropicConfig{
			APIKey: "test-key",
		})

		if client.model != anthropic.ModelClaude3_7SonnetLatest {
			t.Errorf("model = %q, want %q", client.model, anthropic.ModelClaude3_7SonnetLatest)
		}
		if client.systemPrompt != SystemPrompt {
			t.Error("systemPrompt should default to SystemPrompt")
		}
		if client.maxTokens != 500 {
			t.Errorf("maxTokens = %d, want 500", client.maxTokens)
		}
		if client.temperature != 0.7 {
			t.Errorf("temperature = %f, want 0.7", client.temperature)
		}
	})

	t.Run("custom values", func(t *testing.T) {
		client := NewAnthropicClient(AnthropicConfig{
			APIKey:       "test-key",
			Model:        "claude-sonnet-4-20250514",
			SystemPrompt: "Short answers only.",
			MaxTokens:    200,
			Temperature:  0.3,
		})

		if string(client.model) != "claude-sonnet-4-20250514" {
			t.Errorf("model = %q", client.model)
		}
		if client.systemPrompt != "Short answers only." {
			t.Errorf("systemPrompt = %q", client.systemPrompt)
		}
		if client.maxTokens != 200 {
			t.Errorf("maxTokens = %d, want 200", client.maxTokens)
		}
		if client.temperature != 0.3 {
			t.Errorf("temperature = %f, want 0.3", client.temperature)
		}
	})
}
