package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const groqAPIURL = "https://api.groq.com/openai/v1/chat/completions"

// GroqClient implements the Client interface using Groq's
// OpenAI-compatible chat completions API.
type GroqClient struct {
	apiKey       string
	apiURL       string
	model        string
	systemPrompt string
	maxTokens    int
	temperature  float64
	httpClient   *http.Client
}

// GroqConfig holds configuration for the Groq client.
type GroqConfig struct {
	APIKey       string
	Model        string  // e.g., "llama-3.3-70b-versatile"
	SystemPrompt string  // Optional custom system prompt
	MaxTokens    int     // Cap on generated tokens (default 500)
	Temperature  float64 // Sampling temperature (default 0.7)
}

// NewGroqClient creates a new Groq client.
func NewGroqClient(cfg GroqConfig) *GroqClient {
	model := cfg.Model
	if model == "" {
		model = "llama-3.3-70b-versatile"
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
	return &GroqClient{
		apiKey:       cfg.APIKey,
		apiURL:       groqAPIURL,
		model:        model,
		systemPrompt: systemPrompt,
		maxTokens:    maxTokens,
		temperature:  temperature,
		httpClient:   &http.Client{},
	}
}

// chatRequest represents an OpenAI-compatible chat completion request.
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Stream      bool          `json:"stream,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse represents a streamed chat completion event.
type chatResponse struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// StreamCompletion streams a completion, calling sink once per fragment.
func (c *GroqClient) StreamCompletion(ctx context.Context, messages []Message, sink func(string)) error {
	chatMsgs := make([]chatMessage, 0, len(messages)+1)
	chatMsgs = append(chatMsgs, chatMessage{Role: "system", Content: c.systemPrompt})
	for _, m := range messages {
		chatMsgs = append(chatMsgs, chatMessage{Role: m.Role, Content: m.Content})
	}

	req := chatRequest{
		Model:       c.model,
		Messages:    chatMsgs,
		Stream:      true,
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("%w: marshal request: %v", ErrGenerationFailed, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: create request: %v", ErrGenerationFailed, err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: send request: %v", ErrGenerationFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: rate limited by provider", ErrGenerationFailed)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: provider returned %s - %s", ErrGenerationFailed, resp.Status, string(respBody))
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()

		// Skip empty lines and non-data lines
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			return nil
		}

		var streamResp chatResponse
		if err := json.Unmarshal([]byte(data), &streamResp); err != nil {
			return fmt.Errorf("%w: malformed stream data: %v", ErrGenerationFailed, err)
		}

		if len(streamResp.Choices) > 0 {
			if content := streamResp.Choices[0].Delta.Content; content != "" {
				sink(content)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("%w: read stream: %v", ErrGenerationFailed, err)
	}

	return nil
}
