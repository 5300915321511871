package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/liushuangls/go-anthropic/v2"
)

// DefaultAnthropicModel is used when the provider is anthropic and the
// configured model is still the OpenAI-compatible default.
const DefaultAnthropicModel = "claude-sonnet-4-5-20250929"

// AnthropicClient calls the Anthropic messages API.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient creates a client. cfg.BaseURL overrides the API host
// when set, which tests use to point at a local server.
func NewAnthropicClient(cfg Config) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required")
	}
	model := cfg.Model
	if model == "" || model == DefaultModel {
		model = DefaultAnthropicModel
	}

	var opts []anthropic.ClientOption
	if cfg.BaseURL != "" && cfg.BaseURL != DefaultBaseURL {
		opts = append(opts, anthropic.WithBaseURL(cfg.BaseURL))
	}

	return &AnthropicClient{
		client: anthropic.NewClient(cfg.APIKey, opts...),
		model:  model,
	}, nil
}

// Complete sends the prompt as a single user message.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	temperature := float32(req.Temperature)
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	slog.Debug("llm request",
		"provider", "anthropic",
		"model", c.model,
		"prompt_len", len(req.Prompt),
	)
	start := time.Now()

	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		System:      req.System,
		MaxTokens:   maxTokens,
		Temperature: &temperature,
		Messages: []anthropic.Message{
			{Role: anthropic.RoleUser, Content: []anthropic.MessageContent{
				{Type: "text", Text: &req.Prompt},
			}},
		},
	})
	if err != nil {
		slog.Error("llm request failed", "model", c.model, "elapsed", time.Since(start), "error", err)
		llmErr := ClassifyError(err)
		llmErr.Model = c.model
		return nil, llmErr
	}

	text := ""
	for _, block := range resp.Content {
		if block.Type == "text" && block.Text != nil {
			text = *block.Text
			break
		}
	}
	if text == "" {
		return nil, NewError(ErrorTypeEmpty, "no text in response", true, nil)
	}

	slog.Info("llm request completed",
		"model", c.model,
		"prompt_tokens", resp.Usage.InputTokens,
		"completion_tokens", resp.Usage.OutputTokens,
		"elapsed", time.Since(start),
	)

	return &Completion{
		Content:          text,
		Model:            c.model,
		PromptTokens:     resp.Usage.InputTokens,
		CompletionTokens: resp.Usage.OutputTokens,
		TotalTokens:      resp.Usage.InputTokens + resp.Usage.OutputTokens,
	}, nil
}
