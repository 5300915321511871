// Package llm talks to the language models that write correction scripts.
//
// Two providers are supported: any OpenAI-compatible chat completion API
// (Groq by default) and Anthropic. Both return a Completion with token
// usage so the service can account for cost. Failures are classified into
// *Error values that say whether a retry can help.
package llm

import "context"

// Default provider settings.
const (
	DefaultBaseURL     = "https://api.groq.com/openai/v1"
	DefaultModel       = "llama-3.3-70b-versatile"
	DefaultTemperature = 0.1
	DefaultMaxTokens   = 4096
)

// Request is a single-turn prompt.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Completion is the model's reply and the tokens it cost.
type Completion struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Client is a chat model.
type Client interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// Config holds configuration for creating a client.
type Config struct {
	BaseURL string // OpenAI-compatible base URL; ignored by Anthropic unless set
	Model   string
	APIKey  string
}
