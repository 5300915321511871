package llm

import (
	"fmt"
	"strings"
)

// New builds the client for provider ("openai" or "anthropic").
func New(provider string, cfg Config) (Client, error) {
	switch strings.ToLower(provider) {
	case "openai", "groq", "":
		return NewOpenAIClient(cfg)
	case "anthropic":
		return NewAnthropicClient(cfg)
	}
	return nil, fmt.Errorf("unknown llm provider %q", provider)
}
