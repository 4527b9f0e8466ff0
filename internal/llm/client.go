// Package llm provides LLM client interfaces and implementations.
package llm

import (
	"context"

	"github.com/parley-ai/parley/internal/model"
)

// StreamCallback is called for each token during streaming.
type StreamCallback func(token string, index int) error

// ToolDefinition declares a tool the model may request.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// CompletionRequest represents a completion request.
type CompletionRequest struct {
	Model       string
	Messages    []model.Message
	Tools       []ToolDefinition
	MaxTokens   int
	Temperature float64
}

// CompletionResponse represents a completion response. Message is either a
// final answer (plain content) or carries one or more ToolCalls, in which
// case content may be empty.
type CompletionResponse struct {
	Message    model.Message
	Model      string
	TokensIn   int
	TokensOut  int
	StopReason string
	LatencyMs  int64
}

// Client is the interface for LLM providers.
type Client interface {
	// Complete sends a completion request and returns the response.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// CompleteStream sends a streaming completion request. Tokens of the
	// answer are delivered through the callback; tool-call requests are
	// accumulated and surfaced on the returned response.
	CompleteStream(ctx context.Context, req *CompletionRequest, callback StreamCallback) (*CompletionResponse, error)

	// Name returns the provider name.
	Name() string

	// Models returns available models.
	Models() []string
}

// Provider is the type of LLM provider.
type Provider string

const (
	ProviderGroq      Provider = "groq"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// NewClient creates a new LLM client based on provider. baseURL overrides
// the provider's default endpoint when non-empty (OpenAI-compatible
// providers only).
func NewClient(provider Provider, apiKey, baseURL string) (Client, error) {
	switch provider {
	case ProviderGroq:
		return NewGroqClient(apiKey, baseURL)
	case ProviderOpenAI:
		return NewOpenAIClient(apiKey, baseURL)
	case ProviderAnthropic:
		return NewAnthropicClient(apiKey)
	default:
		return NewGroqClient(apiKey, baseURL)
	}
}
