package llm

import (
	"context"
	"errors"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
}

// ErrPolicyRejected is returned when the upstream provider refuses to
// generate because of its content-safety policy. Callers must not retry
// a request that failed with this error.
var ErrPolicyRejected = errors.New("llm: request rejected by provider content policy")

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature float64
	MaxTokens   int
	Model       string // Override default model
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithMaxTokens(maxTokens int) Option {
	return func(o *Options) {
		o.MaxTokens = maxTokens
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// Chat sends a chat history to the model and returns the response
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// ChatStream behaves like Chat but invokes onToken for every content
	// fragment as it arrives. The full response is still returned at the end.
	ChatStream(ctx context.Context, history []Message, onToken func(token string), options ...Option) (string, error)

	// Generate sends a single prompt to the model (convenience method)
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)
}
