package llm

import (
	"context"
	"errors"
)

var (
	// ErrRateLimited marks provider responses with HTTP 429.
	ErrRateLimited = errors.New("llm rate limit exceeded")
	// ErrConnection marks transport failures reaching the provider.
	ErrConnection = errors.New("llm connection error")
	// ErrEmptyResponse is returned when the provider answers with no text.
	ErrEmptyResponse = errors.New("llm returned an empty response")
)

// CompletionRequest is a single system+user exchange. Zero-valued tuning
// fields are left to the provider defaults.
type CompletionRequest struct {
	Model            string
	System           string
	User             string
	Temperature      float32
	MaxTokens        int
	PresencePenalty  float32
	FrequencyPenalty float32
}

// Provider is a language-model backend able to embed text and complete
// prompts.
type Provider interface {
	Name() string
	Models() Models
	Embed(ctx context.Context, text string) ([]float32, error)
	Complete(ctx context.Context, req CompletionRequest) (string, error)
	Close() error
}

// Models names the three models a provider is asked to use.
type Models struct {
	Chat      string
	Tone      string
	Embedding string
}

func (m Models) withDefaults(d Models) Models {
	if m.Chat == "" {
		m.Chat = d.Chat
	}
	if m.Tone == "" {
		m.Tone = d.Tone
	}
	if m.Embedding == "" {
		m.Embedding = d.Embedding
	}
	return m
}

// classified wraps a provider error with one of the package sentinels while
// keeping the original error in the chain.
type classified struct {
	kind error
	err  error
}

func (c *classified) Error() string { return c.kind.Error() + ": " + c.err.Error() }

func (c *classified) Unwrap() []error { return []error{c.kind, c.err} }

func classify(kind, err error) error {
	return &classified{kind: kind, err: err}
}
