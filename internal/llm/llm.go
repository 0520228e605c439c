package llm

//go:generate go run go.uber.org/mock/mockgen@latest -destination=mocks/mock_reasoner.go -package=mocks github.com/dgallion1/codebook/internal/llm Reasoner

import (
	"context"
	"fmt"
	"time"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

// Reasoner answers a single prompt with free text.
type Reasoner interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ReasonerFunc adapts a plain function to Reasoner.
type ReasonerFunc func(ctx context.Context, prompt string) (string, error)

func (f ReasonerFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

type Options struct {
	Provider string
	Model    string
	APIKey   string
	BaseURL  string
	System   string
	Timeout  time.Duration
}

// NewReasoner builds the client for opts.Provider.
func NewReasoner(opts Options) (Reasoner, error) {
	switch opts.Provider {
	case ProviderAnthropic, "":
		if opts.APIKey == "" {
			return nil, fmt.Errorf("anthropic provider selected but ANTHROPIC_API_KEY not set")
		}
		return NewClaudeClient(opts), nil
	case ProviderOpenAI:
		if opts.APIKey == "" {
			return nil, fmt.Errorf("openai provider selected but OPENAI_API_KEY not set")
		}
		return NewOpenAIClient(opts), nil
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", opts.Provider)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// RetryableError indicates a transient failure (rate limit or server error).
// Nothing in this module retries; callers use it to report the cause.
type RetryableError struct {
	StatusCode int
	Message    string
}

func (e *RetryableError) Error() string {
	return fmt.Sprintf("retryable error (status %d): %s", e.StatusCode, truncate(e.Message, 200))
}

func isTransientStatus(code int) bool {
	return code == 429 || code >= 500
}
