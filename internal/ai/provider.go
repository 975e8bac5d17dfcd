package ai

import (
	"context"
	"fmt"
	"net/http"

	"github.com/econbrief/econbrief/internal/retry"
)

// Completer is the interface that all chat-completion providers implement.
type Completer interface {
	// Complete sends the messages and returns the raw text of the first
	// choice.
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// Synthesizer turns text into audio bytes.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SpeechRequest) ([]byte, error)
}

// NewProvider creates the appropriate completion provider based on config.
func NewProvider(cfg ProviderConfig) (Completer, error) {
	switch cfg.Provider {
	case "anthropic":
		p := NewAnthropicProvider(cfg.APIKey, cfg.Model)
		if cfg.BaseURL != "" {
			p.baseURL = cfg.BaseURL
		}
		return p, nil
	case "openai":
		p := NewOpenAIProvider(cfg.APIKey, cfg.Model)
		if cfg.BaseURL != "" {
			p.baseURL = cfg.BaseURL
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported AI provider: %s", cfg.Provider)
	}
}

// APIError is a non-2xx response from a provider.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s API error: status %d", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s API error: status %d: %s", e.Provider, e.StatusCode, e.Message)
}

// classify marks client errors as permanent. Timeouts and rate limits stay
// retryable, as do 5xx responses.
func classify(err *APIError) error {
	switch {
	case err.StatusCode == http.StatusRequestTimeout,
		err.StatusCode == http.StatusTooManyRequests:
		return err
	case err.StatusCode >= 400 && err.StatusCode < 500:
		return retry.Permanent(err)
	default:
		return err
	}
}
