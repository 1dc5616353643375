package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abhisek/chemgen/internal/store"
)

// NewProvider creates a Provider from configuration, wrapped with logging
// (and a per-request timeout when cfg.Timeout is set). There is no retry
// middleware: a failed call is reported to the user, who re-triggers it.
//
// A missing API key does not fail construction. The returned provider
// reports *ErrAuthentication on every call instead, so the application can
// start and show the configuration problem where the user acts.
func NewProvider(ctx context.Context, cfg Config, eventRepo store.EventRepo) (Provider, error) {
	var base Provider
	var err error

	switch cfg.Provider {
	case "gemini":
		base, err = NewGeminiProvider(ctx, cfg.Gemini)
	case "anthropic":
		base, err = NewAnthropicProvider(cfg.Anthropic)
	case "openai":
		base, err = NewOpenAIProvider(cfg.OpenAI)
	case "openrouter":
		base, err = NewOpenRouterProvider(cfg.OpenRouter)
	case "mock":
		base = NewMockProvider()
	default:
		return nil, &ErrUnknownProvider{Name: cfg.Provider}
	}
	if err != nil {
		var authErr *ErrAuthentication
		if errors.As(err, &authErr) {
			return Unconfigured(authErr), nil
		}
		return nil, fmt.Errorf("initializing %s provider: %w", cfg.Provider, err)
	}

	// Middleware chain: caller → timeout → logging → base
	p := WithLogging(base, cfg.Provider, eventRepo)
	if cfg.Timeout > 0 {
		p = WithTimeout(p, cfg.Timeout)
	}
	return p, nil
}

// NewProviderFromEnv builds a provider from ConfigFromEnv.
func NewProviderFromEnv(ctx context.Context, eventRepo store.EventRepo) (Provider, error) {
	return NewProvider(ctx, ConfigFromEnv(), eventRepo)
}

// unconfiguredProvider fails every call with the configuration error.
type unconfiguredProvider struct {
	err *ErrAuthentication
}

// Unconfigured returns a Provider whose Generate always fails with err.
func Unconfigured(err *ErrAuthentication) Provider {
	return &unconfiguredProvider{err: err}
}

func (u *unconfiguredProvider) Generate(context.Context, Request) (*Response, error) {
	return nil, u.err
}

func (u *unconfiguredProvider) ModelID() string {
	return "unconfigured-" + u.err.Provider
}

// timeoutProvider bounds each request with a deadline.
type timeoutProvider struct {
	inner   Provider
	timeout time.Duration
}

// WithTimeout wraps p so that every Generate call is cancelled after d.
func WithTimeout(p Provider, d time.Duration) Provider {
	return &timeoutProvider{inner: p, timeout: d}
}

func (t *timeoutProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.inner.Generate(ctx, req)
}

func (t *timeoutProvider) ModelID() string {
	return t.inner.ModelID()
}
