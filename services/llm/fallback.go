package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/VidyaLabs/VidyaServe/services/answerd/datatypes"
)

// ErrAllProvidersFailed is returned when every provider in the chain failed
// for one call. Callers match it with errors.Is.
var ErrAllProvidersFailed = errors.New("all generation providers failed")

// FallbackConfig controls per-attempt timeouts and outbound rate limiting
// for a FallbackChain.
type FallbackConfig struct {
	// AttemptTimeout bounds each provider call. Zero disables the bound.
	AttemptTimeout time.Duration

	// RequestsPerSecond gates outbound attempts across all providers in
	// the chain. Zero disables the limiter.
	RequestsPerSecond float64

	// Burst is the limiter burst size. Ignored when the limiter is
	// disabled.
	Burst int
}

func DefaultFallbackConfig() FallbackConfig {
	return FallbackConfig{
		AttemptTimeout: 45 * time.Second,
	}
}

func (c FallbackConfig) Validate() error {
	if c.AttemptTimeout < 0 {
		return fmt.Errorf("attempt timeout must not be negative, got %s", c.AttemptTimeout)
	}
	if c.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second must not be negative, got %f", c.RequestsPerSecond)
	}
	if c.RequestsPerSecond > 0 && c.Burst < 1 {
		return fmt.Errorf("burst must be at least 1 when rate limiting is enabled, got %d", c.Burst)
	}
	return nil
}

// FallbackChain tries an ordered list of providers until one succeeds.
// Provider order is the caller's preference order; each provider is tried
// at most once per call.
type FallbackChain struct {
	providers []LLMClient
	cfg       FallbackConfig
	limiter   *rate.Limiter
}

func NewFallbackChain(cfg FallbackConfig, providers ...LLMClient) (*FallbackChain, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid fallback config: %w", err)
	}
	if len(providers) == 0 {
		return nil, fmt.Errorf("fallback chain requires at least one provider")
	}
	chain := &FallbackChain{providers: providers, cfg: cfg}
	if cfg.RequestsPerSecond > 0 {
		chain.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)
	}
	return chain, nil
}

// Name implements the LLMClient interface
func (c *FallbackChain) Name() string {
	return "fallback"
}

// Generate implements the LLMClient interface
func (c *FallbackChain) Generate(ctx context.Context, prompt string, params GenerationParams) (string, error) {
	return c.tryEach(ctx, func(ctx context.Context, p LLMClient) (string, error) {
		return p.Generate(ctx, prompt, params)
	})
}

// Chat implements the LLMClient interface
func (c *FallbackChain) Chat(ctx context.Context, messages []datatypes.Message, params GenerationParams) (string, error) {
	return c.tryEach(ctx, func(ctx context.Context, p LLMClient) (string, error) {
		return p.Chat(ctx, messages, params)
	})
}

// tryEach walks the provider list in order and returns the first success.
// Provider errors are logged and swallowed until the list is exhausted;
// context cancellation stops the walk immediately.
func (c *FallbackChain) tryEach(ctx context.Context, call func(context.Context, LLMClient) (string, error)) (string, error) {
	var lastErr error
	for _, p := range c.providers {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return "", fmt.Errorf("rate limiter wait aborted: %w", err)
			}
		}

		attemptCtx, cancel := ctx, func() {}
		if c.cfg.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, c.cfg.AttemptTimeout)
		}
		answer, err := call(attemptCtx, p)
		cancel()
		if err == nil {
			return answer, nil
		}
		lastErr = err
		slog.Warn("Generation provider failed, trying next", "provider", p.Name(), "error", err)
	}
	return "", fmt.Errorf("%w: last error: %w", ErrAllProvidersFailed, lastErr)
}

var (
	_ LLMClient = (*OpenAIClient)(nil)
	_ LLMClient = (*AnthropicClient)(nil)
	_ LLMClient = (*GoogleAIClient)(nil)
	_ LLMClient = (*OllamaClient)(nil)
	_ LLMClient = (*FallbackChain)(nil)
)
