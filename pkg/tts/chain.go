package tts

import (
	"context"
	"fmt"
	"log/slog"
)

// Chain fails over between synthesis backends. Each utterance is tried
// on the providers in order and the first live stream wins; callers may
// hear a different voice after a failover, never silence.
type Chain struct {
	providers []Provider
	logger    *slog.Logger
}

// NewChain builds a failover chain. At least one provider is required.
func NewChain(providers ...Provider) (*Chain, error) {
	if len(providers) == 0 {
		return nil, ErrProviderUnavailable
	}
	return &Chain{
		providers: providers,
		logger:    slog.Default().With("component", "tts.chain"),
	}, nil
}

// NewChainWithLogger builds a failover chain with a custom logger.
func NewChainWithLogger(logger *slog.Logger, providers ...Provider) (*Chain, error) {
	chain, err := NewChain(providers...)
	if err != nil {
		return nil, err
	}
	chain.logger = logger.With("component", "tts.chain")
	return chain, nil
}

// Stream opens an audio stream from the first provider that accepts the
// utterance. Failover happens only on stream setup; once a stream is
// handed out, its errors belong to the caller.
func (c *Chain) Stream(ctx context.Context, text string) (AudioStream, error) {
	var errs []error
	for i, p := range c.providers {
		stream, err := p.Stream(ctx, text)
		if err == nil {
			c.tookOver(i, text)
			return stream, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("stream setup failed, trying next provider",
			"provider_index", i,
			"error", err,
		)
	}
	return nil, &ChainError{Errors: errs}
}

// Synthesize returns the first provider's complete result, failing over
// in order.
func (c *Chain) Synthesize(ctx context.Context, text string) (*AudioResult, error) {
	var errs []error
	for i, p := range c.providers {
		result, err := p.Synthesize(ctx, text)
		if err == nil {
			c.tookOver(i, text)
			return result, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		c.logger.Warn("synthesis failed, trying next provider",
			"provider_index", i,
			"error", err,
		)
	}
	return nil, &ChainError{Errors: errs}
}

// Health reports healthy while at least one provider answers.
func (c *Chain) Health(ctx context.Context) error {
	var lastErr error
	healthy := 0
	for _, p := range c.providers {
		if err := p.Health(ctx); err != nil {
			lastErr = err
			continue
		}
		healthy++
	}
	if healthy == 0 {
		return fmt.Errorf("all %d synthesis providers unhealthy: %w", len(c.providers), lastErr)
	}
	c.logger.Debug("health check complete", "healthy", healthy, "total", len(c.providers))
	return nil
}

// Close closes every provider and returns the last error seen.
func (c *Chain) Close() error {
	var lastErr error
	for _, p := range c.providers {
		if err := p.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Providers returns the chain members in failover order.
func (c *Chain) Providers() []Provider {
	return c.providers
}

// tookOver logs when anything other than the primary served the request.
func (c *Chain) tookOver(index int, text string) {
	if index == 0 {
		return
	}
	c.logger.Info("fallback provider took over",
		"provider_index", index,
		"chars", len(text),
	)
}

// ChainError aggregates the per-provider failures of one request.
type ChainError struct {
	Errors []error
}

func (e *ChainError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "tts chain: no errors recorded"
	case 1:
		return fmt.Sprintf("tts chain: %v", e.Errors[0])
	default:
		return fmt.Sprintf("tts chain: all %d providers failed, last error: %v",
			len(e.Errors), e.Errors[len(e.Errors)-1])
	}
}

// Unwrap returns the last failure, usually the most specific one.
func (e *ChainError) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}

// Verify Chain implements Provider at compile time.
var _ Provider = (*Chain)(nil)
