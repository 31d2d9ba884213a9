package tts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultChainBackoff is how long a failed provider is skipped.
const DefaultChainBackoff = 30 * time.Second

// Chain implements Provider by trying providers in order. A provider that
// fails is skipped for a backoff period so a dead backend does not add its
// timeout to every prompt. When every provider is backing off, all are
// tried anyway.
type Chain struct {
	providers []Provider
	logger    *slog.Logger

	mu      sync.Mutex
	backoff time.Duration
	downTil []time.Time
}

// NewChain creates a provider chain. At least one provider is required.
func NewChain(logger *slog.Logger, providers ...Provider) (*Chain, error) {
	if len(providers) == 0 {
		return nil, ErrProviderUnavailable
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		providers: providers,
		logger:    logger.With("component", "tts.chain"),
		backoff:   DefaultChainBackoff,
		downTil:   make([]time.Time, len(providers)),
	}, nil
}

// SetBackoff changes how long failed providers are skipped. Zero disables
// skipping.
func (c *Chain) SetBackoff(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backoff = d
}

// candidates returns provider indexes to try, healthy ones first.
func (c *Chain) candidates(now time.Time) []int {
	c.mu.Lock()
	defer c.mu.Unlock()

	var up []int
	for i, t := range c.downTil {
		if !now.Before(t) {
			up = append(up, i)
		}
	}
	if len(up) > 0 {
		return up
	}
	all := make([]int, len(c.providers))
	for i := range all {
		all[i] = i
	}
	return all
}

func (c *Chain) mark(i int, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err == nil {
		c.downTil[i] = time.Time{}
		return
	}
	c.downTil[i] = time.Now().Add(c.backoff)
}

// Synthesize tries each available provider until one succeeds.
func (c *Chain) Synthesize(ctx context.Context, text string) (*Audio, error) {
	var errs []error

	for _, i := range c.candidates(time.Now()) {
		audio, err := c.providers[i].Synthesize(ctx, text)
		if err == nil {
			c.mark(i, nil)
			if i > 0 {
				c.logger.Info("fallback provider succeeded", "provider_index", i, "chars", len(text))
			}
			return audio, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		errs = append(errs, err)
		c.mark(i, err)
		c.logger.Warn("provider failed, trying next", "provider_index", i, "error", err)
	}

	return nil, &ChainError{Errors: errs}
}

// Health returns an error only if every provider is unhealthy.
func (c *Chain) Health(ctx context.Context) error {
	var healthy int
	var lastErr error

	for _, p := range c.providers {
		if err := p.Health(ctx); err != nil {
			lastErr = err
		} else {
			healthy++
		}
	}

	if healthy == 0 {
		return fmt.Errorf("all %d providers unhealthy: %w", len(c.providers), lastErr)
	}
	return nil
}

// Close closes all providers.
func (c *Chain) Close() error {
	var lastErr error
	for _, p := range c.providers {
		if err := p.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// ChainError aggregates errors from all providers in a chain.
type ChainError struct {
	Errors []error
}

// Error implements the error interface.
func (e *ChainError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "tts chain: no errors recorded"
	case 1:
		return fmt.Sprintf("tts chain: %v", e.Errors[0])
	}
	return fmt.Sprintf("tts chain: all %d providers failed, last error: %v", len(e.Errors), e.Errors[len(e.Errors)-1])
}

// Unwrap returns the last error in the chain.
func (e *ChainError) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}

var _ Provider = (*Chain)(nil)
