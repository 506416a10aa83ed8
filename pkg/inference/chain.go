package inference

import (
	"context"
	"log/slog"
	"sync"
)

// Chain is a Provider that falls back through its providers in order. A
// request carrying tools skips providers without tool support, and a request
// carrying tool results is sent first to the provider that issued the calls.
type Chain struct {
	providers []Provider
	logger    *slog.Logger

	mu    sync.Mutex
	owner int // index of the provider behind the last tool calls, -1 when none
}

// NewChain returns a Chain over providers, which must not be empty.
func NewChain(providers ...Provider) (*Chain, error) {
	return NewChainWithLogger(slog.Default(), providers...)
}

// NewChainWithLogger is NewChain with a custom logger.
func NewChainWithLogger(logger *slog.Logger, providers ...Provider) (*Chain, error) {
	if len(providers) == 0 {
		return nil, ErrProviderUnavailable
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{
		providers: providers,
		logger:    logger.With("component", "inference.chain"),
		owner:     -1,
	}, nil
}

// Chat sends req to each eligible provider until one answers. Context
// cancellation stops the fallback.
func (c *Chain) Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	var errs []error
	for _, i := range c.order(req) {
		p := c.providers[i]
		caps := p.Capabilities()
		if !caps.Chat || (len(req.Tools) > 0 && !caps.Tools) {
			continue
		}

		resp, err := p.Chat(ctx, req)
		if err == nil {
			c.remember(i, resp)
			if i > 0 {
				c.logger.Info("answered by fallback", "provider_index", i)
			}
			return resp, nil
		}

		errs = append(errs, err)
		if ctx.Err() != nil {
			return nil, WrapError("chain", ctx.Err())
		}
		c.logger.Warn("provider failed", "provider_index", i, "error", err)
	}

	if len(errs) == 0 {
		return nil, ErrProviderUnavailable
	}
	return nil, &ChainError{Errors: errs}
}

// order lists provider indexes in the order to try for req.
func (c *Chain) order(req *ChatRequest) []int {
	idx := make([]int, 0, len(c.providers))
	c.mu.Lock()
	owner := c.owner
	c.mu.Unlock()

	if owner >= 0 && hasToolResults(req) {
		idx = append(idx, owner)
	} else {
		owner = -1
	}
	for i := range c.providers {
		if i != owner {
			idx = append(idx, i)
		}
	}
	return idx
}

func (c *Chain) remember(i int, resp *ChatResponse) {
	if !resp.HasToolCalls() {
		return
	}
	c.mu.Lock()
	c.owner = i
	c.mu.Unlock()
}

func hasToolResults(req *ChatRequest) bool {
	for _, m := range req.Messages {
		if m.Role == RoleTool {
			return true
		}
	}
	return false
}

// Capabilities is the union of the providers' capabilities.
func (c *Chain) Capabilities() Capabilities {
	var caps Capabilities
	for _, p := range c.providers {
		pc := p.Capabilities()
		caps.Chat = caps.Chat || pc.Chat
		caps.Tools = caps.Tools || pc.Tools
	}
	return caps
}

// Health passes when at least one provider is healthy.
func (c *Chain) Health(ctx context.Context) error {
	var lastErr error
	for i, p := range c.providers {
		err := p.Health(ctx)
		if err == nil {
			return nil
		}
		c.logger.Debug("provider unhealthy", "provider_index", i, "error", err)
		lastErr = err
	}
	return WrapError("chain", lastErr)
}

// Close closes every provider and returns the last error.
func (c *Chain) Close() error {
	var lastErr error
	for _, p := range c.providers {
		if err := p.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// Providers returns the providers in fallback order.
func (c *Chain) Providers() []Provider {
	return c.providers
}

var _ Provider = (*Chain)(nil)
