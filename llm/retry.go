package llm

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/sweetpotato0/docqa/message"
	"github.com/sweetpotato0/docqa/pkg/logging"
)

// RetryConfig bounds how a retrying client re-issues failed invocations.
type RetryConfig struct {
	MaxAttempts int           // Total attempts including the first (default 3)
	BaseDelay   time.Duration // First backoff delay (default 500ms)
	MaxDelay    time.Duration // Backoff ceiling (default 8s)
	CallTimeout time.Duration // Per-attempt deadline (default 30s)
}

func (c *RetryConfig) normalize() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = 8 * time.Second
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = 30 * time.Second
	}
}

// retryingClient decorates a Client with per-call deadlines and bounded
// retries with jittered exponential backoff. Model calls are the dominant
// failure surface, so every component receives an already-wrapped client.
type retryingClient struct {
	inner  Client
	cfg    RetryConfig
	logger *slog.Logger
}

// WithRetry wraps the given client with retry and timeout handling.
func WithRetry(inner Client, cfg RetryConfig) Client {
	cfg.normalize()
	return &retryingClient{
		inner:  inner,
		cfg:    cfg,
		logger: logging.WithComponent("llm_retry"),
	}
}

func (r *retryingClient) Invoke(ctx context.Context, messages []*message.Message) (*message.Message, error) {
	var lastErr error
	delay := r.cfg.BaseDelay
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
		resp, err := r.inner.Invoke(callCtx, messages)
		cancel()
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if attempt == r.cfg.MaxAttempts {
			break
		}
		sleep := jitter(delay)
		r.logger.Warn("llm invocation failed, retrying",
			"attempt", attempt,
			"backoff", sleep.String(),
			"error", err,
		)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
		delay *= 2
		if delay > r.cfg.MaxDelay {
			delay = r.cfg.MaxDelay
		}
	}
	return nil, lastErr
}

func (r *retryingClient) SetTemperature(temp float64) { r.inner.SetTemperature(temp) }
func (r *retryingClient) SetMaxTokens(max int64)      { r.inner.SetMaxTokens(max) }
func (r *retryingClient) SetModel(model string)       { r.inner.SetModel(model) }

// jitter spreads the delay uniformly over [delay/2, delay).
func jitter(delay time.Duration) time.Duration {
	half := delay / 2
	return half + time.Duration(rand.Int63n(int64(half)))
}
