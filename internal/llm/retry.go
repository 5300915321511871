package llm

import (
	"context"
	"log/slog"
	"math/rand"
	"time"
)

// RetryConfig defines retry behavior with exponential backoff.
type RetryConfig struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64       // 0.0-1.0; +/- share of the delay
	CallTimeout  time.Duration // per attempt; zero means no extra deadline
}

// DefaultRetryConfig returns 2 retries starting at 500ms, capped at 8s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:   2,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// Retrying wraps a Client and retries retryable failures.
type Retrying struct {
	next Client
	cfg  RetryConfig
}

// WithRetry decorates c with retries.
func WithRetry(c Client, cfg RetryConfig) *Retrying {
	return &Retrying{next: c, cfg: cfg}
}

// Complete calls the wrapped client until it succeeds, fails with a
// non-retryable error, or runs out of retries.
func (r *Retrying) Complete(ctx context.Context, req Request) (*Completion, error) {
	var lastErr error
	delay := r.cfg.InitialDelay

	for attempt := 0; attempt <= r.cfg.MaxRetries; attempt++ {
		out, err := r.call(ctx, req)
		if err == nil {
			return out, nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt == r.cfg.MaxRetries {
			break
		}

		slog.Warn("llm call failed, retrying", "attempt", attempt+1, "delay", delay, "error", err)
		select {
		case <-time.After(applyJitter(delay, r.cfg.JitterFactor)):
			delay = time.Duration(float64(delay) * r.cfg.Multiplier)
			if delay > r.cfg.MaxDelay {
				delay = r.cfg.MaxDelay
			}
		case <-ctx.Done():
			return nil, ClassifyError(ctx.Err())
		}
	}

	return nil, lastErr
}

func (r *Retrying) call(ctx context.Context, req Request) (*Completion, error) {
	if r.cfg.CallTimeout <= 0 {
		return r.next.Complete(ctx, req)
	}
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.CallTimeout)
	defer cancel()
	out, err := r.next.Complete(callCtx, req)
	if err != nil && callCtx.Err() != nil && ctx.Err() == nil {
		return nil, NewError(ErrorTypeTimeout, "request timeout", true, err)
	}
	return out, err
}

// applyJitter adds random jitter to a delay to prevent thundering herd.
func applyJitter(delay time.Duration, jitterFactor float64) time.Duration {
	if jitterFactor <= 0 {
		return delay
	}
	jitter := float64(delay) * jitterFactor * (rand.Float64()*2 - 1)
	return time.Duration(float64(delay) + jitter)
}
