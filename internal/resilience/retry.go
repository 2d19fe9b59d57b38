package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy bounds how often and how patiently a single model call is
// repeated.
type RetryPolicy struct {
	// MaxAttempts counts the first try. 1 disables retries. Default: 3.
	MaxAttempts int

	// BaseDelay is the wait before the second attempt. Default: 2s.
	BaseDelay time.Duration

	// MaxDelay caps any single wait. Default: 30s.
	MaxDelay time.Duration

	// Multiplier grows the wait per attempt. Default: 2.0.
	Multiplier float64

	// Jitter spreads each wait by ±Jitter of its value. Default: 0.
	Jitter float64

	// Retryable decides whether a failure is worth another attempt.
	// Defaults to IsTransient.
	Retryable func(err error) bool

	// OnRetry runs before each wait with the attempt that just failed.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryPolicy waits 2s then 4s between three attempts.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   2 * time.Second,
		MaxDelay:    30 * time.Second,
		Multiplier:  2.0,
	}
}

// Retry calls fn until it succeeds, returns a non-retryable error, the
// policy runs out of attempts, or ctx is done. fn receives the 1-based
// attempt number. The number of attempts made is always returned.
func Retry[T any](ctx context.Context, p RetryPolicy, fn func(ctx context.Context, attempt int) (T, error)) (T, int, error) {
	p = p.withDefaults()

	var zero T
	var lastErr error
	attempts := 0
	for attempts < p.MaxAttempts {
		attempts++
		val, err := fn(ctx, attempts)
		if err == nil {
			return val, attempts, nil
		}
		lastErr = err

		if ctx.Err() != nil || !p.Retryable(err) || attempts >= p.MaxAttempts {
			break
		}

		delay := p.Backoff(attempts)
		if p.OnRetry != nil {
			p.OnRetry(attempts, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, attempts, lastErr
		case <-timer.C:
		}
	}

	return zero, attempts, lastErr
}

// Backoff is the wait after the given failed attempt (1-based):
// BaseDelay * Multiplier^(attempt-1), capped and jittered.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	p = p.withDefaults()
	if attempt < 1 {
		attempt = 1
	}

	delay := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if delay > float64(p.MaxDelay) {
		delay = float64(p.MaxDelay)
	}

	if p.Jitter > 0 {
		spread := delay * p.Jitter
		delay += (rand.Float64()*2 - 1) * spread
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = 2 * time.Second
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 30 * time.Second
	}
	if p.Multiplier <= 0 {
		p.Multiplier = 2.0
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Retryable == nil {
		p.Retryable = IsTransient
	}
	return p
}

// RetryLogger returns an OnRetry hook that warns once per retry of model.
func RetryLogger(model string) func(int, time.Duration, error) {
	return func(attempt int, delay time.Duration, err error) {
		zap.L().Warn("model call failed, retrying",
			zap.String("model", model),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}
}
