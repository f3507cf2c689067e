package payer

import (
	"context"
	"time"
)

// State describes one in-flight retried invocation. It is created when the
// invocation starts, updated between attempts, and discarded when the
// invocation settles; it is never shared across invocations.
type State struct {
	Attempt     int           `json:"attempt"`
	IsRetrying  bool          `json:"is_retrying"`
	NextRetryIn time.Duration `json:"next_retry_in"`
}

// retryConfig holds the executor's tuning. Zero values are replaced by the
// defaults in newRetryConfig.
type retryConfig struct {
	maxAttempts int
	initial     time.Duration
	max         time.Duration
	multiplier  float64
	shouldRetry func(*PayerError) bool
	observer    func(State)
	sleep       func(context.Context, time.Duration) // test seam
}

// RetryOption configures a single Do invocation.
type RetryOption func(*retryConfig)

// WithMaxAttempts sets the total number of attempts, including the first.
func WithMaxAttempts(n int) RetryOption {
	return func(c *retryConfig) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithInitialDelay sets the backoff before the second attempt.
func WithInitialDelay(d time.Duration) RetryOption {
	return func(c *retryConfig) {
		if d > 0 {
			c.initial = d
		}
	}
}

// WithMaxDelay caps the backoff between any two attempts.
func WithMaxDelay(d time.Duration) RetryOption {
	return func(c *retryConfig) {
		if d > 0 {
			c.max = d
		}
	}
}

// WithBackoffMultiplier sets the exponential growth factor.
func WithBackoffMultiplier(m float64) RetryOption {
	return func(c *retryConfig) {
		if m > 0 {
			c.multiplier = m
		}
	}
}

// WithShouldRetry overrides the retry predicate. The default retries exactly
// the errors the taxonomy marks retryable.
func WithShouldRetry(f func(*PayerError) bool) RetryOption {
	return func(c *retryConfig) {
		if f != nil {
			c.shouldRetry = f
		}
	}
}

// WithObserver registers a callback invoked with the invocation's State
// before each backoff wait, so callers can surface retry progress. The
// observer must not block.
func WithObserver(f func(State)) RetryOption {
	return func(c *retryConfig) { c.observer = f }
}

func newRetryConfig(opts []RetryOption) retryConfig {
	c := retryConfig{
		maxAttempts: 3,
		initial:     time.Second,
		max:         30 * time.Second,
		multiplier:  2,
		shouldRetry: func(e *PayerError) bool { return e.Retryable },
		sleep:       sleepCtx,
	}
	for _, o := range opts {
		o(&c)
	}
	return c
}

// backoffDelay computes the wait before attempt+1. The ceiling is applied to
// the full product, so high attempt counts cannot overflow the wait.
func (c retryConfig) backoffDelay(attempt int) time.Duration {
	d := float64(c.initial)
	for i := 1; i < attempt; i++ {
		d *= c.multiplier
		if d >= float64(c.max) {
			return c.max
		}
	}
	if d > float64(c.max) {
		return c.max
	}
	return time.Duration(d)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// Do invokes op, retrying retryable failures with bounded exponential
// backoff. Attempts are strictly sequential: attempt N+1 never starts before
// attempt N has settled and the backoff has elapsed. On success the value is
// returned immediately. On final failure the error returned is always the
// classified *PayerError, never op's raw error, so callers only ever see
// taxonomy values from this boundary.
//
// Do does not deduplicate concurrent invocations. For operations that must be
// at-most-once against the gateway, the taxonomy's non-retryable
// classification of their business failures is the safety net, and callers
// must not run Do concurrently for the same logical operation.
func Do[T any](ctx context.Context, op func(context.Context) (T, error), opts ...RetryOption) (T, error) {
	cfg := newRetryConfig(opts)

	var zero T
	var classified *PayerError
	for attempt := 1; ; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}

		classified = Classify(err)
		if attempt == cfg.maxAttempts || !cfg.shouldRetry(classified) {
			return zero, classified
		}

		delay := cfg.backoffDelay(attempt)
		if cfg.observer != nil {
			cfg.observer(State{Attempt: attempt, IsRetrying: true, NextRetryIn: delay})
		}
		cfg.sleep(ctx, delay)
		if ctx.Err() != nil {
			return zero, classified
		}
	}
}
