package retry

import (
	"context"
	"math/rand"
	"time"
)

// Policy configures retry-with-backoff for calls to external services.
// Delay before attempt n (1-based, n >= 2) is BaseDelay * 2^(n-2) plus up to
// Jitter of random noise.
type Policy struct {
	MaxAttempts    int
	BaseDelay      time.Duration
	Jitter         time.Duration
	AttemptTimeout time.Duration
}

// Default is the reference policy for outbound dispatch and LLM calls:
// 3 attempts, 1s base delay doubling, 500ms jitter, 30s per attempt.
func Default() Policy {
	return Policy{
		MaxAttempts:    3,
		BaseDelay:      time.Second,
		Jitter:         500 * time.Millisecond,
		AttemptTimeout: 30 * time.Second,
	}
}

// Do runs fn until it succeeds or MaxAttempts is exhausted. Each attempt
// gets its own timeout-bounded context; a timed-out attempt counts as a
// failed attempt. The last error is returned on exhaustion.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	delay := p.BaseDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			wait := delay
			if p.Jitter > 0 {
				wait += time.Duration(rand.Int63n(int64(p.Jitter)))
			}
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return ctx.Err()
			}
			delay *= 2
		}

		attemptCtx := ctx
		var cancel context.CancelFunc
		if p.AttemptTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
		}
		lastErr = fn(attemptCtx)
		if cancel != nil {
			cancel()
		}
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return lastErr
}
