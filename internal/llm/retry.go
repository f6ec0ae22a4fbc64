package llm

import (
	"context"
	"fmt"
	"time"

	"filechat-ai/internal/contextutil"
)

// RetryPolicy bounds retries of external calls.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// BaseDelay is the backoff before the second attempt; it doubles per attempt.
	BaseDelay time.Duration
	// MaxDelay caps a single backoff.
	MaxDelay time.Duration
	// Timeout bounds each attempt. Zero means no per-attempt timeout.
	Timeout time.Duration
	// Wait, when set, runs before every attempt on the caller's context.
	// Time spent in Wait does not count against Timeout.
	Wait func(ctx context.Context) error
}

// DefaultRetryPolicy returns 3 attempts with 200ms exponential backoff capped at 5s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   200 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		Timeout:     30 * time.Second,
	}
}

// Delay returns the backoff after the given failed attempt (0-based).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 30 {
		attempt = 30
	}
	d := p.BaseDelay << attempt
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// Retry runs fn until it succeeds, returns a non-retryable error, or the
// attempts run out. Each attempt gets its own timeout. The last error is
// returned unchanged.
func Retry(ctx context.Context, policy RetryPolicy, op string, fn func(ctx context.Context) error) error {
	logger := contextutil.LoggerFromContext(ctx)
	attempts := max(policy.MaxAttempts, 1)

	var err error
	for attempt := range attempts {
		if attempt > 0 {
			delay := policy.Delay(attempt - 1)
			logger.WarnContext(ctx, "retrying external call",
				"op", op, "attempt", attempt+1, "max_attempts", attempts, "delay", delay, "error", err)

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return err
			case <-timer.C:
			}
		}

		if policy.Wait != nil {
			if werr := policy.Wait(ctx); werr != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				// A limiter may refuse a wait that would pass the caller's deadline.
				return fmt.Errorf("%s: %w: %v", op, context.DeadlineExceeded, werr)
			}
		}

		err = callWithTimeout(ctx, policy.Timeout, fn)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil || !IsRetryable(err) {
			return err
		}
	}

	logger.ErrorContext(ctx, "external call failed after retries", "op", op, "attempts", attempts, "error", err)
	return err
}

func callWithTimeout(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(callCtx)
}
