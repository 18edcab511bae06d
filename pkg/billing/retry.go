package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
)

// RetryPolicy bounds retries of financial mutations that failed with ErrProcessorUnavailable.
type RetryPolicy struct {
	MaxRetries uint64
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryPolicy allows three attempts in total.
var DefaultRetryPolicy = RetryPolicy{
	MaxRetries: 2,
	BaseDelay:  200 * time.Millisecond,
	MaxDelay:   2 * time.Second,
}

func (p RetryPolicy) backoff() retry.Backoff {
	b := retry.NewExponential(max(p.BaseDelay, time.Millisecond))
	b = retry.WithJitterPercent(20, b)
	if p.MaxDelay > 0 {
		b = retry.WithCappedDuration(p.MaxDelay, b)
	}
	return retry.WithMaxRetries(p.MaxRetries, b)
}

// withRetry runs fn until it succeeds, fails with a non-transient error, or the policy is exhausted.
func withRetry[T any](ctx context.Context, p RetryPolicy, fn func(context.Context) (T, error)) (T, error) {
	return retry.DoValue(ctx, p.backoff(), func(ctx context.Context) (T, error) {
		v, err := fn(ctx)
		if errors.Is(err, ErrProcessorUnavailable) {
			return v, retry.RetryableError(err)
		}
		return v, err
	})
}

// idempotencyKey returns the caller's key from ctx, or a fresh one scoped to op.
func idempotencyKey(ctx context.Context, op string) string {
	if key, ok := IdempotencyKeyFromContext(ctx); ok {
		return op + ":" + key
	}
	return op + ":" + uuid.NewString()
}
