// Package txn holds the retry policy shared by every money-moving transaction.
package txn

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

var ErrRetriesExhausted = errors.New("transaction retries exhausted")

type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Jitter      time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   10 * time.Millisecond,
		Jitter:      100 * time.Millisecond,
	}
}

// OnRetry is called before each sleep with the attempt that just failed.
type OnRetry func(attempt int, err error)

// WithRetries runs fn until it succeeds, returns an error isRetryable rejects,
// or MaxAttempts is reached. Exhaustion yields an error matching both
// ErrRetriesExhausted and the last failure.
func WithRetries[T any](
	ctx context.Context,
	policy Policy,
	isRetryable func(error) bool,
	onRetry OnRetry,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	var zero T
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if !isRetryable(err) {
			return zero, err
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		if onRetry != nil {
			onRetry(attempt, err)
		}
		if err := sleep(ctx, policy.backoff()); err != nil {
			return zero, err
		}
	}

	return zero, fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, lastErr)
}

func (p Policy) backoff() time.Duration {
	d := p.BaseDelay
	if p.Jitter > 0 {
		d += time.Duration(rand.Int63n(int64(p.Jitter)))
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
