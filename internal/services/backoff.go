package services

import (
	"context"
	"time"
)

// BackoffPolicy is the shared bounded retry policy for vendor calls.
// MaxAttempts counts the first try; BaseDelay doubles after each failure.
type BackoffPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	// Retryable decides whether a failure is worth another attempt. When
	// nil, IsRetryable is used.
	Retryable func(error) bool
}

// DefaultBackoff retries transient failures twice with a doubling delay.
func DefaultBackoff() BackoffPolicy {
	return BackoffPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond}
}

// Retry runs fn under the policy, sleeping between attempts. The last error
// is returned when attempts are exhausted or the failure is permanent.
// Context cancellation aborts the wait immediately.
func (p BackoffPolicy) Retry(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}

	delay := p.BaseDelay
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		if attempt == attempts || !retryable(err) {
			return err
		}
		if delay > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
			delay *= 2
		}
	}
	return err
}
