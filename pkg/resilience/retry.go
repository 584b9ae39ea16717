package resilience

import (
	"context"
	"time"
)

// Retry runs op up to maxAttempts times, sleeping per the backoff strategy
// between attempts. The retryable predicate decides which errors are worth
// another attempt; errors it rejects (validation failures, unknown merchants)
// are returned immediately. Context cancellation also stops the loop.
func Retry(ctx context.Context, maxAttempts int, backoff BackoffStrategy, retryable func(error) bool, op func(ctx context.Context) error) error {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(backoff.NextDelay(attempt - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}
