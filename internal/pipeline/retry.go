package pipeline

import (
	"context"
	"time"
)

// Retry backoff constants for transient stage failures.
// Schedule: 500ms → 2s → 8s → 30s (capped)
const (
	RetryInitialBackoff = 500 * time.Millisecond // First retry after half a second
	RetryBackoffFactor  = 4                      // Multiply by 4 each retry
	RetryMaxBackoff     = 30 * time.Second       // Cap at 30 seconds
)

// backoffDelay returns the wait before retry number attempt (0-based).
func backoffDelay(attempt int) time.Duration {
	delay := RetryInitialBackoff
	for i := 0; i < attempt; i++ {
		delay *= RetryBackoffFactor
		if delay >= RetryMaxBackoff {
			return RetryMaxBackoff
		}
	}
	return delay
}

// sleepCtx waits for d or until ctx is done, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
