package proxy

import (
	"context"
	"fmt"
	"time"
)

// RetryConfig bounds automatic retries of idempotent upstream calls.
type RetryConfig struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryConfig allows at most 2 retries, per the pipeline contract:
// mutating calls are never auto-retried at all.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:     2,
	InitialBackoff: 100 * time.Millisecond,
	MaxBackoff:     2 * time.Second,
}

// withRetry runs fn with exponential backoff between attempts. The context
// aborts waiting immediately, so client disconnects are honored mid-backoff.
func withRetry[T any](ctx context.Context, config RetryConfig, fn func() (T, error)) (T, error) {
	var (
		result  T
		lastErr error
	)
	backoff := config.InitialBackoff

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return result, fmt.Errorf("context cancelled during retry: %w", ctx.Err())
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > config.MaxBackoff {
				backoff = config.MaxBackoff
			}
		}

		result, lastErr = fn()
		if lastErr == nil {
			return result, nil
		}
	}

	return result, lastErr
}
