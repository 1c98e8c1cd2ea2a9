// Package ratelimit implements per-key token-bucket admission control.
// Buckets live behind a Backend so multiple gateway instances can share
// state through Redis; consumption is a single atomic check-and-decrement.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// RateLimitedError is returned when a key's bucket has no token available.
type RateLimitedError struct {
	KeyID      string
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded for key %s, retry after %s", e.KeyID, e.RetryAfter)
}

// Backend stores bucket state and performs the atomic take.
// ratePerMinute is both the bucket capacity and the per-minute refill rate.
// On rejection the returned duration is the time until a token is available.
type Backend interface {
	TakeToken(ctx context.Context, keyID string, ratePerMinute int, now time.Time) (admitted bool, retryAfter time.Duration, err error)
	Ping(ctx context.Context) error
}

// Limiter is the admission-control front end used by the request pipeline.
type Limiter struct {
	backend Backend
}

// NewLimiter creates a Limiter over the given backend.
func NewLimiter(backend Backend) *Limiter {
	return &Limiter{backend: backend}
}

// TryConsume takes one token from the key's bucket. A nil rateLimit means
// the key is unlimited and is admitted without touching the backend.
// Returns *RateLimitedError when the bucket is empty.
func (l *Limiter) TryConsume(ctx context.Context, keyID string, rateLimit *int) error {
	if rateLimit == nil {
		return nil
	}
	admitted, retryAfter, err := l.backend.TakeToken(ctx, keyID, *rateLimit, time.Now())
	if err != nil {
		return err
	}
	if !admitted {
		return &RateLimitedError{KeyID: keyID, RetryAfter: retryAfter}
	}
	return nil
}

// Ping verifies the bucket store is reachable.
func (l *Limiter) Ping(ctx context.Context) error {
	return l.backend.Ping(ctx)
}

// Bucket arithmetic is done in integer milli-tokens to stay exact in both
// backends: capacity = rate*1000, refill = elapsedMs*rate/60 (rate/60
// milli-tokens per millisecond), one request consumes 1000.
const milliToken = 1000

func refillMillis(elapsed time.Duration, ratePerMinute int) int64 {
	return elapsed.Milliseconds() * int64(ratePerMinute) / 60
}

func retryAfterFor(deficitMillis int64, ratePerMinute int) time.Duration {
	// ceil(deficit * 60 / rate) milliseconds until the next full token
	ms := (deficitMillis*60 + int64(ratePerMinute) - 1) / int64(ratePerMinute)
	return time.Duration(ms) * time.Millisecond
}
