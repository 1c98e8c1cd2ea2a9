package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryBackend keeps buckets in process memory for single-instance
// deployments and tests.
type MemoryBackend struct {
	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokensMillis int64
	last         time.Time
}

// NewMemoryBackend creates an empty in-memory bucket store.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{buckets: make(map[string]*bucket)}
}

// TakeToken implements Backend.
func (m *MemoryBackend) TakeToken(_ context.Context, keyID string, ratePerMinute int, now time.Time) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	capacity := int64(ratePerMinute) * milliToken
	b, ok := m.buckets[keyID]
	if !ok {
		// New buckets start full
		b = &bucket{tokensMillis: capacity, last: now}
		m.buckets[keyID] = b
	}

	if elapsed := now.Sub(b.last); elapsed > 0 {
		b.tokensMillis += refillMillis(elapsed, ratePerMinute)
		if b.tokensMillis > capacity {
			b.tokensMillis = capacity
		}
		b.last = now
	}

	if b.tokensMillis >= milliToken {
		b.tokensMillis -= milliToken
		return true, 0, nil
	}
	return false, retryAfterFor(milliToken-b.tokensMillis, ratePerMinute), nil
}

// Ping implements Backend. Memory is always reachable.
func (m *MemoryBackend) Ping(context.Context) error { return nil }
