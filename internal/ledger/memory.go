package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MemoryBackend keeps counters in process memory. Suitable for
// single-instance deployments and tests; multi-instance deployments need
// the Redis backend for cross-instance atomicity.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

type memoryEntry struct {
	totalMicros   int64
	dailyMicros   int64
	monthlyMicros int64
	day           string
	month         string
}

// NewMemoryBackend creates an empty in-memory counter store.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]*memoryEntry)}
}

// TryDebit implements Backend.
func (m *MemoryBackend) TryDebit(_ context.Context, keyID string, limits Limits, estimate decimal.Decimal, now time.Time) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.entry(keyID, now)
	estimateMicros := toMicros(estimate)

	checks := []struct {
		kind  LimitKind
		limit *decimal.Decimal
		spent int64
	}{
		{LimitTotal, limits.Total, entry.totalMicros},
		{LimitDaily, limits.Daily, entry.dailyMicros},
		{LimitMonthly, limits.Monthly, entry.monthlyMicros},
	}
	for _, check := range checks {
		if check.limit == nil {
			continue
		}
		if check.spent+estimateMicros > toMicros(*check.limit) {
			return entry.snapshot(), &BudgetExceededError{
				KeyID:    keyID,
				Kind:     check.kind,
				Limit:    *check.limit,
				Spent:    fromMicros(check.spent),
				Estimate: estimate,
			}
		}
	}

	entry.totalMicros += estimateMicros
	entry.dailyMicros += estimateMicros
	entry.monthlyMicros += estimateMicros
	return entry.snapshot(), nil
}

// Adjust implements Backend.
func (m *MemoryBackend) Adjust(_ context.Context, keyID string, delta decimal.Decimal, now time.Time) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.entry(keyID, now)
	deltaMicros := toMicros(delta)
	entry.totalMicros = floorZero(entry.totalMicros + deltaMicros)
	entry.dailyMicros = floorZero(entry.dailyMicros + deltaMicros)
	entry.monthlyMicros = floorZero(entry.monthlyMicros + deltaMicros)
	return entry.snapshot(), nil
}

// Snapshot implements Backend.
func (m *MemoryBackend) Snapshot(_ context.Context, keyID string, now time.Time) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entry(keyID, now).snapshot(), nil
}

// Ping implements Backend. Memory is always reachable.
func (m *MemoryBackend) Ping(context.Context) error { return nil }

// entry returns the counters for keyID with period rollover applied.
// Caller holds the mutex.
func (m *MemoryBackend) entry(keyID string, now time.Time) *memoryEntry {
	entry, ok := m.entries[keyID]
	if !ok {
		entry = &memoryEntry{day: dayStamp(now), month: monthStamp(now)}
		m.entries[keyID] = entry
	}
	if entry.day != dayStamp(now) {
		entry.dailyMicros = 0
		entry.day = dayStamp(now)
	}
	if entry.month != monthStamp(now) {
		entry.monthlyMicros = 0
		entry.month = monthStamp(now)
	}
	return entry
}

func (e *memoryEntry) snapshot() Snapshot {
	reset, _ := time.Parse("2006-01-02", e.day) //nolint:errcheck
	return Snapshot{
		TotalCost:   fromMicros(e.totalMicros),
		DailyCost:   fromMicros(e.dailyMicros),
		MonthlyCost: fromMicros(e.monthlyMicros),
		LastReset:   reset,
	}
}

func floorZero(v int64) int64 {
	if v < 0 {
		return 0
	}
	return v
}
