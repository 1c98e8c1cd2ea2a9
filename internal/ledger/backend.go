package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Backend stores and atomically mutates spend counters. Every method that
// reads counters first applies the lazy daily/monthly rollover for the given
// time, so callers always observe current-period values.
//
// TryDebit must be a single atomic check-and-increment: two concurrent
// debits must never both pass a limit check against the same stale read.
type Backend interface {
	// TryDebit admits the estimate against all configured limits and, on
	// success, increments the three counters. Returns *BudgetExceededError
	// when a limit would be crossed, leaving counters untouched.
	TryDebit(ctx context.Context, keyID string, limits Limits, estimate decimal.Decimal, now time.Time) (Snapshot, error)

	// Adjust unconditionally adds delta (possibly negative) to the three
	// counters, flooring each at zero, and returns the updated snapshot.
	Adjust(ctx context.Context, keyID string, delta decimal.Decimal, now time.Time) (Snapshot, error)

	// Snapshot returns current counters without mutating spend.
	Snapshot(ctx context.Context, keyID string, now time.Time) (Snapshot, error)

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error
}
