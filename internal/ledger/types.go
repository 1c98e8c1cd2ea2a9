// Package ledger implements per-key budget accounting with atomic
// admit-or-reject semantics. Counters live behind a Backend so multi-instance
// deployments can share them through Redis while tests and single-instance
// runs use process memory.
package ledger

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LimitKind names one of the three configurable budget dimensions.
type LimitKind string

const (
	LimitTotal   LimitKind = "total"
	LimitDaily   LimitKind = "daily"
	LimitMonthly LimitKind = "monthly"
)

// Limits carries the configured budget ceilings of a proxy key.
// Nil fields impose no constraint.
type Limits struct {
	Total   *decimal.Decimal
	Daily   *decimal.Decimal
	Monthly *decimal.Decimal
}

// Snapshot is a point-in-time view of a key's spend counters, normalized to
// the current UTC day and month.
type Snapshot struct {
	TotalCost   decimal.Decimal
	DailyCost   decimal.Decimal
	MonthlyCost decimal.Decimal
	LastReset   time.Time
}

// DebitToken references a provisional debit so the actual cost can be
// reconciled after the upstream call completes.
type DebitToken struct {
	KeyID    string
	Estimate decimal.Decimal
	Limits   Limits
}

// BudgetExceededError is returned by TryDebit when admitting the estimate
// would push a configured limit past its ceiling. No counters are mutated.
type BudgetExceededError struct {
	KeyID    string
	Kind     LimitKind
	Limit    decimal.Decimal
	Spent    decimal.Decimal
	Estimate decimal.Decimal
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("%s budget exceeded for key %s: spent %s + estimate %s > limit %s",
		e.Kind, e.KeyID, e.Spent, e.Estimate, e.Limit)
}

// BudgetEvent signals a threshold crossing on a configured limit. Emission
// is best-effort and never blocks the admission path.
type BudgetEvent struct {
	KeyID      string
	LimitKind  LimitKind
	Percentage int
	Spent      decimal.Decimal
	Limit      decimal.Decimal
	At         time.Time
}

// Counters are stored as integer micro-dollars so backend arithmetic
// (including the Redis Lua scripts) stays exact.
const microExponent = 6

func toMicros(d decimal.Decimal) int64 {
	return d.Shift(microExponent).Round(0).IntPart()
}

func fromMicros(micros int64) decimal.Decimal {
	return decimal.New(micros, -microExponent)
}

// dayStamp and monthStamp identify the UTC calendar period a counter value
// belongs to; a mismatch with "now" triggers a lazy reset.
func dayStamp(now time.Time) string {
	return now.UTC().Format("2006-01-02")
}

func monthStamp(now time.Time) string {
	return now.UTC().Format("2006-01")
}
