package ledger

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/costwatch/keyvault-proxy/internal/metrics"
)

// budget alert thresholds, percent of a configured limit
var thresholds = []int{50, 80, 90, 100}

// Ledger enforces budget ceilings with provisional debits reconciled after
// the upstream call. Threshold events are emitted best-effort through a
// buffered channel; a full channel drops the event rather than blocking
// admission.
type Ledger struct {
	backend  Backend
	notifier Notifier
	logger   *slog.Logger
	events   chan BudgetEvent
	done     chan struct{}
}

// NewLedger creates a Ledger and starts its event-delivery goroutine.
// If notifier is nil, events go to a LogNotifier. Call Close to stop.
func NewLedger(backend Backend, notifier Notifier, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = &LogNotifier{Logger: logger}
	}
	l := &Ledger{
		backend:  backend,
		notifier: notifier,
		logger:   logger,
		events:   make(chan BudgetEvent, 64),
		done:     make(chan struct{}),
	}
	go l.deliverEvents()
	return l
}

// TryDebit atomically admits the estimated cost against all configured
// limits and reserves it. Returns *BudgetExceededError (unwrapped from the
// backend) when any limit would be crossed.
func (l *Ledger) TryDebit(ctx context.Context, keyID string, limits Limits, estimate decimal.Decimal) (*DebitToken, error) {
	now := time.Now()
	snap, err := l.backend.TryDebit(ctx, keyID, limits, estimate, now)
	if err != nil {
		return nil, err
	}

	l.emitCrossings(keyID, limits, snap, estimate, now)
	return &DebitToken{KeyID: keyID, Estimate: estimate, Limits: limits}, nil
}

// Reconcile adjusts the counters from the provisional estimate to the
// actual cost. A negative difference refunds the overshoot.
func (l *Ledger) Reconcile(ctx context.Context, token *DebitToken, actual decimal.Decimal) error {
	now := time.Now()
	snap, err := l.backend.Adjust(ctx, token.KeyID, actual.Sub(token.Estimate), now)
	if err != nil {
		return err
	}
	// Reconciling upward can cross a threshold the estimate did not.
	if actual.GreaterThan(token.Estimate) {
		l.emitCrossings(token.KeyID, token.Limits, snap, actual.Sub(token.Estimate), now)
	}
	return nil
}

// Refund releases the full provisional debit, used when the upstream call
// fails entirely.
func (l *Ledger) Refund(ctx context.Context, token *DebitToken) error {
	_, err := l.backend.Adjust(ctx, token.KeyID, token.Estimate.Neg(), time.Now())
	return err
}

// Snapshot returns current spend counters for a key.
func (l *Ledger) Snapshot(ctx context.Context, keyID string) (Snapshot, error) {
	return l.backend.Snapshot(ctx, keyID, time.Now())
}

// Ping verifies the counter store is reachable.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.backend.Ping(ctx)
}

// Close stops event delivery. Pending buffered events are dropped.
func (l *Ledger) Close() {
	close(l.done)
}

// emitCrossings queues one event per threshold newly crossed by the debit
// that produced post-debit snapshot snap.
func (l *Ledger) emitCrossings(keyID string, limits Limits, snap Snapshot, amount decimal.Decimal, now time.Time) {
	dims := []struct {
		kind  LimitKind
		limit *decimal.Decimal
		spent decimal.Decimal
	}{
		{LimitTotal, limits.Total, snap.TotalCost},
		{LimitDaily, limits.Daily, snap.DailyCost},
		{LimitMonthly, limits.Monthly, snap.MonthlyCost},
	}
	for _, dim := range dims {
		if dim.limit == nil || dim.limit.IsZero() {
			continue
		}
		before := dim.spent.Sub(amount)
		for _, threshold := range thresholds {
			mark := dim.limit.Mul(decimal.New(int64(threshold), -2))
			if before.LessThan(mark) && dim.spent.GreaterThanOrEqual(mark) {
				l.queue(BudgetEvent{
					KeyID:      keyID,
					LimitKind:  dim.kind,
					Percentage: threshold,
					Spent:      dim.spent,
					Limit:      *dim.limit,
					At:         now,
				})
			}
		}
	}
}

// queue enqueues an event without ever blocking the caller.
func (l *Ledger) queue(event BudgetEvent) {
	select {
	case l.events <- event:
	default:
		l.logger.Debug("budget event dropped, queue full", "key_id", event.KeyID)
	}
}

func (l *Ledger) deliverEvents() {
	for {
		select {
		case event := <-l.events:
			metrics.RecordBudgetEvent(string(event.LimitKind), event.Percentage)
			l.notifier.Notify(event)
		case <-l.done:
			return
		}
	}
}
