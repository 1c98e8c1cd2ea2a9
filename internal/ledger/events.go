package ledger

import "log/slog"

// Notifier receives budget threshold events. Implementations must be fast or
// internally asynchronous; they are called from the ledger's event goroutine.
type Notifier interface {
	Notify(event BudgetEvent)
}

// LogNotifier writes budget events to the structured log. It is the default
// destination; the dashboard's alerting collaborator can replace it.
type LogNotifier struct {
	Logger *slog.Logger
}

// Notify implements Notifier.
func (n *LogNotifier) Notify(event BudgetEvent) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("budget threshold crossed",
		"key_id", event.KeyID,
		"limit_kind", string(event.LimitKind),
		"percentage", event.Percentage,
		"spent", event.Spent.String(),
		"limit", event.Limit.String())
}
