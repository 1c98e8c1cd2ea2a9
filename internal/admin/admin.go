// Package admin provides the administration API for managing provider
// credentials and proxy keys.
package admin

import (
	"context"
	"log/slog"

	"github.com/costwatch/keyvault-proxy/internal/ledger"
	"github.com/costwatch/keyvault-proxy/internal/vault"
)

// Pinger reports backing-store connectivity for readiness checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler provides admin endpoints.
type Handler struct {
	credentials *vault.CredentialStore
	registry    *vault.ProxyKeyRegistry
	ledger      *ledger.Ledger
	db          Pinger
	adminToken  string
	logLevel    *slog.LevelVar
	logger      *slog.Logger
}

// NewHandler creates an admin handler.
func NewHandler(credentials *vault.CredentialStore, registry *vault.ProxyKeyRegistry, led *ledger.Ledger, db Pinger, adminToken string, logLevel *slog.LevelVar, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if logLevel == nil {
		logLevel = new(slog.LevelVar)
	}

	return &Handler{
		credentials: credentials,
		registry:    registry,
		ledger:      led,
		db:          db,
		adminToken:  adminToken,
		logLevel:    logLevel,
		logger:      logger,
	}
}
