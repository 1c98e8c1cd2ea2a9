package storage

import (
	"database/sql"
	"fmt"
)

// InitSchema creates all required tables and indexes.
// This is idempotent - safe to call multiple times.
func InitSchema(db *sql.DB) error {
	// Enable foreign key constraints
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	ddlStatements := []string{
		// provider_keys table: master provider credentials, secret encrypted
		`CREATE TABLE IF NOT EXISTS provider_keys (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			provider TEXT NOT NULL,
			encrypted_secret BLOB NOT NULL,
			masked_key TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			last_used TIMESTAMP
		)`,

		// proxy_keys table: derived keys with their enforcement policy.
		// The raw bearer keyId is never stored, only its SHA-256.
		`CREATE TABLE IF NOT EXISTS proxy_keys (
			id TEXT PRIMARY KEY,
			key_hash TEXT NOT NULL UNIQUE,
			key_prefix TEXT NOT NULL,
			name TEXT NOT NULL,
			provider_key_id TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			permissions TEXT NOT NULL DEFAULT 'read',
			budget_limit TEXT,
			daily_budget_limit TEXT,
			monthly_budget_limit TEXT,
			rate_limit INTEGER,
			allowed_ips TEXT NOT NULL DEFAULT '',
			allowed_domains TEXT NOT NULL DEFAULT '',
			is_active INTEGER NOT NULL DEFAULT 1,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP,
			last_used TIMESTAMP,
			expires_at TIMESTAMP,
			total_requests INTEGER NOT NULL DEFAULT 0,
			FOREIGN KEY (provider_key_id) REFERENCES provider_keys(id)
		)`,

		// Index on key_hash for fast bearer lookups
		`CREATE INDEX IF NOT EXISTS idx_proxy_keys_hash ON proxy_keys(key_hash)`,

		// Index for cascade deactivation on provider key delete
		`CREATE INDEX IF NOT EXISTS idx_proxy_keys_provider ON proxy_keys(provider_key_id)`,
	}

	for _, stmt := range ddlStatements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute DDL: %w", err)
		}
	}

	return nil
}
