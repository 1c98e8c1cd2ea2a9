package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateProviderKey persists a new provider key. The EncryptedSecret must
// already be sealed by the caller; raw secrets never reach this layer.
// Returns ErrDuplicate if the ID already exists.
func (s *SQLiteStorage) CreateProviderKey(ctx context.Context, key *ProviderKey) error {
	query := `
		INSERT INTO provider_keys (id, name, provider, encrypted_secret, masked_key, description, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		key.ID,
		key.Name,
		string(key.Provider),
		key.EncryptedSecret,
		key.MaskedKey,
		key.Description,
		boolToInt(key.IsActive),
		key.CreatedAt.UTC(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create provider key: %w", err)
	}
	return nil
}

// GetProviderKey retrieves a provider key by ID.
// Returns ErrNotFound if the key doesn't exist.
func (s *SQLiteStorage) GetProviderKey(ctx context.Context, id string) (*ProviderKey, error) {
	query := `
		SELECT id, name, provider, encrypted_secret, masked_key, description, is_active, created_at, last_used
		FROM provider_keys
		WHERE id = ?
	`
	return scanProviderKey(s.db.QueryRowContext(ctx, query, id))
}

// ListProviderKeys returns all provider keys ordered by creation time.
// Returns an empty slice if no keys exist.
func (s *SQLiteStorage) ListProviderKeys(ctx context.Context) ([]*ProviderKey, error) {
	query := `
		SELECT id, name, provider, encrypted_secret, masked_key, description, is_active, created_at, last_used
		FROM provider_keys
		ORDER BY created_at, id
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list provider keys: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	keys := make([]*ProviderKey, 0)
	for rows.Next() {
		key, err := scanProviderKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate provider keys: %w", err)
	}
	return keys, nil
}

// DeleteProviderKey removes a provider key by ID.
// Callers are responsible for cascading to referencing proxy keys first
// (see DeactivateProxyKeysForProvider).
// Returns ErrNotFound if the key doesn't exist.
func (s *SQLiteStorage) DeleteProviderKey(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM provider_keys WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete provider key: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete provider key: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchProviderKey updates the last_used timestamp of a provider key.
func (s *SQLiteStorage) TouchProviderKey(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE provider_keys SET last_used = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("touch provider key: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch provider key: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scan helpers.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanProviderKey(row rowScanner) (*ProviderKey, error) {
	var (
		key      ProviderKey
		provider string
		isActive int
		lastUsed sql.NullTime
	)
	err := row.Scan(
		&key.ID,
		&key.Name,
		&provider,
		&key.EncryptedSecret,
		&key.MaskedKey,
		&key.Description,
		&isActive,
		&key.CreatedAt,
		&lastUsed,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan provider key: %w", err)
	}
	key.Provider = Provider(provider)
	key.IsActive = isActive != 0
	if lastUsed.Valid {
		t := lastUsed.Time
		key.LastUsed = &t
	}
	return &key, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
