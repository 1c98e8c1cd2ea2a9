package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CreateProxyKey persists a new proxy key with its policy.
// Returns ErrDuplicate if the key hash already exists.
func (s *SQLiteStorage) CreateProxyKey(ctx context.Context, key *ProxyKey) error {
	query := `
		INSERT INTO proxy_keys (
			id, key_hash, key_prefix, name, provider_key_id, description, permissions,
			budget_limit, daily_budget_limit, monthly_budget_limit, rate_limit,
			allowed_ips, allowed_domains, is_active, created_at, expires_at, total_requests
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 0)
	`
	_, err := s.db.ExecContext(ctx, query,
		key.ID,
		key.KeyHash,
		key.KeyPrefix,
		key.Name,
		key.ProviderKeyID,
		key.Description,
		joinList(key.Permissions),
		decimalToNull(key.BudgetLimit),
		decimalToNull(key.DailyBudgetLimit),
		decimalToNull(key.MonthlyBudgetLimit),
		intToNull(key.RateLimit),
		joinList(key.AllowedIPs),
		joinList(key.AllowedDomains),
		boolToInt(key.IsActive),
		key.CreatedAt.UTC(),
		timeToNull(key.ExpiresAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create proxy key: %w", err)
	}
	return nil
}

// GetProxyKey retrieves a proxy key by ID.
// Returns ErrNotFound if the key doesn't exist.
func (s *SQLiteStorage) GetProxyKey(ctx context.Context, id string) (*ProxyKey, error) {
	return scanProxyKey(s.db.QueryRowContext(ctx, proxyKeySelect+` WHERE id = ?`, id))
}

// GetProxyKeyByHash retrieves a proxy key by the SHA-256 of its bearer keyId.
// This is the authentication lookup path.
// Returns ErrNotFound if the hash doesn't exist.
func (s *SQLiteStorage) GetProxyKeyByHash(ctx context.Context, keyHash string) (*ProxyKey, error) {
	return scanProxyKey(s.db.QueryRowContext(ctx, proxyKeySelect+` WHERE key_hash = ?`, keyHash))
}

// ListProxyKeys returns all proxy keys ordered by creation time.
// Returns an empty slice if no keys exist.
func (s *SQLiteStorage) ListProxyKeys(ctx context.Context) ([]*ProxyKey, error) {
	rows, err := s.db.QueryContext(ctx, proxyKeySelect+` ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list proxy keys: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	keys := make([]*ProxyKey, 0)
	for rows.Next() {
		key, err := scanProxyKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate proxy keys: %w", err)
	}
	return keys, nil
}

// SetProxyKeyStatus toggles a proxy key active/inactive.
// Returns ErrNotFound if the key doesn't exist.
func (s *SQLiteStorage) SetProxyKeyStatus(ctx context.Context, id string, active bool) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE proxy_keys SET is_active = ?, updated_at = ? WHERE id = ?`,
		boolToInt(active), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set proxy key status: %w", err)
	}
	return requireRow(result)
}

// DeactivateProxyKeysForProvider marks all proxy keys referencing the given
// provider key inactive. Usage history is preserved; this is the cascade
// applied when a provider key is deleted.
func (s *SQLiteStorage) DeactivateProxyKeysForProvider(ctx context.Context, providerKeyID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE proxy_keys SET is_active = 0, updated_at = ? WHERE provider_key_id = ?`,
		time.Now().UTC(), providerKeyID)
	if err != nil {
		return fmt.Errorf("deactivate proxy keys: %w", err)
	}
	return nil
}

// DeleteProxyKey hard-deletes a proxy key. Irreversible.
// Returns ErrNotFound if the key doesn't exist.
func (s *SQLiteStorage) DeleteProxyKey(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM proxy_keys WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete proxy key: %w", err)
	}
	return requireRow(result)
}

// RecordProxyKeyUse bumps total_requests and last_used after a successfully
// proxied call.
func (s *SQLiteStorage) RecordProxyKeyUse(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE proxy_keys SET total_requests = total_requests + 1, last_used = ? WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("record proxy key use: %w", err)
	}
	return requireRow(result)
}

const proxyKeySelect = `
	SELECT id, key_hash, key_prefix, name, provider_key_id, description, permissions,
	       budget_limit, daily_budget_limit, monthly_budget_limit, rate_limit,
	       allowed_ips, allowed_domains, is_active, created_at, updated_at,
	       last_used, expires_at, total_requests
	FROM proxy_keys`

func scanProxyKey(row rowScanner) (*ProxyKey, error) {
	var (
		key                 ProxyKey
		permissions         string
		budget              sql.NullString
		daily               sql.NullString
		monthly             sql.NullString
		rate                sql.NullInt64
		ips                 string
		domains             string
		isActive            int
		updatedAt, lastUsed sql.NullTime
		expiresAt           sql.NullTime
	)
	err := row.Scan(
		&key.ID,
		&key.KeyHash,
		&key.KeyPrefix,
		&key.Name,
		&key.ProviderKeyID,
		&key.Description,
		&permissions,
		&budget,
		&daily,
		&monthly,
		&rate,
		&ips,
		&domains,
		&isActive,
		&key.CreatedAt,
		&updatedAt,
		&lastUsed,
		&expiresAt,
		&key.TotalRequests,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan proxy key: %w", err)
	}

	key.Permissions = splitList(permissions)
	key.AllowedIPs = splitList(ips)
	key.AllowedDomains = splitList(domains)
	key.IsActive = isActive != 0

	if key.BudgetLimit, err = decimalFromNull(budget); err != nil {
		return nil, fmt.Errorf("scan proxy key budget_limit: %w", err)
	}
	if key.DailyBudgetLimit, err = decimalFromNull(daily); err != nil {
		return nil, fmt.Errorf("scan proxy key daily_budget_limit: %w", err)
	}
	if key.MonthlyBudgetLimit, err = decimalFromNull(monthly); err != nil {
		return nil, fmt.Errorf("scan proxy key monthly_budget_limit: %w", err)
	}
	if rate.Valid {
		r := int(rate.Int64)
		key.RateLimit = &r
	}
	if updatedAt.Valid {
		t := updatedAt.Time
		key.UpdatedAt = &t
	}
	if lastUsed.Valid {
		t := lastUsed.Time
		key.LastUsed = &t
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		key.ExpiresAt = &t
	}
	return &key, nil
}

func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// isUniqueViolation reports whether err is a SQLite unique constraint error.
// modernc.org/sqlite does not export a typed error for this, so the check is
// on the driver's message.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// joinList serializes a string set as a comma-separated column value.
func joinList(items []string) string {
	return strings.Join(items, ",")
}

// splitList reverses joinList. An empty column yields an empty slice.
func splitList(value string) []string {
	if value == "" {
		return []string{}
	}
	return strings.Split(value, ",")
}

func decimalToNull(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func decimalFromNull(v sql.NullString) (*decimal.Decimal, error) {
	if !v.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func intToNull(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func timeToNull(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
