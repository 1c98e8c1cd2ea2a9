package vault

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/costwatch/keyvault-proxy/internal/storage"
)

// ProxyKeyRegistry manages proxy key lifecycle: creation against a validated
// policy, bearer authentication, status toggling, and hard deletion.
type ProxyKeyRegistry struct {
	store  storage.Storage
	logger *slog.Logger
}

// NewProxyKeyRegistry creates a ProxyKeyRegistry.
// If logger is nil, slog.Default() will be used.
func NewProxyKeyRegistry(store storage.Storage, logger *slog.Logger) *ProxyKeyRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProxyKeyRegistry{store: store, logger: logger}
}

// Create validates the policy, generates an opaque bearer keyId, and
// persists the proxy key. The raw keyId is returned exactly once here and
// never stored; callers must show it to the user immediately.
func (r *ProxyKeyRegistry) Create(ctx context.Context, policy *Policy) (*storage.ProxyKey, string, error) {
	permissions, err := policy.Validate()
	if err != nil {
		return nil, "", err
	}

	providerKey, err := r.store.GetProviderKey(ctx, policy.ProviderKeyID)
	if err != nil {
		return nil, "", err
	}
	if !providerKey.IsActive {
		return nil, "", validationErr("providerKeyId", "provider key is inactive")
	}

	rawKeyID, err := NewKeyID()
	if err != nil {
		return nil, "", err
	}

	key := &storage.ProxyKey{
		ID:                 uuid.New().String(),
		KeyHash:            storage.HashKeyID(rawKeyID),
		KeyPrefix:          KeyIDDisplayPrefix(rawKeyID),
		Name:               policy.Name,
		ProviderKeyID:      policy.ProviderKeyID,
		Description:        policy.Description,
		Permissions:        permissions,
		BudgetLimit:        policy.BudgetLimit,
		DailyBudgetLimit:   policy.DailyBudgetLimit,
		MonthlyBudgetLimit: policy.MonthlyBudgetLimit,
		RateLimit:          policy.RateLimit,
		AllowedIPs:         policy.AllowedIPs,
		AllowedDomains:     policy.AllowedDomains,
		IsActive:           true,
		CreatedAt:          time.Now().UTC(),
		ExpiresAt:          policy.ExpiresAt,
	}
	if err := r.store.CreateProxyKey(ctx, key); err != nil {
		return nil, "", fmt.Errorf("persist proxy key: %w", err)
	}

	r.logger.Info("proxy key created",
		"id", key.ID,
		"name", key.Name,
		"provider_key_id", key.ProviderKeyID,
		"key_prefix", key.KeyPrefix)
	return key, rawKeyID, nil
}

// Authenticate resolves a raw bearer keyId to its proxy key record via the
// stored hash. Returns storage.ErrNotFound for unknown keys; active/expiry
// checks are the access guard's job so rejections carry the right reason.
func (r *ProxyKeyRegistry) Authenticate(ctx context.Context, rawKeyID string) (*storage.ProxyKey, error) {
	return r.store.GetProxyKeyByHash(ctx, storage.HashKeyID(rawKeyID))
}

// Get returns a proxy key by ID.
func (r *ProxyKeyRegistry) Get(ctx context.Context, id string) (*storage.ProxyKey, error) {
	return r.store.GetProxyKey(ctx, id)
}

// List returns all proxy keys.
func (r *ProxyKeyRegistry) List(ctx context.Context) ([]*storage.ProxyKey, error) {
	return r.store.ListProxyKeys(ctx)
}

// UpdateStatus toggles a proxy key active or inactive and returns the
// updated record.
func (r *ProxyKeyRegistry) UpdateStatus(ctx context.Context, id string, active bool) (*storage.ProxyKey, error) {
	if err := r.store.SetProxyKeyStatus(ctx, id, active); err != nil {
		return nil, err
	}
	r.logger.Info("proxy key status updated", "id", id, "is_active", active)
	return r.store.GetProxyKey(ctx, id)
}

// Delete hard-deletes a proxy key. Irreversible.
func (r *ProxyKeyRegistry) Delete(ctx context.Context, id string) error {
	if err := r.store.DeleteProxyKey(ctx, id); err != nil {
		return err
	}
	r.logger.Info("proxy key deleted", "id", id)
	return nil
}

// RecordUse bumps usage bookkeeping after a successfully proxied call.
func (r *ProxyKeyRegistry) RecordUse(ctx context.Context, id string) error {
	return r.store.RecordProxyKeyUse(ctx, id)
}
