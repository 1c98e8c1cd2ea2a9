// Package mockstore provides a configurable mock implementation of the
// storage interface for testing.
//
// The MockStorage type uses function fields for each method, allowing tests
// to customize behavior as needed while providing sensible defaults for
// methods that aren't customized.
package mockstore

import (
	"context"

	"github.com/costwatch/keyvault-proxy/internal/storage"
)

// MockStorage is a configurable mock implementation of storage.Storage.
// Each method can be customized by setting the corresponding function field.
// If a function field is nil, the method returns a sensible default value.
type MockStorage struct {
	// Provider key operations
	CreateProviderKeyFunc func(ctx context.Context, key *storage.ProviderKey) error
	GetProviderKeyFunc    func(ctx context.Context, id string) (*storage.ProviderKey, error)
	ListProviderKeysFunc  func(ctx context.Context) ([]*storage.ProviderKey, error)
	DeleteProviderKeyFunc func(ctx context.Context, id string) error
	TouchProviderKeyFunc  func(ctx context.Context, id string) error

	// Proxy key operations
	CreateProxyKeyFunc                 func(ctx context.Context, key *storage.ProxyKey) error
	GetProxyKeyFunc                    func(ctx context.Context, id string) (*storage.ProxyKey, error)
	GetProxyKeyByHashFunc              func(ctx context.Context, keyHash string) (*storage.ProxyKey, error)
	ListProxyKeysFunc                  func(ctx context.Context) ([]*storage.ProxyKey, error)
	SetProxyKeyStatusFunc              func(ctx context.Context, id string, active bool) error
	DeactivateProxyKeysForProviderFunc func(ctx context.Context, providerKeyID string) error
	DeleteProxyKeyFunc                 func(ctx context.Context, id string) error
	RecordProxyKeyUseFunc              func(ctx context.Context, id string) error

	// Lifecycle
	PingFunc  func(ctx context.Context) error
	CloseFunc func() error
}

// CreateProviderKey stores a new provider key.
func (m *MockStorage) CreateProviderKey(ctx context.Context, key *storage.ProviderKey) error {
	if m.CreateProviderKeyFunc != nil {
		return m.CreateProviderKeyFunc(ctx, key)
	}
	return nil
}

// GetProviderKey returns a provider key by ID.
func (m *MockStorage) GetProviderKey(ctx context.Context, id string) (*storage.ProviderKey, error) {
	if m.GetProviderKeyFunc != nil {
		return m.GetProviderKeyFunc(ctx, id)
	}
	return nil, storage.ErrNotFound
}

// ListProviderKeys returns all provider keys.
func (m *MockStorage) ListProviderKeys(ctx context.Context) ([]*storage.ProviderKey, error) {
	if m.ListProviderKeysFunc != nil {
		return m.ListProviderKeysFunc(ctx)
	}
	return nil, nil
}

// DeleteProviderKey deletes a provider key.
func (m *MockStorage) DeleteProviderKey(ctx context.Context, id string) error {
	if m.DeleteProviderKeyFunc != nil {
		return m.DeleteProviderKeyFunc(ctx, id)
	}
	return nil
}

// TouchProviderKey updates a provider key's last-used timestamp.
func (m *MockStorage) TouchProviderKey(ctx context.Context, id string) error {
	if m.TouchProviderKeyFunc != nil {
		return m.TouchProviderKeyFunc(ctx, id)
	}
	return nil
}

// CreateProxyKey stores a new proxy key.
func (m *MockStorage) CreateProxyKey(ctx context.Context, key *storage.ProxyKey) error {
	if m.CreateProxyKeyFunc != nil {
		return m.CreateProxyKeyFunc(ctx, key)
	}
	return nil
}

// GetProxyKey returns a proxy key by ID.
func (m *MockStorage) GetProxyKey(ctx context.Context, id string) (*storage.ProxyKey, error) {
	if m.GetProxyKeyFunc != nil {
		return m.GetProxyKeyFunc(ctx, id)
	}
	return nil, storage.ErrNotFound
}

// GetProxyKeyByHash returns a proxy key by its keyId hash.
func (m *MockStorage) GetProxyKeyByHash(ctx context.Context, keyHash string) (*storage.ProxyKey, error) {
	if m.GetProxyKeyByHashFunc != nil {
		return m.GetProxyKeyByHashFunc(ctx, keyHash)
	}
	return nil, storage.ErrNotFound
}

// ListProxyKeys returns all proxy keys.
func (m *MockStorage) ListProxyKeys(ctx context.Context) ([]*storage.ProxyKey, error) {
	if m.ListProxyKeysFunc != nil {
		return m.ListProxyKeysFunc(ctx)
	}
	return nil, nil
}

// SetProxyKeyStatus activates or deactivates a proxy key.
func (m *MockStorage) SetProxyKeyStatus(ctx context.Context, id string, active bool) error {
	if m.SetProxyKeyStatusFunc != nil {
		return m.SetProxyKeyStatusFunc(ctx, id, active)
	}
	return nil
}

// DeactivateProxyKeysForProvider deactivates all proxy keys for a provider key.
func (m *MockStorage) DeactivateProxyKeysForProvider(ctx context.Context, providerKeyID string) error {
	if m.DeactivateProxyKeysForProviderFunc != nil {
		return m.DeactivateProxyKeysForProviderFunc(ctx, providerKeyID)
	}
	return nil
}

// DeleteProxyKey deletes a proxy key.
func (m *MockStorage) DeleteProxyKey(ctx context.Context, id string) error {
	if m.DeleteProxyKeyFunc != nil {
		return m.DeleteProxyKeyFunc(ctx, id)
	}
	return nil
}

// RecordProxyKeyUse increments a proxy key's request counter.
func (m *MockStorage) RecordProxyKeyUse(ctx context.Context, id string) error {
	if m.RecordProxyKeyUseFunc != nil {
		return m.RecordProxyKeyUseFunc(ctx, id)
	}
	return nil
}

// Ping checks connectivity.
func (m *MockStorage) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

// Close releases resources.
func (m *MockStorage) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}
