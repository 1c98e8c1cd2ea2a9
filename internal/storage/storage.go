package storage

import (
	"context"
)

// Storage defines the persistence operations for the key vault.
type Storage interface {
	// Provider key operations
	CreateProviderKey(ctx context.Context, key *ProviderKey) error
	GetProviderKey(ctx context.Context, id string) (*ProviderKey, error)
	ListProviderKeys(ctx context.Context) ([]*ProviderKey, error)
	DeleteProviderKey(ctx context.Context, id string) error
	TouchProviderKey(ctx context.Context, id string) error

	// Proxy key operations
	CreateProxyKey(ctx context.Context, key *ProxyKey) error
	GetProxyKey(ctx context.Context, id string) (*ProxyKey, error)
	GetProxyKeyByHash(ctx context.Context, keyHash string) (*ProxyKey, error)
	ListProxyKeys(ctx context.Context) ([]*ProxyKey, error)
	SetProxyKeyStatus(ctx context.Context, id string, active bool) error
	DeactivateProxyKeysForProvider(ctx context.Context, providerKeyID string) error
	DeleteProxyKey(ctx context.Context, id string) error
	RecordProxyKeyUse(ctx context.Context, id string) error

	// Lifecycle
	Ping(ctx context.Context) error
	Close() error
}
