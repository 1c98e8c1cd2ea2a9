// Package vault implements the credential store and proxy key registry: the
// write path for master provider secrets and the policy objects derived from
// them. Raw secrets exist in memory only inside Store and Reveal.
package vault

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/costwatch/keyvault-proxy/internal/storage"
)

// CredentialStore manages master provider credentials. Secrets are
// envelope-encrypted at rest and only released through Reveal, which is
// wired exclusively to the request proxy.
type CredentialStore struct {
	store     storage.Storage
	masterKey []byte
	logger    *slog.Logger
}

// NewCredentialStore creates a CredentialStore. The masterKey must be
// 32 bytes (see storage.DeriveMasterKey).
// If logger is nil, slog.Default() will be used.
func NewCredentialStore(store storage.Storage, masterKey []byte, logger *slog.Logger) (*CredentialStore, error) {
	if len(masterKey) != 32 {
		return nil, storage.ErrInvalidKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CredentialStore{store: store, masterKey: masterKey, logger: logger}, nil
}

// Store encrypts and persists a raw provider secret, returning the stored
// record with only the masked representation of the secret.
func (c *CredentialStore) Store(ctx context.Context, name string, provider storage.Provider, rawSecret, description string) (*storage.ProviderKey, error) {
	if name == "" {
		return nil, validationErr("name", "must not be blank")
	}
	if rawSecret == "" {
		return nil, validationErr("apiKey", "must not be empty")
	}
	if !provider.Valid() {
		return nil, validationErr("provider", "unknown provider %q", provider)
	}

	encrypted, err := storage.EncryptSecret(rawSecret, c.masterKey)
	if err != nil {
		return nil, fmt.Errorf("encrypt provider secret: %w", err)
	}

	key := &storage.ProviderKey{
		ID:              uuid.New().String(),
		Name:            name,
		Provider:        provider,
		EncryptedSecret: encrypted,
		MaskedKey:       MaskSecret(rawSecret),
		Description:     description,
		IsActive:        true,
		CreatedAt:       time.Now().UTC(),
	}
	if err := c.store.CreateProviderKey(ctx, key); err != nil {
		return nil, err
	}

	c.logger.Info("provider key stored", "id", key.ID, "provider", provider, "name", name)
	return key, nil
}

// Reveal decrypts the master secret of a provider key. Internal use only:
// this must never be exposed on an external-facing interface. Decryption
// failures indicate key-material corruption and are logged as fatal.
func (c *CredentialStore) Reveal(ctx context.Context, id string) (string, error) {
	key, err := c.store.GetProviderKey(ctx, id)
	if err != nil {
		return "", err
	}
	rawSecret, err := storage.DecryptSecret(key.EncryptedSecret, c.masterKey)
	if err != nil {
		if errors.Is(err, storage.ErrDecryption) {
			c.logger.Error("provider key material corrupted", "id", id, "provider", key.Provider)
		}
		return "", err
	}
	return rawSecret, nil
}

// Get returns a provider key record (secret encrypted, mask only).
func (c *CredentialStore) Get(ctx context.Context, id string) (*storage.ProviderKey, error) {
	return c.store.GetProviderKey(ctx, id)
}

// List returns all provider key records.
func (c *CredentialStore) List(ctx context.Context) ([]*storage.ProviderKey, error) {
	return c.store.ListProviderKeys(ctx)
}

// Touch updates the last_used timestamp after a proxied call.
func (c *CredentialStore) Touch(ctx context.Context, id string) error {
	return c.store.TouchProviderKey(ctx, id)
}

// Delete removes a provider key. All proxy keys referencing it are
// deactivated first so their usage history survives; in-flight requests
// already holding a decrypted secret are unaffected.
func (c *CredentialStore) Delete(ctx context.Context, id string) error {
	if _, err := c.store.GetProviderKey(ctx, id); err != nil {
		return err
	}
	if err := c.store.DeactivateProxyKeysForProvider(ctx, id); err != nil {
		return err
	}
	if err := c.store.DeleteProviderKey(ctx, id); err != nil {
		return err
	}
	c.logger.Info("provider key deleted", "id", id)
	return nil
}
