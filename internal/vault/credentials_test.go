package vault

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/costwatch/keyvault-proxy/internal/storage"
	"github.com/costwatch/keyvault-proxy/internal/testutil/mockstore"
)

func testMasterKey(t *testing.T) []byte {
	t.Helper()
	key, err := storage.DeriveMasterKey("test vault passphrase")
	if err != nil {
		t.Fatalf("DeriveMasterKey() error = %v", err)
	}
	return key
}

func newTestCredentialStore(t *testing.T, store storage.Storage) *CredentialStore {
	t.Helper()
	c, err := NewCredentialStore(store, testMasterKey(t), nil)
	if err != nil {
		t.Fatalf("NewCredentialStore() error = %v", err)
	}
	return c
}

func TestNewCredentialStoreRejectsBadKey(t *testing.T) {
	if _, err := NewCredentialStore(&mockstore.MockStorage{}, []byte("short"), nil); !errors.Is(err, storage.ErrInvalidKey) {
		t.Fatalf("NewCredentialStore() error = %v, want ErrInvalidKey", err)
	}
}

func TestCredentialStoreStore(t *testing.T) {
	var created *storage.ProviderKey
	mock := &mockstore.MockStorage{
		CreateProviderKeyFunc: func(_ context.Context, key *storage.ProviderKey) error {
			created = key
			return nil
		},
	}
	c := newTestCredentialStore(t, mock)

	rawSecret := "sk-proj-abcdefghij1234567890"
	key, err := c.Store(context.Background(), "openai prod", storage.ProviderOpenAI, rawSecret, "main account")
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	if created == nil {
		t.Fatal("nothing persisted")
	}
	if key.ID == "" {
		t.Error("ID not assigned")
	}
	if !key.IsActive {
		t.Error("stored key should be active")
	}
	if key.MaskedKey != "sk-pro...7890" {
		t.Errorf("MaskedKey = %q, want sk-pro...7890", key.MaskedKey)
	}
	// The raw secret must not appear anywhere in the persisted record
	if bytes.Contains(created.EncryptedSecret, []byte(rawSecret)) {
		t.Error("encrypted secret contains the raw secret")
	}
	if created.MaskedKey == rawSecret {
		t.Error("masked key equals the raw secret")
	}
}

func TestCredentialStoreStoreValidation(t *testing.T) {
	c := newTestCredentialStore(t, &mockstore.MockStorage{})
	ctx := context.Background()

	tests := []struct {
		name      string
		keyName   string
		provider  storage.Provider
		secret    string
		wantField string
	}{
		{"blank name", "", storage.ProviderOpenAI, "sk-x", "name"},
		{"empty secret", "key", storage.ProviderOpenAI, "", "apiKey"},
		{"unknown provider", "key", "not-a-provider", "sk-x", "provider"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Store(ctx, tt.keyName, tt.provider, tt.secret, "")
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Store() error = %v, want *ValidationError", err)
			}
			if vErr.Field != tt.wantField {
				t.Fatalf("validation failed on %q, want %q", vErr.Field, tt.wantField)
			}
		})
	}
}

func TestCredentialStoreRevealRoundTrip(t *testing.T) {
	var created *storage.ProviderKey
	mock := &mockstore.MockStorage{
		CreateProviderKeyFunc: func(_ context.Context, key *storage.ProviderKey) error {
			created = key
			return nil
		},
		GetProviderKeyFunc: func(_ context.Context, id string) (*storage.ProviderKey, error) {
			if created != nil && created.ID == id {
				return created, nil
			}
			return nil, storage.ErrNotFound
		},
	}
	c := newTestCredentialStore(t, mock)
	ctx := context.Background()

	rawSecret := "sk-ant-REDACTED"
	key, err := c.Store(ctx, "anthropic", storage.ProviderAnthropic, rawSecret, "")
	if err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	got, err := c.Reveal(ctx, key.ID)
	if err != nil {
		t.Fatalf("Reveal() error = %v", err)
	}
	if got != rawSecret {
		t.Fatalf("Reveal() = %q, want original secret", got)
	}
}

func TestCredentialStoreRevealCorrupted(t *testing.T) {
	mock := &mockstore.MockStorage{
		GetProviderKeyFunc: func(_ context.Context, id string) (*storage.ProviderKey, error) {
			return &storage.ProviderKey{ID: id, EncryptedSecret: []byte("garbage")}, nil
		},
	}
	c := newTestCredentialStore(t, mock)

	if _, err := c.Reveal(context.Background(), "any"); !errors.Is(err, storage.ErrDecryption) {
		t.Fatalf("Reveal() error = %v, want ErrDecryption", err)
	}
}

func TestCredentialStoreDeleteCascades(t *testing.T) {
	var calls []string
	mock := &mockstore.MockStorage{
		GetProviderKeyFunc: func(_ context.Context, id string) (*storage.ProviderKey, error) {
			return &storage.ProviderKey{ID: id}, nil
		},
		DeactivateProxyKeysForProviderFunc: func(_ context.Context, providerKeyID string) error {
			calls = append(calls, "deactivate:"+providerKeyID)
			return nil
		},
		DeleteProviderKeyFunc: func(_ context.Context, id string) error {
			calls = append(calls, "delete:"+id)
			return nil
		},
	}
	c := newTestCredentialStore(t, mock)

	if err := c.Delete(context.Background(), "prov-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	// Derived keys are deactivated before the credential disappears
	want := []string{"deactivate:prov-1", "delete:prov-1"}
	if len(calls) != 2 || calls[0] != want[0] || calls[1] != want[1] {
		t.Fatalf("Delete() call order = %v, want %v", calls, want)
	}
}

func TestCredentialStoreDeleteMissing(t *testing.T) {
	c := newTestCredentialStore(t, &mockstore.MockStorage{})
	if err := c.Delete(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Delete() error = %v, want ErrNotFound", err)
	}
}
