package storage

import (
	"bytes"
	"context"
	"errors"
	"testing"
)

func TestProviderKeyCRUD(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	key := newTestProviderKey("pk-id-1", "openai production")
	if err := s.CreateProviderKey(ctx, key); err != nil {
		t.Fatalf("CreateProviderKey() error = %v", err)
	}

	got, err := s.GetProviderKey(ctx, key.ID)
	if err != nil {
		t.Fatalf("GetProviderKey() error = %v", err)
	}
	if got.Name != key.Name {
		t.Errorf("Name = %q, want %q", got.Name, key.Name)
	}
	if got.Provider != ProviderOpenAI {
		t.Errorf("Provider = %q, want %q", got.Provider, ProviderOpenAI)
	}
	if !bytes.Equal(got.EncryptedSecret, key.EncryptedSecret) {
		t.Error("EncryptedSecret mismatch")
	}
	if got.MaskedKey != key.MaskedKey {
		t.Errorf("MaskedKey = %q, want %q", got.MaskedKey, key.MaskedKey)
	}
	if !got.IsActive {
		t.Error("IsActive = false, want true")
	}
	if got.LastUsed != nil {
		t.Error("LastUsed should be nil for a fresh key")
	}

	keys, err := s.ListProviderKeys(ctx)
	if err != nil {
		t.Fatalf("ListProviderKeys() error = %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("ListProviderKeys() returned %d keys, want 1", len(keys))
	}

	if err := s.DeleteProviderKey(ctx, key.ID); err != nil {
		t.Fatalf("DeleteProviderKey() error = %v", err)
	}
	if _, err := s.GetProviderKey(ctx, key.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetProviderKey() after delete error = %v, want ErrNotFound", err)
	}
}

func TestProviderKeyDuplicateID(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	key := newTestProviderKey("pk-id-1", "first")
	if err := s.CreateProviderKey(ctx, key); err != nil {
		t.Fatalf("CreateProviderKey() error = %v", err)
	}

	dup := newTestProviderKey("pk-id-1", "second")
	if err := s.CreateProviderKey(ctx, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("CreateProviderKey() duplicate error = %v, want ErrDuplicate", err)
	}
}

func TestProviderKeyNotFound(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	if _, err := s.GetProviderKey(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetProviderKey() error = %v, want ErrNotFound", err)
	}
	if err := s.DeleteProviderKey(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("DeleteProviderKey() error = %v, want ErrNotFound", err)
	}
	if err := s.TouchProviderKey(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("TouchProviderKey() error = %v, want ErrNotFound", err)
	}
}

func TestTouchProviderKey(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	key := newTestProviderKey("pk-id-1", "openai")
	if err := s.CreateProviderKey(ctx, key); err != nil {
		t.Fatalf("CreateProviderKey() error = %v", err)
	}

	if err := s.TouchProviderKey(ctx, key.ID); err != nil {
		t.Fatalf("TouchProviderKey() error = %v", err)
	}

	got, err := s.GetProviderKey(ctx, key.ID)
	if err != nil {
		t.Fatalf("GetProviderKey() error = %v", err)
	}
	if got.LastUsed == nil {
		t.Fatal("LastUsed not set after touch")
	}
}

func TestListProviderKeysEmpty(t *testing.T) {
	s := newTestStorage(t)

	keys, err := s.ListProviderKeys(context.Background())
	if err != nil {
		t.Fatalf("ListProviderKeys() error = %v", err)
	}
	if keys == nil {
		t.Fatal("ListProviderKeys() = nil, want empty slice")
	}
	if len(keys) != 0 {
		t.Fatalf("ListProviderKeys() returned %d keys, want 0", len(keys))
	}
}
