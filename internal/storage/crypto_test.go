package storage

import (
	"bytes"
	"errors"
	"testing"
)

func testMasterKey(t *testing.T) []byte {
	t.Helper()
	key, err := DeriveMasterKey("correct horse battery staple")
	if err != nil {
		t.Fatalf("DeriveMasterKey() error = %v", err)
	}
	return key
}

func TestDeriveMasterKey(t *testing.T) {
	key := testMasterKey(t)
	if len(key) != 32 {
		t.Fatalf("derived key length = %d, want 32", len(key))
	}

	// Same passphrase derives the same key
	again, err := DeriveMasterKey("correct horse battery staple")
	if err != nil {
		t.Fatalf("DeriveMasterKey() error = %v", err)
	}
	if !bytes.Equal(key, again) {
		t.Fatal("derivation is not deterministic")
	}

	other, err := DeriveMasterKey("a different passphrase entirely")
	if err != nil {
		t.Fatalf("DeriveMasterKey() error = %v", err)
	}
	if bytes.Equal(key, other) {
		t.Fatal("different passphrases derived the same key")
	}

	if _, err := DeriveMasterKey(""); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("DeriveMasterKey(\"\") error = %v, want ErrInvalidKey", err)
	}
}

func TestEncryptDecryptSecret(t *testing.T) {
	masterKey := testMasterKey(t)

	tests := []struct {
		name      string
		secret    string
		key       []byte
		wantError error
	}{
		{
			name:   "successful round-trip",
			secret: "sk-proj-abcdef1234567890",
			key:    masterKey,
		},
		{
			name:   "empty secret",
			secret: "",
			key:    masterKey,
		},
		{
			name:   "very long secret",
			secret: string(make([]byte, 10000)) + "tail",
			key:    masterKey,
		},
		{
			name:   "secret with special characters",
			secret: "key!@#$%^&*(){}[]|:;<>?,./~`",
			key:    masterKey,
		},
		{
			name:      "master key too short",
			secret:    "sk-test",
			key:       []byte("short"),
			wantError: ErrInvalidKey,
		},
		{
			name:      "master key too long",
			secret:    "sk-test",
			key:       make([]byte, 33),
			wantError: ErrInvalidKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob, err := EncryptSecret(tt.secret, tt.key)
			if tt.wantError != nil {
				if !errors.Is(err, tt.wantError) {
					t.Fatalf("EncryptSecret() error = %v, want %v", err, tt.wantError)
				}
				return
			}
			if err != nil {
				t.Fatalf("EncryptSecret() error = %v", err)
			}

			// Ciphertext must not contain the raw secret
			if tt.secret != "" && bytes.Contains(blob, []byte(tt.secret)) {
				t.Fatal("blob contains the raw secret")
			}

			got, err := DecryptSecret(blob, tt.key)
			if err != nil {
				t.Fatalf("DecryptSecret() error = %v", err)
			}
			if got != tt.secret {
				t.Fatalf("DecryptSecret() = %q, want %q", got, tt.secret)
			}
		})
	}
}

func TestEncryptSecretRandomDataKey(t *testing.T) {
	// Two encryptions of the same secret differ because each gets a fresh
	// data key and nonces.
	masterKey := testMasterKey(t)

	blob1, err := EncryptSecret("sk-same-secret", masterKey)
	if err != nil {
		t.Fatalf("first encryption failed: %v", err)
	}
	blob2, err := EncryptSecret("sk-same-secret", masterKey)
	if err != nil {
		t.Fatalf("second encryption failed: %v", err)
	}
	if bytes.Equal(blob1, blob2) {
		t.Fatal("repeated encryption produced identical blobs")
	}
}

func TestDecryptSecretWrongKey(t *testing.T) {
	masterKey := testMasterKey(t)
	wrongKey, err := DeriveMasterKey("not the right passphrase")
	if err != nil {
		t.Fatalf("DeriveMasterKey() error = %v", err)
	}

	blob, err := EncryptSecret("sk-secret", masterKey)
	if err != nil {
		t.Fatalf("EncryptSecret() error = %v", err)
	}

	if _, err := DecryptSecret(blob, wrongKey); !errors.Is(err, ErrDecryption) {
		t.Fatalf("DecryptSecret() with wrong key error = %v, want ErrDecryption", err)
	}
}

func TestDecryptSecretTampered(t *testing.T) {
	masterKey := testMasterKey(t)

	blob, err := EncryptSecret("sk-secret", masterKey)
	if err != nil {
		t.Fatalf("EncryptSecret() error = %v", err)
	}

	tests := []struct {
		name string
		blob []byte
	}{
		{"empty blob", []byte{}},
		{"truncated blob", blob[:20]},
		{"flipped bit in wrapped key", flipBit(blob, 15)},
		{"flipped bit in sealed secret", flipBit(blob, len(blob)-5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecryptSecret(tt.blob, masterKey); !errors.Is(err, ErrDecryption) {
				t.Fatalf("DecryptSecret() error = %v, want ErrDecryption", err)
			}
		})
	}
}

func flipBit(blob []byte, i int) []byte {
	out := make([]byte, len(blob))
	copy(out, blob)
	out[i] ^= 0x01
	return out
}

func TestHashKeyID(t *testing.T) {
	h1 := HashKeyID("pk-abc123")
	h2 := HashKeyID("pk-abc123")
	h3 := HashKeyID("pk-abc124")

	if h1 != h2 {
		t.Fatal("hash is not deterministic")
	}
	if h1 == h3 {
		t.Fatal("distinct keyIds hashed identically")
	}
	if len(h1) != 64 {
		t.Fatalf("hash length = %d, want 64 hex chars", len(h1))
	}
}
