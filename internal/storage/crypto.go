// Package storage handles persistence and cryptography for the key vault.
// Secrets are envelope-encrypted: each record gets a fresh random data key
// sealed with AES-256-GCM, and the data key itself is sealed by the master
// key. Rotating the master key only requires re-wrapping data keys.
package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"io"

	"golang.org/x/crypto/hkdf"
)

const dataKeySize = 32

// DeriveMasterKey derives the 32-byte master wrapping key from an
// operator-supplied passphrase using HKDF-SHA256.
func DeriveMasterKey(passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrInvalidKey
	}
	kdf := hkdf.New(sha256.New, []byte(passphrase), []byte("keyvault-proxy/master"), nil)
	key := make([]byte, dataKeySize)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, err
	}
	return key, nil
}

// EncryptSecret envelope-encrypts a raw provider secret.
// The masterKey must be exactly 32 bytes.
// Layout of the returned blob: len(wrappedDataKey) is fixed because GCM
// overhead is constant, so the blob is wrappedDataKey || sealedSecret, each
// a nonce-prefixed GCM ciphertext.
func EncryptSecret(rawSecret string, masterKey []byte) ([]byte, error) {
	if len(masterKey) != dataKeySize {
		return nil, ErrInvalidKey
	}

	dataKey := make([]byte, dataKeySize)
	if _, err := io.ReadFull(rand.Reader, dataKey); err != nil {
		return nil, err
	}

	wrapped, err := seal(dataKey, masterKey)
	if err != nil {
		return nil, err
	}
	sealed, err := seal([]byte(rawSecret), dataKey)
	if err != nil {
		return nil, err
	}

	return append(wrapped, sealed...), nil
}

// DecryptSecret reverses EncryptSecret.
// Returns ErrDecryption if either layer fails to open.
func DecryptSecret(blob []byte, masterKey []byte) (string, error) {
	if len(masterKey) != dataKeySize {
		return "", ErrInvalidKey
	}

	// Wrapped data key is nonce (12) + key (32) + GCM tag (16).
	const wrappedLen = 12 + dataKeySize + 16
	if len(blob) < wrappedLen {
		return "", ErrDecryption
	}

	dataKey, err := open(blob[:wrappedLen], masterKey)
	if err != nil {
		return "", ErrDecryption
	}
	plaintext, err := open(blob[wrappedLen:], dataKey)
	if err != nil {
		return "", ErrDecryption
	}

	return string(plaintext), nil
}

// seal encrypts plaintext with AES-256-GCM, returning nonce || ciphertext.
func seal(plaintext, key []byte) ([]byte, error) {
	// Key size is validated by callers
	block, _ := aes.NewCipher(key) //nolint:errcheck
	gcm, _ := cipher.NewGCM(block) //nolint:errcheck

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// open decrypts a nonce-prefixed AES-256-GCM ciphertext.
func open(ciphertext, key []byte) ([]byte, error) {
	block, _ := aes.NewCipher(key) //nolint:errcheck
	gcm, _ := cipher.NewGCM(block) //nolint:errcheck

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, ErrDecryption
	}
	plaintext, err := gcm.Open(nil, ciphertext[:nonceSize], ciphertext[nonceSize:], nil)
	if err != nil {
		return nil, ErrDecryption
	}
	return plaintext, nil
}

// HashKeyID computes the SHA-256 hash of a raw proxy keyId for storage lookup.
func HashKeyID(rawKeyID string) string {
	hash := sha256.Sum256([]byte(rawKeyID))
	return hex.EncodeToString(hash[:])
}
