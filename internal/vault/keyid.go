package vault

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// keyIDPrefix marks proxy bearer keys so they are recognizable in configs
// and logs without revealing anything.
const keyIDPrefix = "pk-"

const base62Alphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// keyIDLen base62 characters cover well over 128 bits of entropy
// (62^32 ≈ 2^190), making collisions negligible.
const keyIDLen = 32

// NewKeyID generates a new opaque bearer keyId.
func NewKeyID() (string, error) {
	max := big.NewInt(int64(len(base62Alphabet)))
	buf := make([]byte, keyIDLen)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate keyId: %w", err)
		}
		buf[i] = base62Alphabet[n.Int64()]
	}
	return keyIDPrefix + string(buf), nil
}

// KeyIDDisplayPrefix returns the short prefix of a raw keyId kept for list
// views after the raw value is discarded.
func KeyIDDisplayPrefix(rawKeyID string) string {
	const visible = len(keyIDPrefix) + 8
	if len(rawKeyID) < visible {
		return rawKeyID
	}
	return rawKeyID[:visible]
}
