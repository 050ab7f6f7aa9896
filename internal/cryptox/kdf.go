package cryptox

import (
	"crypto/sha256"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// KDFIterations makes guessing nearby seeds (timestamps) expensive.
	KDFIterations = 100_000
	SaltSize      = 64
)

// DeriveKey stretches seed with salt into a 32-byte key using
// PBKDF2-HMAC-SHA256. The result is deterministic for a given (seed, salt).
func DeriveKey(seed string, salt []byte) []byte {
	return pbkdf2.Key([]byte(seed), salt, KDFIterations, KeySize, sha256.New)
}
