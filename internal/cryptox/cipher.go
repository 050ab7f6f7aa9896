// Package cryptox holds the cryptographic primitives of the publication
// pipeline: AES-256-GCM envelopes, PBKDF2 key derivation and time-locked
// envelopes whose key is derived from the unlock instant.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"encoding/base64"
	"fmt"

	"github.com/dmitrijs2005/ordvault/internal/common"
)

const (
	Algorithm = "aes-256-gcm"
	KeySize   = 32
	NonceSize = 12
	TagSize   = 16
)

// Envelope is the result of an authenticated encryption.
//
// Key is returned to the caller exactly once and is excluded from every
// serialized form of the envelope.
type Envelope struct {
	Ciphertext []byte `json:"ciphertext"`
	Nonce      []byte `json:"nonce"`
	AuthTag    []byte `json:"authTag"`
	Algorithm  string `json:"algorithm"`
	Key        []byte `json:"-"`
}

// Encrypt seals plaintext with AES-256-GCM.
//
// When key is nil a fresh 256-bit key is generated and returned in
// Envelope.Key. A fresh 96-bit nonce is generated for every call.
func Encrypt(plaintext, key []byte) (*Envelope, error) {
	if key == nil {
		key = common.GenerateRandByteArray(KeySize)
	} else {
		if len(key) != KeySize {
			return nil, fmt.Errorf("%w: key must be %d bytes, got %d", common.ErrValidation, KeySize, len(key))
		}
		key = append([]byte(nil), key...)
	}

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := common.GenerateRandByteArray(NonceSize)
	sealed := aesgcm.Seal(nil, nonce, plaintext, nil)
	split := len(sealed) - TagSize

	return &Envelope{
		Ciphertext: sealed[:split],
		Nonce:      nonce,
		AuthTag:    sealed[split:],
		Algorithm:  Algorithm,
		Key:        key,
	}, nil
}

// Decrypt verifies the authentication tag and returns the plaintext.
//
// A tag mismatch (wrong key or tampered bytes) yields common.ErrAuthentication;
// a structurally broken envelope yields common.ErrCorruptData.
func Decrypt(env *Envelope, key []byte) ([]byte, error) {
	if env == nil {
		return nil, fmt.Errorf("%w: nil envelope", common.ErrCorruptData)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: key must be %d bytes, got %d", common.ErrValidation, KeySize, len(key))
	}
	if env.Algorithm != "" && env.Algorithm != Algorithm {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", common.ErrCorruptData, env.Algorithm)
	}
	if len(env.Nonce) != NonceSize || len(env.AuthTag) != TagSize {
		return nil, fmt.Errorf("%w: nonce or tag has wrong length", common.ErrCorruptData)
	}

	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	sealed := make([]byte, 0, len(env.Ciphertext)+TagSize)
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.AuthTag...)

	plaintext, err := aesgcm.Open(nil, env.Nonce, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid decryption key or tampered data", common.ErrAuthentication)
	}
	return plaintext, nil
}

// Wire returns base64(nonce || ciphertext || tag), the storage and transport
// form of the envelope.
func (e *Envelope) Wire() string {
	combined := make([]byte, 0, NonceSize+len(e.Ciphertext)+TagSize)
	combined = append(combined, e.Nonce...)
	combined = append(combined, e.Ciphertext...)
	combined = append(combined, e.AuthTag...)
	return base64.StdEncoding.EncodeToString(combined)
}

// ForgetKey wipes and drops the key material held by the envelope.
func (e *Envelope) ForgetKey() {
	common.WipeByteArray(e.Key)
	e.Key = nil
}

// ParseWire splits the wire form produced by Wire back into an envelope.
func ParseWire(wire string) (*Envelope, error) {
	combined, err := base64.StdEncoding.DecodeString(wire)
	if err != nil {
		return nil, fmt.Errorf("%w: payload is not base64: %v", common.ErrCorruptData, err)
	}
	if len(combined) < NonceSize+TagSize {
		return nil, fmt.Errorf("%w: payload truncated (%d bytes)", common.ErrCorruptData, len(combined))
	}

	return &Envelope{
		Nonce:      combined[:NonceSize],
		Ciphertext: combined[NonceSize : len(combined)-TagSize],
		AuthTag:    combined[len(combined)-TagSize:],
		Algorithm:  Algorithm,
	}, nil
}

// DecryptWire is ParseWire followed by Decrypt.
func DecryptWire(wire string, key []byte) ([]byte, error) {
	env, err := ParseWire(wire)
	if err != nil {
		return nil, err
	}
	return Decrypt(env, key)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrValidation, err)
	}
	return cipher.NewGCM(block)
}
