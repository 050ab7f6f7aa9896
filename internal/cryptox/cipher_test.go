package cryptox

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/dmitrijs2005/ordvault/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	plaintext := []byte("whistle: the ledger was altered on 2024-03-01")

	env, err := Encrypt(plaintext, nil)
	require.NoError(t, err)

	assert.Len(t, env.Key, KeySize)
	assert.Len(t, env.Nonce, NonceSize)
	assert.Len(t, env.AuthTag, TagSize)
	assert.Equal(t, Algorithm, env.Algorithm)
	assert.Len(t, env.Ciphertext, len(plaintext))

	got, err := Decrypt(env, env.Key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestEncrypt_EmptyPlaintext(t *testing.T) {
	env, err := Encrypt([]byte{}, nil)
	require.NoError(t, err)

	got, err := Decrypt(env, env.Key)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestEncrypt_FreshNonceAndKey(t *testing.T) {
	plaintext := []byte("same input")

	a, err := Encrypt(plaintext, nil)
	require.NoError(t, err)
	b, err := Encrypt(plaintext, nil)
	require.NoError(t, err)

	assert.NotEqual(t, a.Key, b.Key)
	assert.NotEqual(t, a.Nonce, b.Nonce)
	assert.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestEncrypt_CallerKeyNotAliased(t *testing.T) {
	key := bytes.Repeat([]byte{7}, KeySize)

	env, err := Encrypt([]byte("data"), key)
	require.NoError(t, err)

	env.ForgetKey()
	assert.Equal(t, bytes.Repeat([]byte{7}, KeySize), key)
}

func TestEncrypt_BadKeySize(t *testing.T) {
	_, err := Encrypt([]byte("data"), []byte("short"))
	assert.ErrorIs(t, err, common.ErrValidation)
}

func TestDecrypt_WrongKey(t *testing.T) {
	env, err := Encrypt([]byte("secret"), nil)
	require.NoError(t, err)

	other := common.GenerateRandByteArray(KeySize)
	_, err = Decrypt(env, other)
	assert.ErrorIs(t, err, common.ErrAuthentication)
}

func TestDecrypt_Tampered(t *testing.T) {
	plaintext := []byte("do not modify me")

	tests := []struct {
		name   string
		mutate func(e *Envelope)
	}{
		{"ciphertext", func(e *Envelope) { e.Ciphertext[0] ^= 0x01 }},
		{"nonce", func(e *Envelope) { e.Nonce[3] ^= 0x80 }},
		{"tag", func(e *Envelope) { e.AuthTag[15] ^= 0xff }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Encrypt(plaintext, nil)
			require.NoError(t, err)

			tt.mutate(env)
			_, err = Decrypt(env, env.Key)
			assert.ErrorIs(t, err, common.ErrAuthentication)
		})
	}
}

func TestDecrypt_Malformed(t *testing.T) {
	key := common.GenerateRandByteArray(KeySize)

	tests := []struct {
		name string
		env  *Envelope
	}{
		{"nil", nil},
		{"short nonce", &Envelope{Nonce: make([]byte, 4), AuthTag: make([]byte, TagSize)}},
		{"short tag", &Envelope{Nonce: make([]byte, NonceSize), AuthTag: make([]byte, 8)}},
		{"algorithm", &Envelope{Nonce: make([]byte, NonceSize), AuthTag: make([]byte, TagSize), Algorithm: "chacha20"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decrypt(tt.env, key)
			assert.ErrorIs(t, err, common.ErrCorruptData)
		})
	}
}

func TestWire_RoundTrip(t *testing.T) {
	plaintext := []byte("wire format")

	env, err := Encrypt(plaintext, nil)
	require.NoError(t, err)

	wire := env.Wire()
	raw, err := base64.StdEncoding.DecodeString(wire)
	require.NoError(t, err)
	assert.Len(t, raw, NonceSize+len(plaintext)+TagSize)
	assert.Equal(t, env.Nonce, raw[:NonceSize])

	got, err := DecryptWire(wire, env.Key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestParseWire_Errors(t *testing.T) {
	_, err := ParseWire("%%% not base64")
	assert.True(t, errors.Is(err, common.ErrCorruptData))

	short := base64.StdEncoding.EncodeToString(make([]byte, NonceSize+TagSize-1))
	_, err = ParseWire(short)
	assert.True(t, errors.Is(err, common.ErrCorruptData))
}

func TestForgetKey(t *testing.T) {
	env, err := Encrypt([]byte("x"), nil)
	require.NoError(t, err)

	key := env.Key
	env.ForgetKey()

	assert.Nil(t, env.Key)
	assert.Equal(t, make([]byte, KeySize), key)
}
