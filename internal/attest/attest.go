// Package attest signs and verifies content hashes with secp256k1 ECDSA keys,
// the curve used by the ledger itself.
package attest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/dmitrijs2005/ordvault/internal/common"
	"github.com/dmitrijs2005/ordvault/internal/models"
)

type Signer struct {
	priv *btcec.PrivateKey
}

// NewSigner parses a hex encoded 32-byte private key.
func NewSigner(hexKey string) (*Signer, error) {
	raw, err := hex.DecodeString(hexKey)
	if err != nil || len(raw) != btcec.PrivKeyBytesLen {
		return nil, fmt.Errorf("%w: attestation key must be %d hex encoded bytes", common.ErrValidation, btcec.PrivKeyBytesLen)
	}
	priv, _ := btcec.PrivKeyFromBytes(raw)
	return &Signer{priv: priv}, nil
}

// GenerateSigner creates a fresh key and returns it with its hex encoding.
func GenerateSigner() (*Signer, string, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate key: %w", err)
	}
	return &Signer{priv: priv}, hex.EncodeToString(priv.Serialize()), nil
}

// PublicKey returns the hex encoded compressed public key.
func (s *Signer) PublicKey() string {
	return hex.EncodeToString(s.priv.PubKey().SerializeCompressed())
}

// Sign signs a hex encoded SHA-256 digest.
func (s *Signer) Sign(contentHash string) (*models.Attestation, error) {
	digest, err := decodeDigest(contentHash)
	if err != nil {
		return nil, err
	}

	sig := ecdsa.Sign(s.priv, digest)
	return &models.Attestation{
		Signature: hex.EncodeToString(sig.Serialize()),
		PublicKey: s.PublicKey(),
	}, nil
}

// SignMessage signs sha256(message).
func (s *Signer) SignMessage(message []byte) *models.Attestation {
	sum := sha256.Sum256(message)
	att, _ := s.Sign(hex.EncodeToString(sum[:]))
	return att
}

// Verify checks att against a hex encoded SHA-256 digest.
func Verify(contentHash string, att *models.Attestation) error {
	if att == nil {
		return fmt.Errorf("%w: missing attestation", common.ErrValidation)
	}

	digest, err := decodeDigest(contentHash)
	if err != nil {
		return err
	}

	sigBytes, err := hex.DecodeString(att.Signature)
	if err != nil {
		return fmt.Errorf("%w: signature is not hex", common.ErrCorruptData)
	}
	sig, err := ecdsa.ParseDERSignature(sigBytes)
	if err != nil {
		return fmt.Errorf("%w: malformed signature: %v", common.ErrCorruptData, err)
	}

	pubBytes, err := hex.DecodeString(att.PublicKey)
	if err != nil {
		return fmt.Errorf("%w: public key is not hex", common.ErrCorruptData)
	}
	pub, err := btcec.ParsePubKey(pubBytes)
	if err != nil {
		return fmt.Errorf("%w: malformed public key: %v", common.ErrCorruptData, err)
	}

	if !sig.Verify(digest, pub) {
		return fmt.Errorf("%w: signature does not match", common.ErrAuthentication)
	}
	return nil
}

// VerifyMessage checks att against sha256(message).
func VerifyMessage(message []byte, att *models.Attestation) error {
	sum := sha256.Sum256(message)
	return Verify(hex.EncodeToString(sum[:]), att)
}

func decodeDigest(contentHash string) ([]byte, error) {
	digest, err := hex.DecodeString(contentHash)
	if err != nil || len(digest) != sha256.Size {
		return nil, fmt.Errorf("%w: content hash must be a hex sha256 digest", common.ErrValidation)
	}
	return digest, nil
}
