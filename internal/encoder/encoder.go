// Package encoder decides how a payload is represented on the ledger.
//
// Data-carrier outputs are capped at 80 bytes, so small payloads are embedded
// whole behind a 3-byte protocol prefix and anything larger is replaced by its
// SHA-256 digest behind a 4-byte prefix.
package encoder

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/dmitrijs2005/ordvault/internal/common"
)

type Mode string

const (
	ModeFull     Mode = "full"
	ModeHashOnly Mode = "hash-only"
)

const (
	DefaultThreshold = 75

	// CarrierLimit is the standard relay limit for a data-carrier output.
	CarrierLimit = 80

	// MaxThreshold is the largest payload a full record can carry.
	MaxThreshold = CarrierLimit - 3
)

var (
	prefixFull     = []byte("ord")
	prefixHashOnly = []byte("ord:")
)

// Encoded is the on-chain representation of a payload.
type Encoded struct {
	Mode        Mode   `json:"mode"`
	OnChain     []byte `json:"onChain"`
	ContentHash string `json:"contentHash"`
}

type Policy struct {
	Threshold int
}

// NewPolicy returns a policy with the given threshold, falling back to
// DefaultThreshold when it is not positive or would overflow the carrier.
func NewPolicy(threshold int) Policy {
	if threshold <= 0 || threshold > MaxThreshold {
		threshold = DefaultThreshold
	}
	return Policy{Threshold: threshold}
}

// Encode picks full mode for payloads up to the threshold and hash-only mode
// above it.
func (p Policy) Encode(payload []byte) Encoded {
	sum := sha256.Sum256(payload)
	enc := Encoded{ContentHash: hex.EncodeToString(sum[:])}

	if len(payload) <= p.threshold() {
		enc.Mode = ModeFull
		enc.OnChain = append(append([]byte{}, prefixFull...), payload...)
		return enc
	}

	enc.Mode = ModeHashOnly
	enc.OnChain = append(append([]byte{}, prefixHashOnly...), sum[:]...)
	return enc
}

// Decode parses on-chain bytes. For full mode it returns the embedded payload,
// for hash-only mode the 32-byte digest.
func Decode(onChain []byte) (Mode, []byte, error) {
	// "ord:" must be tested first since "ord" is its prefix.
	if bytes.HasPrefix(onChain, prefixHashOnly) && len(onChain) == len(prefixHashOnly)+sha256.Size {
		return ModeHashOnly, onChain[len(prefixHashOnly):], nil
	}
	if bytes.HasPrefix(onChain, prefixFull) {
		return ModeFull, onChain[len(prefixFull):], nil
	}
	return "", nil, fmt.Errorf("%w: unknown on-chain prefix", common.ErrCorruptData)
}

// Verify reports whether onChain commits to payload. A full record whose
// payload starts with ':' and is 32 bytes long is indistinguishable from a
// hash-only record, so both readings are tried.
func Verify(onChain, payload []byte) bool {
	if bytes.HasPrefix(onChain, prefixFull) && bytes.Equal(onChain[len(prefixFull):], payload) {
		return true
	}
	mode, body, err := Decode(onChain)
	if err != nil || mode != ModeHashOnly {
		return false
	}
	sum := sha256.Sum256(payload)
	return bytes.Equal(body, sum[:])
}

func (p Policy) threshold() int {
	if p.Threshold <= 0 {
		return DefaultThreshold
	}
	return p.Threshold
}
