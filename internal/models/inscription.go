// Package models defines the records persisted by ordvault stores.
package models

import (
	"time"

	"github.com/dmitrijs2005/ordvault/internal/encoder"
)

// Inscription is created exactly once per successful (or mock) inscription
// and never mutated afterwards.
type Inscription struct {
	InscriptionID string `json:"inscriptionId"`
	// TxID is nil for mock inscriptions.
	TxID    *string `json:"txid"`
	OrderID string  `json:"orderId,omitempty"`

	ContentHash string       `json:"contentHash"`
	StorageMode encoder.Mode `json:"storageMode"`
	OnChain     []byte       `json:"onChain,omitempty"`

	Network   string    `json:"network"`
	CreatedAt time.Time `json:"createdAt"`
	SizeBytes int       `json:"sizeBytes"`
	Mock      bool      `json:"mock"`

	ContentType string `json:"contentType"`
	// Content is the full payload; for hash-only records it exists only off-chain.
	Content []byte `json:"content"`

	Fees        Fees         `json:"fees"`
	Attestation *Attestation `json:"attestation,omitempty"`
}

type Fees struct {
	Total int64  `json:"total"`
	Rate  string `json:"rate"`
}

// Attestation is a secp256k1 ECDSA signature over the content hash.
type Attestation struct {
	Signature string `json:"signature"`
	PublicKey string `json:"publicKey"`
}

// InscriptionFilter selects records in List. Zero fields match everything.
type InscriptionFilter struct {
	Network     string
	ContentHash string
	Mock        *bool
	Since       time.Time
	Limit       int
}

// Match reports whether rec passes the filter (ignoring Limit).
func (f InscriptionFilter) Match(rec *Inscription) bool {
	if f.Network != "" && rec.Network != f.Network {
		return false
	}
	if f.ContentHash != "" && rec.ContentHash != f.ContentHash {
		return false
	}
	if f.Mock != nil && rec.Mock != *f.Mock {
		return false
	}
	if !f.Since.IsZero() && rec.CreatedAt.Before(f.Since) {
		return false
	}
	return true
}
