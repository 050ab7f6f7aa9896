package inscription

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/ordvault/internal/attest"
	"github.com/dmitrijs2005/ordvault/internal/common"
	"github.com/dmitrijs2005/ordvault/internal/encoder"
	"github.com/dmitrijs2005/ordvault/internal/models"
)

type Verification struct {
	Valid         bool    `json:"valid"`
	InscriptionID string  `json:"inscriptionId"`
	TxID          *string `json:"txid"`
	Network       string  `json:"network"`
	ContentHash   string  `json:"contentHash"`
	Mock          bool    `json:"mock"`
	Attested      bool    `json:"attested"`
	Confirmations int     `json:"confirmations"`
	ExplorerURL   string  `json:"explorerUrl,omitempty"`
	Message       string  `json:"message"`
	// OffChain is set once the blob store copy of a hash-only record has
	// been fetched and matched against the content hash.
	OffChain    bool   `json:"offChain"`
	OffChainURL string `json:"offChainUrl,omitempty"`

	Record *models.Inscription `json:"-"`
}

// Lookup returns the stored record, falling back to the file cache.
func (s *Service) Lookup(ctx context.Context, inscriptionID string) (*models.Inscription, error) {
	rec, err := s.store.Get(ctx, inscriptionID)
	if err == nil {
		return rec, nil
	}
	if !errors.Is(err, common.ErrNotFound) || s.cache == nil {
		return nil, err
	}

	rec, cerr := s.cache.Get(inscriptionID)
	if cerr != nil {
		return nil, err
	}
	return rec, nil
}

// Verify re-checks a stored inscription: the content still hashes to the
// recorded digest, the on-chain bytes commit to it, the attestation (if any)
// is valid and, for real inscriptions, the order is still completed.
func (s *Service) Verify(ctx context.Context, inscriptionID string) (*Verification, error) {
	rec, err := s.Lookup(ctx, inscriptionID)
	if err != nil {
		return nil, err
	}

	v := &Verification{
		InscriptionID: rec.InscriptionID,
		TxID:          rec.TxID,
		Network:       rec.Network,
		ContentHash:   rec.ContentHash,
		Mock:          rec.Mock,
		Record:        rec,
	}
	if rec.TxID != nil {
		v.ExplorerURL = ExplorerURL(rec.Network, *rec.TxID)
	}

	sum := sha256.Sum256(rec.Content)
	if hex.EncodeToString(sum[:]) != rec.ContentHash {
		v.Message = "stored content does not match its content hash"
		return v, nil
	}
	if len(rec.OnChain) > 0 && !encoder.Verify(rec.OnChain, rec.Content) {
		v.Message = "on-chain bytes do not commit to the stored content"
		return v, nil
	}

	if rec.Attestation != nil {
		if err := attest.Verify(rec.ContentHash, rec.Attestation); err != nil {
			v.Message = fmt.Sprintf("attestation invalid: %v", err)
			return v, nil
		}
		v.Attested = true
	}

	if s.blobs != nil && rec.StorageMode == encoder.ModeHashOnly {
		if msg := s.checkOffChain(ctx, rec, v); msg != "" {
			v.Message = msg
			return v, nil
		}
	}

	if rec.Mock {
		v.Valid = true
		v.Message = "mock inscription verified"
		return v, nil
	}

	if s.submitter == nil || rec.OrderID == "" {
		v.Valid = true
		v.Message = "content verified locally; ledger backend not configured"
		return v, nil
	}

	st, err := s.submitter.Status(ctx, rec.OrderID)
	if err != nil {
		v.Message = "inscription not found on ledger"
		return v, nil
	}
	v.Confirmations = st.Confirmations
	if st.State != OrderCompleted {
		v.Message = fmt.Sprintf("ledger reports order %s", st.State)
		return v, nil
	}

	v.Valid = true
	v.Message = "inscription verified on ledger"
	return v, nil
}

// presignTTL is the lifetime of off-chain download links handed out by Verify.
const presignTTL = 15 * time.Minute

type blobPresigner interface {
	PresignGet(ctx context.Context, contentHash string, ttl time.Duration) (string, error)
}

// checkOffChain fetches the off-chain copy of a hash-only record and returns
// a failure message, or "" when the copy matches the content hash.
func (s *Service) checkOffChain(ctx context.Context, rec *models.Inscription, v *Verification) string {
	payload, err := s.blobs.Get(ctx, rec.ContentHash)
	if err != nil {
		s.log.Warn(ctx, "off-chain copy unavailable", "inscription_id", rec.InscriptionID, "error", err)
		return fmt.Sprintf("off-chain copy unavailable: %v", err)
	}
	sum := sha256.Sum256(payload)
	if hex.EncodeToString(sum[:]) != rec.ContentHash {
		return "off-chain copy does not match the content hash"
	}
	v.OffChain = true

	if p, ok := s.blobs.(blobPresigner); ok {
		url, err := p.PresignGet(ctx, rec.ContentHash, presignTTL)
		if err != nil {
			s.log.Warn(ctx, "off-chain link not issued", "inscription_id", rec.InscriptionID, "error", err)
			return ""
		}
		v.OffChainURL = url
	}
	return ""
}
