package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/ordvault/internal/attest"
	"github.com/dmitrijs2005/ordvault/internal/common"
	"github.com/dmitrijs2005/ordvault/internal/inscription"
	"github.com/dmitrijs2005/ordvault/internal/models"
)

const SignatureProtocol = "ordvault-signature-v1"

// DocumentSignature is a signer's ECDSA signature over a document's SHA-256.
type DocumentSignature struct {
	DocumentHash  string
	SignerName    string
	SignerAddress string
	PublicKey     string
	Signature     string
}

type SignatureRecord struct {
	Type          string `json:"type"`
	Protocol      string `json:"protocol"`
	DocumentHash  string `json:"documentHash"`
	SignerName    string `json:"signerName"`
	SignerAddress string `json:"signerAddress,omitempty"`
	PublicKey     string `json:"publicKey"`
	Signature     string `json:"signature"`
	Timestamp     string `json:"timestamp"`
}

type SignatureReceipt struct {
	InscriptionID string          `json:"inscriptionId"`
	TxID          *string         `json:"txid"`
	Record        SignatureRecord `json:"signatureData"`
}

// SignDocument checks the signature and inscribes a document-signature
// record. Invalid signatures are never inscribed.
func (s *Service) SignDocument(ctx context.Context, sig DocumentSignature) (*SignatureReceipt, error) {
	if sig.DocumentHash == "" || sig.PublicKey == "" || sig.Signature == "" {
		return nil, fmt.Errorf("%w: document hash, public key and signature are required", common.ErrValidation)
	}

	att := &models.Attestation{Signature: sig.Signature, PublicKey: sig.PublicKey}
	if err := attest.Verify(strings.ToLower(sig.DocumentHash), att); err != nil {
		return nil, err
	}

	rec := SignatureRecord{
		Type:          "document-signature",
		Protocol:      SignatureProtocol,
		DocumentHash:  strings.ToLower(sig.DocumentHash),
		SignerName:    sig.SignerName,
		SignerAddress: sig.SignerAddress,
		PublicKey:     sig.PublicKey,
		Signature:     sig.Signature,
		Timestamp:     s.now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
	}
	if rec.SignerName == "" {
		rec.SignerName = anonymousTag
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}

	res, err := s.inscriber.Inscribe(ctx, inscription.Request{Payload: payload, ContentType: "application/json"})
	if err != nil {
		return nil, err
	}

	s.log.Info(ctx, "document signature inscribed", "inscription_id", res.InscriptionID, "document_hash", rec.DocumentHash)
	return &SignatureReceipt{InscriptionID: res.InscriptionID, TxID: res.TxID, Record: rec}, nil
}
