// Package inscription drives content onto the ledger: it encodes the payload,
// submits it (or synthesizes a mock record), polls the order to completion
// and persists the resulting record.
package inscription

import (
	"context"
	"time"

	"github.com/dmitrijs2005/ordvault/internal/encoder"
	"github.com/dmitrijs2005/ordvault/internal/models"
)

const (
	NetworkMainnet  = "mainnet"
	NetworkSignet   = "signet"
	NetworkTestnet4 = "testnet4"
)

// ValidNetwork reports whether n is a supported network name.
func ValidNetwork(n string) bool {
	switch n {
	case NetworkMainnet, NetworkSignet, NetworkTestnet4:
		return true
	}
	return false
}

// State is the position of an inscription attempt in its lifecycle:
// Init -> (Mock | Submitting) -> Polling -> (Completed | Failed | Cancelled).
// Cancelled is reserved for attempts aborted by the caller; a poll deadline
// or an exhausted attempt budget ends in Failed.
type State string

const (
	StateInit       State = "init"
	StateMock       State = "mock"
	StateSubmitting State = "submitting"
	StatePolling    State = "polling"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
	StateCancelled  State = "cancelled"
)

type Request struct {
	Payload     []byte
	ContentType string
	Metadata    map[string]string
}

type Result struct {
	InscriptionID  string       `json:"inscriptionId"`
	TxID           *string      `json:"txid"`
	OrderID        string       `json:"orderId,omitempty"`
	PaymentAddress string       `json:"paymentAddress,omitempty"`
	Network        string       `json:"network"`
	Fees           models.Fees  `json:"fees"`
	ContentHash    string       `json:"contentHash"`
	StorageMode    encoder.Mode `json:"storageMode"`
	SizeBytes      int          `json:"size"`
	CreatedAt      time.Time    `json:"timestamp"`
	ExplorerURL    string       `json:"explorerUrl,omitempty"`
	Mock           bool         `json:"mock"`
}

// SubmitRequest is what a Submitter puts on the ledger.
type SubmitRequest struct {
	// Content is the encoder's on-chain representation.
	Content        []byte
	ContentType    string
	ReceiveAddress string
	FeeRate        string
	Metadata       map[string]string
}

// Order is a normalized submission receipt.
type Order struct {
	OrderID         string
	PaymentAddress  string
	TotalCost       int64
	InscriptionSize int
	FeeRate         string
}

type OrderState string

const (
	OrderPending   OrderState = "pending"
	OrderCompleted OrderState = "completed"
	OrderFailed    OrderState = "failed"
)

// OrderStatus is a normalized status report. It is transient and never stored.
type OrderStatus struct {
	State         OrderState
	InscriptionID string
	TxID          string
	Confirmations int
	Error         string
}

// Submitter is a real-mode ledger backend.
type Submitter interface {
	Submit(ctx context.Context, req SubmitRequest) (*Order, error)
	Status(ctx context.Context, orderID string) (*OrderStatus, error)
}

type Estimate struct {
	TotalCost       int64
	InscriptionSize int
	NetworkFee      int64
	ServiceFee      int64
}

// Estimator is implemented by submitters that can price an order up front.
type Estimator interface {
	Estimate(ctx context.Context, req SubmitRequest) (*Estimate, error)
}

// Cache is the durable per-inscription copy kept next to the store.
type Cache interface {
	Put(rec *models.Inscription) error
	Get(inscriptionID string) (*models.Inscription, error)
}

// BlobStore holds the off-chain payload of hash-only inscriptions.
type BlobStore interface {
	Put(ctx context.Context, contentHash string, payload []byte) (string, error)
	Get(ctx context.Context, contentHash string) ([]byte, error)
}

type Signer interface {
	Sign(contentHash string) (*models.Attestation, error)
}
