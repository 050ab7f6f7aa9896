package ledgerrpc

import (
	"context"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"

	"github.com/dmitrijs2005/ordvault/internal/common"
	"github.com/dmitrijs2005/ordvault/internal/inscription"
)

const satsPerCoin = 100_000_000

// Submitter inscribes through the node wallet. The order id is the txid of
// the data-carrier transaction.
type Submitter struct {
	rpc              *Client
	minConfirmations int
}

var _ inscription.Submitter = (*Submitter)(nil)

func NewSubmitter(rpc *Client, minConfirmations int) *Submitter {
	if minConfirmations <= 0 {
		minConfirmations = 1
	}
	return &Submitter{rpc: rpc, minConfirmations: minConfirmations}
}

type fundResult struct {
	Hex string  `json:"hex"`
	Fee float64 `json:"fee"`
}

type signResult struct {
	Hex      string `json:"hex"`
	Complete bool   `json:"complete"`
}

type walletTx struct {
	TxID          string `json:"txid"`
	Confirmations int    `json:"confirmations"`
}

// Submit builds, funds, signs and broadcasts a transaction carrying
// req.Content in a single data output.
func (s *Submitter) Submit(ctx context.Context, req inscription.SubmitRequest) (*inscription.Order, error) {
	if len(req.Content) == 0 {
		return nil, fmt.Errorf("%w: empty content", common.ErrValidation)
	}

	outputs := []map[string]string{{"data": hex.EncodeToString(req.Content)}}

	var raw string
	if err := s.rpc.Call(ctx, "createrawtransaction", []any{[]any{}, outputs}, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrSubmission, err)
	}

	var funded fundResult
	if err := s.rpc.Call(ctx, "fundrawtransaction", []any{raw, fundOptions(req.FeeRate)}, &funded); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrSubmission, err)
	}

	var signed signResult
	if err := s.rpc.Call(ctx, "signrawtransactionwithwallet", []any{funded.Hex}, &signed); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrSubmission, err)
	}
	if !signed.Complete {
		return nil, fmt.Errorf("%w: wallet could not sign every input", common.ErrSubmission)
	}

	var txid string
	if err := s.rpc.Call(ctx, "sendrawtransaction", []any{signed.Hex}, &txid); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrSubmission, err)
	}

	return &inscription.Order{
		OrderID:         txid,
		TotalCost:       int64(math.Round(funded.Fee * satsPerCoin)),
		InscriptionSize: len(signed.Hex) / 2,
		FeeRate:         req.FeeRate,
	}, nil
}

// Status maps wallet confirmations onto the order lifecycle. A negative
// count means the transaction conflicts with the best chain.
func (s *Submitter) Status(ctx context.Context, txid string) (*inscription.OrderStatus, error) {
	var tx walletTx
	if err := s.rpc.Call(ctx, "gettransaction", []any{txid}, &tx); err != nil {
		return nil, err
	}

	st := &inscription.OrderStatus{
		State:         inscription.OrderPending,
		TxID:          txid,
		Confirmations: tx.Confirmations,
	}
	switch {
	case tx.Confirmations < 0:
		st.State = inscription.OrderFailed
		st.Error = "transaction conflicted"
	case tx.Confirmations >= s.minConfirmations:
		st.State = inscription.OrderCompleted
		st.InscriptionID = txid + "i0"
	}
	return st, nil
}

// fundOptions turns a fee rate into fundrawtransaction options. Numeric
// rates are sat/vB; named rates select a confirmation target.
func fundOptions(feeRate string) map[string]any {
	if v, err := strconv.ParseFloat(feeRate, 64); err == nil && v > 0 {
		return map[string]any{"fee_rate": v}
	}

	target := 6
	switch feeRate {
	case "high", "fast":
		target = 2
	case "low", "slow":
		target = 24
	}
	return map[string]any{"conf_target": target, "estimate_mode": "economical"}
}
