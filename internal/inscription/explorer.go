package inscription

import (
	"fmt"
	"strconv"
	"time"

	"github.com/dmitrijs2005/ordvault/internal/common"
)

// ExplorerURL links a transaction on mempool.space for the given network.
// Unknown networks fall back to signet.
func ExplorerURL(network, txid string) string {
	switch network {
	case NetworkMainnet:
		return "https://mempool.space/tx/" + txid
	case NetworkTestnet4:
		return "https://mempool.space/testnet4/tx/" + txid
	default:
		return "https://mempool.space/signet/tx/" + txid
	}
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// MockID returns a locally unique inscription id: the millisecond timestamp,
// six random base-36 characters and the output index suffix "i0".
func MockID(now time.Time) string {
	raw := common.GenerateRandByteArray(6)
	suffix := make([]byte, len(raw))
	for i, b := range raw {
		suffix[i] = base36[int(b)%len(base36)]
	}
	return fmt.Sprintf("%s%si0", strconv.FormatInt(now.UnixMilli(), 10), suffix)
}
