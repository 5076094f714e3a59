// internal/blockchain/evm/receipt.go
package evm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// DefaultReceiptPoll is the interval between receipt lookups.
const DefaultReceiptPoll = time.Second

// ErrTxReverted is returned when a mined transaction has a failed status.
var ErrTxReverted = errors.New("transaction reverted")

// WaitMined polls for the receipt until it exists or ctx is done.
// Inclusion is bounded only by ctx.
func WaitMined(ctx context.Context, backend Backend, hash common.Hash, poll time.Duration) (*types.Receipt, error) {
	if poll <= 0 {
		poll = DefaultReceiptPoll
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		// NotFound and transient lookup errors both mean "ask again".
		receipt, err := backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, fmt.Errorf("%w: %s", ErrTxReverted, hash.Hex())
			}
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
