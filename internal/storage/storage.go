// internal/storage/storage.go
package storage

import (
	"context"
	"fmt"
	"math/big"
	"time"
)

// Status of a journaled trade.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// TradeRecord is one finished trade attempt. Addresses and hashes are
// 0x-hex strings; amounts are in base units.
type TradeRecord struct {
	ID            string
	Wallet        string
	Token         string
	Side          string
	Venue         string
	AmountIn      *big.Int
	ExpectedOut   *big.Int
	MinOut        *big.Int
	TxHash        string
	ApproveTxHash string
	BlockNumber   uint64
	Status        Status
	Stage         string
	Error         string
	CreatedAt     time.Time
}

// Validate checks the fields every store requires.
func (r *TradeRecord) Validate() error {
	if r == nil || r.ID == "" {
		return fmt.Errorf("%w: trade id is required", ErrInvalidInput)
	}
	if r.Wallet == "" || r.Token == "" || r.Side == "" {
		return fmt.Errorf("%w: wallet, token and side are required", ErrInvalidInput)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("%w: status %q", ErrInvalidInput, r.Status)
	}
	return nil
}

// Clone returns a deep copy.
func (r *TradeRecord) Clone() *TradeRecord {
	c := *r
	c.AmountIn = cloneInt(r.AmountIn)
	c.ExpectedOut = cloneInt(r.ExpectedOut)
	c.MinOut = cloneInt(r.MinOut)
	return &c
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}

// TradeSink accepts journal records. Append-only.
type TradeSink interface {
	Insert(ctx context.Context, r *TradeRecord) error
}

// TradeStore is a queryable trade journal.
type TradeStore interface {
	TradeSink
	// Get returns ErrNotFound for an unknown id.
	Get(ctx context.Context, id string) (*TradeRecord, error)
	// ListByWallet returns the newest records first; limit <= 0 means all.
	ListByWallet(ctx context.Context, wallet string, limit int) ([]*TradeRecord, error)
	// Recent returns the newest records across wallets.
	Recent(ctx context.Context, limit int) ([]*TradeRecord, error)
}
