// internal/dex/model/trade.go
package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Quote is advisory: chain state may move before submission.
type Quote struct {
	Venue             Venue
	Side              Side
	Token             common.Address
	AmountIn          *big.Int
	ExpectedAmountOut *big.Int
}

// TradeIntent is a fully resolved instruction ready to submit.
type TradeIntent struct {
	Token        common.Address
	Side         Side
	AmountIn     *big.Int
	Venue        Venue
	MinAmountOut *big.Int
	ToleranceBps int
}

// AllowanceState is read fresh before every sell.
type AllowanceState struct {
	Owner   common.Address
	Spender common.Address
	Amount  *big.Int
}

// Sufficient reports whether the allowance covers required.
func (a AllowanceState) Sufficient(required *big.Int) bool {
	return a.Amount != nil && a.Amount.Cmp(required) >= 0
}

// ApprovalOutcome of AllowanceGuard.Ensure.
type ApprovalOutcome struct {
	// TxHash is nil when the allowance was already sufficient.
	TxHash *common.Hash
}

// AlreadySufficient reports that no approval transaction was sent.
func (o ApprovalOutcome) AlreadySufficient() bool { return o.TxHash == nil }

// TxResult is what a submitted trade surfaces to the caller.
type TxResult struct {
	TxHash            common.Hash
	ApproveTxHash     *common.Hash
	Token             common.Address
	Side              Side
	Venue             Venue
	AmountIn          *big.Int
	ExpectedAmountOut *big.Int
	MinAmountOut      *big.Int
	BlockNumber       *big.Int
}

// LaunchResult is returned by token creation.
type LaunchResult struct {
	TxHash common.Hash
	Token  common.Address
	Salt   [32]byte
}
