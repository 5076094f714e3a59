// =============================
// File: internal/dex/errors.go
// =============================
package dex

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/whaleshi/b/internal/dex/model"
	"github.com/whaleshi/b/internal/types"
)

// Trade failure taxonomy. Callers match with errors.Is.
var (
	ErrNotConnected              = errors.New("wallet not connected")
	ErrInvalidSlippage           = types.ErrInvalidSlippage
	ErrInvalidAmount             = types.ErrInvalidAmount
	ErrInsufficientBalance       = errors.New("insufficient balance")
	ErrQuoteUnavailable          = errors.New("quote unavailable")
	ErrStateUnavailable          = errors.New("token state unavailable")
	ErrApprovalFailed            = errors.New("approval failed")
	ErrSubmissionFailed          = errors.New("submission failed")
	ErrAggregationPartialFailure = errors.New("aggregation partial failure")
	ErrTradeInProgress           = errors.New("trade already in progress")
)

// Stage names the step of a trade sequence that failed.
type Stage string

const (
	StagePrecheck  Stage = "precheck"
	StageRoute     Stage = "route"
	StageBalance   Stage = "balance"
	StageQuote     Stage = "quote"
	StageSlippage  Stage = "slippage"
	StageAllowance Stage = "allowance"
	StageSubmit    Stage = "submit"
	StageConfirm   Stage = "confirm"
)

// TradeError records where a trade sequence stopped.
type TradeError struct {
	Stage Stage
	Side  model.Side
	Token common.Address
	// TxHash is set when the failure happened after broadcast.
	TxHash *common.Hash
	Err    error
}

func (e *TradeError) Error() string {
	return fmt.Sprintf("%s %s failed at %s: %v", e.Side, e.Token.Hex(), e.Stage, e.Err)
}

func (e *TradeError) Unwrap() error { return e.Err }

func tradeErr(stage Stage, side model.Side, token common.Address, err error) error {
	return &TradeError{Stage: stage, Side: side, Token: token, Err: err}
}

// UserMessage maps err to a short, distinct, user-facing message.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotConnected):
		return "Wallet not connected"
	case errors.Is(err, ErrInvalidSlippage):
		return "Slippage must be between 0.01% and 50%"
	case errors.Is(err, ErrInvalidAmount):
		return "Amount must be greater than zero"
	case errors.Is(err, ErrInsufficientBalance):
		return "Insufficient balance"
	case errors.Is(err, ErrQuoteUnavailable):
		return "Price quote unavailable for this amount"
	case errors.Is(err, ErrStateUnavailable):
		return "Token state not loaded yet, try again shortly"
	case errors.Is(err, ErrApprovalFailed):
		return "Token approval failed"
	case errors.Is(err, ErrSubmissionFailed):
		return "Transaction failed, try again"
	case errors.Is(err, ErrAggregationPartialFailure):
		return "Some tokens could not be loaded"
	case errors.Is(err, ErrTradeInProgress):
		return "A trade for this token is already in progress"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "Request cancelled or timed out"
	default:
		return "Network error, please retry"
	}
}
