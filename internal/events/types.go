// internal/events/types.go
package events

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/whaleshi/b/internal/dex/model"
)

// EventType represents the type of event.
type EventType string

const (
	// Trade lifecycle
	TradeStarted      EventType = "trade.started"
	ApprovalSubmitted EventType = "trade.approval_submitted"
	TradeCompleted    EventType = "trade.completed"
	TradeFailed       EventType = "trade.failed"

	TokenLaunched EventType = "token.launched"

	// Directory
	RegistryRefreshed EventType = "registry.refreshed"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

func (e BaseEvent) Type() EventType      { return e.EventType }
func (e BaseEvent) Timestamp() time.Time { return e.EventTime }

// NewBase stamps an event of type t with the current time.
func NewBase(t EventType) BaseEvent {
	return BaseEvent{EventType: t, EventTime: time.Now()}
}

type TradeStartedEvent struct {
	BaseEvent
	Wallet   common.Address
	Token    common.Address
	Side     model.Side
	AmountIn *big.Int
}

type ApprovalSubmittedEvent struct {
	BaseEvent
	Wallet  common.Address
	Token   common.Address
	Spender common.Address
	TxHash  common.Hash
}

type TradeCompletedEvent struct {
	BaseEvent
	Wallet common.Address
	Result model.TxResult
}

type TradeFailedEvent struct {
	BaseEvent
	Wallet   common.Address
	Token    common.Address
	Side     model.Side
	Venue    model.Venue
	AmountIn *big.Int
	Stage    string
	// TxHash is set when the failure happened after submission.
	TxHash *common.Hash
	Err    error
}

type TokenLaunchedEvent struct {
	BaseEvent
	Creator common.Address
	Result  model.LaunchResult
}

type RegistryRefreshedEvent struct {
	BaseEvent
	Tokens   int
	Failures int
	Duration time.Duration
}
