package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"

	"github.com/whaleshi/b/internal/bot"
	"github.com/whaleshi/b/internal/dex/model"
	"github.com/whaleshi/b/internal/monitor"
	"github.com/whaleshi/b/internal/registry"
)

// Tea messages produced by watchers and commands.

// SnapshotMsg arrives after every directory refresh. Names holds the
// metadata known at that moment, read off the UI goroutine.
type SnapshotMsg struct {
	Snapshot *registry.Snapshot
	Names    map[common.Address]model.TokenMetadata
	Err      error
}

// QuoteMsg carries one trade panel quote. Seq identifies the amount edit
// that asked for it; older sequences are stale.
type QuoteMsg struct {
	Seq    uint64
	Update monitor.QuoteUpdate
}

// BalanceMsg carries one balance poll of Wallet.
type BalanceMsg struct {
	Wallet   common.Address
	Balances monitor.Balances
	Err      error
}

// DetailMsg is the result of a token detail reload.
type DetailMsg struct {
	Token  common.Address
	Detail bot.TokenDetail
	Err    error
}

// AmountMsg reports that the typed amount could not be parsed or watched.
type AmountMsg struct {
	Seq uint64
	Err error
}

// TradeDoneMsg is the outcome of a submitted buy or sell.
type TradeDoneMsg struct {
	Token  common.Address
	Side   model.Side
	Result *model.TxResult
	Err    error
}

// LogMsg signals new entries in the log buffer.
type LogMsg struct{}

// Inbox delivers messages from background goroutines to the program.
type Inbox chan tea.Msg

func NewInbox(size int) Inbox {
	return make(Inbox, size)
}

// Post never blocks; a full inbox drops msg.
func (in Inbox) Post(msg tea.Msg) bool {
	select {
	case in <- msg:
		return true
	default:
		return false
	}
}

// Delivered wraps a message read from the inbox.
type Delivered struct {
	Msg tea.Msg
}

// Listen returns a command that waits for the next message.
// Re-issue it after every Delivered.
func (in Inbox) Listen(ctx context.Context) tea.Cmd {
	return func() tea.Msg {
		select {
		case msg := <-in:
			return Delivered{Msg: msg}
		case <-ctx.Done():
			return nil
		}
	}
}
