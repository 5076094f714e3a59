package ui

import (
	"context"
	"math/big"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/whaleshi/b/internal/bot"
	"github.com/whaleshi/b/internal/dex/model"
	"github.com/whaleshi/b/internal/monitor"
	"github.com/whaleshi/b/internal/registry"
	"github.com/whaleshi/b/internal/types"
	"github.com/whaleshi/b/internal/wallet"
)

// Services is the engine surface the screens use.
type Services interface {
	Tokens(view registry.View, query string) []model.TokenRecord
	TokenDetail(ctx context.Context, token common.Address) (bot.TokenDetail, error)
	WalletNames() []string
	Wallet(name string) (*wallet.Wallet, error)
	ParseTradeAmount(ctx context.Context, side model.Side, token common.Address, amount string) (*big.Int, error)
	Buy(ctx context.Context, walletName string, token common.Address, amount string) (*model.TxResult, error)
	Sell(ctx context.Context, walletName string, token common.Address, amount string) (*model.TxResult, error)
	SellPercent(ctx context.Context, walletName string, token common.Address, pct int) (*model.TxResult, error)
	Slippage() *types.SlippageStore
}

// QuoteSource keeps one advisory quote refreshing per owner.
type QuoteSource interface {
	Watch(ctx context.Context, owner string, req monitor.QuoteRequest, sink func(monitor.QuoteUpdate)) error
	Stop(owner string) bool
}

// BalanceSource polls one wallet's balances.
type BalanceSource interface {
	Watch(ctx context.Context, wallet, token common.Address, sink func(monitor.Balances, error)) error
	Stop(wallet common.Address) bool
}

// MetadataSource reads already resolved token metadata.
type MetadataSource interface {
	Get(ctx context.Context, token common.Address) (model.TokenMetadata, bool)
}

var (
	_ Services       = (*bot.Engine)(nil)
	_ QuoteSource    = (*monitor.QuoteWatcher)(nil)
	_ BalanceSource  = (*monitor.BalanceWatcher)(nil)
	_ MetadataSource = (*registry.MetadataResolver)(nil)
)

// Deps wires screens to the engine and the program inbox.
type Deps struct {
	Ctx      context.Context
	Services Services
	Quotes   QuoteSource
	Balances BalanceSource
	Metadata MetadataSource
	Inbox    Inbox
	Keys     KeyMap
	Logger   *zap.Logger

	// QuoteSend and BalanceSend throttle watcher output. Nil posts straight to Inbox.
	QuoteSend   func(tea.Msg)
	BalanceSend func(tea.Msg)
}

// EngineDeps fills Deps from a running engine.
func EngineDeps(ctx context.Context, e *bot.Engine, inbox Inbox, logger *zap.Logger) Deps {
	return Deps{
		Ctx:      ctx,
		Services: e,
		Quotes:   e.QuoteWatcher(),
		Balances: e.BalanceWatcher(),
		Metadata: e.Metadata(),
		Inbox:    inbox,
		Keys:     DefaultKeyMap(),
		Logger:   logger.Named("tui"),
	}
}

// Throttled routes quote and balance updates through their own throttlers so
// a burst of one kind never replaces a pending update of the other.
func (d Deps) Throttled(quotes, balances *monitor.Throttler) Deps {
	d.QuoteSend = quotes.Send
	d.BalanceSend = balances.Send
	return d
}

func (d Deps) PostQuote(msg QuoteMsg) {
	if d.QuoteSend != nil {
		d.QuoteSend(msg)
		return
	}
	d.Inbox.Post(msg)
}

func (d Deps) PostBalance(msg BalanceMsg) {
	if d.BalanceSend != nil {
		d.BalanceSend(msg)
		return
	}
	d.Inbox.Post(msg)
}

// OnSnapshot is the directory refresh callback. It resolves display names
// on the refresher goroutine and posts a SnapshotMsg.
func (d Deps) OnSnapshot(snap *registry.Snapshot, err error) {
	msg := SnapshotMsg{Snapshot: snap, Err: err}
	if snap != nil && d.Metadata != nil {
		msg.Names = make(map[common.Address]model.TokenMetadata, len(snap.Records))
		for _, rec := range snap.Records {
			if md, ok := d.Metadata.Get(d.Ctx, rec.Address); ok {
				msg.Names[rec.Address] = md
			}
		}
	}
	if !d.Inbox.Post(msg) && d.Logger != nil {
		d.Logger.Debug("UI inbox full, snapshot dropped")
	}
}
