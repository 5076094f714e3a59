package screen

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/charmbracelet/bubbles/cursor"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/whaleshi/b/internal/bot"
	"github.com/whaleshi/b/internal/dex/model"
	"github.com/whaleshi/b/internal/monitor"
	"github.com/whaleshi/b/internal/registry"
	"github.com/whaleshi/b/internal/types"
	"github.com/whaleshi/b/internal/ui"
	"github.com/whaleshi/b/internal/wallet"
)

var (
	tokenA = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	tokenB = common.HexToAddress("0x00000000000000000000000000000000000000b2")
)

type fakeServices struct {
	mu        sync.Mutex
	records   []model.TokenRecord
	published bool
	wallets   map[string]*wallet.Wallet
	names     []string
	slippage  *types.SlippageStore
	lastView  registry.View
	lastQuery string

	buys     []string
	sells    []string
	percents []int
	tradeErr error
}

func newFakeServices(t *testing.T) *fakeServices {
	t.Helper()
	store, err := types.NewSlippageStore(types.DefaultSlippageBps)
	require.NoError(t, err)

	f := &fakeServices{
		records: []model.TokenRecord{
			{Index: 1, Address: tokenA, Progress: decimal.NewFromInt(40)},
			{Index: 2, Address: tokenB, Progress: decimal.NewFromInt(100), Launched: true},
		},
		wallets:  make(map[string]*wallet.Wallet),
		slippage: store,
	}
	for _, name := range []string{"main", "alt"} {
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		f.wallets[name] = wallet.FromKey(name, key)
		f.names = append(f.names, name)
	}
	return f
}

func (f *fakeServices) Tokens(view registry.View, query string) []model.TokenRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastView, f.lastQuery = view, query
	if !f.published {
		return nil
	}
	return registry.Apply(view, f.records)
}

func (f *fakeServices) TokenDetail(_ context.Context, token common.Address) (bot.TokenDetail, error) {
	for _, rec := range f.records {
		if rec.Address == token {
			return bot.TokenDetail{
				Record:   rec,
				Metadata: model.TokenMetadata{Name: "Alpha", Symbol: "ALP"},
				Resolved: true,
			}, nil
		}
	}
	return bot.TokenDetail{}, errors.New("token not found")
}

func (f *fakeServices) WalletNames() []string { return f.names }

func (f *fakeServices) Wallet(name string) (*wallet.Wallet, error) {
	w, ok := f.wallets[name]
	if !ok {
		return nil, errors.New("unknown wallet")
	}
	return w, nil
}

// ParseTradeAmount accepts plain integers only.
func (f *fakeServices) ParseTradeAmount(_ context.Context, _ model.Side, _ common.Address, amount string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(amount, 10)
	if !ok || v.Sign() <= 0 {
		return nil, errors.New("invalid amount")
	}
	return v, nil
}

func (f *fakeServices) result(token common.Address, side model.Side) (*model.TxResult, error) {
	if f.tradeErr != nil {
		return nil, f.tradeErr
	}
	return &model.TxResult{TxHash: common.HexToHash("0xabc"), Token: token, Side: side}, nil
}

func (f *fakeServices) Buy(_ context.Context, w string, token common.Address, amount string) (*model.TxResult, error) {
	f.mu.Lock()
	f.buys = append(f.buys, w+":"+amount)
	f.mu.Unlock()
	return f.result(token, model.SideBuy)
}

func (f *fakeServices) Sell(_ context.Context, w string, token common.Address, amount string) (*model.TxResult, error) {
	f.mu.Lock()
	f.sells = append(f.sells, w+":"+amount)
	f.mu.Unlock()
	return f.result(token, model.SideSell)
}

func (f *fakeServices) SellPercent(_ context.Context, _ string, token common.Address, pct int) (*model.TxResult, error) {
	f.mu.Lock()
	f.percents = append(f.percents, pct)
	f.mu.Unlock()
	return f.result(token, model.SideSell)
}

func (f *fakeServices) Slippage() *types.SlippageStore { return f.slippage }

type quoteWatch struct {
	req  monitor.QuoteRequest
	sink func(monitor.QuoteUpdate)
}

type fakeQuotes struct {
	mu      sync.Mutex
	watches map[string]quoteWatch
	stopped []string
}

func (f *fakeQuotes) Watch(_ context.Context, owner string, req monitor.QuoteRequest, sink func(monitor.QuoteUpdate)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.watches == nil {
		f.watches = make(map[string]quoteWatch)
	}
	f.watches[owner] = quoteWatch{req: req, sink: sink}
	return nil
}

func (f *fakeQuotes) Stop(owner string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, owner)
	_, ok := f.watches[owner]
	delete(f.watches, owner)
	return ok
}

func (f *fakeQuotes) watch(owner string) (quoteWatch, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	w, ok := f.watches[owner]
	return w, ok
}

type fakeBalances struct {
	mu      sync.Mutex
	sinks   map[common.Address]func(monitor.Balances, error)
	stopped []common.Address
}

func (f *fakeBalances) Watch(_ context.Context, w, _ common.Address, sink func(monitor.Balances, error)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sinks == nil {
		f.sinks = make(map[common.Address]func(monitor.Balances, error))
	}
	f.sinks[w] = sink
	return nil
}

func (f *fakeBalances) Stop(w common.Address) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, w)
	_, ok := f.sinks[w]
	delete(f.sinks, w)
	return ok
}

type fakeMetadata map[common.Address]model.TokenMetadata

func (f fakeMetadata) Get(_ context.Context, token common.Address) (model.TokenMetadata, bool) {
	md, ok := f[token]
	return md, ok
}

type harness struct {
	deps     ui.Deps
	svc      *fakeServices
	quotes   *fakeQuotes
	balances *fakeBalances
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := &harness{
		svc:      newFakeServices(t),
		quotes:   &fakeQuotes{},
		balances: &fakeBalances{},
	}
	h.deps = ui.Deps{
		Ctx:      ctx,
		Services: h.svc,
		Quotes:   h.quotes,
		Balances: h.balances,
		Metadata: fakeMetadata{tokenA: {Name: "Alpha", Symbol: "ALP"}},
		Inbox:    ui.NewInbox(16),
		Keys:     ui.DefaultKeyMap(),
		Logger:   zaptest.NewLogger(t),
	}
	return h
}

// next reads one posted message from the inbox.
func (h *harness) next(t *testing.T) tea.Msg {
	t.Helper()
	select {
	case msg := <-h.deps.Inbox:
		return msg
	default:
		t.Fatal("inbox is empty")
		return nil
	}
}

// drain runs cmd and every command batched inside it, returning the messages.
func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, drain(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

// newTokenScreen starts a screen with a static cursor so key handling never
// returns blink timers.
func newTokenScreen(t *testing.T, h *harness, token common.Address) *TokenScreen {
	t.Helper()
	s := NewTokenScreen(h.deps, token)
	s.amount.Cursor.SetMode(cursor.CursorStatic)
	s.SetSize(120, 40)
	for _, msg := range drain(s.Init()) {
		s.Update(msg)
	}
	return s
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// press sends msg and feeds every resulting message back into the screen.
func press(s *TokenScreen, msg tea.Msg) {
	_, cmd := s.Update(msg)
	for _, m := range drain(cmd) {
		s.Update(m)
	}
}
