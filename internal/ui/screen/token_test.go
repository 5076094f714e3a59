package screen

import (
	"errors"
	"math/big"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whaleshi/b/internal/dex/model"
	"github.com/whaleshi/b/internal/monitor"
	"github.com/whaleshi/b/internal/ui"
	"github.com/whaleshi/b/internal/ui/router"
)

func quoteUpdate(req monitor.QuoteRequest) monitor.QuoteUpdate {
	return monitor.QuoteUpdate{
		Request: req,
		Quote: &model.Quote{
			Venue:             model.VenueInternal,
			Side:              req.Side,
			Token:             req.Token,
			AmountIn:          req.AmountIn,
			ExpectedAmountOut: big.NewInt(2e18),
		},
		MinAmountOut: big.NewInt(1.98e18),
		ToleranceBps: 100,
		At:           time.Now(),
	}
}

func TestTokenScreen_InitLoadsDetailAndBalances(t *testing.T) {
	h := newHarness(t)
	s := newTokenScreen(t, h, tokenA)

	assert.True(t, s.loaded)
	assert.Equal(t, "Alpha", s.detail.Metadata.Name)

	primary, err := h.svc.Wallet("main")
	require.NoError(t, err)
	assert.Equal(t, primary.Address(), s.walletAddr)

	h.balances.mu.Lock()
	sink := h.balances.sinks[primary.Address()]
	h.balances.mu.Unlock()
	require.NotNil(t, sink)

	sink(monitor.Balances{Wallet: primary.Address(), Token: tokenA, Native: big.NewInt(1), Held: big.NewInt(2)}, nil)
	press(s, h.next(t))
	require.NotNil(t, s.balances)
	assert.Equal(t, int64(2), s.balances.Held.Int64())

	view := s.View()
	assert.Contains(t, view, "ALP")
	assert.Contains(t, view, "main")
}

func TestTokenScreen_StaleQuotesAreDropped(t *testing.T) {
	h := newHarness(t)
	s := newTokenScreen(t, h, tokenA)

	press(s, runes("1"))
	first, ok := h.quotes.watch(QuoteOwner)
	require.True(t, ok)
	assert.Equal(t, int64(1), first.req.AmountIn.Int64())
	assert.Equal(t, model.SideBuy, first.req.Side)

	first.sink(quoteUpdate(first.req))
	press(s, h.next(t))
	require.NotNil(t, s.quote)
	assert.Contains(t, s.View(), "You get")

	// a newer edit invalidates anything the old watch still delivers
	press(s, runes("2"))
	second, ok := h.quotes.watch(QuoteOwner)
	require.True(t, ok)
	assert.Equal(t, int64(12), second.req.AmountIn.Int64())
	assert.Nil(t, s.quote)

	first.sink(quoteUpdate(first.req))
	press(s, h.next(t))
	assert.Nil(t, s.quote)

	second.sink(quoteUpdate(second.req))
	press(s, h.next(t))
	require.NotNil(t, s.quote)
	assert.Equal(t, int64(12), s.quote.Request.AmountIn.Int64())
}

func TestTokenScreen_InvalidAmountStopsQuote(t *testing.T) {
	h := newHarness(t)
	s := newTokenScreen(t, h, tokenA)

	press(s, runes("x"))
	assert.Error(t, s.amountErr)
	assert.Contains(t, h.quotes.stopped, QuoteOwner)
	_, ok := h.quotes.watch(QuoteOwner)
	assert.False(t, ok)
}

func TestTokenScreen_ToggleSideRequotes(t *testing.T) {
	h := newHarness(t)
	s := newTokenScreen(t, h, tokenA)

	press(s, tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, model.SideSell, s.Side())

	press(s, runes("5"))
	w, ok := h.quotes.watch(QuoteOwner)
	require.True(t, ok)
	assert.Equal(t, model.SideSell, w.req.Side)
}

func TestTokenScreen_SubmitBuy(t *testing.T) {
	h := newHarness(t)
	s := newTokenScreen(t, h, tokenA)

	press(s, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Empty(t, h.svc.buys)
	assert.Equal(t, "Enter an amount", s.Status())

	press(s, runes("3"))
	press(s, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, []string{"main:3"}, h.svc.buys)
	assert.False(t, s.Busy())
	assert.Contains(t, s.Status(), "confirmed")
}

func TestTokenScreen_OneTradeAtATime(t *testing.T) {
	h := newHarness(t)
	s := newTokenScreen(t, h, tokenA)

	_, cmd := s.Update(tea.KeyMsg{Type: tea.KeyF2})
	require.NotNil(t, cmd)
	assert.True(t, s.Busy())

	_, again := s.Update(tea.KeyMsg{Type: tea.KeyF4})
	assert.Nil(t, again)

	for _, m := range drain(cmd) {
		s.Update(m)
	}
	assert.Equal(t, []int{50}, h.svc.percents)
	assert.False(t, s.Busy())
}

func TestTokenScreen_TradeErrorShowsUserMessage(t *testing.T) {
	h := newHarness(t)
	h.svc.tradeErr = errors.New("dial tcp: connection refused")
	s := newTokenScreen(t, h, tokenA)

	press(s, tea.KeyMsg{Type: tea.KeyF4})
	assert.Equal(t, []int{100}, h.svc.percents)
	assert.True(t, s.statusErr)
	assert.Contains(t, s.Status(), "❌")
}

func TestTokenScreen_SlippageKeys(t *testing.T) {
	h := newHarness(t)
	s := newTokenScreen(t, h, tokenA)
	store := h.svc.Slippage()

	press(s, runes("+"))
	assert.Equal(t, 150, store.Slippage().ToleranceBps)

	press(s, runes("-"))
	press(s, runes("-"))
	press(s, runes("-"))
	assert.Equal(t, SlippageStep, store.Slippage().ToleranceBps)
	assert.Contains(t, s.Status(), "0.5%")
}

func TestTokenScreen_NextWalletSwitchesBalanceWatch(t *testing.T) {
	h := newHarness(t)
	s := newTokenScreen(t, h, tokenA)
	primary, _ := h.svc.Wallet("main")
	alt, _ := h.svc.Wallet("alt")

	press(s, tea.KeyMsg{Type: tea.KeyCtrlW})
	assert.Equal(t, alt.Address(), s.walletAddr)
	assert.Contains(t, h.balances.stopped, primary.Address())

	// late poll of the previous wallet is ignored
	s.Update(ui.BalanceMsg{Wallet: primary.Address(), Balances: monitor.Balances{Held: big.NewInt(9)}})
	assert.Nil(t, s.balances)
}

func TestTokenScreen_CloseStopsWatchers(t *testing.T) {
	h := newHarness(t)
	s := newTokenScreen(t, h, tokenA)
	press(s, runes("1"))

	s.Close()
	assert.Contains(t, h.quotes.stopped, QuoteOwner)
	primary, _ := h.svc.Wallet("main")
	assert.Contains(t, h.balances.stopped, primary.Address())
	assert.Error(t, s.ctx.Err())
}

func TestTokenScreen_EscPops(t *testing.T) {
	h := newHarness(t)
	s := newTokenScreen(t, h, tokenA)

	_, cmd := s.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.IsType(t, router.PopMsg{}, cmd())
}
