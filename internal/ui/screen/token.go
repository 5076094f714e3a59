package screen

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ethereum/go-ethereum/common"

	"github.com/whaleshi/b/internal/bot"
	"github.com/whaleshi/b/internal/dex"
	"github.com/whaleshi/b/internal/dex/model"
	"github.com/whaleshi/b/internal/monitor"
	"github.com/whaleshi/b/internal/types"
	"github.com/whaleshi/b/internal/ui"
	"github.com/whaleshi/b/internal/ui/component"
	"github.com/whaleshi/b/internal/ui/router"
	"github.com/whaleshi/b/internal/ui/style"
)

// QuoteOwner is the quote watcher slot used by the trade panel.
const QuoteOwner = "trade-panel"

// SlippageStep is how much +/- moves the tolerance.
const SlippageStep = 50

// launchpadDecimals is the precision of tokens created by the factory.
const launchpadDecimals = 18

// quoteGate orders amount edits: only the newest edit may (re)start the watch.
type quoteGate struct {
	mu     sync.Mutex
	latest uint64
}

// TokenScreen shows one token with its trade panel.
type TokenScreen struct {
	deps   ui.Deps
	token  common.Address
	width  int
	height int

	ctx     context.Context
	cancel  context.CancelFunc
	started bool

	detail    bot.TokenDetail
	loaded    bool
	detailErr error

	side      model.Side
	amount    textinput.Model
	seq       uint64
	gate      *quoteGate
	quote     *monitor.QuoteUpdate
	amountErr error

	wallets    []string
	walletIdx  int
	walletAddr common.Address
	balances   *monitor.Balances
	balanceErr error

	busy      bool
	status    string
	statusErr bool

	gauge   *component.ProgressGauge
	helpBar *component.HelpBar
}

func NewTokenScreen(deps ui.Deps, token common.Address) *TokenScreen {
	amount := textinput.New()
	amount.Placeholder = "0.0"
	amount.Prompt = ""
	amount.CharLimit = 32
	amount.Width = 20
	amount.Focus()

	return &TokenScreen{
		deps:    deps,
		token:   token,
		side:    model.SideBuy,
		amount:  amount,
		gate:    &quoteGate{},
		wallets: deps.Services.WalletNames(),
		gauge:   component.NewProgressGauge(30),
		helpBar: component.NewHelpBar(),
	}
}

// Init loads detail and starts the balance watch on first entry only.
func (s *TokenScreen) Init() tea.Cmd {
	if s.started {
		return nil
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(s.deps.Ctx)
	return tea.Batch(s.loadDetail(), s.watchBalances(), textinput.Blink)
}

// Close stops the watchers this screen started.
func (s *TokenScreen) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.deps.Quotes.Stop(QuoteOwner)
	if s.walletAddr != (common.Address{}) {
		s.deps.Balances.Stop(s.walletAddr)
	}
}

func (s *TokenScreen) SetSize(width, height int) {
	s.width = width
	s.height = height
	s.helpBar.SetWidth(width)
	if w := width/2 - 10; w > 10 {
		s.gauge.SetWidth(w)
	}
}

func (s *TokenScreen) Token() common.Address { return s.token }
func (s *TokenScreen) Side() model.Side       { return s.side }
func (s *TokenScreen) Busy() bool             { return s.busy }
func (s *TokenScreen) Status() string         { return s.status }

func (s *TokenScreen) Update(msg tea.Msg) (router.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case ui.DetailMsg:
		if msg.Token == s.token {
			s.detailErr = msg.Err
			if msg.Detail.Record.Address != (common.Address{}) {
				s.detail, s.loaded = msg.Detail, true
			}
		}
		return s, nil

	case ui.QuoteMsg:
		if msg.Seq == s.seq {
			u := msg.Update
			s.quote = &u
			s.amountErr = nil
		}
		return s, nil

	case ui.AmountMsg:
		if msg.Seq == s.seq {
			s.amountErr = msg.Err
			s.quote = nil
		}
		return s, nil

	case ui.BalanceMsg:
		if msg.Wallet == s.walletAddr {
			s.balanceErr = msg.Err
			if msg.Err == nil {
				b := msg.Balances
				s.balances = &b
			}
		}
		return s, nil

	case ui.TradeDoneMsg:
		if msg.Token != s.token {
			return s, nil
		}
		s.busy = false
		if msg.Err != nil {
			s.setStatus("❌ "+dex.UserMessage(msg.Err), true)
		} else {
			s.setStatus(fmt.Sprintf("✅ %s confirmed: %s", msg.Side, msg.Result.TxHash.Hex()), false)
		}
		return s, s.loadDetail()

	case tea.KeyMsg:
		return s, s.handleKey(msg)
	}
	return s, nil
}

func (s *TokenScreen) handleKey(msg tea.KeyMsg) tea.Cmd {
	keys := s.deps.Keys
	switch {
	case key.Matches(msg, keys.Back):
		return router.Pop()
	case key.Matches(msg, keys.Submit):
		return s.submit()
	case key.Matches(msg, keys.ToggleSide):
		if s.side == model.SideBuy {
			s.side = model.SideSell
		} else {
			s.side = model.SideBuy
		}
		s.amount.SetValue("")
		return s.requestQuote()
	case key.Matches(msg, keys.NextWallet):
		return s.nextWallet()
	case key.Matches(msg, keys.Refresh):
		return s.loadDetail()
	case key.Matches(msg, keys.SlippageUp):
		return s.adjustSlippage(SlippageStep)
	case key.Matches(msg, keys.SlippageDown):
		return s.adjustSlippage(-SlippageStep)
	case key.Matches(msg, keys.Sell25):
		return s.sellPercent(25)
	case key.Matches(msg, keys.Sell50):
		return s.sellPercent(50)
	case key.Matches(msg, keys.Sell75):
		return s.sellPercent(75)
	case key.Matches(msg, keys.Sell100):
		return s.sellPercent(100)
	}

	before := s.amount.Value()
	var cmd tea.Cmd
	s.amount, cmd = s.amount.Update(msg)
	if s.amount.Value() != before {
		return tea.Batch(cmd, s.requestQuote())
	}
	return cmd
}

func (s *TokenScreen) setStatus(text string, isErr bool) {
	s.status, s.statusErr = text, isErr
}

func (s *TokenScreen) walletName() string {
	if len(s.wallets) == 0 {
		return ""
	}
	return s.wallets[s.walletIdx]
}

func (s *TokenScreen) loadDetail() tea.Cmd {
	ctx, token, svc := s.ctx, s.token, s.deps.Services
	return func() tea.Msg {
		detail, err := svc.TokenDetail(ctx, token)
		return ui.DetailMsg{Token: token, Detail: detail, Err: err}
	}
}

// watchBalances (re)starts polling for the selected wallet.
func (s *TokenScreen) watchBalances() tea.Cmd {
	name := s.walletName()
	if name == "" {
		return nil
	}
	w, err := s.deps.Services.Wallet(name)
	if err != nil {
		s.balanceErr = err
		return nil
	}
	s.walletAddr = w.Address()
	s.balances = nil

	deps, ctx, addr, token := s.deps, s.ctx, s.walletAddr, s.token
	return func() tea.Msg {
		err := deps.Balances.Watch(ctx, addr, token, func(b monitor.Balances, err error) {
			deps.PostBalance(ui.BalanceMsg{Wallet: addr, Balances: b, Err: err})
		})
		if err != nil {
			return ui.BalanceMsg{Wallet: addr, Err: err}
		}
		return nil
	}
}

func (s *TokenScreen) nextWallet() tea.Cmd {
	if len(s.wallets) < 2 {
		return nil
	}
	if s.walletAddr != (common.Address{}) {
		s.deps.Balances.Stop(s.walletAddr)
	}
	s.walletIdx = (s.walletIdx + 1) % len(s.wallets)
	return s.watchBalances()
}

// requestQuote replaces the panel's quote watch with the current input.
// An empty input only stops it.
func (s *TokenScreen) requestQuote() tea.Cmd {
	s.seq++
	s.quote, s.amountErr = nil, nil
	seq := s.seq
	input := strings.TrimSpace(s.amount.Value())
	deps, ctx, gate, side, token := s.deps, s.ctx, s.gate, s.side, s.token

	gate.mu.Lock()
	gate.latest = seq
	gate.mu.Unlock()

	if input == "" {
		deps.Quotes.Stop(QuoteOwner)
		return nil
	}
	return func() tea.Msg {
		amount, err := deps.Services.ParseTradeAmount(ctx, side, token, input)

		gate.mu.Lock()
		defer gate.mu.Unlock()
		if gate.latest != seq {
			return nil
		}
		if err != nil {
			deps.Quotes.Stop(QuoteOwner)
			return ui.AmountMsg{Seq: seq, Err: err}
		}
		req := monitor.QuoteRequest{Token: token, Side: side, AmountIn: amount}
		err = deps.Quotes.Watch(ctx, QuoteOwner, req, func(u monitor.QuoteUpdate) {
			deps.PostQuote(ui.QuoteMsg{Seq: seq, Update: u})
		})
		if err != nil {
			return ui.AmountMsg{Seq: seq, Err: err}
		}
		return nil
	}
}

func (s *TokenScreen) adjustSlippage(delta int) tea.Cmd {
	store := s.deps.Services.Slippage()
	next := store.Slippage().ToleranceBps + delta
	if next < SlippageStep {
		next = SlippageStep
	}
	if next > types.MaxSlippageBps {
		next = types.MaxSlippageBps
	}
	if err := store.Set(next); err != nil {
		s.setStatus("❌ "+err.Error(), true)
		return nil
	}
	s.setStatus("Slippage "+store.Slippage().Percent(), false)
	// min-out depends on the tolerance
	if s.amount.Value() != "" {
		return s.requestQuote()
	}
	return nil
}

func (s *TokenScreen) submit() tea.Cmd {
	input := strings.TrimSpace(s.amount.Value())
	if input == "" {
		s.setStatus("Enter an amount", true)
		return nil
	}
	side := s.side
	return s.trade(side, func(ctx context.Context, svc ui.Services, wallet string, token common.Address) (*model.TxResult, error) {
		if side == model.SideBuy {
			return svc.Buy(ctx, wallet, token, input)
		}
		return svc.Sell(ctx, wallet, token, input)
	})
}

func (s *TokenScreen) sellPercent(pct int) tea.Cmd {
	return s.trade(model.SideSell, func(ctx context.Context, svc ui.Services, wallet string, token common.Address) (*model.TxResult, error) {
		return svc.SellPercent(ctx, wallet, token, pct)
	})
}

type tradeFunc func(ctx context.Context, svc ui.Services, wallet string, token common.Address) (*model.TxResult, error)

// trade runs fn off the UI goroutine. One trade at a time per panel.
// The app context is used so leaving the screen does not abandon a sent tx.
func (s *TokenScreen) trade(side model.Side, fn tradeFunc) tea.Cmd {
	if s.busy {
		return nil
	}
	wallet := s.walletName()
	if wallet == "" {
		s.setStatus("No wallet configured", true)
		return nil
	}
	s.busy = true
	s.setStatus(fmt.Sprintf("⏳ Submitting %s from %s…", side, wallet), false)

	ctx, svc, token := s.deps.Ctx, s.deps.Services, s.token
	return func() tea.Msg {
		res, err := fn(ctx, svc, wallet, token)
		if err == nil && res == nil {
			err = errors.New("empty trade result")
		}
		return ui.TradeDoneMsg{Token: token, Side: side, Result: res, Err: err}
	}
}

func (s *TokenScreen) View() string {
	var b strings.Builder
	b.WriteString(s.headerView())
	b.WriteString("\n")

	panels := style.AdaptiveJoinHorizontal(s.width, s.tradeView(), s.walletView())
	b.WriteString(panels)
	b.WriteString("\n")

	if s.status != "" {
		st := style.InfoStyle
		if s.statusErr {
			st = style.ErrorStyle
		}
		b.WriteString(lipgloss.NewStyle().Padding(0, 1).Render(st.Render(s.status)))
		b.WriteString("\n")
	}
	b.WriteString(s.helpBar.View(s.deps.Keys.TradeHelp()))
	return b.String()
}

func (s *TokenScreen) headerView() string {
	md := s.detail.Metadata
	if !s.detail.Resolved {
		md = model.PlaceholderMetadata(s.token)
	}

	var lines []string
	title := style.HeaderStyle.Render(fmt.Sprintf("%s  %s", md.Symbol, md.Name))
	lines = append(lines, title)
	lines = append(lines, style.MutedStyle.Padding(0, 1).Render(s.token.Hex()))

	switch {
	case s.loaded:
		rec := s.detail.Record
		s.gauge.SetValue(rec.Progress, rec.Launched)
		venue := "bonding curve"
		if rec.Launched {
			venue = "external DEX"
		}
		lines = append(lines, lipgloss.NewStyle().Padding(0, 1).Render(s.gauge.View()+"  "+style.MutedStyle.Render(venue)))
	case s.detailErr == nil:
		lines = append(lines, style.MutedStyle.Padding(0, 1).Render("Loading…"))
	}
	if s.detailErr != nil {
		lines = append(lines, style.WarningStyle.Padding(0, 1).Render("⚠ "+dex.UserMessage(s.detailErr)))
	}
	if md.Description != "" {
		lines = append(lines, lipgloss.NewStyle().Padding(0, 1).Width(s.width-2).Render(md.Description))
	}
	return strings.Join(lines, "\n")
}

func (s *TokenScreen) tradeView() string {
	var lines []string

	buy, sell := style.MutedStyle.Render("buy"), style.MutedStyle.Render("sell")
	if s.side == model.SideBuy {
		buy = style.BuyStyle.Render("▶ BUY")
	} else {
		sell = style.SellStyle.Render("▶ SELL")
	}
	lines = append(lines, style.TitleStyle.Render("Trade")+"  "+buy+" / "+sell)

	unit := "OKB"
	if s.side == model.SideSell {
		unit = s.symbol()
	}
	lines = append(lines, fmt.Sprintf("Amount:   %s %s", s.amount.View(), unit))

	switch {
	case s.amountErr != nil:
		lines = append(lines, style.ErrorStyle.Render(dex.UserMessage(s.amountErr)))
	case s.quote != nil && s.quote.Err != nil:
		lines = append(lines, style.WarningStyle.Render("Quote: "+dex.UserMessage(s.quote.Err)))
	case s.quote != nil && s.quote.Quote != nil:
		outUnit := s.symbol()
		if s.side == model.SideSell {
			outUnit = "OKB"
		}
		lines = append(lines,
			fmt.Sprintf("You get:  ~%s %s", types.FormatAmount(s.quote.Quote.ExpectedAmountOut, launchpadDecimals, 6), outUnit),
			fmt.Sprintf("Min out:  %s %s", types.FormatAmount(s.quote.MinAmountOut, launchpadDecimals, 6), outUnit),
			style.MutedStyle.Render(fmt.Sprintf("via %s · %s", s.quote.Quote.Venue, s.quote.At.Format("15:04:05"))))
	case strings.TrimSpace(s.amount.Value()) != "":
		lines = append(lines, style.MutedStyle.Render("Quoting…"))
	}

	lines = append(lines, fmt.Sprintf("Slippage: %s", s.deps.Services.Slippage().Slippage().Percent()))
	if s.busy {
		lines = append(lines, style.WarningStyle.Render("⏳ trade in progress"))
	}
	return style.ActivePanelStyle.Render(strings.Join(lines, "\n"))
}

func (s *TokenScreen) walletView() string {
	lines := []string{style.TitleStyle.Render("Wallet")}
	name := s.walletName()
	if name == "" {
		lines = append(lines, style.ErrorStyle.Render("no wallets"))
		return style.PanelStyle.Render(strings.Join(lines, "\n"))
	}
	lines = append(lines, fmt.Sprintf("%s %s", name, style.MutedStyle.Render(model.ShortAddress(s.walletAddr))))

	switch {
	case s.balances != nil:
		lines = append(lines,
			fmt.Sprintf("OKB:  %s", types.FormatAmount(s.balances.Native, types.NativeDecimals, 6)),
			fmt.Sprintf("%s: %s", s.symbol(), types.FormatAmount(s.balances.Held, launchpadDecimals, 4)))
	case s.balanceErr != nil:
		lines = append(lines, style.WarningStyle.Render(dex.UserMessage(s.balanceErr)))
	default:
		lines = append(lines, style.MutedStyle.Render("Loading balances…"))
	}
	return style.PanelStyle.Render(strings.Join(lines, "\n"))
}

func (s *TokenScreen) symbol() string {
	if s.detail.Resolved && s.detail.Metadata.Symbol != "" {
		return s.detail.Metadata.Symbol
	}
	return "tokens"
}
