package dex_test

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/whaleshi/b/internal/blockchain/evm"
	"github.com/whaleshi/b/internal/blockchain/evm/evmtest"
	"github.com/whaleshi/b/internal/contracts"
	"github.com/whaleshi/b/internal/dex"
	"github.com/whaleshi/b/internal/dex/amm"
	"github.com/whaleshi/b/internal/dex/bonding"
	"github.com/whaleshi/b/internal/dex/model"
	"github.com/whaleshi/b/internal/events"
	"github.com/whaleshi/b/internal/types"
	"github.com/whaleshi/b/internal/wallet"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

var (
	factoryAddr = contracts.DefaultFactory
	routerAddr  = contracts.DefaultRouter
	wethAddr    = contracts.DefaultWETH
	tokenAddr   = common.HexToAddress("0x00000000000000000000000000000000000000aa")
)

type stubState struct {
	mu    sync.Mutex
	infos map[common.Address]*model.TokenInfo
}

func (s *stubState) TokenInfo(_ context.Context, token common.Address) (*model.TokenInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.infos[token]
	if !ok {
		return nil, dex.ErrStateUnavailable
	}
	return info, nil
}

func (s *stubState) set(token common.Address, info *model.TokenInfo) {
	s.mu.Lock()
	s.infos[token] = info
	s.mu.Unlock()
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(e events.Event) error {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
	return nil
}

func (p *recordingPublisher) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.EventType, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type())
	}
	return out
}

// sentCall is a decoded factory or router transaction.
type sentCall struct {
	method string
	value  *big.Int
	args   []interface{}
}

type harness struct {
	backend   *evmtest.Backend
	token     *evmtest.Token
	wallet    *wallet.Wallet
	state     *stubState
	slippage  *types.SlippageStore
	publisher *recordingPublisher
	locks     *dex.Locks
	exec      *dex.TradeExecutor
	erc20     *dex.ERC20
	gas       *dex.GasPricer
	factory   *bonding.Factory

	mu sync.Mutex
	// quote answers in order; the last one repeats
	buyQuotes  []*big.Int
	sellQuotes []*big.Int
	sent       []sentCall
	revertTx   string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := zaptest.NewLogger(t)

	b := evmtest.New()
	h := &harness{
		backend:    b,
		token:      evmtest.NewToken(b, tokenAddr),
		state:      &stubState{infos: map[common.Address]*model.TokenInfo{tokenAddr: {Target: big.NewInt(100)}}},
		publisher:  &recordingPublisher{},
		locks:      dex.NewLocks(),
		buyQuotes:  []*big.Int{big.NewInt(950)},
		sellQuotes: []*big.Int{big.NewInt(1000)},
	}

	b.HandleCall(factoryAddr, contracts.FactoryABI, "tryBuy", func([]interface{}) ([]interface{}, error) {
		return []interface{}{h.nextQuote(&h.buyQuotes), big.NewInt(0)}, nil
	})
	b.HandleCall(factoryAddr, contracts.FactoryABI, "trySell", func([]interface{}) ([]interface{}, error) {
		return []interface{}{h.nextQuote(&h.sellQuotes)}, nil
	})
	b.HandleCall(routerAddr, contracts.RouterABI, "getAmountsOut", func(args []interface{}) ([]interface{}, error) {
		path := args[1].([]common.Address)
		quotes := &h.buyQuotes
		if path[0] == tokenAddr {
			quotes = &h.sellQuotes
		}
		return []interface{}{[]*big.Int{args[0].(*big.Int), h.nextQuote(quotes)}}, nil
	})
	for _, m := range []string{"purchase", "buyToken", "sell"} {
		h.recordTx(factoryAddr, contracts.FactoryABI, m)
	}
	for _, m := range []string{"swapExactETHForTokens", "swapExactTokensForETH"} {
		h.recordTx(routerAddr, contracts.RouterABI, m)
	}

	w, err := wallet.NewWallet("test", testKey)
	require.NoError(t, err)
	w.Connect(b, b.ChainIDValue(), logger)
	w.SetReceiptPoll(time.Millisecond)
	h.wallet = w
	b.SetBalance(w.Address(), big.NewInt(1_000_000))

	h.slippage, err = types.NewSlippageStore(types.DefaultSlippageBps)
	require.NoError(t, err)

	caller := evm.NewCaller(b, evm.RetryConfig{Timeout: time.Second, InitialInterval: time.Millisecond}, logger)
	h.factory, err = bonding.NewFactory(caller, factoryAddr, bonding.BuyMethodPurchase)
	require.NoError(t, err)
	router := amm.NewRouter(caller, routerAddr, wethAddr)

	h.erc20 = dex.NewERC20(caller)
	h.gas = dex.NewGasPricer(b, time.Second, logger)
	h.exec, err = dex.NewTradeExecutor(dex.ExecutorDeps{
		Signer:    w,
		State:     h.state,
		Quotes:    dex.NewQuoteEngine(h.factory, router),
		Allowance: dex.NewAllowanceGuard(h.erc20, w, h.gas, logger),
		Gas:       h.gas,
		ERC20:     h.erc20,
		Slippage:  h.slippage,
		Locks:     h.locks,
		Publisher: h.publisher,
	}, logger)
	require.NoError(t, err)
	return h
}

func (h *harness) nextQuote(queue *[]*big.Int) *big.Int {
	h.mu.Lock()
	defer h.mu.Unlock()
	q := (*queue)[0]
	if len(*queue) > 1 {
		*queue = (*queue)[1:]
	}
	return q
}

func (h *harness) recordTx(to common.Address, parsed abi.ABI, name string) {
	h.backend.HandleTx(to, parsed, name, func(_ common.Address, value *big.Int, args []interface{}) error {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.sent = append(h.sent, sentCall{method: name, value: value, args: args})
		if h.revertTx == name {
			return errors.New("execution reverted")
		}
		return nil
	})
}

func (h *harness) sentCalls() []sentCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]sentCall(nil), h.sent...)
}

func (h *harness) launch() {
	h.state.set(tokenAddr, &model.TokenInfo{Target: big.NewInt(100), Launched: true})
}

// journalIndex returns the position of the n-th (0-based) entry matching kind and method.
func journalIndex(entries []evmtest.Entry, kind, method string, n int) int {
	for i, e := range entries {
		if e.Kind == kind && e.Method == method {
			if n == 0 {
				return i
			}
			n--
		}
	}
	return -1
}
