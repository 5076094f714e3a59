// internal/bot/engine.go
package bot

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/whaleshi/b/internal/blockchain/evm"
	"github.com/whaleshi/b/internal/config"
	"github.com/whaleshi/b/internal/dex"
	"github.com/whaleshi/b/internal/dex/amm"
	"github.com/whaleshi/b/internal/dex/bonding"
	"github.com/whaleshi/b/internal/dex/model"
	"github.com/whaleshi/b/internal/events"
	"github.com/whaleshi/b/internal/monitor"
	"github.com/whaleshi/b/internal/multicall"
	"github.com/whaleshi/b/internal/registry"
	"github.com/whaleshi/b/internal/storage"
	"github.com/whaleshi/b/internal/storage/csvlog"
	"github.com/whaleshi/b/internal/storage/memory"
	"github.com/whaleshi/b/internal/storage/postgres"
	"github.com/whaleshi/b/internal/types"
	"github.com/whaleshi/b/internal/utils/metrics"
	"github.com/whaleshi/b/internal/wallet"
)

// ErrUnknownWallet is returned for a wallet name not in wallets.yaml.
var ErrUnknownWallet = errors.New("unknown wallet")

const (
	eventBuffer       = 512
	journalFlushEvery = 5 * time.Second
)

// Deps are the pieces NewEngine resolves from config. Build takes them
// directly so tests can run the engine against an in-memory backend.
type Deps struct {
	Backend evm.Backend
	ChainID *big.Int
	Wallets map[string]*wallet.Wallet

	// optional
	Metrics         *metrics.Collector
	MetadataStore   registry.MetadataStore
	MetadataFetcher registry.MetadataFetcher
	Trades          storage.TradeStore
	Sinks           []storage.TradeSink

	closers []namedService
}

func (d *Deps) onClose(name string, fn func() error) {
	d.closers = append(d.closers, namedService{name: name, closer: CloseFunc(fn)})
}

// Engine owns one connected instance of the trade stack: reads, routing,
// per-wallet executors, the directory and the background watchers.
type Engine struct {
	cfg     *config.Config
	chainID *big.Int
	logger  *zap.Logger

	caller   *evm.Caller
	metrics  *metrics.Collector
	factory  *bonding.Factory
	quotes   *dex.QuoteEngine
	erc20    *dex.ERC20
	gas      *dex.GasPricer
	slippage *types.SlippageStore
	locks    *dex.Locks
	bus      *events.Bus

	lookup   *registry.Lookup
	metadata *registry.MetadataResolver

	scheduler *monitor.Scheduler
	directory *monitor.DirectoryRefresher
	quoteW    *monitor.QuoteWatcher
	balanceW  *monitor.BalanceWatcher

	journal   *TradeJournal
	wallets   map[string]*wallet.Wallet
	executors map[string]*dex.TradeExecutor
	launchers map[string]*dex.Launcher

	shutdown *ShutdownHandler
}

// NewEngine dials the RPC list and opens the optional stores named in cfg.
func NewEngine(ctx context.Context, cfg *config.Config, wallets map[string]*wallet.Wallet, logger *zap.Logger) (*Engine, error) {
	deps := Deps{Wallets: wallets}
	cleanup := func() {
		for i := len(deps.closers) - 1; i >= 0; i-- {
			_ = deps.closers[i].closer.Close()
		}
	}

	client, err := evm.Dial(ctx, cfg.RPCList, cfg.ChainID, logger)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}
	deps.Backend = client
	deps.ChainID = big.NewInt(cfg.ChainID)
	deps.onClose("rpc", func() error { client.Close(); return nil })

	deps.MetadataFetcher = registry.NewHTTPMetadataFetcher(cfg.IPFSGateway, cfg.MetadataTimeout)
	if cfg.RedisURL != "" {
		rdb, err := registry.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			cleanup()
			return nil, err
		}
		deps.MetadataStore = registry.NewRedisStore(rdb, "")
		deps.onClose("redis", rdb.Close)
	}

	if cfg.PostgresURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.PostgresURL)
		if err != nil {
			cleanup()
			return nil, err
		}
		deps.onClose("postgres", func() error { pool.Close(); return nil })
		if err := pool.Migrate(ctx); err != nil {
			cleanup()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		deps.Trades = postgres.NewTradeStore(pool)
	}

	if cfg.JournalFile != "" {
		j, err := csvlog.Open(cfg.JournalFile, journalFlushEvery, logger)
		if err != nil {
			cleanup()
			return nil, err
		}
		deps.Sinks = append(deps.Sinks, j)
		deps.onClose("csv_journal", j.Close)
	}

	engine, err := Build(cfg, deps, logger)
	if err != nil {
		cleanup()
		return nil, err
	}
	return engine, nil
}

// Build wires the engine over an already connected backend.
func Build(cfg *config.Config, deps Deps, logger *zap.Logger) (*Engine, error) {
	if deps.Backend == nil || deps.ChainID == nil {
		return nil, errors.New("engine: backend and chain id are required")
	}
	if len(deps.Wallets) == 0 {
		return nil, errors.New("engine: no wallets")
	}

	sh := NewShutdownHandler(logger)
	for _, c := range deps.closers {
		sh.Add(c.name, c.closer)
	}

	collector := deps.Metrics
	if collector == nil {
		collector = metrics.NewCollector()
	}

	retry := evm.DefaultRetryConfig()
	retry.Timeout = cfg.ReadTimeout
	retry.MaxRetries = uint(cfg.ReadRetries)
	caller := evm.NewCaller(deps.Backend, retry, logger).WithMetrics(collector)

	factoryAddr, routerAddr, wethAddr, multicallAddr := cfg.Addresses()
	factory, err := bonding.NewFactory(caller, factoryAddr, cfg.FactoryBuyMethod)
	if err != nil {
		return nil, err
	}
	router := amm.NewRouter(caller, routerAddr, wethAddr)

	slippage, err := types.NewSlippageStore(cfg.SlippageBps)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:       cfg,
		chainID:   deps.ChainID,
		logger:    logger.Named("engine"),
		caller:    caller,
		metrics:   collector,
		factory:   factory,
		quotes:    dex.NewQuoteEngine(factory, router),
		erc20:     dex.NewERC20(caller),
		gas:       dex.NewGasPricer(deps.Backend, cfg.ReadTimeout, logger),
		slippage:  slippage,
		locks:     dex.NewLocks(),
		bus:       events.NewBus(logger, eventBuffer),
		wallets:   deps.Wallets,
		executors: make(map[string]*dex.TradeExecutor, len(deps.Wallets)),
		launchers: make(map[string]*dex.Launcher, len(deps.Wallets)),
		shutdown:  sh,
	}

	// directory
	aggregator := registry.NewAggregator(factory, multicall.NewClient(caller, multicallAddr), logger).WithMetrics(collector)
	e.lookup = registry.NewLookup(aggregator, logger)
	store := deps.MetadataStore
	if store == nil {
		store = registry.NewMemoryStore()
	}
	fetcher := deps.MetadataFetcher
	if fetcher == nil {
		fetcher = registry.NewHTTPMetadataFetcher(cfg.IPFSGateway, cfg.MetadataTimeout)
	}
	e.metadata = registry.NewMetadataResolver(fetcher, store, cfg.MetadataBatchSize, cfg.MetadataBatchPause, logger).WithMetrics(collector)

	// journal
	trades := deps.Trades
	if trades == nil {
		trades = memory.NewTradeStore()
	}
	e.journal = NewTradeJournal(trades, logger, deps.Sinks...)
	e.journal.Attach(e.bus)
	sh.AddFunc("event_bus", func() error {
		ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
		defer cancel()
		return e.bus.Shutdown(ctx)
	})

	// background polling
	e.scheduler = monitor.NewScheduler(logger)
	e.directory = monitor.NewDirectoryRefresher(e.scheduler, aggregator, e.lookup, e.metadata, e.bus, cfg.RefreshInterval, logger)
	e.quoteW = monitor.NewQuoteWatcher(e.scheduler, e.lookup, e.quotes, slippage, cfg.QuoteInterval, logger)
	// the watcher retries on its own; its reads must not retry again underneath
	single := retry
	single.MaxRetries = 0
	balances := dex.NewERC20(evm.NewCaller(deps.Backend, single, logger).WithMetrics(collector))
	e.balanceW = monitor.NewBalanceWatcher(e.scheduler, balances, cfg.BalanceInterval, logger)
	sh.AddFunc("scheduler", func() error { e.scheduler.Stop(); return nil })

	for name, w := range deps.Wallets {
		w.Connect(deps.Backend, deps.ChainID, logger)
		if cfg.DefaultGasLimit > 0 {
			w.SetDefaultGasLimit(cfg.DefaultGasLimit)
		}
		exec, err := dex.NewTradeExecutor(dex.ExecutorDeps{
			Signer:    w,
			State:     e.lookup,
			Quotes:    e.quotes,
			Allowance: dex.NewAllowanceGuard(e.erc20, w, e.gas, logger),
			Gas:       e.gas,
			ERC20:     e.erc20,
			Slippage:  slippage,
			Locks:     e.locks,
			Publisher: e.bus,
			Metrics:   collector,
			Deadline:  cfg.SwapDeadline,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("wallet %s: %w", name, err)
		}
		e.executors[name] = exec
		e.launchers[name] = dex.NewLauncher(factory, w, e.gas, e.erc20, e.bus, logger)
	}

	e.logger.Info("Engine ready",
		zap.Int("wallets", len(deps.Wallets)),
		zap.String("factory", factoryAddr.Hex()),
		zap.String("buy_method", factory.BuyMethod()),
		zap.Int("slippage_bps", slippage.Slippage().ToleranceBps))
	return e, nil
}

// Start launches the directory refresh loop and, when configured, the
// metrics endpoint. onSnapshot may be nil.
func (e *Engine) Start(ctx context.Context, onSnapshot func(*registry.Snapshot, error)) error {
	if err := e.directory.Start(ctx, onSnapshot); err != nil {
		return err
	}
	if addr := e.cfg.MetricsAddr; addr != "" {
		srvCtx, cancel := context.WithCancel(ctx)
		e.shutdown.AddFunc("metrics", func() error { cancel(); return nil })
		go func() {
			if err := e.metrics.Serve(srvCtx, addr); err != nil {
				e.logger.Error("Metrics server stopped", zap.String("addr", addr), zap.Error(err))
			}
		}()
		e.logger.Info("Metrics endpoint started", zap.String("addr", addr))
	}
	return nil
}

// Close stops the watchers, drains the event bus into the journal and
// closes the stores and the RPC client.
func (e *Engine) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	return e.shutdown.Shutdown(ctx)
}

func (e *Engine) Bus() *events.Bus                        { return e.bus }
func (e *Engine) Lookup() *registry.Lookup                { return e.lookup }
func (e *Engine) Metadata() *registry.MetadataResolver    { return e.metadata }
func (e *Engine) Directory() *monitor.DirectoryRefresher  { return e.directory }
func (e *Engine) QuoteWatcher() *monitor.QuoteWatcher     { return e.quoteW }
func (e *Engine) BalanceWatcher() *monitor.BalanceWatcher { return e.balanceW }
func (e *Engine) Slippage() *types.SlippageStore          { return e.slippage }
func (e *Engine) Trades() storage.TradeStore              { return e.journal.Store() }
func (e *Engine) Metrics() *metrics.Collector             { return e.metrics }

// WalletNames in sorted order.
func (e *Engine) WalletNames() []string {
	names := make([]string, 0, len(e.wallets))
	for name := range e.wallets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *Engine) Wallet(name string) (*wallet.Wallet, error) {
	w, ok := e.wallets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownWallet, name)
	}
	return w, nil
}

func (e *Engine) Executor(name string) (*dex.TradeExecutor, error) {
	exec, ok := e.executors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownWallet, name)
	}
	return exec, nil
}

func (e *Engine) Launcher(name string) (*dex.Launcher, error) {
	l, ok := e.launchers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownWallet, name)
	}
	return l, nil
}

// ParseTradeAmount converts a human amount for side: native units for a buy,
// the token's own decimals for a sell.
func (e *Engine) ParseTradeAmount(ctx context.Context, side model.Side, token common.Address, amount string) (*big.Int, error) {
	decimals := int32(types.NativeDecimals)
	if side == model.SideSell {
		d, err := e.erc20.Decimals(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("read decimals: %w", err)
		}
		decimals = int32(d)
	}
	return types.ParseAmount(amount, decimals)
}

// Buy spends amount of native currency ("0.5") from walletName on token.
func (e *Engine) Buy(ctx context.Context, walletName string, token common.Address, amount string) (*model.TxResult, error) {
	exec, err := e.Executor(walletName)
	if err != nil {
		return nil, err
	}
	wei, err := e.ParseTradeAmount(ctx, model.SideBuy, token, amount)
	if err != nil {
		return nil, err
	}
	return exec.Buy(ctx, token, wei)
}

// Sell sells amount of token (human units) from walletName.
func (e *Engine) Sell(ctx context.Context, walletName string, token common.Address, amount string) (*model.TxResult, error) {
	exec, err := e.Executor(walletName)
	if err != nil {
		return nil, err
	}
	units, err := e.ParseTradeAmount(ctx, model.SideSell, token, amount)
	if err != nil {
		return nil, err
	}
	return exec.Sell(ctx, token, units)
}

func (e *Engine) SellPercent(ctx context.Context, walletName string, token common.Address, pct int) (*model.TxResult, error) {
	exec, err := e.Executor(walletName)
	if err != nil {
		return nil, err
	}
	return exec.SellPercent(ctx, token, pct)
}

// Create launches a token from walletName; initialBuy may be empty.
func (e *Engine) Create(ctx context.Context, walletName, name, symbol, uri, initialBuy string) (*model.LaunchResult, error) {
	l, err := e.Launcher(walletName)
	if err != nil {
		return nil, err
	}
	params := dex.CreateParams{Name: name, Symbol: symbol, MetadataURI: uri}
	if initialBuy != "" {
		params.InitialBuy, err = types.ParseAmount(initialBuy, types.NativeDecimals)
		if err != nil {
			return nil, err
		}
	}
	return l.Create(ctx, params)
}

// Holdings reads the wallet's position in token. EstimatedNative is
// best-effort and stays nil when no quote is available.
func (e *Engine) Holdings(ctx context.Context, walletName string, token common.Address) (*model.Holdings, error) {
	w, err := e.Wallet(walletName)
	if err != nil {
		return nil, err
	}
	h := &model.Holdings{Wallet: w.Address(), Token: token}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := e.erc20.NativeBalance(gctx, h.Wallet)
		h.Native = v
		return err
	})
	g.Go(func() error {
		v, err := e.erc20.BalanceOf(gctx, token, h.Wallet)
		h.TokenBalance = v
		return err
	})
	g.Go(func() error {
		d, err := e.erc20.Decimals(gctx, token)
		h.TokenDecimals = d
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	h.UpdatedAt = time.Now()

	if h.TokenBalance.Sign() > 0 {
		if info, err := e.lookup.TokenInfo(ctx, token); err == nil {
			if venue, err := dex.Route(info); err == nil {
				if out, err := e.quotes.Quote(ctx, venue, model.SideSell, token, h.TokenBalance); err == nil {
					h.EstimatedNative = out
				}
			}
		}
	}
	return h, nil
}

// TokenDetail is one token with its resolved metadata.
type TokenDetail struct {
	Record   model.TokenRecord
	Metadata model.TokenMetadata
	// Resolved is false while metadata has not been fetched yet.
	Resolved bool
}

// TokenDetail re-reads one token and resolves its metadata if still missing.
// A degraded read returns the last known record with the error.
func (e *Engine) TokenDetail(ctx context.Context, token common.Address) (TokenDetail, error) {
	rec, err := e.lookup.Refresh(ctx, token)
	if rec.Address == (common.Address{}) {
		return TokenDetail{}, err
	}
	detail := TokenDetail{Record: rec}
	if md, ok := e.metadata.Get(ctx, token); ok {
		detail.Metadata, detail.Resolved = md, true
		return detail, err
	}
	if rec.URIKnown {
		if _, rerr := e.metadata.Resolve(ctx, []model.TokenRecord{rec}); rerr == nil {
			detail.Metadata, detail.Resolved = e.metadata.Get(ctx, token)
		}
	}
	return detail, err
}

// Tokens returns the current directory filtered by view and an address query.
func (e *Engine) Tokens(view registry.View, query string) []model.TokenRecord {
	return registry.FilterByAddress(registry.Apply(view, e.lookup.Records()), query)
}
