// ====================================
// File: cmd/bot/main.go
// ====================================
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/whaleshi/b/internal/bot"
	"github.com/whaleshi/b/internal/config"
	"github.com/whaleshi/b/internal/dex"
	"github.com/whaleshi/b/internal/dex/model"
	"github.com/whaleshi/b/internal/export"
	"github.com/whaleshi/b/internal/registry"
	"github.com/whaleshi/b/internal/storage"
	"github.com/whaleshi/b/internal/types"
	"github.com/whaleshi/b/internal/utils/logger"
	"github.com/whaleshi/b/internal/wallet"
)

const usage = `usage: bot [-config path] <command> [flags]

commands:
  run        execute tasks.yaml through the worker pool
  serve      keep the directory refreshing and expose metrics
  list       print one directory view
  buy        buy a token with native currency
  sell       sell a token amount or a percentage of holdings
  create     create a new token
  holdings   show wallet balances for a token
  trades     show or export the trade journal
`

func main() {
	configPath := flag.String("config", "configs/config.json", "config file")
	flag.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(*configPath, flag.Arg(0), flag.Args()[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %s\n   %v\n", dex.UserMessage(err), err)
		os.Exit(1)
	}
}

func run(configPath, command string, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logCfg := logger.DefaultConfig()
	logCfg.LogFile = "logs/bot.log"
	logCfg.Development = cfg.DebugLogging
	log, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	wallets, err := wallet.LoadWallets(cfg.WalletsFile)
	if err != nil {
		return fmt.Errorf("load wallets: %w", err)
	}

	ctx, cancel := bot.SignalContext(context.Background(), log.Logger)
	defer cancel()

	engine, err := bot.NewEngine(ctx, cfg, wallets, log.Logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			log.Warn("Shutdown finished with errors", zap.Error(err))
		}
	}()

	switch command {
	case "run":
		return runTasks(ctx, cfg, engine, log.Logger, args)
	case "serve":
		return serve(ctx, engine, log.Logger)
	case "list":
		return listTokens(ctx, engine, args)
	case "buy":
		return trade(ctx, engine, log, model.SideBuy, args)
	case "sell":
		return trade(ctx, engine, log, model.SideSell, args)
	case "create":
		return create(ctx, engine, log, args)
	case "holdings":
		return holdings(ctx, engine, args)
	case "trades":
		return trades(ctx, engine, log.Logger, args)
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}

func runTasks(ctx context.Context, cfg *config.Config, engine *bot.Engine, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	tasksPath := fs.String("tasks", "configs/tasks.yaml", "tasks file")
	workers := fs.Int("workers", cfg.Workers, "parallel workers")
	_ = fs.Parse(args)

	if err := engine.Start(ctx, nil); err != nil {
		return err
	}

	results, err := bot.NewRunner(engine, *workers, logger).Run(ctx, *tasksPath)
	if err != nil {
		return err
	}
	failed := 0
	for _, r := range results {
		fmt.Println(r.String())
		if !r.OK() {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tasks failed", failed, len(results))
	}
	return nil
}

func serve(ctx context.Context, engine *bot.Engine, logger *zap.Logger) error {
	err := engine.Start(ctx, func(snap *registry.Snapshot, err error) {
		if err != nil {
			logger.Warn("Directory refresh failed", zap.Error(err))
			return
		}
		logger.Debug("Directory refreshed",
			zap.Int("tokens", len(snap.Records)),
			zap.Int("failures", len(snap.Failures)))
	})
	if err != nil {
		return err
	}
	logger.Info("🚀 Serving, press Ctrl+C to stop")
	<-ctx.Done()
	return nil
}

func listTokens(ctx context.Context, engine *bot.Engine, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	viewName := fs.String("view", "new", "new, trending or launched")
	query := fs.String("q", "", "address substring")
	limit := fs.Int("limit", 50, "max rows")
	_ = fs.Parse(args)

	view, err := registry.ParseView(*viewName)
	if err != nil {
		return err
	}
	snap, err := engine.Directory().RefreshOnce(ctx)
	if err != nil {
		return err
	}
	if snap.Partial() {
		fmt.Fprintf(os.Stderr, "⚠️  %d token reads failed\n", len(snap.Failures))
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTOKEN\tSYMBOL\tNAME\tPROGRESS\tSTATUS")
	for i, rec := range engine.Tokens(view, *query) {
		if *limit > 0 && i >= *limit {
			break
		}
		md, ok := engine.Metadata().Get(ctx, rec.Address)
		if !ok {
			md = model.PlaceholderMetadata(rec.Address)
		}
		status := "bonding"
		if rec.Launched {
			status = "launched"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s%%\t%s\n",
			rec.Index, rec.Address.Hex(), md.Symbol, md.Name, rec.Progress.StringFixed(2), status)
	}
	return tw.Flush()
}

func trade(ctx context.Context, engine *bot.Engine, log *logger.Logger, side model.Side, args []string) error {
	fs := flag.NewFlagSet(side.String(), flag.ExitOnError)
	walletName := fs.String("wallet", "main", "wallet name")
	tokenHex := fs.String("token", "", "token address")
	amount := fs.String("amount", "", "amount in human units")
	percent := fs.Int("percent", 0, "sell this percentage of holdings")
	slippage := fs.Int("slippage", 0, "slippage tolerance in bps")
	_ = fs.Parse(args)

	token, err := parseToken(*tokenHex)
	if err != nil {
		return err
	}
	if *slippage > 0 {
		if err := engine.Slippage().Set(*slippage); err != nil {
			return err
		}
	}
	w, err := engine.Wallet(*walletName)
	if err != nil {
		return err
	}
	defer log.TrackPerformance("cli_" + side.String())()
	log.WithWallet(*walletName, w.Address()).Info("Submitting trade",
		zap.String("side", side.String()),
		zap.String("token", token.Hex()))

	var res *model.TxResult
	switch {
	case side == model.SideBuy:
		res, err = engine.Buy(ctx, *walletName, token, *amount)
	case *percent > 0:
		res, err = engine.SellPercent(ctx, *walletName, token, *percent)
	default:
		res, err = engine.Sell(ctx, *walletName, token, *amount)
	}
	if err != nil {
		return err
	}

	log.WithTrade(side.String(), w.Address(), token, res.AmountIn).Info("Trade confirmed",
		zap.String("tx_hash", res.TxHash.Hex()),
		zap.Stringer("venue", res.Venue))

	fmt.Printf("✅ %s via %s venue\n", side, res.Venue)
	if res.ApproveTxHash != nil {
		fmt.Printf("   approve: %s\n", res.ApproveTxHash.Hex())
	}
	fmt.Printf("   tx:      %s\n", res.TxHash.Hex())
	fmt.Printf("   min out: %s\n", res.MinAmountOut)
	return nil
}

func create(ctx context.Context, engine *bot.Engine, log *logger.Logger, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	walletName := fs.String("wallet", "main", "wallet name")
	name := fs.String("name", "", "token name")
	symbol := fs.String("symbol", "", "token symbol")
	uri := fs.String("uri", "", "metadata URI")
	initialBuy := fs.String("initial-buy", "", "native amount to buy at creation")
	_ = fs.Parse(args)

	res, err := engine.Create(ctx, *walletName, *name, *symbol, *uri, *initialBuy)
	if err != nil {
		return err
	}
	log.WithTransaction(res.TxHash.Hex()).Info("Token created",
		zap.String("token", res.Token.Hex()),
		zap.String("symbol", *symbol))
	fmt.Printf("✅ created %s\n   tx: %s\n", res.Token.Hex(), res.TxHash.Hex())
	return nil
}

func holdings(ctx context.Context, engine *bot.Engine, args []string) error {
	fs := flag.NewFlagSet("holdings", flag.ExitOnError)
	walletName := fs.String("wallet", "main", "wallet name")
	tokenHex := fs.String("token", "", "token address")
	_ = fs.Parse(args)

	token, err := parseToken(*tokenHex)
	if err != nil {
		return err
	}
	h, err := engine.Holdings(ctx, *walletName, token)
	if err != nil {
		return err
	}
	fmt.Printf("wallet:  %s\n", h.Wallet.Hex())
	fmt.Printf("native:  %s OKB\n", types.FormatAmount(h.Native, types.NativeDecimals, 6))
	fmt.Printf("token:   %s\n", types.FormatAmount(h.TokenBalance, int32(h.TokenDecimals), 4))
	if h.EstimatedNative != nil {
		fmt.Printf("value:   ~%s OKB\n", types.FormatAmount(h.EstimatedNative, types.NativeDecimals, 6))
	}
	return nil
}

func trades(ctx context.Context, engine *bot.Engine, logger *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("trades", flag.ExitOnError)
	walletName := fs.String("wallet", "", "only this wallet")
	limit := fs.Int("limit", 20, "max rows")
	format := fs.String("export", "", "write csv or json instead of printing")
	outDir := fs.String("out", "exports", "export directory")
	side := fs.String("side", "", "export only buy or sell")
	token := fs.String("token", "", "export only this token")
	completed := fs.Bool("completed", false, "export only completed trades")
	_ = fs.Parse(args)

	store := engine.Trades()
	var (
		recs []*storage.TradeRecord
		err  error
	)
	if *walletName != "" {
		w, werr := engine.Wallet(*walletName)
		if werr != nil {
			return werr
		}
		recs, err = store.ListByWallet(ctx, w.Address().Hex(), *limit)
	} else {
		recs, err = store.Recent(ctx, *limit)
	}
	if err != nil {
		return err
	}

	if *format != "" {
		f, err := export.ParseFormat(*format)
		if err != nil {
			return err
		}
		path, err := export.NewTradeExporter(logger).ExportTrades(recs, export.ExportOptions{
			Format:        f,
			TokenFilter:   *token,
			SideFilter:    *side,
			OnlyCompleted: *completed,
			OutputDir:     *outDir,
		})
		if err != nil {
			return err
		}
		fmt.Printf("✅ %d trades checked, written to %s\n", len(recs), path)
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 2, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tSIDE\tVENUE\tTOKEN\tSTATUS\tTX")
	for _, r := range recs {
		tx := r.TxHash
		if tx == "" {
			tx = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.CreatedAt.Format("01-02 15:04:05"), r.Side, r.Venue,
			model.ShortAddress(common.HexToAddress(r.Token)), r.Status, tx)
	}
	return tw.Flush()
}

func parseToken(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, errors.New("token must be a 0x address")
	}
	return common.HexToAddress(s), nil
}
