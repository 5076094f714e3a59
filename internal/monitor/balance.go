// internal/monitor/balance.go
package monitor

import (
	"context"
	"math/big"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultBalanceInterval between balance polls.
	DefaultBalanceInterval = 10 * time.Second
	// balanceRetries on top of the first attempt.
	balanceRetries = 2
)

// BalanceReader is satisfied by dex.ERC20.
type BalanceReader interface {
	NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error)
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
}

// Balances of one wallet. Held is nil when no token is selected.
type Balances struct {
	Wallet common.Address
	Token  common.Address
	Native *big.Int
	Held   *big.Int
	At     time.Time
}

// BalanceWatcher polls native and token balances for a wallet.
type BalanceWatcher struct {
	scheduler *Scheduler
	reader    BalanceReader
	interval  time.Duration
	retryWait time.Duration
	logger    *zap.Logger
}

func NewBalanceWatcher(scheduler *Scheduler, reader BalanceReader, interval time.Duration, logger *zap.Logger) *BalanceWatcher {
	if interval <= 0 {
		interval = DefaultBalanceInterval
	}
	return &BalanceWatcher{
		scheduler: scheduler,
		reader:    reader,
		interval:  interval,
		retryWait: 500 * time.Millisecond,
		logger:    logger.Named("balance_watcher"),
	}
}

func balanceResource(wallet common.Address) string { return "balance:" + wallet.Hex() }

// Watch polls wallet's balances; token may be the zero address.
func (w *BalanceWatcher) Watch(ctx context.Context, wallet, token common.Address, sink func(Balances, error)) error {
	_, err := w.scheduler.Schedule(ctx, Task{
		Resource: balanceResource(wallet),
		Params:   token.Hex(),
		Interval: w.interval,
		Poll: func(ctx context.Context) (interface{}, error) {
			return w.Poll(ctx, wallet, token)
		},
		Sink: func(result interface{}, err error) {
			b, _ := result.(Balances)
			sink(b, err)
		},
	})
	return err
}

func (w *BalanceWatcher) Stop(wallet common.Address) bool {
	return w.scheduler.Cancel(balanceResource(wallet))
}

// Poll reads both balances concurrently, each with bounded retries.
func (w *BalanceWatcher) Poll(ctx context.Context, wallet, token common.Address) (Balances, error) {
	out := Balances{Wallet: wallet, Token: token}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := w.retry(gctx, func(ctx context.Context) (*big.Int, error) {
			return w.reader.NativeBalance(ctx, wallet)
		})
		out.Native = v
		return err
	})
	if token != (common.Address{}) {
		g.Go(func() error {
			v, err := w.retry(gctx, func(ctx context.Context) (*big.Int, error) {
				return w.reader.BalanceOf(ctx, token, wallet)
			})
			out.Held = v
			return err
		})
	}
	if err := g.Wait(); err != nil {
		w.logger.Debug("Balance poll failed", zap.String("wallet", wallet.Hex()), zap.Error(err))
		return Balances{}, err
	}
	out.At = time.Now()
	return out, nil
}

func (w *BalanceWatcher) retry(ctx context.Context, read func(context.Context) (*big.Int, error)) (*big.Int, error) {
	return backoff.Retry(ctx, func() (*big.Int, error) {
		return read(ctx)
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(w.retryWait)),
		backoff.WithMaxTries(balanceRetries+1),
	)
}
