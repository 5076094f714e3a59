// internal/monitor/quote.go
package monitor

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/whaleshi/b/internal/dex"
	"github.com/whaleshi/b/internal/dex/model"
	"github.com/whaleshi/b/internal/types"
)

// DefaultQuoteInterval for the trade panel.
const DefaultQuoteInterval = 3 * time.Second

// QuoteRequest is what the trade panel is currently asking about.
type QuoteRequest struct {
	Token    common.Address
	Side     model.Side
	AmountIn *big.Int
}

// Empty reports a request with nothing to quote (amount cleared).
func (r QuoteRequest) Empty() bool {
	return r.AmountIn == nil || r.AmountIn.Sign() <= 0
}

func (r QuoteRequest) params() string {
	return fmt.Sprintf("%s/%s/%s", r.Token.Hex(), r.Side, r.AmountIn)
}

// QuoteUpdate is one advisory quote with the min-out it implies.
type QuoteUpdate struct {
	Request      QuoteRequest
	Quote        *model.Quote
	MinAmountOut *big.Int
	ToleranceBps int
	Err          error
	At           time.Time
}

// QuoteWatcher keeps one quote refreshing per owner (panel or wallet).
type QuoteWatcher struct {
	scheduler *Scheduler
	state     dex.StateSource
	quotes    *dex.QuoteEngine
	slippage  *types.SlippageStore
	interval  time.Duration
	logger    *zap.Logger
}

func NewQuoteWatcher(scheduler *Scheduler, state dex.StateSource, quotes *dex.QuoteEngine, slippage *types.SlippageStore, interval time.Duration, logger *zap.Logger) *QuoteWatcher {
	if interval <= 0 {
		interval = DefaultQuoteInterval
	}
	return &QuoteWatcher{
		scheduler: scheduler,
		state:     state,
		quotes:    quotes,
		slippage:  slippage,
		interval:  interval,
		logger:    logger.Named("quote_watcher"),
	}
}

func quoteResource(owner string) string { return "quote:" + owner }

// Watch replaces owner's quote task with req. An empty request only cancels.
func (w *QuoteWatcher) Watch(ctx context.Context, owner string, req QuoteRequest, sink func(QuoteUpdate)) error {
	if req.Empty() {
		w.Stop(owner)
		return nil
	}
	_, err := w.scheduler.Schedule(ctx, Task{
		Resource: quoteResource(owner),
		Params:   req.params(),
		Interval: w.interval,
		Poll: func(ctx context.Context) (interface{}, error) {
			return w.Poll(ctx, req)
		},
		Sink: func(result interface{}, err error) {
			update, _ := result.(QuoteUpdate)
			update.Request = req
			if err != nil {
				update.Err = err
				update.At = time.Now()
			}
			sink(update)
		},
	})
	return err
}

// Stop cancels owner's quote task.
func (w *QuoteWatcher) Stop(owner string) bool {
	return w.scheduler.Cancel(quoteResource(owner))
}

// Poll routes by the token's current state and quotes req once.
// The venue is re-resolved on every tick, so a launch mid-watch switches it.
func (w *QuoteWatcher) Poll(ctx context.Context, req QuoteRequest) (QuoteUpdate, error) {
	info, err := w.state.TokenInfo(ctx, req.Token)
	if err != nil {
		return QuoteUpdate{}, err
	}
	venue, err := dex.Route(info)
	if err != nil {
		return QuoteUpdate{}, err
	}
	quote, err := w.quotes.QuoteFor(ctx, venue, req.Side, req.Token, req.AmountIn)
	if err != nil {
		return QuoteUpdate{}, err
	}

	bps := w.slippage.Slippage().ToleranceBps
	minOut, err := types.MinOut(quote.ExpectedAmountOut, bps)
	if err != nil {
		return QuoteUpdate{}, err
	}
	return QuoteUpdate{
		Request:      req,
		Quote:        quote,
		MinAmountOut: minOut,
		ToleranceBps: bps,
		At:           time.Now(),
	}, nil
}
