// =============================================
// File: internal/dex/executor.go
// =============================================
package dex

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/whaleshi/b/internal/dex/model"
	"github.com/whaleshi/b/internal/events"
	"github.com/whaleshi/b/internal/types"
)

// DefaultSwapDeadline is added to "now" for router swaps.
const DefaultSwapDeadline = 20 * time.Minute

// StateSource answers the latest known bonding state of a token.
type StateSource interface {
	TokenInfo(ctx context.Context, token common.Address) (*model.TokenInfo, error)
}

// EventPublisher is satisfied by *events.Bus.
type EventPublisher interface {
	Publish(event events.Event) error
}

// TradeRecorder is satisfied by *metrics.Collector.
type TradeRecorder interface {
	RecordTransaction(ctx context.Context, txType, venue string, duration time.Duration, success bool)
}

// ExecutorDeps collects what a TradeExecutor needs. Publisher and Metrics are optional.
type ExecutorDeps struct {
	Signer    Signer
	State     StateSource
	Quotes    *QuoteEngine
	Allowance *AllowanceGuard
	Gas       *GasPricer
	ERC20     *ERC20
	Slippage  types.SlippageProvider
	Locks     *Locks
	Publisher EventPublisher
	Metrics   TradeRecorder
	Deadline  time.Duration
}

// TradeExecutor orchestrates buy and sell sequences for one wallet.
type TradeExecutor struct {
	signer    Signer
	state     StateSource
	quotes    *QuoteEngine
	allowance *AllowanceGuard
	gas       *GasPricer
	erc20     *ERC20
	slippage  types.SlippageProvider
	locks     *Locks
	publisher EventPublisher
	metrics   TradeRecorder
	deadline  time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

func NewTradeExecutor(deps ExecutorDeps, logger *zap.Logger) (*TradeExecutor, error) {
	switch {
	case deps.Signer == nil:
		return nil, errors.New("executor: signer is required")
	case deps.State == nil:
		return nil, errors.New("executor: state source is required")
	case deps.Quotes == nil || deps.Allowance == nil || deps.Gas == nil || deps.ERC20 == nil:
		return nil, errors.New("executor: quote, allowance, gas and erc20 components are required")
	case deps.Slippage == nil:
		return nil, errors.New("executor: slippage provider is required")
	}

	locks := deps.Locks
	if locks == nil {
		locks = NewLocks()
	}
	deadline := deps.Deadline
	if deadline <= 0 {
		deadline = DefaultSwapDeadline
	}

	return &TradeExecutor{
		signer:    deps.Signer,
		state:     deps.State,
		quotes:    deps.Quotes,
		allowance: deps.Allowance,
		gas:       deps.Gas,
		erc20:     deps.ERC20,
		slippage:  deps.Slippage,
		locks:     locks,
		publisher: deps.Publisher,
		metrics:   deps.Metrics,
		deadline:  deadline,
		now:       time.Now,
		logger:    logger.Named("executor").With(zap.String("wallet", deps.Signer.Address().Hex())),
	}, nil
}

// Wallet returns the signer address.
func (e *TradeExecutor) Wallet() common.Address { return e.signer.Address() }

// Buy spends nativeIn on token at the venue its state dictates.
func (e *TradeExecutor) Buy(ctx context.Context, token common.Address, nativeIn *big.Int) (*model.TxResult, error) {
	return e.execute(ctx, model.SideBuy, token, nativeIn)
}

// Sell sells tokenIn of token, approving the venue spender first if needed.
func (e *TradeExecutor) Sell(ctx context.Context, token common.Address, tokenIn *big.Int) (*model.TxResult, error) {
	return e.execute(ctx, model.SideSell, token, tokenIn)
}

// SellPercent sells floor(balance*pct/100); pct must be in 1..100.
func (e *TradeExecutor) SellPercent(ctx context.Context, token common.Address, pct int) (*model.TxResult, error) {
	if pct < 1 || pct > 100 {
		return nil, tradeErr(StagePrecheck, model.SideSell, token, fmt.Errorf("%w: percent %d out of 1..100", ErrInvalidAmount, pct))
	}
	if !e.signer.IsConnected() {
		return nil, tradeErr(StagePrecheck, model.SideSell, token, ErrNotConnected)
	}
	balance, err := e.erc20.BalanceOf(ctx, token, e.signer.Address())
	if err != nil {
		return nil, tradeErr(StageBalance, model.SideSell, token, err)
	}
	amount := types.PercentOf(balance, pct)
	if amount.Sign() <= 0 {
		return nil, tradeErr(StageBalance, model.SideSell, token, ErrInsufficientBalance)
	}
	return e.Sell(ctx, token, amount)
}

func (e *TradeExecutor) precheck(side model.Side, token common.Address, amountIn *big.Int) (types.SlippageConfig, error) {
	if !e.signer.IsConnected() {
		return types.SlippageConfig{}, tradeErr(StagePrecheck, side, token, ErrNotConnected)
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return types.SlippageConfig{}, tradeErr(StagePrecheck, side, token, ErrInvalidAmount)
	}
	slippage := e.slippage.Slippage()
	if err := slippage.Validate(); err != nil {
		return types.SlippageConfig{}, tradeErr(StagePrecheck, side, token, err)
	}
	return slippage, nil
}

func (e *TradeExecutor) execute(ctx context.Context, side model.Side, token common.Address, amountIn *big.Int) (result *model.TxResult, err error) {
	slippage, err := e.precheck(side, token, amountIn)
	if err != nil {
		return nil, err
	}

	wallet := e.signer.Address()
	release, ok := e.locks.TryAcquire(wallet, token)
	if !ok {
		return nil, tradeErr(StagePrecheck, side, token, ErrTradeInProgress)
	}
	defer release()

	start := e.now()
	venue := model.VenueInternal
	logger := e.logger.With(
		zap.String("side", side.String()),
		zap.String("token", token.Hex()),
		zap.String("amount_in", amountIn.String()),
		zap.Int("slippage_bps", slippage.ToleranceBps))

	e.publish(&events.TradeStartedEvent{
		BaseEvent: events.NewBase(events.TradeStarted),
		Wallet:    wallet,
		Token:     token,
		Side:      side,
		AmountIn:  new(big.Int).Set(amountIn),
	})

	defer func() {
		if e.metrics != nil {
			e.metrics.RecordTransaction(ctx, side.String(), venue.String(), e.now().Sub(start), err == nil)
		}
		if err != nil {
			logger.Warn("Trade failed", zap.Error(err))
			failed := &events.TradeFailedEvent{
				BaseEvent: events.NewBase(events.TradeFailed),
				Wallet:    wallet,
				Token:     token,
				Side:      side,
				Venue:     venue,
				AmountIn:  new(big.Int).Set(amountIn),
				Err:       err,
			}
			var te *TradeError
			if errors.As(err, &te) {
				failed.Stage = string(te.Stage)
				failed.TxHash = te.TxHash
			}
			e.publish(failed)
		}
	}()

	// route
	info, err := e.state.TokenInfo(ctx, token)
	if err != nil {
		if !errors.Is(err, ErrStateUnavailable) {
			err = fmt.Errorf("%w: %v", ErrStateUnavailable, err)
		}
		return nil, tradeErr(StageRoute, side, token, err)
	}
	venue, err = Route(info)
	if err != nil {
		return nil, tradeErr(StageRoute, side, token, err)
	}
	adapter, err := e.quotes.adapter(venue)
	if err != nil {
		return nil, tradeErr(StageRoute, side, token, err)
	}
	logger = logger.With(zap.String("venue", venue.String()))

	if side == model.SideSell {
		balance, err := e.erc20.BalanceOf(ctx, token, wallet)
		if err != nil {
			return nil, tradeErr(StageBalance, side, token, err)
		}
		if balance.Sign() <= 0 || balance.Cmp(amountIn) < 0 {
			return nil, tradeErr(StageBalance, side, token,
				fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, balance, amountIn))
		}
	}

	expected, minOut, err := e.bound(ctx, venue, side, token, amountIn, slippage.ToleranceBps)
	if err != nil {
		return nil, err
	}

	var approveHash *common.Hash
	switch side {
	case model.SideBuy:
		balance, err := e.erc20.NativeBalance(ctx, wallet)
		if err != nil {
			return nil, tradeErr(StageBalance, side, token, err)
		}
		if balance.Cmp(amountIn) < 0 {
			return nil, tradeErr(StageBalance, side, token,
				fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, balance, amountIn))
		}

	case model.SideSell:
		spender := adapter.spender()
		outcome, err := e.allowance.Ensure(ctx, token, spender, amountIn)
		if err != nil {
			te := &TradeError{Stage: StageAllowance, Side: side, Token: token, TxHash: outcome.TxHash, Err: err}
			return nil, te
		}
		if !outcome.AlreadySufficient() {
			approveHash = outcome.TxHash
			e.publish(&events.ApprovalSubmittedEvent{
				BaseEvent: events.NewBase(events.ApprovalSubmitted),
				Wallet:    wallet,
				Token:     token,
				Spender:   spender,
				TxHash:    *outcome.TxHash,
			})
			// state moved while the approval was mining
			expected, minOut, err = e.bound(ctx, venue, side, token, amountIn, slippage.ToleranceBps)
			if err != nil {
				return nil, err
			}
		}
	}

	intent := model.TradeIntent{
		Token:        token,
		Side:         side,
		AmountIn:     new(big.Int).Set(amountIn),
		Venue:        venue,
		MinAmountOut: minOut,
		ToleranceBps: slippage.ToleranceBps,
	}
	deadline := big.NewInt(e.now().Add(e.deadline).Unix())
	call, err := adapter.tradeCall(intent, wallet, deadline)
	if err != nil {
		return nil, tradeErr(StageSubmit, side, token, fmt.Errorf("%w: %v", ErrSubmissionFailed, err))
	}
	call.From = wallet

	plan := e.gas.Plan(ctx, call)

	logger.Info("Submitting trade",
		zap.String("expected_out", expected.String()),
		zap.String("min_out", minOut.String()))

	hash, err := e.signer.SubmitCall(ctx, call, plan)
	if err != nil {
		return nil, tradeErr(StageSubmit, side, token, fmt.Errorf("%w: %v", ErrSubmissionFailed, err))
	}

	receipt, err := e.signer.WaitMined(ctx, hash)
	if err != nil {
		return nil, &TradeError{
			Stage:  StageConfirm,
			Side:   side,
			Token:  token,
			TxHash: &hash,
			Err:    fmt.Errorf("%w: tx %s: %v", ErrSubmissionFailed, hash.Hex(), err),
		}
	}

	result = &model.TxResult{
		TxHash:            hash,
		ApproveTxHash:     approveHash,
		Token:             token,
		Side:              side,
		Venue:             venue,
		AmountIn:          intent.AmountIn,
		ExpectedAmountOut: expected,
		MinAmountOut:      minOut,
		BlockNumber:       receipt.BlockNumber,
	}

	logger.Info("Trade confirmed",
		zap.String("tx_hash", hash.Hex()),
		zap.Duration("elapsed", e.now().Sub(start)))

	e.publish(&events.TradeCompletedEvent{
		BaseEvent: events.NewBase(events.TradeCompleted),
		Wallet:    wallet,
		Result:    *result,
	})
	return result, nil
}

// bound quotes amountIn and derives the slippage floor.
func (e *TradeExecutor) bound(ctx context.Context, venue model.Venue, side model.Side, token common.Address, amountIn *big.Int, bps int) (*big.Int, *big.Int, error) {
	expected, err := e.quotes.Quote(ctx, venue, side, token, amountIn)
	if err != nil {
		return nil, nil, tradeErr(StageQuote, side, token, err)
	}
	if expected.Sign() <= 0 {
		return nil, nil, tradeErr(StageQuote, side, token, fmt.Errorf("%w: zero output", ErrQuoteUnavailable))
	}
	minOut, err := types.MinOut(expected, bps)
	if err != nil {
		return nil, nil, tradeErr(StageSlippage, side, token, err)
	}
	return expected, minOut, nil
}

func (e *TradeExecutor) publish(event events.Event) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(event); err != nil {
		e.logger.Debug("Event not published",
			zap.String("event_type", string(event.Type())),
			zap.Error(err))
	}
}
