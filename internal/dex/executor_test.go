package dex_test

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/whaleshi/b/internal/contracts"
	"github.com/whaleshi/b/internal/dex"
	"github.com/whaleshi/b/internal/dex/model"
	"github.com/whaleshi/b/internal/events"
	"github.com/whaleshi/b/internal/wallet"
)

func TestBuy_InternalVenueAppliesSlippage(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.slippage.Set(300))

	res, err := h.exec.Buy(context.Background(), tokenAddr, big.NewInt(1000))
	require.NoError(t, err)

	assert.Equal(t, model.VenueInternal, res.Venue)
	assert.Equal(t, int64(950), res.ExpectedAmountOut.Int64())
	assert.Equal(t, int64(921), res.MinAmountOut.Int64())
	assert.Nil(t, res.ApproveTxHash)

	sent := h.sentCalls()
	require.Len(t, sent, 1)
	assert.Equal(t, "purchase", sent[0].method)
	assert.Equal(t, int64(1000), sent[0].value.Int64())
	assert.Equal(t, tokenAddr, sent[0].args[0].(common.Address))
	assert.Equal(t, int64(1000), sent[0].args[1].(*big.Int).Int64())
	assert.Equal(t, int64(921), sent[0].args[2].(*big.Int).Int64())

	txs := h.backend.Sent()
	require.Len(t, txs, 1)
	assert.Equal(t, uint64(120_000), txs[0].Gas())
	assert.Equal(t, big.NewInt(1_050_000_000), txs[0].GasPrice())

	assert.Equal(t, []events.EventType{events.TradeStarted, events.TradeCompleted}, h.publisher.types())
}

func TestBuy_ExternalVenueUsesRouter(t *testing.T) {
	h := newHarness(t)
	h.launch()

	before := time.Now()
	res, err := h.exec.Buy(context.Background(), tokenAddr, big.NewInt(1000))
	require.NoError(t, err)
	assert.Equal(t, model.VenueExternal, res.Venue)
	assert.Equal(t, int64(940), res.MinAmountOut.Int64())

	sent := h.sentCalls()
	require.Len(t, sent, 1)
	assert.Equal(t, "swapExactETHForTokens", sent[0].method)
	assert.Equal(t, int64(940), sent[0].args[0].(*big.Int).Int64())
	assert.Equal(t, []common.Address{wethAddr, tokenAddr}, sent[0].args[1].([]common.Address))
	assert.Equal(t, h.wallet.Address(), sent[0].args[2].(common.Address))

	deadline := sent[0].args[3].(*big.Int).Int64()
	assert.GreaterOrEqual(t, deadline, before.Add(dex.DefaultSwapDeadline).Unix())
	assert.Empty(t, h.backend.SentTo(factoryAddr))
}

func TestSell_ApprovesOnceAndRequotes(t *testing.T) {
	h := newHarness(t)
	h.token.SetBalance(h.wallet.Address(), big.NewInt(500))
	// first quote is before the allowance check, second after the approval
	h.sellQuotes = []*big.Int{big.NewInt(1000), big.NewInt(800)}

	res, err := h.exec.Sell(context.Background(), tokenAddr, big.NewInt(500))
	require.NoError(t, err)

	assert.Equal(t, 1, h.token.Approvals())
	require.NotNil(t, res.ApproveTxHash)
	assert.Equal(t, int64(800), res.ExpectedAmountOut.Int64())
	assert.Equal(t, int64(792), res.MinAmountOut.Int64())

	sent := h.sentCalls()
	require.Len(t, sent, 1)
	assert.Equal(t, "sell", sent[0].method)
	assert.Equal(t, int64(500), sent[0].args[1].(*big.Int).Int64())
	assert.Equal(t, int64(792), sent[0].args[2].(*big.Int).Int64())

	journal := h.backend.Journal()
	approve := journalIndex(journal, "send", "approve", 0)
	requote := journalIndex(journal, "call", "trySell", 1)
	sell := journalIndex(journal, "send", "sell", 0)
	require.NotEqual(t, -1, approve)
	require.NotEqual(t, -1, requote)
	require.NotEqual(t, -1, sell)
	assert.Less(t, approve, requote)
	assert.Less(t, requote, sell)

	assert.Contains(t, h.publisher.types(), events.ApprovalSubmitted)
}

func TestSell_ExistingAllowanceSkipsApproval(t *testing.T) {
	h := newHarness(t)
	h.launch()
	h.token.SetBalance(h.wallet.Address(), big.NewInt(500))
	h.token.SetAllowance(h.wallet.Address(), routerAddr, big.NewInt(500))

	res, err := h.exec.Sell(context.Background(), tokenAddr, big.NewInt(500))
	require.NoError(t, err)

	assert.Nil(t, res.ApproveTxHash)
	assert.Equal(t, 0, h.token.Approvals())
	assert.Equal(t, []string{"swapExactTokensForETH"}, h.backend.SentTo(routerAddr))
	assert.Equal(t, -1, journalIndex(h.backend.Journal(), "call", "getAmountsOut", 1))
}

func TestSell_ApprovesRouterSpenderWhenLaunched(t *testing.T) {
	h := newHarness(t)
	h.launch()
	h.token.SetBalance(h.wallet.Address(), big.NewInt(500))
	h.token.SetAllowance(h.wallet.Address(), factoryAddr, big.NewInt(1_000_000))

	_, err := h.exec.Sell(context.Background(), tokenAddr, big.NewInt(500))
	require.NoError(t, err)

	assert.Equal(t, 1, h.token.Approvals())
	assert.Equal(t, 0, h.token.Allowance(h.wallet.Address(), routerAddr).Cmp(contracts.MaxUint256))
}

func TestSell_InsufficientBalance(t *testing.T) {
	for _, balance := range []int64{0, 499} {
		h := newHarness(t)
		h.token.SetBalance(h.wallet.Address(), big.NewInt(balance))

		_, err := h.exec.Sell(context.Background(), tokenAddr, big.NewInt(500))
		require.ErrorIs(t, err, dex.ErrInsufficientBalance)

		var te *dex.TradeError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, dex.StageBalance, te.Stage)
		assert.Empty(t, h.backend.Sent())
	}
}

func TestBuy_InsufficientNativeBalance(t *testing.T) {
	h := newHarness(t)
	h.backend.SetBalance(h.wallet.Address(), big.NewInt(10))

	_, err := h.exec.Buy(context.Background(), tokenAddr, big.NewInt(1000))
	assert.ErrorIs(t, err, dex.ErrInsufficientBalance)
	assert.Empty(t, h.backend.Sent())
	assert.Contains(t, h.publisher.types(), events.TradeFailed)
}

func TestTrade_Preconditions(t *testing.T) {
	h := newHarness(t)

	_, err := h.exec.Buy(context.Background(), tokenAddr, big.NewInt(0))
	assert.ErrorIs(t, err, dex.ErrInvalidAmount)

	_, err = h.exec.Sell(context.Background(), tokenAddr, nil)
	assert.ErrorIs(t, err, dex.ErrInvalidAmount)

	w, err := wallet.NewWallet("offline", testKey)
	require.NoError(t, err)
	offline, err := dex.NewTradeExecutor(dex.ExecutorDeps{
		Signer:    w,
		State:     h.state,
		Quotes:    dex.NewQuoteEngine(h.factory, nil),
		Allowance: dex.NewAllowanceGuard(h.erc20, w, h.gas, zap.NewNop()),
		Gas:       h.gas,
		ERC20:     h.erc20,
		Slippage:  h.slippage,
	}, zap.NewNop())
	require.NoError(t, err)

	_, err = offline.Buy(context.Background(), tokenAddr, big.NewInt(1))
	assert.ErrorIs(t, err, dex.ErrNotConnected)
	assert.Empty(t, h.backend.Journal())
}

func TestBuy_StateUnavailable(t *testing.T) {
	h := newHarness(t)
	unknown := common.HexToAddress("0x00000000000000000000000000000000000000bb")

	_, err := h.exec.Buy(context.Background(), unknown, big.NewInt(1000))
	require.ErrorIs(t, err, dex.ErrStateUnavailable)

	var te *dex.TradeError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, dex.StageRoute, te.Stage)
}

func TestBuy_QuoteUnavailable(t *testing.T) {
	h := newHarness(t)
	h.buyQuotes = []*big.Int{big.NewInt(0)}

	_, err := h.exec.Buy(context.Background(), tokenAddr, big.NewInt(1000))
	assert.ErrorIs(t, err, dex.ErrQuoteUnavailable)
	assert.Empty(t, h.backend.Sent())
}

func TestBuy_RevertedReceipt(t *testing.T) {
	h := newHarness(t)
	h.revertTx = "purchase"

	_, err := h.exec.Buy(context.Background(), tokenAddr, big.NewInt(1000))
	require.ErrorIs(t, err, dex.ErrSubmissionFailed)

	var te *dex.TradeError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, dex.StageConfirm, te.Stage)
	require.NotNil(t, te.TxHash)
	assert.Equal(t, h.backend.Sent()[0].Hash(), *te.TxHash)
}

func TestBuy_GasEstimateFailureFallsBack(t *testing.T) {
	h := newHarness(t)
	h.backend.EstimateErr = errors.New("estimate failed")

	_, err := h.exec.Buy(context.Background(), tokenAddr, big.NewInt(1000))
	require.NoError(t, err)

	txs := h.backend.Sent()
	require.Len(t, txs, 1)
	assert.Equal(t, wallet.DefaultGasLimit, txs[0].Gas())
}

func TestTrade_InProgress(t *testing.T) {
	h := newHarness(t)

	release, ok := h.locks.TryAcquire(h.wallet.Address(), tokenAddr)
	require.True(t, ok)

	_, err := h.exec.Buy(context.Background(), tokenAddr, big.NewInt(1000))
	assert.ErrorIs(t, err, dex.ErrTradeInProgress)

	release()
	_, err = h.exec.Buy(context.Background(), tokenAddr, big.NewInt(1000))
	assert.NoError(t, err)
	assert.False(t, h.locks.Busy(h.wallet.Address(), tokenAddr))
}

func TestSellPercent(t *testing.T) {
	h := newHarness(t)
	h.token.SetBalance(h.wallet.Address(), big.NewInt(1001))
	h.token.SetAllowance(h.wallet.Address(), factoryAddr, big.NewInt(10_000))

	res, err := h.exec.SellPercent(context.Background(), tokenAddr, 25)
	require.NoError(t, err)
	assert.Equal(t, int64(250), res.AmountIn.Int64())

	_, err = h.exec.SellPercent(context.Background(), tokenAddr, 0)
	assert.ErrorIs(t, err, dex.ErrInvalidAmount)
	_, err = h.exec.SellPercent(context.Background(), tokenAddr, 101)
	assert.ErrorIs(t, err, dex.ErrInvalidAmount)
}

func TestSellPercent_EmptyBalance(t *testing.T) {
	h := newHarness(t)

	_, err := h.exec.SellPercent(context.Background(), tokenAddr, 100)
	assert.ErrorIs(t, err, dex.ErrInsufficientBalance)
}
