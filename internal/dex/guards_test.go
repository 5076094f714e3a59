package dex_test

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/whaleshi/b/internal/blockchain/evm"
	"github.com/whaleshi/b/internal/blockchain/evm/evmtest"
	"github.com/whaleshi/b/internal/contracts"
	"github.com/whaleshi/b/internal/dex"
	"github.com/whaleshi/b/internal/dex/model"
)

func TestAllowanceGuard_EnsureIsIdempotent(t *testing.T) {
	h := newHarness(t)
	guard := dex.NewAllowanceGuard(h.erc20, h.wallet, h.gas, zaptest.NewLogger(t))

	first, err := guard.Ensure(context.Background(), tokenAddr, factoryAddr, big.NewInt(500))
	require.NoError(t, err)
	assert.False(t, first.AlreadySufficient())

	second, err := guard.Ensure(context.Background(), tokenAddr, factoryAddr, big.NewInt(500))
	require.NoError(t, err)
	assert.True(t, second.AlreadySufficient())

	assert.Equal(t, 1, h.token.Approvals())
	assert.Equal(t, []string{"approve"}, h.backend.SentTo(tokenAddr))
}

func TestAllowanceGuard_ZeroRequiredIsSufficient(t *testing.T) {
	h := newHarness(t)
	guard := dex.NewAllowanceGuard(h.erc20, h.wallet, h.gas, zaptest.NewLogger(t))

	out, err := guard.Ensure(context.Background(), tokenAddr, factoryAddr, big.NewInt(0))
	require.NoError(t, err)
	assert.True(t, out.AlreadySufficient())
	assert.Empty(t, h.backend.Sent())
}

type stubOracle struct {
	estimate    uint64
	estimateErr error
	price       *big.Int
	priceErr    error
}

func (o stubOracle) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return o.estimate, o.estimateErr
}

func (o stubOracle) SuggestGasPrice(context.Context) (*big.Int, error) {
	return o.price, o.priceErr
}

func TestGasPricer_Plan(t *testing.T) {
	tests := []struct {
		name      string
		oracle    stubOracle
		wantLimit *uint64
		wantPrice *big.Int
	}{
		{
			name:      "both available",
			oracle:    stubOracle{estimate: 100_000, price: big.NewInt(1_000_000_000)},
			wantLimit: ptr(uint64(120_000)),
			wantPrice: big.NewInt(1_050_000_000),
		},
		{
			name:      "estimate fails",
			oracle:    stubOracle{estimateErr: errors.New("boom"), price: big.NewInt(100)},
			wantPrice: big.NewInt(105),
		},
		{
			name:      "price fails",
			oracle:    stubOracle{estimate: 21_000, priceErr: errors.New("boom")},
			wantLimit: ptr(uint64(25_200)),
		},
		{
			name:   "both fail",
			oracle: stubOracle{estimateErr: errors.New("a"), priceErr: errors.New("b")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := dex.NewGasPricer(tt.oracle, time.Second, zaptest.NewLogger(t))
			plan := g.Plan(context.Background(), evm.Call{To: factoryAddr})
			assert.Equal(t, tt.wantLimit, plan.GasLimit)
			assert.Equal(t, tt.wantPrice, plan.GasPrice)
		})
	}
}

func TestBufferAndBump(t *testing.T) {
	assert.Equal(t, uint64(0), dex.BufferGasLimit(0))
	assert.Equal(t, uint64(119), dex.BufferGasLimit(99))
	assert.Equal(t, int64(1), dex.BumpGasPrice(big.NewInt(1)).Int64())
	assert.Equal(t, int64(21), dex.BumpGasPrice(big.NewInt(20)).Int64())
}

func ptr[T any](v T) *T { return &v }

func TestRoute(t *testing.T) {
	v, err := dex.Route(&model.TokenInfo{Launched: true})
	require.NoError(t, err)
	assert.Equal(t, model.VenueExternal, v)

	v, err = dex.Route(&model.TokenInfo{Launched: false})
	require.NoError(t, err)
	assert.Equal(t, model.VenueInternal, v)

	_, err = dex.Route(nil)
	assert.ErrorIs(t, err, dex.ErrStateUnavailable)
}

func TestQuoteEngine_NonPositiveAmount(t *testing.T) {
	h := newHarness(t)
	q := dex.NewQuoteEngine(h.factory, nil)

	for _, amount := range []*big.Int{nil, big.NewInt(0), big.NewInt(-5)} {
		out, err := q.Quote(context.Background(), model.VenueInternal, model.SideBuy, tokenAddr, amount)
		require.NoError(t, err)
		assert.Equal(t, 0, out.Sign())
	}
	assert.Empty(t, h.backend.Journal())
}

func TestQuoteEngine_ReadFailureIsQuoteUnavailable(t *testing.T) {
	h := newHarness(t)
	h.backend.HandleCall(factoryAddr, contracts.FactoryABI, "trySell", func([]interface{}) ([]interface{}, error) {
		return nil, fmt.Errorf("%w: insufficient reserve", evm.ErrReverted)
	})
	q := dex.NewQuoteEngine(h.factory, nil)

	_, err := q.Quote(context.Background(), model.VenueInternal, model.SideSell, tokenAddr, big.NewInt(1))
	assert.ErrorIs(t, err, dex.ErrQuoteUnavailable)
	// reverts are not retried
	assert.Equal(t, 1, journalCount(h.backend.Journal(), "trySell"))

	_, err = q.Quote(context.Background(), model.Venue(9), model.SideBuy, tokenAddr, big.NewInt(1))
	assert.Error(t, err)
}

func journalCount(entries []evmtest.Entry, method string) int {
	n := 0
	for _, e := range entries {
		if e.Method == method {
			n++
		}
	}
	return n
}

func TestUserMessage_Distinct(t *testing.T) {
	sentinels := []error{
		dex.ErrNotConnected,
		dex.ErrInvalidSlippage,
		dex.ErrInvalidAmount,
		dex.ErrInsufficientBalance,
		dex.ErrQuoteUnavailable,
		dex.ErrStateUnavailable,
		dex.ErrApprovalFailed,
		dex.ErrSubmissionFailed,
		dex.ErrAggregationPartialFailure,
		dex.ErrTradeInProgress,
	}

	seen := make(map[string]error)
	for _, s := range sentinels {
		wrapped := &dex.TradeError{Stage: dex.StageSubmit, Err: fmt.Errorf("ctx: %w", s)}
		msg := dex.UserMessage(wrapped)
		require.NotEmpty(t, msg)
		if prev, dup := seen[msg]; dup {
			t.Fatalf("%v and %v share message %q", prev, s, msg)
		}
		seen[msg] = s
	}

	assert.Equal(t, "Network error, please retry", dex.UserMessage(errors.New("dial tcp: refused")))
	assert.Equal(t, "", dex.UserMessage(nil))
}
