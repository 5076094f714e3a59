package registry_test

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/whaleshi/b/internal/blockchain/evm"
	"github.com/whaleshi/b/internal/blockchain/evm/evmtest"
	"github.com/whaleshi/b/internal/contracts"
	"github.com/whaleshi/b/internal/dex"
	"github.com/whaleshi/b/internal/dex/bonding"
	"github.com/whaleshi/b/internal/dex/model"
	"github.com/whaleshi/b/internal/multicall"
	"github.com/whaleshi/b/internal/registry"
)

var factoryAddr = contracts.DefaultFactory

func tokenAt(i int) common.Address {
	return common.BigToAddress(big.NewInt(int64(0x1000 + i)))
}

// fakeFactory serves a directory of count tokens; reserve1 of token i is reserves[i].
type fakeFactory struct {
	count     int
	reserves  map[int]int64
	launched  map[int]bool
	failIndex map[int]bool
	failInfo  map[common.Address]bool
	failURI   map[common.Address]bool
}

func newFakeFactory(b *evmtest.Backend, count int) *fakeFactory {
	f := &fakeFactory{
		count:     count,
		reserves:  map[int]int64{},
		launched:  map[int]bool{},
		failIndex: map[int]bool{},
		failInfo:  map[common.Address]bool{},
		failURI:   map[common.Address]bool{},
	}
	index := func(addr common.Address) int {
		return int(addr.Big().Int64() - 0x1000)
	}

	b.HandleCall(factoryAddr, contracts.FactoryABI, "allTokens", func([]interface{}) ([]interface{}, error) {
		return []interface{}{big.NewInt(int64(f.count))}, nil
	})
	b.HandleCall(factoryAddr, contracts.FactoryABI, "tokens", func(args []interface{}) ([]interface{}, error) {
		i := int(args[0].(*big.Int).Int64())
		if f.failIndex[i] {
			return nil, fmt.Errorf("%w: slot %d", evm.ErrReverted, i)
		}
		return []interface{}{tokenAt(i)}, nil
	})
	b.HandleCall(factoryAddr, contracts.FactoryABI, "uri", func(args []interface{}) ([]interface{}, error) {
		addr := args[0].(common.Address)
		if f.failURI[addr] {
			return nil, evm.ErrReverted
		}
		return []interface{}{fmt.Sprintf("ipfs://Qm%d", index(addr))}, nil
	})
	b.HandleCall(factoryAddr, contracts.FactoryABI, "tokensInfo", func(args []interface{}) ([]interface{}, error) {
		addr := args[0].(common.Address)
		if f.failInfo[addr] {
			return nil, evm.ErrReverted
		}
		i := index(addr)
		return bonding.TokensInfoValues(&model.TokenInfo{
			Base:     addr,
			Reserve1: big.NewInt(f.reserves[i]),
			Target:   big.NewInt(100),
			Launched: f.launched[i],
		}), nil
	})
	return f
}

func newAggregator(t *testing.T, b *evmtest.Backend) *registry.Aggregator {
	t.Helper()
	logger := zaptest.NewLogger(t)
	caller := evm.NewCaller(b, evm.RetryConfig{Timeout: time.Second, InitialInterval: time.Millisecond}, logger)
	factory, err := bonding.NewFactory(caller, factoryAddr, "")
	require.NoError(t, err)
	return registry.NewAggregator(factory, multicall.NewClient(caller, contracts.DefaultMulticall), logger)
}

type refreshCounter struct{ tokens, failures int }

func (r *refreshCounter) RecordRegistryRefresh(_ time.Duration, tokens, failures int) {
	r.tokens, r.failures = tokens, failures
}

func TestAggregator_Refresh(t *testing.T) {
	b := evmtest.New()
	f := newFakeFactory(b, 3)
	f.reserves[0], f.reserves[1], f.reserves[2] = 80, 120, 0
	f.launched[1] = true

	metrics := &refreshCounter{}
	snap, err := newAggregator(t, b).WithMetrics(metrics).Refresh(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Records, 3)

	for i, rec := range snap.Records {
		assert.Equal(t, i, rec.Index)
		assert.Equal(t, tokenAt(i), rec.Address)
		assert.True(t, rec.URIKnown)
		assert.Equal(t, fmt.Sprintf("ipfs://Qm%d", i), rec.URI)
	}
	assert.Equal(t, "80", snap.Records[0].Progress.String())
	assert.Equal(t, "100", snap.Records[1].Progress.String())
	assert.True(t, snap.Records[1].Launched)
	assert.True(t, snap.Records[2].Progress.IsZero())
	assert.Equal(t, 3, metrics.tokens)

	// allTokens + two aggregate3 round trips
	assert.Len(t, b.Journal(), 3)
}

func TestAggregator_FailedIndexIsExcluded(t *testing.T) {
	b := evmtest.New()
	f := newFakeFactory(b, 5)
	f.failIndex[3] = true

	snap, err := newAggregator(t, b).Refresh(context.Background())
	require.ErrorIs(t, err, dex.ErrAggregationPartialFailure)
	require.NotNil(t, snap)

	var addrs []common.Address
	for _, r := range snap.Records {
		addrs = append(addrs, r.Address)
	}
	assert.Equal(t, []common.Address{tokenAt(0), tokenAt(1), tokenAt(2), tokenAt(4)}, addrs)
	require.Len(t, snap.Failures, 1)
	assert.Equal(t, 3, snap.Failures[0].Index)
	assert.True(t, errors.Is(snap.Failures[0], multicall.ErrSlotFailed))
}

func TestAggregator_FailedDetailDegradesField(t *testing.T) {
	b := evmtest.New()
	f := newFakeFactory(b, 2)
	f.failURI[tokenAt(0)] = true
	f.failInfo[tokenAt(1)] = true
	f.reserves[0] = 50

	snap, err := newAggregator(t, b).Refresh(context.Background())
	require.ErrorIs(t, err, dex.ErrAggregationPartialFailure)
	require.Len(t, snap.Records, 2)

	assert.False(t, snap.Records[0].URIKnown)
	assert.Equal(t, "", snap.Records[0].URI)
	assert.NotNil(t, snap.Records[0].Info)
	assert.Equal(t, "50", snap.Records[0].Progress.String())

	assert.True(t, snap.Records[1].URIKnown)
	assert.Nil(t, snap.Records[1].Info)
	assert.True(t, snap.Records[1].Progress.IsZero())
	assert.Len(t, snap.Failures, 2)
}

func TestAggregator_EmptyDirectory(t *testing.T) {
	b := evmtest.New()
	newFakeFactory(b, 0)

	snap, err := newAggregator(t, b).Refresh(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Records)
	assert.Len(t, b.Journal(), 1)
}

func TestLookup_TokenInfo(t *testing.T) {
	b := evmtest.New()
	f := newFakeFactory(b, 2)
	f.reserves[1] = 30
	agg := newAggregator(t, b)
	lookup := registry.NewLookup(agg, zaptest.NewLogger(t))

	// not in any snapshot yet: a single-token read fills it
	info, err := lookup.TokenInfo(context.Background(), tokenAt(1))
	require.NoError(t, err)
	assert.Equal(t, int64(30), info.Reserve1.Int64())

	snap, err := agg.Refresh(context.Background())
	require.NoError(t, err)
	lookup.Update(snap)
	calls := len(b.Journal())

	info, err = lookup.TokenInfo(context.Background(), tokenAt(0))
	require.NoError(t, err)
	assert.NotNil(t, info)
	assert.Len(t, b.Journal(), calls, "cached state must not hit the chain")

	f.failInfo[tokenAt(9)] = true
	_, err = lookup.TokenInfo(context.Background(), tokenAt(9))
	assert.ErrorIs(t, err, dex.ErrStateUnavailable)
}

func TestLookup_RefreshKeepsLastGoodState(t *testing.T) {
	b := evmtest.New()
	f := newFakeFactory(b, 1)
	f.reserves[0] = 40
	agg := newAggregator(t, b)
	lookup := registry.NewLookup(agg, zaptest.NewLogger(t))

	snap, err := agg.Refresh(context.Background())
	require.NoError(t, err)
	lookup.Update(snap)

	f.failInfo[tokenAt(0)] = true
	f.reserves[0] = 90
	rec, err := lookup.Refresh(context.Background(), tokenAt(0))
	assert.ErrorIs(t, err, dex.ErrAggregationPartialFailure)
	assert.Equal(t, "40", rec.Progress.String())

	f.failInfo[tokenAt(0)] = false
	rec, err = lookup.Refresh(context.Background(), tokenAt(0))
	require.NoError(t, err)
	assert.Equal(t, "90", rec.Progress.String())
	assert.Equal(t, 0, rec.Index)

	got, ok := lookup.Get(tokenAt(0))
	require.True(t, ok)
	assert.Equal(t, "90", got.Progress.String())
}
