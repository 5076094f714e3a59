// =============================================
// File: internal/registry/aggregator.go
// =============================================
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/whaleshi/b/internal/dex"
	"github.com/whaleshi/b/internal/dex/bonding"
	"github.com/whaleshi/b/internal/dex/model"
	"github.com/whaleshi/b/internal/multicall"
)

// Snapshot is one directory refresh. Records are in discovery-index order.
type Snapshot struct {
	Records   []model.TokenRecord
	Failures  []multicall.SlotError
	Count     int
	FetchedAt time.Time
}

// Partial reports whether some slots were excluded or degraded.
func (s *Snapshot) Partial() bool { return len(s.Failures) > 0 }

// RefreshRecorder is satisfied by *metrics.Collector.
type RefreshRecorder interface {
	RecordRegistryRefresh(duration time.Duration, tokens, failures int)
}

// Aggregator reads the whole factory directory in three round trips.
type Aggregator struct {
	factory   *bonding.Factory
	multicall *multicall.Client
	metrics   RefreshRecorder
	logger    *zap.Logger
}

func NewAggregator(factory *bonding.Factory, mc *multicall.Client, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		factory:   factory,
		multicall: mc,
		logger:    logger.Named("registry"),
	}
}

// WithMetrics attaches a refresh recorder.
func (a *Aggregator) WithMetrics(m RefreshRecorder) *Aggregator {
	a.metrics = m
	return a
}

// Refresh reads allTokens, then tokens(i) for every index, then uri and
// tokensInfo for every valid address. When some slots fail the snapshot is
// still returned, together with an error wrapping dex.ErrAggregationPartialFailure.
func (a *Aggregator) Refresh(ctx context.Context) (*Snapshot, error) {
	start := time.Now()

	count, err := a.factory.AllTokens(ctx)
	if err != nil {
		return nil, fmt.Errorf("read token count: %w", err)
	}
	if !count.IsInt64() || count.Int64() < 0 {
		return nil, fmt.Errorf("token count out of range: %s", count)
	}
	n := int(count.Int64())

	snap := &Snapshot{Count: n, FetchedAt: time.Now()}
	if n == 0 {
		a.record(snap, time.Since(start))
		return snap, nil
	}

	indexed, failures, err := a.addresses(ctx, n)
	if err != nil {
		return nil, err
	}
	snap.Failures = append(snap.Failures, failures...)

	records, failures, err := a.details(ctx, indexed)
	if err != nil {
		return nil, err
	}
	snap.Records = records
	snap.Failures = append(snap.Failures, failures...)

	elapsed := time.Since(start)
	a.record(snap, elapsed)

	a.logger.Debug("Directory refreshed",
		zap.Int("count", n),
		zap.Int("records", len(snap.Records)),
		zap.Int("failures", len(snap.Failures)),
		zap.Duration("elapsed", elapsed))

	if snap.Partial() {
		return snap, fmt.Errorf("%w: %d slot(s) failed", dex.ErrAggregationPartialFailure, len(snap.Failures))
	}
	return snap, nil
}

func (a *Aggregator) record(snap *Snapshot, elapsed time.Duration) {
	if a.metrics != nil {
		a.metrics.RecordRegistryRefresh(elapsed, len(snap.Records), len(snap.Failures))
	}
}

type indexedAddress struct {
	index   int
	address common.Address
}

// addresses resolves tokens(i) for i in [0, n). Failed slots are excluded.
func (a *Aggregator) addresses(ctx context.Context, n int) ([]indexedAddress, []multicall.SlotError, error) {
	calls := make([]multicall.Call3, n)
	for i := 0; i < n; i++ {
		data, err := bonding.PackTokens(i)
		if err != nil {
			return nil, nil, err
		}
		calls[i] = multicall.Call3{Target: a.factory.Address(), AllowFailure: true, CallData: data}
	}

	results, err := a.multicall.Aggregate3(ctx, calls)
	if err != nil {
		return nil, nil, fmt.Errorf("aggregate tokens(i): %w", err)
	}

	slots := make([]multicall.Result[common.Address], len(results))
	for i, res := range results {
		slots[i] = multicall.Decode(i, res, bonding.DecodeTokenAddress)
	}
	ok, failures := multicall.Fold(slots, nil)

	out := make([]indexedAddress, 0, len(ok))
	for _, s := range ok {
		if s.Value == (common.Address{}) {
			failures = append(failures, multicall.SlotError{Index: s.Index, Err: fmt.Errorf("zero address")})
			continue
		}
		out = append(out, indexedAddress{index: s.Index, address: s.Value})
	}
	return out, failures, nil
}

// details reads uri (slot 2i) and tokensInfo (slot 2i+1) for each address.
// A failed slot degrades that field only.
func (a *Aggregator) details(ctx context.Context, tokens []indexedAddress) ([]model.TokenRecord, []multicall.SlotError, error) {
	if len(tokens) == 0 {
		return nil, nil, nil
	}

	calls := make([]multicall.Call3, 0, 2*len(tokens))
	for _, t := range tokens {
		uriData, err := bonding.PackURI(t.address)
		if err != nil {
			return nil, nil, err
		}
		infoData, err := bonding.PackTokensInfo(t.address)
		if err != nil {
			return nil, nil, err
		}
		calls = append(calls,
			multicall.Call3{Target: a.factory.Address(), AllowFailure: true, CallData: uriData},
			multicall.Call3{Target: a.factory.Address(), AllowFailure: true, CallData: infoData})
	}

	results, err := a.multicall.Aggregate3(ctx, calls)
	if err != nil {
		return nil, nil, fmt.Errorf("aggregate uri/tokensInfo: %w", err)
	}
	if len(results) != len(calls) {
		return nil, nil, fmt.Errorf("aggregate uri/tokensInfo: %d results for %d calls", len(results), len(calls))
	}

	records := make([]model.TokenRecord, 0, len(tokens))
	var failures []multicall.SlotError
	for i, t := range tokens {
		uri := multicall.Decode(2*i, results[2*i], bonding.DecodeURI)
		info := multicall.Decode(2*i+1, results[2*i+1], bonding.DecodeTokensInfo)

		if !uri.OK() {
			failures = append(failures, multicall.SlotError{Index: t.index, Target: t.address, Err: fmt.Errorf("uri: %w", uri.Err)})
		}
		if !info.OK() {
			failures = append(failures, multicall.SlotError{Index: t.index, Target: t.address, Err: fmt.Errorf("tokensInfo: %w", info.Err)})
		}
		records = append(records, model.NewTokenRecord(t.index, t.address, uri.Value, uri.OK(), info.Value))
	}
	return records, failures, nil
}

// Token reads uri and tokensInfo for a single token in one aggregate3.
func (a *Aggregator) Token(ctx context.Context, token common.Address) (model.TokenRecord, error) {
	records, failures, err := a.details(ctx, []indexedAddress{{index: -1, address: token}})
	if err != nil {
		return model.TokenRecord{}, err
	}
	rec := records[0]
	if len(failures) > 0 {
		return rec, fmt.Errorf("%w: %v", dex.ErrAggregationPartialFailure, failures[0])
	}
	return rec, nil
}
