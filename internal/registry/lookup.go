// internal/registry/lookup.go
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/whaleshi/b/internal/dex"
	"github.com/whaleshi/b/internal/dex/model"
)

// Lookup holds the latest directory snapshot and answers per-token state.
// It satisfies dex.StateSource.
type Lookup struct {
	aggregator *Aggregator
	logger     *zap.Logger

	mu        sync.RWMutex
	records   []model.TokenRecord
	byAddress map[common.Address]int
	updatedAt time.Time
}

var _ dex.StateSource = (*Lookup)(nil)

func NewLookup(aggregator *Aggregator, logger *zap.Logger) *Lookup {
	return &Lookup{
		aggregator: aggregator,
		byAddress:  make(map[common.Address]int),
		logger:     logger.Named("lookup"),
	}
}

// Update replaces the snapshot wholesale.
func (l *Lookup) Update(snap *Snapshot) {
	if snap == nil {
		return
	}
	byAddress := make(map[common.Address]int, len(snap.Records))
	records := append([]model.TokenRecord(nil), snap.Records...)
	for i, r := range records {
		byAddress[r.Address] = i
	}

	l.mu.Lock()
	l.records = records
	l.byAddress = byAddress
	l.updatedAt = snap.FetchedAt
	l.mu.Unlock()
}

// Records returns a copy of the latest records.
func (l *Lookup) Records() []model.TokenRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]model.TokenRecord(nil), l.records...)
}

// UpdatedAt is the fetch time of the current snapshot.
func (l *Lookup) UpdatedAt() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.updatedAt
}

// Get returns the cached record for token.
func (l *Lookup) Get(token common.Address) (model.TokenRecord, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.byAddress[token]
	if !ok {
		return model.TokenRecord{}, false
	}
	return l.records[i], true
}

// TokenInfo returns the cached bonding state, reading it once if the token is
// not in the snapshot or its state slot failed.
func (l *Lookup) TokenInfo(ctx context.Context, token common.Address) (*model.TokenInfo, error) {
	if rec, ok := l.Get(token); ok && rec.Info != nil {
		return rec.Info, nil
	}
	rec, err := l.Refresh(ctx, token)
	if err != nil && rec.Info == nil {
		return nil, fmt.Errorf("%w: %v", dex.ErrStateUnavailable, err)
	}
	if rec.Info == nil {
		return nil, dex.ErrStateUnavailable
	}
	return rec.Info, nil
}

// Refresh reloads uri and tokensInfo for one token and stores the result.
// A degraded read still returns the record alongside the error.
func (l *Lookup) Refresh(ctx context.Context, token common.Address) (model.TokenRecord, error) {
	if l.aggregator == nil {
		return model.TokenRecord{}, errors.New("lookup: no aggregator")
	}
	rec, err := l.aggregator.Token(ctx, token)
	if err != nil && !errors.Is(err, dex.ErrAggregationPartialFailure) {
		return model.TokenRecord{}, err
	}

	l.mu.Lock()
	if i, ok := l.byAddress[token]; ok {
		prev := l.records[i]
		rec.Index = prev.Index
		if !rec.URIKnown && prev.URIKnown {
			rec.URI, rec.URIKnown = prev.URI, true
		}
		// keep the last good state over a failed read
		if rec.Info == nil && prev.Info != nil {
			rec.Info, rec.Launched, rec.Progress = prev.Info, prev.Launched, prev.Progress
		}
		l.records[i] = rec
	} else if rec.Info != nil {
		l.byAddress[token] = len(l.records)
		l.records = append(l.records, rec)
	}
	l.mu.Unlock()

	if err != nil {
		l.logger.Debug("Token refresh degraded", zap.String("token", token.Hex()), zap.Error(err))
	}
	return rec, err
}
