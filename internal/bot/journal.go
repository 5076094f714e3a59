// internal/bot/journal.go
package bot

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/whaleshi/b/internal/events"
	"github.com/whaleshi/b/internal/storage"
)

const journalWriteTimeout = 5 * time.Second

// TradeJournal records every finished trade into the store and any extra
// sinks (CSV). Failures to write are logged, never surfaced to the trader.
type TradeJournal struct {
	store  storage.TradeStore
	sinks  []storage.TradeSink
	logger *zap.Logger

	mu   sync.Mutex
	subs []events.Subscription
}

func NewTradeJournal(store storage.TradeStore, logger *zap.Logger, sinks ...storage.TradeSink) *TradeJournal {
	return &TradeJournal{
		store:  store,
		sinks:  sinks,
		logger: logger.Named("journal"),
	}
}

// Attach subscribes to trade outcomes on bus.
func (j *TradeJournal) Attach(bus *events.Bus) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.subs = append(j.subs,
		bus.SubscribeFunc(events.TradeCompleted, j.handle),
		bus.SubscribeFunc(events.TradeFailed, j.handle),
	)
}

// Detach drops the bus subscriptions.
func (j *TradeJournal) Detach() {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, s := range j.subs {
		s.Unsubscribe()
	}
	j.subs = nil
}

func (j *TradeJournal) handle(_ context.Context, event events.Event) error {
	var rec *storage.TradeRecord
	switch e := event.(type) {
	case *events.TradeCompletedEvent:
		rec = CompletedRecord(e)
	case *events.TradeFailedEvent:
		rec = FailedRecord(e)
	default:
		return nil
	}

	// the bus context is already cancelled while draining on shutdown
	ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
	defer cancel()
	return j.Record(ctx, rec)
}

// Record writes rec to the store, then to every sink. A duplicate is not an error.
func (j *TradeJournal) Record(ctx context.Context, rec *storage.TradeRecord) error {
	if err := j.store.Insert(ctx, rec); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			j.logger.Debug("Trade already journaled", zap.String("id", rec.ID), zap.String("tx", rec.TxHash))
			return nil
		}
		j.logger.Error("Failed to journal trade", zap.String("id", rec.ID), zap.Error(err))
		return err
	}
	for _, sink := range j.sinks {
		if err := sink.Insert(ctx, rec); err != nil {
			j.logger.Warn("Journal sink rejected trade", zap.String("id", rec.ID), zap.Error(err))
		}
	}
	j.logger.Debug("Trade journaled",
		zap.String("id", rec.ID),
		zap.String("status", string(rec.Status)),
		zap.String("side", rec.Side))
	return nil
}

// Store returns the queryable journal.
func (j *TradeJournal) Store() storage.TradeStore { return j.store }

// CompletedRecord maps a successful trade.
func CompletedRecord(e *events.TradeCompletedEvent) *storage.TradeRecord {
	r := e.Result
	rec := &storage.TradeRecord{
		ID:          uuid.New().String(),
		Wallet:      e.Wallet.Hex(),
		Token:       r.Token.Hex(),
		Side:        r.Side.String(),
		Venue:       r.Venue.String(),
		AmountIn:    r.AmountIn,
		ExpectedOut: r.ExpectedAmountOut,
		MinOut:      r.MinAmountOut,
		TxHash:      r.TxHash.Hex(),
		Status:      storage.StatusCompleted,
		CreatedAt:   e.Timestamp(),
	}
	if r.ApproveTxHash != nil {
		rec.ApproveTxHash = r.ApproveTxHash.Hex()
	}
	if r.BlockNumber != nil {
		rec.BlockNumber = r.BlockNumber.Uint64()
	}
	return rec
}

// FailedRecord maps a failed trade; a cancelled context is journaled as cancelled.
func FailedRecord(e *events.TradeFailedEvent) *storage.TradeRecord {
	rec := &storage.TradeRecord{
		ID:        uuid.New().String(),
		Wallet:    e.Wallet.Hex(),
		Token:     e.Token.Hex(),
		Side:      e.Side.String(),
		Venue:     e.Venue.String(),
		AmountIn:  e.AmountIn,
		Status:    storage.StatusFailed,
		Stage:     e.Stage,
		CreatedAt: e.Timestamp(),
	}
	if e.TxHash != nil {
		rec.TxHash = e.TxHash.Hex()
	}
	if e.Err != nil {
		rec.Error = strings.TrimSpace(e.Err.Error())
		if errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded) {
			rec.Status = storage.StatusCancelled
		}
	}
	return rec
}
