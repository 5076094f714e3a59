// internal/monitor/directory.go
package monitor

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/whaleshi/b/internal/dex"
	"github.com/whaleshi/b/internal/dex/model"
	"github.com/whaleshi/b/internal/events"
	"github.com/whaleshi/b/internal/registry"
)

// DefaultRefreshInterval of the token directory.
const DefaultRefreshInterval = 15 * time.Second

const directoryResource = "directory"

// SnapshotSource is satisfied by registry.Aggregator.
type SnapshotSource interface {
	Refresh(ctx context.Context) (*registry.Snapshot, error)
}

// SnapshotSink is satisfied by registry.Lookup.
type SnapshotSink interface {
	Update(snap *registry.Snapshot)
}

// MetadataSource is satisfied by registry.MetadataResolver.
type MetadataSource interface {
	Resolve(ctx context.Context, records []model.TokenRecord) (int, error)
}

// DirectoryRefresher rebuilds the directory snapshot on an interval:
// aggregate, swap the lookup, resolve metadata, announce.
type DirectoryRefresher struct {
	scheduler *Scheduler
	source    SnapshotSource
	sink      SnapshotSink
	metadata  MetadataSource
	publisher dex.EventPublisher
	interval  time.Duration
	logger    *zap.Logger
}

// NewDirectoryRefresher; metadata and publisher are optional.
func NewDirectoryRefresher(scheduler *Scheduler, source SnapshotSource, sink SnapshotSink, metadata MetadataSource, publisher dex.EventPublisher, interval time.Duration, logger *zap.Logger) *DirectoryRefresher {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	return &DirectoryRefresher{
		scheduler: scheduler,
		source:    source,
		sink:      sink,
		metadata:  metadata,
		publisher: publisher,
		interval:  interval,
		logger:    logger.Named("directory"),
	}
}

// Start schedules the refresh loop. onSnapshot may be nil.
func (r *DirectoryRefresher) Start(ctx context.Context, onSnapshot func(*registry.Snapshot, error)) error {
	_, err := r.scheduler.Schedule(ctx, Task{
		Resource: directoryResource,
		Interval: r.interval,
		Poll: func(ctx context.Context) (interface{}, error) {
			return r.RefreshOnce(ctx)
		},
		Sink: func(result interface{}, err error) {
			if onSnapshot == nil {
				return
			}
			snap, _ := result.(*registry.Snapshot)
			onSnapshot(snap, err)
		},
	})
	return err
}

func (r *DirectoryRefresher) Stop() bool {
	return r.scheduler.Cancel(directoryResource)
}

// RefreshOnce runs one cycle. A partial snapshot is still applied and
// returned together with the aggregation error.
func (r *DirectoryRefresher) RefreshOnce(ctx context.Context) (*registry.Snapshot, error) {
	start := time.Now()

	snap, err := r.source.Refresh(ctx)
	if snap == nil {
		if err == nil {
			err = errors.New("empty snapshot")
		}
		r.logger.Warn("Directory refresh failed", zap.Error(err))
		return nil, err
	}
	if err != nil {
		r.logger.Warn("Directory refresh partial",
			zap.Int("tokens", snap.Count),
			zap.Int("failed_slots", len(snap.Failures)),
			zap.Error(err))
	}

	r.sink.Update(snap)

	if r.metadata != nil {
		fetched, merr := r.metadata.Resolve(ctx, snap.Records)
		if merr != nil {
			r.logger.Debug("Metadata resolve interrupted", zap.Int("fetched", fetched), zap.Error(merr))
		}
	}

	elapsed := time.Since(start)
	if r.publisher != nil {
		if perr := r.publisher.Publish(&events.RegistryRefreshedEvent{
			BaseEvent: events.NewBase(events.RegistryRefreshed),
			Tokens:    len(snap.Records),
			Failures:  len(snap.Failures),
			Duration:  elapsed,
		}); perr != nil {
			r.logger.Debug("Event not published", zap.Error(perr))
		}
	}

	r.logger.Debug("Directory refreshed",
		zap.Int("tokens", len(snap.Records)),
		zap.Duration("elapsed", elapsed))
	return snap, err
}
