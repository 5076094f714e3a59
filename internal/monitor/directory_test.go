package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/whaleshi/b/internal/dex"
	"github.com/whaleshi/b/internal/dex/model"
	"github.com/whaleshi/b/internal/events"
	"github.com/whaleshi/b/internal/multicall"
	"github.com/whaleshi/b/internal/registry"
)

type stubSource struct {
	snap *registry.Snapshot
	err  error
}

func (s *stubSource) Refresh(context.Context) (*registry.Snapshot, error) { return s.snap, s.err }

type stubSink struct {
	mu      sync.Mutex
	updates int
	last    *registry.Snapshot
}

func (s *stubSink) Update(snap *registry.Snapshot) {
	s.mu.Lock()
	s.updates++
	s.last = snap
	s.mu.Unlock()
}

type stubMetadata struct{ resolved []model.TokenRecord }

func (m *stubMetadata) Resolve(_ context.Context, records []model.TokenRecord) (int, error) {
	m.resolved = records
	return len(records), nil
}

type collectPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *collectPublisher) Publish(e events.Event) error {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
	return nil
}

func snapshotOf(n int) *registry.Snapshot {
	snap := &registry.Snapshot{Count: n, FetchedAt: time.Now()}
	for i := 0; i < n; i++ {
		snap.Records = append(snap.Records, model.TokenRecord{Index: i})
	}
	return snap
}

func TestDirectoryRefresher_RefreshOnce(t *testing.T) {
	source := &stubSource{snap: snapshotOf(3)}
	sink := &stubSink{}
	md := &stubMetadata{}
	pub := &collectPublisher{}
	r := NewDirectoryRefresher(NewScheduler(zaptest.NewLogger(t)), source, sink, md, pub, time.Second, zaptest.NewLogger(t))

	snap, err := r.RefreshOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Records, 3)
	assert.Equal(t, 1, sink.updates)
	assert.Len(t, md.resolved, 3)

	require.Len(t, pub.events, 1)
	ev, ok := pub.events[0].(*events.RegistryRefreshedEvent)
	require.True(t, ok)
	assert.Equal(t, 3, ev.Tokens)
	assert.Zero(t, ev.Failures)
}

func TestDirectoryRefresher_PartialSnapshotIsApplied(t *testing.T) {
	snap := snapshotOf(2)
	snap.Failures = []multicall.SlotError{{Index: 1, Err: errors.New("reverted")}}
	source := &stubSource{snap: snap, err: fmt.Errorf("%w: 1 slot", dex.ErrAggregationPartialFailure)}
	sink := &stubSink{}
	pub := &collectPublisher{}
	r := NewDirectoryRefresher(NewScheduler(zaptest.NewLogger(t)), source, sink, nil, pub, time.Second, zaptest.NewLogger(t))

	got, err := r.RefreshOnce(context.Background())
	assert.ErrorIs(t, err, dex.ErrAggregationPartialFailure)
	assert.Same(t, snap, got)
	assert.Same(t, snap, sink.last)
	require.Len(t, pub.events, 1)
	assert.Equal(t, 1, pub.events[0].(*events.RegistryRefreshedEvent).Failures)
}

func TestDirectoryRefresher_FailureKeepsPreviousSnapshot(t *testing.T) {
	source := &stubSource{err: errors.New("rpc down")}
	sink := &stubSink{}
	pub := &collectPublisher{}
	r := NewDirectoryRefresher(NewScheduler(zaptest.NewLogger(t)), source, sink, nil, pub, time.Second, zaptest.NewLogger(t))

	_, err := r.RefreshOnce(context.Background())
	assert.Error(t, err)
	assert.Zero(t, sink.updates)
	assert.Empty(t, pub.events)
}

func TestDirectoryRefresher_Start(t *testing.T) {
	s := NewScheduler(zaptest.NewLogger(t))
	defer s.Stop()
	sink := &stubSink{}
	r := NewDirectoryRefresher(s, &stubSource{snap: snapshotOf(1)}, sink, nil, nil, 5*time.Millisecond, zaptest.NewLogger(t))

	got := make(chan *registry.Snapshot, 10)
	require.NoError(t, r.Start(context.Background(), func(snap *registry.Snapshot, err error) {
		if err == nil {
			got <- snap
		}
	}))

	for i := 0; i < 2; i++ {
		select {
		case snap := <-got:
			assert.Len(t, snap.Records, 1)
		case <-time.After(time.Second):
			t.Fatal("no refresh delivered")
		}
	}
	assert.True(t, r.Stop())
}
