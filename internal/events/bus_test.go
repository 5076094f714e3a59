package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestBus_DeliversToSubscribers(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 8)
	defer bus.Shutdown(context.Background())

	var got atomic.Int32
	bus.SubscribeFunc(TradeCompleted, func(_ context.Context, e Event) error {
		assert.Equal(t, TradeCompleted, e.Type())
		got.Add(1)
		return nil
	})
	bus.SubscribeFunc(TradeFailed, func(context.Context, Event) error {
		t.Error("unexpected delivery")
		return nil
	})

	require.NoError(t, bus.Publish(&TradeCompletedEvent{BaseEvent: NewBase(TradeCompleted)}))
	assert.Eventually(t, func() bool { return got.Load() == 1 }, time.Second, 5*time.Millisecond)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 8)
	defer bus.Shutdown(context.Background())

	var got atomic.Int32
	sub := bus.SubscribeFunc(RegistryRefreshed, func(context.Context, Event) error {
		got.Add(1)
		return nil
	})
	sub.Unsubscribe()

	require.NoError(t, bus.PublishSync(context.Background(), &RegistryRefreshedEvent{BaseEvent: NewBase(RegistryRefreshed)}))
	assert.Equal(t, int32(0), got.Load())
}

func TestBus_PublishSyncJoinsErrors(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 8)
	defer bus.Shutdown(context.Background())

	boom := errors.New("boom")
	bus.SubscribeFunc(TradeFailed, func(context.Context, Event) error { return boom })

	err := bus.PublishSync(context.Background(), &TradeFailedEvent{BaseEvent: NewBase(TradeFailed)})
	assert.ErrorIs(t, err, boom)
}

func TestBus_PublishAfterShutdown(t *testing.T) {
	bus := NewBus(zaptest.NewLogger(t), 1)
	require.NoError(t, bus.Shutdown(context.Background()))
	assert.ErrorIs(t, bus.Publish(&TradeStartedEvent{BaseEvent: NewBase(TradeStarted)}), ErrBusClosed)
}
