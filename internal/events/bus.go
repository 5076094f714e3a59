// internal/events/bus.go
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrBusClosed = errors.New("event bus is shutting down")
	ErrBusFull   = errors.New("event channel full")
)

const defaultBuffer = 256

// Bus is an in-memory fan-out of events to typed subscribers.
// Publish never blocks: when the buffer is full the event is dropped.
type Bus struct {
	mu     sync.RWMutex
	subs   map[EventType]map[string]Handler
	queue  chan Event
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBus creates a bus and starts its dispatcher.
func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = defaultBuffer
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &Bus{
		subs:   make(map[EventType]map[string]Handler),
		queue:  make(chan Event, bufferSize),
		logger: logger.Named("event_bus"),
		ctx:    ctx,
		cancel: cancel,
	}
	b.wg.Add(1)
	go b.dispatch()
	return b
}

// Subscribe registers handler for eventType.
func (b *Bus) Subscribe(eventType EventType, handler Handler) Subscription {
	id := uuid.New().String()

	b.mu.Lock()
	if b.subs[eventType] == nil {
		b.subs[eventType] = make(map[string]Handler)
	}
	b.subs[eventType][id] = handler
	b.mu.Unlock()

	b.logger.Debug("Handler subscribed",
		zap.String("event_type", string(eventType)),
		zap.String("subscription_id", id))
	return &subscription{id: id, eventBus: b, typ: eventType}
}

// SubscribeFunc is Subscribe for plain functions.
func (b *Bus) SubscribeFunc(eventType EventType, fn func(context.Context, Event) error) Subscription {
	return b.Subscribe(eventType, HandlerFunc(fn))
}

// Publish queues event for asynchronous delivery.
func (b *Bus) Publish(event Event) error {
	select {
	case <-b.ctx.Done():
		return ErrBusClosed
	default:
	}

	select {
	case b.queue <- event:
		return nil
	default:
		b.logger.Warn("Event channel full, dropping event", zap.String("event_type", string(event.Type())))
		return ErrBusFull
	}
}

// PublishSync delivers event to every subscriber on the caller's goroutine.
func (b *Bus) PublishSync(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[event.Type()]))
	for _, h := range b.subs[event.Type()] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	var errs []error
	for _, h := range handlers {
		if err := h.Handle(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d handler(s) failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

func (b *Bus) dispatch() {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			// drain what is already queued
			for {
				select {
				case event := <-b.queue:
					b.deliver(context.Background(), event)
				default:
					return
				}
			}
		case event := <-b.queue:
			b.deliver(b.ctx, event)
		}
	}
}

func (b *Bus) deliver(ctx context.Context, event Event) {
	if err := b.PublishSync(ctx, event); err != nil {
		b.logger.Error("Failed to process event",
			zap.String("event_type", string(event.Type())),
			zap.Error(err))
	}
}

func (b *Bus) unsubscribe(id string, eventType EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if handlers, ok := b.subs[eventType]; ok {
		delete(handlers, id)
		if len(handlers) == 0 {
			delete(b.subs, eventType)
		}
	}
}

// Shutdown stops the dispatcher after draining queued events.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.cancel()

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		b.logger.Warn("Event bus shutdown timeout")
		return ctx.Err()
	}
}
