// internal/monitor/throttler.go
package monitor

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"
)

// DefaultThrottleInterval keeps the TUI responsive under fast polls.
const DefaultThrottleInterval = 150 * time.Millisecond

// Throttler forwards watcher updates to the UI at most once per interval.
// Updates arriving in between replace the pending one; the newest wins.
type Throttler struct {
	mu         sync.RWMutex
	interval   time.Duration
	lastUpdate time.Time
	pending    tea.Msg
	outputCh   chan<- tea.Msg
	logger     *zap.Logger

	dropped uint64
	sent    uint64
}

func NewThrottler(interval time.Duration, outputCh chan<- tea.Msg, logger *zap.Logger) *Throttler {
	if interval <= 0 {
		interval = DefaultThrottleInterval
	}
	return &Throttler{
		interval: interval,
		outputCh: outputCh,
		logger:   logger.Named("throttler"),
	}
}

// Send forwards msg now or keeps it as pending. Safe for concurrent use.
func (t *Throttler) Send(msg tea.Msg) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending != nil {
		t.dropped++
	}
	now := time.Now()
	if now.Sub(t.lastUpdate) < t.interval {
		t.pending = msg
		return
	}
	t.emit(msg, now)
}

// emit must be called with mu held.
func (t *Throttler) emit(msg tea.Msg, now time.Time) {
	select {
	case t.outputCh <- msg:
		t.lastUpdate = now
		t.sent++
		t.pending = nil
	default:
		// канал полон, оставляем как pending
		t.pending = msg
		t.logger.Debug("UI channel full, update kept as pending")
	}
}

// FlushPending sends the pending update once the interval has passed.
func (t *Throttler) FlushPending() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending == nil {
		return
	}
	now := time.Now()
	if now.Sub(t.lastUpdate) >= t.interval {
		t.emit(t.pending, now)
	}
}

// Run flushes pending updates until ctx is done.
func (t *Throttler) Run(ctx context.Context) {
	ticker := time.NewTicker(t.interval / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.FlushPending()
		}
	}
}

// Stats returns sent and overwritten update counts.
func (t *Throttler) Stats() (sent, dropped uint64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sent, t.dropped
}

// HasPending reports whether an update is waiting.
func (t *Throttler) HasPending() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pending != nil
}
