package monitor

import (
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestThrottler_ConcurrentSend(t *testing.T) {
	outputCh := make(chan tea.Msg, 100)
	throttler := NewThrottler(20*time.Millisecond, outputCh, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				throttler.Send(id*1000 + j)
			}
		}(i)
	}
	wg.Wait()

	time.Sleep(25 * time.Millisecond)
	throttler.FlushPending()

	sent, dropped := throttler.Stats()
	assert.NotZero(t, sent)
	assert.Equal(t, uint64(1000), sent+dropped)
	assert.False(t, throttler.HasPending())
}

func TestThrottler_NewestPendingWins(t *testing.T) {
	outputCh := make(chan tea.Msg, 10)
	throttler := NewThrottler(50*time.Millisecond, outputCh, zap.NewNop())

	throttler.Send("first")
	throttler.Send("second")
	throttler.Send("third")
	assert.True(t, throttler.HasPending())

	time.Sleep(60 * time.Millisecond)
	throttler.FlushPending()

	assert.Equal(t, "first", <-outputCh)
	assert.Equal(t, "third", <-outputCh)
	sent, dropped := throttler.Stats()
	assert.Equal(t, uint64(2), sent)
	assert.Equal(t, uint64(1), dropped)
}
