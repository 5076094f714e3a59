// internal/utils/logger/buffer.go
package logger

import (
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

// DefaultBufferSize is how many entries the TUI log panel keeps.
const DefaultBufferSize = 200

// LogEntry is one captured log line.
type LogEntry struct {
	Timestamp time.Time
	Level     zapcore.Level
	Logger    string
	Message   string
	Fields    map[string]interface{}
}

// LogBuffer is a thread-safe ring of the most recent entries.
// Older entries are overwritten; the rotated log file keeps everything.
type LogBuffer struct {
	mu           sync.Mutex
	ring         []LogEntry
	currentIndex int
	wrapped      bool
	total        uint64
	notify       func()
}

func NewLogBuffer(size int) *LogBuffer {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &LogBuffer{ring: make([]LogEntry, size)}
}

// OnAppend registers fn to run after every append (outside the lock).
func (lb *LogBuffer) OnAppend(fn func()) {
	lb.mu.Lock()
	lb.notify = fn
	lb.mu.Unlock()
}

func (lb *LogBuffer) Add(entry LogEntry) {
	lb.mu.Lock()
	lb.ring[lb.currentIndex] = entry
	lb.currentIndex = (lb.currentIndex + 1) % len(lb.ring)
	if lb.currentIndex == 0 {
		lb.wrapped = true
	}
	lb.total++
	notify := lb.notify
	lb.mu.Unlock()

	if notify != nil {
		notify()
	}
}

// Recent returns up to limit entries, oldest first. limit <= 0 means all.
func (lb *LogBuffer) Recent(limit int) []LogEntry {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	count := lb.currentIndex
	start := 0
	if lb.wrapped {
		count = len(lb.ring)
		start = lb.currentIndex
	}
	if limit > 0 && limit < count {
		start += count - limit
		count = limit
	}

	out := make([]LogEntry, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, lb.ring[(start+i)%len(lb.ring)])
	}
	return out
}

// Total returns the number of entries ever added.
func (lb *LogBuffer) Total() uint64 {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.total
}

// bufferCore feeds a LogBuffer from zap.
type bufferCore struct {
	zapcore.LevelEnabler
	buf    *LogBuffer
	fields []zapcore.Field
}

// NewBufferCore returns a core that captures entries at or above level.
// Pass it to New as an extra core.
func NewBufferCore(buf *LogBuffer, level zapcore.LevelEnabler) zapcore.Core {
	return &bufferCore{LevelEnabler: level, buf: buf}
}

func (c *bufferCore) With(fields []zapcore.Field) zapcore.Core {
	clone := *c
	clone.fields = append(append([]zapcore.Field(nil), c.fields...), fields...)
	return &clone
}

func (c *bufferCore) Check(entry zapcore.Entry, checked *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return checked.AddCore(entry, c)
	}
	return checked
}

func (c *bufferCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}
	c.buf.Add(LogEntry{
		Timestamp: entry.Time,
		Level:     entry.Level,
		Logger:    entry.LoggerName,
		Message:   entry.Message,
		Fields:    enc.Fields,
	})
	return nil
}

func (c *bufferCore) Sync() error { return nil }
