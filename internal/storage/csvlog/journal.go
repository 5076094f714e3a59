// internal/storage/csvlog/journal.go
package csvlog

import (
	"context"
	"encoding/csv"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/whaleshi/b/internal/storage"
)

// Header of the journal file.
var Header = []string{
	"timestamp", "id", "wallet", "token", "side", "venue",
	"amount_in", "expected_out", "min_out",
	"tx_hash", "approve_tx_hash", "block", "status", "stage", "error",
}

// Journal appends trade records to a CSV file. It is a storage.TradeSink.
type Journal struct {
	mu       sync.Mutex
	writer   *csv.Writer
	file     *os.File
	ticker   *time.Ticker
	done     chan struct{}
	closed   bool
	logger   *zap.Logger
	filePath string

	// Stats
	written uint64
	flushes uint64
}

var _ storage.TradeSink = (*Journal)(nil)

// Open creates or appends to filePath and flushes every flushInterval.
func Open(filePath string, flushInterval time.Duration, logger *zap.Logger) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	file, err := os.OpenFile(filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	j := &Journal{
		writer:   csv.NewWriter(file),
		file:     file,
		ticker:   time.NewTicker(flushInterval),
		done:     make(chan struct{}),
		logger:   logger.Named("csv_journal"),
		filePath: filePath,
	}

	// заголовок только для нового файла
	if stat.Size() == 0 {
		if err := j.writer.Write(Header); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
		j.writer.Flush()
	}

	go j.periodicFlush()
	return j, nil
}

// Insert appends r as one CSV row.
func (j *Journal) Insert(_ context.Context, r *storage.TradeRecord) error {
	if err := r.Validate(); err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if j.closed {
		return fmt.Errorf("journal %s is closed", j.filePath)
	}
	if err := j.writer.Write(Row(r)); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	j.written++
	return nil
}

// Row renders r in Header order.
func Row(r *storage.TradeRecord) []string {
	return []string{
		r.CreatedAt.UTC().Format(time.RFC3339),
		r.ID,
		r.Wallet,
		r.Token,
		r.Side,
		r.Venue,
		amount(r.AmountIn),
		amount(r.ExpectedOut),
		amount(r.MinOut),
		r.TxHash,
		r.ApproveTxHash,
		strconv.FormatUint(r.BlockNumber, 10),
		string(r.Status),
		r.Stage,
		r.Error,
	}
}

func amount(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

// Flush forces buffered rows to disk.
func (j *Journal) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	return j.flushLocked()
}

func (j *Journal) flushLocked() error {
	j.writer.Flush()
	if err := j.writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return fmt.Errorf("failed to sync file: %w", err)
	}
	j.flushes++
	return nil
}

func (j *Journal) periodicFlush() {
	for {
		select {
		case <-j.ticker.C:
			if err := j.Flush(); err != nil {
				j.logger.Error("Periodic CSV flush failed",
					zap.String("file", j.filePath),
					zap.Error(err))
			}
		case <-j.done:
			return
		}
	}
}

// Close flushes and closes the file. Safe to call twice.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	close(j.done)
	j.ticker.Stop()

	j.writer.Flush()
	if err := j.writer.Error(); err != nil {
		j.file.Close()
		return fmt.Errorf("CSV writer error on close: %w", err)
	}
	if err := j.file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}

	j.logger.Info("Trade journal closed",
		zap.String("file", j.filePath),
		zap.Uint64("records", j.written),
		zap.Uint64("flushes", j.flushes))
	return nil
}

// Stats returns written rows (header excluded) and flush count.
func (j *Journal) Stats() (records, flushes uint64) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.written, j.flushes
}
