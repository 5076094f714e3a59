package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/whaleshi/b/internal/storage"
	"github.com/whaleshi/b/internal/storage/csvlog"
	"github.com/whaleshi/b/internal/types"
)

// ExportFormat represents the export file format
type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatJSON ExportFormat = "json"
)

// ParseFormat accepts "csv" or "json" in any case.
func ParseFormat(s string) (ExportFormat, error) {
	switch f := ExportFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatJSON:
		return f, nil
	}
	return "", fmt.Errorf("unsupported format: %q", s)
}

// ExportOptions configures the export behavior
type ExportOptions struct {
	Format        ExportFormat
	StartTime     time.Time
	EndTime       time.Time
	TokenFilter   string // 0x address, case-insensitive
	SideFilter    string // buy / sell
	OnlyCompleted bool
	OutputDir     string
}

// TradeExporter writes journal records to files.
type TradeExporter struct {
	logger *zap.Logger
}

func NewTradeExporter(logger *zap.Logger) *TradeExporter {
	return &TradeExporter{
		logger: logger.Named("export"),
	}
}

// ExportTrades writes the matching records oldest first and returns the file path.
func (te *TradeExporter) ExportTrades(trades []*storage.TradeRecord, options ExportOptions) (string, error) {
	filtered := te.filterTrades(trades, options)
	if len(filtered) == 0 {
		return "", fmt.Errorf("no trades match the export criteria")
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
	})

	outputPath := filepath.Join(options.OutputDir, te.generateFilename(options))
	if err := os.MkdirAll(options.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	switch options.Format {
	case FormatCSV:
		err = te.exportToCSV(filtered, outputPath)
	case FormatJSON:
		err = te.exportToJSON(filtered, outputPath)
	default:
		err = fmt.Errorf("unsupported format: %s", options.Format)
	}
	if err != nil {
		return "", err
	}

	te.logger.Info("Trades exported",
		zap.String("file", outputPath),
		zap.Int("count", len(filtered)),
		zap.String("format", string(options.Format)))

	return outputPath, nil
}

func (te *TradeExporter) filterTrades(trades []*storage.TradeRecord, options ExportOptions) []*storage.TradeRecord {
	var filtered []*storage.TradeRecord
	for _, trade := range trades {
		if !options.StartTime.IsZero() && trade.CreatedAt.Before(options.StartTime) {
			continue
		}
		if !options.EndTime.IsZero() && !trade.CreatedAt.Before(options.EndTime) {
			continue
		}
		if options.TokenFilter != "" && !strings.EqualFold(trade.Token, options.TokenFilter) {
			continue
		}
		if options.SideFilter != "" && !strings.EqualFold(trade.Side, options.SideFilter) {
			continue
		}
		if options.OnlyCompleted && trade.Status != storage.StatusCompleted {
			continue
		}
		filtered = append(filtered, trade)
	}
	return filtered
}

func (te *TradeExporter) generateFilename(options ExportOptions) string {
	timestamp := time.Now().Format("20060102_150405")

	prefix := "trades_all"
	if options.SideFilter != "" {
		prefix = "trades_" + strings.ToLower(options.SideFilter)
	}
	if token := strings.TrimPrefix(strings.ToLower(options.TokenFilter), "0x"); token != "" {
		if len(token) > 8 {
			token = token[:8]
		}
		prefix += "_" + token
	}

	return fmt.Sprintf("%s_%s.%s", prefix, timestamp, options.Format)
}

// exportToCSV uses the journal column layout so both files load the same way.
func (te *TradeExporter) exportToCSV(trades []*storage.TradeRecord, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(csvlog.Header); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, trade := range trades {
		if err := writer.Write(csvlog.Row(trade)); err != nil {
			return fmt.Errorf("failed to write trade: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// Record is the JSON shape of one journal entry.
type Record struct {
	ID            string    `json:"id"`
	Time          time.Time `json:"time"`
	Wallet        string    `json:"wallet"`
	Token         string    `json:"token"`
	Side          string    `json:"side"`
	Venue         string    `json:"venue,omitempty"`
	AmountIn      string    `json:"amount_in,omitempty"`
	ExpectedOut   string    `json:"expected_out,omitempty"`
	MinOut        string    `json:"min_out,omitempty"`
	TxHash        string    `json:"tx_hash,omitempty"`
	ApproveTxHash string    `json:"approve_tx_hash,omitempty"`
	BlockNumber   uint64    `json:"block,omitempty"`
	Status        string    `json:"status"`
	Stage         string    `json:"stage,omitempty"`
	Error         string    `json:"error,omitempty"`
}

func toRecord(r *storage.TradeRecord) Record {
	return Record{
		ID:            r.ID,
		Time:          r.CreatedAt.UTC(),
		Wallet:        r.Wallet,
		Token:         r.Token,
		Side:          r.Side,
		Venue:         r.Venue,
		AmountIn:      intString(r.AmountIn),
		ExpectedOut:   intString(r.ExpectedOut),
		MinOut:        intString(r.MinOut),
		TxHash:        r.TxHash,
		ApproveTxHash: r.ApproveTxHash,
		BlockNumber:   r.BlockNumber,
		Status:        string(r.Status),
		Stage:         r.Stage,
		Error:         r.Error,
	}
}

func intString(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

func (te *TradeExporter) exportToJSON(trades []*storage.TradeRecord, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create JSON file: %w", err)
	}
	defer file.Close()

	records := make([]Record, 0, len(trades))
	for _, t := range trades {
		records = append(records, toRecord(t))
	}

	exportData := struct {
		ExportTime time.Time     `json:"export_time"`
		TradeCount int           `json:"trade_count"`
		Summary    ExportSummary `json:"summary"`
		Trades     []Record      `json:"trades"`
	}{
		ExportTime: time.Now().UTC(),
		TradeCount: len(trades),
		Summary:    te.calculateSummary(trades),
		Trades:     records,
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(exportData); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// ExportSummary aggregates a set of records. Volumes count completed trades
// only and are in native currency.
type ExportSummary struct {
	TotalTrades    int       `json:"total_trades"`
	Completed      int       `json:"completed"`
	Failed         int       `json:"failed"`
	Cancelled      int       `json:"cancelled"`
	BuyCount       int       `json:"buy_count"`
	SellCount      int       `json:"sell_count"`
	UniqueTokens   int       `json:"unique_tokens"`
	UniqueWallets  int       `json:"unique_wallets"`
	NativeSpent    string    `json:"native_spent"`
	NativeReceived string    `json:"native_received"`
	StartDate      time.Time `json:"start_date"`
	EndDate        time.Time `json:"end_date"`
}

// calculateSummary expects trades sorted oldest first.
func (te *TradeExporter) calculateSummary(trades []*storage.TradeRecord) ExportSummary {
	summary := ExportSummary{TotalTrades: len(trades)}
	spent, received := new(big.Int), new(big.Int)

	tokens := make(map[string]struct{})
	wallets := make(map[string]struct{})
	for _, trade := range trades {
		tokens[strings.ToLower(trade.Token)] = struct{}{}
		wallets[strings.ToLower(trade.Wallet)] = struct{}{}

		switch trade.Status {
		case storage.StatusCompleted:
			summary.Completed++
		case storage.StatusFailed:
			summary.Failed++
		case storage.StatusCancelled:
			summary.Cancelled++
		}

		completed := trade.Status == storage.StatusCompleted
		switch strings.ToLower(trade.Side) {
		case "buy":
			summary.BuyCount++
			if completed && trade.AmountIn != nil {
				spent.Add(spent, trade.AmountIn)
			}
		case "sell":
			summary.SellCount++
			if completed && trade.ExpectedOut != nil {
				received.Add(received, trade.ExpectedOut)
			}
		}
	}

	if len(trades) > 0 {
		summary.StartDate = trades[0].CreatedAt
		summary.EndDate = trades[len(trades)-1].CreatedAt
	}
	summary.UniqueTokens = len(tokens)
	summary.UniqueWallets = len(wallets)
	summary.NativeSpent = types.FormatAmount(spent, types.NativeDecimals, 6)
	summary.NativeReceived = types.FormatAmount(received, types.NativeDecimals, 6)
	return summary
}
