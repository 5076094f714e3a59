package postgres

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/whaleshi/b/internal/storage"
)

// TradeStore implements storage.TradeStore on the trades table.
type TradeStore struct {
	pool *Pool
}

func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

const tradeColumns = `id, wallet, token, side, venue, amount_in, expected_out, min_out,
	tx_hash, approve_tx_hash, block_number, status, stage, error, created_at`

// Insert adds a record. Returns ErrDuplicateKey if the id or tx hash exists.
func (s *TradeStore) Insert(ctx context.Context, r *storage.TradeRecord) error {
	if err := r.Validate(); err != nil {
		return err
	}

	query := `INSERT INTO trades (` + tradeColumns + `) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8,
		$9, $10, $11, $12, $13, $14, $15
	)`
	_, err := s.pool.Exec(ctx, query,
		r.ID, r.Wallet, r.Token, r.Side, r.Venue,
		amountText(r.AmountIn), nullableAmount(r.ExpectedOut), nullableAmount(r.MinOut),
		nullableText(r.TxHash), nullableText(r.ApproveTxHash), int64(r.BlockNumber),
		string(r.Status), r.Stage, r.Error, r.CreatedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

func (s *TradeStore) Get(ctx context.Context, id string) (*storage.TradeRecord, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+tradeColumns+` FROM trades WHERE id = $1`, id)
	r, err := scanTrade(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get trade: %w", err)
	}
	return r, nil
}

func (s *TradeStore) ListByWallet(ctx context.Context, wallet string, limit int) ([]*storage.TradeRecord, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades
		WHERE lower(wallet) = lower($1)
		ORDER BY created_at DESC, id`
	return s.query(ctx, query, limit, wallet)
}

func (s *TradeStore) Recent(ctx context.Context, limit int) ([]*storage.TradeRecord, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades ORDER BY created_at DESC, id`
	return s.query(ctx, query, limit)
}

func (s *TradeStore) query(ctx context.Context, query string, limit int, args ...interface{}) ([]*storage.TradeRecord, error) {
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []*storage.TradeRecord
	for rows.Next() {
		r, err := scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trades: %w", err)
	}
	return out, nil
}

func scanTrade(row pgx.Row) (*storage.TradeRecord, error) {
	var (
		r                     storage.TradeRecord
		amountIn              string
		expectedOut, minOut   *string
		txHash, approveTxHash *string
		blockNumber           int64
		status                string
	)
	err := row.Scan(
		&r.ID, &r.Wallet, &r.Token, &r.Side, &r.Venue,
		&amountIn, &expectedOut, &minOut,
		&txHash, &approveTxHash, &blockNumber,
		&status, &r.Stage, &r.Error, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.AmountIn = parseAmount(&amountIn)
	r.ExpectedOut = parseAmount(expectedOut)
	r.MinOut = parseAmount(minOut)
	r.TxHash = deref(txHash)
	r.ApproveTxHash = deref(approveTxHash)
	r.BlockNumber = uint64(blockNumber)
	r.Status = storage.Status(status)
	return &r, nil
}

func amountText(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func nullableAmount(v *big.Int) *string {
	if v == nil {
		return nil
	}
	s := v.String()
	return &s
}

func nullableText(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

func parseAmount(s *string) *big.Int {
	if s == nil {
		return nil
	}
	v, ok := new(big.Int).SetString(*s, 10)
	if !ok {
		return nil
	}
	return v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
