package memory

import (
	"context"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whaleshi/b/internal/storage"
)

func record(id, wallet string, at time.Time) *storage.TradeRecord {
	return &storage.TradeRecord{
		ID:        id,
		Wallet:    wallet,
		Token:     "0x00000000000000000000000000000000000000aa",
		Side:      "buy",
		AmountIn:  big.NewInt(1000),
		TxHash:    "0xhash-" + id,
		Status:    storage.StatusCompleted,
		CreatedAt: at,
	}
}

func TestTradeStore_InsertAndGet(t *testing.T) {
	ctx := context.Background()
	s := NewTradeStore()

	r := record("a", "0xW1", time.Now())
	require.NoError(t, s.Insert(ctx, r))

	// запись копируется при вставке
	r.AmountIn.SetInt64(1)
	got, err := s.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.AmountIn.Int64())

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTradeStore_Duplicates(t *testing.T) {
	ctx := context.Background()
	s := NewTradeStore()
	require.NoError(t, s.Insert(ctx, record("a", "0xW1", time.Now())))

	assert.ErrorIs(t, s.Insert(ctx, record("a", "0xW1", time.Now())), storage.ErrDuplicateKey)

	sameHash := record("b", "0xW1", time.Now())
	sameHash.TxHash = "0xHASH-A"
	assert.ErrorIs(t, s.Insert(ctx, sameHash), storage.ErrDuplicateKey)

	failed := record("c", "0xW1", time.Now())
	failed.TxHash = ""
	failed.Status = storage.StatusFailed
	assert.NoError(t, s.Insert(ctx, failed))

	assert.ErrorIs(t, s.Insert(ctx, &storage.TradeRecord{ID: "x"}), storage.ErrInvalidInput)
	assert.Equal(t, 2, s.Len())
}

func TestTradeStore_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewTradeStore()
	base := time.Now()
	for i := 0; i < 5; i++ {
		wallet := "0xW1"
		if i%2 == 1 {
			wallet = "0xW2"
		}
		require.NoError(t, s.Insert(ctx, record(fmt.Sprintf("t%d", i), wallet, base.Add(time.Duration(i)*time.Second))))
	}

	recent, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "t4", recent[0].ID)
	assert.Equal(t, "t3", recent[1].ID)

	w1, err := s.ListByWallet(ctx, "0xw1", 0)
	require.NoError(t, err)
	require.Len(t, w1, 3)
	assert.Equal(t, []string{"t4", "t2", "t0"}, []string{w1[0].ID, w1[1].ID, w1[2].ID})
}
