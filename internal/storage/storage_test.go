package storage

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func validRecord() *TradeRecord {
	return &TradeRecord{
		ID:       "id-1",
		Wallet:   "0xabc",
		Token:    "0xdef",
		Side:     "buy",
		AmountIn: big.NewInt(10),
		Status:   StatusCompleted,
	}
}

func TestTradeRecord_Validate(t *testing.T) {
	assert.NoError(t, validRecord().Validate())

	tests := map[string]func(r *TradeRecord){
		"no id":          func(r *TradeRecord) { r.ID = "" },
		"no wallet":      func(r *TradeRecord) { r.Wallet = "" },
		"no side":        func(r *TradeRecord) { r.Side = "" },
		"unknown status": func(r *TradeRecord) { r.Status = "pending" },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			r := validRecord()
			mutate(r)
			assert.ErrorIs(t, r.Validate(), ErrInvalidInput)
		})
	}

	var nilRecord *TradeRecord
	assert.ErrorIs(t, nilRecord.Validate(), ErrInvalidInput)
}

func TestTradeRecord_CloneIsDeep(t *testing.T) {
	r := validRecord()
	c := r.Clone()
	c.AmountIn.SetInt64(99)
	assert.Equal(t, int64(10), r.AmountIn.Int64())
	assert.Nil(t, c.MinOut)
}
