package model

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		name     string
		reserve1 *big.Int
		target   *big.Int
		want     string
	}{
		{"eighty", big.NewInt(80), big.NewInt(100), "80"},
		{"clamped", big.NewInt(120), big.NewInt(100), "100"},
		{"zero target", big.NewInt(50), big.NewInt(0), "0"},
		{"nil target", big.NewInt(50), nil, "0"},
		{"two places", big.NewInt(1), big.NewInt(3), "33.33"},
		{"rounds half up", big.NewInt(2), big.NewInt(3), "66.67"},
		{"exact half step", big.NewInt(99995), big.NewInt(100000), "100"},
		{"just under half step", big.NewInt(99994999999), big.NewInt(100000000000), "99.99"},
		{"large reserves", new(big.Int).Mul(big.NewInt(1234567), big.NewInt(1e15)), new(big.Int).Mul(big.NewInt(5e6), big.NewInt(1e15)), "24.69"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ProgressPercent(tt.reserve1, tt.target)
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestProgressPercent_Property(t *testing.T) {
	for reserve := int64(0); reserve <= 300; reserve += 7 {
		for _, target := range []int64{1, 3, 100, 250} {
			got := ProgressPercent(big.NewInt(reserve), big.NewInt(target))
			want := decimal.NewFromInt(reserve).Mul(hundred).DivRound(decimal.NewFromInt(target), 24).Round(2)
			if want.GreaterThan(hundred) {
				want = hundred
			}
			assert.True(t, got.Equal(want), "reserve=%d target=%d", reserve, target)
			assert.True(t, got.LessThanOrEqual(hundred))
		}
	}
}

func TestProgressPercent_UnlaunchedStaysBelowHundred(t *testing.T) {
	target := big.NewInt(100000000000)
	for _, reserve := range []int64{99994999999, 99994000000, 99990000001} {
		got := ProgressPercent(big.NewInt(reserve), target)
		assert.True(t, got.LessThan(hundred), "reserve=%d got %s", reserve, got)
	}
}

func TestNewTokenRecord(t *testing.T) {
	addr := common.HexToAddress("0x1234567890abcdef1234567890abcdef12345678")
	rec := NewTokenRecord(4, addr, "ipfs://x", true, &TokenInfo{
		Reserve1: big.NewInt(80),
		Target:   big.NewInt(100),
		Launched: true,
	})
	assert.True(t, rec.Launched)
	assert.True(t, rec.Progress.Equal(decimal.NewFromInt(80)))

	unknown := NewTokenRecord(5, addr, "", false, nil)
	assert.False(t, unknown.Launched)
	assert.True(t, unknown.Progress.IsZero())
}

func TestPlaceholderMetadata(t *testing.T) {
	addr := common.HexToAddress("0x1234567890abcdef1234567890abcdef1234abcd")
	meta := PlaceholderMetadata(addr)
	assert.Equal(t, "Token 0x1234...abcd", meta.Name)
	assert.Equal(t, "UNKNOWN", meta.Symbol)
	assert.True(t, meta.Placeholder)
}
