// internal/types/amount.go
package types

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// NativeDecimals is the precision of the chain's native currency.
const NativeDecimals = 18

// ErrInvalidAmount is returned for malformed or non-positive amounts.
var ErrInvalidAmount = errors.New("invalid amount")

// ParseAmount converts a human string ("0.5", "1e-3", "12 OKB") into base units.
// Digits beyond the asset precision are truncated.
func ParseAmount(s string, decimals int32) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, ' '); i > 0 {
		s = s[:i]
	}
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if !d.IsPositive() {
		return nil, fmt.Errorf("%w: must be greater than zero", ErrInvalidAmount)
	}

	wei := d.Shift(decimals).Truncate(0).BigInt()
	if wei.Sign() <= 0 {
		return nil, fmt.Errorf("%w: below smallest unit", ErrInvalidAmount)
	}
	return wei, nil
}

// FormatAmount renders base units with at most maxFrac fractional digits, rounding down.
func FormatAmount(wei *big.Int, decimals int32, maxFrac int32) string {
	if wei == nil {
		return "0"
	}
	return decimal.NewFromBigInt(wei, -decimals).RoundDown(maxFrac).String()
}

// PercentOf returns floor(amount * pct / 100).
func PercentOf(amount *big.Int, pct int) *big.Int {
	if amount == nil || pct <= 0 {
		return new(big.Int)
	}
	if pct >= 100 {
		return new(big.Int).Set(amount)
	}
	out := new(big.Int).Mul(amount, big.NewInt(int64(pct)))
	return out.Quo(out, big.NewInt(100))
}
