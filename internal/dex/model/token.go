// internal/dex/model/token.go
package model

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// TokenInfo is the factory's tokensInfo tuple for one token. Snapshots are
// replaced wholesale on refresh and never patched.
type TokenInfo struct {
	Base        common.Address
	Quote       common.Address
	Reserve0    *big.Int
	Reserve1    *big.Int
	VReserve0   *big.Int
	VReserve1   *big.Int
	MaxOffers   *big.Int
	TotalSupply *big.Int
	LastPrice   *big.Int
	Target      *big.Int
	Creator     common.Address
	Launched    bool
}

// Progress returns the launch progress derived from this snapshot.
func (i *TokenInfo) Progress() decimal.Decimal {
	if i == nil {
		return decimal.Zero
	}
	return ProgressPercent(i.Reserve1, i.Target)
}

// ProgressPercent = min(100, reserve1/target*100), two decimal places,
// rounded half up exactly once. A zero or missing target yields 0.
func ProgressPercent(reserve1, target *big.Int) decimal.Decimal {
	if reserve1 == nil || target == nil || target.Sign() <= 0 {
		return decimal.Zero
	}
	if reserve1.Cmp(target) >= 0 {
		return hundred
	}
	// basis points of a percent: (reserve1*10000*2 + target) / (2*target)
	num := new(big.Int).Mul(reserve1, big.NewInt(20000))
	num.Add(num, target)
	den := new(big.Int).Lsh(target, 1)
	return decimal.NewFromBigInt(num.Quo(num, den), -2)
}

// TokenRecord is one directory entry.
type TokenRecord struct {
	// Index is the factory discovery index; higher is newer.
	Index    int
	Address  common.Address
	URI      string
	URIKnown bool
	Info     *TokenInfo
	Launched bool
	Progress decimal.Decimal
}

// NewTokenRecord derives Launched and Progress from info.
func NewTokenRecord(index int, addr common.Address, uri string, uriKnown bool, info *TokenInfo) TokenRecord {
	rec := TokenRecord{
		Index:    index,
		Address:  addr,
		URI:      uri,
		URIKnown: uriKnown,
		Info:     info,
		Progress: decimal.Zero,
	}
	if info != nil {
		rec.Launched = info.Launched
		rec.Progress = info.Progress()
	}
	return rec
}

// TokenMetadata is the off-chain JSON pointed to by the token URI.
type TokenMetadata struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Image       string `json:"image"`
	Website     string `json:"website,omitempty"`
	X           string `json:"x,omitempty"`
	Telegram    string `json:"telegram,omitempty"`
	// Placeholder is set when the fetch failed and defaults were stored.
	Placeholder bool `json:"placeholder,omitempty"`
}

// PlaceholderMetadata is what a token shows when its metadata cannot be fetched.
func PlaceholderMetadata(addr common.Address) TokenMetadata {
	return TokenMetadata{
		Name:        "Token " + ShortAddress(addr),
		Symbol:      "UNKNOWN",
		Placeholder: true,
	}
}

// ShortAddress renders 0x1234...abcd.
func ShortAddress(addr common.Address) string {
	h := strings.ToLower(addr.Hex())
	return fmt.Sprintf("%s...%s", h[:6], h[len(h)-4:])
}
