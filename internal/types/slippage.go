// internal/types/slippage.go
package types

import (
	"errors"
	"fmt"
	"math/big"
	"sync"
)

const (
	// BpsDenominator: 10000 bps = 100%.
	BpsDenominator = 10_000
	// MaxSlippageBps ограничивает допуск 50%.
	MaxSlippageBps = 5_000
	// DefaultSlippageBps is 1%.
	DefaultSlippageBps = 100
)

// ErrInvalidSlippage is returned for a tolerance outside (0, MaxSlippageBps].
var ErrInvalidSlippage = errors.New("invalid slippage")

// SlippageConfig конфигурирует допустимое проскальзывание в базисных пунктах.
type SlippageConfig struct {
	ToleranceBps int `json:"tolerance_bps" mapstructure:"tolerance_bps"`
}

// Validate checks the tolerance range.
func (c SlippageConfig) Validate() error {
	if c.ToleranceBps <= 0 || c.ToleranceBps > MaxSlippageBps {
		return fmt.Errorf("%w: %d bps", ErrInvalidSlippage, c.ToleranceBps)
	}
	return nil
}

// Percent renders the tolerance for display, e.g. "3%" or "0.5%".
func (c SlippageConfig) Percent() string {
	whole, frac := c.ToleranceBps/100, c.ToleranceBps%100
	if frac == 0 {
		return fmt.Sprintf("%d%%", whole)
	}
	s := fmt.Sprintf("%d.%02d", whole, frac)
	for s[len(s)-1] == '0' {
		s = s[:len(s)-1]
	}
	return s + "%"
}

// FromPercent converts a whole percent (1, 3, 5 ...) into a config.
func FromPercent(pct int) SlippageConfig {
	return SlippageConfig{ToleranceBps: pct * 100}
}

// MinOut вычисляет минимальный выход: floor(expected * (10000 - bps) / 10000).
// Only integer arithmetic is used.
func MinOut(expected *big.Int, toleranceBps int) (*big.Int, error) {
	if err := (SlippageConfig{ToleranceBps: toleranceBps}).Validate(); err != nil {
		return nil, err
	}
	if expected == nil || expected.Sign() <= 0 {
		return new(big.Int), nil
	}
	out := new(big.Int).Mul(expected, big.NewInt(int64(BpsDenominator-toleranceBps)))
	return out.Quo(out, big.NewInt(BpsDenominator)), nil
}

// SlippageProvider is the read side of the preference store.
type SlippageProvider interface {
	Slippage() SlippageConfig
}

// SlippageStore is a process-wide, concurrency-safe preference holder.
type SlippageStore struct {
	mu  sync.RWMutex
	cfg SlippageConfig
}

// NewSlippageStore validates the initial value.
func NewSlippageStore(initialBps int) (*SlippageStore, error) {
	cfg := SlippageConfig{ToleranceBps: initialBps}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &SlippageStore{cfg: cfg}, nil
}

func (s *SlippageStore) Slippage() SlippageConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Set replaces the preference. Intents already built keep their bound.
func (s *SlippageStore) Set(bps int) error {
	cfg := SlippageConfig{ToleranceBps: bps}
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
	return nil
}
