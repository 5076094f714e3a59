// =============================================
// File: internal/dex/gas.go
// =============================================
package dex

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"go.uber.org/zap"

	"github.com/whaleshi/b/internal/blockchain/evm"
)

const (
	// GasLimitBufferPct is added on top of the node's estimate.
	GasLimitBufferPct = 20
	// GasPriceBumpPct is added on top of the suggested legacy gas price.
	GasPriceBumpPct = 5
)

// GasOracle is the node side of gas planning.
type GasOracle interface {
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
}

// GasPricer builds a best-effort GasPlan. Failures degrade to an empty field.
type GasPricer struct {
	oracle  GasOracle
	timeout time.Duration
	logger  *zap.Logger
}

func NewGasPricer(oracle GasOracle, timeout time.Duration, logger *zap.Logger) *GasPricer {
	if timeout <= 0 {
		timeout = evm.DefaultReadTimeout
	}
	return &GasPricer{oracle: oracle, timeout: timeout, logger: logger.Named("gas")}
}

// Plan estimates call.
func (g *GasPricer) Plan(ctx context.Context, call evm.Call) evm.GasPlan {
	var plan evm.GasPlan

	estCtx, cancel := context.WithTimeout(ctx, g.timeout)
	estimate, err := g.oracle.EstimateGas(estCtx, call.Msg())
	cancel()
	if err != nil {
		g.logger.Debug("Gas estimation failed, leaving limit to signer", zap.Error(err))
	} else {
		limit := BufferGasLimit(estimate)
		plan.GasLimit = &limit
	}

	priceCtx, cancel := context.WithTimeout(ctx, g.timeout)
	price, err := g.oracle.SuggestGasPrice(priceCtx)
	cancel()
	if err != nil || price == nil {
		g.logger.Debug("Gas price unavailable, leaving price to signer", zap.Error(err))
	} else {
		plan.GasPrice = BumpGasPrice(price)
	}

	return plan
}

// BufferGasLimit returns estimate * 120 / 100.
func BufferGasLimit(estimate uint64) uint64 {
	return estimate * (100 + GasLimitBufferPct) / 100
}

// BumpGasPrice returns price * 105 / 100.
func BumpGasPrice(price *big.Int) *big.Int {
	out := new(big.Int).Mul(price, big.NewInt(100+GasPriceBumpPct))
	return out.Quo(out, big.NewInt(100))
}
