// =============================================
// File: internal/dex/amm/router.go
// =============================================
// Package amm talks to the UniswapV2-style router used after launch.
package amm

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/whaleshi/b/internal/blockchain/evm"
	"github.com/whaleshi/b/internal/contracts"
)

// ErrNoAmounts is returned when getAmountsOut yields an empty array.
var ErrNoAmounts = errors.New("router returned no amounts")

// Reader is an eth_call executor, normally *evm.Caller.
type Reader interface {
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// Router wraps the AMM router. Paths always go through the wrapped native token.
type Router struct {
	reader  Reader
	address common.Address
	weth    common.Address
}

func NewRouter(reader Reader, address, weth common.Address) *Router {
	return &Router{reader: reader, address: address, weth: weth}
}

func (r *Router) Address() common.Address { return r.address }

// BuyPath is [WETH, token].
func (r *Router) BuyPath(token common.Address) []common.Address {
	return []common.Address{r.weth, token}
}

// SellPath is [token, WETH].
func (r *Router) SellPath(token common.Address) []common.Address {
	return []common.Address{token, r.weth}
}

// AmountsOut simulates a swap along path and returns the final output.
func (r *Router) AmountsOut(ctx context.Context, amountIn *big.Int, path []common.Address) (*big.Int, error) {
	data, err := contracts.RouterABI.Pack("getAmountsOut", amountIn, path)
	if err != nil {
		return nil, fmt.Errorf("pack getAmountsOut: %w", err)
	}
	raw, err := r.reader.Call(ctx, r.address, data)
	if err != nil {
		return nil, fmt.Errorf("getAmountsOut: %w", err)
	}
	out, err := contracts.RouterABI.Unpack("getAmountsOut", raw)
	if err != nil {
		return nil, fmt.Errorf("unpack getAmountsOut: %w", err)
	}
	if len(out) == 0 {
		return nil, ErrNoAmounts
	}
	amounts, ok := out[0].([]*big.Int)
	if !ok || len(amounts) == 0 {
		return nil, ErrNoAmounts
	}
	return amounts[len(amounts)-1], nil
}

// SwapExactETHForTokensCall builds the payable buy swap.
func (r *Router) SwapExactETHForTokensCall(nativeIn, minOut *big.Int, token, to common.Address, deadline *big.Int) (evm.Call, error) {
	data, err := contracts.RouterABI.Pack("swapExactETHForTokens", minOut, r.BuyPath(token), to, deadline)
	if err != nil {
		return evm.Call{}, fmt.Errorf("pack swapExactETHForTokens: %w", err)
	}
	return evm.Call{To: r.address, Value: new(big.Int).Set(nativeIn), Data: data}, nil
}

// SwapExactTokensForETHCall builds the sell swap.
func (r *Router) SwapExactTokensForETHCall(tokenIn, minOut *big.Int, token, to common.Address, deadline *big.Int) (evm.Call, error) {
	data, err := contracts.RouterABI.Pack("swapExactTokensForETH", tokenIn, minOut, r.SellPath(token), to, deadline)
	if err != nil {
		return evm.Call{}, fmt.Errorf("pack swapExactTokensForETH: %w", err)
	}
	return evm.Call{To: r.address, Data: data}, nil
}
