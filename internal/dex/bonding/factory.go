// =============================================
// File: internal/dex/bonding/factory.go
// =============================================
// Package bonding talks to the launchpad factory: the internal bonding-curve
// market plus the token registry it maintains.
package bonding

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/whaleshi/b/internal/blockchain/evm"
	"github.com/whaleshi/b/internal/contracts"
	"github.com/whaleshi/b/internal/dex/model"
)

const (
	BuyMethodPurchase = "purchase"
	BuyMethodBuyToken = "buyToken"
)

// ErrEmptyResult is returned when a view call decodes to nothing.
var ErrEmptyResult = errors.New("empty result")

// Reader is an eth_call executor, normally *evm.Caller.
type Reader interface {
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
}

// Factory wraps the factory contract.
type Factory struct {
	reader    Reader
	address   common.Address
	buyMethod string
}

// NewFactory validates buyMethod; deployments differ on the entry point name.
func NewFactory(reader Reader, address common.Address, buyMethod string) (*Factory, error) {
	if buyMethod == "" {
		buyMethod = BuyMethodPurchase
	}
	if buyMethod != BuyMethodPurchase && buyMethod != BuyMethodBuyToken {
		return nil, fmt.Errorf("unsupported factory buy method %q", buyMethod)
	}
	return &Factory{reader: reader, address: address, buyMethod: buyMethod}, nil
}

func (f *Factory) Address() common.Address { return f.address }

// BuyMethod returns the configured buy entry point.
func (f *Factory) BuyMethod() string { return f.buyMethod }

func (f *Factory) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contracts.FactoryABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := f.reader.Call(ctx, f.address, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	out, err := contracts.FactoryABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", method, ErrEmptyResult)
	}
	return out, nil
}

// AllTokens returns the number of tokens the factory has created.
func (f *Factory) AllTokens(ctx context.Context) (*big.Int, error) {
	out, err := f.call(ctx, "allTokens")
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// TryBuy simulates a buy of nativeIn and returns (tokenOut, refund).
func (f *Factory) TryBuy(ctx context.Context, token common.Address, nativeIn *big.Int) (*big.Int, *big.Int, error) {
	out, err := f.call(ctx, "tryBuy", token, nativeIn)
	if err != nil {
		return nil, nil, err
	}
	if len(out) < 2 {
		return nil, nil, fmt.Errorf("tryBuy: %w", ErrEmptyResult)
	}
	return out[0].(*big.Int), out[1].(*big.Int), nil
}

// TrySell simulates a sell of tokenIn and returns the native amount out.
func (f *Factory) TrySell(ctx context.Context, token common.Address, tokenIn *big.Int) (*big.Int, error) {
	out, err := f.call(ctx, "trySell", token, tokenIn)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

// PredictTokenAddress returns the deterministic address for salt.
func (f *Factory) PredictTokenAddress(ctx context.Context, salt [32]byte) (common.Address, error) {
	out, err := f.call(ctx, "predictTokenAddress", salt)
	if err != nil {
		return common.Address{}, err
	}
	return out[0].(common.Address), nil
}

// BuyCall builds the payable buy; value is nativeIn.
func (f *Factory) BuyCall(token common.Address, nativeIn, minOut *big.Int) (evm.Call, error) {
	data, err := contracts.FactoryABI.Pack(f.buyMethod, token, nativeIn, minOut)
	if err != nil {
		return evm.Call{}, fmt.Errorf("pack %s: %w", f.buyMethod, err)
	}
	return evm.Call{To: f.address, Value: new(big.Int).Set(nativeIn), Data: data}, nil
}

// SellCall builds sell(token, amount, minEthOut).
func (f *Factory) SellCall(token common.Address, tokenIn, minOut *big.Int) (evm.Call, error) {
	data, err := contracts.FactoryABI.Pack("sell", token, tokenIn, minOut)
	if err != nil {
		return evm.Call{}, fmt.Errorf("pack sell: %w", err)
	}
	return evm.Call{To: f.address, Data: data}, nil
}

// CreateCall builds createToken, or createTokenAndBuy when initialBuy > 0.
func (f *Factory) CreateCall(name, symbol, uri string, salt [32]byte, initialBuy *big.Int) (evm.Call, error) {
	if initialBuy != nil && initialBuy.Sign() > 0 {
		data, err := contracts.FactoryABI.Pack("createTokenAndBuy", name, symbol, uri, salt, initialBuy)
		if err != nil {
			return evm.Call{}, fmt.Errorf("pack createTokenAndBuy: %w", err)
		}
		return evm.Call{To: f.address, Value: new(big.Int).Set(initialBuy), Data: data}, nil
	}
	data, err := contracts.FactoryABI.Pack("createToken", name, symbol, uri, salt)
	if err != nil {
		return evm.Call{}, fmt.Errorf("pack createToken: %w", err)
	}
	return evm.Call{To: f.address, Data: data}, nil
}

// TokensInfo reads the bonding-curve state of one token.
func (f *Factory) TokensInfo(ctx context.Context, token common.Address) (*model.TokenInfo, error) {
	data, err := PackTokensInfo(token)
	if err != nil {
		return nil, err
	}
	raw, err := f.reader.Call(ctx, f.address, data)
	if err != nil {
		return nil, fmt.Errorf("tokensInfo: %w", err)
	}
	return DecodeTokensInfo(raw)
}
