// internal/dex/erc20.go
package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/whaleshi/b/internal/blockchain/evm"
	"github.com/whaleshi/b/internal/contracts"
)

// ChainReader is the read side of the node, normally *evm.Caller.
type ChainReader interface {
	Call(ctx context.Context, to common.Address, data []byte) ([]byte, error)
	Balance(ctx context.Context, account common.Address) (*big.Int, error)
}

// ERC20 reads token state. Nothing here is cached.
type ERC20 struct {
	reader ChainReader
}

func NewERC20(reader ChainReader) *ERC20 {
	return &ERC20{reader: reader}
}

func (e *ERC20) call(ctx context.Context, token common.Address, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contracts.ERC20ABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	raw, err := e.reader.Call(ctx, token, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	out, err := contracts.ERC20ABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: empty result", method)
	}
	return out, nil
}

func (e *ERC20) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	out, err := e.call(ctx, token, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

func (e *ERC20) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	out, err := e.call(ctx, token, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return out[0].(*big.Int), nil
}

func (e *ERC20) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	out, err := e.call(ctx, token, "decimals")
	if err != nil {
		return 0, err
	}
	return out[0].(uint8), nil
}

// NativeBalance reads the wallet's native currency balance.
func (e *ERC20) NativeBalance(ctx context.Context, owner common.Address) (*big.Int, error) {
	return e.reader.Balance(ctx, owner)
}

// ApproveCall builds approve(spender, amount) on token.
func ApproveCall(token, spender common.Address, amount *big.Int) (evm.Call, error) {
	data, err := contracts.ERC20ABI.Pack("approve", spender, amount)
	if err != nil {
		return evm.Call{}, fmt.Errorf("pack approve: %w", err)
	}
	return evm.Call{To: token, Data: data}, nil
}
