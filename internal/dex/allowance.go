// =============================================
// File: internal/dex/allowance.go
// =============================================
package dex

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/whaleshi/b/internal/blockchain/evm"
	"github.com/whaleshi/b/internal/contracts"
	"github.com/whaleshi/b/internal/dex/model"
)

// Signer is the wallet session: identity plus sign-and-submit.
type Signer interface {
	Address() common.Address
	IsConnected() bool
	SubmitCall(ctx context.Context, call evm.Call, plan evm.GasPlan) (common.Hash, error)
	WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

// AllowanceGuard makes sure a spender can pull tokens before a sell.
// Allowance is shared with every other agent holding the key, so it is
// re-read on every call.
type AllowanceGuard struct {
	erc20  *ERC20
	signer Signer
	gas    *GasPricer
	logger *zap.Logger
}

func NewAllowanceGuard(erc20 *ERC20, signer Signer, gas *GasPricer, logger *zap.Logger) *AllowanceGuard {
	return &AllowanceGuard{erc20: erc20, signer: signer, gas: gas, logger: logger.Named("allowance")}
}

// Read returns the current on-chain allowance.
func (g *AllowanceGuard) Read(ctx context.Context, token, owner, spender common.Address) (model.AllowanceState, error) {
	amount, err := g.erc20.Allowance(ctx, token, owner, spender)
	if err != nil {
		return model.AllowanceState{}, err
	}
	return model.AllowanceState{Owner: owner, Spender: spender, Amount: amount}, nil
}

// Ensure raises the signer's allowance for spender to MaxUint256 when it is
// below required, and waits for the approval to be mined.
func (g *AllowanceGuard) Ensure(ctx context.Context, token, spender common.Address, required *big.Int) (model.ApprovalOutcome, error) {
	owner := g.signer.Address()
	logger := g.logger.With(
		zap.String("token", token.Hex()),
		zap.String("spender", spender.Hex()),
		zap.String("required", required.String()))

	state, err := g.Read(ctx, token, owner, spender)
	if err != nil {
		return model.ApprovalOutcome{}, fmt.Errorf("%w: read allowance: %v", ErrApprovalFailed, err)
	}
	if state.Sufficient(required) {
		logger.Debug("Allowance already sufficient", zap.String("allowance", state.Amount.String()))
		return model.ApprovalOutcome{}, nil
	}

	call, err := ApproveCall(token, spender, contracts.MaxUint256)
	if err != nil {
		return model.ApprovalOutcome{}, fmt.Errorf("%w: %v", ErrApprovalFailed, err)
	}
	call.From = owner
	plan := g.gas.Plan(ctx, call)

	logger.Info("Submitting approval", zap.String("allowance", state.Amount.String()))
	hash, err := g.signer.SubmitCall(ctx, call, plan)
	if err != nil {
		return model.ApprovalOutcome{}, fmt.Errorf("%w: submit: %v", ErrApprovalFailed, err)
	}

	if _, err := g.signer.WaitMined(ctx, hash); err != nil {
		return model.ApprovalOutcome{TxHash: &hash}, fmt.Errorf("%w: tx %s: %v", ErrApprovalFailed, hash.Hex(), err)
	}

	logger.Info("Approval confirmed", zap.String("tx_hash", hash.Hex()))
	return model.ApprovalOutcome{TxHash: &hash}, nil
}
