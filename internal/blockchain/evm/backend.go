// internal/blockchain/evm/backend.go
package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
)

// Backend is the subset of the node API the trade engine needs.
// *ethclient.Client satisfies it.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

var _ Backend = (*ethclient.Client)(nil)

// Call is a contract invocation before signing.
type Call struct {
	From  common.Address
	To    common.Address
	Value *big.Int
	Data  []byte
}

// Msg converts the call into a node call message.
func (c Call) Msg() ethereum.CallMsg {
	return ethereum.CallMsg{
		From:  c.From,
		To:    &c.To,
		Value: c.Value,
		Data:  c.Data,
	}
}

// GasPlan is best-effort; a nil field means the signer's default applies.
type GasPlan struct {
	GasLimit *uint64
	GasPrice *big.Int
}

// Dial connects to the first healthy endpoint in rpcList.
// Health means the node answers eth_chainId and, when expectedChainID is set, matches it.
func Dial(ctx context.Context, rpcList []string, expectedChainID int64, logger *zap.Logger) (*ethclient.Client, error) {
	if len(rpcList) == 0 {
		return nil, fmt.Errorf("no RPC URLs provided")
	}

	var lastErr error
	for _, url := range rpcList {
		client, err := ethclient.DialContext(ctx, url)
		if err != nil {
			lastErr = err
			logger.Warn("RPC dial failed", zap.String("rpc", url), zap.Error(err))
			continue
		}

		chainID, err := client.ChainID(ctx)
		if err != nil {
			client.Close()
			lastErr = err
			logger.Warn("RPC health check failed", zap.String("rpc", url), zap.Error(err))
			continue
		}
		if expectedChainID != 0 && chainID.Int64() != expectedChainID {
			client.Close()
			lastErr = fmt.Errorf("chain id mismatch: got %s, want %d", chainID, expectedChainID)
			logger.Warn("RPC on wrong chain", zap.String("rpc", url), zap.Error(lastErr))
			continue
		}

		logger.Info("Connected to RPC", zap.String("rpc", url), zap.String("chain_id", chainID.String()))
		return client, nil
	}

	return nil, fmt.Errorf("all RPC endpoints failed: %w", lastErr)
}
