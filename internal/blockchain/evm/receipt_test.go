package evm_test

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/whaleshi/b/internal/blockchain/evm"
	"github.com/whaleshi/b/internal/blockchain/evm/evmtest"
)

func signedTransfer(t *testing.T, b *evmtest.Backend, key *ecdsa.PrivateKey) *types.Transaction {
	t.Helper()
	to := common.HexToAddress("0x3000000000000000000000000000000000000003")
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    0,
		To:       &to,
		Value:    big.NewInt(1),
		Gas:      21000,
		GasPrice: big.NewInt(1),
	})
	signed, err := types.SignTx(tx, types.NewEIP155Signer(b.ChainIDValue()), key)
	require.NoError(t, err)
	return signed
}

func TestWaitMined_PollsUntilReceipt(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	b := evmtest.New()
	b.ReceiptDelay = 2
	tx := signedTransfer(t, b, key)
	require.NoError(t, b.SendTransaction(context.Background(), tx))

	receipt, err := evm.WaitMined(context.Background(), b, tx.Hash(), time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
}

func TestWaitMined_StopsOnContextCancel(t *testing.T) {
	b := evmtest.New()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := evm.WaitMined(ctx, b, common.HexToHash("0xdead"), time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
