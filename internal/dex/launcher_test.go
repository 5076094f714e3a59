package dex_test

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/whaleshi/b/internal/contracts"
	"github.com/whaleshi/b/internal/dex"
	"github.com/whaleshi/b/internal/events"
)

func TestLauncher_Create(t *testing.T) {
	h := newHarness(t)
	predicted := common.HexToAddress("0x00000000000000000000000000000000000000cc")

	var createdSalt [32]byte
	h.backend.HandleTx(factoryAddr, contracts.FactoryABI, "createTokenAndBuy", func(_ common.Address, value *big.Int, args []interface{}) error {
		assert.Equal(t, "Doge", args[0].(string))
		assert.Equal(t, "DOGE", args[1].(string))
		assert.Equal(t, "ipfs://meta", args[2].(string))
		createdSalt = args[3].([32]byte)
		assert.Equal(t, int64(5000), value.Int64())
		return nil
	})
	h.backend.HandleCall(factoryAddr, contracts.FactoryABI, "predictTokenAddress", func(args []interface{}) ([]interface{}, error) {
		assert.Equal(t, createdSalt, args[0].([32]byte))
		return []interface{}{predicted}, nil
	})

	l := dex.NewLauncher(h.factory, h.wallet, h.gas, h.erc20, h.publisher, zaptest.NewLogger(t))
	res, err := l.Create(context.Background(), dex.CreateParams{
		Name:        "Doge",
		Symbol:      "DOGE",
		MetadataURI: "ipfs://meta",
		InitialBuy:  big.NewInt(5000),
	})
	require.NoError(t, err)

	assert.Equal(t, predicted, res.Token)
	assert.Equal(t, createdSalt, res.Salt)
	assert.Equal(t, []string{"createTokenAndBuy"}, h.backend.SentTo(factoryAddr))
	// prediction runs after the creation is mined
	journal := h.backend.Journal()
	assert.Less(t, journalIndex(journal, "send", "createTokenAndBuy", 0), journalIndex(journal, "call", "predictTokenAddress", 0))
	assert.Contains(t, h.publisher.types(), events.TokenLaunched)
}

func TestLauncher_CreateWithoutBuy(t *testing.T) {
	h := newHarness(t)
	h.backend.HandleCall(factoryAddr, contracts.FactoryABI, "predictTokenAddress", func([]interface{}) ([]interface{}, error) {
		return []interface{}{tokenAddr}, nil
	})

	l := dex.NewLauncher(h.factory, h.wallet, h.gas, h.erc20, nil, zaptest.NewLogger(t))
	res, err := l.Create(context.Background(), dex.CreateParams{Name: "A", Symbol: "A"})
	require.NoError(t, err)
	assert.Equal(t, tokenAddr, res.Token)
	assert.Equal(t, []string{"createToken"}, h.backend.SentTo(factoryAddr))
}

func TestLauncher_Validation(t *testing.T) {
	h := newHarness(t)
	l := dex.NewLauncher(h.factory, h.wallet, h.gas, h.erc20, nil, zaptest.NewLogger(t))

	_, err := l.Create(context.Background(), dex.CreateParams{Symbol: "A"})
	assert.ErrorIs(t, err, dex.ErrInvalidAmount)

	_, err = l.Create(context.Background(), dex.CreateParams{Name: "A", Symbol: "A", InitialBuy: big.NewInt(10_000_000)})
	assert.ErrorIs(t, err, dex.ErrInsufficientBalance)
	assert.Empty(t, h.backend.Sent())
}
