// ==================================
// File: internal/wallet/wallet.go
// ==================================
package wallet

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/whaleshi/b/internal/blockchain/evm"
)

// DefaultGasLimit используется, когда план газа не содержит лимита.
const DefaultGasLimit uint64 = 500_000

// ErrNotConnected is returned by SubmitCall before Connect.
var ErrNotConnected = errors.New("wallet not connected")

// Wallet представляет EVM-кошелёк с ключом в памяти.
type Wallet struct {
	Name string

	key     *ecdsa.PrivateKey
	address common.Address

	mu              sync.RWMutex
	backend         evm.Backend
	chainID         *big.Int
	defaultGasLimit uint64
	receiptPoll     time.Duration
	logger          *zap.Logger

	// nonce allocation must be serialized per key
	sendMu sync.Mutex
}

// NewWallet создаёт кошелёк из hex-encoded приватного ключа (с 0x или без).
func NewWallet(name, privateKeyHex string) (*Wallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKeyHex), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &Wallet{
		Name:            name,
		key:             key,
		address:         crypto.PubkeyToAddress(key.PublicKey),
		defaultGasLimit: DefaultGasLimit,
		receiptPoll:     evm.DefaultReceiptPoll,
		logger:          zap.NewNop(),
	}, nil
}

// FromKey wraps an existing key.
func FromKey(name string, key *ecdsa.PrivateKey) *Wallet {
	return &Wallet{
		Name:            name,
		key:             key,
		address:         crypto.PubkeyToAddress(key.PublicKey),
		defaultGasLimit: DefaultGasLimit,
		receiptPoll:     evm.DefaultReceiptPoll,
		logger:          zap.NewNop(),
	}
}

// Connect binds the wallet to a node. Until then IsConnected is false.
func (w *Wallet) Connect(backend evm.Backend, chainID *big.Int, logger *zap.Logger) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.backend = backend
	w.chainID = new(big.Int).Set(chainID)
	if logger != nil {
		w.logger = logger.Named("wallet").With(zap.String("wallet", w.Name), zap.String("address", w.address.Hex()))
	}
}

// SetDefaultGasLimit overrides the fallback limit used when a plan omits one.
func (w *Wallet) SetDefaultGasLimit(limit uint64) {
	if limit == 0 {
		return
	}
	w.mu.Lock()
	w.defaultGasLimit = limit
	w.mu.Unlock()
}

// SetReceiptPoll sets the receipt polling interval.
func (w *Wallet) SetReceiptPoll(d time.Duration) {
	w.mu.Lock()
	w.receiptPoll = d
	w.mu.Unlock()
}

func (w *Wallet) Address() common.Address { return w.address }

func (w *Wallet) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.backend != nil
}

// SubmitCall signs call as a legacy transaction and broadcasts it.
// Nothing here retries; resubmission is the caller's decision.
func (w *Wallet) SubmitCall(ctx context.Context, call evm.Call, plan evm.GasPlan) (common.Hash, error) {
	w.mu.RLock()
	backend, chainID, defaultGas, logger := w.backend, w.chainID, w.defaultGasLimit, w.logger
	w.mu.RUnlock()
	if backend == nil {
		return common.Hash{}, ErrNotConnected
	}

	w.sendMu.Lock()
	defer w.sendMu.Unlock()

	nonce, err := backend.PendingNonceAt(ctx, w.address)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice := plan.GasPrice
	if gasPrice == nil {
		if gasPrice, err = backend.SuggestGasPrice(ctx); err != nil {
			return common.Hash{}, fmt.Errorf("failed to get gas price: %w", err)
		}
	}

	gasLimit := defaultGas
	if plan.GasLimit != nil {
		gasLimit = *plan.GasLimit
	}

	value := call.Value
	if value == nil {
		value = new(big.Int)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		To:       &call.To,
		Value:    value,
		Gas:      gasLimit,
		GasPrice: gasPrice,
		Data:     call.Data,
	})

	signed, err := types.SignTx(tx, types.NewEIP155Signer(chainID), w.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to sign transaction: %w", err)
	}

	if err := backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	logger.Debug("Transaction sent",
		zap.String("tx_hash", signed.Hash().Hex()),
		zap.String("to", call.To.Hex()),
		zap.Uint64("nonce", nonce),
		zap.Uint64("gas_limit", gasLimit),
		zap.String("gas_price", gasPrice.String()))

	return signed.Hash(), nil
}

// WaitMined blocks until hash is included. A reverted receipt is an error.
func (w *Wallet) WaitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	w.mu.RLock()
	backend, poll := w.backend, w.receiptPoll
	w.mu.RUnlock()
	if backend == nil {
		return nil, ErrNotConnected
	}
	return evm.WaitMined(ctx, backend, hash, poll)
}

// walletFile represents the structure of wallets YAML file
type walletFile struct {
	Wallets []struct {
		Name       string `yaml:"name"`
		PrivateKey string `yaml:"private_key"`
	} `yaml:"wallets"`
}

// LoadWallets загружает кошельки из YAML-файла.
func LoadWallets(path string) (map[string]*Wallet, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var file walletFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	wallets := make(map[string]*Wallet, len(file.Wallets))
	for _, entry := range file.Wallets {
		if entry.Name == "" {
			continue
		}
		w, err := NewWallet(entry.Name, entry.PrivateKey)
		if err != nil {
			return nil, fmt.Errorf("wallet %q: %w", entry.Name, err)
		}
		wallets[entry.Name] = w
	}
	if len(wallets) == 0 {
		return nil, fmt.Errorf("no wallets found in %s", path)
	}
	return wallets, nil
}
