// Package evmtest provides an in-memory chain backend for engine tests.
package evmtest

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/whaleshi/b/internal/blockchain/evm"
	"github.com/whaleshi/b/internal/contracts"
)

// CallFunc answers a read with decoded inputs and returns values to pack.
type CallFunc func(args []interface{}) ([]interface{}, error)

// TxFunc applies the effects of a mined transaction. An error marks the receipt as reverted.
type TxFunc func(from common.Address, value *big.Int, args []interface{}) error

// Entry is one journal line.
type Entry struct {
	Kind   string // "call" or "send"
	To     common.Address
	Method string
}

type method struct {
	abi  abi.ABI
	name string
}

type selectorKey struct {
	to  common.Address
	sel [4]byte
}

// Backend implements evm.Backend in memory.
type Backend struct {
	mu sync.Mutex

	chainID *big.Int
	calls   map[selectorKey]CallFunc
	txs     map[selectorKey]TxFunc
	methods map[selectorKey]method

	balances map[common.Address]*big.Int
	nonces   map[common.Address]uint64
	receipts map[common.Hash]*types.Receipt
	sent     []*types.Transaction
	journal  []Entry
	block    int64

	GasEstimate  uint64
	EstimateErr  error
	GasPrice     *big.Int
	GasPriceErr  error
	BalanceErr   error
	ReceiptDelay int // number of NotFound answers before a receipt shows up
	pending      map[common.Hash]int
}

var _ evm.Backend = (*Backend)(nil)

// New creates a backend with a multicall3 contract at the default address.
func New() *Backend {
	b := &Backend{
		chainID:     big.NewInt(196),
		calls:       make(map[selectorKey]CallFunc),
		txs:         make(map[selectorKey]TxFunc),
		methods:     make(map[selectorKey]method),
		balances:    make(map[common.Address]*big.Int),
		nonces:      make(map[common.Address]uint64),
		receipts:    make(map[common.Hash]*types.Receipt),
		pending:     make(map[common.Hash]int),
		GasEstimate: 100_000,
		GasPrice:    big.NewInt(1_000_000_000),
	}
	b.HandleCall(contracts.DefaultMulticall, contracts.Multicall3ABI, "aggregate3", b.aggregate3)
	return b
}

// ChainIDValue returns the configured chain id.
func (b *Backend) ChainIDValue() *big.Int {
	return new(big.Int).Set(b.chainID)
}

// HandleCall registers a read handler for to.method.
func (b *Backend) HandleCall(to common.Address, parsed abi.ABI, name string, fn CallFunc) {
	key := b.register(to, parsed, name)
	b.mu.Lock()
	b.calls[key] = fn
	b.mu.Unlock()
}

// HandleTx registers the effect of a mined to.method transaction.
func (b *Backend) HandleTx(to common.Address, parsed abi.ABI, name string, fn TxFunc) {
	key := b.register(to, parsed, name)
	b.mu.Lock()
	b.txs[key] = fn
	b.mu.Unlock()
}

func (b *Backend) register(to common.Address, parsed abi.ABI, name string) selectorKey {
	m, ok := parsed.Methods[name]
	if !ok {
		panic(fmt.Sprintf("evmtest: unknown method %s", name))
	}
	var sel [4]byte
	copy(sel[:], m.ID)
	key := selectorKey{to: to, sel: sel}
	b.mu.Lock()
	b.methods[key] = method{abi: parsed, name: name}
	b.mu.Unlock()
	return key
}

// SetBalance sets the native balance of account.
func (b *Backend) SetBalance(account common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[account] = new(big.Int).Set(amount)
}

// Journal returns a copy of all top-level calls and sends in order.
func (b *Backend) Journal() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Entry(nil), b.journal...)
}

// Sent returns every submitted transaction.
func (b *Backend) Sent() []*types.Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*types.Transaction(nil), b.sent...)
}

// SentTo returns the decoded method names of transactions sent to addr.
func (b *Backend) SentTo(addr common.Address) []string {
	var names []string
	for _, e := range b.Journal() {
		if e.Kind == "send" && e.To == addr {
			names = append(names, e.Method)
		}
	}
	return names
}

func (b *Backend) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if msg.To == nil {
		return nil, errors.New("evmtest: call without target")
	}
	name, _ := contracts.MethodBySelector(msg.Data)
	b.mu.Lock()
	b.journal = append(b.journal, Entry{Kind: "call", To: *msg.To, Method: name})
	b.mu.Unlock()
	return b.dispatch(*msg.To, msg.Data)
}

func (b *Backend) dispatch(to common.Address, data []byte) ([]byte, error) {
	if len(data) < 4 {
		return nil, evm.ErrReverted
	}
	var sel [4]byte
	copy(sel[:], data[:4])
	key := selectorKey{to: to, sel: sel}

	b.mu.Lock()
	fn, ok := b.calls[key]
	m := b.methods[key]
	b.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: no handler for %s", evm.ErrReverted, to.Hex())
	}

	abiMethod := m.abi.Methods[m.name]
	args, err := abiMethod.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, fmt.Errorf("%w: bad calldata: %v", evm.ErrReverted, err)
	}
	out, err := fn(args)
	if err != nil {
		return nil, err
	}
	return abiMethod.Outputs.Pack(out...)
}

type call3 struct {
	Target       common.Address
	AllowFailure bool
	CallData     []byte
}

type result3 struct {
	Success    bool
	ReturnData []byte
}

func (b *Backend) aggregate3(args []interface{}) ([]interface{}, error) {
	calls := *abi.ConvertType(args[0], new([]call3)).(*[]call3)
	results := make([]result3, len(calls))
	for i, c := range calls {
		out, err := b.dispatch(c.Target, c.CallData)
		if err != nil {
			if !c.AllowFailure {
				return nil, fmt.Errorf("%w: aggregate3 call %d failed", evm.ErrReverted, i)
			}
			results[i] = result3{Success: false}
			continue
		}
		results[i] = result3{Success: true, ReturnData: out}
	}
	return []interface{}{results}, nil
}

func (b *Backend) BalanceAt(ctx context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.journal = append(b.journal, Entry{Kind: "call", To: account, Method: "balance"})
	if b.BalanceErr != nil {
		return nil, b.BalanceErr
	}
	if bal, ok := b.balances[account]; ok {
		return new(big.Int).Set(bal), nil
	}
	return big.NewInt(0), nil
}

func (b *Backend) EstimateGas(ctx context.Context, _ ethereum.CallMsg) (uint64, error) {
	if b.EstimateErr != nil {
		return 0, b.EstimateErr
	}
	return b.GasEstimate, nil
}

func (b *Backend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if b.GasPriceErr != nil {
		return nil, b.GasPriceErr
	}
	return new(big.Int).Set(b.GasPrice), nil
}

func (b *Backend) PendingNonceAt(_ context.Context, account common.Address) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nonces[account], nil
}

func (b *Backend) ChainID(context.Context) (*big.Int, error) {
	return b.ChainIDValue(), nil
}

// SendTransaction "mines" tx immediately: the registered TxFunc runs and the
// receipt becomes visible after ReceiptDelay lookups.
func (b *Backend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	from, err := types.Sender(types.LatestSignerForChainID(b.chainID), tx)
	if err != nil {
		return fmt.Errorf("evmtest: recover sender: %w", err)
	}
	if tx.To() == nil {
		return errors.New("evmtest: contract creation not supported")
	}
	to := *tx.To()
	name, _ := contracts.MethodBySelector(tx.Data())

	b.mu.Lock()
	b.nonces[from]++
	b.sent = append(b.sent, tx)
	b.journal = append(b.journal, Entry{Kind: "send", To: to, Method: name})
	b.block++
	block := b.block
	b.pending[tx.Hash()] = b.ReceiptDelay
	b.mu.Unlock()

	status := types.ReceiptStatusSuccessful
	if err := b.applyTx(from, to, tx); err != nil {
		status = types.ReceiptStatusFailed
	}

	b.mu.Lock()
	b.receipts[tx.Hash()] = &types.Receipt{
		Status:      status,
		TxHash:      tx.Hash(),
		BlockNumber: big.NewInt(block),
		GasUsed:     tx.Gas(),
	}
	b.mu.Unlock()
	return nil
}

func (b *Backend) applyTx(from, to common.Address, tx *types.Transaction) error {
	data := tx.Data()
	if len(data) < 4 {
		return nil
	}
	var sel [4]byte
	copy(sel[:], data[:4])
	key := selectorKey{to: to, sel: sel}

	b.mu.Lock()
	fn, ok := b.txs[key]
	m := b.methods[key]
	b.mu.Unlock()
	if !ok {
		return nil
	}
	args, err := m.abi.Methods[m.name].Inputs.Unpack(data[4:])
	if err != nil {
		return err
	}
	return fn(from, tx.Value(), args)
}

func (b *Backend) TransactionReceipt(_ context.Context, hash common.Hash) (*types.Receipt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if left := b.pending[hash]; left > 0 {
		b.pending[hash] = left - 1
		return nil, ethereum.NotFound
	}
	receipt, ok := b.receipts[hash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}
