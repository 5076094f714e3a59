package evmtest

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/whaleshi/b/internal/contracts"
)

// Token is an ERC20 ledger wired into a Backend.
type Token struct {
	Address common.Address

	mu         sync.Mutex
	balances   map[common.Address]*big.Int
	allowances map[[2]common.Address]*big.Int
	approvals  int
	decimals   uint8
}

// NewToken registers balanceOf/allowance/approve/decimals for addr on b.
func NewToken(b *Backend, addr common.Address) *Token {
	t := &Token{
		Address:    addr,
		balances:   make(map[common.Address]*big.Int),
		allowances: make(map[[2]common.Address]*big.Int),
		decimals:   18,
	}

	b.HandleCall(addr, contracts.ERC20ABI, "balanceOf", func(args []interface{}) ([]interface{}, error) {
		return []interface{}{t.BalanceOf(args[0].(common.Address))}, nil
	})
	b.HandleCall(addr, contracts.ERC20ABI, "allowance", func(args []interface{}) ([]interface{}, error) {
		return []interface{}{t.Allowance(args[0].(common.Address), args[1].(common.Address))}, nil
	})
	b.HandleCall(addr, contracts.ERC20ABI, "decimals", func([]interface{}) ([]interface{}, error) {
		return []interface{}{t.decimals}, nil
	})
	b.HandleTx(addr, contracts.ERC20ABI, "approve", func(from common.Address, _ *big.Int, args []interface{}) error {
		t.SetAllowance(from, args[0].(common.Address), args[1].(*big.Int))
		t.mu.Lock()
		t.approvals++
		t.mu.Unlock()
		return nil
	})
	return t
}

func (t *Token) SetBalance(owner common.Address, amount *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.balances[owner] = new(big.Int).Set(amount)
}

func (t *Token) BalanceOf(owner common.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.balances[owner]; ok {
		return new(big.Int).Set(v)
	}
	return big.NewInt(0)
}

func (t *Token) SetAllowance(owner, spender common.Address, amount *big.Int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.allowances[[2]common.Address{owner, spender}] = new(big.Int).Set(amount)
}

func (t *Token) Allowance(owner, spender common.Address) *big.Int {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.allowances[[2]common.Address{owner, spender}]; ok {
		return new(big.Int).Set(v)
	}
	return big.NewInt(0)
}

// Approvals counts mined approve transactions.
func (t *Token) Approvals() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.approvals
}
