package asset

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// MemoryLedger is an in-process ERC-20 style ledger for many assets.
type MemoryLedger struct {
	mu         sync.Mutex
	balances   map[common.Address]map[common.Address]*big.Int
	allowances map[common.Address]map[[2]common.Address]*big.Int
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		balances:   make(map[common.Address]map[common.Address]*big.Int),
		allowances: make(map[common.Address]map[[2]common.Address]*big.Int),
	}
}

// Mint credits amount of asset to to.
func (l *MemoryLedger) Mint(asset, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("ERC20: invalid mint amount")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(asset, to, amount)
	return nil
}

func (l *MemoryLedger) Transfer(_ context.Context, asset, from, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(asset, from, to, amount)
}

func (l *MemoryLedger) TransferFrom(_ context.Context, asset, spender, from, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := checkAmount(amount); err != nil {
		return err
	}
	key := [2]common.Address{from, spender}
	allowance := l.allowances[asset][key]
	if allowance == nil || allowance.Cmp(amount) < 0 {
		return fmt.Errorf("ERC20: insufficient allowance")
	}
	if err := l.move(asset, from, to, amount); err != nil {
		return err
	}
	allowance.Sub(allowance, amount)
	return nil
}

func (l *MemoryLedger) Approve(_ context.Context, asset, owner, spender common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.allowances[asset] == nil {
		l.allowances[asset] = make(map[[2]common.Address]*big.Int)
	}
	l.allowances[asset][[2]common.Address{owner, spender}] = new(big.Int).Set(amount)
	return nil
}

func (l *MemoryLedger) BalanceOf(_ context.Context, asset, owner common.Address) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if bal := l.balances[asset][owner]; bal != nil {
		return new(big.Int).Set(bal), nil
	}
	return big.NewInt(0), nil
}

// Allowance returns spender's remaining allowance over owner's asset.
func (l *MemoryLedger) Allowance(asset, owner, spender common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if allowance := l.allowances[asset][[2]common.Address{owner, spender}]; allowance != nil {
		return new(big.Int).Set(allowance)
	}
	return big.NewInt(0)
}

// Reverse undoes a transfer from from to to. A non-zero spender marks a
// TransferFrom whose spent allowance is given back.
func (l *MemoryLedger) Reverse(_ context.Context, asset, spender, from, to common.Address, amount *big.Int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.move(asset, to, from, amount); err != nil {
		return err
	}
	if spender == (common.Address{}) {
		return nil
	}
	if l.allowances[asset] == nil {
		l.allowances[asset] = make(map[[2]common.Address]*big.Int)
	}
	key := [2]common.Address{from, spender}
	if l.allowances[asset][key] == nil {
		l.allowances[asset][key] = big.NewInt(0)
	}
	l.allowances[asset][key].Add(l.allowances[asset][key], amount)
	return nil
}

func (l *MemoryLedger) move(asset, from, to common.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	bal := l.balances[asset][from]
	if bal == nil || bal.Cmp(amount) < 0 {
		return fmt.Errorf("ERC20: transfer amount exceeds balance")
	}
	bal.Sub(bal, amount)
	l.credit(asset, to, amount)
	return nil
}

func (l *MemoryLedger) credit(asset, to common.Address, amount *big.Int) {
	if l.balances[asset] == nil {
		l.balances[asset] = make(map[common.Address]*big.Int)
	}
	if l.balances[asset][to] == nil {
		l.balances[asset][to] = big.NewInt(0)
	}
	l.balances[asset][to].Add(l.balances[asset][to], amount)
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("ERC20: invalid amount")
	}
	return nil
}
