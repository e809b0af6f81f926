package custody

import (
	"errors"
	"fmt"
	"sync"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds in account")
	ErrBalanceOverflow   = errors.New("account balance overflow")
)

// Custody moves value between accounts and reports balances. The engine
// never holds balances itself; it only instructs custody and keeps its
// own reservation accounting on top.
type Custody interface {
	Transfer(from, to string, amount uint64) error
	Balance(account string) (uint64, error)
}

// Bank is an in-memory custody backend for single-process deployments
// and tests.
type Bank struct {
	mu       sync.Mutex
	balances map[string]uint64
}

// NewBank creates a Bank with the given opening balances.
func NewBank(opening map[string]uint64) *Bank {
	balances := make(map[string]uint64, len(opening))
	for account, amount := range opening {
		balances[account] = amount
	}
	return &Bank{balances: balances}
}

// Transfer moves amount from one account to another, atomically.
func (b *Bank) Transfer(from, to string, amount uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	src := b.balances[from]
	if src < amount {
		return fmt.Errorf("transfer %d from %s (balance %d): %w", amount, from, src, ErrInsufficientFunds)
	}
	dst := b.balances[to]
	if dst+amount < dst {
		return fmt.Errorf("transfer %d to %s (balance %d): %w", amount, to, dst, ErrBalanceOverflow)
	}
	b.balances[from] = src - amount
	b.balances[to] = dst + amount
	return nil
}

// Balance returns the current balance of an account. Unknown accounts
// have a zero balance.
func (b *Bank) Balance(account string) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[account], nil
}

// Deposit credits an account directly, for funding tests and setups.
func (b *Bank) Deposit(account string, amount uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cur := b.balances[account]
	if cur+amount < cur {
		return fmt.Errorf("deposit %d to %s (balance %d): %w", amount, account, cur, ErrBalanceOverflow)
	}
	b.balances[account] = cur + amount
	return nil
}
