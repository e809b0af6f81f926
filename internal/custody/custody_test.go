package custody

import (
	"errors"
	"math"
	"testing"
)

func TestTransfer_MovesFunds(t *testing.T) {
	b := NewBank(map[string]uint64{"alice": 1000})

	if err := b.Transfer("alice", "house", 400); err != nil {
		t.Fatal(err)
	}
	if got, _ := b.Balance("alice"); got != 600 {
		t.Fatalf("alice = %d, want 600", got)
	}
	if got, _ := b.Balance("house"); got != 400 {
		t.Fatalf("house = %d, want 400", got)
	}
}

func TestTransfer_InsufficientFunds(t *testing.T) {
	b := NewBank(map[string]uint64{"alice": 100})

	err := b.Transfer("alice", "house", 101)
	if !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	// Unknown accounts are simply empty.
	if err := b.Transfer("nobody", "house", 1); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}
	if got, _ := b.Balance("alice"); got != 100 {
		t.Fatalf("alice mutated on failed transfer: %d", got)
	}
}

func TestTransfer_DestinationOverflow(t *testing.T) {
	b := NewBank(map[string]uint64{"alice": 10, "house": math.MaxUint64})

	err := b.Transfer("alice", "house", 1)
	if !errors.Is(err, ErrBalanceOverflow) {
		t.Fatalf("err = %v, want ErrBalanceOverflow", err)
	}
	if got, _ := b.Balance("alice"); got != 10 {
		t.Fatalf("source debited on failed transfer: %d", got)
	}
}

func TestDeposit(t *testing.T) {
	b := NewBank(nil)
	if err := b.Deposit("house", 500); err != nil {
		t.Fatal(err)
	}
	if got, _ := b.Balance("house"); got != 500 {
		t.Fatalf("house = %d, want 500", got)
	}
	if err := b.Deposit("house", math.MaxUint64); !errors.Is(err, ErrBalanceOverflow) {
		t.Fatalf("err = %v, want ErrBalanceOverflow", err)
	}
}
