package ledger

import (
	"errors"
	"math"
	"testing"

	"DiveHouse/internal/model"
)

func newTestManager(opts Options) *Manager {
	return NewManager(model.LedgerState{}, opts)
}

func TestReserveRelease_RoundTrip(t *testing.T) {
	m := newTestManager(Options{})

	if err := m.Reserve(500); err != nil {
		t.Fatal(err)
	}
	if err := m.Reserve(250); err != nil {
		t.Fatal(err)
	}
	if got := m.State().TotalReserved; got != 750 {
		t.Fatalf("reserved = %d, want 750", got)
	}

	if err := m.Release(500); err != nil {
		t.Fatal(err)
	}
	if err := m.Release(250); err != nil {
		t.Fatal(err)
	}
	if got := m.State().TotalReserved; got != 0 {
		t.Fatalf("reserved = %d, want 0 after full release", got)
	}
}

func TestReserve_OverflowRejected(t *testing.T) {
	m := newTestManager(Options{})
	if err := m.Reserve(math.MaxUint64 - 10); err != nil {
		t.Fatal(err)
	}
	err := m.Reserve(11)
	if !errors.Is(err, ErrArithmeticOverflow) {
		t.Fatalf("err = %v, want ErrArithmeticOverflow", err)
	}
	if got := m.State().TotalReserved; got != math.MaxUint64-10 {
		t.Fatalf("reserved mutated on failed reserve: %d", got)
	}
}

func TestReserve_ExposureCap(t *testing.T) {
	m := newTestManager(Options{MaxExposure: 1000})
	if err := m.Reserve(900); err != nil {
		t.Fatal(err)
	}
	err := m.Reserve(101)
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("err = %v, want ErrCapacityExceeded", err)
	}
	if err := m.Reserve(100); err != nil {
		t.Fatalf("reserve exactly at cap: %v", err)
	}
}

func TestRelease_StrictOnOverRelease(t *testing.T) {
	m := newTestManager(Options{})
	if err := m.Reserve(100); err != nil {
		t.Fatal(err)
	}
	err := m.Release(101)
	if !errors.Is(err, ErrInsufficientReservation) {
		t.Fatalf("err = %v, want ErrInsufficientReservation", err)
	}
	if got := m.State().TotalReserved; got != 100 {
		t.Fatalf("reserved mutated on rejected release: %d", got)
	}
}

func TestRelease_DoubleReleaseSurfaces(t *testing.T) {
	m := newTestManager(Options{})
	if err := m.Reserve(100); err != nil {
		t.Fatal(err)
	}
	if err := m.Release(100); err != nil {
		t.Fatal(err)
	}
	if err := m.Release(100); !errors.Is(err, ErrInsufficientReservation) {
		t.Fatalf("second release: err = %v, want ErrInsufficientReservation", err)
	}
}

func TestCheckOpenSolvency_FullCoverage(t *testing.T) {
	m := newTestManager(Options{OpenLiquidityPPM: 1_000_000})
	if err := m.Reserve(40); err != nil {
		t.Fatal(err)
	}

	// free = 100 - 40 = 60
	if err := m.CheckOpenSolvency(100, 60); err != nil {
		t.Fatalf("exactly covered: %v", err)
	}
	if err := m.CheckOpenSolvency(100, 61); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	// Reserved beyond available: no free liquidity at all.
	if err := m.CheckOpenSolvency(30, 1); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
}

func TestCheckOpenSolvency_PartialCoverage(t *testing.T) {
	// At 20% coverage a 100x payout only needs 20x free.
	m := newTestManager(Options{OpenLiquidityPPM: 200_000})
	if err := m.CheckOpenSolvency(20_000_000, 100_000_000); err != nil {
		t.Fatalf("20%% of payout exactly free: %v", err)
	}
	if err := m.CheckOpenSolvency(19_999_999, 100_000_000); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
}

func TestCheckPayoutSolvency(t *testing.T) {
	m := newTestManager(Options{})
	if err := m.CheckPayoutSolvency(100, 100); err != nil {
		t.Fatal(err)
	}
	if err := m.CheckPayoutSolvency(99, 100); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
}

func TestWithdrawAllowance(t *testing.T) {
	cases := []struct {
		name      string
		reserved  uint64
		minOp     uint64
		available uint64
		want      uint64
	}{
		{"all free", 0, 0, 1000, 1000},
		{"reserved held back", 300, 0, 1000, 700},
		{"operating reserve held back", 0, 200, 1000, 800},
		{"both held back", 300, 200, 1000, 500},
		{"nothing left", 900, 200, 1000, 0},
		{"reserved exceeds available", 2000, 0, 1000, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewManager(model.LedgerState{TotalReserved: tc.reserved}, Options{MinOperatingReserve: tc.minOp})
			if got := m.WithdrawAllowance(tc.available); got != tc.want {
				t.Fatalf("allowance = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestResetReserved(t *testing.T) {
	m := newTestManager(Options{})
	if err := m.Reserve(1); err != nil {
		t.Fatal(err)
	}
	if err := m.ResetReserved(); !errors.Is(err, ErrOutstandingReservations) {
		t.Fatalf("err = %v, want ErrOutstandingReservations", err)
	}
	if err := m.Release(1); err != nil {
		t.Fatal(err)
	}
	if err := m.ResetReserved(); err != nil {
		t.Fatalf("reset with zero reserved: %v", err)
	}
}

func TestSetLocked(t *testing.T) {
	m := newTestManager(Options{})
	if m.Locked() {
		t.Fatal("fresh ledger must be unlocked")
	}
	if !m.SetLocked(true) || !m.Locked() {
		t.Fatal("lock did not stick")
	}
	if m.SetLocked(false) || m.Locked() {
		t.Fatal("unlock did not stick")
	}
}

func TestScalePPM_RoundsUp(t *testing.T) {
	if got := scalePPM(1, 1); got != 1 {
		t.Fatalf("scalePPM(1, 1ppm) = %d, want 1 (round up)", got)
	}
	if got := scalePPM(1_000_000, 500_000); got != 500_000 {
		t.Fatalf("scalePPM = %d, want 500000", got)
	}
	if got := scalePPM(math.MaxUint64, 999_999); got == 0 {
		t.Fatal("scalePPM overflowed on large input")
	}
}
