package ledger

import (
	"errors"
	"fmt"
	"math/bits"
	"sync"
	"time"

	"DiveHouse/internal/model"
)

var (
	ErrLocked                  = errors.New("house ledger is locked")
	ErrArithmeticOverflow      = errors.New("ledger arithmetic overflow")
	ErrCapacityExceeded        = errors.New("ledger exposure capacity exceeded")
	ErrInsufficientReservation = errors.New("release exceeds total reserved")
	ErrInsufficientBalance     = errors.New("insufficient house balance")
	ErrOutstandingReservations = errors.New("ledger has outstanding reservations")
)

// Options bounds the ledger's risk appetite.
type Options struct {
	// OpenLiquidityPPM is the fraction (parts per million) of a new
	// session's max payout that must be covered by free liquidity at
	// open time. 1_000_000 means fully covered.
	OpenLiquidityPPM uint32
	// MaxExposure caps TotalReserved. 0 means uncapped.
	MaxExposure uint64
	// MinOperatingReserve is never withdrawable by the house.
	MinOperatingReserve uint64
}

// Manager owns the house reservation accounting with concurrency safety.
// Balances live in custody; the manager only tracks how much of them is
// already promised to active sessions.
type Manager struct {
	mu    sync.Mutex
	state model.LedgerState
	opts  Options
}

// NewManager creates a Manager starting from a previously persisted state.
func NewManager(state model.LedgerState, opts Options) *Manager {
	if opts.OpenLiquidityPPM == 0 || opts.OpenLiquidityPPM > 1_000_000 {
		opts.OpenLiquidityPPM = 1_000_000
	}
	return &Manager{state: state, opts: opts}
}

// State returns a copy of the current ledger state.
func (m *Manager) State() model.LedgerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Locked reports whether new sessions and cash-outs are blocked.
func (m *Manager) Locked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Locked
}

// SetLocked toggles the house lock and returns the new value.
func (m *Manager) SetLocked(locked bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Locked = locked
	m.state.UpdatedAt = time.Now()
	return m.state.Locked
}

// Reserve promises amount of the house balance to a session.
func (m *Manager) Reserve(amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := m.state.TotalReserved + amount
	if next < m.state.TotalReserved {
		return fmt.Errorf("reserve %d on top of %d: %w", amount, m.state.TotalReserved, ErrArithmeticOverflow)
	}
	if m.opts.MaxExposure > 0 && next > m.opts.MaxExposure {
		return fmt.Errorf("reserve %d would push exposure to %d (cap %d): %w",
			amount, next, m.opts.MaxExposure, ErrCapacityExceeded)
	}
	m.state.TotalReserved = next
	m.state.UpdatedAt = time.Now()
	return nil
}

// Release returns a reservation to the free pool. Releasing more than is
// currently reserved is an accounting violation and is rejected outright
// rather than clamped, so that a double release surfaces instead of
// silently corrupting the books.
func (m *Manager) Release(amount uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if amount > m.state.TotalReserved {
		return fmt.Errorf("release %d with only %d reserved: %w", amount, m.state.TotalReserved, ErrInsufficientReservation)
	}
	m.state.TotalReserved -= amount
	m.state.UpdatedAt = time.Now()
	return nil
}

// CheckOpenSolvency verifies that free liquidity (available balance minus
// existing reservations) covers the configured fraction of a prospective
// session's max payout.
func (m *Manager) CheckOpenSolvency(available, newMaxPayout uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var free uint64
	if available > m.state.TotalReserved {
		free = available - m.state.TotalReserved
	}
	required := scalePPM(newMaxPayout, m.opts.OpenLiquidityPPM)
	if free < required {
		return fmt.Errorf("free liquidity %d below required %d for max payout %d: %w",
			free, required, newMaxPayout, ErrInsufficientBalance)
	}
	return nil
}

// CheckPayoutSolvency verifies the house can actually pay an amount now.
func (m *Manager) CheckPayoutSolvency(available, payout uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if available < payout {
		return fmt.Errorf("house balance %d cannot cover payout %d: %w", available, payout, ErrInsufficientBalance)
	}
	return nil
}

// WithdrawAllowance returns how much the house may withdraw without
// touching reserved funds or the operating reserve.
func (m *Manager) WithdrawAllowance(available uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	held := m.state.TotalReserved + m.opts.MinOperatingReserve
	if held < m.state.TotalReserved {
		// held overflowed; nothing is withdrawable.
		return 0
	}
	if available <= held {
		return 0
	}
	return available - held
}

// ResetReserved zeroes the reservation counter. It is an operational
// recovery tool and refuses to run while any reservation is outstanding.
func (m *Manager) ResetReserved() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.TotalReserved != 0 {
		return fmt.Errorf("total reserved is %d: %w", m.state.TotalReserved, ErrOutstandingReservations)
	}
	m.state.UpdatedAt = time.Now()
	return nil
}

// scalePPM computes v*ppm/1e6 rounding up, with 128-bit intermediates.
func scalePPM(v uint64, ppm uint32) uint64 {
	if ppm >= 1_000_000 {
		return v
	}
	hi, lo := bits.Mul64(v, uint64(ppm))
	lo, carry := bits.Add64(lo, 999_999, 0)
	hi += carry
	// hi < 2^20 here, so the quotient always fits in 64 bits.
	q, _ := bits.Div64(hi, lo, 1_000_000)
	return q
}
