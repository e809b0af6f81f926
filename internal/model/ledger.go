package model

import "time"

// LedgerState tracks the house's aggregate liability against its custody
// balance. AvailableBalance is owned by the custody collaborator and is only
// ever read here; TotalReserved is owned and mutated exclusively by the
// ledger core. Conservation law: TotalReserved equals the sum of MaxPayout
// over all currently Active sessions drawing from this ledger.
type LedgerState struct {
	TotalReserved uint64    `json:"total_reserved"`
	Locked        bool      `json:"locked"`
	UpdatedAt     time.Time `json:"updated_at"`
}
