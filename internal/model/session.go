package model

import "time"

// SessionStatus is the lifecycle state of a game session.
type SessionStatus string

const (
	StatusActive    SessionStatus = "ACTIVE"
	StatusLost      SessionStatus = "LOST"
	StatusCashedOut SessionStatus = "CASHED_OUT"
)

// Terminal reports whether no further transition is permitted.
func (s SessionStatus) Terminal() bool {
	return s == StatusLost || s == StatusCashedOut
}

// Session is the per-player escrow record. While Active it always satisfies
// BetAmount <= CurrentTreasure <= MaxPayout and DiveIndex <= params.MaxDives.
type Session struct {
	ID              string        `json:"id"`
	Player          string        `json:"player"`
	Status          SessionStatus `json:"status"`
	BetAmount       uint64        `json:"bet_amount"`
	CurrentTreasure uint64        `json:"current_treasure"`
	MaxPayout       uint64        `json:"max_payout"`
	DiveIndex       uint16        `json:"dive_index"`
	LastActiveTick  uint64        `json:"last_active_tick"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}
