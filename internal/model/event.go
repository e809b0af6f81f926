package model

import "time"

// EventType indicates which transition produced an event.
type EventType string

const (
	EventSessionOpened    EventType = "SESSION_OPENED"
	EventRoundPlayed      EventType = "ROUND_PLAYED"
	EventSessionLost      EventType = "SESSION_LOST"
	EventSessionCashedOut EventType = "SESSION_CASHED_OUT"
	EventSessionReclaimed EventType = "SESSION_RECLAIMED"
	EventLockToggled      EventType = "LOCK_TOGGLED"
	EventHouseWithdrawal  EventType = "HOUSE_WITHDRAWAL"
	EventParamsUpdated    EventType = "PARAMS_UPDATED"
)

// Event is emitted after every successful transition and consumed by
// off-process observers. Amount carries the figure most relevant to the
// transition: bet on open, treasure on round/cash-out, released reservation
// on loss/reclaim, withdrawn amount on withdrawal.
type Event struct {
	Type      EventType     `json:"type"`
	SessionID string        `json:"session_id,omitempty"`
	Actor     string        `json:"actor,omitempty"`
	Amount    uint64        `json:"amount,omitempty"`
	DiveIndex uint16        `json:"dive_index,omitempty"`
	Status    SessionStatus `json:"status,omitempty"`
	Locked    bool          `json:"locked,omitempty"`
	At        time.Time     `json:"at"`
}
