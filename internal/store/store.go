package store

import (
	"errors"

	"DiveHouse/internal/model"
)

var ErrSessionNotFound = errors.New("session not found")

// Store persists sessions, the ledger state and the audit trail.
type Store interface {
	SaveSession(s *model.Session) error
	GetSession(id string) (*model.Session, error)
	// ActiveSessions returns every session still in play, oldest
	// activity first. The sweeper scans these for expiry.
	ActiveSessions() ([]*model.Session, error)
	SaveLedger(state model.LedgerState) error
	LoadLedger() (model.LedgerState, error)
	AppendEvent(evt *model.Event) error
	Close() error
}
