package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"DiveHouse/internal/model"
)

var (
	ErrInvalidStatus      = errors.New("invalid session status for operation")
	ErrRoundSequence      = errors.New("round sequence mismatch")
	ErrTreasureOutOfRange = errors.New("treasure outside allowed range")
)

// New creates an Active session at the first dive. The opening treasure
// equals the bet; growth only starts once a round is survived.
func New(player string, bet, maxPayout uint64, tick uint64) *model.Session {
	now := time.Now()
	return &model.Session{
		ID:              uuid.NewString(),
		Player:          player,
		Status:          model.StatusActive,
		BetAmount:       bet,
		CurrentTreasure: bet,
		MaxPayout:       maxPayout,
		DiveIndex:       1,
		LastActiveTick:  tick,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// ApplyRound records a survived round. The new dive must be exactly the
// next one, and the treasure may only stay or grow up to the payout cap.
func ApplyRound(s *model.Session, newTreasure uint64, newDive uint16, tick uint64) error {
	if s.Status != model.StatusActive {
		return fmt.Errorf("session %s is %s: %w", s.ID, s.Status, ErrInvalidStatus)
	}
	if newDive != s.DiveIndex+1 {
		return fmt.Errorf("session %s at dive %d got round for dive %d: %w",
			s.ID, s.DiveIndex, newDive, ErrRoundSequence)
	}
	if newTreasure < s.CurrentTreasure || newTreasure > s.MaxPayout {
		return fmt.Errorf("session %s treasure %d -> %d (cap %d): %w",
			s.ID, s.CurrentTreasure, newTreasure, s.MaxPayout, ErrTreasureOutOfRange)
	}
	s.CurrentTreasure = newTreasure
	s.DiveIndex = newDive
	s.LastActiveTick = tick
	s.UpdatedAt = time.Now()
	return nil
}

// MarkLost terminates an Active session on a failed round.
func MarkLost(s *model.Session) error {
	return terminate(s, model.StatusLost)
}

// MarkCashedOut terminates an Active session on a voluntary exit.
func MarkCashedOut(s *model.Session) error {
	return terminate(s, model.StatusCashedOut)
}

func terminate(s *model.Session, status model.SessionStatus) error {
	if s.Status != model.StatusActive {
		return fmt.Errorf("session %s is %s, cannot move to %s: %w", s.ID, s.Status, status, ErrInvalidStatus)
	}
	s.Status = status
	s.UpdatedAt = time.Now()
	return nil
}

// Expired reports whether the session has been idle past the window.
func Expired(s *model.Session, nowTick, window uint64) bool {
	if s.Status != model.StatusActive {
		return false
	}
	return nowTick > s.LastActiveTick && nowTick-s.LastActiveTick > window
}
