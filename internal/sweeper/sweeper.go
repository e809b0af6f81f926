package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"DiveHouse/internal/engine"
	"DiveHouse/internal/session"
	"DiveHouse/internal/store"
)

// Sweeper periodically reclaims abandoned sessions so their
// reservations return to the house without anyone having to call the
// reclaim endpoint by hand.
type Sweeper struct {
	Cron    *cron.Cron
	Engine  *engine.Engine
	Store   store.Store
	Clock   engine.Clock
	Timeout uint64
	Ctx     context.Context
}

func New(ctx context.Context, eng *engine.Engine, st store.Store, clock engine.Clock, timeoutTicks uint64) *Sweeper {
	return &Sweeper{
		Cron:    cron.New(cron.WithSeconds()),
		Engine:  eng,
		Store:   st,
		Clock:   clock,
		Timeout: timeoutTicks,
		Ctx:     ctx,
	}
}

// Register schedules the sweep on the given cron spec.
func (s *Sweeper) Register(spec string) error {
	if _, err := s.Cron.AddFunc(spec, s.Sweep); err != nil {
		return fmt.Errorf("register sweep task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Sweeper) Start() {
	s.Cron.Start()
	log.Println("[INFO] sweeper started")
}

// Stop stops the cron scheduler gracefully.
func (s *Sweeper) Stop() {
	s.Cron.Stop()
	log.Println("[INFO] sweeper stopped")
}

// Sweep scans active sessions and reclaims every expired one. A session
// that resolves between the scan and the reclaim is skipped quietly.
func (s *Sweeper) Sweep() {
	active, err := s.Store.ActiveSessions()
	if err != nil {
		log.Printf("[ERROR] sweep: list active sessions: %v", err)
		return
	}

	now := s.Clock.Tick()
	reclaimed := 0
	for _, sess := range active {
		if !session.Expired(sess, now, s.Timeout) {
			// Ordered by last activity, so the rest are fresher.
			break
		}
		if _, err := s.Engine.ReclaimExpired(s.Ctx, sess.ID); err != nil {
			if errors.Is(err, session.ErrInvalidStatus) || errors.Is(err, engine.ErrNotYetExpired) {
				continue
			}
			log.Printf("[ERROR] sweep: reclaim %s: %v", sess.ID, err)
			continue
		}
		reclaimed++
	}
	if reclaimed > 0 {
		log.Printf("[INFO] sweep reclaimed %d expired sessions", reclaimed)
	}
}
