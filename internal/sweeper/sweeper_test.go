package sweeper

import (
	"context"
	"testing"

	"DiveHouse/internal/custody"
	"DiveHouse/internal/engine"
	"DiveHouse/internal/ledger"
	"DiveHouse/internal/model"
	"DiveHouse/internal/roll"
	"DiveHouse/internal/store"
)

type fakeClock struct{ tick uint64 }

func (c *fakeClock) Tick() uint64 { return c.tick }

func TestSweep_ReclaimsOnlyExpired(t *testing.T) {
	bank := custody.NewBank(map[string]uint64{
		"house":    1_000_000_000,
		"player-1": 10_000_000,
	})
	st := store.NewMemoryStore()
	clock := &fakeClock{tick: 1000}
	const timeout = 9000

	eng, err := engine.New(model.DefaultParams(),
		ledger.NewManager(model.LedgerState{}, ledger.Options{}),
		bank, st, roll.NewSeededSource([32]byte{1}), nil, clock,
		engine.Options{HouseAccount: "house", TimeoutTicks: timeout})
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	stale, err := eng.Open(ctx, "player-1", 1_000_000)
	if err != nil {
		t.Fatal(err)
	}

	clock.tick += timeout / 2
	fresh, err := eng.Open(ctx, "player-1", 1_000_000)
	if err != nil {
		t.Fatal(err)
	}

	clock.tick += timeout/2 + 1

	s := New(ctx, eng, st, clock, timeout)
	s.Sweep()

	got, err := st.GetSession(stale.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.StatusLost {
		t.Fatalf("stale session = %s, want LOST", got.Status)
	}
	got, err = st.GetSession(fresh.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != model.StatusActive {
		t.Fatalf("fresh session = %s, want still ACTIVE", got.Status)
	}

	state, _ := st.LoadLedger()
	if state.TotalReserved != fresh.MaxPayout {
		t.Fatalf("reserved = %d, want only the fresh session's %d", state.TotalReserved, fresh.MaxPayout)
	}

	// A second sweep finds nothing to do.
	s.Sweep()
	if got, _ := st.GetSession(fresh.ID); got.Status != model.StatusActive {
		t.Fatalf("fresh session reclaimed by idempotent sweep: %s", got.Status)
	}
}

func TestRegister_BadSpec(t *testing.T) {
	s := New(context.Background(), nil, store.NewMemoryStore(), &fakeClock{}, 9000)
	if err := s.Register("not a cron spec"); err == nil {
		t.Fatal("expected error for invalid cron spec")
	}
	if err := s.Register("*/30 * * * * *"); err != nil {
		t.Fatalf("valid spec rejected: %v", err)
	}
}
