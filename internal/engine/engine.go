package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"DiveHouse/internal/custody"
	"DiveHouse/internal/ledger"
	"DiveHouse/internal/model"
	"DiveHouse/internal/notifier"
	"DiveHouse/internal/payout"
	"DiveHouse/internal/roll"
	"DiveHouse/internal/session"
	"DiveHouse/internal/store"
)

var (
	ErrInvalidBet         = errors.New("bet amount outside allowed range")
	ErrInsufficientProfit = errors.New("treasure does not exceed the bet")
	ErrMaxRoundsReached   = errors.New("session already at the final dive")
	ErrNotYetExpired      = errors.New("session has not passed the idle window")
)

// Clock supplies the monotonic tick used for session expiry.
type Clock interface {
	Tick() uint64
}

// SystemClock ticks once per wall-clock second.
type SystemClock struct{}

func (SystemClock) Tick() uint64 { return uint64(time.Now().Unix()) }

// Options wires an Engine to its deployment.
type Options struct {
	// HouseAccount is the custody account holding the bankroll.
	HouseAccount string
	// TimeoutTicks is the idle window after which anyone may reclaim
	// an abandoned session.
	TimeoutTicks uint64
}

// Engine drives the session lifecycle. Every operation validates fully
// before mutating anything, and a single mutex serializes operations so
// solvency checks cannot race reservations.
type Engine struct {
	mu       sync.Mutex
	params   model.GameParams
	ledger   *ledger.Manager
	bank     custody.Custody
	store    store.Store
	entropy  roll.EntropySource
	notifier notifier.Notifier
	clock    Clock
	opts     Options

	events    chan *model.Event
	delivered chan struct{}
	closeOnce sync.Once
}

func New(params model.GameParams, lm *ledger.Manager, bank custody.Custody,
	st store.Store, entropy roll.EntropySource, n notifier.Notifier,
	clock Clock, opts Options) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if n == nil {
		n = notifier.NoopNotifier{}
	}
	e := &Engine{
		params:    params,
		ledger:    lm,
		bank:      bank,
		store:     st,
		entropy:   entropy,
		notifier:  n,
		clock:     clock,
		opts:      opts,
		events:    make(chan *model.Event, 128),
		delivered: make(chan struct{}),
	}
	go e.deliver()
	return e, nil
}

// deliver hands events to the notifier one at a time, preserving the
// order transitions committed in.
func (e *Engine) deliver() {
	defer close(e.delivered)
	for evt := range e.events {
		e.notifier.Notify(context.Background(), evt)
	}
}

// Close stops accepting new events and blocks until every queued event
// has been handed to the notifier.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		close(e.events)
		<-e.delivered
	})
}

// Params returns a copy of the active game parameters.
func (e *Engine) Params() model.GameParams {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.params
}

// Session loads a session by id.
func (e *Engine) Session(id string) (*model.Session, error) {
	return e.store.GetSession(id)
}

// HouseStatus reports the bankroll, reservations and lock state.
func (e *Engine) HouseStatus() (balance uint64, state model.LedgerState, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	balance, err = e.bank.Balance(e.opts.HouseAccount)
	if err != nil {
		return 0, model.LedgerState{}, err
	}
	return balance, e.ledger.State(), nil
}

// Open stakes a bet and starts a session at the first dive.
func (e *Engine) Open(ctx context.Context, player string, bet uint64) (*model.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.ledger.Locked() {
		return nil, fmt.Errorf("open for %s: %w", player, ledger.ErrLocked)
	}
	if err := e.validateBet(bet); err != nil {
		return nil, err
	}

	maxPayout := payout.MaxPayoutForBet(e.params, bet)

	balance, err := e.bank.Balance(e.opts.HouseAccount)
	if err != nil {
		return nil, fmt.Errorf("house balance: %w", err)
	}
	// The bet joins the bankroll on open, so it counts toward coverage.
	available := balance + bet
	if available < balance {
		return nil, fmt.Errorf("open with bet %d: %w", bet, ledger.ErrArithmeticOverflow)
	}
	if err := e.ledger.CheckOpenSolvency(available, maxPayout); err != nil {
		return nil, err
	}

	if err := e.bank.Transfer(player, e.opts.HouseAccount, bet); err != nil {
		return nil, fmt.Errorf("collect bet: %w", err)
	}
	if err := e.ledger.Reserve(maxPayout); err != nil {
		if rbErr := e.bank.Transfer(e.opts.HouseAccount, player, bet); rbErr != nil {
			log.Printf("[ERROR] refund after failed reserve for %s: %v", player, rbErr)
		}
		return nil, err
	}

	sess := session.New(player, bet, maxPayout, e.clock.Tick())
	if err := e.persist(sess); err != nil {
		if rlErr := e.ledger.Release(maxPayout); rlErr != nil {
			log.Printf("[ERROR] release after failed persist of %s: %v", sess.ID, rlErr)
		}
		if rbErr := e.bank.Transfer(e.opts.HouseAccount, player, bet); rbErr != nil {
			log.Printf("[ERROR] refund after failed persist of %s: %v", sess.ID, rbErr)
		}
		return nil, err
	}

	log.Printf("[INFO] session %s opened: player=%s bet=%d max_payout=%d", sess.ID, player, bet, maxPayout)
	e.emit(ctx, &model.Event{
		Type:      model.EventSessionOpened,
		SessionID: sess.ID,
		Actor:     player,
		Amount:    bet,
		DiveIndex: sess.DiveIndex,
		Status:    sess.Status,
	})
	return sess, nil
}

// Advance plays the session's current dive. On survival the treasure
// grows and the session moves to the next dive; on a loss the session
// terminates and its reservation returns to the house.
func (e *Engine) Advance(ctx context.Context, id string) (*model.Session, roll.Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, err := e.store.GetSession(id)
	if err != nil {
		return nil, roll.Lose, err
	}
	if sess.Status != model.StatusActive {
		return nil, roll.Lose, fmt.Errorf("session %s is %s: %w", id, sess.Status, session.ErrInvalidStatus)
	}
	if sess.DiveIndex >= e.params.MaxDives {
		return nil, roll.Lose, fmt.Errorf("session %s at dive %d of %d: %w",
			id, sess.DiveIndex, e.params.MaxDives, ErrMaxRoundsReached)
	}

	entropy, err := e.entropy.Draw(sess.ID, sess.DiveIndex)
	if err != nil {
		return nil, roll.Lose, fmt.Errorf("draw entropy: %w", err)
	}
	outcome := roll.Resolve(entropy, sess.DiveIndex, e.params)

	if outcome == roll.Survive {
		newTreasure := payout.TreasureForDive(e.params, sess.BetAmount, sess.DiveIndex)
		if err := session.ApplyRound(sess, newTreasure, sess.DiveIndex+1, e.clock.Tick()); err != nil {
			return nil, outcome, err
		}
		if err := e.store.SaveSession(sess); err != nil {
			return nil, outcome, err
		}
		log.Printf("[INFO] session %s survived dive %d: treasure=%d", id, sess.DiveIndex-1, sess.CurrentTreasure)
		e.emit(ctx, &model.Event{
			Type:      model.EventRoundPlayed,
			SessionID: sess.ID,
			Actor:     sess.Player,
			Amount:    sess.CurrentTreasure,
			DiveIndex: sess.DiveIndex,
			Status:    sess.Status,
		})
		return sess, outcome, nil
	}

	if err := e.ledger.Release(sess.MaxPayout); err != nil {
		return nil, outcome, err
	}
	if err := session.MarkLost(sess); err != nil {
		return nil, outcome, err
	}
	if err := e.persist(sess); err != nil {
		// The stored session is still Active, so its reservation
		// must stand until the terminal write lands.
		if rsErr := e.ledger.Reserve(sess.MaxPayout); rsErr != nil {
			log.Printf("[ERROR] re-reserve after failed persist of lost %s: %v", sess.ID, rsErr)
		}
		return nil, outcome, err
	}
	log.Printf("[INFO] session %s lost at dive %d: forfeited=%d", id, sess.DiveIndex, sess.CurrentTreasure)
	e.emit(ctx, &model.Event{
		Type:      model.EventSessionLost,
		SessionID: sess.ID,
		Actor:     sess.Player,
		Amount:    sess.MaxPayout,
		DiveIndex: sess.DiveIndex,
		Status:    sess.Status,
	})
	return sess, outcome, nil
}

// CashOut pays the current treasure to the player and terminates the
// session. Only strictly profitable sessions may cash out.
func (e *Engine) CashOut(ctx context.Context, id string) (*model.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, err := e.store.GetSession(id)
	if err != nil {
		return nil, err
	}
	if sess.Status != model.StatusActive {
		return nil, fmt.Errorf("session %s is %s: %w", id, sess.Status, session.ErrInvalidStatus)
	}
	if e.ledger.Locked() {
		return nil, fmt.Errorf("cash out %s: %w", id, ledger.ErrLocked)
	}
	if sess.CurrentTreasure <= sess.BetAmount {
		return nil, fmt.Errorf("session %s treasure %d vs bet %d: %w",
			id, sess.CurrentTreasure, sess.BetAmount, ErrInsufficientProfit)
	}

	balance, err := e.bank.Balance(e.opts.HouseAccount)
	if err != nil {
		return nil, fmt.Errorf("house balance: %w", err)
	}
	if err := e.ledger.CheckPayoutSolvency(balance, sess.CurrentTreasure); err != nil {
		return nil, err
	}

	if err := e.ledger.Release(sess.MaxPayout); err != nil {
		return nil, err
	}
	if err := e.bank.Transfer(e.opts.HouseAccount, sess.Player, sess.CurrentTreasure); err != nil {
		if rsErr := e.ledger.Reserve(sess.MaxPayout); rsErr != nil {
			log.Printf("[ERROR] re-reserve after failed payout of %s: %v", id, rsErr)
		}
		return nil, fmt.Errorf("pay out: %w", err)
	}
	if err := session.MarkCashedOut(sess); err != nil {
		return nil, err
	}
	if err := e.persist(sess); err != nil {
		// Unwind both sides: the stored session is still Active, so
		// the payout comes back and the reservation must stand.
		if rbErr := e.bank.Transfer(sess.Player, e.opts.HouseAccount, sess.CurrentTreasure); rbErr != nil {
			log.Printf("[ERROR] claw back payout after failed persist of %s: %v", sess.ID, rbErr)
		}
		if rsErr := e.ledger.Reserve(sess.MaxPayout); rsErr != nil {
			log.Printf("[ERROR] re-reserve after failed persist of %s: %v", sess.ID, rsErr)
		}
		return nil, err
	}

	log.Printf("[INFO] session %s cashed out at dive %d: payout=%d", id, sess.DiveIndex, sess.CurrentTreasure)
	e.emit(ctx, &model.Event{
		Type:      model.EventSessionCashedOut,
		SessionID: sess.ID,
		Actor:     sess.Player,
		Amount:    sess.CurrentTreasure,
		DiveIndex: sess.DiveIndex,
		Status:    sess.Status,
	})
	return sess, nil
}

// ReclaimExpired terminates an abandoned session without payout and
// returns its reservation to the house. Anyone may call it once the
// idle window has passed; the house lock does not block it.
func (e *Engine) ReclaimExpired(ctx context.Context, id string) (*model.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess, err := e.store.GetSession(id)
	if err != nil {
		return nil, err
	}
	if sess.Status != model.StatusActive {
		return nil, fmt.Errorf("session %s is %s: %w", id, sess.Status, session.ErrInvalidStatus)
	}
	if !session.Expired(sess, e.clock.Tick(), e.opts.TimeoutTicks) {
		return nil, fmt.Errorf("session %s last active at tick %d: %w", id, sess.LastActiveTick, ErrNotYetExpired)
	}

	if err := e.ledger.Release(sess.MaxPayout); err != nil {
		return nil, err
	}
	if err := session.MarkLost(sess); err != nil {
		return nil, err
	}
	if err := e.persist(sess); err != nil {
		if rsErr := e.ledger.Reserve(sess.MaxPayout); rsErr != nil {
			log.Printf("[ERROR] re-reserve after failed persist of reclaimed %s: %v", sess.ID, rsErr)
		}
		return nil, err
	}

	log.Printf("[INFO] session %s reclaimed after idle window: released=%d", id, sess.MaxPayout)
	e.emit(ctx, &model.Event{
		Type:      model.EventSessionReclaimed,
		SessionID: sess.ID,
		Actor:     sess.Player,
		Amount:    sess.MaxPayout,
		DiveIndex: sess.DiveIndex,
		Status:    sess.Status,
	})
	return sess, nil
}

// UpdateParams applies a partial parameter change, revalidating the
// whole set. Active sessions keep the parameters they were opened with
// only insofar as their MaxPayout is already fixed; probabilities and
// treasure growth follow the new values.
func (e *Engine) UpdateParams(ctx context.Context, update model.ParamsUpdate) (model.GameParams, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	next, err := update.Apply(e.params)
	if err != nil {
		return e.params, err
	}
	e.params = next

	log.Printf("[INFO] game parameters updated: %+v", next)
	e.emit(ctx, &model.Event{Type: model.EventParamsUpdated, Actor: "admin"})
	return next, nil
}

// Withdraw moves house profit out of custody, never touching reserved
// funds or the operating reserve.
func (e *Engine) Withdraw(ctx context.Context, to string, amount uint64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	balance, err := e.bank.Balance(e.opts.HouseAccount)
	if err != nil {
		return fmt.Errorf("house balance: %w", err)
	}
	allowance := e.ledger.WithdrawAllowance(balance)
	if amount > allowance {
		return fmt.Errorf("withdraw %d with allowance %d: %w", amount, allowance, ledger.ErrInsufficientBalance)
	}
	if err := e.bank.Transfer(e.opts.HouseAccount, to, amount); err != nil {
		return fmt.Errorf("withdraw: %w", err)
	}

	log.Printf("[INFO] house withdrawal: amount=%d to=%s", amount, to)
	e.emit(ctx, &model.Event{Type: model.EventHouseWithdrawal, Actor: to, Amount: amount})
	return nil
}

// ToggleLock flips the house lock and returns the new state.
func (e *Engine) ToggleLock(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	locked := e.ledger.SetLocked(!e.ledger.Locked())
	if err := e.store.SaveLedger(e.ledger.State()); err != nil {
		return locked, err
	}

	log.Printf("[INFO] house lock toggled: locked=%v", locked)
	e.emit(ctx, &model.Event{Type: model.EventLockToggled, Locked: locked})
	return locked, nil
}

// ResetReserved is an operational recovery tool; it refuses while any
// session still holds a reservation.
func (e *Engine) ResetReserved(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.ledger.ResetReserved(); err != nil {
		return err
	}
	return e.store.SaveLedger(e.ledger.State())
}

func (e *Engine) validateBet(bet uint64) error {
	if bet == 0 || bet < e.params.MinBet {
		return fmt.Errorf("bet %d below minimum %d: %w", bet, e.params.MinBet, ErrInvalidBet)
	}
	if e.params.MaxBet > 0 && bet > e.params.MaxBet {
		return fmt.Errorf("bet %d above maximum %d: %w", bet, e.params.MaxBet, ErrInvalidBet)
	}
	return nil
}

// persist writes the session together with the ledger state. A failed
// session write aborts the operation so callers can compensate; a
// failed ledger write is logged only, since the in-memory ledger stays
// authoritative and the stored snapshot refreshes on the next write.
func (e *Engine) persist(sess *model.Session) error {
	if err := e.store.SaveSession(sess); err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	if err := e.store.SaveLedger(e.ledger.State()); err != nil {
		log.Printf("[ERROR] save ledger state after session %s: %v", sess.ID, err)
	}
	return nil
}

// emit records the event in the audit trail and queues it for the
// delivery worker. Neither failure can affect the committed transition;
// the audit row is durable, webhook delivery is best-effort.
func (e *Engine) emit(_ context.Context, evt *model.Event) {
	evt.At = time.Now()
	if err := e.store.AppendEvent(evt); err != nil {
		log.Printf("[ERROR] append event %s: %v", evt.Type, err)
	}
	select {
	case e.events <- evt:
	default:
		log.Printf("[WARN] event queue full, dropping %s for %s", evt.Type, evt.SessionID)
	}
}
