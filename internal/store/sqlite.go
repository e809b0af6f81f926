package store

import (
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"DiveHouse/internal/model"
)

// SQLiteStore persists engine state to a SQLite database.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL mode so dashboard reads don't block engine writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite store opened: %s", dbPath)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			id               TEXT PRIMARY KEY,
			player           TEXT NOT NULL,
			status           TEXT NOT NULL,
			bet_amount       INTEGER NOT NULL,
			current_treasure INTEGER NOT NULL,
			max_payout       INTEGER NOT NULL,
			dive_index       INTEGER NOT NULL,
			last_active_tick INTEGER NOT NULL,
			created_at       INTEGER NOT NULL,
			updated_at       INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status)`,

		`CREATE TABLE IF NOT EXISTS ledger (
			id             INTEGER PRIMARY KEY CHECK (id = 1),
			total_reserved INTEGER NOT NULL,
			locked         INTEGER NOT NULL,
			updated_at     INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS events (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp  INTEGER NOT NULL,
			type       TEXT NOT NULL,
			session_id TEXT,
			actor      TEXT,
			amount     INTEGER,
			dive_index INTEGER,
			status     TEXT,
			locked     INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_ts ON events(timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_events_session ON events(session_id)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *SQLiteStore) SaveSession(sess *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`INSERT INTO sessions
		(id, player, status, bet_amount, current_treasure, max_payout,
		 dive_index, last_active_tick, created_at, updated_at)
		VALUES (?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			current_treasure = excluded.current_treasure,
			dive_index = excluded.dive_index,
			last_active_tick = excluded.last_active_tick,
			updated_at = excluded.updated_at`,
		sess.ID, sess.Player, string(sess.Status),
		int64(sess.BetAmount), int64(sess.CurrentTreasure), int64(sess.MaxPayout),
		sess.DiveIndex, int64(sess.LastActiveTick),
		sess.CreatedAt.Unix(), sess.UpdatedAt.Unix(),
	)
	return err
}

func (s *SQLiteStore) GetSession(id string) (*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`SELECT id, player, status, bet_amount, current_treasure,
		max_payout, dive_index, last_active_tick, created_at, updated_at
		FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return sess, err
}

func (s *SQLiteStore) ActiveSessions() ([]*model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT id, player, status, bet_amount, current_treasure,
		max_payout, dive_index, last_active_tick, created_at, updated_at
		FROM sessions WHERE status = ? ORDER BY last_active_tick ASC`,
		string(model.StatusActive))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *SQLiteStore) SaveLedger(state model.LedgerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	locked := 0
	if state.Locked {
		locked = 1
	}
	_, err := s.db.Exec(`INSERT INTO ledger (id, total_reserved, locked, updated_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			total_reserved = excluded.total_reserved,
			locked = excluded.locked,
			updated_at = excluded.updated_at`,
		int64(state.TotalReserved), locked, state.UpdatedAt.Unix(),
	)
	return err
}

// LoadLedger returns the persisted ledger state, or a zero state on a
// fresh database.
func (s *SQLiteStore) LoadLedger() (model.LedgerState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		reserved  int64
		locked    int
		updatedAt int64
	)
	err := s.db.QueryRow(`SELECT total_reserved, locked, updated_at FROM ledger WHERE id = 1`).
		Scan(&reserved, &locked, &updatedAt)
	if err == sql.ErrNoRows {
		return model.LedgerState{}, nil
	}
	if err != nil {
		return model.LedgerState{}, err
	}
	return model.LedgerState{
		TotalReserved: uint64(reserved),
		Locked:        locked != 0,
		UpdatedAt:     time.Unix(updatedAt, 0),
	}, nil
}

func (s *SQLiteStore) AppendEvent(evt *model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	locked := 0
	if evt.Locked {
		locked = 1
	}
	_, err := s.db.Exec(`INSERT INTO events
		(timestamp, type, session_id, actor, amount, dive_index, status, locked)
		VALUES (?,?,?,?,?,?,?,?)`,
		evt.At.Unix(), string(evt.Type), evt.SessionID, evt.Actor,
		int64(evt.Amount), evt.DiveIndex, string(evt.Status), locked,
	)
	return err
}

func (s *SQLiteStore) Close() error {
	log.Println("[INFO] closing sqlite store")
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*model.Session, error) {
	var (
		sess      model.Session
		status    string
		bet       int64
		treasure  int64
		maxPayout int64
		tick      int64
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(&sess.ID, &sess.Player, &status, &bet, &treasure,
		&maxPayout, &sess.DiveIndex, &tick, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	sess.Status = model.SessionStatus(status)
	sess.BetAmount = uint64(bet)
	sess.CurrentTreasure = uint64(treasure)
	sess.MaxPayout = uint64(maxPayout)
	sess.LastActiveTick = uint64(tick)
	sess.CreatedAt = time.Unix(createdAt, 0)
	sess.UpdatedAt = time.Unix(updatedAt, 0)
	return &sess, nil
}
