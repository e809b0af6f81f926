package store

import (
	"fmt"
	"sort"
	"sync"

	"DiveHouse/internal/model"
)

// MemoryStore is an in-process Store for tests and ephemeral deployments.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]model.Session
	ledger   model.LedgerState
	events   []model.Event
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]model.Session)}
}

func (m *MemoryStore) SaveSession(s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = *s
	return nil
}

func (m *MemoryStore) GetSession(id string) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("session %s: %w", id, ErrSessionNotFound)
	}
	return &s, nil
}

func (m *MemoryStore) ActiveSessions() ([]*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var active []*model.Session
	for _, s := range m.sessions {
		if s.Status == model.StatusActive {
			s := s
			active = append(active, &s)
		}
	}
	sort.Slice(active, func(i, j int) bool {
		return active[i].LastActiveTick < active[j].LastActiveTick
	})
	return active, nil
}

func (m *MemoryStore) SaveLedger(state model.LedgerState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledger = state
	return nil
}

func (m *MemoryStore) LoadLedger() (model.LedgerState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ledger, nil
}

func (m *MemoryStore) AppendEvent(evt *model.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *evt)
	return nil
}

// Events returns a copy of the audit trail, for assertions in tests.
func (m *MemoryStore) Events() []model.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Event, len(m.events))
	copy(out, m.events)
	return out
}

func (m *MemoryStore) Close() error { return nil }
