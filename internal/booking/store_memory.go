package booking

import (
	"context"
	"sync"
	"time"

	"github.com/Tuvshee555/Auto-reception/internal/keylock"
)

// MemoryStore keeps sessions in process memory.
type MemoryStore struct {
	locks *keylock.Locker
	now   func() time.Time

	mu       sync.RWMutex
	sessions map[string]Session
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks:    keylock.New(),
		now:      time.Now,
		sessions: make(map[string]Session),
	}
}

func (m *MemoryStore) Get(_ context.Context, senderID string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[senderID]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

func (m *MemoryStore) Open(_ context.Context, senderID string) (*Session, error) {
	unlock := m.locks.Lock(senderID)
	defer unlock()

	s := Session{SenderID: senderID, Active: true, UpdatedAt: m.now()}
	m.put(s)
	return &s, nil
}

func (m *MemoryStore) Upsert(_ context.Context, senderID string, slots Slots) (*Session, error) {
	unlock := m.locks.Lock(senderID)
	defer unlock()

	m.mu.RLock()
	cur, ok := m.sessions[senderID]
	m.mu.RUnlock()
	if !ok {
		cur = Session{SenderID: senderID, Active: true}
	}

	merged := Merge(cur, slots)
	merged.UpdatedAt = m.now()
	m.put(merged)
	return &merged, nil
}

func (m *MemoryStore) Close(_ context.Context, senderID string) error {
	unlock := m.locks.Lock(senderID)
	defer unlock()

	m.mu.RLock()
	cur, ok := m.sessions[senderID]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	cur.Active = false
	cur.UpdatedAt = m.now()
	m.put(cur)
	return nil
}

func (m *MemoryStore) put(s Session) {
	m.mu.Lock()
	m.sessions[s.SenderID] = s
	m.mu.Unlock()
}
