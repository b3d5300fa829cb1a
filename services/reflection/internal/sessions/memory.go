// Package sessions persists session snapshots and issues the bearer tokens
// that name them.
package sessions

import (
	"context"
	"sync"
	"time"

	"soulreflect/services/reflection/internal/app"
)

// MemoryStore keeps snapshots in process memory. Entries idle for longer
// than the TTL are dropped on access.
type MemoryStore struct {
	mu    sync.RWMutex
	ttl   time.Duration
	now   func() time.Time
	items map[string]memoryEntry
}

type memoryEntry struct {
	session app.Session
	expires time.Time
}

// NewMemoryStore builds an in-memory session store. A zero ttl never expires.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, now: time.Now, items: make(map[string]memoryEntry)}
}

func (m *MemoryStore) Load(_ context.Context, id string) (app.Session, bool, error) {
	m.mu.RLock()
	entry, ok := m.items[id]
	m.mu.RUnlock()
	if !ok {
		return app.Session{}, false, nil
	}
	if !entry.expires.IsZero() && m.now().After(entry.expires) {
		m.mu.Lock()
		delete(m.items, id)
		m.mu.Unlock()
		return app.Session{}, false, nil
	}
	return entry.session.Clone(), true, nil
}

func (m *MemoryStore) Save(_ context.Context, s app.Session) error {
	entry := memoryEntry{session: s.Clone()}
	if m.ttl > 0 {
		entry.expires = m.now().Add(m.ttl)
	}
	m.mu.Lock()
	m.items[s.ID] = entry
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.items, id)
	m.mu.Unlock()
	return nil
}
