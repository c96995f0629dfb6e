package session

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu       sync.RWMutex
	sessions map[int64]*Session
}

// NewMemoryStore constructs the default in-process store.
func NewMemoryStore() Store {
	return &memoryStore{
		sessions: make(map[int64]*Session),
	}
}

func (m *memoryStore) GetOrCreate(_ context.Context, chatID int64) (*Session, error) {
	m.mu.RLock()
	if sess, ok := m.sessions[chatID]; ok {
		m.mu.RUnlock()
		return sess, nil
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if sess, ok := m.sessions[chatID]; ok {
		return sess, nil
	}
	sess := NewSession(chatID)
	m.sessions[chatID] = sess
	return sess, nil
}

// Replace is a no-op: GetOrCreate hands out the live pointer.
func (m *memoryStore) Replace(_ context.Context, _ *Session) error {
	return nil
}

func (m *memoryStore) Reset(_ context.Context, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, chatID)
	return nil
}
