package guard

import (
	"sync"
	"time"
)

type memoryWindow struct {
	resetAt time.Time
	count   int
}

type memoryStorage struct {
	mu      sync.Mutex
	windows map[int64]*memoryWindow
}

// NewMemoryStorage constructs the default in-process counter storage.
func NewMemoryStorage() Storage {
	return &memoryStorage{
		windows: make(map[int64]*memoryWindow),
	}
}

func (m *memoryStorage) Bump(userID int64, now time.Time, window time.Duration, limit int) (bool, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	win, ok := m.windows[userID]
	if !ok || !now.Before(win.resetAt) {
		win = &memoryWindow{resetAt: now.Add(window), count: 1}
		m.windows[userID] = win
		return true, win.resetAt
	}
	if win.count >= limit {
		return false, win.resetAt
	}
	win.count++
	return true, win.resetAt
}

func (m *memoryStorage) Sweep(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, win := range m.windows {
		if !now.Before(win.resetAt) {
			delete(m.windows, id)
			removed++
		}
	}
	return removed
}
