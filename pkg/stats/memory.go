package stats

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps the snapshot in process.
type MemoryStore struct {
	mu      sync.RWMutex
	stats   *GraphStats
	expires time.Time
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (m *MemoryStore) Load(_ context.Context) (GraphStats, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.stats == nil {
		return GraphStats{}, false, nil
	}
	if !m.expires.IsZero() && !m.now().Before(m.expires) {
		return GraphStats{}, false, nil
	}
	return *m.stats, true, nil
}

func (m *MemoryStore) Save(_ context.Context, s GraphStats, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats = &s
	m.expires = time.Time{}
	if ttl > 0 {
		m.expires = m.now().Add(ttl)
	}
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	m.stats = nil
	m.expires = time.Time{}
	m.mu.Unlock()
	return nil
}
