package store

import (
	"context"
	"sync"

	"github.com/bridgeguard/nodeguard/internal/noderpc"
)

type MemoryStore struct {
	mu      sync.RWMutex
	history []noderpc.HealthReport
	max     int
}

func NewMemoryStore(maxHistory int) *MemoryStore {
	if maxHistory <= 0 {
		maxHistory = DefaultHistory
	}
	return &MemoryStore{max: maxHistory}
}

func (m *MemoryStore) SaveSnapshot(_ context.Context, report noderpc.HealthReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.history = append([]noderpc.HealthReport{report}, m.history...)
	if len(m.history) > m.max {
		m.history = m.history[:m.max]
	}
	return nil
}

func (m *MemoryStore) LatestSnapshot(_ context.Context) (noderpc.HealthReport, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.history) == 0 {
		return noderpc.HealthReport{}, false, nil
	}
	return m.history[0], true, nil
}

func (m *MemoryStore) History(_ context.Context, limit int) ([]noderpc.HealthReport, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.history) {
		limit = len(m.history)
	}
	out := make([]noderpc.HealthReport, limit)
	copy(out, m.history[:limit])
	return out, nil
}

func (m *MemoryStore) Close() {}
