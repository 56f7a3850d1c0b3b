package repositories

import (
	"context"
	"sync"

	"github.com/you/findmyseat/domain"
)

// MemoryStateStore implements domain.StateStore in process memory.
// Nothing survives a restart; used for tests and the default config.
type MemoryStateStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStateStore creates an empty in-memory state store
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{values: make(map[string]string)}
}

// Get implements domain.StateStore
func (m *MemoryStateStore) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[key]
	if !ok {
		return "", domain.ErrKeyNotFound
	}
	return v, nil
}

// Set implements domain.StateStore
func (m *MemoryStateStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

// Delete implements domain.StateStore
func (m *MemoryStateStore) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

var _ domain.StateStore = (*MemoryStateStore)(nil)
