package checkpoint

import (
	"context"
	"sync"
)

// MemoryStore implements Store in memory. It backs runs without a
// checkpoint directory and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[int]Entry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[int]Entry)}
}

// Get implements Store.
func (m *MemoryStore) Get(_ context.Context, batch int) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[batch]
	if !ok {
		return nil, nil
	}

	return &e, nil
}

// Put implements Store.
func (m *MemoryStore) Put(_ context.Context, e Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[e.Batch] = e

	return nil
}

// Clear implements Store.
func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[int]Entry)

	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }

// Len returns the number of recorded batches.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.entries)
}
