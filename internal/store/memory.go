package store

import (
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory implementation of the Store interface.
// Documents are kept encoded, so every Read returns an independent copy and
// the JSON round trip matches FileStore. Suitable for tests and for hosts
// that opt out of persistence.
type MemoryStore[T any] struct {
	mu    sync.RWMutex
	data  []byte
	empty func() T
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore[T any](empty func() T) *MemoryStore[T] {
	return &MemoryStore[T]{empty: empty}
}

// Read decodes the stored document or returns the empty value.
func (m *MemoryStore[T]) Read() T {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v := m.empty()
	if m.data == nil {
		return v
	}
	if err := json.Unmarshal(m.data, &v); err != nil {
		return m.empty()
	}
	return v
}

// Store encodes and keeps v.
func (m *MemoryStore[T]) Store(v T) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	m.mu.Lock()
	m.data = data
	m.mu.Unlock()
	return nil
}

// Delete forgets the stored document.
func (m *MemoryStore[T]) Delete() error {
	m.mu.Lock()
	m.data = nil
	m.mu.Unlock()
	return nil
}
