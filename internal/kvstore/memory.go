package kvstore

import (
	"context"
	"sort"
	"sync"
)

// MemorySurface is an in-process Surface. Its contents do not survive a
// restart, which makes it the session surface by default.
type MemorySurface struct {
	mu      sync.RWMutex
	entries map[string]string
	closed  bool
}

// NewMemorySurface creates an empty in-memory surface.
func NewMemorySurface() *MemorySurface {
	return &MemorySurface{entries: make(map[string]string)}
}

func (m *MemorySurface) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return "", false, ErrClosed
	}
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *MemorySurface) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.entries[key] = value
	return nil
}

func (m *MemorySurface) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	delete(m.entries, key)
	return nil
}

// Keys returns the stored keys in sorted order.
func (m *MemorySurface) Keys(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrClosed
	}
	keys := make([]string, 0, len(m.entries))
	for k := range m.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Len returns the number of stored keys.
func (m *MemorySurface) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemorySurface) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.entries = nil
	return nil
}
