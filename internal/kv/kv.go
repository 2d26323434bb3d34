// Package kv defines the key-value contract every ritual component persists
// through, plus JSON helpers that treat unreadable values as empty state.
//
// There is no locking or merging: concurrent writers to the same key race
// and the last write wins.
package kv

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound is returned by Get when a key has never been set.
var ErrNotFound = errors.New("kv: key not found")

// Store is a flat string-keyed byte store.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set replaces the value stored under key.
	Set(ctx context.Context, key string, value []byte) error
}

// Memory is an in-process Store. The zero value is not usable; call NewMemory.
//
// Thread-safety: Memory is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Get implements Store.
func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Set implements Store.
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)
	m.data[key] = v
	return nil
}

// Keys returns the number of keys held. Used by tests.
func (m *Memory) Keys() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
