// Package kvstore provides implementations of the client-local key-value
// capability used for payment session replay.
package kvstore

import (
	"context"
	"sync"
)

// Memory is an in-memory key-value store. It backs single-process
// deployments and doubles as the deterministic fake for tests.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

// Get returns the value for key and whether it was present
func (m *Memory) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, found := m.data[key]
	return value, found, nil
}

// Set stores value under key
func (m *Memory) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

// Remove deletes key; removing an absent key is not an error
func (m *Memory) Remove(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

// Len returns the number of stored entries
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
