package mocks

import (
	"sync"
	"time"
)

// MockClock is a settable clock for tests
type MockClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewMockClock creates a clock frozen at the given instant
func NewMockClock(now time.Time) *MockClock {
	return &MockClock{now: now}
}

// Now returns the frozen instant
func (c *MockClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Set moves the clock to a new instant
func (c *MockClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Advance moves the clock forward by d
func (c *MockClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
