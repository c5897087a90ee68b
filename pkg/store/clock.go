package store

import (
	"sync"
	"time"
)

// Clock is wall time shifted by an adjustable offset. Default offer
// expiry, login codes, session tokens and idempotency keys all read it.
type Clock struct {
	mu     sync.RWMutex
	offset time.Duration
}

// NewClock returns a clock that starts at wall time.
func NewClock() *Clock { return &Clock{} }

// Now is the simulated current time.
func (c *Clock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return time.Now().Add(c.offset)
}

// Advance shifts the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset += d
}

// Offset is the total shift from wall time.
func (c *Clock) Offset() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.offset
}

// Reset returns the clock to wall time.
func (c *Clock) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offset = 0
}
