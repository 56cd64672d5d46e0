package engine

import (
	"sync"

	"github.com/ConserveLee/cookie-idle/internal/constants"
)

// Counters is a point in time copy of one mode's click counts
type Counters struct {
	Session  uint64
	Lifetime uint64
}

// counter holds the session and lifetime counts of one mode. Both fields only
// ever move together through add.
type counter struct {
	mu       sync.Mutex
	session  uint64
	lifetime uint64
}

func newCounter(lifetime uint64) *counter {
	return &counter{lifetime: lifetime}
}

// add increments both counts by n and reports whether the session count
// crossed a checkpoint boundary
func (c *counter) add(n uint64) bool {
	if n == 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	before := c.session
	c.session += n
	c.lifetime += n
	return before/constants.CheckpointEvery != c.session/constants.CheckpointEvery
}

func (c *counter) resetSession() {
	c.mu.Lock()
	c.session = 0
	c.mu.Unlock()
}

func (c *counter) resetLifetime() {
	c.mu.Lock()
	c.lifetime = 0
	c.mu.Unlock()
}

func (c *counter) snapshot() Counters {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Counters{Session: c.session, Lifetime: c.lifetime}
}
