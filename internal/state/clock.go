package state

import "sync"

// Clock is a Lamport clock. Local actions tick it; actions received from
// peers move it forward so later local actions order after them.
type Clock struct {
	mu      sync.Mutex
	counter uint64
}

// Tick increments the clock and returns the new value.
func (c *Clock) Tick() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counter++
	return c.counter
}

// Observe merges a received timestamp into the clock.
func (c *Clock) Observe(remote uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if remote > c.counter {
		c.counter = remote
	}
}

// Now returns the current value without ticking.
func (c *Clock) Now() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counter
}
