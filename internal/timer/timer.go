// Package timer drives the per-question countdown. The coordinator owns
// no counter of its own: it only emits ticks at a fixed cadence while
// active, and the interview reducer decides what a tick means.
package timer

import (
	"sync"
	"time"
)

type Coordinator struct {
	interval time.Duration
	onTick   func()

	mu   sync.Mutex
	stop chan struct{}
}

// New creates an inactive coordinator. interval defaults to one second.
func New(interval time.Duration, onTick func()) *Coordinator {
	if interval <= 0 {
		interval = time.Second
	}
	return &Coordinator{interval: interval, onTick: onTick}
}

// SetActive starts or stops the repeating tick. Activating an active
// coordinator or deactivating an inactive one is a no-op. No tick is
// delivered after SetActive(false) returns and a subsequent activation
// is observed.
func (c *Coordinator) SetActive(active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if active {
		if c.stop != nil {
			return
		}
		stop := make(chan struct{})
		c.stop = stop
		go c.run(stop)
		return
	}

	if c.stop != nil {
		close(c.stop)
		c.stop = nil
	}
}

// Active reports whether the coordinator is currently ticking.
func (c *Coordinator) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stop != nil
}

// Stop deactivates the coordinator. Safe to call multiple times.
func (c *Coordinator) Stop() {
	c.SetActive(false)
}

func (c *Coordinator) run(stop chan struct{}) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			cancelled := c.stop != stop
			c.mu.Unlock()
			if cancelled {
				return
			}
			if c.onTick != nil {
				c.onTick()
			}
		}
	}
}
