package anomaly

import (
	"time"

	"github.com/tech-arch1tect/loginguard/internal/kvstore"
)

type failedEntry struct {
	count       int
	windowStart time.Time
}

// FailedLoginCounter tracks credential failures per client address within a
// sliding window. The count is only meaningful inside the current window; an
// elapsed window starts over at one.
type FailedLoginCounter struct {
	store  *kvstore.MemoryStore[failedEntry]
	window time.Duration
}

func NewFailedLoginCounter(window time.Duration) *FailedLoginCounter {
	return &FailedLoginCounter{
		store:  kvstore.NewMemoryStore[failedEntry](),
		window: window,
	}
}

// Record adds one failure for the address and returns the in-window count.
func (c *FailedLoginCounter) Record(address string) int {
	now := time.Now()

	entry := c.store.Update(address, func(entry failedEntry, ok bool) failedEntry {
		if !ok || now.Sub(entry.windowStart) >= c.window {
			return failedEntry{count: 1, windowStart: now}
		}
		entry.count++
		return entry
	})

	return entry.count
}

// Clear drops the counter for an address, called on any successful login
// from it.
func (c *FailedLoginCounter) Clear(address string) {
	c.store.Delete(address)
}

// Count returns the current in-window count without recording a failure.
func (c *FailedLoginCounter) Count(address string) int {
	entry, ok := c.store.Get(address)
	if !ok || time.Since(entry.windowStart) >= c.window {
		return 0
	}
	return entry.count
}

// Sweep drops counters whose window elapsed.
func (c *FailedLoginCounter) Sweep() int {
	return c.store.Sweep(func(entry failedEntry) bool {
		return time.Since(entry.windowStart) >= c.window
	})
}

func (c *FailedLoginCounter) StartSweepWorker(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			c.Sweep()
		}
	}()
}
