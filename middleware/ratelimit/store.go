package ratelimit

import (
	"sync"
	"time"
)

// Store counts requests per key within a fixed window. Increment starts a
// fresh window when none is active and reports the window's reset time so
// callers can surface retry-after metadata.
type Store interface {
	Increment(key string, window time.Duration) (count int, resetAt time.Time, err error)
	Reset(key string) error
}

type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]*entry
}

type entry struct {
	count   int
	resetAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]*entry),
	}
}

func (s *MemoryStore) Increment(key string, window time.Duration) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()

	if e, exists := s.data[key]; exists && now.Before(e.resetAt) {
		e.count++
		return e.count, e.resetAt, nil
	}

	resetAt := now.Add(window)
	s.data[key] = &entry{
		count:   1,
		resetAt: resetAt,
	}

	return 1, resetAt, nil
}

func (s *MemoryStore) Reset(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

// Sweep drops entries whose window has elapsed. The lock is taken per key so
// a large table never stalls request-path increments.
func (s *MemoryStore) Sweep() int {
	s.mu.RLock()
	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		keys = append(keys, key)
	}
	s.mu.RUnlock()

	removed := 0
	now := time.Now()
	for _, key := range keys {
		s.mu.Lock()
		if e, exists := s.data[key]; exists && now.After(e.resetAt) {
			delete(s.data, key)
			removed++
		}
		s.mu.Unlock()
	}

	return removed
}

func (s *MemoryStore) StartSweepWorker(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for range ticker.C {
			s.Sweep()
		}
	}()
}
