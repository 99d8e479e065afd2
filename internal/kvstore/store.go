package kvstore

import (
	"sync"
)

// Store is a process-local keyed cache. Hot-path counters and caches sit
// behind this interface so a shared-cache implementation can replace the
// map-backed one without touching calling code.
type Store[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V)
	Delete(key string)
	Sweep(expired func(V) bool) int
}

type MemoryStore[V any] struct {
	mu   sync.RWMutex
	data map[string]V
}

func NewMemoryStore[V any]() *MemoryStore[V] {
	return &MemoryStore[V]{
		data: make(map[string]V),
	}
}

func (s *MemoryStore[V]) Get(key string) (V, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.data[key]
	return value, ok
}

func (s *MemoryStore[V]) Set(key string, value V) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = value
}

func (s *MemoryStore[V]) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
}

// Update applies fn to the current value for key under the write lock and
// stores the result. ok reports whether a value existed beforehand.
func (s *MemoryStore[V]) Update(key string, fn func(value V, ok bool) V) V {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.data[key]
	next := fn(value, ok)
	s.data[key] = next
	return next
}

// Sweep removes entries for which expired returns true and reports how many
// were removed. Keys are snapshotted first so the write lock is only held one
// map mutation at a time.
func (s *MemoryStore[V]) Sweep(expired func(V) bool) int {
	s.mu.RLock()
	keys := make([]string, 0, len(s.data))
	for key := range s.data {
		keys = append(keys, key)
	}
	s.mu.RUnlock()

	removed := 0
	for _, key := range keys {
		s.mu.Lock()
		if value, ok := s.data[key]; ok && expired(value) {
			delete(s.data, key)
			removed++
		}
		s.mu.Unlock()
	}

	return removed
}

func (s *MemoryStore[V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.data)
}
