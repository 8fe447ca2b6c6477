// Package kv provides the keyed repository used for per-user process state
// (sessions, fraud records, location history, cached employee state).
//
// Components depend on the Store interface rather than on package-level maps,
// so tests can inject an isolated Memory store and a deployment can swap in a
// shared backend without touching the core.
package kv

import "sync"

// Store is a keyed repository of values of type T.
//
// Implementations must be safe for concurrent use. Values are returned by
// copy semantics of T: callers that store slices or pointers must not mutate
// a value after Set without storing it again.
type Store[T any] interface {
	Get(key string) (T, bool)
	Set(key string, v T)
	Delete(key string)
	// Range calls fn for every entry until fn returns false.
	Range(fn func(key string, v T) bool)
}

// Memory is an in-process Store guarded by a RWMutex.
type Memory[T any] struct {
	mu sync.RWMutex
	m  map[string]T
}

// NewMemory returns an empty in-memory store.
func NewMemory[T any]() *Memory[T] {
	return &Memory[T]{m: make(map[string]T)}
}

func (s *Memory[T]) Get(key string) (T, bool) {
	s.mu.RLock()
	v, ok := s.m[key]
	s.mu.RUnlock()
	return v, ok
}

func (s *Memory[T]) Set(key string, v T) {
	s.mu.Lock()
	s.m[key] = v
	s.mu.Unlock()
}

func (s *Memory[T]) Delete(key string) {
	s.mu.Lock()
	delete(s.m, key)
	s.mu.Unlock()
}

// Range iterates over a snapshot, so fn may call Set or Delete.
func (s *Memory[T]) Range(fn func(key string, v T) bool) {
	s.mu.RLock()
	snap := make(map[string]T, len(s.m))
	for k, v := range s.m {
		snap[k] = v
	}
	s.mu.RUnlock()
	for k, v := range snap {
		if !fn(k, v) {
			return
		}
	}
}

// Len returns the number of stored entries.
func (s *Memory[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.m)
}
