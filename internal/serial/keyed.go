// Package serial provides per-key serialization.
//
// The attendance flow assumes that all events of one user run to completion,
// including awaited I/O, before the next event of the same user starts.
// KeyedMutex makes that contract explicit: callers take the user's lock for
// the whole event and different users proceed in parallel.
package serial

import (
	"context"
	"sync"
)

type slot struct {
	ch   chan struct{} // capacity 1: holding the token means holding the lock
	refs int
}

// KeyedMutex is a set of mutexes indexed by string key. Slots are created on
// demand and released when no goroutine holds or waits on them.
//
// The zero value is ready to use.
type KeyedMutex struct {
	mu    sync.Mutex
	slots map[string]*slot
}

// Lock acquires the lock for key, waiting until it is free or ctx is done.
// On success it returns the function that releases the lock.
func (k *KeyedMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	if k.slots == nil {
		k.slots = make(map[string]*slot)
	}
	s, ok := k.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		k.slots[key] = s
	}
	s.refs++
	k.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
	case <-ctx.Done():
		k.release(key, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			k.release(key, s)
		})
	}, nil
}

// Do runs fn while holding the lock for key.
func (k *KeyedMutex) Do(ctx context.Context, key string, fn func() error) error {
	unlock, err := k.Lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

func (k *KeyedMutex) release(key string, s *slot) {
	k.mu.Lock()
	s.refs--
	if s.refs == 0 {
		delete(k.slots, key)
	}
	k.mu.Unlock()
}

// active returns the number of live slots (tests only).
func (k *KeyedMutex) active() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.slots)
}
