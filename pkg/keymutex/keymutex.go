// Package keymutex provides per-key mutual exclusion for the ledger engine.
// It serializes operations that share a key (e.g. one member's check-ins for
// one habit) without a global lock, so unrelated keys proceed in parallel.
// Acquisition honors context cancellation: a caller may give up while waiting,
// but once inside the critical section it runs to completion.
// No external dependencies - uses only standard library.
package keymutex

import (
	"context"
	"sync"
)

// KeyMutex is a set of mutexes addressed by string key.
// The zero value is not usable; create one with New.
type KeyMutex struct {
	mu    sync.Mutex
	locks map[string]*entry
}

type entry struct {
	ch   chan struct{} // buffered(1); holding the token means holding the lock
	refs int           // waiters + holder; entry is removed when this drops to 0
}

// New creates an empty KeyMutex.
func New() *KeyMutex {
	return &KeyMutex{locks: make(map[string]*entry)}
}

// Lock acquires the mutex for key, blocking until it is free or ctx is done.
// On success it returns a release function that must be called exactly once.
// On cancellation it returns ctx.Err() and the caller holds nothing.
func (k *KeyMutex) Lock(ctx context.Context, key string) (func(), error) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		return func() { k.release(key, e) }, nil
	case <-ctx.Done():
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
		return nil, ctx.Err()
	}
}

// TryLock acquires the mutex for key without blocking.
// It returns a release function and true on success, nil and false otherwise.
func (k *KeyMutex) TryLock(key string) (func(), bool) {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &entry{ch: make(chan struct{}, 1)}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	select {
	case e.ch <- struct{}{}:
		return func() { k.release(key, e) }, true
	default:
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
		return nil, false
	}
}

func (k *KeyMutex) release(key string, e *entry) {
	<-e.ch

	k.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(k.locks, key)
	}
	k.mu.Unlock()
}

// Len returns the number of keys with a held or contended lock.
// Intended for metrics and tests.
func (k *KeyMutex) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
