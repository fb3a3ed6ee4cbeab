// Package keymutex provides per-key mutual exclusion. Operations on
// different keys proceed in parallel; operations on the same key serialize.
// Entries are reference counted and removed when the last holder unlocks,
// so the map does not grow with the key space.
// No external dependencies - uses only standard library.
package keymutex

import (
	"sync"
)

type entry struct {
	mu   sync.Mutex
	refs int
}

// KeyMutex is a dynamic set of named mutexes.
// The zero value is not usable; call New.
type KeyMutex struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New creates an empty KeyMutex.
func New() *KeyMutex {
	return &KeyMutex{
		entries: make(map[string]*entry),
	}
}

// Lock acquires the mutex for key, blocking until it is available.
// The returned function releases it and must be called exactly once.
func (km *KeyMutex) Lock(key string) (unlock func()) {
	km.mu.Lock()
	e, ok := km.entries[key]
	if !ok {
		e = &entry{}
		km.entries[key] = e
	}
	e.refs++
	km.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			km.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(km.entries, key)
			}
			km.mu.Unlock()
		})
	}
}

// Len reports how many keys currently have holders or waiters.
func (km *KeyMutex) Len() int {
	km.mu.Lock()
	defer km.mu.Unlock()
	return len(km.entries)
}
