package app

import (
	"fmt"
	"sync"
)

// keyedMutex serializes mutations per entity id. The underlying store
// only offers whole-record replace, so concurrent read-modify-write
// cycles against the same conversation or challenge would otherwise race
// on the message history and the question index.
//
// Locks are never evicted; a mutex per touched id is small next to the
// entity itself.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*sync.Mutex)}
}

// lock acquires the mutex for (kind, id) and returns its unlock func.
func (k *keyedMutex) lock(kind string, id int) func() {
	key := fmt.Sprintf("%s:%d", kind, id)
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &sync.Mutex{}
		k.locks[key] = m
	}
	k.mu.Unlock()
	m.Lock()
	return m.Unlock
}
