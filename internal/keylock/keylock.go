// Package keylock serializes work per string key while letting distinct keys
// run in parallel.
package keylock

import "sync"

type entry struct {
	mu   sync.Mutex
	refs int
}

// Locker hands out one mutex per key. Entries are dropped once no goroutine
// holds or waits on them, so the map only grows with live keys.
type Locker struct {
	mu      sync.Mutex
	entries map[string]*entry
}

func New() *Locker {
	return &Locker{entries: make(map[string]*entry)}
}

// Lock blocks until the caller owns key. The returned func releases it.
func (l *Locker) Lock(key string) (unlock func()) {
	l.mu.Lock()
	e, ok := l.entries[key]
	if !ok {
		e = &entry{}
		l.entries[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()

		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, key)
		}
		l.mu.Unlock()
	}
}

// Len reports the number of keys currently held or awaited.
func (l *Locker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
