// Package cache provides a small capacity-bounded key-value store.
//
// Eviction is FIFO on insertion order: when a new key arrives at capacity,
// the oldest inserted entry is dropped. Overwriting an existing key never
// evicts and never changes its position. The store is safe for concurrent
// use.
package cache

import "sync"

// Bounded is a capacity-limited string-keyed store.
type Bounded[V any] struct {
	mu      sync.Mutex
	cap     int
	entries map[string]V
	order   []string // insertion order, oldest first
}

// NewBounded creates a store that holds at most capacity entries.
// A capacity below 1 is treated as 1.
func NewBounded[V any](capacity int) *Bounded[V] {
	if capacity < 1 {
		capacity = 1
	}
	return &Bounded[V]{
		cap:     capacity,
		entries: make(map[string]V),
	}
}

// Set inserts or overwrites key. Inserting a new key at capacity first
// evicts the oldest inserted entry.
func (b *Bounded[V]) Set(key string, value V) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.entries[key]; ok {
		b.entries[key] = value
		return
	}
	if len(b.order) >= b.cap {
		oldest := b.order[0]
		b.order = b.order[1:]
		delete(b.entries, oldest)
	}
	b.entries[key] = value
	b.order = append(b.order, key)
}

// Get returns the value for key and whether it was present.
func (b *Bounded[V]) Get(key string) (V, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.entries[key]
	return v, ok
}

// Has reports whether key is present.
func (b *Bounded[V]) Has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.entries[key]
	return ok
}

// Delete removes key if present.
func (b *Bounded[V]) Delete(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.entries[key]; !ok {
		return
	}
	delete(b.entries, key)
	for i, k := range b.order {
		if k == key {
			b.order = append(b.order[:i], b.order[i+1:]...)
			break
		}
	}
}

// Len returns the number of entries.
func (b *Bounded[V]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Keys returns the keys in insertion order, oldest first.
func (b *Bounded[V]) Keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	keys := make([]string, len(b.order))
	copy(keys, b.order)
	return keys
}

// Clear removes all entries and returns how many were removed.
func (b *Bounded[V]) Clear() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.entries)
	b.entries = make(map[string]V)
	b.order = nil
	return n
}
