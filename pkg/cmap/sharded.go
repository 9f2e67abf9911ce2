package cmap

import (
	"hash/maphash"
	"sync"
)

const shardCount = 32

// Map is a string-keyed map split into independently locked shards.
type Map[V any] struct {
	seed   maphash.Seed
	shards [shardCount]shard[V]
}

type shard[V any] struct {
	mu    sync.RWMutex
	items map[string]V
}

// New returns an empty map.
func New[V any]() *Map[V] {
	m := &Map[V]{seed: maphash.MakeSeed()}
	for i := range m.shards {
		m.shards[i].items = make(map[string]V)
	}
	return m
}

func (m *Map[V]) shardFor(key string) *shard[V] {
	return &m.shards[maphash.String(m.seed, key)%shardCount]
}

// Get returns the value stored at key.
func (m *Map[V]) Get(key string) (V, bool) {
	s := m.shardFor(key)
	s.mu.RLock()
	v, ok := s.items[key]
	s.mu.RUnlock()
	return v, ok
}

// Set stores v at key.
func (m *Map[V]) Set(key string, v V) {
	s := m.shardFor(key)
	s.mu.Lock()
	s.items[key] = v
	s.mu.Unlock()
}

// Delete removes key. Deleting an absent key is a no-op.
func (m *Map[V]) Delete(key string) {
	s := m.shardFor(key)
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

// Pop removes key and returns the value it held.
func (m *Map[V]) Pop(key string) (V, bool) {
	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.items[key]
	if ok {
		delete(s.items, key)
	}
	return v, ok
}

// LoadOrCreate returns the value at key. When key is absent, create runs
// with the key's shard write-locked, so concurrent callers for one key
// create it once. A failed create stores nothing. loaded reports whether
// the value already existed.
func (m *Map[V]) LoadOrCreate(key string, create func() (V, error)) (v V, loaded bool, err error) {
	if v, ok := m.Get(key); ok {
		return v, true, nil
	}

	s := m.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()

	if v, ok := s.items[key]; ok {
		return v, true, nil
	}
	v, err = create()
	if err != nil {
		var zero V
		return zero, false, err
	}
	s.items[key] = v
	return v, false, nil
}

// Count returns the number of entries.
func (m *Map[V]) Count() int {
	n := 0
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.RLock()
		n += len(s.items)
		s.mu.RUnlock()
	}
	return n
}

// Clear removes every entry.
func (m *Map[V]) Clear() {
	for i := range m.shards {
		s := &m.shards[i]
		s.mu.Lock()
		s.items = make(map[string]V)
		s.mu.Unlock()
	}
}
