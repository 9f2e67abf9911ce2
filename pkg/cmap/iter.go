package cmap

import "iter"

// All iterates over every entry, one shard at a time under its read lock.
// The view is not a snapshot across shards, and yield must not write to the
// map.
func (m *Map[V]) All() iter.Seq2[string, V] {
	return func(yield func(string, V) bool) {
		for i := range m.shards {
			s := &m.shards[i]
			s.mu.RLock()
			for k, v := range s.items {
				if !yield(k, v) {
					s.mu.RUnlock()
					return
				}
			}
			s.mu.RUnlock()
		}
	}
}

// Keys returns every key in no particular order.
func (m *Map[V]) Keys() []string {
	keys := make([]string, 0, m.Count())
	for k := range m.All() {
		keys = append(keys, k)
	}
	return keys
}

// Values returns every value in no particular order.
func (m *Map[V]) Values() []V {
	values := make([]V, 0, m.Count())
	for _, v := range m.All() {
		values = append(values, v)
	}
	return values
}
