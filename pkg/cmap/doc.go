// Package cmap provides a sharded, string-keyed concurrent map.
//
// It backs the engine's instance registry and the in-memory storage
// backend. Each shard has its own RWMutex, so keys in different shards never
// contend. LoadOrCreate gives once-only creation per key without a global
// lock.
package cmap
