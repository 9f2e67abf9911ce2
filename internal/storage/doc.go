// Package storage provides the transactional backends owned by engine instances.
//
// Every engine instance owns exactly one Backend. A Backend exposes
// read-only transactions (View) and all-or-nothing read-write transactions
// (Update) over one flat namespace of scalar and set entries.
//
// Implementations:
//
//   - BadgerBackend: durable storage on Badger v3, one database per instance
//     directory, with background value-log GC and Prometheus gauges
//   - SQLiteBackend: durable storage in one SQLite file per instance, with
//     a single writer connection and a WAL reader pool
//   - MemoryBackend: process-local storage for tests and ephemeral
//     deployments; updates are staged and committed only on success
//
// Encoding (Badger, SQLite):
//
// Each value starts with a one-byte tag: 's' string, 'i' big-endian int64,
// 'S' sorted JSON list of set members.
package storage
