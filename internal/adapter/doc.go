// Package adapter implements the storage contract consumed by the rollout
// plan clients on top of an engine handle.
//
// Every call encodes one engine request, sends it through the handle and
// decodes the typed result. Writes may run in best-effort mode, in which
// case they are queued and sent in order by a single background worker;
// any later call waits for the queue to drain before it is sent, so a
// sequential caller always observes its own writes.
//
// clearAll is deliberately absent from Storage. It is reachable only through
// Maintenance.
package adapter
