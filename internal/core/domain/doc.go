// Package domain defines the core domain models for rolloutkv.
//
// Domain models are pure value objects without any IO dependencies or
// framework coupling. This package contains:
//
//   - Value: scalar entries (absent, string, integer) and their JSON form
//   - Op: the engine operation vocabulary and atomicity classes
//   - Instance identity: name validation and name-derived instance IDs
//   - Errors: domain error codes shared by engine, transport and adapter
package domain
