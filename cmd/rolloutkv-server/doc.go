// Package main provides the entry point for rolloutkv-server.
//
// rolloutkv-server hosts named engine instances, each an isolated
// transactional key-value and set store, and serves their operations over
// HTTP and Connect to remote storage adapters.
//
// Usage:
//
//	rolloutkv-server -config /etc/rolloutkv/server.yaml
//
// Every setting can also be given as a ROLLOUTKV_ environment variable,
// with levels separated by a double underscore:
//
//	ROLLOUTKV_SERVER__HTTP__ADDR=0.0.0.0:7380
//	ROLLOUTKV_STORAGE__BACKEND=memory
package main
