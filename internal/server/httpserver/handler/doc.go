// Package handler provides the HTTP handlers of the engine host.
//
//   - ops.go: operation dispatch into engine instances
//   - admin.go: instance clearing and status summary
//   - health.go: health and readiness checks
//
// Successful operation results are written as the raw engine body (204 for
// absent or void results). Everything else, errors included, uses the
// standard JSON envelope.
package handler
