// Package httpserver provides the HTTP server of the engine host.
//
// Routes:
//
//   - POST /v1/instances/{name}/ops/{op}: engine operations
//   - POST /rolloutkv.v1.EngineService/Dispatch: the same operations over Connect
//   - POST /admin/v1/instances/{name}/clear, GET /admin/v1/status/summary:
//     admin API, only registered when an admin key hash is configured
//   - GET /health, /ready, /metrics
//
// Middleware chain: Recover, RequestID, CORS, RateLimit, Audit, AdminAuth.
package httpserver
