// Package shutdown coordinates graceful process termination.
//
// A Handler collects cleanup hooks while the process starts and runs them
// in reverse order once SIGINT or SIGTERM arrives, or once Trigger is
// called. Hooks share one deadline.
//
// Usage:
//
//	h := shutdown.NewHandler(30 * time.Second)
//	h.OnShutdown(server.Shutdown)
//	reason, err := h.Wait()
package shutdown
