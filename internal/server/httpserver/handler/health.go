package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/rolloutkv/internal/core/domain"
)

// handleHealth handles GET /health.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// handleReady handles GET /ready. It fails once the registry has closed.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.registry == nil || h.registry.Closed() {
		h.handleServiceError(w, r, domain.ErrEngineClosed)
		return
	}
	h.writeJSON(w, r, http.StatusOK, map[string]string{
		"status": "ready",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
