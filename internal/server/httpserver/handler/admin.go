package handler

import (
	"net/http"
	"time"

	"github.com/yndnr/rolloutkv/internal/core/domain"
	"github.com/yndnr/rolloutkv/internal/infra/buildinfo"
	"github.com/yndnr/rolloutkv/internal/protocol"
	"github.com/yndnr/rolloutkv/internal/telemetry/logger"
)

// handleClearInstance handles POST /admin/v1/instances/{name}/clear.
func (h *Handler) handleClearInstance(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	ctx := logger.WithInstance(r.Context(), name)
	resp := h.registry.Dispatch(ctx, &protocol.Request{
		Instance: name,
		Op:       domain.OpClearAll,
	})
	if resp.Success() {
		h.logger.InfoContext(ctx, "instance cleared")
	}
	h.writeResult(w, r, resp)
}

// handleAdminStatus handles GET /admin/v1/status/summary.
func (h *Handler) handleAdminStatus(w http.ResponseWriter, r *http.Request) {
	names := h.registry.Names()
	h.writeJSON(w, r, http.StatusOK, AdminStatusResponse{
		Status:        "running",
		Build:         buildinfo.Get(),
		StartedAt:     h.started.UTC(),
		UptimeSeconds: int64(time.Since(h.started).Seconds()),
		InstanceCount: len(names),
		Instances:     names,
	})
}
