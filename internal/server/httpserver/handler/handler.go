package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/yndnr/rolloutkv/internal/core/domain"
	"github.com/yndnr/rolloutkv/internal/engine"
	"github.com/yndnr/rolloutkv/internal/protocol"
	"github.com/yndnr/rolloutkv/internal/telemetry/logger"
)

// Handler serves the engine's HTTP routes.
type Handler struct {
	registry *engine.Registry
	logger   *slog.Logger
	started  time.Time
	mux      *http.ServeMux
}

// New creates a Handler dispatching into registry.
func New(registry *engine.Registry, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	h := &Handler{
		registry: registry,
		logger:   log,
		started:  time.Now(),
		mux:      http.NewServeMux(),
	}

	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)

	h.mux.HandleFunc("POST /v1/instances/{name}/ops/{op}", h.handleOp)

	h.mux.HandleFunc("POST /admin/v1/instances/{name}/clear", h.handleClearInstance)
	h.mux.HandleFunc("GET /admin/v1/status/summary", h.handleAdminStatus)
}

// writeJSON writes a JSON response with standard envelope format.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := getRequestID(r)
	response := NewResponse(requestID, data)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// writeError writes an error response with standard envelope format.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	requestID := getRequestID(r)
	response := NewErrorResponse(requestID, code, message, details)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.Header().Set("X-Request-ID", requestID)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(response)
}

// writeResult writes an engine response. Successful results go out as the
// raw body so clients decode them exactly as the engine produced them.
func (h *Handler) writeResult(w http.ResponseWriter, r *http.Request, resp *protocol.Response) {
	if !resp.Success() {
		h.writeEngineError(w, r, resp)
		return
	}

	w.Header().Set("X-Request-ID", getRequestID(r))
	if resp.IsEmpty() {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	if _, err := w.Write(resp.Body); err != nil {
		h.logger.DebugContext(r.Context(), "failed to write result", "error", err)
	}
}

func (h *Handler) writeEngineError(w http.ResponseWriter, r *http.Request, resp *protocol.Response) {
	body := resp.Error
	if body == nil {
		body = &protocol.ErrorBody{Code: domain.ErrStorage.Code, Message: domain.ErrStorage.Message}
	}
	if resp.Status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "engine operation failed",
			"path", r.URL.Path,
			"code", body.Code,
			"details", body.Details,
		)
	}

	var details any
	if body.Details != "" {
		details = body.Details
	}
	h.writeError(w, r, resp.Status, body.Code, body.Message, details)
}

// handleServiceError converts errors raised before dispatch to HTTP responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	h.writeEngineError(w, r, protocol.Fail(err))
}

// getRequestID extracts request ID from context or header.
func getRequestID(r *http.Request) string {
	if reqID := logger.RequestIDFromContext(r.Context()); reqID != "" {
		return reqID
	}
	return r.Header.Get("X-Request-ID")
}
