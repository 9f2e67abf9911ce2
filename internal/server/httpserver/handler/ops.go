package handler

import (
	"io"
	"net/http"

	"github.com/yndnr/rolloutkv/internal/core/domain"
	"github.com/yndnr/rolloutkv/internal/protocol"
	"github.com/yndnr/rolloutkv/internal/telemetry/logger"
)

// handleOp handles POST /v1/instances/{name}/ops/{op}.
//
// The key travels in the "key" query parameter and the optional JSON body is
// passed to the engine untouched.
func (h *Handler) handleOp(w http.ResponseWriter, r *http.Request) {
	op := domain.Op(r.PathValue("op"))
	if op.IsAdmin() {
		// Admin selectors have their own authenticated route.
		h.handleServiceError(w, r, domain.ErrUnknownOperation.WithDetails(string(op)))
		return
	}

	name := r.PathValue("name")
	r = r.WithContext(logger.WithInstance(r.Context(), name))

	body, err := readBody(w, r)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}

	resp := h.registry.Dispatch(r.Context(), &protocol.Request{
		Instance: name,
		Op:       op,
		Key:      r.URL.Query().Get("key"),
		Body:     body,
	})
	h.writeResult(w, r, resp)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, protocol.MaxBodyBytes))
	if err != nil {
		return nil, domain.ErrInvalidRequest.WithCause(err).WithDetails("read body")
	}
	return body, nil
}
