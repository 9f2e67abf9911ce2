package handler

import (
	"time"

	"github.com/yndnr/rolloutkv/internal/infra/buildinfo"
)

// Response is the standard API response envelope.
// Envelope responses cover errors, health and admin routes. Successful
// operation results are written raw, and /metrics uses Prometheus format.
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// AdminStatusResponse is the response body for GET /admin/v1/status/summary.
type AdminStatusResponse struct {
	Status        string         `json:"status"`
	Build         buildinfo.Info `json:"build"`
	StartedAt     time.Time      `json:"started_at"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	InstanceCount int            `json:"instance_count"`
	Instances     []string       `json:"instances"`
}
