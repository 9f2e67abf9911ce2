// Package protocol defines the request/response messages exchanged between
// the storage adapter and engine instances.
//
// A request carries an operation selector, a primary parameter (the key or
// prefix) and an optional JSON body. A response carries a status and an
// optional JSON body; an empty body means "absent" or "void".
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/yndnr/rolloutkv/internal/core/domain"
)

// Status values reuse HTTP status codes so the HTTP transport can pass them
// through unchanged.
const (
	StatusOK          = http.StatusOK
	StatusNoContent   = http.StatusNoContent
	StatusBadRequest  = http.StatusBadRequest
	StatusNotFound    = http.StatusNotFound
	StatusTooMany     = http.StatusTooManyRequests
	StatusInternal    = http.StatusInternalServerError
	StatusUnavailable = http.StatusServiceUnavailable
)

// MaxBodyBytes bounds one operation body on every transport.
const MaxBodyBytes = 16 << 20

// Request is one operation addressed to one engine instance.
type Request struct {
	Instance string          `json:"instance"`
	Op       domain.Op       `json:"op"`
	Key      string          `json:"key,omitempty"`
	Body     json.RawMessage `json:"body,omitempty"`
}

// Response is the engine's reply to a Request.
type Response struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body,omitempty"`
	Error  *ErrorBody      `json:"error,omitempty"`
}

// ErrorBody describes a failed operation.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// Success reports whether the response carries a 2xx status.
func (r *Response) Success() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// IsEmpty reports whether the response carries no result body.
func (r *Response) IsEmpty() bool {
	return r == nil || len(bytes.TrimSpace(r.Body)) == 0
}

// Err converts a failure response into a domain error.
// It returns nil for successful responses.
func (r *Response) Err() error {
	if r == nil {
		return domain.ErrRemote.WithDetails("nil response")
	}
	if r.Success() {
		return nil
	}
	if r.Error == nil || r.Error.Code == "" {
		return domain.ErrRemote.WithDetails(http.StatusText(r.Status))
	}
	return &domain.DomainError{
		Code:    r.Error.Code,
		Message: r.Error.Message,
		Details: r.Error.Details,
	}
}

// EncodeBody marshals v into a request or response body.
func EncodeBody(v any) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, domain.ErrInvalidRequest.WithCause(err)
	}
	return data, nil
}

// DecodeBody unmarshals a body into v.
func DecodeBody(body json.RawMessage, v any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return domain.ErrInvalidRequest.WithDetails("missing body")
	}
	if err := json.Unmarshal(body, v); err != nil {
		var de *domain.DomainError
		if errors.As(err, &de) {
			return de
		}
		return domain.ErrInvalidRequest.WithCause(err)
	}
	return nil
}

// OK builds a successful response carrying v as JSON.
func OK(v any) *Response {
	body, err := EncodeBody(v)
	if err != nil {
		return Fail(err)
	}
	return &Response{Status: StatusOK, Body: body}
}

// Empty builds a successful response with no body.
func Empty() *Response {
	return &Response{Status: StatusNoContent}
}

// Fail builds a failure response from an error.
func Fail(err error) *Response {
	var de *domain.DomainError
	if !errors.As(err, &de) {
		de = domain.ErrStorage.WithCause(err)
	}
	return &Response{
		Status: StatusFor(de.Code),
		Error: &ErrorBody{
			Code:    de.Code,
			Message: de.Message,
			Details: de.Details,
		},
	}
}

// StatusFor maps a domain error code to a response status.
func StatusFor(code string) int {
	switch code {
	case domain.ErrUnknownOperation.Code:
		return StatusNotFound
	case domain.ErrInvalidRequest.Code, domain.ErrInvalidValue.Code, domain.ErrInvalidInstanceName.Code:
		return StatusBadRequest
	case domain.ErrEngineClosed.Code:
		return StatusUnavailable
	case domain.ErrRateLimited.Code:
		return StatusTooMany
	case domain.ErrAdminKeyRequired.Code:
		return http.StatusUnauthorized
	case domain.ErrAdminKeyInvalid.Code:
		return http.StatusForbidden
	default:
		return StatusInternal
	}
}
