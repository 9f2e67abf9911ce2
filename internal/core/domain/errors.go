package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain error with a stable, structured error code.
//
// Codes travel across the wire unchanged, so a DomainError raised inside an
// engine instance can be rebuilt on the adapter side and matched with errors.Is.
type DomainError struct {
	Code    string // Error code (e.g., "RK-OP-4040")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// Wrap wraps an error with this domain error as the cause.
func (e *DomainError) Wrap(cause error) *DomainError {
	return e.WithCause(cause)
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Configuration Errors (CONF)
// ============================================================================

var (
	// ErrNoEngineHandle indicates an adapter was built without an engine handle.
	ErrNoEngineHandle = NewDomainError("RK-CONF-5000", "no engine handle configured")

	// ErrInvalidConfig indicates the configuration failed validation.
	ErrInvalidConfig = NewDomainError("RK-CONF-5001", "invalid configuration")
)

// ============================================================================
// Operation and Request Errors (OP, REQ, INST)
// ============================================================================

var (
	// ErrUnknownOperation indicates the operation selector is not recognized.
	ErrUnknownOperation = NewDomainError("RK-OP-4040", "unknown operation")

	// ErrInvalidRequest indicates a malformed request body or parameter.
	ErrInvalidRequest = NewDomainError("RK-REQ-4000", "invalid request")

	// ErrInvalidValue indicates a value of the wrong kind for the operation.
	ErrInvalidValue = NewDomainError("RK-REQ-4001", "invalid value")

	// ErrInvalidInstanceName indicates an engine instance name failed validation.
	ErrInvalidInstanceName = NewDomainError("RK-INST-4000", "invalid instance name")
)

// ============================================================================
// Storage Errors (STORE)
// ============================================================================

var (
	// ErrStorage indicates a failure in the backing store.
	ErrStorage = NewDomainError("RK-STORE-5000", "storage error")

	// ErrEngineClosed indicates the engine instance has been shut down.
	ErrEngineClosed = NewDomainError("RK-STORE-5030", "engine instance closed")
)

// ============================================================================
// Admin and Transport Errors (AUTH, RATE, REMOTE)
// ============================================================================

var (
	// ErrAdminKeyRequired indicates no admin key was presented.
	ErrAdminKeyRequired = NewDomainError("RK-AUTH-4010", "admin key required")

	// ErrAdminKeyInvalid indicates the presented admin key did not verify.
	ErrAdminKeyInvalid = NewDomainError("RK-AUTH-4030", "admin key invalid")

	// ErrRateLimited indicates too many requests from one client.
	ErrRateLimited = NewDomainError("RK-RATE-4290", "too many requests")

	// ErrRemote indicates a failure response that carried no known error code.
	ErrRemote = NewDomainError("RK-REMOTE-5020", "remote engine failure")
)
