package transport

import (
	"context"

	"github.com/yndnr/rolloutkv/internal/core/domain"
	"github.com/yndnr/rolloutkv/internal/engine"
	"github.com/yndnr/rolloutkv/internal/protocol"
)

// Handle is an opaque reference to one engine instance.
//
// RoundTrip sends one request and returns the engine's response. A non-nil
// error means the request could not be exchanged at all; failures reported
// by the engine come back as a non-success Response.
type Handle interface {
	RoundTrip(ctx context.Context, req *protocol.Request) (*protocol.Response, error)
}

// HandleFunc adapts a function to the Handle interface.
type HandleFunc func(ctx context.Context, req *protocol.Request) (*protocol.Response, error)

// RoundTrip calls f(ctx, req).
func (f HandleFunc) RoundTrip(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	return f(ctx, req)
}

// Local dispatches requests to an in-process registry.
type Local struct {
	registry *engine.Registry
	instance string
}

// NewLocal returns a handle bound to the named instance of registry.
func NewLocal(registry *engine.Registry, instance string) *Local {
	return &Local{registry: registry, instance: instance}
}

// RoundTrip implements Handle.
func (l *Local) RoundTrip(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.registry == nil {
		return nil, domain.ErrNoEngineHandle
	}
	return l.registry.Dispatch(ctx, stamp(req, l.instance)), nil
}

// stamp returns a copy of req addressed to instance.
func stamp(req *protocol.Request, instance string) *protocol.Request {
	out := *req
	out.Instance = instance
	return &out
}
