package logger

import (
	"context"
	"log/slog"
)

type ctxKey int

const (
	requestIDKey ctxKey = iota
	instanceKey
)

// WithRequestID returns ctx carrying the request ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID carried by ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithInstance returns ctx carrying the name of the engine instance the
// current request addresses.
func WithInstance(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, instanceKey, name)
}

// InstanceFromContext returns the instance name carried by ctx, or "".
func InstanceFromContext(ctx context.Context) string {
	name, _ := ctx.Value(instanceKey).(string)
	return name
}

// contextHandler appends the request ID and instance found in the record's
// context.
type contextHandler struct {
	slog.Handler
}

// NewContextHandler wraps h so records logged with a context carry its
// request ID and instance.
func NewContextHandler(h slog.Handler) slog.Handler {
	if _, ok := h.(contextHandler); ok {
		return h
	}
	return contextHandler{Handler: h}
}

func (h contextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := RequestIDFromContext(ctx); id != "" {
		r.AddAttrs(slog.String("request_id", id))
	}
	if name := InstanceFromContext(ctx); name != "" {
		r.AddAttrs(slog.String("instance", name))
	}
	return h.Handler.Handle(ctx, r)
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{Handler: h.Handler.WithGroup(name)}
}
