package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"

	"github.com/yndnr/rolloutkv/internal/core/domain"
	"github.com/yndnr/rolloutkv/internal/engine"
	"github.com/yndnr/rolloutkv/internal/protocol"
	"github.com/yndnr/rolloutkv/internal/telemetry/logger"
	"github.com/yndnr/rolloutkv/pkg/token"
)

const (
	// EngineServiceName is the fully-qualified Connect service name.
	EngineServiceName = "rolloutkv.v1.EngineService"
	// DispatchProcedure is the Connect procedure carrying one engine request.
	DispatchProcedure = "/" + EngineServiceName + "/Dispatch"
)

// jsonCodec marshals plain Go structs with encoding/json, so the Connect
// transport needs no generated message types.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// Connect is a handle that calls the engine service over connectrpc.
type Connect struct {
	instance string
	adminKey string
	client   *connect.Client[protocol.Request, protocol.Response]
}

// ConnectOption configures a Connect handle.
type ConnectOption func(*connectConfig)

type connectConfig struct {
	httpClient connect.HTTPClient
	adminKey   string
	timeout    time.Duration
}

// WithConnectHTTPClient replaces the underlying HTTP client.
func WithConnectHTTPClient(c connect.HTTPClient) ConnectOption {
	return func(cfg *connectConfig) {
		cfg.httpClient = c
	}
}

// WithConnectAdminKey sets the admin key sent on clearAll requests.
func WithConnectAdminKey(key string) ConnectOption {
	return func(cfg *connectConfig) {
		cfg.adminKey = key
	}
}

// WithConnectTimeout sets a per-call timeout. Zero means no timeout.
func WithConnectTimeout(d time.Duration) ConnectOption {
	return func(cfg *connectConfig) {
		cfg.timeout = d
	}
}

// NewConnect returns a Connect handle for the named instance on server.
func NewConnect(server, instance string, opts ...ConnectOption) *Connect {
	cfg := &connectConfig{httpClient: http.DefaultClient}
	for _, opt := range opts {
		opt(cfg)
	}

	clientOpts := []connect.ClientOption{connect.WithCodec(jsonCodec{})}
	if cfg.timeout > 0 {
		clientOpts = append(clientOpts, connect.WithInterceptors(timeoutInterceptor(cfg.timeout)))
	}

	return &Connect{
		instance: instance,
		adminKey: cfg.adminKey,
		client: connect.NewClient[protocol.Request, protocol.Response](
			cfg.httpClient,
			NormalizeBaseURL(server)+DispatchProcedure,
			clientOpts...,
		),
	}
}

// RoundTrip implements Handle.
func (c *Connect) RoundTrip(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	creq := connect.NewRequest(stamp(req, c.instance))
	if req.Op == domain.OpClearAll && c.adminKey != "" {
		creq.Header().Set(AdminKeyHeader, c.adminKey)
	}
	if id := logger.RequestIDFromContext(ctx); id != "" {
		creq.Header().Set(RequestIDHeader, id)
	}

	cresp, err := c.client.CallUnary(ctx, creq)
	if err != nil {
		return nil, err
	}
	return cresp.Msg, nil
}

func timeoutInterceptor(d time.Duration) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, req)
		}
	}
}

// envelopeBytes is the allowance for the request fields around the body.
const envelopeBytes = 64 << 10

// ConnectHandlerOption configures the server side of the Connect transport.
type ConnectHandlerOption func(*connectHandler)

// WithHandlerLogger sets the handler logger.
func WithHandlerLogger(l *slog.Logger) ConnectHandlerOption {
	return func(h *connectHandler) {
		h.logger = l
	}
}

// WithAdminKeyHash enables clearAll for callers presenting the admin key
// matching hash. Without it clearAll is not routable over Connect.
func WithAdminKeyHash(hash string) ConnectHandlerOption {
	return func(h *connectHandler) {
		h.adminKeyHash = hash
	}
}

// WithReadMaxBytes caps the size of one encoded request message.
func WithReadMaxBytes(n int) ConnectHandlerOption {
	return func(h *connectHandler) {
		h.readMaxBytes = n
	}
}

// WithHandlerInterceptors adds interceptors ahead of the logging interceptor.
func WithHandlerInterceptors(interceptors ...connect.Interceptor) ConnectHandlerOption {
	return func(h *connectHandler) {
		h.interceptors = append(h.interceptors, interceptors...)
	}
}

type connectHandler struct {
	registry     *engine.Registry
	logger       *slog.Logger
	adminKeyHash string
	interceptors []connect.Interceptor
	readMaxBytes int
}

// NewConnectHandler returns the path and handler serving DispatchProcedure
// from registry.
//
// Engine failures travel inside the response message so their codes reach
// the caller intact. Connect errors are reserved for transport problems.
func NewConnectHandler(registry *engine.Registry, opts ...ConnectHandlerOption) (string, http.Handler) {
	h := &connectHandler{
		registry:     registry,
		logger:       slog.Default(),
		readMaxBytes: protocol.MaxBodyBytes + envelopeBytes,
	}
	for _, opt := range opts {
		opt(h)
	}

	interceptors := make([]connect.Interceptor, 0, len(h.interceptors)+1)
	interceptors = append(interceptors, h.interceptors...)
	interceptors = append(interceptors, NewLoggingInterceptor(h.logger))
	handler := connect.NewUnaryHandler(
		DispatchProcedure,
		h.dispatch,
		connect.WithCodec(jsonCodec{}),
		connect.WithInterceptors(interceptors...),
		connect.WithReadMaxBytes(h.readMaxBytes),
	)
	return DispatchProcedure, handler
}

func (h *connectHandler) dispatch(
	ctx context.Context,
	req *connect.Request[protocol.Request],
) (*connect.Response[protocol.Response], error) {
	if req.Msg.Op == domain.OpClearAll {
		if err := h.authorizeAdmin(req.Header().Get(AdminKeyHeader)); err != nil {
			h.logger.WarnContext(ctx, "clearAll rejected", "error", err)
			return connect.NewResponse(protocol.Fail(err)), nil
		}
	}
	return connect.NewResponse(h.registry.Dispatch(ctx, req.Msg)), nil
}

func (h *connectHandler) authorizeAdmin(key string) error {
	if h.adminKeyHash == "" {
		return domain.ErrUnknownOperation.WithDetails("clearAll is admin-only")
	}
	if key == "" {
		return domain.ErrAdminKeyRequired
	}
	if !token.Verify(key, h.adminKeyHash) {
		return domain.ErrAdminKeyInvalid
	}
	return nil
}

// rpcContext copies the caller's request ID and the addressed instance into
// ctx for logging.
func rpcContext(ctx context.Context, req connect.AnyRequest) context.Context {
	if id := req.Header().Get(RequestIDHeader); id != "" {
		ctx = logger.WithRequestID(ctx, id)
	}
	if msg, ok := req.Any().(*protocol.Request); ok && msg.Instance != "" {
		ctx = logger.WithInstance(ctx, msg.Instance)
	}
	return ctx
}

// LoggingInterceptor logs every engine RPC. It also stores the request ID
// and instance in the context handed to the handler.
type LoggingInterceptor struct {
	logger *slog.Logger
}

// NewLoggingInterceptor creates a new logging interceptor.
func NewLoggingInterceptor(l *slog.Logger) *LoggingInterceptor {
	if l == nil {
		l = slog.Default()
	}
	return &LoggingInterceptor{logger: l}
}

// WrapUnary implements connect.Interceptor.
func (i *LoggingInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		start := time.Now()
		ctx = rpcContext(ctx, req)

		resp, err := next(ctx, req)

		duration := time.Since(start)
		if err != nil {
			i.logger.ErrorContext(ctx, "engine rpc error",
				"method", req.Spec().Procedure,
				"peer", req.Peer().Addr,
				"duration_ms", duration.Milliseconds(),
				"error", err)
			return resp, err
		}

		attrs := []any{
			"method", req.Spec().Procedure,
			"peer", req.Peer().Addr,
			"duration_ms", duration.Milliseconds(),
		}
		if msg, ok := resp.Any().(*protocol.Response); ok {
			attrs = append(attrs, "status", msg.Status)
		}
		i.logger.DebugContext(ctx, "engine rpc", attrs...)
		return resp, err
	}
}

// WrapStreamingClient implements connect.Interceptor.
func (i *LoggingInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

// WrapStreamingHandler implements connect.Interceptor.
func (i *LoggingInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return next
}
