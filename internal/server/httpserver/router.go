package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/rolloutkv/internal/engine"
	"github.com/yndnr/rolloutkv/internal/server/httpserver/handler"
	"github.com/yndnr/rolloutkv/internal/telemetry/metric"
	"github.com/yndnr/rolloutkv/internal/transport"
)

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Registry hosts the engine instances.
	Registry *engine.Registry

	// Logger for request logging.
	Logger *slog.Logger

	// Metrics records request metrics and serves /metrics. Nil disables both.
	Metrics *metric.Registry

	// AdminKeyHash is the argon2id hash of the admin key. Empty leaves the
	// admin routes unregistered.
	AdminKeyHash string

	// RateLimit is the per-client rate limit (requests/second). 0 disables it.
	RateLimit int

	// RateBurst is the per-client burst. Defaults to RateLimit.
	RateBurst int

	// CORSAllowedOrigins is the list of allowed CORS origins (empty = no CORS).
	CORSAllowedOrigins []string

	// EnableAudit enables audit logging for all requests.
	EnableAudit bool
}

// NewRouter creates and configures the HTTP router with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	h := handler.New(cfg.Registry, log)

	// Order: Recover -> RequestID -> CORS -> RateLimit -> Audit -> route
	base := []Middleware{Recover(log), RequestID()}
	if len(cfg.CORSAllowedOrigins) > 0 {
		base = append(base, CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.RateLimit > 0 {
		limiters := NewRateLimiterRegistry(cfg.RateLimit, cfg.RateBurst)
		base = append(base, RateLimit(limiters, cfg.Metrics))
	}
	if cfg.EnableAudit {
		base = append(base, Audit(log, cfg.Metrics))
	}

	mux := http.NewServeMux()

	// Health endpoints skip rate limiting so health checks keep working under load.
	health := Chain(h, Recover(log), RequestID())
	mux.Handle("GET /health", health)
	mux.Handle("GET /ready", health)

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", Chain(cfg.Metrics.Handler(), Recover(log)))
	}

	// Data plane
	business := Chain(h, base...)
	mux.Handle("POST /v1/instances/{name}/ops/{op}", business)

	path, connectHandler := transport.NewConnectHandler(cfg.Registry,
		transport.WithHandlerLogger(log),
		transport.WithAdminKeyHash(cfg.AdminKeyHash),
	)
	mux.Handle(path, Chain(connectHandler, base...))

	// Admin API
	if cfg.AdminKeyHash != "" {
		admin := Chain(h, append(base, AdminAuth(cfg.AdminKeyHash, log, cfg.Metrics))...)
		mux.Handle("POST /admin/v1/instances/{name}/clear", admin)
		mux.Handle("GET /admin/v1/status/summary", admin)
	}

	return mux
}
