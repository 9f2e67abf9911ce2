package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/yndnr/rolloutkv/internal/core/domain"
	"github.com/yndnr/rolloutkv/internal/protocol"
	"github.com/yndnr/rolloutkv/internal/telemetry/logger"
	"github.com/yndnr/rolloutkv/internal/telemetry/metric"
	"github.com/yndnr/rolloutkv/internal/transport"
	"github.com/yndnr/rolloutkv/pkg/token"
)

// Context keys for request-scoped values.
type contextKey string

// ContextKeyStartTime is the context key for request start time.
const ContextKeyStartTime contextKey = "start_time"

// Middleware wraps an http.Handler with additional functionality.
type Middleware func(http.Handler) http.Handler

// Chain chains multiple middlewares together. The first middleware runs
// outermost.
func Chain(h http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		h = middlewares[i](h)
	}
	return h
}

// RequestID adds a unique request ID to each request.
// A caller-supplied X-Request-ID is kept so adapter logs and server logs
// correlate.
func RequestID() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(transport.RequestIDHeader)
			if requestID == "" {
				requestID = domain.NewRequestID()
			}

			w.Header().Set(transport.RequestIDHeader, requestID)

			ctx := logger.WithRequestID(r.Context(), requestID)
			ctx = context.WithValue(ctx, ContextKeyStartTime, time.Now())

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimiterRegistry manages one token bucket per client IP.
type RateLimiterRegistry struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	rate     rate.Limit
	burst    int
	idleTTL  time.Duration
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiterRegistry creates a registry allowing requestsPerSecond per
// client with the given burst. A burst below 1 defaults to the rate.
func NewRateLimiterRegistry(requestsPerSecond, burst int) *RateLimiterRegistry {
	if burst < 1 {
		burst = requestsPerSecond
	}
	return &RateLimiterRegistry{
		limiters: make(map[string]*limiterEntry),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
		idleTTL:  10 * time.Minute,
	}
}

// GetOrCreate retrieves the limiter for key, creating it if needed.
func (r *RateLimiterRegistry) GetOrCreate(key string) *rate.Limiter {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	if e, ok := r.limiters[key]; ok {
		e.lastSeen = now
		return e.limiter
	}

	e := &limiterEntry{
		limiter:  rate.NewLimiter(r.rate, r.burst),
		lastSeen: now,
	}
	r.limiters[key] = e
	return e.limiter
}

// Prune drops limiters idle for longer than the idle TTL.
func (r *RateLimiterRegistry) Prune() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.idleTTL)
	removed := 0
	for key, e := range r.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(r.limiters, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked clients.
func (r *RateLimiterRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}

// RateLimit applies per-client rate limiting.
func RateLimit(limiters *RateLimiterRegistry, metrics *metric.Registry) Middleware {
	var requests int
	var mu sync.Mutex

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiters.GetOrCreate(getClientIP(r)).Allow() {
				if metrics != nil {
					metrics.IncRateLimited()
				}
				w.Header().Set("Retry-After", "1")
				writeDomainError(w, r, domain.ErrRateLimited)
				return
			}

			// Prune idle clients every few thousand requests.
			mu.Lock()
			requests++
			prune := requests%4096 == 0
			mu.Unlock()
			if prune {
				limiters.Prune()
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Audit logs request/response for audit trail.
func Audit(log *slog.Logger, metrics *metric.Registry) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(wrapped, r)

			startTime, ok := r.Context().Value(ContextKeyStartTime).(time.Time)
			if !ok {
				startTime = time.Now()
			}
			duration := time.Since(startTime)

			if metrics != nil {
				route := routeLabel(r)
				metrics.RecordRequest("http", route, strconv.Itoa(wrapped.statusCode))
				metrics.ObserveRequestDuration("http", route, duration.Seconds())
			}

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.statusCode,
				"duration_ms", duration.Milliseconds(),
				"client_ip", getClientIP(r),
			}

			ctx := r.Context()
			if name := r.PathValue("name"); name != "" {
				ctx = logger.WithInstance(ctx, name)
			}
			switch {
			case wrapped.statusCode >= 500:
				log.ErrorContext(ctx, "request completed with error", attrs...)
			case wrapped.statusCode >= 400:
				log.WarnContext(ctx, "request completed with client error", attrs...)
			default:
				log.InfoContext(ctx, "request completed", attrs...)
			}
		})
	}
}

// routeLabel reduces a request to a bounded metric label.
func routeLabel(r *http.Request) string {
	if op := r.PathValue("op"); op != "" {
		return op
	}
	if r.Pattern != "" {
		return r.Pattern
	}
	return "unmatched"
}

// Recover recovers from panics and returns 500 error.
func Recover(log *slog.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.ErrorContext(r.Context(), "panic recovered",
						"error", err,
						"path", r.URL.Path,
					)
					writeDomainError(w, r, domain.ErrStorage.WithDetails("internal server error"))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// AdminAuth requires the X-Admin-Key header to verify against the
// configured argon2id hash.
func AdminAuth(adminKeyHash string, log *slog.Logger, metrics *metric.Registry) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(transport.AdminKeyHeader)
			if key == "" {
				recordAuthFailure(log, metrics, r, "missing")
				writeDomainError(w, r, domain.ErrAdminKeyRequired)
				return
			}
			if !token.Verify(key, adminKeyHash) {
				recordAuthFailure(log, metrics, r, "invalid")
				writeDomainError(w, r, domain.ErrAdminKeyInvalid)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func recordAuthFailure(log *slog.Logger, metrics *metric.Registry, r *http.Request, reason string) {
	if metrics != nil {
		metrics.RecordAuthFailure(reason)
	}
	log.WarnContext(r.Context(), "admin authentication failed",
		"reason", reason,
		"path", r.URL.Path,
		"client_ip", getClientIP(r),
	)
}

// CORS adds Cross-Origin Resource Sharing headers.
func CORS(allowedOrigins []string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// Empty means allow all
			allowed := len(allowedOrigins) == 0
			for _, o := range allowedOrigins {
				if o == "*" || o == origin {
					allowed = true
					break
				}
			}

			if allowed && origin != "" {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Admin-Key, X-Request-ID")
				w.Header().Set("Access-Control-Max-Age", "86400")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *responseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// writeDomainError writes a middleware rejection in the standard envelope.
func writeDomainError(w http.ResponseWriter, r *http.Request, err *domain.DomainError) {
	requestID := logger.RequestIDFromContext(r.Context())

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", err.Code)
	if requestID != "" {
		w.Header().Set(transport.RequestIDHeader, requestID)
	}
	w.WriteHeader(protocol.StatusFor(err.Code))

	body := map[string]any{
		"code":       err.Code,
		"message":    err.Message,
		"request_id": requestID,
		"timestamp":  time.Now().UnixMilli(),
	}
	if err.Details != "" {
		body["details"] = err.Details
	}
	json.NewEncoder(w).Encode(body)
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// net.SplitHostPort handles IPv6 addresses like [::1]:8080
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
