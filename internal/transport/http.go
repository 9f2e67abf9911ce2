package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yndnr/rolloutkv/internal/core/domain"
	"github.com/yndnr/rolloutkv/internal/protocol"
	"github.com/yndnr/rolloutkv/internal/telemetry/logger"
)

const (
	// AdminKeyHeader carries the plaintext admin key on admin requests.
	AdminKeyHeader = "X-Admin-Key"
	// RequestIDHeader carries the request ID.
	RequestIDHeader = "X-Request-ID"

	defaultUserAgent = "rolloutkv-adapter/1.0"
	maxResponseBytes = 64 << 20
)

// OpPath returns the HTTP route of op on the named instance.
func OpPath(instance string, op domain.Op) string {
	return "/v1/instances/" + url.PathEscape(instance) + "/ops/" + url.PathEscape(string(op))
}

// ClearPath returns the HTTP admin route that clears the named instance.
func ClearPath(instance string) string {
	return "/admin/v1/instances/" + url.PathEscape(instance) + "/clear"
}

// HTTP is a handle that talks to a rolloutkv server over plain HTTP.
type HTTP struct {
	baseURL   string
	instance  string
	adminKey  string
	userAgent string
	client    *http.Client
}

// HTTPOption configures an HTTP handle.
type HTTPOption func(*HTTP)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTP) {
		h.client = c
	}
}

// WithTimeout sets a per-request timeout. Zero means no timeout.
func WithTimeout(d time.Duration) HTTPOption {
	return func(h *HTTP) {
		h.client.Timeout = d
	}
}

// WithAdminKey sets the admin key sent on clearAll requests.
func WithAdminKey(key string) HTTPOption {
	return func(h *HTTP) {
		h.adminKey = key
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(h *HTTP) {
		h.userAgent = ua
	}
}

// NewHTTP returns a handle for the named instance on server.
// A server without a scheme is assumed to be plain http.
func NewHTTP(server, instance string, opts ...HTTPOption) *HTTP {
	h := &HTTP{
		baseURL:   NormalizeBaseURL(server),
		instance:  instance,
		userAgent: defaultUserAgent,
		client:    &http.Client{},
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NormalizeBaseURL adds the http:// scheme when missing and strips any
// trailing slash.
func NormalizeBaseURL(server string) string {
	baseURL := server
	if !strings.HasPrefix(baseURL, "http://") && !strings.HasPrefix(baseURL, "https://") {
		baseURL = "http://" + baseURL
	}
	return strings.TrimRight(baseURL, "/")
}

// BaseURL returns the server base URL.
func (h *HTTP) BaseURL() string {
	return h.baseURL
}

// RoundTrip implements Handle.
//
// clearAll is sent to the admin route with the configured admin key; every
// other selector goes to the operation route with the key as a query
// parameter.
func (h *HTTP) RoundTrip(ctx context.Context, req *protocol.Request) (*protocol.Response, error) {
	var target string
	if req.Op == domain.OpClearAll {
		target = h.baseURL + ClearPath(h.instance)
	} else {
		target = h.baseURL + OpPath(h.instance, req.Op)
		if req.Key != "" {
			target += "?" + url.Values{"key": {req.Key}}.Encode()
		}
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("User-Agent", h.userAgent)
	if id := logger.RequestIDFromContext(ctx); id != "" {
		httpReq.Header.Set(RequestIDHeader, id)
	}
	if req.Op == domain.OpClearAll && h.adminKey != "" {
		httpReq.Header.Set(AdminKeyHeader, h.adminKey)
	}

	httpResp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send %s: %w", req.Op, err)
	}
	defer httpResp.Body.Close()

	return ParseResponse(httpResp)
}

// errorEnvelope is the server's JSON error envelope.
type errorEnvelope struct {
	Code      string          `json:"code"`
	Message   string          `json:"message"`
	RequestID string          `json:"request_id"`
	Details   json.RawMessage `json:"details,omitempty"`
}

// ParseResponse converts an HTTP response into a protocol response.
// Failure statuses have their error envelope decoded into ErrorBody.
func ParseResponse(resp *http.Response) (*protocol.Response, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	out := &protocol.Response{Status: resp.StatusCode}
	if resp.StatusCode < 400 {
		if resp.StatusCode != http.StatusNoContent && len(bytes.TrimSpace(data)) > 0 {
			out.Body = data
		}
		return out, nil
	}

	var env errorEnvelope
	if err := json.Unmarshal(data, &env); err == nil && env.Code != "" {
		out.Error = &protocol.ErrorBody{
			Code:    env.Code,
			Message: env.Message,
			Details: detailsString(env.Details),
		}
	}
	return out, nil
}

// detailsString renders envelope details as a plain string.
func detailsString(raw json.RawMessage) string {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
