package connection

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/yndnr/rolloutkv/internal/transport"
)

// HTTPClient performs envelope requests against a rolloutkv server.
type HTTPClient struct {
	baseURL  string
	client   *http.Client
	adminKey string
}

// NewHTTPClient creates a new HTTP client over client, or a default client
// when nil. A server without a scheme is assumed to be plain http.
func NewHTTPClient(server, adminKey string, client *http.Client) *HTTPClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPClient{
		baseURL:  transport.NormalizeBaseURL(server),
		adminKey: adminKey,
		client:   client,
	}
}

// envelope is the success envelope of health and admin routes.
type envelope struct {
	Code      string          `json:"code"`
	RequestID string          `json:"request_id"`
	Data      json.RawMessage `json:"data"`
}

// Get performs a GET request and decodes the envelope data into target.
// Error envelopes are returned as domain errors.
func (c *HTTPClient) Get(ctx context.Context, path string, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	if c.adminKey != "" {
		req.Header.Set(transport.AdminKeyHeader, c.adminKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	parsed, err := transport.ParseResponse(resp)
	if err != nil {
		return err
	}
	if err := parsed.Err(); err != nil {
		return err
	}
	if target == nil || len(parsed.Body) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(parsed.Body, &env); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	if len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, target); err != nil {
		return fmt.Errorf("parse response data: %w", err)
	}
	return nil
}

// BaseURL returns the base URL of the client.
func (c *HTTPClient) BaseURL() string {
	return c.baseURL
}
