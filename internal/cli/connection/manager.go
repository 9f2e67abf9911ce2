package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/yndnr/rolloutkv/internal/adapter"
	"github.com/yndnr/rolloutkv/internal/core/domain"
	"github.com/yndnr/rolloutkv/internal/infra/tlsroots"
	"github.com/yndnr/rolloutkv/internal/transport"
)

// Transport names.
const (
	TransportHTTP    = "http"
	TransportConnect = "connect"
)

const userAgent = "rolloutkv-cli/1.0"

// ErrNotConnected is returned when a command needs a connection before
// Connect was called.
var ErrNotConnected = errors.New("not connected to a server")

// Connection describes one engine instance on one server.
type Connection struct {
	Name      string
	Server    string
	Instance  string
	Transport string
	AdminKey  string
	Timeout   time.Duration
	// CACert is a PEM file trusted in addition to the system roots.
	CACert string
}

// Validate checks the connection settings.
func (c *Connection) Validate() error {
	if c.Server == "" {
		return fmt.Errorf("server address required")
	}
	if err := domain.ValidateInstanceName(c.Instance); err != nil {
		return err
	}
	switch c.Transport {
	case TransportHTTP, TransportConnect:
	default:
		return fmt.Errorf("unknown transport %q (want %s or %s)", c.Transport, TransportHTTP, TransportConnect)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	return nil
}

// Client returns the HTTP client shared by every request of the
// connection.
func (c *Connection) Client() (*http.Client, error) {
	tlsConfig, err := tlsroots.ClientConfig(c.CACert)
	if err != nil {
		return nil, err
	}
	client := &http.Client{Timeout: c.Timeout}
	if tlsConfig != nil {
		rt := http.DefaultTransport.(*http.Transport).Clone()
		rt.TLSClientConfig = tlsConfig
		client.Transport = rt
	}
	return client, nil
}

// Handle returns the transport handle for the connection over client.
func (c *Connection) Handle(client *http.Client) transport.Handle {
	if c.Transport == TransportConnect {
		return transport.NewConnect(c.Server, c.Instance,
			transport.WithConnectHTTPClient(client),
			transport.WithConnectAdminKey(c.AdminKey),
			transport.WithConnectTimeout(c.Timeout))
	}
	return transport.NewHTTP(c.Server, c.Instance,
		transport.WithHTTPClient(client),
		transport.WithAdminKey(c.AdminKey),
		transport.WithUserAgent(userAgent))
}

// Manager holds the active connection of a CLI invocation.
type Manager struct {
	current *Connection
	client  *http.Client
	adapter *adapter.Adapter
	logger  *slog.Logger
}

// NewManager creates a new connection manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{logger: logger}
}

// Connect validates conn and makes it the current connection.
// No request is sent until a command runs.
func (m *Manager) Connect(ctx context.Context, conn *Connection) error {
	if err := conn.Validate(); err != nil {
		return err
	}

	client, err := conn.Client()
	if err != nil {
		return err
	}

	a := adapter.New(conn.Handle(client), adapter.WithLogger(m.logger))
	if err := a.Connect(ctx); err != nil {
		return err
	}

	if m.adapter != nil {
		m.adapter.Disconnect(ctx)
	}
	m.current = conn
	m.client = client
	m.adapter = a
	return nil
}

// Disconnect drops the current connection.
func (m *Manager) Disconnect(ctx context.Context) error {
	if m.adapter == nil {
		return nil
	}
	err := m.adapter.Disconnect(ctx)
	m.current = nil
	m.client = nil
	m.adapter = nil
	return err
}

// Current returns the current connection.
func (m *Manager) Current() *Connection {
	return m.current
}

// IsConnected returns true if connected to a server.
func (m *Manager) IsConnected() bool {
	return m.current != nil
}

// Storage returns the storage adapter of the current connection.
func (m *Manager) Storage() (*adapter.Adapter, error) {
	if m.adapter == nil {
		return nil, ErrNotConnected
	}
	return m.adapter, nil
}

// Maintenance returns the maintenance entry point of the current connection.
func (m *Manager) Maintenance() (*adapter.Maintenance, error) {
	if m.current == nil {
		return nil, ErrNotConnected
	}
	return adapter.NewMaintenance(m.current.Handle(m.client), m.logger), nil
}

// HTTPClient returns a client for the non-operation routes of the current
// server.
func (m *Manager) HTTPClient() (*HTTPClient, error) {
	if m.current == nil {
		return nil, ErrNotConnected
	}
	return NewHTTPClient(m.current.Server, m.current.AdminKey, m.client), nil
}
