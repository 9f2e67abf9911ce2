package httpserver

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"time"
)

// Options configures the listening server.
type Options struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	TLSCertFile  string
	TLSKeyFile   string
	// TLSConfig, when set, serves TLS with this config and ignores the
	// certificate files.
	TLSConfig *tls.Config
}

// Server represents the HTTP server.
type Server struct {
	httpServer *http.Server
	opts       Options
}

// New creates a new HTTP server.
func New(addr string, handler http.Handler, opts Options) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadTimeout:       opts.ReadTimeout,
			ReadHeaderTimeout: opts.ReadTimeout,
			WriteTimeout:      opts.WriteTimeout,
			TLSConfig:         opts.TLSConfig,
		},
		opts: opts,
	}
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}

// TLSEnabled reports whether the server serves HTTPS.
func (s *Server) TLSEnabled() bool {
	return s.opts.TLSConfig != nil || (s.opts.TLSCertFile != "" && s.opts.TLSKeyFile != "")
}

func (s *Server) keyPair() (string, string) {
	if s.opts.TLSConfig != nil {
		return "", ""
	}
	return s.opts.TLSCertFile, s.opts.TLSKeyFile
}

// ListenAndServe starts the server, using TLS when a certificate is
// configured. It returns nil after Shutdown.
func (s *Server) ListenAndServe() error {
	var err error
	if s.TLSEnabled() {
		err = s.httpServer.ListenAndServeTLS(s.keyPair())
	} else {
		err = s.httpServer.ListenAndServe()
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Serve serves on an existing listener. It returns nil after Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	var err error
	if s.TLSEnabled() {
		certFile, keyFile := s.keyPair()
		err = s.httpServer.ServeTLS(ln, certFile, keyFile)
	} else {
		err = s.httpServer.Serve(ln)
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
