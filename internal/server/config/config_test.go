package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yndnr/rolloutkv/internal/core/domain"
	"github.com/yndnr/rolloutkv/internal/infra/confloader"
	"github.com/yndnr/rolloutkv/internal/storage"
	"github.com/yndnr/rolloutkv/pkg/token"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.HTTP.Addr != DefaultHTTPAddr {
		t.Errorf("HTTP.Addr = %q, want %q", cfg.Server.HTTP.Addr, DefaultHTTPAddr)
	}
	if cfg.Server.HTTP.RateLimit != 0 {
		t.Errorf("RateLimit = %d, want 0 (disabled)", cfg.Server.HTTP.RateLimit)
	}
	if cfg.Server.HTTP.ReadTimeout != DefaultReadTimeout {
		t.Errorf("ReadTimeout = %v, want %v", cfg.Server.HTTP.ReadTimeout, DefaultReadTimeout)
	}

	if cfg.Storage.Backend != storage.KindBadger {
		t.Errorf("Backend = %q, want badger", cfg.Storage.Backend)
	}
	if cfg.Storage.DataDir != DefaultDataDir {
		t.Errorf("DataDir = %q, want %q", cfg.Storage.DataDir, DefaultDataDir)
	}
	if cfg.Storage.Badger.GCInterval != 10*time.Minute {
		t.Errorf("GCInterval = %v, want 10m", cfg.Storage.Badger.GCInterval)
	}
	if cfg.Storage.Badger.GCThreshold != 0.5 {
		t.Errorf("GCThreshold = %v, want 0.5", cfg.Storage.Badger.GCThreshold)
	}
	if !cfg.Storage.Badger.SyncWrites {
		t.Error("SyncWrites should default to true")
	}

	if cfg.Security.AdminKeyHash != "" {
		t.Error("admin routes should be disabled by default")
	}
	if cfg.Log.Level != DefaultLogLevel {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, DefaultLogLevel)
	}
	if cfg.Log.Format != DefaultLogFormat {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, DefaultLogFormat)
	}
	if cfg.Config.Watch {
		t.Error("config.watch should default to false")
	}
}

func TestSanitize(t *testing.T) {
	hash := "$argon2id$v=19$m=16384,t=2,p=2$c2FsdA$a2V5"
	cfg := &ServerConfig{
		Security: SecuritySection{AdminKeyHash: hash},
	}

	sanitized := Sanitize(cfg)

	if cfg.Security.AdminKeyHash != hash {
		t.Error("Original config should not be modified")
	}
	got := sanitized.Security.AdminKeyHash
	if got == hash || strings.Contains(got, "c2FsdA") {
		t.Errorf("admin key hash not masked: %q", got)
	}
	if !strings.HasPrefix(got, "$argon2id$") {
		t.Errorf("masked hash = %q, want the algorithm prefix kept", got)
	}
}

func TestSanitize_EmptyHash(t *testing.T) {
	sanitized := Sanitize(&ServerConfig{})
	if sanitized.Security.AdminKeyHash != "" {
		t.Error("Empty hash should remain empty")
	}
}

func validConfig(t *testing.T) *ServerConfig {
	t.Helper()
	cfg := Default()
	cfg.Storage.DataDir = t.TempDir()
	return cfg
}

func TestVerify_ValidConfig(t *testing.T) {
	if err := Verify(validConfig(t)); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
}

func TestVerify_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ServerConfig)
	}{
		{"bad addr", func(c *ServerConfig) { c.Server.HTTP.Addr = "localhost" }},
		{"cert without key", func(c *ServerConfig) { c.Server.HTTP.TLSCertFile = "/tmp/cert.pem" }},
		{"missing tls files", func(c *ServerConfig) {
			c.Server.HTTP.TLSCertFile = "/nonexistent/cert.pem"
			c.Server.HTTP.TLSKeyFile = "/nonexistent/key.pem"
		}},
		{"negative rate", func(c *ServerConfig) { c.Server.HTTP.RateLimit = -1 }},
		{"unknown backend", func(c *ServerConfig) { c.Storage.Backend = "rocks" }},
		{"empty data dir", func(c *ServerConfig) { c.Storage.DataDir = "" }},
		{"gc threshold", func(c *ServerConfig) { c.Storage.Badger.GCThreshold = 1.5 }},
		{"gc interval", func(c *ServerConfig) { c.Storage.Badger.GCInterval = 0 }},
		{"sqlite synchronous", func(c *ServerConfig) {
			c.Storage.Backend = storage.KindSQLite
			c.Storage.SQLite.Synchronous = "sometimes"
		}},
		{"sqlite without data dir", func(c *ServerConfig) {
			c.Storage.Backend = storage.KindSQLite
			c.Storage.DataDir = ""
		}},
		{"bad admin hash", func(c *ServerConfig) { c.Security.AdminKeyHash = "plaintext" }},
		{"log level", func(c *ServerConfig) { c.Log.Level = "verbose" }},
		{"log format", func(c *ServerConfig) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(cfg)
			err := Verify(cfg)
			if !errors.Is(err, domain.ErrInvalidConfig) {
				t.Errorf("Verify() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestVerify_MemoryBackendIgnoresDataDir(t *testing.T) {
	cfg := validConfig(t)
	cfg.Storage.Backend = storage.KindMemory
	cfg.Storage.DataDir = ""
	if err := Verify(cfg); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
}

func TestVerify_SQLiteBackend(t *testing.T) {
	cfg := validConfig(t)
	cfg.Storage.Backend = storage.KindSQLite
	cfg.Storage.SQLite.Synchronous = "normal"
	if err := Verify(cfg); err != nil {
		t.Errorf("Verify failed: %v", err)
	}

	kv := ToKVConfig(cfg)
	if kv.Engine != storage.KindSQLite || kv.SQLite.Synchronous != "NORMAL" {
		t.Errorf("kv = %+v", kv)
	}
	if kv.SQLite.BusyTimeout != DefaultSQLiteBusyTimeout {
		t.Errorf("BusyTimeout = %v", kv.SQLite.BusyTimeout)
	}
}

func TestVerify_AdminKeyHash(t *testing.T) {
	hash, err := token.Hash("rkak_secret")
	if err != nil {
		t.Fatal(err)
	}
	cfg := validConfig(t)
	cfg.Security.AdminKeyHash = hash
	if err := Verify(cfg); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
}

func TestVerify_CreateDataDir(t *testing.T) {
	newDir := filepath.Join(t.TempDir(), "subdir", "data")

	cfg := validConfig(t)
	cfg.Storage.DataDir = newDir

	if err := Verify(cfg); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
	if _, err := os.Stat(newDir); os.IsNotExist(err) {
		t.Error("Data directory should have been created")
	}
}

func TestToKVConfig(t *testing.T) {
	cfg := Default()
	cfg.Storage.DataDir = "/data"
	cfg.Storage.Badger.GCInterval = 5 * time.Minute
	cfg.Storage.Badger.CacheSizeMB = 32
	cfg.Storage.Badger.SyncWrites = false

	kv := ToKVConfig(cfg)
	if kv.Engine != storage.KindBadger || kv.Dir != "/data" {
		t.Errorf("kv = %+v", kv)
	}
	if kv.Badger.GCInterval != "5m0s" {
		t.Errorf("GCInterval = %q", kv.Badger.GCInterval)
	}
	if kv.Badger.CacheSize != 32<<20 {
		t.Errorf("CacheSize = %d", kv.Badger.CacheSize)
	}
	if kv.Badger.SyncWrites {
		t.Error("SyncWrites should follow the config")
	}
	if _, err := time.ParseDuration(kv.Badger.GCInterval); err != nil {
		t.Errorf("GCInterval not parseable: %v", err)
	}
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "server.yaml")
	content := `
server:
  http:
    addr: "0.0.0.0:9000"
    rate_limit: 50
storage:
  backend: memory
  badger:
    gc_interval: 2m
log:
  level: debug
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ROLLOUTKV_LOG__FORMAT", "text")

	cfg := Default()
	if err := confloader.NewLoader(confloader.WithConfigFile(path)).Load(cfg); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTP.Addr != "0.0.0.0:9000" {
		t.Errorf("Addr = %q", cfg.Server.HTTP.Addr)
	}
	if cfg.Server.HTTP.RateLimit != 50 {
		t.Errorf("RateLimit = %d", cfg.Server.HTTP.RateLimit)
	}
	if cfg.Storage.Backend != storage.KindMemory {
		t.Errorf("Backend = %q", cfg.Storage.Backend)
	}
	if cfg.Storage.Badger.GCInterval != 2*time.Minute {
		t.Errorf("GCInterval = %v", cfg.Storage.Badger.GCInterval)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "text" {
		t.Errorf("Log = %+v", cfg.Log)
	}
	// Untouched keys keep their defaults
	if cfg.Server.HTTP.ReadTimeout != DefaultReadTimeout {
		t.Errorf("ReadTimeout = %v, want default", cfg.Server.HTTP.ReadTimeout)
	}
	if cfg.Storage.Badger.GCThreshold != DefaultGCThreshold {
		t.Errorf("GCThreshold = %v, want default", cfg.Storage.Badger.GCThreshold)
	}
}
