package config

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/yndnr/rolloutkv/internal/core/domain"
	"github.com/yndnr/rolloutkv/internal/storage"
	"github.com/yndnr/rolloutkv/pkg/token"
)

// Verify validates the configuration. Errors wrap domain.ErrInvalidConfig.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifySecurity(&cfg.Security); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func invalid(format string, args ...any) error {
	return domain.ErrInvalidConfig.WithDetails(fmt.Sprintf(format, args...))
}

func verifyServer(cfg *ServerSection) error {
	if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
		return invalid("server.http.addr %q: %v", cfg.HTTP.Addr, err)
	}
	if (cfg.HTTP.TLSCertFile == "") != (cfg.HTTP.TLSKeyFile == "") {
		return invalid("server.http.tls_cert_file and tls_key_file must be set together")
	}
	for _, f := range []string{cfg.HTTP.TLSCertFile, cfg.HTTP.TLSKeyFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			return invalid("tls file %s: %v", f, err)
		}
	}
	if cfg.HTTP.RateLimit < 0 || cfg.HTTP.RateBurst < 0 {
		return invalid("server.http.rate_limit and rate_burst must not be negative")
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	switch cfg.Backend {
	case storage.KindMemory:
		return nil
	case storage.KindBadger, storage.KindSQLite:
	default:
		return invalid("storage.backend %q: want %s, %s or %s",
			cfg.Backend, storage.KindMemory, storage.KindBadger, storage.KindSQLite)
	}

	if cfg.DataDir == "" {
		return invalid("storage.data_dir is required for the %s backend", cfg.Backend)
	}
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return invalid("cannot create data directory: %v", err)
	}
	if cfg.Backend == storage.KindSQLite {
		return verifySQLite(&cfg.SQLite)
	}
	if cfg.Badger.GCThreshold <= 0 || cfg.Badger.GCThreshold >= 1 {
		return invalid("storage.badger.gc_threshold must be between 0 and 1")
	}
	if cfg.Badger.GCInterval <= 0 {
		return invalid("storage.badger.gc_interval must be positive")
	}
	return nil
}

func verifySQLite(cfg *SQLiteSection) error {
	switch strings.ToUpper(cfg.Synchronous) {
	case "", "OFF", "NORMAL", "FULL":
	default:
		return invalid("storage.sqlite.synchronous %q: want OFF, NORMAL or FULL", cfg.Synchronous)
	}
	if cfg.BusyTimeout < 0 {
		return invalid("storage.sqlite.busy_timeout must not be negative")
	}
	return nil
}

func verifySecurity(cfg *SecuritySection) error {
	if cfg.AdminKeyHash == "" {
		return nil
	}
	if err := token.ValidateHash(cfg.AdminKeyHash); err != nil {
		return invalid("security.admin_key_hash: %v", err)
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch cfg.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level %q: want debug, info, warn or error", cfg.Level)
	}
	switch cfg.Format {
	case "json", "text":
	default:
		return invalid("log.format %q: want json or text", cfg.Format)
	}
	return nil
}
