package config

import "time"

// ServerConfig is the root configuration for rolloutkv-server.
type ServerConfig struct {
	Server   ServerSection   `koanf:"server"`
	Storage  StorageSection  `koanf:"storage"`
	Security SecuritySection `koanf:"security"`
	Log      LogSection      `koanf:"log"`
	Config   ConfigSection   `koanf:"config"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP HTTPConfig `koanf:"http"`
}

// HTTPConfig configures the HTTP server, which also carries the Connect
// engine service.
type HTTPConfig struct {
	Addr        string `koanf:"addr"`
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`

	// RateLimit is the per-client request rate (requests/second). 0 disables it.
	RateLimit int `koanf:"rate_limit"`
	// RateBurst is the per-client burst. Defaults to RateLimit.
	RateBurst int `koanf:"rate_burst"`

	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// Audit logs every request after it completes.
	Audit bool `koanf:"audit"`

	// CORSAllowedOrigins enables CORS headers for the listed origins.
	// Empty disables CORS handling; "*" allows any origin.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`
}

// StorageSection configures engine storage.
type StorageSection struct {
	// Backend is "memory", "badger" or "sqlite".
	Backend string        `koanf:"backend"`
	DataDir string        `koanf:"data_dir"`
	Badger  BadgerSection `koanf:"badger"`
	SQLite  SQLiteSection `koanf:"sqlite"`
}

// BadgerSection tunes the Badger backend.
type BadgerSection struct {
	GCInterval         time.Duration `koanf:"gc_interval"`
	GCThreshold        float64       `koanf:"gc_threshold"`
	SyncWrites         bool          `koanf:"sync_writes"`
	CacheSizeMB        int64         `koanf:"cache_size_mb"`
	ValueLogFileSizeMB int64         `koanf:"value_log_file_size_mb"`
}

// SQLiteSection tunes the SQLite backend.
type SQLiteSection struct {
	BusyTimeout time.Duration `koanf:"busy_timeout"`
	// Synchronous is OFF, NORMAL or FULL.
	Synchronous string `koanf:"synchronous"`
}

// SecuritySection configures security settings.
type SecuritySection struct {
	// AdminKeyHash is the argon2id hash of the admin key.
	// Empty disables the admin routes.
	AdminKeyHash string `koanf:"admin_key_hash"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ConfigSection configures configuration handling itself.
type ConfigSection struct {
	// Watch reloads the log level when the configuration file changes.
	Watch bool `koanf:"watch"`
}
