package config

import "time"

// Default configuration values.
const (
	DefaultHTTPAddr        = "127.0.0.1:7380"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 30 * time.Second
	DefaultShutdownTimeout = 10 * time.Second

	DefaultBackend            = "badger"
	DefaultDataDir            = "/var/lib/rolloutkv/data"
	DefaultGCInterval         = 10 * time.Minute
	DefaultGCThreshold        = 0.5
	DefaultCacheSizeMB        = 16
	DefaultValueLogFileSizeMB = 64
	DefaultSQLiteBusyTimeout  = 5 * time.Second
	DefaultSQLiteSynchronous  = "FULL"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:            DefaultHTTPAddr,
				ReadTimeout:     DefaultReadTimeout,
				WriteTimeout:    DefaultWriteTimeout,
				ShutdownTimeout: DefaultShutdownTimeout,
				Audit:           true,
			},
		},
		Storage: StorageSection{
			Backend: DefaultBackend,
			DataDir: DefaultDataDir,
			Badger: BadgerSection{
				GCInterval:         DefaultGCInterval,
				GCThreshold:        DefaultGCThreshold,
				SyncWrites:         true,
				CacheSizeMB:        DefaultCacheSizeMB,
				ValueLogFileSizeMB: DefaultValueLogFileSizeMB,
			},
			SQLite: SQLiteSection{
				BusyTimeout: DefaultSQLiteBusyTimeout,
				Synchronous: DefaultSQLiteSynchronous,
			},
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
