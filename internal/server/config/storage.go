package config

import (
	"strings"

	"github.com/yndnr/rolloutkv/internal/storage"
)

// ToKVConfig maps the storage section onto the storage layer configuration.
func ToKVConfig(cfg *ServerConfig) storage.KVConfig {
	kv := storage.DefaultKVConfig(cfg.Storage.DataDir)
	kv.Engine = cfg.Storage.Backend

	b := cfg.Storage.Badger
	if b.GCInterval > 0 {
		kv.Badger.GCInterval = b.GCInterval.String()
	}
	if b.GCThreshold > 0 {
		kv.Badger.GCThreshold = b.GCThreshold
	}
	if b.CacheSizeMB > 0 {
		kv.Badger.CacheSize = b.CacheSizeMB << 20
	}
	if b.ValueLogFileSizeMB > 0 {
		kv.Badger.ValueLogFileSize = b.ValueLogFileSizeMB << 20
	}
	kv.Badger.SyncWrites = b.SyncWrites

	kv.SQLite.BusyTimeout = cfg.Storage.SQLite.BusyTimeout
	kv.SQLite.Synchronous = strings.ToUpper(cfg.Storage.SQLite.Synchronous)
	return kv
}
