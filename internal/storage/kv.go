package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/yndnr/rolloutkv/internal/core/domain"
)

// Backend is the private transactional primitive owned by one engine instance.
//
// Implementation requirements:
//   - Thread-safe: View and Update may be called concurrently
//   - Atomic: if the Update callback returns an error, none of its writes are visible
//   - Isolated: a View never observes a partially applied Update
type Backend interface {
	// View runs fn in a read-only transaction.
	View(ctx context.Context, fn func(Reader) error) error

	// Update runs fn in a read-write transaction and commits it when fn
	// returns nil.
	Update(ctx context.Context, fn func(ReadWriter) error) error

	// Clear removes every entry at once. Callers must not run it
	// concurrently with Update.
	Clear(ctx context.Context) error

	// Stats returns storage statistics.
	Stats(ctx context.Context) (*KVStats, error)

	// Close releases the backend. Later calls return ErrClosed.
	Close() error
}

// Reader is the read side of a transaction.
type Reader interface {
	// Scalar returns the scalar stored at key, or domain.Absent().
	// A key holding a set reads as absent.
	Scalar(key string) (domain.Value, error)

	// Members returns the members of the set at key in sorted order.
	// An absent key yields an empty slice. A key holding a scalar returns
	// domain.ErrInvalidValue.
	Members(key string) ([]string, error)

	// HasMember reports whether member belongs to the set at key.
	HasMember(key, member string) (bool, error)

	// Keys returns every key starting with prefix, sorted.
	Keys(prefix string) ([]string, error)
}

// ReadWriter is the read-write side of a transaction.
type ReadWriter interface {
	Reader

	// PutScalar stores v at key, replacing any previous entry.
	PutScalar(key string, v domain.Value) error

	// AddMembers adds members to the set at key, creating it if needed.
	AddMembers(key string, members []string) error

	// RemoveMembers removes members from the set at key. A set that becomes
	// empty is removed. An absent key is a no-op.
	RemoveMembers(key string, members []string) error

	// Delete removes key. Deleting an absent key is a no-op.
	Delete(key string) error
}

// KVStats contains storage engine statistics.
type KVStats struct {
	// Backend is the backend kind ("memory", "badger", "sqlite").
	Backend string

	// TotalKeys is the approximate number of keys.
	TotalKeys uint64

	// TotalSize is the total disk usage in bytes.
	TotalSize uint64

	// LSMSize is the LSM tree size (for Badger).
	LSMSize uint64

	// ValueLogSize is the value log size (for Badger).
	ValueLogSize uint64

	// LastGCTime is the last GC run timestamp (Unix milliseconds).
	LastGCTime int64

	// GCBytesReclaimed is the total bytes reclaimed by GC.
	GCBytesReclaimed uint64
}

// Backend kinds.
const (
	KindMemory = "memory"
	KindBadger = "badger"
	KindSQLite = "sqlite"
)

// KVConfig configures the backends created for engine instances.
type KVConfig struct {
	// Engine specifies the backend type ("memory", "badger", "sqlite").
	// Default: "badger"
	Engine string

	// Dir is the root data directory. Each instance gets its own
	// subdirectory named after its instance ID.
	Dir string

	// Badger-specific configuration
	Badger BadgerConfig

	SQLite SQLiteConfig
}

// SQLiteConfig tunes the SQLite backend.
type SQLiteConfig struct {
	// BusyTimeout bounds how long a connection waits for a lock.
	// Default: 5s
	BusyTimeout time.Duration

	// Synchronous is the PRAGMA synchronous level (OFF, NORMAL, FULL).
	// Default: FULL
	Synchronous string

	// InMemory opens a private in-memory database. Used by tests.
	InMemory bool
}

// BadgerConfig contains Badger-specific tuning parameters.
type BadgerConfig struct {
	// GCInterval is the interval between automatic GC runs.
	// Default: 10m
	GCInterval string

	// GCThreshold is the GC discard ratio threshold (0.0-1.0).
	// Default: 0.5 (run GC when 50% of data is stale)
	GCThreshold float64

	// CacheSize is the block cache size in bytes.
	// Default: 16MB
	CacheSize int64

	// ValueLogFileSize is the max value log file size in bytes.
	// Default: 64MB
	ValueLogFileSize int64

	// NumMemtables is the number of memtables.
	// Default: 2
	NumMemtables int

	// NumLevelZeroTables is the number of Level 0 tables before compaction.
	// Default: 5
	NumLevelZeroTables int

	// NumLevelZeroTablesStall is the number of Level 0 tables that triggers write stall.
	// Default: 10
	NumLevelZeroTablesStall int

	// SyncWrites enables sync writes (fsync after each commit).
	// Default: true (an acknowledged write must survive a crash)
	SyncWrites bool

	// InMemory runs Badger without touching disk. Used by tests.
	InMemory bool
}

// DefaultKVConfig returns the default KV configuration.
func DefaultKVConfig(dir string) KVConfig {
	return KVConfig{
		Engine: KindBadger,
		Dir:    dir,
		Badger: DefaultBadgerConfig(),
	}
}

// DefaultBadgerConfig returns the default Badger configuration.
//
// An instance holds one tenant's rollout plan, so the caches are sized far
// below Badger's defaults.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		GCInterval:              "10m",
		GCThreshold:             0.5,
		CacheSize:               16 << 20, // 16MB
		ValueLogFileSize:        64 << 20, // 64MB
		NumMemtables:            2,
		NumLevelZeroTables:      5,
		NumLevelZeroTablesStall: 10,
		SyncWrites:              true,
	}
}

// Factory opens the backend for one engine instance.
type Factory func(instanceID string) (Backend, error)

// NewFactory returns a Factory creating backends of the configured kind.
// Badger backends live under cfg.Dir/<instanceID>; SQLite databases are
// cfg.Dir/<instanceID>.db.
func NewFactory(cfg KVConfig, logger *slog.Logger) (Factory, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Engine {
	case KindMemory:
		return func(string) (Backend, error) {
			return NewMemoryBackend(), nil
		}, nil

	case KindBadger, "":
		if cfg.Dir == "" && !cfg.Badger.InMemory {
			return nil, domain.ErrInvalidConfig.WithDetails("storage dir is required for badger")
		}
		return func(instanceID string) (Backend, error) {
			instanceCfg := cfg
			if !cfg.Badger.InMemory {
				instanceCfg.Dir = filepath.Join(cfg.Dir, instanceID)
			}
			return NewBadgerBackend(instanceCfg, logger.With("instance_id", instanceID))
		}, nil

	case KindSQLite:
		if cfg.Dir == "" && !cfg.SQLite.InMemory {
			return nil, domain.ErrInvalidConfig.WithDetails("storage dir is required for sqlite")
		}
		return func(instanceID string) (Backend, error) {
			path := ""
			if !cfg.SQLite.InMemory {
				if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
					return nil, domain.ErrStorage.WithCause(err)
				}
				path = filepath.Join(cfg.Dir, instanceID+".db")
			}
			return NewSQLiteBackend(path, cfg.SQLite, logger.With("instance_id", instanceID))
		}, nil

	default:
		return nil, domain.ErrInvalidConfig.WithDetails(fmt.Sprintf("unknown storage engine %q", cfg.Engine))
	}
}
