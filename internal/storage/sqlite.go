package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yndnr/rolloutkv/internal/core/domain"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS entries (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
) WITHOUT ROWID`

// SQLiteBackend implements Backend on a single SQLite file.
//
// Writes go through one connection so Update transactions never contend
// with each other; reads use a separate pool in WAL mode and see the last
// committed state. Values use the same tagged encoding as Badger.
type SQLiteBackend struct {
	writer *sql.DB
	reader *sql.DB
	path   string
	logger *slog.Logger
	closed atomic.Bool
}

// NewSQLiteBackend opens (or creates) the database at path. An empty path
// with cfg.InMemory set opens a private in-memory database.
func NewSQLiteBackend(path string, cfg SQLiteConfig, logger *slog.Logger) (*SQLiteBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" && !cfg.InMemory {
		return nil, fmt.Errorf("sqlite: path is required")
	}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}
	synchronous := cfg.Synchronous
	if synchronous == "" {
		synchronous = "FULL"
	}

	b := &SQLiteBackend{path: path, logger: logger}

	if cfg.InMemory {
		// Every connection to :memory: is a separate database, so both
		// sides share one connection.
		db, err := sql.Open("sqlite", ":memory:")
		if err != nil {
			return nil, fmt.Errorf("sqlite: open: %w", err)
		}
		db.SetMaxOpenConns(1)
		b.writer, b.reader = db, db
	} else {
		pragmas := fmt.Sprintf("?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(%s)",
			busy.Milliseconds(), synchronous)

		writer, err := sql.Open("sqlite", "file:"+path+pragmas)
		if err != nil {
			return nil, fmt.Errorf("sqlite: open writer: %w", err)
		}
		writer.SetMaxOpenConns(1)

		reader, err := sql.Open("sqlite", "file:"+path+pragmas+"&_pragma=query_only(1)")
		if err != nil {
			writer.Close()
			return nil, fmt.Errorf("sqlite: open reader: %w", err)
		}
		reader.SetMaxOpenConns(4)
		reader.SetConnMaxIdleTime(time.Minute)
		b.writer, b.reader = writer, reader
	}

	if _, err := b.writer.Exec(sqliteSchema); err != nil {
		b.closeDBs()
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}

	logger.Debug("sqlite backend opened",
		"path", path,
		"in_memory", cfg.InMemory,
		"synchronous", synchronous)
	return b, nil
}

// View runs fn in a read-only transaction.
func (b *SQLiteBackend) View(ctx context.Context, fn func(Reader) error) error {
	if err := b.check(ctx); err != nil {
		return err
	}

	tx, err := b.reader.BeginTx(ctx, nil)
	if err != nil {
		return domain.ErrStorage.WithCause(err)
	}
	defer tx.Rollback()

	return fn(&sqliteTxn{ctx: ctx, tx: tx})
}

// Update runs fn in a write transaction and commits it when fn succeeds.
func (b *SQLiteBackend) Update(ctx context.Context, fn func(ReadWriter) error) error {
	if err := b.check(ctx); err != nil {
		return err
	}

	tx, err := b.writer.BeginTx(ctx, nil)
	if err != nil {
		return domain.ErrStorage.WithCause(err)
	}
	if err := fn(&sqliteTxn{ctx: ctx, tx: tx}); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return domain.ErrStorage.WithCause(err)
	}
	return nil
}

// Clear deletes every row in one statement.
func (b *SQLiteBackend) Clear(ctx context.Context) error {
	if err := b.check(ctx); err != nil {
		return err
	}
	if _, err := b.writer.ExecContext(ctx, `DELETE FROM entries`); err != nil {
		return domain.ErrStorage.WithCause(err)
	}
	return nil
}

// Stats returns the key count and the database size.
func (b *SQLiteBackend) Stats(ctx context.Context) (*KVStats, error) {
	if err := b.check(ctx); err != nil {
		return nil, err
	}

	stats := &KVStats{Backend: KindSQLite}
	row := b.reader.QueryRowContext(ctx, `SELECT count(*) FROM entries`)
	if err := row.Scan(&stats.TotalKeys); err != nil {
		return nil, domain.ErrStorage.WithCause(err)
	}
	row = b.reader.QueryRowContext(ctx,
		`SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()`)
	if err := row.Scan(&stats.TotalSize); err != nil {
		return nil, domain.ErrStorage.WithCause(err)
	}
	return stats, nil
}

// Close closes the database. Later calls return ErrClosed.
func (b *SQLiteBackend) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	b.logger.Debug("sqlite backend closing", "path", b.path)
	return b.closeDBs()
}

func (b *SQLiteBackend) closeDBs() error {
	var errs []error
	if b.reader != nil && b.reader != b.writer {
		errs = append(errs, b.reader.Close())
	}
	if b.writer != nil {
		errs = append(errs, b.writer.Close())
	}
	return errors.Join(errs...)
}

func (b *SQLiteBackend) check(ctx context.Context) error {
	if b.closed.Load() {
		return ErrClosed
	}
	return ctx.Err()
}

// sqliteTxn adapts a database/sql transaction to ReadWriter.
type sqliteTxn struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *sqliteTxn) load(key string) (tag byte, payload []byte, found bool, err error) {
	var raw []byte
	err = t.tx.QueryRowContext(t.ctx, `SELECT value FROM entries WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil, false, nil
	}
	if err != nil {
		return 0, nil, false, domain.ErrStorage.WithCause(err)
	}
	if len(raw) == 0 {
		return 0, nil, false, domain.ErrStorage.WithDetails("empty record for key " + key)
	}
	return raw[0], raw[1:], true, nil
}

func (t *sqliteTxn) Scalar(key string) (domain.Value, error) {
	tag, payload, found, err := t.load(key)
	if err != nil || !found {
		return domain.Absent(), err
	}
	return decodeScalar(key, tag, payload)
}

func (t *sqliteTxn) members(key string) ([]string, error) {
	tag, payload, found, err := t.load(key)
	if err != nil || !found {
		return nil, err
	}
	if tag != tagSet {
		return nil, domain.ErrInvalidValue.WithDetails("key " + key + " holds a scalar")
	}
	var members []string
	if err := json.Unmarshal(payload, &members); err != nil {
		return nil, domain.ErrStorage.WithCause(err)
	}
	return members, nil
}

func (t *sqliteTxn) Members(key string) ([]string, error) {
	members, err := t.members(key)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []string{}
	}
	return members, nil
}

func (t *sqliteTxn) HasMember(key, member string) (bool, error) {
	members, err := t.members(key)
	if err != nil {
		return false, err
	}
	i := sort.SearchStrings(members, member)
	return i < len(members) && members[i] == member, nil
}

// Keys scans the primary key index from prefix. TEXT keys compare
// bytewise, so matches are contiguous.
func (t *sqliteTxn) Keys(prefix string) ([]string, error) {
	rows, err := t.tx.QueryContext(t.ctx, `SELECT key FROM entries WHERE key >= ? ORDER BY key`, prefix)
	if err != nil {
		return nil, domain.ErrStorage.WithCause(err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, domain.ErrStorage.WithCause(err)
		}
		if !strings.HasPrefix(key, prefix) {
			break
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.ErrStorage.WithCause(err)
	}
	return keys, nil
}

func (t *sqliteTxn) PutScalar(key string, v domain.Value) error {
	raw, err := encodeScalar(v)
	if err != nil {
		return err
	}
	return t.set(key, raw)
}

func (t *sqliteTxn) AddMembers(key string, members []string) error {
	current, err := t.members(key)
	if err != nil {
		return err
	}
	return t.putMembers(key, mergeMembers(current, members))
}

func (t *sqliteTxn) RemoveMembers(key string, members []string) error {
	current, err := t.members(key)
	if err != nil || current == nil {
		return err
	}
	remaining := subtractMembers(current, members)
	if len(remaining) == 0 {
		return t.Delete(key)
	}
	return t.putMembers(key, remaining)
}

func (t *sqliteTxn) Delete(key string) error {
	return t.exec(`DELETE FROM entries WHERE key = ?`, key)
}

func (t *sqliteTxn) putMembers(key string, members []string) error {
	payload, err := json.Marshal(members)
	if err != nil {
		return domain.ErrStorage.WithCause(err)
	}
	return t.set(key, append([]byte{tagSet}, payload...))
}

func (t *sqliteTxn) set(key string, raw []byte) error {
	return t.exec(`INSERT INTO entries (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, raw)
}

func (t *sqliteTxn) exec(query string, args ...any) error {
	if _, err := t.tx.ExecContext(t.ctx, query, args...); err != nil {
		return domain.ErrStorage.WithCause(err)
	}
	return nil
}
