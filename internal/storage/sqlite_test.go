package storage

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/yndnr/rolloutkv/internal/core/domain"
)

func newTestSQLite(t *testing.T, path string) *SQLiteBackend {
	t.Helper()

	b, err := NewSQLiteBackend(path, SQLiteConfig{Synchronous: "NORMAL"}, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestSQLiteBackend(t *testing.T) {
	RunBackendTests(t, "SQLiteBackend", func(t *testing.T) Backend {
		return newTestSQLite(t, filepath.Join(t.TempDir(), "test.db"))
	})
}

func TestSQLiteBackend_InMemory(t *testing.T) {
	RunBackendTests(t, "SQLiteInMemory", func(t *testing.T) Backend {
		b, err := NewSQLiteBackend("", SQLiteConfig{InMemory: true}, slog.Default())
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { b.Close() })
		return b
	})
}

func TestSQLiteBackend_RequiresPath(t *testing.T) {
	if _, err := NewSQLiteBackend("", SQLiteConfig{}, nil); err == nil {
		t.Error("expected error for empty path")
	}
}

func TestSQLiteBackend_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	ctx := context.Background()

	b, err := NewSQLiteBackend(path, SQLiteConfig{}, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	put(t, b, "flag:beta", domain.String("on"))
	put(t, b, "counter", domain.Int(-7))
	if err := b.Update(ctx, func(rw ReadWriter) error {
		return rw.AddMembers("segment", []string{"u2", "u1"})
	}); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}

	b = newTestSQLite(t, path)
	if got := scalar(t, b, "flag:beta"); !got.Equal(domain.String("on")) {
		t.Errorf("flag:beta = %v", got)
	}
	if got := scalar(t, b, "counter"); !got.Equal(domain.Int(-7)) {
		t.Errorf("counter = %v", got)
	}
	if got := members(t, b, "segment"); len(got) != 2 || got[0] != "u1" || got[1] != "u2" {
		t.Errorf("segment = %v", got)
	}
}

func TestSQLiteBackend_PrefixIsBytewise(t *testing.T) {
	b := newTestSQLite(t, filepath.Join(t.TempDir(), "prefix.db"))

	for _, k := range []string{"flag:a", "flag:é", "flag;", "flagz", "fla"} {
		put(t, b, k, domain.String("x"))
	}
	got := keys(t, b, "flag:")
	if len(got) != 2 || got[0] != "flag:a" || got[1] != "flag:é" {
		t.Errorf("keys(flag:) = %v", got)
	}
}

func TestSQLiteBackend_Stats(t *testing.T) {
	b := newTestSQLite(t, filepath.Join(t.TempDir(), "stats.db"))
	put(t, b, "a", domain.String("1"))
	put(t, b, "b", domain.String("2"))

	stats, err := b.Stats(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if stats.Backend != KindSQLite || stats.TotalKeys != 2 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.TotalSize == 0 {
		t.Error("TotalSize should be non-zero")
	}
}

func TestNewFactory_SQLite(t *testing.T) {
	root := filepath.Join(t.TempDir(), "data")
	factory, err := NewFactory(KVConfig{Engine: KindSQLite, Dir: root}, slog.Default())
	if err != nil {
		t.Fatal(err)
	}
	b, err := factory("0123abcd")
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	if _, ok := b.(*SQLiteBackend); !ok {
		t.Errorf("backend = %T, want *SQLiteBackend", b)
	}
	if _, err := os.Stat(filepath.Join(root, "0123abcd.db")); err != nil {
		t.Errorf("database file not created: %v", err)
	}

	if _, err := NewFactory(KVConfig{Engine: KindSQLite}, slog.Default()); err == nil {
		t.Error("expected error for missing dir")
	}
}
