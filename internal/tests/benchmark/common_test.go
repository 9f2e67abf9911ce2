package benchmark

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"testing"

	"github.com/yndnr/rolloutkv/internal/core/domain"
	"github.com/yndnr/rolloutkv/internal/engine"
	"github.com/yndnr/rolloutkv/internal/storage"
)

// KeyCounts defines the instance sizes for benchmarking.
var KeyCounts = []int{1000, 10000, 50000}

// SmallKeyCounts for quick benchmarks.
var SmallKeyCounts = []int{1000, 10000}

// Backends are the storage kinds every engine benchmark runs against.
var Backends = []string{storage.KindMemory, storage.KindBadger, storage.KindSQLite}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newRegistry opens a registry over the given backend kind. Badger runs in
// memory and SQLite skips fsync so that disk speed does not dominate.
func newRegistry(b *testing.B, kind string) *engine.Registry {
	b.Helper()

	cfg := storage.DefaultKVConfig(b.TempDir())
	cfg.Engine = kind
	cfg.Badger.InMemory = true
	cfg.Badger.SyncWrites = false
	cfg.SQLite.Synchronous = "OFF"

	factory, err := storage.NewFactory(cfg, quietLogger())
	if err != nil {
		b.Fatalf("NewFactory: %v", err)
	}
	r := engine.NewRegistry(factory, engine.WithLogger(quietLogger()))
	b.Cleanup(func() { r.Close() })
	return r
}

// newInstance returns an empty instance on the given backend kind.
func newInstance(b *testing.B, kind string) *engine.Instance {
	b.Helper()
	inst, err := newRegistry(b, kind).Instance("bench")
	if err != nil {
		b.Fatalf("Instance: %v", err)
	}
	return inst
}

// flagKey returns the i-th feature flag key.
func flagKey(i int) string {
	return fmt.Sprintf("flag:%06d", i)
}

// prefill stores count string flags and count/10 segment sets.
func prefill(ctx context.Context, b *testing.B, inst *engine.Instance, count int) []string {
	b.Helper()
	keys := make([]string, count)
	for i := 0; i < count; i++ {
		keys[i] = flagKey(i)
		if err := inst.Set(ctx, keys[i], domain.String("on")); err != nil {
			b.Fatalf("prefill Set: %v", err)
		}
	}
	for i := 0; i < count/10; i++ {
		seg := fmt.Sprintf("segment:%04d", i%100)
		if err := inst.SetAdd(ctx, seg, []string{fmt.Sprintf("user-%d", i)}); err != nil {
			b.Fatalf("prefill SetAdd: %v", err)
		}
	}
	return keys
}

// reportMemory reports memory usage.
func reportMemory(b *testing.B, prefix string) {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	b.ReportMetric(float64(m.Alloc)/(1024*1024), prefix+"_MB")
	b.ReportMetric(float64(m.NumGC), prefix+"_GC")
}

// runMatrix runs benchFn for every backend and key count.
func runMatrix(b *testing.B, counts []int, benchFn func(b *testing.B, kind string, count int)) {
	for _, kind := range Backends {
		for _, count := range counts {
			b.Run(fmt.Sprintf("%s/keys_%d", kind, count), func(b *testing.B) {
				benchFn(b, kind, count)
			})
		}
	}
}
