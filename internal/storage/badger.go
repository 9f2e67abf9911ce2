package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/rolloutkv/internal/core/domain"
)

// ErrClosed is returned by a backend after Close.
var ErrClosed = domain.ErrEngineClosed.WithDetails("backend closed")

// Value tags. The first byte of every stored Badger value names its kind.
const (
	tagString byte = 's'
	tagInt    byte = 'i'
	tagSet    byte = 'S'
)

// BadgerBackend implements Backend using Badger v3.
type BadgerBackend struct {
	db     *badger.DB
	cfg    BadgerConfig
	logger *slog.Logger
	closed atomic.Bool

	// Metrics (internal counters)
	lastGCTime       atomic.Int64  // Unix milliseconds
	gcBytesReclaimed atomic.Uint64 // Total bytes reclaimed by GC

	// Prometheus metrics
	metricsMu           sync.Mutex
	registerer          prometheus.Registerer
	metricsLSMSize      prometheus.Gauge
	metricsValueLogSize prometheus.Gauge
	metricsTotalSize    prometheus.Gauge
	metricsLastGCTime   prometheus.Gauge
	metricsGCReclaimed  prometheus.Counter

	// Shutdown
	stopCh chan struct{}
	doneCh chan struct{}
}

// NewBadgerBackend opens a Badger database in cfg.Dir.
func NewBadgerBackend(cfg KVConfig, logger *slog.Logger) (*BadgerBackend, error) {
	if cfg.Dir == "" && !cfg.Badger.InMemory {
		return nil, fmt.Errorf("badger: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Build Badger options
	opts := badger.DefaultOptions(cfg.Dir)
	opts.Logger = &badgerLogger{logger: logger}

	badgerCfg := cfg.Badger
	if badgerCfg.InMemory {
		opts = opts.WithInMemory(true).WithDir("").WithValueDir("")
	}
	if badgerCfg.CacheSize > 0 {
		opts.BlockCacheSize = badgerCfg.CacheSize
	}
	if badgerCfg.ValueLogFileSize > 0 {
		opts.ValueLogFileSize = badgerCfg.ValueLogFileSize
	}
	if badgerCfg.NumMemtables > 0 {
		opts.NumMemtables = badgerCfg.NumMemtables
	}
	if badgerCfg.NumLevelZeroTables > 0 {
		opts.NumLevelZeroTables = badgerCfg.NumLevelZeroTables
	}
	if badgerCfg.NumLevelZeroTablesStall > 0 {
		opts.NumLevelZeroTablesStall = badgerCfg.NumLevelZeroTablesStall
	}
	opts.SyncWrites = badgerCfg.SyncWrites

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger: open db: %w", err)
	}

	b := &BadgerBackend{
		db:     db,
		cfg:    badgerCfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}

	// In-memory databases have no value log to collect.
	if badgerCfg.InMemory {
		close(b.doneCh)
	} else {
		go b.gcLoop()
	}

	logger.Debug("badger backend opened",
		"dir", cfg.Dir,
		"in_memory", badgerCfg.InMemory,
		"sync_writes", badgerCfg.SyncWrites,
		"gc_interval", badgerCfg.GCInterval)

	return b, nil
}

// View runs fn in a read-only Badger transaction.
func (b *BadgerBackend) View(ctx context.Context, fn func(Reader) error) error {
	if err := b.check(ctx); err != nil {
		return err
	}
	return b.db.View(func(txn *badger.Txn) error {
		return fn(&badgerTxn{txn: txn})
	})
}

// Update runs fn in a read-write Badger transaction.
//
// Badger discards the transaction when fn fails, so a failed update leaves
// no trace.
func (b *BadgerBackend) Update(ctx context.Context, fn func(ReadWriter) error) error {
	if err := b.check(ctx); err != nil {
		return err
	}

	txn := b.db.NewTransaction(true)
	defer txn.Discard()

	if err := fn(&badgerTxn{txn: txn}); err != nil {
		return err
	}
	if err := txn.Commit(); err != nil {
		return domain.ErrStorage.WithCause(fmt.Errorf("badger: commit: %w", err))
	}
	return nil
}

// Clear drops every user key. DropPrefix blocks writes and rewrites the
// affected tables, so the namespace size is not bounded by the transaction
// limit.
func (b *BadgerBackend) Clear(ctx context.Context) error {
	if err := b.check(ctx); err != nil {
		return err
	}
	if err := b.db.DropPrefix([]byte{userKeyPrefix}); err != nil {
		return domain.ErrStorage.WithCause(fmt.Errorf("badger: drop prefix: %w", err))
	}
	b.logger.Debug("badger backend cleared")
	return nil
}

func (b *BadgerBackend) check(ctx context.Context) error {
	if b.closed.Load() {
		return ErrClosed
	}
	return ctx.Err()
}

// GC triggers value log garbage collection.
//
// Returns bytes reclaimed (approximate).
func (b *BadgerBackend) GC(ctx context.Context) (uint64, error) {
	if b.cfg.InMemory {
		return 0, nil
	}
	startTime := time.Now()

	var totalReclaimed uint64
	for ctx.Err() == nil {
		err := b.db.RunValueLogGC(b.cfg.GCThreshold)
		if err != nil {
			if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrRejected) {
				break
			}
			return totalReclaimed, fmt.Errorf("gc: %w", err)
		}

		// Badger does not report reclaimed bytes; count one vlog file per pass.
		totalReclaimed += uint64(b.db.Opts().ValueLogFileSize)
	}

	b.lastGCTime.Store(time.Now().UnixMilli())
	b.gcBytesReclaimed.Add(totalReclaimed)

	b.metricsMu.Lock()
	if b.metricsGCReclaimed != nil && totalReclaimed > 0 {
		b.metricsGCReclaimed.Add(float64(totalReclaimed))
	}
	b.metricsMu.Unlock()

	b.logger.Debug("gc completed",
		"bytes_reclaimed", totalReclaimed,
		"elapsed", time.Since(startTime))

	return totalReclaimed, nil
}

// Stats returns storage statistics.
func (b *BadgerBackend) Stats(ctx context.Context) (*KVStats, error) {
	if err := b.check(ctx); err != nil {
		return nil, err
	}
	lsm, vlog := b.db.Size()

	var keys uint64
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte{userKeyPrefix}
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys++
		}
		return nil
	})
	if err != nil {
		return nil, domain.ErrStorage.WithCause(err)
	}

	return &KVStats{
		Backend:          KindBadger,
		TotalKeys:        keys,
		TotalSize:        uint64(lsm + vlog),
		LSMSize:          uint64(lsm),
		ValueLogSize:     uint64(vlog),
		LastGCTime:       b.lastGCTime.Load(),
		GCBytesReclaimed: b.gcBytesReclaimed.Load(),
	}, nil
}

// Close stops the GC loop and closes the database.
func (b *BadgerBackend) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}

	close(b.stopCh)
	<-b.doneCh

	b.unregisterMetrics()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	b.logger.Debug("badger backend closed")
	return nil
}

// RegisterMetrics registers Badger metrics with Prometheus.
//
// Every backend carries the given constant labels so several instances can
// share one registry. The gauges are unregistered on Close.
func (b *BadgerBackend) RegisterMetrics(reg prometheus.Registerer, labels prometheus.Labels) error {
	opts := func(name, help string) prometheus.GaugeOpts {
		return prometheus.GaugeOpts{
			Namespace:   "rolloutkv",
			Subsystem:   "badger",
			Name:        name,
			Help:        help,
			ConstLabels: labels,
		}
	}

	lsm := prometheus.NewGauge(opts("lsm_size_bytes", "Badger LSM tree size in bytes"))
	vlog := prometheus.NewGauge(opts("value_log_size_bytes", "Badger value log size in bytes"))
	total := prometheus.NewGauge(opts("total_size_bytes", "Badger total storage size in bytes (LSM + value log)"))
	lastGC := prometheus.NewGauge(opts("last_gc_timestamp_seconds", "Unix timestamp of the last Badger GC run"))
	reclaimed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace:   "rolloutkv",
		Subsystem:   "badger",
		Name:        "gc_bytes_reclaimed_total",
		Help:        "Total bytes reclaimed by Badger garbage collection",
		ConstLabels: labels,
	})

	collectors := []prometheus.Collector{lsm, vlog, total, lastGC, reclaimed}
	for i, c := range collectors {
		if err := reg.Register(c); err != nil {
			for _, done := range collectors[:i] {
				reg.Unregister(done)
			}
			return fmt.Errorf("badger: register metrics: %w", err)
		}
	}

	b.metricsMu.Lock()
	b.registerer = reg
	b.metricsLSMSize = lsm
	b.metricsValueLogSize = vlog
	b.metricsTotalSize = total
	b.metricsLastGCTime = lastGC
	b.metricsGCReclaimed = reclaimed
	b.metricsMu.Unlock()

	b.updateMetrics()
	return nil
}

func (b *BadgerBackend) unregisterMetrics() {
	b.metricsMu.Lock()
	defer b.metricsMu.Unlock()

	if b.registerer == nil {
		return
	}
	b.registerer.Unregister(b.metricsLSMSize)
	b.registerer.Unregister(b.metricsValueLogSize)
	b.registerer.Unregister(b.metricsTotalSize)
	b.registerer.Unregister(b.metricsLastGCTime)
	b.registerer.Unregister(b.metricsGCReclaimed)
	b.registerer = nil
}

// updateMetrics refreshes the size gauges.
func (b *BadgerBackend) updateMetrics() {
	b.metricsMu.Lock()
	defer b.metricsMu.Unlock()

	if b.metricsLSMSize == nil || b.closed.Load() {
		return
	}

	lsm, vlog := b.db.Size()
	b.metricsLSMSize.Set(float64(lsm))
	b.metricsValueLogSize.Set(float64(vlog))
	b.metricsTotalSize.Set(float64(lsm + vlog))

	if last := b.lastGCTime.Load(); last > 0 {
		b.metricsLastGCTime.Set(float64(last) / 1000.0) // ms to seconds
	}
}

// gcLoop runs periodic garbage collection and refreshes metrics.
func (b *BadgerBackend) gcLoop() {
	defer close(b.doneCh)

	interval, err := time.ParseDuration(b.cfg.GCInterval)
	if err != nil || interval <= 0 {
		b.logger.Warn("invalid gc_interval, using default 10m", "gc_interval", b.cfg.GCInterval)
		interval = 10 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			if _, err := b.GC(ctx); err != nil {
				b.logger.Error("auto gc failed", "error", err)
			}
			cancel()
			b.updateMetrics()

		case <-b.stopCh:
			return
		}
	}
}

// userKeyPrefix namespaces every stored key. Badger rejects empty keys and
// reserves "!badger!", so user keys are never written bare.
const userKeyPrefix = 'k'

func dbKey(key string) []byte {
	raw := make([]byte, 0, len(key)+1)
	raw = append(raw, userKeyPrefix)
	return append(raw, key...)
}

// badgerTxn adapts a Badger transaction to ReadWriter.
type badgerTxn struct {
	txn *badger.Txn
}

func (t *badgerTxn) load(key string) (tag byte, payload []byte, found bool, err error) {
	item, err := t.txn.Get(dbKey(key))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return 0, nil, false, nil
		}
		return 0, nil, false, domain.ErrStorage.WithCause(err)
	}
	raw, err := item.ValueCopy(nil)
	if err != nil {
		return 0, nil, false, domain.ErrStorage.WithCause(err)
	}
	if len(raw) == 0 {
		return 0, nil, false, domain.ErrStorage.WithDetails("empty record for key " + key)
	}
	return raw[0], raw[1:], true, nil
}

func (t *badgerTxn) Scalar(key string) (domain.Value, error) {
	tag, payload, found, err := t.load(key)
	if err != nil || !found {
		return domain.Absent(), err
	}
	return decodeScalar(key, tag, payload)
}

func (t *badgerTxn) members(key string) ([]string, error) {
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

func (t *badgerTxn) Members(key string) ([]string, error) {
	members, err := t.members(key)
	if err != nil {
		return nil, err
	}
	if members == nil {
		members = []string{}
	}
	return members, nil
}

func (t *badgerTxn) HasMember(key, member string) (bool, error) {
	members, err := t.members(key)
	if err != nil {
		return false, err
	}
	// Members are stored sorted.
	i := sort.SearchStrings(members, member)
	return i < len(members) && members[i] == member, nil
}

func (t *badgerTxn) Keys(prefix string) ([]string, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = dbKey(prefix)
	it := t.txn.NewIterator(opts)
	defer it.Close()

	keys := []string{}
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, string(it.Item().Key()[1:]))
	}
	return keys, nil
}

func (t *badgerTxn) PutScalar(key string, v domain.Value) error {
	raw, err := encodeScalar(v)
	if err != nil {
		return err
	}
	return t.set(key, raw)
}

func (t *badgerTxn) AddMembers(key string, members []string) error {
	current, err := t.members(key)
	if err != nil {
		return err
	}
	return t.putMembers(key, mergeMembers(current, members))
}

func (t *badgerTxn) RemoveMembers(key string, members []string) error {
	current, err := t.members(key)
	if err != nil {
		return err
	}
	if current == nil {
		return nil
	}
	remaining := subtractMembers(current, members)
	if len(remaining) == 0 {
		return t.Delete(key)
	}
	return t.putMembers(key, remaining)
}

func (t *badgerTxn) Delete(key string) error {
	if err := t.txn.Delete(dbKey(key)); err != nil {
		return domain.ErrStorage.WithCause(err)
	}
	return nil
}

func (t *badgerTxn) putMembers(key string, members []string) error {
	payload, err := json.Marshal(members)
	if err != nil {
		return domain.ErrStorage.WithCause(err)
	}
	return t.set(key, append([]byte{tagSet}, payload...))
}

func (t *badgerTxn) set(key string, raw []byte) error {
	if err := t.txn.Set(dbKey(key), raw); err != nil {
		return domain.ErrStorage.WithCause(err)
	}
	return nil
}

func encodeScalar(v domain.Value) ([]byte, error) {
	switch v.Kind() {
	case domain.KindString:
		s, _ := v.Str()
		return append([]byte{tagString}, s...), nil
	case domain.KindInt:
		n, _ := v.Int64()
		raw := make([]byte, 9)
		raw[0] = tagInt
		binary.BigEndian.PutUint64(raw[1:], uint64(n))
		return raw, nil
	default:
		return nil, domain.ErrInvalidValue.WithDetails("cannot store an absent value")
	}
}

func decodeScalar(key string, tag byte, payload []byte) (domain.Value, error) {
	switch tag {
	case tagString:
		return domain.String(string(payload)), nil
	case tagInt:
		if len(payload) != 8 {
			return domain.Absent(), domain.ErrStorage.WithDetails("corrupt integer at key " + key)
		}
		return domain.Int(int64(binary.BigEndian.Uint64(payload))), nil
	case tagSet:
		return domain.Absent(), nil
	default:
		return domain.Absent(), domain.ErrStorage.WithDetails(fmt.Sprintf("unknown tag %q at key %s", tag, key))
	}
}

// mergeMembers returns the sorted union of a sorted slice and additions.
func mergeMembers(current, add []string) []string {
	seen := make(map[string]struct{}, len(current)+len(add))
	out := make([]string, 0, len(current)+len(add))
	for _, list := range [][]string{current, add} {
		for _, m := range list {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			out = append(out, m)
		}
	}
	sort.Strings(out)
	return out
}

// subtractMembers returns current without the removed members.
func subtractMembers(current, remove []string) []string {
	drop := make(map[string]struct{}, len(remove))
	for _, m := range remove {
		drop[m] = struct{}{}
	}
	out := make([]string, 0, len(current))
	for _, m := range current {
		if _, ok := drop[m]; !ok {
			out = append(out, m)
		}
	}
	return out
}

// badgerLogger adapts slog.Logger to Badger's Logger interface.
//
// Badger's own info chatter is demoted to debug.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}
