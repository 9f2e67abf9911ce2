package storage

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/yndnr/rolloutkv/internal/core/domain"
	"github.com/yndnr/rolloutkv/pkg/cmap"
)

// memEntry is one committed entry. Committed entries are never mutated;
// an update replaces them.
type memEntry struct {
	scalar domain.Value
	set    mapset.Set[string] // non-nil for set entries
}

func (e *memEntry) isSet() bool {
	return e.set != nil
}

// MemoryBackend implements Backend in process memory.
//
// Thread Safety:
//
// View takes mu.RLock and Update takes mu.Lock, so readers never observe a
// partially applied update. Writes are staged in an overlay and applied to
// the map only after the callback succeeds.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries *cmap.Map[*memEntry]
	closed  atomic.Bool
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: cmap.New[*memEntry](),
	}
}

// View runs fn against the committed state.
func (b *MemoryBackend) View(ctx context.Context, fn func(Reader) error) error {
	if err := b.check(ctx); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	return fn(&memTxn{backend: b})
}

// Update runs fn against a staged overlay and commits it when fn succeeds.
func (b *MemoryBackend) Update(ctx context.Context, fn func(ReadWriter) error) error {
	if err := b.check(ctx); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	txn := &memTxn{backend: b, overlay: make(map[string]*memEntry)}
	if err := fn(txn); err != nil {
		return err
	}

	for key, e := range txn.overlay {
		if e == nil {
			b.entries.Delete(key)
		} else {
			b.entries.Set(key, e)
		}
	}
	return nil
}

// Stats returns the key count.
func (b *MemoryBackend) Stats(ctx context.Context) (*KVStats, error) {
	if err := b.check(ctx); err != nil {
		return nil, err
	}
	return &KVStats{
		Backend:   KindMemory,
		TotalKeys: uint64(b.entries.Count()),
	}, nil
}

// Clear drops every entry.
func (b *MemoryBackend) Clear(ctx context.Context) error {
	if err := b.check(ctx); err != nil {
		return err
	}
	b.mu.Lock()
	b.entries.Clear()
	b.mu.Unlock()
	return nil
}

// Close drops all data.
func (b *MemoryBackend) Close() error {
	if b.closed.CompareAndSwap(false, true) {
		b.mu.Lock()
		b.entries.Clear()
		b.mu.Unlock()
	}
	return nil
}

func (b *MemoryBackend) check(ctx context.Context) error {
	if b.closed.Load() {
		return ErrClosed
	}
	return ctx.Err()
}

// memTxn reads through the overlay to the committed entries.
// A nil overlay value marks a staged delete.
type memTxn struct {
	backend *MemoryBackend
	overlay map[string]*memEntry
}

func (t *memTxn) lookup(key string) *memEntry {
	if e, ok := t.overlay[key]; ok {
		return e
	}
	e, _ := t.backend.entries.Get(key)
	return e
}

func (t *memTxn) setFor(key string) (mapset.Set[string], error) {
	e := t.lookup(key)
	if e == nil {
		return nil, nil
	}
	if !e.isSet() {
		return nil, domain.ErrInvalidValue.WithDetails("key " + key + " holds a scalar")
	}
	return e.set, nil
}

func (t *memTxn) Scalar(key string) (domain.Value, error) {
	e := t.lookup(key)
	if e == nil || e.isSet() {
		return domain.Absent(), nil
	}
	return e.scalar, nil
}

func (t *memTxn) Members(key string) ([]string, error) {
	set, err := t.setFor(key)
	if err != nil {
		return nil, err
	}
	if set == nil {
		return []string{}, nil
	}
	members := set.ToSlice()
	sort.Strings(members)
	return members, nil
}

func (t *memTxn) HasMember(key, member string) (bool, error) {
	set, err := t.setFor(key)
	if err != nil || set == nil {
		return false, err
	}
	return set.Contains(member), nil
}

func (t *memTxn) Keys(prefix string) ([]string, error) {
	seen := make(map[string]struct{})
	for _, key := range t.backend.entries.Keys() {
		seen[key] = struct{}{}
	}
	for key, e := range t.overlay {
		if e == nil {
			delete(seen, key)
		} else {
			seen[key] = struct{}{}
		}
	}

	keys := []string{}
	for key := range seen {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (t *memTxn) PutScalar(key string, v domain.Value) error {
	if v.IsAbsent() {
		return domain.ErrInvalidValue.WithDetails("cannot store an absent value")
	}
	t.overlay[key] = &memEntry{scalar: v}
	return nil
}

func (t *memTxn) AddMembers(key string, members []string) error {
	set, err := t.setFor(key)
	if err != nil {
		return err
	}
	next := mapset.NewThreadUnsafeSet[string]()
	if set != nil {
		next = set.Clone()
	}
	next.Append(members...)
	t.overlay[key] = &memEntry{set: next}
	return nil
}

func (t *memTxn) RemoveMembers(key string, members []string) error {
	set, err := t.setFor(key)
	if err != nil || set == nil {
		return err
	}
	next := set.Clone()
	for _, m := range members {
		next.Remove(m)
	}
	if next.Cardinality() == 0 {
		return t.Delete(key)
	}
	t.overlay[key] = &memEntry{set: next}
	return nil
}

func (t *memTxn) Delete(key string) error {
	t.overlay[key] = nil
	return nil
}
