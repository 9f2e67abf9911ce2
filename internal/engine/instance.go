package engine

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"sync"

	"github.com/yndnr/rolloutkv/internal/core/domain"
	"github.com/yndnr/rolloutkv/internal/storage"
	"github.com/yndnr/rolloutkv/internal/telemetry/logger"
)

// Instance is one addressed engine instance. It exclusively owns its backend.
//
// Thread Safety:
//
// Pure reads hold mu.RLock and may interleave with other reads. Writes,
// read-then-write operations and clearAll hold mu.Lock for their whole
// critical section and run inside a single backend Update, so no other
// operation observes the store between their read and their write.
type Instance struct {
	name    string
	id      string
	backend storage.Backend
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewInstance wraps backend as the instance addressed by name.
func NewInstance(name string, backend storage.Backend, log *slog.Logger) *Instance {
	if log == nil {
		log = slog.Default()
	}
	id := domain.InstanceIDFromName(name)
	return &Instance{
		name:    name,
		id:      id,
		backend: backend,
		logger:  log.With("instance_id", id),
	}
}

// Name returns the application-level instance name.
func (i *Instance) Name() string { return i.name }

// ID returns the name-derived instance ID.
func (i *Instance) ID() string { return i.id }

// Stats returns backend statistics.
func (i *Instance) Stats(ctx context.Context) (*storage.KVStats, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return nil, domain.ErrEngineClosed
	}
	return i.backend.Stats(ctx)
}

// Close waits for in-flight operations, closes the backend and rejects
// later calls with ErrEngineClosed.
func (i *Instance) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return nil
	}
	i.closed = true
	return i.backend.Close()
}

func (i *Instance) read(ctx context.Context, fn func(storage.Reader) error) error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.closed {
		return domain.ErrEngineClosed
	}
	return i.backend.View(ctx, fn)
}

func (i *Instance) write(ctx context.Context, fn func(storage.ReadWriter) error) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.closed {
		return domain.ErrEngineClosed
	}
	return i.backend.Update(ctx, fn)
}

// logContext returns ctx naming this instance for context-aware handlers.
func (i *Instance) logContext(ctx context.Context) context.Context {
	if logger.InstanceFromContext(ctx) == i.name {
		return ctx
	}
	return logger.WithInstance(ctx, i.name)
}

func (i *Instance) clear(ctx context.Context) error {
	if i.closed {
		return domain.ErrEngineClosed
	}
	return i.backend.Clear(ctx)
}

// Get returns the scalar at key, or domain.Absent().
func (i *Instance) Get(ctx context.Context, key string) (domain.Value, error) {
	var v domain.Value
	err := i.read(ctx, func(r storage.Reader) error {
		var err error
		v, err = r.Scalar(key)
		return err
	})
	return v, err
}

// Set stores value at key.
func (i *Instance) Set(ctx context.Context, key string, value domain.Value) error {
	if value.IsAbsent() {
		return domain.ErrInvalidValue.WithDetails("set requires a value")
	}
	return i.write(ctx, func(rw storage.ReadWriter) error {
		return rw.PutScalar(key, value)
	})
}

// GetAndSet stores value at key and returns the previous scalar.
func (i *Instance) GetAndSet(ctx context.Context, key string, value domain.Value) (domain.Value, error) {
	if value.IsAbsent() {
		return domain.Absent(), domain.ErrInvalidValue.WithDetails("getAndSet requires a value")
	}
	var prev domain.Value
	err := i.write(ctx, func(rw storage.ReadWriter) error {
		var err error
		if prev, err = rw.Scalar(key); err != nil {
			return err
		}
		return rw.PutScalar(key, value)
	})
	if err != nil {
		return domain.Absent(), err
	}
	return prev, nil
}

// Delete removes key. Deleting an absent key succeeds.
func (i *Instance) Delete(ctx context.Context, key string) error {
	return i.write(ctx, func(rw storage.ReadWriter) error {
		return rw.Delete(key)
	})
}

// GetKeysByPrefix returns the keys starting with prefix, sorted.
func (i *Instance) GetKeysByPrefix(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	err := i.read(ctx, func(r storage.Reader) error {
		var err error
		keys, err = r.Keys(prefix)
		return err
	})
	return keys, err
}

// GetMany returns one value per key, in order; absent keys yield domain.Absent().
func (i *Instance) GetMany(ctx context.Context, keys []string) ([]domain.Value, error) {
	values := make([]domain.Value, len(keys))
	err := i.read(ctx, func(r storage.Reader) error {
		for n, key := range keys {
			v, err := r.Scalar(key)
			if err != nil {
				return err
			}
			values[n] = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return values, nil
}

// Increment adds delta to the integer at key and returns the new value.
//
// An absent key counts as 0. A stored string that parses as an integer is
// used as that integer; any other string fails with ErrInvalidValue. The
// result is always stored as an integer.
func (i *Instance) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	var next int64
	err := i.write(ctx, func(rw storage.ReadWriter) error {
		current, err := rw.Scalar(key)
		if err != nil {
			return err
		}
		base, err := asInteger(key, current)
		if err != nil {
			return err
		}
		if (delta > 0 && base > math.MaxInt64-delta) || (delta < 0 && base < math.MinInt64-delta) {
			return domain.ErrInvalidValue.WithDetails("integer overflow at key " + key)
		}
		next = base + delta
		return rw.PutScalar(key, domain.Int(next))
	})
	if err != nil {
		return 0, err
	}
	return next, nil
}

// Decrement subtracts delta from the integer at key and returns the new value.
func (i *Instance) Decrement(ctx context.Context, key string, delta int64) (int64, error) {
	if delta == math.MinInt64 {
		return 0, domain.ErrInvalidValue.WithDetails("delta out of range")
	}
	return i.Increment(ctx, key, -delta)
}

func asInteger(key string, v domain.Value) (int64, error) {
	if v.IsAbsent() {
		return 0, nil
	}
	if n, ok := v.Int64(); ok {
		return n, nil
	}
	s, _ := v.Str()
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, domain.ErrInvalidValue.WithDetails("key " + key + " does not hold an integer")
	}
	return n, nil
}

// SetContains reports whether item belongs to the set at key.
func (i *Instance) SetContains(ctx context.Context, key, item string) (bool, error) {
	var ok bool
	err := i.read(ctx, func(r storage.Reader) error {
		var err error
		ok, err = r.HasMember(key, item)
		return err
	})
	return ok, err
}

// SetAdd adds items to the set at key, creating it if absent.
func (i *Instance) SetAdd(ctx context.Context, key string, items []string) error {
	return i.write(ctx, func(rw storage.ReadWriter) error {
		return rw.AddMembers(key, items)
	})
}

// SetRemove removes items from the set at key. An absent key is a no-op.
func (i *Instance) SetRemove(ctx context.Context, key string, items []string) error {
	return i.write(ctx, func(rw storage.ReadWriter) error {
		return rw.RemoveMembers(key, items)
	})
}

// SetMembers returns the members of the set at key, sorted; empty if absent.
func (i *Instance) SetMembers(ctx context.Context, key string) ([]string, error) {
	var members []string
	err := i.read(ctx, func(r storage.Reader) error {
		var err error
		members, err = r.Members(key)
		return err
	})
	return members, err
}

// ClearAll atomically removes every entry. It holds the exclusive lock
// around a backend-level clear, so no operation observes a partial reset.
func (i *Instance) ClearAll(ctx context.Context) error {
	i.mu.Lock()
	err := i.clear(ctx)
	i.mu.Unlock()
	if err == nil {
		i.logger.InfoContext(i.logContext(ctx), "instance cleared")
	}
	return err
}

// QueuePush accepts items and stores nothing.
func (i *Instance) QueuePush(context.Context, string, []string) error {
	return nil
}

// QueuePop always yields absent.
func (i *Instance) QueuePop(context.Context, string) (domain.Value, error) {
	return domain.Absent(), nil
}

// QueueCount always yields 0.
func (i *Instance) QueueCount(context.Context, string) (int64, error) {
	return 0, nil
}
