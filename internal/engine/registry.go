package engine

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/yndnr/rolloutkv/internal/core/domain"
	"github.com/yndnr/rolloutkv/internal/protocol"
	"github.com/yndnr/rolloutkv/internal/storage"
	"github.com/yndnr/rolloutkv/internal/telemetry/metric"
	"github.com/yndnr/rolloutkv/pkg/cmap"
)

// metricsRegistrar is implemented by backends that export their own metrics.
type metricsRegistrar interface {
	RegisterMetrics(reg prometheus.Registerer, labels prometheus.Labels) error
}

// Registry hosts engine instances, creating each lazily on first address.
//
// Instances are keyed by their name-derived ID. Operations on different
// instances share no state and run fully in parallel.
type Registry struct {
	factory storage.Factory
	logger  *slog.Logger
	metrics *metric.Registry

	instances *cmap.Map[*Instance]

	// lifecycle is held shared while an instance is opened and exclusively
	// by Close, so Close never misses an instance opened concurrently.
	lifecycle sync.RWMutex
	closed    atomic.Bool
}

// Option configures the Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithMetrics records operation metrics and exports backend metrics.
func WithMetrics(m *metric.Registry) Option {
	return func(r *Registry) {
		r.metrics = m
	}
}

// NewRegistry creates a registry opening backends through factory.
func NewRegistry(factory storage.Factory, opts ...Option) *Registry {
	r := &Registry{
		factory:   factory,
		logger:    slog.Default(),
		instances: cmap.New[*Instance](),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Instance returns the instance addressed by name, opening it if needed.
func (r *Registry) Instance(name string) (*Instance, error) {
	if r.closed.Load() {
		return nil, domain.ErrEngineClosed
	}
	if err := domain.ValidateInstanceName(name); err != nil {
		return nil, err
	}

	id := domain.InstanceIDFromName(name)
	if inst, ok := r.instances.Get(id); ok {
		return checkName(inst, name)
	}

	r.lifecycle.RLock()
	defer r.lifecycle.RUnlock()
	if r.closed.Load() {
		return nil, domain.ErrEngineClosed
	}

	inst, loaded, err := r.instances.LoadOrCreate(id, func() (*Instance, error) {
		return r.open(name, id)
	})
	if err != nil {
		return nil, err
	}
	if loaded {
		return checkName(inst, name)
	}
	r.updateInstanceGauge()
	r.logger.Info("instance opened", "instance", name, "instance_id", id)
	return inst, nil
}

// open creates the backend and instance for id. It runs at most once per id.
func (r *Registry) open(name, id string) (*Instance, error) {
	backend, err := r.factory(id)
	if err != nil {
		r.logger.Error("open instance backend failed", "instance", name, "instance_id", id, "error", err)
		return nil, domain.ErrStorage.WithCause(err)
	}

	if r.metrics != nil {
		if mr, ok := backend.(metricsRegistrar); ok {
			if err := mr.RegisterMetrics(r.metrics.Registerer(), prometheus.Labels{"instance_id": id}); err != nil {
				r.logger.Warn("register backend metrics failed", "instance_id", id, "error", err)
			}
		}
	}

	return NewInstance(name, backend, r.logger), nil
}

func checkName(inst *Instance, name string) (*Instance, error) {
	if inst.Name() != name {
		return nil, domain.ErrInvalidInstanceName.WithDetails("instance id collision with " + inst.Name())
	}
	return inst, nil
}

// Dispatch routes req to the instance it addresses.
func (r *Registry) Dispatch(ctx context.Context, req *protocol.Request) *protocol.Response {
	start := time.Now()

	var resp *protocol.Response
	// An unknown selector must not open a backend for a new name.
	if _, err := domain.ParseOp(string(req.Op)); err != nil {
		resp = protocol.Fail(err)
	} else if inst, err := r.Instance(req.Instance); err != nil {
		resp = protocol.Fail(err)
	} else {
		resp = inst.Dispatch(ctx, req)
	}

	if r.metrics != nil {
		op := string(req.Op)
		if !req.Op.Valid() {
			op = "unknown"
		}
		r.metrics.RecordOperation(op, strconv.Itoa(resp.Status), time.Since(start).Seconds())
	}
	return resp
}

// Len returns the number of open instances.
func (r *Registry) Len() int {
	return r.instances.Count()
}

// Closed reports whether Close has been called.
func (r *Registry) Closed() bool {
	return r.closed.Load()
}

// Names returns the names of open instances, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, r.instances.Count())
	for _, inst := range r.instances.All() {
		names = append(names, inst.Name())
	}
	sort.Strings(names)
	return names
}

// StorageSamples returns per-instance storage statistics for the metrics collector.
func (r *Registry) StorageSamples() []metric.StorageSample {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var samples []metric.StorageSample
	for _, inst := range r.instances.Values() {
		stats, err := inst.Stats(ctx)
		if err != nil {
			continue
		}
		samples = append(samples, metric.StorageSample{
			InstanceID: inst.ID(),
			Backend:    stats.Backend,
			Keys:       stats.TotalKeys,
			SizeBytes:  stats.TotalSize,
		})
	}
	return samples
}

// Close closes every instance. Later dispatches fail with ErrEngineClosed.
func (r *Registry) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}

	r.lifecycle.Lock()
	defer r.lifecycle.Unlock()

	var errs []error
	for _, id := range r.instances.Keys() {
		inst, ok := r.instances.Pop(id)
		if !ok {
			continue
		}
		if err := inst.Close(); err != nil {
			r.logger.Error("close instance failed", "instance", inst.Name(), "error", err)
			errs = append(errs, err)
		}
	}
	r.updateInstanceGauge()

	r.logger.Info("engine registry closed")
	return errors.Join(errs...)
}

func (r *Registry) updateInstanceGauge() {
	if r.metrics != nil {
		r.metrics.SetInstances(r.instances.Count())
	}
}
