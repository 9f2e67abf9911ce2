package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"sync"

	"github.com/yndnr/rolloutkv/internal/core/domain"
	"github.com/yndnr/rolloutkv/internal/protocol"
	"github.com/yndnr/rolloutkv/internal/transport"
)

// WriteMode selects how Set, SetAdd and SetRemove report completion.
type WriteMode int

const (
	// WriteConfirmed returns after the engine acknowledged the write.
	WriteConfirmed WriteMode = iota
	// WriteBestEffort returns once the write is queued. Failures are logged
	// and reported by Flush or Disconnect.
	WriteBestEffort
)

// String implements fmt.Stringer.
func (m WriteMode) String() string {
	switch m {
	case WriteConfirmed:
		return "confirmed"
	case WriteBestEffort:
		return "best-effort"
	default:
		return "unknown"
	}
}

// ParseWriteMode parses "confirmed" or "best-effort".
func ParseWriteMode(s string) (WriteMode, error) {
	switch s {
	case "", "confirmed":
		return WriteConfirmed, nil
	case "best-effort", "best_effort":
		return WriteBestEffort, nil
	}
	return WriteConfirmed, domain.ErrInvalidConfig.WithDetails("unknown write mode " + strconv.Quote(s))
}

// WriteOptions overrides adapter defaults for a single write.
type WriteOptions struct {
	Mode WriteMode
}

// DefaultWriteBehindBuffer is the default capacity of the best-effort queue.
const DefaultWriteBehindBuffer = 256

// Option configures an Adapter.
type Option func(*Adapter)

// WithLogger sets the adapter logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = l
	}
}

// WithWriteMode sets the default write mode.
func WithWriteMode(m WriteMode) Option {
	return func(a *Adapter) {
		a.mode = m
	}
}

// WithWriteBehindBuffer sets the capacity of the best-effort queue.
// When the queue is full, best-effort writes block until there is room.
func WithWriteBehindBuffer(n int) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.bufferSize = n
		}
	}
}

// Adapter implements Storage over a transport.Handle.
//
// Thread Safety:
//
// An Adapter is safe for concurrent use. Ordering guarantees hold per
// caller goroutine: a call never overtakes a best-effort write enqueued
// before it.
type Adapter struct {
	handle     transport.Handle
	logger     *slog.Logger
	mode       WriteMode
	bufferSize int

	// mu guards the write-behind queue state. Enqueuers hold it while
	// sending so the queue order matches the order of last.
	mu         sync.Mutex
	queue      chan *pendingWrite
	workerDone chan struct{}
	last       chan struct{}
	cancel     context.CancelFunc

	errMu sync.Mutex
	bgErr error
}

type pendingWrite struct {
	req  *protocol.Request
	done chan struct{}
}

// New returns an adapter sending requests through handle.
func New(handle transport.Handle, opts ...Option) *Adapter {
	a := &Adapter{
		handle:     handle,
		logger:     slog.Default(),
		bufferSize: DefaultWriteBehindBuffer,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Capabilities reports that queues are not supported.
func (a *Adapter) Capabilities() Capabilities {
	return Capabilities{Queues: false}
}

// Connect validates the adapter configuration. It performs no network
// activity. When the default write mode is best-effort it starts the
// write-behind worker.
func (a *Adapter) Connect(ctx context.Context) error {
	if a.handle == nil {
		return domain.ErrNoEngineHandle
	}
	if a.mode == WriteBestEffort {
		a.mu.Lock()
		a.startWorkerLocked(ctx)
		a.mu.Unlock()
	}
	a.logger.Debug("storage adapter connected", "write_mode", a.mode.String())
	return nil
}

// Disconnect drains pending best-effort writes and stops the worker.
// It returns the first best-effort write error observed, if any.
func (a *Adapter) Disconnect(ctx context.Context) error {
	a.mu.Lock()
	queue, workerDone, cancel := a.queue, a.workerDone, a.cancel
	if queue != nil {
		close(queue)
		a.queue = nil
		a.workerDone = nil
	}
	a.mu.Unlock()

	if workerDone != nil {
		select {
		case <-workerDone:
		case <-ctx.Done():
			cancel()
			return ctx.Err()
		}
		cancel()
	}

	a.logger.Debug("storage adapter disconnected")
	return a.takeBackgroundError()
}

// Flush waits until every queued best-effort write has been sent and
// returns the first failure among them, if any.
func (a *Adapter) Flush(ctx context.Context) error {
	if err := a.barrier(ctx); err != nil {
		return err
	}
	return a.takeBackgroundError()
}

// Get returns the scalar at key, or domain.Absent().
func (a *Adapter) Get(ctx context.Context, key string) (domain.Value, error) {
	resp, err := a.call(ctx, domain.OpGet, key, nil)
	if err != nil {
		return domain.Absent(), err
	}
	return decodeValue(resp)
}

// Set stores value at key using the default write mode.
func (a *Adapter) Set(ctx context.Context, key string, value domain.Value) error {
	return a.SetWith(ctx, key, value, WriteOptions{Mode: a.mode})
}

// SetWith stores value at key using opts.
func (a *Adapter) SetWith(ctx context.Context, key string, value domain.Value, opts WriteOptions) error {
	if value.IsAbsent() {
		return domain.ErrInvalidValue.WithDetails("set requires a value")
	}
	return a.write(ctx, domain.OpSet, key, value, opts)
}

// GetAndSet stores value at key and returns the previous scalar.
func (a *Adapter) GetAndSet(ctx context.Context, key string, value domain.Value) (domain.Value, error) {
	if value.IsAbsent() {
		return domain.Absent(), domain.ErrInvalidValue.WithDetails("getAndSet requires a value")
	}
	resp, err := a.call(ctx, domain.OpGetAndSet, key, value)
	if err != nil {
		return domain.Absent(), err
	}
	return decodeValue(resp)
}

// Delete removes key. Deleting an absent key succeeds.
func (a *Adapter) Delete(ctx context.Context, key string) error {
	_, err := a.call(ctx, domain.OpDelete, key, nil)
	return err
}

// GetKeysByPrefix returns the keys starting with prefix.
func (a *Adapter) GetKeysByPrefix(ctx context.Context, prefix string) ([]string, error) {
	resp, err := a.call(ctx, domain.OpGetKeysByPrefix, prefix, nil)
	if err != nil {
		return nil, err
	}
	return decodeStrings(resp)
}

// GetMany returns one value per key, in order. Missing keys yield
// domain.Absent() at their position.
func (a *Adapter) GetMany(ctx context.Context, keys []string) ([]domain.Value, error) {
	if keys == nil {
		keys = []string{}
	}
	resp, err := a.call(ctx, domain.OpGetMany, "", keys)
	if err != nil {
		return nil, err
	}
	values := []domain.Value{}
	if !resp.IsEmpty() {
		if err := protocol.DecodeBody(resp.Body, &values); err != nil {
			return nil, err
		}
	}
	if len(values) != len(keys) {
		return nil, domain.ErrRemote.WithDetails("getMany returned " + strconv.Itoa(len(values)) + " values for " + strconv.Itoa(len(keys)) + " keys")
	}
	return values, nil
}

// Increment adds delta to the integer at key and returns the new value.
func (a *Adapter) Increment(ctx context.Context, key string, delta int64) (int64, error) {
	return a.counter(ctx, domain.OpIncrement, key, delta)
}

// Decrement subtracts delta from the integer at key and returns the new value.
func (a *Adapter) Decrement(ctx context.Context, key string, delta int64) (int64, error) {
	return a.counter(ctx, domain.OpDecrement, key, delta)
}

func (a *Adapter) counter(ctx context.Context, op domain.Op, key string, delta int64) (int64, error) {
	// A delta of 1 is the engine default and travels without a body
	var body any
	if delta != 1 {
		body = delta
	}
	resp, err := a.call(ctx, op, key, body)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := protocol.DecodeBody(resp.Body, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// SetContains reports whether item belongs to the set at key.
func (a *Adapter) SetContains(ctx context.Context, key, item string) (bool, error) {
	resp, err := a.call(ctx, domain.OpSetContains, key, item)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := protocol.DecodeBody(resp.Body, &ok); err != nil {
		return false, err
	}
	return ok, nil
}

// SetAdd adds items to the set at key using the default write mode.
func (a *Adapter) SetAdd(ctx context.Context, key string, items ...string) error {
	return a.SetAddWith(ctx, key, items, WriteOptions{Mode: a.mode})
}

// SetAddWith adds items to the set at key using opts.
func (a *Adapter) SetAddWith(ctx context.Context, key string, items []string, opts WriteOptions) error {
	return a.write(ctx, domain.OpSetAdd, key, nonNil(items), opts)
}

// SetRemove removes items from the set at key using the default write mode.
func (a *Adapter) SetRemove(ctx context.Context, key string, items ...string) error {
	return a.SetRemoveWith(ctx, key, items, WriteOptions{Mode: a.mode})
}

// SetRemoveWith removes items from the set at key using opts.
func (a *Adapter) SetRemoveWith(ctx context.Context, key string, items []string, opts WriteOptions) error {
	return a.write(ctx, domain.OpSetRemove, key, nonNil(items), opts)
}

// SetMembers returns the members of the set at key; empty if absent.
func (a *Adapter) SetMembers(ctx context.Context, key string) ([]string, error) {
	resp, err := a.call(ctx, domain.OpSetMembers, key, nil)
	if err != nil {
		return nil, err
	}
	return decodeStrings(resp)
}

// QueuePush accepts items and stores nothing.
func (a *Adapter) QueuePush(context.Context, string, ...string) error {
	return nil
}

// QueuePop always yields absent.
func (a *Adapter) QueuePop(context.Context, string) (domain.Value, error) {
	return domain.Absent(), nil
}

// QueueCount always yields 0.
func (a *Adapter) QueueCount(context.Context, string) (int64, error) {
	return 0, nil
}

// call waits for queued writes, then exchanges one request.
func (a *Adapter) call(ctx context.Context, op domain.Op, key string, body any) (*protocol.Response, error) {
	req, err := newRequest(op, key, body)
	if err != nil {
		return nil, err
	}
	if err := a.barrier(ctx); err != nil {
		return nil, err
	}
	return exchange(ctx, a.handle, req)
}

func (a *Adapter) write(ctx context.Context, op domain.Op, key string, body any, opts WriteOptions) error {
	if opts.Mode != WriteBestEffort {
		_, err := a.call(ctx, op, key, body)
		return err
	}

	req, err := newRequest(op, key, body)
	if err != nil {
		return err
	}
	if a.handle == nil {
		return domain.ErrNoEngineHandle
	}
	return a.enqueue(ctx, req)
}

func (a *Adapter) enqueue(ctx context.Context, req *protocol.Request) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.startWorkerLocked(ctx)

	w := &pendingWrite{req: req, done: make(chan struct{})}
	select {
	case a.queue <- w:
		a.last = w.done
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// startWorkerLocked starts the write-behind worker if it is not running.
// The worker outlives the caller's cancellation but keeps its values.
func (a *Adapter) startWorkerLocked(ctx context.Context) {
	if a.queue != nil {
		return
	}
	a.queue = make(chan *pendingWrite, a.bufferSize)
	a.workerDone = make(chan struct{})
	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	a.cancel = cancel
	go a.runWorker(workerCtx, a.queue, a.workerDone)
}

func (a *Adapter) runWorker(ctx context.Context, queue <-chan *pendingWrite, done chan<- struct{}) {
	defer close(done)
	for w := range queue {
		if _, err := exchange(ctx, a.handle, w.req); err != nil {
			a.logger.Warn("best-effort write failed",
				"op", w.req.Op,
				"key", w.req.Key,
				"error", err)
			a.recordBackgroundError(err)
		}
		close(w.done)
	}
}

// barrier waits until the most recently enqueued write has completed.
func (a *Adapter) barrier(ctx context.Context) error {
	a.mu.Lock()
	last := a.last
	a.mu.Unlock()

	if last == nil {
		return ctx.Err()
	}
	select {
	case <-last:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Adapter) recordBackgroundError(err error) {
	a.errMu.Lock()
	defer a.errMu.Unlock()
	if a.bgErr == nil {
		a.bgErr = err
	}
}

func (a *Adapter) takeBackgroundError() error {
	a.errMu.Lock()
	defer a.errMu.Unlock()
	err := a.bgErr
	a.bgErr = nil
	return err
}

func newRequest(op domain.Op, key string, body any) (*protocol.Request, error) {
	req := &protocol.Request{Op: op, Key: key}
	if body != nil {
		raw, err := protocol.EncodeBody(body)
		if err != nil {
			return nil, err
		}
		req.Body = raw
	}
	return req, nil
}

// exchange sends req through handle and converts failures into errors.
func exchange(ctx context.Context, handle transport.Handle, req *protocol.Request) (*protocol.Response, error) {
	if handle == nil {
		return nil, domain.ErrNoEngineHandle
	}
	resp, err := handle.RoundTrip(ctx, req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		var de *domain.DomainError
		if errors.As(err, &de) {
			return nil, err
		}
		return nil, domain.ErrRemote.WithCause(err)
	}
	if err := resp.Err(); err != nil {
		return nil, err
	}
	return resp, nil
}

func decodeValue(resp *protocol.Response) (domain.Value, error) {
	if resp.IsEmpty() {
		return domain.Absent(), nil
	}
	var v domain.Value
	if err := protocol.DecodeBody(resp.Body, &v); err != nil {
		return domain.Absent(), err
	}
	return v, nil
}

func decodeStrings(resp *protocol.Response) ([]string, error) {
	out := []string{}
	if resp.IsEmpty() {
		return out, nil
	}
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return nil, domain.ErrRemote.WithCause(err)
	}
	if out == nil {
		out = []string{}
	}
	return out, nil
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
