package adapter

import (
	"context"

	"github.com/yndnr/rolloutkv/internal/core/domain"
)

// Storage is the key/value and set contract shared by the flag synchronizer
// and the evaluation engine.
//
// Get returns domain.Absent() for a missing key. Absence is never an error.
type Storage interface {
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	Get(ctx context.Context, key string) (domain.Value, error)
	Set(ctx context.Context, key string, value domain.Value) error
	GetAndSet(ctx context.Context, key string, value domain.Value) (domain.Value, error)
	Delete(ctx context.Context, key string) error
	GetKeysByPrefix(ctx context.Context, prefix string) ([]string, error)
	GetMany(ctx context.Context, keys []string) ([]domain.Value, error)
	Increment(ctx context.Context, key string, delta int64) (int64, error)
	Decrement(ctx context.Context, key string, delta int64) (int64, error)

	SetContains(ctx context.Context, key, item string) (bool, error)
	SetAdd(ctx context.Context, key string, items ...string) error
	SetRemove(ctx context.Context, key string, items ...string) error
	SetMembers(ctx context.Context, key string) ([]string, error)
}

// QueueStorage is the queue part of the contract. Implementations that
// report Capabilities.Queues == false accept pushes and store nothing.
type QueueStorage interface {
	QueuePush(ctx context.Context, key string, items ...string) error
	QueuePop(ctx context.Context, key string) (domain.Value, error)
	QueueCount(ctx context.Context, key string) (int64, error)
}

// Capabilities describes optional features of a Storage implementation.
type Capabilities struct {
	Queues bool `json:"queues"`
}

var (
	_ Storage      = (*Adapter)(nil)
	_ QueueStorage = (*Adapter)(nil)
)
