package storage

import (
	"context"
	"testing"

	"github.com/yndnr/rolloutkv/internal/core/domain"
)

func TestMemoryBackend(t *testing.T) {
	RunBackendTests(t, "MemoryBackend", func(t *testing.T) Backend {
		b := NewMemoryBackend()
		t.Cleanup(func() { b.Close() })
		return b
	})
}

func TestMemoryBackend_CommittedEntriesAreImmutable(t *testing.T) {
	b := NewMemoryBackend()
	ctx := context.Background()

	err := b.Update(ctx, func(rw ReadWriter) error {
		return rw.AddMembers("s", []string{"a"})
	})
	if err != nil {
		t.Fatal(err)
	}

	// A failed update that touched the set must not leak into the committed copy.
	_ = b.Update(ctx, func(rw ReadWriter) error {
		if err := rw.AddMembers("s", []string{"b"}); err != nil {
			return err
		}
		return domain.ErrInvalidRequest
	})

	if got := members(t, b, "s"); len(got) != 1 || got[0] != "a" {
		t.Errorf("Members = %v, want [a]", got)
	}
}

func TestMemoryBackend_PutAbsentRejected(t *testing.T) {
	b := NewMemoryBackend()
	err := b.Update(context.Background(), func(rw ReadWriter) error {
		return rw.PutScalar("k", domain.Absent())
	})
	if err == nil {
		t.Error("expected error storing absent value")
	}
}
