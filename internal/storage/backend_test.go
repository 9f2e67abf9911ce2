package storage

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"

	"github.com/yndnr/rolloutkv/internal/core/domain"
)

// BackendFactory creates a fresh Backend for one test.
type BackendFactory func(t *testing.T) Backend

// RunBackendTests runs the shared suite against any Backend implementation.
func RunBackendTests(t *testing.T, name string, factory BackendFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("ScalarAbsent", func(t *testing.T) {
			testScalarAbsent(t, factory)
		})
		t.Run("ScalarKinds", func(t *testing.T) {
			testScalarKinds(t, factory)
		})
		t.Run("Overwrite", func(t *testing.T) {
			testOverwrite(t, factory)
		})
		t.Run("DeleteIdempotent", func(t *testing.T) {
			testDeleteIdempotent(t, factory)
		})
		t.Run("KeysByPrefix", func(t *testing.T) {
			testKeysByPrefix(t, factory)
		})
		t.Run("SetMembers", func(t *testing.T) {
			testSetMembers(t, factory)
		})
		t.Run("SetRemoveEmptiesKey", func(t *testing.T) {
			testSetRemoveEmptiesKey(t, factory)
		})
		t.Run("TypeMismatch", func(t *testing.T) {
			testTypeMismatch(t, factory)
		})
		t.Run("UpdateRollback", func(t *testing.T) {
			testUpdateRollback(t, factory)
		})
		t.Run("ReadYourWrites", func(t *testing.T) {
			testReadYourWrites(t, factory)
		})
		t.Run("EdgeKeys", func(t *testing.T) {
			testEdgeKeys(t, factory)
		})
		t.Run("Clear", func(t *testing.T) {
			testClear(t, factory)
		})
		t.Run("ConcurrentUpdates", func(t *testing.T) {
			testConcurrentUpdates(t, factory)
		})
		t.Run("Closed", func(t *testing.T) {
			testClosed(t, factory)
		})
		t.Run("CancelledContext", func(t *testing.T) {
			testCancelledContext(t, factory)
		})
	})
}

func put(t *testing.T, b Backend, key string, v domain.Value) {
	t.Helper()
	err := b.Update(context.Background(), func(rw ReadWriter) error {
		return rw.PutScalar(key, v)
	})
	if err != nil {
		t.Fatalf("PutScalar(%q): %v", key, err)
	}
}

func scalar(t *testing.T, b Backend, key string) domain.Value {
	t.Helper()
	var v domain.Value
	err := b.View(context.Background(), func(r Reader) error {
		var err error
		v, err = r.Scalar(key)
		return err
	})
	if err != nil {
		t.Fatalf("Scalar(%q): %v", key, err)
	}
	return v
}

func members(t *testing.T, b Backend, key string) []string {
	t.Helper()
	var out []string
	err := b.View(context.Background(), func(r Reader) error {
		var err error
		out, err = r.Members(key)
		return err
	})
	if err != nil {
		t.Fatalf("Members(%q): %v", key, err)
	}
	return out
}

func keys(t *testing.T, b Backend, prefix string) []string {
	t.Helper()
	var out []string
	err := b.View(context.Background(), func(r Reader) error {
		var err error
		out, err = r.Keys(prefix)
		return err
	})
	if err != nil {
		t.Fatalf("Keys(%q): %v", prefix, err)
	}
	return out
}

func testScalarAbsent(t *testing.T, factory BackendFactory) {
	b := factory(t)

	if v := scalar(t, b, "missing"); !v.IsAbsent() {
		t.Errorf("expected absent, got %v", v)
	}
}

func testScalarKinds(t *testing.T, factory BackendFactory) {
	b := factory(t)

	values := map[string]domain.Value{
		"str":      domain.String("rollout"),
		"empty":    domain.String(""),
		"zero":     domain.Int(0),
		"negative": domain.Int(-42),
		"numeric":  domain.String("17"),
	}
	for k, v := range values {
		put(t, b, k, v)
	}
	for k, want := range values {
		got := scalar(t, b, k)
		if !got.Equal(want) {
			t.Errorf("Scalar(%q) = %v (%s), want %v (%s)", k, got, got.Kind(), want, want.Kind())
		}
	}
}

func testOverwrite(t *testing.T, factory BackendFactory) {
	b := factory(t)

	put(t, b, "k", domain.String("v1"))
	put(t, b, "k", domain.Int(2))

	if got := scalar(t, b, "k"); !got.Equal(domain.Int(2)) {
		t.Errorf("expected 2, got %v", got)
	}
}

func testDeleteIdempotent(t *testing.T, factory BackendFactory) {
	b := factory(t)
	ctx := context.Background()

	put(t, b, "k", domain.String("v"))
	for i := 0; i < 2; i++ {
		if err := b.Update(ctx, func(rw ReadWriter) error { return rw.Delete("k") }); err != nil {
			t.Fatalf("Delete #%d: %v", i, err)
		}
	}
	if got := scalar(t, b, "k"); !got.IsAbsent() {
		t.Errorf("expected absent after delete, got %v", got)
	}
}

func testKeysByPrefix(t *testing.T, factory BackendFactory) {
	b := factory(t)
	ctx := context.Background()

	put(t, b, "flag:b", domain.String("1"))
	put(t, b, "flag:a", domain.String("1"))
	put(t, b, "segment:x", domain.String("1"))
	err := b.Update(ctx, func(rw ReadWriter) error {
		return rw.AddMembers("flag:set", []string{"m"})
	})
	if err != nil {
		t.Fatal(err)
	}

	if got, want := keys(t, b, "flag:"), []string{"flag:a", "flag:b", "flag:set"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Keys(flag:) = %v, want %v", got, want)
	}
	if got := keys(t, b, "none:"); len(got) != 0 {
		t.Errorf("Keys(none:) = %v, want empty", got)
	}
	if got := keys(t, b, ""); len(got) != 4 {
		t.Errorf("Keys(\"\") = %v, want 4 keys", got)
	}
}

func testSetMembers(t *testing.T, factory BackendFactory) {
	b := factory(t)
	ctx := context.Background()

	if got := members(t, b, "s"); got == nil || len(got) != 0 {
		t.Errorf("Members(absent) = %#v, want empty non-nil", got)
	}

	for i := 0; i < 2; i++ {
		err := b.Update(ctx, func(rw ReadWriter) error {
			return rw.AddMembers("s", []string{"b", "a", "b"})
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	if got, want := members(t, b, "s"), []string{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("Members = %v, want %v", got, want)
	}

	var has, hasNot bool
	err := b.View(ctx, func(r Reader) error {
		var err error
		if has, err = r.HasMember("s", "a"); err != nil {
			return err
		}
		hasNot, err = r.HasMember("s", "z")
		return err
	})
	if err != nil {
		t.Fatal(err)
	}
	if !has || hasNot {
		t.Errorf("HasMember a=%v z=%v", has, hasNot)
	}
}

func testSetRemoveEmptiesKey(t *testing.T, factory BackendFactory) {
	b := factory(t)
	ctx := context.Background()

	err := b.Update(ctx, func(rw ReadWriter) error {
		if err := rw.RemoveMembers("absent", []string{"x"}); err != nil {
			return err
		}
		return rw.AddMembers("s", []string{"a", "b"})
	})
	if err != nil {
		t.Fatal(err)
	}

	err = b.Update(ctx, func(rw ReadWriter) error {
		return rw.RemoveMembers("s", []string{"a", "b", "c"})
	})
	if err != nil {
		t.Fatal(err)
	}

	if got := keys(t, b, ""); len(got) != 0 {
		t.Errorf("expected no keys after emptying set, got %v", got)
	}
}

func testTypeMismatch(t *testing.T, factory BackendFactory) {
	b := factory(t)
	ctx := context.Background()

	put(t, b, "scalar", domain.String("v"))
	err := b.Update(ctx, func(rw ReadWriter) error {
		return rw.AddMembers("scalar", []string{"m"})
	})
	if !errors.Is(err, domain.ErrInvalidValue) {
		t.Errorf("AddMembers on scalar: err = %v, want ErrInvalidValue", err)
	}
	if got := scalar(t, b, "scalar"); !got.Equal(domain.String("v")) {
		t.Errorf("scalar changed to %v", got)
	}

	err = b.Update(ctx, func(rw ReadWriter) error {
		return rw.AddMembers("set", []string{"m"})
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := scalar(t, b, "set"); !got.IsAbsent() {
		t.Errorf("Scalar on set key = %v, want absent", got)
	}
}

func testUpdateRollback(t *testing.T, factory BackendFactory) {
	b := factory(t)
	ctx := context.Background()

	put(t, b, "keep", domain.String("original"))

	boom := errors.New("boom")
	err := b.Update(ctx, func(rw ReadWriter) error {
		if err := rw.PutScalar("keep", domain.String("changed")); err != nil {
			return err
		}
		if err := rw.PutScalar("new", domain.Int(1)); err != nil {
			return err
		}
		if err := rw.AddMembers("set", []string{"x"}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Update err = %v, want boom", err)
	}

	if got := scalar(t, b, "keep"); !got.Equal(domain.String("original")) {
		t.Errorf("keep = %v, want original", got)
	}
	if got := keys(t, b, ""); !reflect.DeepEqual(got, []string{"keep"}) {
		t.Errorf("keys after rollback = %v", got)
	}
}

func testReadYourWrites(t *testing.T, factory BackendFactory) {
	b := factory(t)
	ctx := context.Background()

	put(t, b, "a", domain.String("1"))

	err := b.Update(ctx, func(rw ReadWriter) error {
		if err := rw.PutScalar("b", domain.Int(2)); err != nil {
			return err
		}
		if err := rw.Delete("a"); err != nil {
			return err
		}

		v, err := rw.Scalar("b")
		if err != nil {
			return err
		}
		if !v.Equal(domain.Int(2)) {
			t.Errorf("staged b = %v", v)
		}

		got, err := rw.Keys("")
		if err != nil {
			return err
		}
		if !reflect.DeepEqual(got, []string{"b"}) {
			t.Errorf("staged keys = %v, want [b]", got)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

// testEdgeKeys holds every backend to the same keyspace: the empty key and
// keys that collide with engine-internal names are ordinary keys.
func testEdgeKeys(t *testing.T, factory BackendFactory) {
	b := factory(t)

	edge := []string{"", "!badger!head", "!badger!x", "k", "kk"}
	for _, k := range edge {
		if v := scalar(t, b, k); !v.IsAbsent() {
			t.Errorf("Scalar(%q) before set = %v, want absent", k, v)
		}
	}
	for i, k := range edge {
		put(t, b, k, domain.Int(int64(i)))
	}
	for i, k := range edge {
		if got := scalar(t, b, k); !got.Equal(domain.Int(int64(i))) {
			t.Errorf("Scalar(%q) = %v, want %d", k, got, i)
		}
	}

	if got := keys(t, b, "!badger!"); !reflect.DeepEqual(got, []string{"!badger!head", "!badger!x"}) {
		t.Errorf("Keys(!badger!) = %v", got)
	}
	if got := keys(t, b, ""); len(got) != len(edge) {
		t.Errorf("Keys(\"\") = %v, want %d keys", got, len(edge))
	}

	err := b.Update(context.Background(), func(rw ReadWriter) error {
		return rw.Delete("")
	})
	if err != nil {
		t.Fatal(err)
	}
	if v := scalar(t, b, ""); !v.IsAbsent() {
		t.Errorf("Scalar(\"\") after delete = %v", v)
	}
}

func testClear(t *testing.T, factory BackendFactory) {
	b := factory(t)
	ctx := context.Background()

	put(t, b, "a", domain.String("1"))
	put(t, b, "b", domain.Int(2))
	err := b.Update(ctx, func(rw ReadWriter) error {
		return rw.AddMembers("s", []string{"x"})
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := b.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if got := keys(t, b, ""); len(got) != 0 {
		t.Errorf("keys after Clear = %v", got)
	}
	if got := members(t, b, "s"); len(got) != 0 {
		t.Errorf("members after Clear = %v", got)
	}

	put(t, b, "after", domain.String("x"))
	if got := keys(t, b, ""); !reflect.DeepEqual(got, []string{"after"}) {
		t.Errorf("keys = %v, want [after]", got)
	}

	stats, err := b.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalKeys != 1 {
		t.Errorf("TotalKeys = %d, want 1", stats.TotalKeys)
	}
}

// testConcurrentUpdates checks that read-modify-write inside Update does not
// lose increments when callers serialize through the backend alone.
func testConcurrentUpdates(t *testing.T, factory BackendFactory) {
	b := factory(t)
	ctx := context.Background()

	const workers = 8
	const perWorker = 25

	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				// Badger reports conflicts rather than serializing, so the
				// suite holds its own lock the way an engine instance does.
				mu.Lock()
				err := b.Update(ctx, func(rw ReadWriter) error {
					v, err := rw.Scalar("counter")
					if err != nil {
						return err
					}
					n, _ := v.Int64()
					return rw.PutScalar("counter", domain.Int(n+1))
				})
				mu.Unlock()
				if err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if got := scalar(t, b, "counter"); !got.Equal(domain.Int(workers * perWorker)) {
		t.Errorf("counter = %v, want %d", got, workers*perWorker)
	}
}

func testClosed(t *testing.T, factory BackendFactory) {
	b := factory(t)

	if err := b.Close(); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	err := b.View(context.Background(), func(Reader) error { return nil })
	if !errors.Is(err, domain.ErrEngineClosed) {
		t.Errorf("View after Close: err = %v, want ErrEngineClosed", err)
	}
	err = b.Update(context.Background(), func(ReadWriter) error { return nil })
	if !errors.Is(err, domain.ErrEngineClosed) {
		t.Errorf("Update after Close: err = %v, want ErrEngineClosed", err)
	}
	if err := b.Clear(context.Background()); !errors.Is(err, domain.ErrEngineClosed) {
		t.Errorf("Clear after Close: err = %v, want ErrEngineClosed", err)
	}
}

func testCancelledContext(t *testing.T, factory BackendFactory) {
	b := factory(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := b.Update(ctx, func(ReadWriter) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if called {
		t.Error("callback ran with a cancelled context")
	}
}
