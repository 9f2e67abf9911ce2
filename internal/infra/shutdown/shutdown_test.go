package shutdown

import (
	"context"
	"errors"
	"sync"
	"syscall"
	"testing"
	"time"
)

func TestNewHandler(t *testing.T) {
	h := NewHandler(5 * time.Second)
	if h == nil {
		t.Fatal("NewHandler returned nil")
	}
	if h.timeout != 5*time.Second {
		t.Errorf("timeout = %v, want 5s", h.timeout)
	}
	if len(h.signals) != 2 {
		t.Errorf("default signals = %v, want SIGINT and SIGTERM", h.signals)
	}
	if h.done == nil {
		t.Error("done channel should be initialized")
	}

	custom := NewHandler(time.Second, syscall.SIGUSR1)
	if len(custom.signals) != 1 || custom.signals[0] != syscall.SIGUSR1 {
		t.Errorf("signals = %v, want [SIGUSR1]", custom.signals)
	}
}

func TestHandler_Done(t *testing.T) {
	h := NewHandler(5 * time.Second)

	select {
	case <-h.Done():
		t.Error("Done channel should not be closed initially")
	default:
	}
}

func TestHandler_Trigger(t *testing.T) {
	h := NewHandler(5 * time.Second)

	var (
		order []int
		mu    sync.Mutex
	)
	for i := 1; i <= 3; i++ {
		h.OnShutdown(func(ctx context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
	}

	h.Trigger("listener failed")
	h.Trigger("second call is ignored")

	reason, err := h.Wait()
	if err != nil {
		t.Fatalf("Wait() error: %v", err)
	}
	if reason != "listener failed" {
		t.Errorf("reason = %q", reason)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 3 || order[0] != 3 || order[1] != 2 || order[2] != 1 {
		t.Errorf("hooks called in order %v, want [3 2 1]", order)
	}

	select {
	case <-h.Done():
	default:
		t.Error("Done channel should be closed after Wait completes")
	}
}

func TestHandler_Wait_WithSignal(t *testing.T) {
	h := NewHandler(5*time.Second, syscall.SIGUSR1)

	called := make(chan struct{}, 1)
	h.OnShutdown(func(ctx context.Context) error {
		called <- struct{}{}
		return nil
	})

	type result struct {
		reason string
		err    error
	}
	resCh := make(chan result, 1)
	go func() {
		reason, err := h.Wait()
		resCh <- result{reason, err}
	}()

	// Give Wait time to install the signal handler.
	time.Sleep(50 * time.Millisecond)
	syscall.Kill(syscall.Getpid(), syscall.SIGUSR1)

	select {
	case res := <-resCh:
		if res.err != nil {
			t.Errorf("Wait() error: %v", res.err)
		}
		if res.reason != syscall.SIGUSR1.String() {
			t.Errorf("reason = %q", res.reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not complete in time")
	}

	select {
	case <-called:
	default:
		t.Error("hook was not called")
	}
}

func TestHandler_Wait_HookErrors(t *testing.T) {
	h := NewHandler(5 * time.Second)

	errA := errors.New("close storage")
	errB := errors.New("stop watcher")

	h.OnShutdown(func(ctx context.Context) error { return errA })
	h.OnShutdown(func(ctx context.Context) error { return nil })
	h.OnShutdown(func(ctx context.Context) error { return errB })

	h.Trigger("test")
	_, err := h.Wait()
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Wait() = %v, want both hook errors", err)
	}
}

func TestHandler_HookDeadline(t *testing.T) {
	h := NewHandler(20 * time.Millisecond)

	h.OnShutdown(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	h.Trigger("test")
	_, err := h.Wait()
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() = %v, want DeadlineExceeded", err)
	}
}

func TestHandler_ConcurrentOnShutdown(t *testing.T) {
	h := NewHandler(5 * time.Second)

	var wg sync.WaitGroup
	numGoroutines := 10

	for i := 0; i < numGoroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.OnShutdown(func(ctx context.Context) error {
				return nil
			})
		}()
	}

	wg.Wait()

	h.mu.Lock()
	if len(h.hooks) != numGoroutines {
		t.Errorf("expected %d hooks, got %d", numGoroutines, len(h.hooks))
	}
	h.mu.Unlock()
}
