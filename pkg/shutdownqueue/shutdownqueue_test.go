package shutdownqueue

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestAddNilTaskIsIgnored(t *testing.T) {
	t.Parallel()

	q := New()
	q.Add(nil)

	if q.Len() != 0 {
		t.Fatalf("nil task registered")
	}

	err := q.Shutdown(t.Context())
	if err != nil {
		t.Fatalf("expected nil after adding nil task; got %v", err)
	}
}

func TestLIFOOrder(t *testing.T) {
	t.Parallel()

	q := New()

	var order []int
	for i := 1; i <= 3; i++ {
		n := i
		q.Add(func(context.Context) error {
			order = append(order, n)
			return nil
		})
	}

	err := q.Shutdown(t.Context())
	if err != nil {
		t.Fatalf("Shutdown error: %v", err)
	}

	want := []int{3, 2, 1}
	if len(order) != len(want) {
		t.Fatalf("order len mismatch: got %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order mismatch at %d: got %v, want %v", i, order, want)
		}
	}
}

func TestPanicRecoveryIncludedAndContinues(t *testing.T) {
	t.Parallel()

	q := New()

	var ranAfterPanic atomic.Bool

	// LIFO: the first registered task runs last.
	q.Add(func(context.Context) error {
		ranAfterPanic.Store(true)
		return nil
	})
	q.Add(func(context.Context) error { panic("boom") })

	err := q.Shutdown(t.Context())
	if err == nil {
		t.Fatalf("expected aggregated error with panic; got nil")
	}
	if !strings.Contains(err.Error(), "panic in shutdown task: boom") {
		t.Fatalf("expected panic message in error; got: %q", err.Error())
	}
	if !ranAfterPanic.Load() {
		t.Fatalf("expected tasks after the panic to still run")
	}
}

func TestEarlyCancelStopsDrain(t *testing.T) {
	t.Parallel()

	q := New()

	var ranB atomic.Bool
	gateReady := make(chan struct{})

	q.Add(func(context.Context) error {
		ranB.Store(true)
		return nil
	})
	q.Add(func(ctx context.Context) error {
		close(gateReady)
		<-ctx.Done()
		return nil
	})

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)

	go func() { errCh <- q.Shutdown(ctx) }()

	<-gateReady
	cancel()

	err := <-errCh
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected errors.Is(err, context.Canceled); got: %v", err)
	}
	if ranB.Load() {
		t.Fatalf("expected remaining task not to run after cancel")
	}
}

func TestIdempotentAndRunsOnce(t *testing.T) {
	t.Parallel()

	q := New()

	var count atomic.Int32
	q.Add(func(context.Context) error {
		count.Add(1)
		return nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 2; i++ {
		err := q.Shutdown(ctx)
		if err != nil {
			t.Fatalf("Shutdown #%d error: %v", i+1, err)
		}
	}

	if got := count.Load(); got != 1 {
		t.Fatalf("expected count=1; got %d", got)
	}
}

func TestAddAfterShutdownIsIgnored(t *testing.T) {
	t.Parallel()

	q := New()

	err := q.Shutdown(t.Context())
	if err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	var ran bool
	q.Add(func(context.Context) error {
		ran = true
		return nil
	})

	_ = q.Shutdown(t.Context())
	if ran {
		t.Fatalf("task added after shutdown should not run")
	}
}

func TestTaskErrorsAreJoined(t *testing.T) {
	t.Parallel()

	q := New()

	err1 := errors.New("alpha")
	err2 := errors.New("beta")

	q.Add(func(context.Context) error { return err1 })
	q.Add(func(context.Context) error { return err2 })

	err := q.Shutdown(t.Context())
	if !errors.Is(err, err1) || !errors.Is(err, err2) {
		t.Fatalf("expected joined error to contain both; got: %v", err)
	}
}
