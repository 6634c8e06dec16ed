package thread

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestInvokerSquares(t *testing.T) {
	t.Parallel()

	inv, err := SpawnInvoker("squares", 4, func(v int) int { return v * v })
	if err != nil {
		t.Fatalf("SpawnInvoker: %v", err)
	}
	defer inv.Close()

	ctx := context.Background()
	if got, err := inv.Call(ctx, 3); err != nil || got != 9 {
		t.Errorf("Call(3) = %d, %v, want 9, nil", got, err)
	}
	if got, err := inv.Call(ctx, -2); err != nil || got != 4 {
		t.Errorf("Call(-2) = %d, %v, want 4, nil", got, err)
	}
}

func TestInvokerConcurrentCallers(t *testing.T) {
	t.Parallel()

	inv, err := SpawnInvoker("squares", 4, func(v int) int { return v * v })
	if err != nil {
		t.Fatalf("SpawnInvoker: %v", err)
	}
	defer inv.Close()

	const callers = 100
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, callers)
	wg.Add(callers)
	for i := range callers {
		go func() {
			defer wg.Done()
			got, err := inv.Call(ctx, i)
			if err != nil {
				errs[i] = err
				return
			}
			if got != i*i {
				t.Errorf("Call(%d) = %d, want %d", i, got, i*i)
			}
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d: %v", i, err)
		}
	}
	if n := inv.Pending(); n != 0 {
		t.Errorf("pending after all calls = %d, want 0", n)
	}
}

func TestInvokerCallAndForget(t *testing.T) {
	t.Parallel()

	var executed atomic.Int64
	inv, err := SpawnInvoker("effects", 2, func(v int) int {
		executed.Add(1)
		return v
	})
	if err != nil {
		t.Fatalf("SpawnInvoker: %v", err)
	}
	defer inv.Close()

	ctx := context.Background()
	if err := inv.CallAndForget(ctx, 7); err != nil {
		t.Fatalf("CallAndForget: %v", err)
	}

	// The worker is sequential: once the follow-up call returns, the
	// forgotten request has executed too.
	if _, err := inv.Call(ctx, 1); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if n := executed.Load(); n != 2 {
		t.Errorf("handler ran %d times, want 2", n)
	}
	if n := inv.Pending(); n != 0 {
		t.Errorf("pending = %d, want 0: fire-and-forget must not register a waiter", n)
	}
}

func TestInvokerCloseEndsCalls(t *testing.T) {
	t.Parallel()

	inv, err := SpawnInvoker("short", 1, func(v int) int { return v })
	if err != nil {
		t.Fatalf("SpawnInvoker: %v", err)
	}

	inv.Close()

	if _, err := inv.Call(context.Background(), 1); !errors.Is(err, ErrTerminated) {
		t.Errorf("Call after Close = %v, want ErrTerminated", err)
	}
	if _, err := inv.Thread().Join(); err != nil {
		t.Fatalf("Join: %v", err)
	}
}

func TestInvokerCloseDeliversInFlightReply(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	inv, err := SpawnInvoker("slow", 1, func(v int) int {
		<-gate
		return v + 1
	})
	if err != nil {
		t.Fatalf("SpawnInvoker: %v", err)
	}

	type result struct {
		v   int
		err error
	}
	res := make(chan result, 1)
	go func() {
		v, err := inv.Call(context.Background(), 41)
		res <- result{v, err}
	}()

	// Let the call reach the worker, then close while it is in flight.
	time.Sleep(20 * time.Millisecond)
	close(gate)
	inv.Close()

	select {
	case r := <-res:
		if r.err != nil {
			t.Fatalf("Call during Close: %v", r.err)
		}
		if r.v != 42 {
			t.Errorf("Call = %d, want 42", r.v)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("call never completed")
	}
}

func TestInvokerCancelledCallCleansUp(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	inv, err := SpawnInvoker("stuck", 1, func(v int) int {
		<-gate
		return v
	})
	if err != nil {
		t.Fatalf("SpawnInvoker: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := inv.Call(ctx, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Call = %v, want deadline exceeded", err)
	}
	if n := inv.Pending(); n != 0 {
		t.Errorf("pending after cancellation = %d, want 0", n)
	}

	close(gate)
	inv.Close()
	inv.Thread().Join()
}

func TestInvokerContextHandler(t *testing.T) {
	t.Parallel()

	inv, err := SpawnInvokerContext("ctx", 1, func(ctx context.Context, v int) error {
		return ctx.Err()
	})
	if err != nil {
		t.Fatalf("SpawnInvokerContext: %v", err)
	}

	// While the worker runs, the handler context is live.
	if got, err := inv.Call(context.Background(), 0); err != nil || got != nil {
		t.Errorf("Call = %v, %v, want nil, nil", got, err)
	}
	inv.Close()
}
