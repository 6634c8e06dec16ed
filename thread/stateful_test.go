package thread

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
)

func TestStatefulInvokerSharesState(t *testing.T) {
	t.Parallel()

	counter := &atomic.Int64{}
	si, err := SpawnStatefulInvoker("counter", 2, counter, func(c *atomic.Int64, delta int64) int64 {
		return c.Add(delta)
	})
	if err != nil {
		t.Fatalf("SpawnStatefulInvoker: %v", err)
	}
	defer si.Close()

	ctx := context.Background()
	if got, err := si.Call(ctx, 5); err != nil || got != 5 {
		t.Fatalf("Call(5) = %d, %v, want 5, nil", got, err)
	}
	if got, err := si.Call(ctx, -2); err != nil || got != 3 {
		t.Fatalf("Call(-2) = %d, %v, want 3, nil", got, err)
	}
	// The handler sees the same state value the spawner holds.
	if counter.Load() != 3 {
		t.Errorf("shared counter = %d, want 3", counter.Load())
	}
}

func TestStatefulInvokerConcurrent(t *testing.T) {
	t.Parallel()

	type table struct {
		mu sync.Mutex
		m  map[string]int
	}
	st := &table{m: make(map[string]int)}

	si, err := SpawnStatefulInvoker("table", 4, st, func(s *table, key string) int {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.m[key]++
		return s.m[key]
	})
	if err != nil {
		t.Fatalf("SpawnStatefulInvoker: %v", err)
	}
	defer si.Close()

	const callers = 50
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(callers)
	for range callers {
		go func() {
			defer wg.Done()
			if _, err := si.Call(ctx, "hits"); err != nil {
				t.Errorf("Call: %v", err)
			}
		}()
	}
	wg.Wait()

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.m["hits"] != callers {
		t.Errorf("hits = %d, want %d", st.m["hits"], callers)
	}
}

func TestStatefulInvokerCallAndForget(t *testing.T) {
	t.Parallel()

	counter := &atomic.Int64{}
	si, err := SpawnStatefulInvoker("forget", 1, counter, func(c *atomic.Int64, delta int64) int64 {
		return c.Add(delta)
	})
	if err != nil {
		t.Fatalf("SpawnStatefulInvoker: %v", err)
	}

	ctx := context.Background()
	if err := si.CallAndForget(ctx, 10); err != nil {
		t.Fatalf("CallAndForget: %v", err)
	}
	si.Close()

	// Close drains the queue, so the side effect has landed.
	if counter.Load() != 10 {
		t.Errorf("counter = %d, want 10", counter.Load())
	}
	si.Thread().Join()
}
