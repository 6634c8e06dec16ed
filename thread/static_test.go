package thread

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestStaticLifecycle(t *testing.T) {
	t.Parallel()

	var s Static[string]

	if !s.IsUninitialized() {
		t.Fatal("zero value should be uninitialized")
	}
	if _, err := s.TryGet(); !errors.Is(err, ErrUninitialized) {
		t.Errorf("TryGet before init = %v, want ErrUninitialized", err)
	}
	if _, err := s.TryGetMut(); !errors.Is(err, ErrUninitialized) {
		t.Errorf("TryGetMut before init = %v, want ErrUninitialized", err)
	}

	if err := s.Initialize("first"); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := s.Initialize("second"); !errors.Is(err, ErrInitialized) {
		t.Errorf("second Initialize = %v, want ErrInitialized", err)
	}

	g, err := s.TryGet()
	if err != nil {
		t.Fatalf("TryGet: %v", err)
	}
	if *g.Value() != "first" {
		t.Errorf("value = %q, want first", *g.Value())
	}
	g.Release()
	g.Release() // safe to release twice

	v, ok := s.Uninitialize()
	if !ok || v != "first" {
		t.Fatalf("Uninitialize = %q, %v, want first, true", v, ok)
	}
	if _, ok := s.Uninitialize(); ok {
		t.Error("second Uninitialize reported a value")
	}

	// The cell is reusable after teardown.
	if err := s.Initialize("again"); err != nil {
		t.Fatalf("re-Initialize: %v", err)
	}
}

func TestStaticGuardMutExclusive(t *testing.T) {
	t.Parallel()

	var s Static[int]
	if err := s.Initialize(0); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	g, err := s.TryGetMut()
	if err != nil {
		t.Fatalf("TryGetMut: %v", err)
	}
	*g.Value() = 7

	acquired := make(chan struct{})
	go func() {
		r, err := s.TryGet()
		if err != nil {
			t.Errorf("TryGet: %v", err)
			close(acquired)
			return
		}
		if *r.Value() != 7 {
			t.Errorf("reader saw %d, want 7", *r.Value())
		}
		r.Release()
		close(acquired)
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-acquired:
		t.Fatal("reader acquired while write guard held")
	default:
	}

	g.Release()
	<-acquired
}

func TestStaticConcurrentReaders(t *testing.T) {
	t.Parallel()

	var s Static[int]
	if err := s.Initialize(42); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	const readers = 32
	var wg sync.WaitGroup
	wg.Add(readers)
	for range readers {
		go func() {
			defer wg.Done()
			g, err := s.TryGet()
			if err != nil {
				t.Errorf("TryGet: %v", err)
				return
			}
			defer g.Release()
			if *g.Value() != 42 {
				t.Errorf("read %d, want 42", *g.Value())
			}
		}()
	}
	wg.Wait()
}

func TestStaticHoldsWorkerHandle(t *testing.T) {
	t.Parallel()

	inv, err := SpawnInvoker("held", 1, func(v int) int { return v * v })
	if err != nil {
		t.Fatalf("SpawnInvoker: %v", err)
	}

	var s Static[*Invoker[int, int]]
	if err := s.Initialize(inv); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	g, err := s.TryGet()
	if err != nil {
		t.Fatalf("TryGet: %v", err)
	}
	got, err := (*g.Value()).Call(t.Context(), 6)
	g.Release()
	if err != nil || got != 36 {
		t.Fatalf("Call(6) = %d, %v, want 36, nil", got, err)
	}

	held, ok := s.Uninitialize()
	if !ok {
		t.Fatal("Uninitialize returned no value")
	}
	held.Close()
	held.Thread().Join()
}
