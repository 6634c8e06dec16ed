package thread

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestProducerEmitsStream(t *testing.T) {
	t.Parallel()

	p, err := SpawnProducer("counter", 2, func(out chan<- int) string {
		for i := 1; i <= 5; i++ {
			out <- i
		}
		return "done"
	})
	if err != nil {
		t.Fatalf("SpawnProducer: %v", err)
	}

	ctx := context.Background()
	for want := 1; want <= 5; want++ {
		v, err := p.Recv(ctx)
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		if v != want {
			t.Errorf("Recv = %d, want %d", v, want)
		}
	}

	if _, err := p.Recv(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Recv after end = %v, want ErrClosed", err)
	}

	out, err := p.Thread().Join()
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if out != "done" {
		t.Errorf("output = %q, want done", out)
	}
}

func TestSpawnProducerRejectsZeroCapacity(t *testing.T) {
	t.Parallel()

	if _, err := SpawnProducer("bad", 0, func(chan<- int) struct{} { return struct{}{} }); !errors.Is(err, ErrCapacity) {
		t.Errorf("capacity 0 err = %v, want ErrCapacity", err)
	}
}

func TestProducerRecvHonorsContext(t *testing.T) {
	t.Parallel()

	gate := make(chan struct{})
	p, err := SpawnProducer("silent", 1, func(out chan<- int) struct{} {
		<-gate
		return struct{}{}
	})
	if err != nil {
		t.Fatalf("SpawnProducer: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := p.Recv(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Recv = %v, want deadline exceeded", err)
	}

	close(gate)
	p.Thread().Join()
}

func TestProducerStreamClosedOnPanic(t *testing.T) {
	t.Parallel()

	p, err := SpawnProducer("crasher", 1, func(out chan<- int) struct{} {
		out <- 7
		panic("mid-stream")
	})
	if err != nil {
		t.Fatalf("SpawnProducer: %v", err)
	}

	ctx := context.Background()
	if v, err := p.Recv(ctx); err != nil || v != 7 {
		t.Fatalf("Recv = %d, %v, want 7, nil", v, err)
	}
	if _, err := p.Recv(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Recv after panic = %v, want ErrClosed", err)
	}

	var pe *PanicError
	if _, err := p.Thread().Join(); !errors.As(err, &pe) {
		t.Errorf("Join = %v, want *PanicError", err)
	}
}
