package thread

import (
	"context"
	"sync"
)

// inlet is the shared send side of a worker's inbound channel. Sends are
// safe from any number of goroutines; Close closes the channel exactly
// once and subsequent sends fail with ErrTerminated.
type inlet[S any] struct {
	ch     chan S
	done   <-chan struct{}
	mu     sync.RWMutex
	closed bool
}

func newInlet[S any](capacity int, done <-chan struct{}) *inlet[S] {
	return &inlet[S]{ch: make(chan S, capacity), done: done}
}

func (in *inlet[S]) send(ctx context.Context, v S) error {
	in.mu.RLock()
	defer in.mu.RUnlock()
	if in.closed {
		return ErrTerminated
	}
	// A dead worker wins over free buffer space; otherwise the value
	// would be committed to a channel nobody drains.
	select {
	case <-in.done:
		return ErrTerminated
	default:
	}
	select {
	case in.ch <- v:
		return nil
	case <-in.done:
		return ErrTerminated
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (in *inlet[S]) close() {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.closed {
		return
	}
	in.closed = true
	close(in.ch)
}

// Consumer is a worker that receives values of type S over a bounded
// channel and yields a single T when it terminates. The worker function
// owns the receive side; it should range over the channel and return
// when the channel closes.
type Consumer[S, T any] struct {
	in     *inlet[S]
	handle *Handle[T]
}

// SpawnConsumer starts a consumer worker with the given inbound channel
// capacity. It fails with ErrCapacity when capacity is below 1.
func SpawnConsumer[S, T any](name string, capacity int, fn func(<-chan S) T) (*Consumer[S, T], error) {
	if capacity < 1 {
		return nil, ErrCapacity
	}
	done := make(chan struct{})
	in := newInlet[S](capacity, done)
	c := &Consumer[S, T]{in: in}
	c.handle = Spawn(name, func() T {
		defer close(done)
		return fn(in.ch)
	})
	return c, nil
}

// Send delivers v to the worker, blocking while the channel is full. It
// returns ErrTerminated when the worker has exited or Close was called,
// and the context error when ctx ends first. Send is safe for concurrent
// use.
func (c *Consumer[S, T]) Send(ctx context.Context, v S) error {
	return c.in.send(ctx, v)
}

// Queued reports how many sent values the worker has not received yet.
func (c *Consumer[S, T]) Queued() int { return len(c.in.ch) }

// Close closes the inbound channel so the worker's receive loop ends
// after draining buffered values. Idempotent.
func (c *Consumer[S, T]) Close() {
	c.in.close()
}

// Thread exposes the underlying handle.
func (c *Consumer[S, T]) Thread() *Handle[T] { return c.handle }
