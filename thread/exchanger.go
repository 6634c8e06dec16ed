package thread

import "context"

// Exchanger is a worker with both directions: it receives values of type
// S, emits values of type R, and yields a single T when it terminates.
// The outbound channel is closed for the worker when it returns.
type Exchanger[S, R, T any] struct {
	in     *inlet[S]
	out    chan R
	handle *Handle[T]
}

// SpawnExchanger starts a bidirectional worker. Both channels use the
// same capacity; it fails with ErrCapacity when capacity is below 1.
func SpawnExchanger[S, R, T any](name string, capacity int, fn func(chan<- R, <-chan S) T) (*Exchanger[S, R, T], error) {
	if capacity < 1 {
		return nil, ErrCapacity
	}
	done := make(chan struct{})
	in := newInlet[S](capacity, done)
	out := make(chan R, capacity)
	e := &Exchanger[S, R, T]{in: in, out: out}
	e.handle = Spawn(name, func() T {
		defer close(done)
		defer close(out)
		return fn(out, in.ch)
	})
	return e, nil
}

// Send delivers v to the worker. See Consumer.Send for semantics.
func (e *Exchanger[S, R, T]) Send(ctx context.Context, v S) error {
	return e.in.send(ctx, v)
}

// Recv blocks for the worker's next emission. See Producer.Recv for
// semantics.
func (e *Exchanger[S, R, T]) Recv(ctx context.Context) (R, error) {
	var zero R
	select {
	case v, ok := <-e.out:
		if !ok {
			return zero, ErrClosed
		}
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Queued reports how many sent values the worker has not received yet.
func (e *Exchanger[S, R, T]) Queued() int { return len(e.in.ch) }

// Close closes the inbound channel so the worker's receive loop ends
// after draining buffered values. Idempotent.
func (e *Exchanger[S, R, T]) Close() {
	e.in.close()
}

// Thread exposes the underlying handle.
func (e *Exchanger[S, R, T]) Thread() *Handle[T] { return e.handle }
