package thread

import "context"

// Producer is a worker that emits values of type R over a bounded
// channel and yields a single T when it terminates. The worker function
// owns the send side; the channel is closed for it when the function
// returns, so receivers observe a clean end of stream.
type Producer[R, T any] struct {
	out    chan R
	handle *Handle[T]
}

// SpawnProducer starts a producer worker with the given outbound channel
// capacity. It fails with ErrCapacity when capacity is below 1.
func SpawnProducer[R, T any](name string, capacity int, fn func(chan<- R) T) (*Producer[R, T], error) {
	if capacity < 1 {
		return nil, ErrCapacity
	}
	out := make(chan R, capacity)
	p := &Producer[R, T]{out: out}
	p.handle = Spawn(name, func() T {
		defer close(out)
		return fn(out)
	})
	return p, nil
}

// Recv blocks until the worker emits a value, the stream ends, or ctx
// ends. It returns ErrClosed once the outbound channel is closed and
// drained.
func (p *Producer[R, T]) Recv(ctx context.Context) (R, error) {
	var zero R
	select {
	case v, ok := <-p.out:
		if !ok {
			return zero, ErrClosed
		}
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

// Thread exposes the underlying handle.
func (p *Producer[R, T]) Thread() *Handle[T] { return p.handle }
