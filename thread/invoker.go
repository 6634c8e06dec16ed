package thread

import (
	"context"
	"sync"
	"sync/atomic"
)

// envelope pairs a payload with its correlation nonce. Untagged
// envelopes are fire-and-forget: the worker executes the handler but
// sends no reply.
type envelope[T any] struct {
	nonce  uint64
	tagged bool
	value  T
}

// Invoker turns a bidirectional worker into a call/response endpoint.
// Every Call tags its request with a fresh nonce from a wrapping
// counter, so any number of concurrent callers can share the worker and
// each still receives the reply matching its own request even when
// replies complete out of order.
//
// The worker processes requests strictly sequentially in arrival order;
// out-of-order completion arises from callers racing on the reply
// stream, not from the worker.
type Invoker[S, R any] struct {
	inner *Exchanger[envelope[S], envelope[R], struct{}]
	seq   atomic.Uint64

	mu      sync.Mutex
	waiters map[uint64]chan R
	orphans map[uint64]R
}

// SpawnInvoker starts an invoker worker whose handler maps one request
// to one reply. It fails with ErrCapacity when capacity is below 1.
func SpawnInvoker[S, R any](name string, capacity int, fn func(S) R) (*Invoker[S, R], error) {
	return spawnInvoker(name, capacity, func(_ context.Context, v S) R { return fn(v) })
}

// SpawnInvokerContext is SpawnInvoker for handlers that need a context.
// The context is cancelled once the worker's receive loop ends, so
// handlers can hand it to outbound I/O started from the worker.
func SpawnInvokerContext[S, R any](name string, capacity int, fn func(context.Context, S) R) (*Invoker[S, R], error) {
	return spawnInvoker(name, capacity, fn)
}

func spawnInvoker[S, R any](name string, capacity int, fn func(context.Context, S) R) (*Invoker[S, R], error) {
	inner, err := SpawnExchanger(name, capacity, func(out chan<- envelope[R], in <-chan envelope[S]) struct{} {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		for env := range in {
			r := fn(ctx, env.value)
			if env.tagged {
				out <- envelope[R]{nonce: env.nonce, tagged: true, value: r}
			}
		}
		return struct{}{}
	})
	if err != nil {
		return nil, err
	}
	return &Invoker[S, R]{
		inner:   inner,
		waiters: make(map[uint64]chan R),
		orphans: make(map[uint64]R),
	}, nil
}

// Call sends v to the worker and blocks until the matching reply
// arrives. It returns ErrTerminated when the worker is gone before the
// request could be sent, ErrClosed when the reply stream ends first, and
// the context error when ctx ends while waiting. A cancelled call
// unregisters itself; a reply that races the cancellation is parked in
// the orphan table and discarded at Close.
func (inv *Invoker[S, R]) Call(ctx context.Context, v S) (R, error) {
	var zero R
	nonce := inv.seq.Add(1)
	reply := make(chan R, 1)

	inv.mu.Lock()
	inv.waiters[nonce] = reply
	inv.mu.Unlock()

	if err := inv.inner.Send(ctx, envelope[S]{nonce: nonce, tagged: true, value: v}); err != nil {
		inv.forget(nonce)
		return zero, err
	}

	// Cooperative receive: whichever caller is on the shared reply
	// stream routes each envelope to the waiter registered under its
	// nonce. Our own reply arrives either directly or via another
	// caller's routing.
	for {
		select {
		case r := <-reply:
			return r, nil
		case env, ok := <-inv.inner.out:
			if !ok {
				inv.forget(nonce)
				select {
				case r := <-reply:
					return r, nil
				default:
					return zero, ErrClosed
				}
			}
			if env.nonce == nonce {
				inv.forget(nonce)
				return env.value, nil
			}
			inv.deliver(env)
		case <-ctx.Done():
			inv.forget(nonce)
			select {
			case r := <-reply:
				return r, nil
			default:
				return zero, ctx.Err()
			}
		}
	}
}

// CallAndForget sends v with no nonce. The worker still executes the
// handler, so side effects happen and the call still occupies the
// worker's queue; only the result is discarded. Use it for requests
// whose reply carries no information.
func (inv *Invoker[S, R]) CallAndForget(ctx context.Context, v S) error {
	return inv.inner.Send(ctx, envelope[S]{value: v})
}

// deliver routes a reply to its registered waiter, or parks it in the
// orphan table when the waiter has gone.
func (inv *Invoker[S, R]) deliver(env envelope[R]) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if ch, ok := inv.waiters[env.nonce]; ok {
		ch <- env.value // buffered, exactly one reply per nonce
		delete(inv.waiters, env.nonce)
		return
	}
	inv.orphans[env.nonce] = env.value
}

func (inv *Invoker[S, R]) forget(nonce uint64) {
	inv.mu.Lock()
	delete(inv.waiters, nonce)
	inv.mu.Unlock()
}

// Pending reports the number of calls still waiting for a reply.
func (inv *Invoker[S, R]) Pending() int {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return len(inv.waiters)
}

// Close closes the inbound channel, then drains the reply stream so the
// worker can finish buffered requests without blocking on a full
// outbound channel. Replies for still-waiting callers are routed to
// them; unclaimed ones are discarded. Close returns once the worker's
// reply stream has ended.
func (inv *Invoker[S, R]) Close() {
	inv.inner.Close()
	for {
		env, err := inv.inner.Recv(context.Background())
		if err != nil {
			break
		}
		inv.deliver(env)
	}
	inv.mu.Lock()
	clear(inv.orphans)
	inv.mu.Unlock()
}

// Thread exposes the underlying handle.
func (inv *Invoker[S, R]) Thread() *Handle[struct{}] { return inv.inner.Thread() }
