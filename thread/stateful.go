package thread

import "context"

// stated pairs the shared state with a request payload so the two travel
// through the invoker's channels together.
type stated[T, S any] struct {
	state T
	value S
}

// StatefulInvoker is an Invoker whose handler additionally receives a
// state value fixed at spawn time. The same state is shared by every
// call, so T is typically a pointer or a handle to synchronized storage.
type StatefulInvoker[T, S, R any] struct {
	inner *Invoker[stated[T, S], R]
	state T
}

// SpawnStatefulInvoker starts a stateful invoker worker. It fails with
// ErrCapacity when capacity is below 1.
func SpawnStatefulInvoker[T, S, R any](name string, capacity int, state T, fn func(T, S) R) (*StatefulInvoker[T, S, R], error) {
	inner, err := SpawnInvoker(name, capacity, func(p stated[T, S]) R {
		return fn(p.state, p.value)
	})
	if err != nil {
		return nil, err
	}
	return &StatefulInvoker[T, S, R]{inner: inner, state: state}, nil
}

// SpawnStatefulInvokerContext is SpawnStatefulInvoker for handlers that
// need a context; see SpawnInvokerContext.
func SpawnStatefulInvokerContext[T, S, R any](name string, capacity int, state T, fn func(context.Context, T, S) R) (*StatefulInvoker[T, S, R], error) {
	inner, err := SpawnInvokerContext(name, capacity, func(ctx context.Context, p stated[T, S]) R {
		return fn(ctx, p.state, p.value)
	})
	if err != nil {
		return nil, err
	}
	return &StatefulInvoker[T, S, R]{inner: inner, state: state}, nil
}

// Call sends v paired with the shared state. See Invoker.Call.
func (si *StatefulInvoker[T, S, R]) Call(ctx context.Context, v S) (R, error) {
	return si.inner.Call(ctx, stated[T, S]{state: si.state, value: v})
}

// CallAndForget sends v paired with the shared state and discards the
// result. See Invoker.CallAndForget.
func (si *StatefulInvoker[T, S, R]) CallAndForget(ctx context.Context, v S) error {
	return si.inner.CallAndForget(ctx, stated[T, S]{state: si.state, value: v})
}

// State returns the shared state value given at spawn time.
func (si *StatefulInvoker[T, S, R]) State() T { return si.state }

// Pending reports the number of calls still waiting for a reply.
func (si *StatefulInvoker[T, S, R]) Pending() int { return si.inner.Pending() }

// Close shuts the worker down gracefully. See Invoker.Close.
func (si *StatefulInvoker[T, S, R]) Close() { si.inner.Close() }

// Thread exposes the underlying handle.
func (si *StatefulInvoker[T, S, R]) Thread() *Handle[struct{}] { return si.inner.Thread() }
