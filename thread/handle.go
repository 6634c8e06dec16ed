package thread

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
)

// State describes where a worker goroutine is in its lifecycle.
type State uint32

const (
	// StateRunning means the worker goroutine has not returned yet.
	StateRunning State = iota
	// StateReturned means the worker returned its output normally.
	StateReturned
	// StatePanicked means the worker terminated with a panic.
	StatePanicked
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateReturned:
		return "returned"
	case StatePanicked:
		return "panicked"
	default:
		return "unknown"
	}
}

// Handle owns a single worker goroutine that yields exactly one value of
// type T when it returns. The handle is consumed by Join: the first Join
// receives the output (or the recovered panic), later Joins get ErrJoined.
type Handle[T any] struct {
	name string
	id   string

	done   chan struct{}
	state  atomic.Uint32
	joined atomic.Bool

	// Written by the worker goroutine before done is closed; read only
	// after <-done.
	value    T
	panicErr *PanicError
}

// Spawn runs fn on a new goroutine and returns a handle to it. The name
// is used for log correlation only; NUL bytes are escaped the same way
// OS thread names would reject them.
func Spawn[T any](name string, fn func() T) *Handle[T] {
	h := &Handle[T]{
		name: strings.ReplaceAll(name, "\x00", `\0`),
		id:   uuid.Must(uuid.NewV7()).String(),
		done: make(chan struct{}),
	}
	slog.Debug("worker spawned", "worker", h.name, "id", h.id)
	go h.run(fn)
	return h
}

func (h *Handle[T]) run(fn func() T) {
	defer close(h.done)
	defer func() {
		if r := recover(); r != nil {
			h.panicErr = newPanicError(r)
			h.state.Store(uint32(StatePanicked))
			slog.LogAttrs(context.Background(), slog.LevelError, "worker panicked",
				slog.String("worker", h.name),
				slog.String("id", h.id),
				slog.String("panic", h.panicErr.Error()),
			)
		}
	}()
	h.value = fn()
	h.state.Store(uint32(StateReturned))
	slog.Debug("worker returned", "worker", h.name, "id", h.id)
}

// Name returns the worker name given at spawn time.
func (h *Handle[T]) Name() string { return h.name }

// ID returns the handle's unique identifier.
func (h *Handle[T]) ID() string { return h.id }

// State reports the worker's current lifecycle state without blocking.
func (h *Handle[T]) State() State { return State(h.state.Load()) }

// Done returns a channel closed when the worker goroutine has terminated,
// for use in select statements.
func (h *Handle[T]) Done() <-chan struct{} { return h.done }

// Join blocks until the worker goroutine terminates and returns its
// output. If the worker panicked, Join returns a *PanicError carrying
// the panic value and stack. Join consumes the handle: a second call
// returns ErrJoined without blocking on the worker.
func (h *Handle[T]) Join() (T, error) {
	var zero T
	if !h.joined.CompareAndSwap(false, true) {
		return zero, ErrJoined
	}
	<-h.done
	if h.panicErr != nil {
		return zero, h.panicErr
	}
	return h.value, nil
}

// Thread returns the handle itself, letting a bare Handle satisfy the
// Holder interface used by Joining.
func (h *Handle[T]) Thread() *Handle[T] { return h }
