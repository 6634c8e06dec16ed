package thread

import (
	"errors"
	"sync"
)

// Holder is anything that exposes an underlying worker handle. All
// spawner types in this package satisfy it, as does Handle itself.
type Holder[T any] interface {
	Thread() *Handle[T]
}

// Joining ties a holder's lifetime to an explicit Close call. Close runs
// at most once: an optional PreJoin hook (typically used to signal
// shutdown through the holder's own channel), then a join, then exactly
// one of the OnValue or OnPanic hooks depending on how the worker ended.
//
// Without an OnPanic hook a worker panic is re-raised from Close, so a
// crashed worker cannot go unnoticed at teardown.
type Joining[T any, H Holder[T]] struct {
	inner H

	mu     sync.Mutex
	closed bool

	preJoin func(H)
	onValue func(T)
	onPanic func(*PanicError)
}

// NewJoining wraps holder. The hooks are optional and set with the
// chained PreJoin, OnValue and OnPanic methods before Close is called.
func NewJoining[T any, H Holder[T]](holder H) *Joining[T, H] {
	return &Joining[T, H]{inner: holder}
}

// PreJoin registers a hook that runs before the join, while the worker
// may still be alive.
func (j *Joining[T, H]) PreJoin(fn func(H)) *Joining[T, H] {
	j.preJoin = fn
	return j
}

// OnValue registers a hook that receives the worker's output after a
// normal termination.
func (j *Joining[T, H]) OnValue(fn func(T)) *Joining[T, H] {
	j.onValue = fn
	return j
}

// OnPanic registers a hook that receives a worker panic instead of the
// panic being re-raised from Close.
func (j *Joining[T, H]) OnPanic(fn func(*PanicError)) *Joining[T, H] {
	j.onPanic = fn
	return j
}

// Get returns the wrapped holder for regular use between spawn and
// Close.
func (j *Joining[T, H]) Get() H { return j.inner }

// Close runs the teardown sequence exactly once; later calls are no-ops.
// It blocks until the worker has terminated. A worker panic reaches the
// OnPanic hook exactly once, or is re-raised here when no hook is set.
func (j *Joining[T, H]) Close() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.closed = true
	j.mu.Unlock()

	if j.preJoin != nil {
		j.preJoin(j.inner)
	}

	v, err := j.inner.Thread().Join()
	var pe *PanicError
	switch {
	case errors.As(err, &pe):
		if j.onPanic != nil {
			j.onPanic(pe)
			return
		}
		panic(pe)
	case err != nil:
		// Joined elsewhere; the outcome was already observed there.
		return
	}
	if j.onValue != nil {
		j.onValue(v)
	}
}
