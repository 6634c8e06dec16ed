package thread

import (
	"errors"
	"fmt"
	"runtime"
)

var (
	// ErrCapacity is returned by the spawners when the requested channel
	// capacity is below 1.
	ErrCapacity = errors.New("thread: channel capacity must be at least 1")

	// ErrTerminated is returned by Send when the worker goroutine has
	// exited or the inbound channel has been closed.
	ErrTerminated = errors.New("thread: worker terminated")

	// ErrClosed is returned by Recv and Call when the worker's outbound
	// channel has been closed and fully drained.
	ErrClosed = errors.New("thread: channel closed")

	// ErrJoined is returned by Join on a handle that was already joined.
	ErrJoined = errors.New("thread: handle already joined")

	// ErrUninitialized is returned by Static accessors before Initialize
	// or after Uninitialize.
	ErrUninitialized = errors.New("thread: static not initialized")

	// ErrInitialized is returned by Initialize when the Static already
	// holds a handle.
	ErrInitialized = errors.New("thread: static already initialized")
)

// PanicError carries a panic recovered from a worker goroutine, together
// with the stack trace captured at the point of recovery.
type PanicError struct {
	// Value is the value passed to panic.
	Value any
	// Stack is the formatted goroutine stack at recovery time.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("thread: worker panicked: %v", e.Value)
}

func newPanicError(v any) *PanicError {
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return &PanicError{Value: v, Stack: string(buf[:n])}
}
