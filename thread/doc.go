// Package thread hosts isolated background workers and gives callers a
// synchronous call/response API over their message channels.
//
// A [Handle] wraps a single worker goroutine that yields exactly one
// output value when joined. [SpawnConsumer], [SpawnProducer] and
// [SpawnExchanger] pair a handle with bounded channels in the three
// possible topologies. [SpawnInvoker] builds on the exchanger topology
// and adds correlation: every request carries a nonce, so any number of
// concurrent callers can share one worker and still each receive the
// reply that matches their own call, regardless of completion order.
//
// Lifetime is explicit. A [Joining] wrapper guarantees a handle is
// joined at most once, with optional pre-join, value and panic hooks.
// A [Static] is a process-wide cell that holds at most one handle,
// supporting exactly-once initialization, explicit teardown and
// concurrent guarded access.
//
// Backpressure is purely a function of channel capacity: a full channel
// suspends the sender until space frees up. A single worker processes
// requests strictly sequentially; concurrency comes from pipelining and
// from running several independent workers.
package thread
