// Package exec runs the cooperative flows all asynchronous stages are built
// on. One worker goroutine drains a run queue; a flow executes one step at a
// time and only yields at boundaries it defines itself. Notify is the single
// interface that may be called from outside the worker (driver callbacks,
// socket readers) and is safe from any goroutine.
package exec
