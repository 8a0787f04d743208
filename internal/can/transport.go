package can

// Counters are driver-reported bus conditions. The core surfaces them for
// diagnostics and never interprets them.
type Counters struct {
	Overrun   uint64
	BusOff    uint64
	SoftError uint64
}

// RawTransport is the boundary to a physical CAN controller or USB-CAN
// bridge. Read and Write are non-blocking; the driver signals readiness
// through the notifier registered with SetEventNotifier, which it may invoke
// from its own interrupt or I/O goroutine at any time.
type RawTransport interface {
	// ReadFrame returns the next received frame, if one is pending.
	ReadFrame() (Frame, bool)

	// WriteFrame queues a frame for transmission. It reports false when the
	// transmit path has no space; the caller retries after the next event
	// notification.
	WriteFrame(Frame) bool

	// Counters returns the current condition counters.
	Counters() Counters

	// SetEventNotifier registers the callback invoked when frames arrive or
	// transmit space frees up. The driver must tolerate a nil notifier.
	SetEventNotifier(func())
}
