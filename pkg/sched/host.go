package sched

import "time"

// FlushFunc is the entry point a Host calls to let the scheduler run.
// didTimeout is true when the host is calling because the pending deadline
// already passed; the scheduler then drains all overdue work without yielding.
type FlushFunc func(didTimeout bool) error

// Clock reads monotonic time.
type Clock interface {
	Now() time.Time
}

// Host abstracts the runtime's yield points. A host calls back into the
// scheduler some time after Request, tells it whether the current slice is
// used up, and provides the clock.
//
// All methods are called on the scheduler's goroutine, and the host must call
// the FlushFunc on that same goroutine.
type Host interface {
	Clock

	// Request arms the host to call fn. deadline is the expiration of the
	// earliest pending task. A new Request replaces any earlier one.
	Request(fn FlushFunc, deadline time.Time)

	// Cancel disarms a pending Request.
	Cancel()

	// ShouldYield reports whether the current slice's budget is exhausted.
	ShouldYield() bool
}

// ErrorHandler receives errors returned by a FlushFunc that the host invoked.
type ErrorHandler func(err error)
