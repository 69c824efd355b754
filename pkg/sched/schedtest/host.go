// Package schedtest provides a manually driven sched.Host for tests.
package schedtest

import (
	"time"

	"github.com/warpdl/warpsched/pkg/sched"
)

// Epoch is the initial reading of a ManualHost clock.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// ManualHost is a sched.Host whose clock only moves when told to and whose
// flush requests fire only when the test calls Fire or FireDue.
type ManualHost struct {
	now time.Time

	fn       sched.FlushFunc
	deadline time.Time

	shouldYield bool
	// YieldAfter makes ShouldYield report true once the clock passed the
	// given instant. Zero disables it.
	YieldAfter time.Time

	Requests int
	Cancels  int
	Flushes  int
	Errors   []error
}

// NewManualHost returns a host whose clock reads Epoch.
func NewManualHost() *ManualHost {
	return &ManualHost{now: Epoch}
}

func (h *ManualHost) Now() time.Time {
	return h.now
}

// Advance moves the clock forward by d.
func (h *ManualHost) Advance(d time.Duration) {
	h.now = h.now.Add(d)
}

// Set moves the clock to t.
func (h *ManualHost) Set(t time.Time) {
	h.now = t
}

func (h *ManualHost) Request(fn sched.FlushFunc, deadline time.Time) {
	h.Requests++
	h.fn = fn
	h.deadline = deadline
}

func (h *ManualHost) Cancel() {
	h.Cancels++
	h.fn = nil
	h.deadline = time.Time{}
}

func (h *ManualHost) ShouldYield() bool {
	if h.shouldYield {
		return true
	}
	return !h.YieldAfter.IsZero() && !h.now.Before(h.YieldAfter)
}

// SetShouldYield fixes the value ShouldYield reports.
func (h *ManualHost) SetShouldYield(v bool) {
	h.shouldYield = v
}

// Armed reports whether a request is pending.
func (h *ManualHost) Armed() bool {
	return h.fn != nil
}

// Deadline returns the deadline of the pending request.
func (h *ManualHost) Deadline() time.Time {
	return h.deadline
}

// Fire consumes the pending request and calls it with didTimeout. It returns
// false when nothing was armed.
func (h *ManualHost) Fire(didTimeout bool) bool {
	fn := h.fn
	if fn == nil {
		return false
	}
	h.fn = nil
	h.deadline = time.Time{}
	h.Flushes++
	if err := fn(didTimeout); err != nil {
		h.Errors = append(h.Errors, err)
	}
	return true
}

// FireDue fires the pending request, reporting a timeout when its deadline
// is not after the current clock reading.
func (h *ManualHost) FireDue() bool {
	if h.fn == nil {
		return false
	}
	return h.Fire(!h.deadline.After(h.now))
}

// RunUntilIdle fires requests until nothing is armed or max flushes ran.
func (h *ManualHost) RunUntilIdle(max int) int {
	n := 0
	for n < max && h.Fire(false) {
		n++
	}
	return n
}

var _ sched.Host = (*ManualHost)(nil)
