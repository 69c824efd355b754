package frameloop

import (
	"fmt"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"

	"github.com/warpdl/warpsched/pkg/sched"
)

// FrameHost drives a scheduler from emulated display frames.
//
// While a flush is requested, a frame is delivered on every refresh
// boundary. Each frame updates the adaptive Budget, sets the frame deadline
// and posts a wake-up that runs after whatever else the loop has queued for
// the frame. The wake-up runs the flush cooperatively while the frame has
// budget left, drains overdue work once the frame is over, and otherwise
// waits for the next frame.
type FrameHost struct {
	loop   *eventloop.EventLoop
	cfg    Config
	budget *Budget
	epoch  time.Time

	callback sched.FlushFunc
	deadline time.Time // zero when no callback is pending

	frameDeadline  time.Time
	frameScheduled bool
	frameTimer     *eventloop.Timer
	backstopTimer  *eventloop.Timer
	wakeTimer      *eventloop.Timer
	flushing       bool

	frames int
}

// NewFrameHost creates a host bound to loop. It must only be used from the
// loop goroutine.
func NewFrameHost(loop *eventloop.EventLoop, cfg Config) *FrameHost {
	cfg.applyDefaults()
	h := &FrameHost{
		loop:   loop,
		cfg:    cfg,
		budget: NewBudget(cfg.BudgetSeed, cfg.BudgetFloor),
	}
	h.epoch = h.cfg.Now()
	return h
}

func (h *FrameHost) Now() time.Time {
	return h.cfg.Now()
}

// Request arms the host. An overdue deadline, or a request made while a
// flush is running, skips the frame wait and wakes on the next loop turn.
func (h *FrameHost) Request(fn sched.FlushFunc, deadline time.Time) {
	h.callback = fn
	h.deadline = deadline
	if h.flushing || !deadline.After(h.Now()) {
		h.postWake()
		return
	}
	h.requestFrame()
}

func (h *FrameHost) Cancel() {
	h.callback = nil
	h.deadline = time.Time{}
	if h.wakeTimer != nil {
		h.loop.ClearTimeout(h.wakeTimer)
		h.wakeTimer = nil
	}
}

func (h *FrameHost) ShouldYield() bool {
	return !h.frameDeadline.After(h.Now())
}

// Budget returns the current frame budget estimate.
func (h *FrameHost) Budget() time.Duration {
	return h.budget.Active()
}

// Frames returns how many frames have been delivered.
func (h *FrameHost) Frames() int {
	return h.frames
}

// requestFrame schedules the next frame on the refresh grid, plus a backstop
// timer that delivers it if the frame timer is late.
func (h *FrameHost) requestFrame() {
	if h.frameScheduled {
		return
	}
	h.frameScheduled = true
	now := h.Now()
	interval := h.cfg.frameInterval()
	next := h.epoch.Add((now.Sub(h.epoch)/interval + 1) * interval)

	h.frameTimer = h.loop.SetTimeout(func(*goja.Runtime) {
		h.firedFrame(h.backstopTimer)
		h.onFrame(next)
	}, next.Sub(now))
	h.backstopTimer = h.loop.SetTimeout(func(*goja.Runtime) {
		h.firedFrame(h.frameTimer)
		h.onFrame(h.Now())
	}, h.cfg.FrameTimeout)
}

// firedFrame clears the timer that lost the race.
func (h *FrameHost) firedFrame(other *eventloop.Timer) {
	if other != nil {
		h.loop.ClearTimeout(other)
	}
	h.frameTimer, h.backstopTimer = nil, nil
}

// onFrame handles the start of a frame.
func (h *FrameHost) onFrame(frameStart time.Time) {
	h.frameScheduled = false
	if h.callback == nil {
		return
	}
	h.frames++
	// Keep frames coming while work is pending.
	h.requestFrame()

	h.budget.Observe(frameStart, h.frameDeadline)
	h.frameDeadline = h.budget.Deadline(frameStart)
	h.postWake()
}

// postWake queues the wake-up behind the jobs already waiting on the loop.
func (h *FrameHost) postWake() {
	if h.wakeTimer != nil {
		return
	}
	h.wakeTimer = h.loop.SetTimeout(func(*goja.Runtime) {
		h.wakeTimer = nil
		h.wake()
	}, 0)
}

// wake runs after the loop had a chance to process the frame's other jobs.
func (h *FrameHost) wake() {
	fn, deadline := h.callback, h.deadline
	if fn == nil {
		return
	}
	h.callback, h.deadline = nil, time.Time{}

	now := h.Now()
	didTimeout := false
	if !h.frameDeadline.After(now) {
		if deadline.After(now) {
			// The frame is used up and nothing is overdue yet.
			h.callback, h.deadline = fn, deadline
			h.requestFrame()
			return
		}
		didTimeout = true
	}
	h.invoke(fn, didTimeout)
}

func (h *FrameHost) invoke(fn sched.FlushFunc, didTimeout bool) {
	h.flushing = true
	defer func() {
		h.flushing = false
		if r := recover(); r != nil {
			h.cfg.OnError(fmt.Errorf("frameloop: flush panicked: %v", r))
		}
	}()
	if err := fn(didTimeout); err != nil {
		h.cfg.OnError(err)
	}
}

var _ sched.Host = (*FrameHost)(nil)
