// Package frameloop provides the production sched.Host implementations.
//
// Both hosts run on a goja_nodejs event loop: every flush, timer and frame
// callback executes on the loop goroutine, which is therefore the only
// goroutine allowed to touch the scheduler they drive.
//
// FrameHost emulates a display's repaint signal with loop timers aligned to a
// refresh interval and adapts its per-frame budget to the cadence it observes.
// TimerHost is the fallback for loops without a frame notion: it posts a
// zero-delay timer per request and never asks a flush to yield.
package frameloop
