package sched

import "time"

// Hook observes task lifecycle events. Hooks run synchronously on the
// scheduler's goroutine and must not block.
type Hook interface {
	OnSchedule(t *Task)
	OnCancel(t *Task)
	OnRun(t *Task, didTimeout bool)
	OnComplete(t *Task, elapsed time.Duration, continued bool, err error)
}

// NopHook implements Hook and ignores every event. Embed it to implement only
// the events you care about.
type NopHook struct{}

func (NopHook) OnSchedule(*Task)                             {}
func (NopHook) OnCancel(*Task)                               {}
func (NopHook) OnRun(*Task, bool)                            {}
func (NopHook) OnComplete(*Task, time.Duration, bool, error) {}

// Hooks fans events out to several hooks in order.
type Hooks []Hook

func (hs Hooks) OnSchedule(t *Task) {
	for _, h := range hs {
		h.OnSchedule(t)
	}
}

func (hs Hooks) OnCancel(t *Task) {
	for _, h := range hs {
		h.OnCancel(t)
	}
}

func (hs Hooks) OnRun(t *Task, didTimeout bool) {
	for _, h := range hs {
		h.OnRun(t, didTimeout)
	}
}

func (hs Hooks) OnComplete(t *Task, elapsed time.Duration, continued bool, err error) {
	for _, h := range hs {
		h.OnComplete(t, elapsed, continued, err)
	}
}

var (
	_ Hook = NopHook{}
	_ Hook = Hooks(nil)
)
