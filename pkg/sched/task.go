package sched

import "time"

// Callback is a unit of work. It returns Done when finished, or Continue with
// the follow-up work when it stopped early (usually because ShouldYield
// reported true). A non-nil error aborts the current flush.
type Callback func() (Outcome, error)

// Outcome is the result of running a Callback.
type Outcome struct {
	next Callback
}

// Done reports that a callback finished all of its work.
func Done() Outcome {
	return Outcome{}
}

// Continue reports that a callback has more work to do. next is scheduled at
// the same priority and expiration as the task that returned it, ahead of any
// other pending task sharing that expiration.
func Continue(next Callback) Outcome {
	return Outcome{next: next}
}

// Continuation returns the follow-up callback, if any.
func (o Outcome) Continuation() (Callback, bool) {
	return o.next, o.next != nil
}

// Task is a pending unit of work. The pointer returned by Schedule is the
// handle used to cancel it.
type Task struct {
	callback   Callback
	priority   Priority
	expiration time.Time
	id         uint64

	// seq breaks ties between equal expirations. Fresh tasks get increasing
	// positive values, continuations decreasing negative ones, so that a
	// continuation sorts before everything already queued at its expiration.
	seq int64

	// index is the position in the queue heap, -1 once the task left it.
	index int

	continuation bool
}

// ID returns a number unique to this task within its scheduler.
func (t *Task) ID() uint64 {
	return t.id
}

// Priority returns the level the task was scheduled with.
func (t *Task) Priority() Priority {
	return t.priority
}

// Expiration returns the task's deadline.
func (t *Task) Expiration() time.Time {
	return t.expiration
}

// Pending reports whether the task is still queued.
func (t *Task) Pending() bool {
	return t.index >= 0
}

// IsContinuation reports whether the task was produced by Continue.
func (t *Task) IsContinuation() bool {
	return t.continuation
}
