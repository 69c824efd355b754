package sched

import "errors"

var (
	// ErrNoHost is returned by Schedule when the scheduler was built without
	// a Host. There is no way to ever run the task, so the condition is fatal
	// for the caller.
	ErrNoHost = errors.New("sched: no host configured")

	// ErrInvalidTimeouts is returned by Timeouts.Validate when the table
	// does not preserve relative urgency between levels.
	ErrInvalidTimeouts = errors.New("sched: invalid priority timeouts")
)
