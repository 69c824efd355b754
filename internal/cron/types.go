package cron

import "time"

// Trigger is a pending fire of a named job.
type Trigger struct {
	// Job is the unique name of the job to run when At is reached.
	Job string
	// At is the wall-clock time of the next fire.
	At time.Time
	// Expr is the cron expression of recurring jobs. Empty means one-shot:
	// the trigger is dropped after firing.
	Expr string
}
