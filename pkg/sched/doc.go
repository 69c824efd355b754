// Package sched implements a cooperative, single-goroutine task scheduler.
//
// Callers submit callbacks tagged with a Priority. Each priority maps to a
// timeout, and the scheduler orders pending work by the resulting expiration
// time. Execution is driven by a Host: the host decides when the scheduler gets
// to run (typically once per repaint/idle cycle) and how much of the current
// cycle is left. The scheduler runs tasks one at a time until the host asks it
// to yield, except for overdue work, which is drained without yielding.
//
// A Scheduler is not safe for concurrent use. It must only be touched from the
// goroutine that drives its Host, and a callback can never be interrupted: it
// runs to completion or returns a continuation with Continue.
package sched
