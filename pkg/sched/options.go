package sched

import (
	"time"

	"github.com/warpdl/warpsched/pkg/logger"
)

// Options holds configuration for a Scheduler.
type Options struct {
	Host     Host
	Logger   logger.Logger
	Hooks    Hooks
	Timeouts Timeouts
}

// Option configures Options.
type Option func(*Options)

// WithHost sets the host that drives the scheduler.
func WithHost(h Host) Option {
	return func(o *Options) {
		o.Host = h
	}
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logger.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithHook adds a lifecycle observer. It may be given more than once.
func WithHook(h Hook) Option {
	return func(o *Options) {
		o.Hooks = append(o.Hooks, h)
	}
}

// WithTimeouts replaces the priority timeout table.
func WithTimeouts(t Timeouts) Option {
	return func(o *Options) {
		o.Timeouts = t
	}
}

// scheduleOptions holds per-call options of Schedule.
type scheduleOptions struct {
	priority    Priority
	hasPriority bool
	timeout     time.Duration
	hasTimeout  bool
}

// ScheduleOption configures a single Schedule call.
type ScheduleOption func(*scheduleOptions)

// WithPriority sets the task's priority. Without it the task takes the
// current priority of the calling scope (Normal outside any scope).
func WithPriority(p Priority) ScheduleOption {
	return func(o *scheduleOptions) {
		o.priority = p
		o.hasPriority = true
	}
}

// WithTimeout overrides the priority's default timeout. Negative values are
// allowed and make the task overdue on arrival.
func WithTimeout(d time.Duration) ScheduleOption {
	return func(o *scheduleOptions) {
		o.timeout = d
		o.hasTimeout = true
	}
}
