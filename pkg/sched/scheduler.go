package sched

import (
	"time"

	"github.com/warpdl/warpsched/pkg/logger"
)

// Scheduler orders prioritized callbacks by deadline and runs them whenever
// its Host lets it.
//
// It holds what would otherwise be process-wide state: the priority of the
// current scope, the expiration of the task being executed, the reentrancy
// guard and the pause flag. Build one per runtime with New.
type Scheduler struct {
	host     Host
	log      logger.Logger
	hooks    Hooks
	timeouts Timeouts
	queue    *taskQueue

	currentPriority   Priority
	currentEventStart time.Time // zero outside RunWithPriority/Next/WrapCallback
	currentExpiration time.Time
	currentDidTimeout bool

	// executing is set while a flush or the Immediate fast path is running.
	// Requests to arm the host are suppressed meanwhile; the flush re-arms
	// on exit.
	executing bool
	paused    bool

	hostScheduled bool

	nextID uint64
	stats  Stats
}

// Stats are counters describing what the scheduler has done so far.
type Stats struct {
	Scheduled     uint64 `json:"scheduled"`
	Continuations uint64 `json:"continuations"`
	Executed      uint64 `json:"executed"`
	Failed        uint64 `json:"failed"`
	Canceled      uint64 `json:"canceled"`
	Flushes       uint64 `json:"flushes"`
	Drains        uint64 `json:"drains"`
	Yields        uint64 `json:"yields"`
	Pending       int    `json:"pending"`
}

// New creates a Scheduler. Without WithHost the scheduler can be built, but
// Schedule reports ErrNoHost.
func New(opts ...Option) *Scheduler {
	o := &Options{
		Timeouts: DefaultTimeouts,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.Logger == nil {
		o.Logger = logger.NewNopLogger()
	}
	return &Scheduler{
		host:            o.Host,
		log:             o.Logger,
		hooks:           o.Hooks,
		timeouts:        o.Timeouts,
		queue:           newTaskQueue(),
		currentPriority: PriorityNormal,
	}
}

// Schedule queues cb and returns its handle.
func (s *Scheduler) Schedule(cb Callback, opts ...ScheduleOption) (*Task, error) {
	if s.host == nil {
		return nil, ErrNoHost
	}
	o := scheduleOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	priority := s.currentPriority
	if o.hasPriority {
		priority = o.priority.orNormal()
	}

	var timeout *time.Duration
	if o.hasTimeout {
		timeout = &o.timeout
	}

	s.nextID++
	t := &Task{
		callback:   cb,
		priority:   priority,
		expiration: s.computeExpiration(priority, timeout),
		id:         s.nextID,
		index:      -1,
	}
	s.stats.Scheduled++
	s.hooks.OnSchedule(t)

	if s.queue.insert(t) {
		s.ensureHostCallback()
	}
	return t, nil
}

// computeExpiration implements the priority policy. The start time is the
// start of the current scope when inside one, else the current time.
func (s *Scheduler) computeExpiration(p Priority, explicit *time.Duration) time.Time {
	start := s.currentEventStart
	if start.IsZero() {
		start = s.host.Now()
	}
	if explicit != nil {
		return start.Add(*explicit)
	}
	return s.timeouts.Expiration(p, start)
}

// Cancel removes t from the queue. Canceling a task twice, or one that has
// already run or is running, does nothing.
func (s *Scheduler) Cancel(t *Task) {
	if !s.queue.remove(t) {
		return
	}
	s.stats.Canceled++
	s.hooks.OnCancel(t)
	if s.queue.isEmpty() && s.hostScheduled && !s.executing {
		s.hostScheduled = false
		s.host.Cancel()
	}
}

// ensureHostCallback arms the host for the current head. It does nothing
// while a flush is executing, since the flush re-arms on its way out.
func (s *Scheduler) ensureHostCallback() {
	if s.executing {
		return
	}
	head := s.queue.peekFirst()
	if head == nil {
		return
	}
	if s.hostScheduled {
		s.host.Cancel()
	} else {
		s.hostScheduled = true
	}
	s.host.Request(s.flushWork, head.expiration)
}

// enterScope switches to priority p with a fresh event start time and returns
// the function restoring the previous scope.
func (s *Scheduler) enterScope(p Priority) func() {
	prevPriority, prevStart := s.currentPriority, s.currentEventStart
	s.currentPriority = p
	s.currentEventStart = s.host.Now()
	return func() {
		s.currentPriority = prevPriority
		s.currentEventStart = prevStart
	}
}

// runScoped runs fn inside a scope at priority p, then runs pending Immediate
// work before returning. fn's error is returned in preference to one from the
// Immediate work.
func (s *Scheduler) runScoped(p Priority, fn func() error) error {
	if s.host == nil {
		return fn()
	}
	err := func() error {
		defer s.enterScope(p)()
		return fn()
	}()
	if ierr := s.flushImmediateWork(); err == nil {
		err = ierr
	}
	return err
}

// RunWithPriority runs fn synchronously with the current priority set to p.
// Tasks scheduled by fn default to p, and their deadlines are computed from
// the moment fn was entered. Unknown priorities are treated as Normal.
func (s *Scheduler) RunWithPriority(p Priority, fn func() error) error {
	return s.runScoped(p.orNormal(), fn)
}

// Next runs fn at Normal priority, or at the current priority when that is
// already Low or Idle. It is used to push follow-up work out of an urgent
// scope.
func (s *Scheduler) Next(fn func() error) error {
	p := PriorityNormal
	switch s.currentPriority {
	case PriorityImmediate, PriorityUserBlocking, PriorityNormal:
	default:
		p = s.currentPriority
	}
	return s.runScoped(p, fn)
}

// WrapCallback captures the current priority and returns a function that runs
// fn under that priority whenever it is called.
func (s *Scheduler) WrapCallback(fn func() error) func() error {
	parent := s.currentPriority
	return func() error {
		return s.runScoped(parent, fn)
	}
}

// CurrentPriority returns the priority of the current scope or executing task.
func (s *Scheduler) CurrentPriority() Priority {
	return s.currentPriority
}

// Now returns the host's clock reading.
func (s *Scheduler) Now() time.Time {
	if s.host == nil {
		return time.Now()
	}
	return s.host.Now()
}

// ShouldYield tells the running task whether it should stop and return a
// continuation. It never asks overdue work to yield. Otherwise it reports
// true when a task more urgent than the running one arrived, or when the
// host's slice is used up.
func (s *Scheduler) ShouldYield() bool {
	if s.currentDidTimeout {
		return false
	}
	if head := s.queue.peekFirst(); head != nil && head.expiration.Before(s.currentExpiration) {
		return true
	}
	return s.host != nil && s.host.ShouldYield()
}

// Pause halts flushing without dropping queued work. Debug only.
func (s *Scheduler) Pause() {
	s.paused = true
}

// Continue resumes flushing after Pause.
func (s *Scheduler) Continue() {
	s.paused = false
	if !s.queue.isEmpty() {
		s.ensureHostCallback()
	}
}

// Paused reports whether Pause is in effect.
func (s *Scheduler) Paused() bool {
	return s.paused
}

// FirstTask returns the task that will run next, or nil.
func (s *Scheduler) FirstTask() *Task {
	return s.queue.peekFirst()
}

// Len returns the number of pending tasks.
func (s *Scheduler) Len() int {
	return s.queue.len()
}

// Stats returns a snapshot of the scheduler counters.
func (s *Scheduler) Stats() Stats {
	st := s.stats
	st.Pending = s.queue.len()
	return st
}
