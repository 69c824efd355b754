package sched

// flushWork is the FlushFunc handed to the host.
//
// With didTimeout set it drains every overdue task without consulting the
// host; otherwise it runs tasks one at a time until the host asks it to yield.
// Either way, a non-empty queue re-arms the host on exit, including when a
// callback fails or panics.
func (s *Scheduler) flushWork(didTimeout bool) (err error) {
	if s.paused {
		// The host request is consumed. Continue re-arms it.
		s.hostScheduled = false
		return nil
	}

	s.executing = true
	prevDidTimeout := s.currentDidTimeout
	s.currentDidTimeout = didTimeout
	s.stats.Flushes++
	if didTimeout {
		s.stats.Drains++
	}

	completed := false
	defer func() {
		s.executing = false
		s.currentDidTimeout = prevDidTimeout
		if !s.queue.isEmpty() {
			s.ensureHostCallback()
		} else {
			s.hostScheduled = false
		}
		if completed {
			err = s.flushImmediateWork()
		}
	}()

	if didTimeout {
		err = s.drainOverdue()
	} else {
		err = s.runCooperatively()
	}
	completed = err == nil
	return err
}

// drainOverdue runs every task whose expiration is not after the current
// time. The clock is read once per batch.
func (s *Scheduler) drainOverdue() error {
	for !s.queue.isEmpty() && !s.paused {
		now := s.host.Now()
		if s.queue.peekFirst().expiration.After(now) {
			return nil
		}
		for {
			if err := s.flushFirst(); err != nil {
				return err
			}
			head := s.queue.peekFirst()
			if head == nil || head.expiration.After(now) || s.paused {
				break
			}
		}
	}
	return nil
}

// runCooperatively runs one task at a time until the queue is empty or the
// host's slice is exhausted.
func (s *Scheduler) runCooperatively() error {
	for !s.queue.isEmpty() {
		if s.paused {
			return nil
		}
		if err := s.flushFirst(); err != nil {
			return err
		}
		if s.host.ShouldYield() {
			if !s.queue.isEmpty() {
				s.stats.Yields++
				s.log.Debug("sched: yielding to host with %d task(s) pending", s.queue.len())
			}
			return nil
		}
	}
	return nil
}

// flushFirst pops the head and runs it. The task is detached before its
// callback runs, so a failing callback cannot leave it in the queue.
func (s *Scheduler) flushFirst() error {
	t := s.queue.popFirst()
	if t == nil {
		return nil
	}

	s.hooks.OnRun(t, s.currentDidTimeout)
	start := s.host.Now()
	outcome, err := s.invoke(t)
	elapsed := s.host.Now().Sub(start)
	next, continued := outcome.Continuation()
	s.hooks.OnComplete(t, elapsed, continued && err == nil, err)

	if err != nil {
		s.stats.Failed++
		s.log.Warning("sched: task %d (%s) failed: %v", t.id, t.priority, err)
		return err
	}
	s.stats.Executed++

	if !continued {
		return nil
	}
	s.nextID++
	cont := &Task{
		callback:   next,
		priority:   t.priority,
		expiration: t.expiration,
		id:         s.nextID,
		index:      -1,
	}
	s.stats.Continuations++
	s.hooks.OnSchedule(cont)
	if s.queue.insertContinuation(cont) {
		s.ensureHostCallback()
	}
	return nil
}

// invoke runs t's callback with the current priority and expiration set to
// the task's, restoring them however the callback exits.
func (s *Scheduler) invoke(t *Task) (Outcome, error) {
	prevPriority, prevExpiration := s.currentPriority, s.currentExpiration
	s.currentPriority, s.currentExpiration = t.priority, t.expiration
	defer func() {
		s.currentPriority, s.currentExpiration = prevPriority, prevExpiration
	}()
	return t.callback()
}

// flushImmediateWork synchronously runs consecutive Immediate tasks at the
// head of the queue. It only acts at the outermost scope and when no flush is
// already running, so Immediate work never waits for a host cycle.
func (s *Scheduler) flushImmediateWork() (err error) {
	if !s.currentEventStart.IsZero() || s.executing {
		return nil
	}
	head := s.queue.peekFirst()
	if head == nil || head.priority != PriorityImmediate {
		return nil
	}

	s.executing = true
	defer func() {
		s.executing = false
		if !s.queue.isEmpty() {
			s.ensureHostCallback()
		} else if s.hostScheduled {
			s.hostScheduled = false
			s.host.Cancel()
		}
	}()
	for {
		if err := s.flushFirst(); err != nil {
			return err
		}
		head = s.queue.peekFirst()
		if head == nil || head.priority != PriorityImmediate {
			return nil
		}
	}
}
