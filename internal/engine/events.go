package engine

import (
	"time"

	"github.com/warpdl/warpsched/pkg/sched"
)

// EventKind is the lifecycle step an Event reports.
type EventKind string

const (
	EventStarted   EventKind = "started"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
	EventCanceled  EventKind = "canceled"
)

// Event reports progress of a submitted task. Tasks that scripts schedule
// themselves produce no events.
type Event struct {
	ID         string         `json:"id"`
	Name       string         `json:"name,omitempty"`
	Kind       EventKind      `json:"kind"`
	Priority   sched.Priority `json:"priority"`
	DidTimeout bool           `json:"didTimeout,omitempty"`
	Elapsed    time.Duration  `json:"elapsed,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// tracker follows submitted tasks through the scheduler. It must be the
// first hook so that later hooks can resolve task names.
type tracker struct {
	e *Engine
}

func (k tracker) OnSchedule(t *sched.Task) {
	e := k.e
	var ent *entry
	switch {
	case t.IsContinuation() && e.continuing != nil:
		ent = e.continuing
		e.continuing = nil
		delete(e.byTask, ent.task.ID())
	case !t.IsContinuation() && e.pending != nil:
		ent = e.pending
		e.pending = nil
		e.tasks[ent.id] = ent
	default:
		return
	}
	ent.task = t
	e.byTask[t.ID()] = ent
}

func (k tracker) OnCancel(t *sched.Task) {
	ent := k.e.byTask[t.ID()]
	if ent == nil {
		return
	}
	k.e.emit(Event{ID: ent.id, Name: ent.name, Kind: EventCanceled, Priority: t.Priority()})
}

func (k tracker) OnRun(t *sched.Task, didTimeout bool) {
	ent := k.e.byTask[t.ID()]
	if ent == nil {
		return
	}
	k.e.emit(Event{ID: ent.id, Name: ent.name, Kind: EventStarted, Priority: t.Priority(), DidTimeout: didTimeout})
}

func (k tracker) OnComplete(t *sched.Task, elapsed time.Duration, continued bool, err error) {
	e := k.e
	ent := e.byTask[t.ID()]
	if ent == nil {
		return
	}
	if continued {
		// The continuation is scheduled right after this returns.
		e.continuing = ent
		return
	}
	ev := Event{ID: ent.id, Name: ent.name, Kind: EventCompleted, Priority: t.Priority(), Elapsed: elapsed}
	if err != nil {
		ev.Kind = EventFailed
		ev.Error = err.Error()
	}
	e.emit(ev)
}

// sweeper drops finished tasks from the tracker. It must be the last hook so
// that every other hook can still resolve the task's name.
type sweeper struct {
	sched.NopHook
	e *Engine
}

func (k sweeper) OnCancel(t *sched.Task) {
	if ent := k.e.byTask[t.ID()]; ent != nil {
		k.e.forget(ent)
	}
}

func (k sweeper) OnComplete(t *sched.Task, _ time.Duration, continued bool, _ error) {
	if continued {
		return
	}
	if ent := k.e.byTask[t.ID()]; ent != nil {
		k.e.forget(ent)
	}
}

func (e *Engine) forget(ent *entry) {
	delete(e.tasks, ent.id)
	delete(e.byTask, ent.task.ID())
}

func (e *Engine) emit(ev Event) {
	if e.onEvent != nil {
		e.onEvent(ev)
	}
}

var (
	_ sched.Hook = tracker{}
	_ sched.Hook = sweeper{}
)
