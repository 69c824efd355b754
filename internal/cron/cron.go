package cron

import (
	"container/heap"
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
)

const maxSleepCap = 60 * time.Second

// Cron fires job triggers. It runs a background goroutine that sleeps until
// the next trigger and then calls onFire with it.
type Cron struct {
	ops chan op
	ctx context.Context
	now func() time.Time
}

// op is a change to the pending set. Adds and removals share one channel so
// they apply in call order.
type op struct {
	add    Trigger
	remove string
}

// New creates and starts a Cron. onFire is called from the Cron goroutine
// and should hand the work off quickly. The goroutine exits when ctx is
// cancelled.
func New(ctx context.Context, onFire func(Trigger)) *Cron {
	return newCron(ctx, onFire, time.Now)
}

func newCron(ctx context.Context, onFire func(Trigger), now func() time.Time) *Cron {
	c := &Cron{
		ops: make(chan op, 64),
		ctx: ctx,
		now: now,
	}
	go c.run(onFire)
	return c
}

// Add enqueues a trigger.
func (c *Cron) Add(t Trigger) {
	select {
	case c.ops <- op{add: t}:
	case <-c.ctx.Done():
	}
}

// Remove cancels every pending trigger of job, including the re-armed
// occurrences of a recurring one.
func (c *Cron) Remove(job string) {
	select {
	case c.ops <- op{remove: job}:
	case <-c.ctx.Done():
	}
}

// run is the active object. Recurring triggers are re-added with their next
// occurrence after firing.
func (c *Cron) run(onFire func(Trigger)) {
	h := &triggerHeap{}
	heap.Init(h)

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	resetTimer := func() <-chan time.Time {
		if timer != nil {
			timer.Stop()
		}
		if h.Len() == 0 {
			return nil
		}
		dur := (*h)[0].At.Sub(c.now())
		if dur > maxSleepCap {
			dur = maxSleepCap
		}
		if dur < 0 {
			dur = 0
		}
		timer = time.NewTimer(dur)
		return timer.C
	}

	timerCh := resetTimer()

	for {
		select {
		case <-c.ctx.Done():
			return

		case o := <-c.ops:
			if o.remove != "" {
				heapRemoveJob(h, o.remove)
			} else {
				heapPush(h, o.add)
			}
			timerCh = resetTimer()

		case <-timerCh:
			now := c.now()
			for h.Len() > 0 && !(*h)[0].At.After(now) {
				t := heapPop(h)
				onFire(t)
				if t.Expr == "" {
					continue
				}
				next, err := NextAfter(t.Expr, now)
				if err == nil {
					heapPush(h, Trigger{Job: t.Job, At: next, Expr: t.Expr})
				}
			}
			timerCh = resetTimer()
		}
	}
}

// Validate reports whether expr is a cron expression gronx understands.
func Validate(expr string) error {
	if !gronx.IsValid(expr) {
		return fmt.Errorf("cron: invalid expression %q", expr)
	}
	return nil
}

// NextAfter returns the next time expr fires strictly after start.
func NextAfter(expr string, start time.Time) (time.Time, error) {
	return gronx.NextTickAfter(expr, start, false)
}

// hasOccurrenceWithinYear is false for invalid expressions and for ones that
// cannot fire in the coming year (e.g. February 30th).
func hasOccurrenceWithinYear(expr string, from time.Time) bool {
	next, err := gronx.NextTickAfter(expr, from, false)
	if err != nil {
		return false
	}
	return next.Before(from.Add(365 * 24 * time.Hour))
}

// Plan computes the first trigger of every job, keyed by job name to cron
// expression. Jobs whose expression is invalid or never fires within a year
// are returned in rejected instead.
func Plan(jobs map[string]string, now time.Time) (triggers []Trigger, rejected []string) {
	for name, expr := range jobs {
		if !hasOccurrenceWithinYear(expr, now) {
			rejected = append(rejected, name)
			continue
		}
		next, err := NextAfter(expr, now)
		if err != nil {
			rejected = append(rejected, name)
			continue
		}
		triggers = append(triggers, Trigger{Job: name, At: next, Expr: expr})
	}
	return triggers, rejected
}
