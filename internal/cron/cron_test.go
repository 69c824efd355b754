package cron

import (
	"context"
	"sort"
	"testing"
	"time"
)

func collect(ctx context.Context) (*Cron, <-chan Trigger) {
	ch := make(chan Trigger, 16)
	c := New(ctx, func(t Trigger) { ch <- t })
	return c, ch
}

func TestCron_AddAndFire(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c, fired := collect(ctx)

	c.Add(Trigger{Job: "once", At: time.Now().Add(50 * time.Millisecond)})

	select {
	case tr := <-fired:
		if tr.Job != "once" {
			t.Errorf("expected once, got %s", tr.Job)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected trigger to fire")
	}
}

func TestCron_FiresInOrder(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c, fired := collect(ctx)

	now := time.Now()
	c.Add(Trigger{Job: "second", At: now.Add(150 * time.Millisecond)})
	c.Add(Trigger{Job: "first", At: now.Add(50 * time.Millisecond)})

	for _, want := range []string{"first", "second"} {
		select {
		case tr := <-fired:
			if tr.Job != want {
				t.Errorf("expected %s, got %s", want, tr.Job)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("expected %s to fire", want)
		}
	}
}

func TestCron_RemoveBeforeFire(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c, fired := collect(ctx)

	c.Add(Trigger{Job: "gone", At: time.Now().Add(300 * time.Millisecond)})
	c.Remove("gone")

	select {
	case tr := <-fired:
		t.Fatalf("expected no trigger, got %s", tr.Job)
	case <-time.After(600 * time.Millisecond):
	}
}

func TestCron_RemoveKeepsOtherJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c, fired := collect(ctx)

	at := time.Now().Add(100 * time.Millisecond)
	c.Add(Trigger{Job: "gone", At: at, Expr: "* * * * *"})
	c.Add(Trigger{Job: "kept", At: at})
	c.Remove("gone")

	select {
	case tr := <-fired:
		if tr.Job != "kept" {
			t.Fatalf("expected kept to fire, got %s", tr.Job)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("kept never fired")
	}
	select {
	case tr := <-fired:
		t.Errorf("expected no further triggers, got %s", tr.Job)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestCron_ShutdownViaContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c, fired := collect(ctx)

	c.Add(Trigger{Job: "late", At: time.Now().Add(200 * time.Millisecond)})
	cancel()

	select {
	case tr := <-fired:
		t.Fatalf("expected no trigger after cancel, got %s", tr.Job)
	case <-time.After(400 * time.Millisecond):
	}
	// Calls after shutdown must not block.
	c.Add(Trigger{Job: "ignored", At: time.Now()})
	c.Remove("ignored")
}

func TestCron_RecurringIsRescheduled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The clock jumps one minute after the first fire, so the rescheduled
	// occurrence is due immediately.
	base := time.Date(2026, 3, 1, 10, 0, 30, 0, time.UTC)
	var calls int
	clock := func() time.Time {
		calls++
		if calls > 2 {
			return base.Add(time.Minute)
		}
		return base
	}
	ch := make(chan Trigger, 4)
	c := newCron(ctx, func(t Trigger) { ch <- t }, clock)
	c.Add(Trigger{Job: "every-minute", At: base, Expr: "* * * * *"})

	first := <-ch
	if !first.At.Equal(base) {
		t.Errorf("expected first fire at %v, got %v", base, first.At)
	}
	select {
	case second := <-ch:
		want := time.Date(2026, 3, 1, 10, 1, 0, 0, time.UTC)
		if !second.At.Equal(want) {
			t.Errorf("expected second fire at %v, got %v", want, second.At)
		}
		if second.Expr != "* * * * *" {
			t.Errorf("expected expression to be kept, got %q", second.Expr)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("expected recurring trigger to fire again")
	}
}

func TestNextAfter(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	next, err := NextAfter("0 2 * * *", now)
	if err != nil {
		t.Fatalf("expected no error: %v", err)
	}
	if next.Hour() != 2 || next.Minute() != 0 || next.Day() != 1 {
		t.Errorf("expected 2026-03-01 02:00, got %v", next)
	}
	if _, err := NextAfter("bad-expr", now); err == nil {
		t.Error("expected error for invalid cron expression")
	}
}

func TestValidate(t *testing.T) {
	if err := Validate("*/5 * * * *"); err != nil {
		t.Errorf("expected valid expression, got %v", err)
	}
	if err := Validate("not a cron"); err == nil {
		t.Error("expected error for invalid expression")
	}
}

func TestHasOccurrenceWithinYear(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if !hasOccurrenceWithinYear("0 2 * * *", now) {
		t.Error("expected daily expression to occur within a year")
	}
	if hasOccurrenceWithinYear("bad-cron", now) {
		t.Error("expected invalid expression to report false")
	}
}

func TestPlan(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	triggers, rejected := Plan(map[string]string{
		"nightly": "0 2 * * *",
		"hourly":  "0 * * * *",
		"broken":  "nope",
	}, now)

	if len(rejected) != 1 || rejected[0] != "broken" {
		t.Errorf("expected [broken] rejected, got %v", rejected)
	}
	sort.Slice(triggers, func(i, j int) bool { return triggers[i].At.Before(triggers[j].At) })
	if len(triggers) != 2 {
		t.Fatalf("expected 2 triggers, got %d", len(triggers))
	}
	if triggers[0].Job != "hourly" || !triggers[0].At.Equal(now.Add(time.Hour)) {
		t.Errorf("expected hourly at 01:00, got %s at %v", triggers[0].Job, triggers[0].At)
	}
	if triggers[1].Job != "nightly" || triggers[1].Expr != "0 2 * * *" {
		t.Errorf("expected nightly with its expression, got %+v", triggers[1])
	}
}
