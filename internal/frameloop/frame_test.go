package frameloop

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"

	"github.com/warpdl/warpsched/pkg/sched"
)

type timeoutHook struct {
	sched.NopHook
	didTimeout []bool
}

func (h *timeoutHook) OnRun(_ *sched.Task, didTimeout bool) {
	h.didTimeout = append(h.didTimeout, didTimeout)
}

func newLoop() *eventloop.EventLoop {
	return eventloop.NewEventLoop(eventloop.EnableConsole(false))
}

func appendName(order *[]string, name string) sched.Callback {
	return func() (sched.Outcome, error) {
		*order = append(*order, name)
		return sched.Done(), nil
	}
}

func TestFrameHost_RunsInDeadlineOrder(t *testing.T) {
	loop := newLoop()
	var order []string
	var host *FrameHost

	loop.Run(func(*goja.Runtime) {
		host = NewFrameHost(loop, Config{})
		s := sched.New(sched.WithHost(host))
		_, _ = s.Schedule(appendName(&order, "normal"))
		_, _ = s.Schedule(appendName(&order, "user-blocking"), sched.WithPriority(sched.PriorityUserBlocking))
		_, _ = s.Schedule(appendName(&order, "low"), sched.WithPriority(sched.PriorityLow))
	})

	want := []string{"user-blocking", "normal", "low"}
	if strings.Join(order, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, order)
	}
	if host.Frames() < 1 {
		t.Errorf("expected at least one frame, got %d", host.Frames())
	}
}

func TestFrameHost_OverdueSkipsFrameWait(t *testing.T) {
	loop := newLoop()
	hook := &timeoutHook{}
	var host *FrameHost

	loop.Run(func(*goja.Runtime) {
		host = NewFrameHost(loop, Config{})
		s := sched.New(sched.WithHost(host), sched.WithHook(hook))
		_, _ = s.Schedule(func() (sched.Outcome, error) { return sched.Done(), nil },
			sched.WithTimeout(-time.Millisecond))
	})

	if len(hook.didTimeout) != 1 || !hook.didTimeout[0] {
		t.Errorf("expected one forced-drain run, got %v", hook.didTimeout)
	}
	if host.Frames() != 0 {
		t.Errorf("expected no frame to be needed, got %d", host.Frames())
	}
}

func TestFrameHost_YieldsAcrossFrames(t *testing.T) {
	loop := newLoop()
	var order []string
	var s *sched.Scheduler
	var host *FrameHost

	slow := func(name string) sched.Callback {
		return func() (sched.Outcome, error) {
			time.Sleep(40 * time.Millisecond)
			order = append(order, name)
			return sched.Done(), nil
		}
	}

	loop.Run(func(*goja.Runtime) {
		host = NewFrameHost(loop, Config{})
		s = sched.New(sched.WithHost(host))
		for _, name := range []string{"a", "b", "c"} {
			_, _ = s.Schedule(slow(name))
		}
	})

	if strings.Join(order, ",") != "a,b,c" {
		t.Errorf("expected a,b,c, got %v", order)
	}
	if st := s.Stats(); st.Yields < 2 {
		t.Errorf("expected the flush to yield between slow tasks, got %+v", st)
	}
	if host.Frames() < 3 {
		t.Errorf("expected one frame per slow task, got %d", host.Frames())
	}
}

func TestFrameHost_ShouldYieldAfterBudget(t *testing.T) {
	loop := newLoop()
	var before, after bool

	loop.Run(func(*goja.Runtime) {
		host := NewFrameHost(loop, Config{})
		s := sched.New(sched.WithHost(host))
		_, _ = s.Schedule(func() (sched.Outcome, error) {
			before = s.ShouldYield()
			time.Sleep(host.Budget() + 5*time.Millisecond)
			after = s.ShouldYield()
			return sched.Done(), nil
		})
	})

	if before {
		t.Error("expected budget left at the start of a frame")
	}
	if !after {
		t.Error("expected a yield once the frame budget is spent")
	}
}

func TestFrameHost_ReportsErrors(t *testing.T) {
	loop := newLoop()
	boom := errors.New("boom")
	var reported []error
	var order []string

	loop.Run(func(*goja.Runtime) {
		host := NewFrameHost(loop, Config{OnError: func(err error) { reported = append(reported, err) }})
		s := sched.New(sched.WithHost(host))
		_, _ = s.Schedule(func() (sched.Outcome, error) { return sched.Done(), boom })
		_, _ = s.Schedule(appendName(&order, "after"))
	})

	if len(reported) != 1 || !errors.Is(reported[0], boom) {
		t.Errorf("expected boom to be reported, got %v", reported)
	}
	if len(order) != 1 {
		t.Errorf("expected the remaining task to run on a later wake, got %v", order)
	}
}

func TestFrameHost_RecoversPanics(t *testing.T) {
	loop := newLoop()
	var reported []error

	loop.Run(func(*goja.Runtime) {
		host := NewFrameHost(loop, Config{OnError: func(err error) { reported = append(reported, err) }})
		s := sched.New(sched.WithHost(host))
		_, _ = s.Schedule(func() (sched.Outcome, error) { panic("kaboom") })
	})

	if len(reported) != 1 || !strings.Contains(reported[0].Error(), "kaboom") {
		t.Errorf("expected the panic to be reported, got %v", reported)
	}
}

func TestFrameHost_CancelBeforeWake(t *testing.T) {
	loop := newLoop()
	ran := false

	loop.Run(func(*goja.Runtime) {
		host := NewFrameHost(loop, Config{})
		s := sched.New(sched.WithHost(host))
		task, _ := s.Schedule(func() (sched.Outcome, error) {
			ran = true
			return sched.Done(), nil
		})
		s.Cancel(task)
	})

	if ran {
		t.Error("expected the canceled task not to run")
	}
}
