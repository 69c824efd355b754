package frameloop

import (
	"fmt"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"

	"github.com/warpdl/warpsched/pkg/sched"
)

// TimerHost is the fallback host for loops without frames. Each request
// posts a zero-delay loop timer, so other loop jobs interleave between
// flushes, and ShouldYield never reports true.
type TimerHost struct {
	loop *eventloop.EventLoop
	cfg  Config

	callback sched.FlushFunc
	posted   bool
	running  bool
	// gen counts Cancel calls so a re-posted request can tell it was
	// canceled in the meantime.
	gen uint64
}

// NewTimerHost creates a host bound to loop. Only OnError, Logger and Now of
// cfg are used.
func NewTimerHost(loop *eventloop.EventLoop, cfg Config) *TimerHost {
	cfg.applyDefaults()
	return &TimerHost{loop: loop, cfg: cfg}
}

func (h *TimerHost) Now() time.Time {
	return h.cfg.Now()
}

// Request ignores the deadline. A request made while a flush is running is
// re-posted for the next loop turn, unless Cancel is called before then.
func (h *TimerHost) Request(fn sched.FlushFunc, _ time.Time) {
	if h.running {
		gen := h.gen
		h.loop.SetTimeout(func(*goja.Runtime) {
			if h.gen == gen {
				h.Request(fn, time.Time{})
			}
		}, 0)
		return
	}
	h.callback = fn
	if h.posted {
		return
	}
	h.posted = true
	h.loop.SetTimeout(func(*goja.Runtime) {
		h.flush()
	}, 0)
}

func (h *TimerHost) Cancel() {
	h.gen++
	h.callback = nil
}

func (h *TimerHost) ShouldYield() bool {
	return false
}

func (h *TimerHost) flush() {
	h.posted = false
	fn := h.callback
	if fn == nil {
		return
	}
	h.callback = nil
	h.running = true
	defer func() {
		h.running = false
		if r := recover(); r != nil {
			h.cfg.OnError(fmt.Errorf("frameloop: flush panicked: %v", r))
		}
	}()
	if err := fn(false); err != nil {
		h.cfg.OnError(err)
	}
}

var _ sched.Host = (*TimerHost)(nil)
