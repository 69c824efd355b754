package frameloop

import (
	"time"

	"github.com/warpdl/warpsched/pkg/logger"
	"github.com/warpdl/warpsched/pkg/sched"
)

const (
	// DefaultRefreshHz is the emulated display refresh rate.
	DefaultRefreshHz = 60
	// DefaultFrameTimeout fires a frame anyway when the frame timer is
	// starved, e.g. because the loop is busy with other jobs.
	DefaultFrameTimeout = 100 * time.Millisecond
)

// Config holds the tunables of the hosts. The zero value is usable.
type Config struct {
	// RefreshHz is the frame rate FrameHost aligns its frames to.
	RefreshHz int
	// BudgetSeed and BudgetFloor configure the adaptive frame Budget.
	BudgetSeed  time.Duration
	BudgetFloor time.Duration
	// FrameTimeout is the backstop delay after which a frame is delivered
	// even if its timer has not fired.
	FrameTimeout time.Duration
	// OnError receives errors returned by flushes. It defaults to logging
	// them at error level.
	OnError sched.ErrorHandler
	Logger  logger.Logger
	// Now overrides the clock. It defaults to time.Now.
	Now func() time.Time
}

func (c *Config) applyDefaults() {
	if c.RefreshHz <= 0 {
		c.RefreshHz = DefaultRefreshHz
	}
	if c.FrameTimeout <= 0 {
		c.FrameTimeout = DefaultFrameTimeout
	}
	if c.Logger == nil {
		c.Logger = logger.NewNopLogger()
	}
	if c.OnError == nil {
		l := c.Logger
		c.OnError = func(err error) {
			l.Error("frameloop: flush failed: %v", err)
		}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

func (c *Config) frameInterval() time.Duration {
	return time.Second / time.Duration(c.RefreshHz)
}
