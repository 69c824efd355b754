package sched

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Priority is the urgency class of a task. Lower values are more urgent.
type Priority int

const (
	// PriorityImmediate tasks are due as soon as they are scheduled.
	PriorityImmediate Priority = iota + 1
	// PriorityUserBlocking is for work the user is actively waiting on.
	PriorityUserBlocking
	// PriorityNormal is the default priority.
	PriorityNormal
	// PriorityLow is for work that may be deferred.
	PriorityLow
	// PriorityIdle tasks effectively never expire.
	PriorityIdle
)

// Priorities lists every valid level, most urgent first.
var Priorities = []Priority{
	PriorityImmediate,
	PriorityUserBlocking,
	PriorityNormal,
	PriorityLow,
	PriorityIdle,
}

var (
	strPriorityMap = map[Priority]string{
		PriorityImmediate:    "immediate",
		PriorityUserBlocking: "user-blocking",
		PriorityNormal:       "normal",
		PriorityLow:          "low",
		PriorityIdle:         "idle",
	}

	typePriorityMap = map[string]Priority{
		"immediate":     PriorityImmediate,
		"user-blocking": PriorityUserBlocking,
		"normal":        PriorityNormal,
		"low":           PriorityLow,
		"idle":          PriorityIdle,
	}
)

func (p Priority) String() string {
	if s, ok := strPriorityMap[p]; ok {
		return s
	}
	return fmt.Sprintf("priority(%d)", int(p))
}

// IsValid reports whether p is one of the five known levels.
func (p Priority) IsValid() bool {
	_, ok := strPriorityMap[p]
	return ok
}

// orNormal coerces unknown levels to PriorityNormal.
func (p Priority) orNormal() Priority {
	if p.IsValid() {
		return p
	}
	return PriorityNormal
}

// ParsePriority parses the text form of a priority ("user-blocking",
// "Low", ...). A decimal level number is accepted as well.
func ParsePriority(s string) (Priority, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	if p, ok := typePriorityMap[key]; ok {
		return p, nil
	}
	if n, err := strconv.Atoi(key); err == nil && Priority(n).IsValid() {
		return Priority(n), nil
	}
	return 0, fmt.Errorf("sched: unknown priority %q", s)
}

func (p Priority) MarshalText() ([]byte, error) {
	if !p.IsValid() {
		return nil, fmt.Errorf("sched: cannot marshal %s", p)
	}
	return []byte(p.String()), nil
}

func (p *Priority) UnmarshalText(b []byte) error {
	v, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// maxSigned31BitInt milliseconds is the largest timeout that still behaves
// like a real deadline. Idle work uses it to mean "never".
const maxSigned31BitInt = 1073741823

// Timeouts maps every priority level to the offset added to a task's start
// time to obtain its expiration.
type Timeouts struct {
	Immediate    time.Duration
	UserBlocking time.Duration
	Normal       time.Duration
	Low          time.Duration
	Idle         time.Duration
}

// DefaultTimeouts is the table used unless WithTimeouts overrides it.
var DefaultTimeouts = Timeouts{
	Immediate:    -1 * time.Millisecond,
	UserBlocking: 250 * time.Millisecond,
	Normal:       5000 * time.Millisecond,
	Low:          10000 * time.Millisecond,
	Idle:         maxSigned31BitInt * time.Millisecond,
}

// For returns the timeout of level p. Unknown levels use the Normal timeout.
func (t Timeouts) For(p Priority) time.Duration {
	switch p {
	case PriorityImmediate:
		return t.Immediate
	case PriorityUserBlocking:
		return t.UserBlocking
	case PriorityLow:
		return t.Low
	case PriorityIdle:
		return t.Idle
	default:
		return t.Normal
	}
}

// Expiration returns the deadline of a task of priority p that started at
// start.
func (t Timeouts) Expiration(p Priority, start time.Time) time.Time {
	return start.Add(t.For(p))
}

// Validate checks that more urgent levels never get a later deadline than less
// urgent ones, and that only Immediate is allowed to be already due.
func (t Timeouts) Validate() error {
	ordered := []time.Duration{t.Immediate, t.UserBlocking, t.Normal, t.Low, t.Idle}
	for i := 1; i < len(ordered); i++ {
		if ordered[i] <= 0 {
			return fmt.Errorf("%w: %s timeout must be positive, got %s", ErrInvalidTimeouts, Priorities[i], ordered[i])
		}
		if ordered[i] < ordered[i-1] {
			return fmt.Errorf("%w: %s timeout %s is shorter than %s timeout %s",
				ErrInvalidTimeouts, Priorities[i], ordered[i], Priorities[i-1], ordered[i-1])
		}
	}
	return nil
}
