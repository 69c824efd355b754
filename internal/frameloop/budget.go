package frameloop

import "time"

const (
	// DefaultBudgetSeed assumes a 30fps cycle until faster frames are seen.
	DefaultBudgetSeed = 33 * time.Millisecond
	// DefaultBudgetFloor bounds the estimate against spurious short frames,
	// i.e. anything above 120Hz.
	DefaultBudgetFloor = 8 * time.Millisecond
)

// Budget is the adaptive estimate of how much time one frame gives the
// scheduler.
//
// Each frame start is measured against the previous frame's deadline. When
// two consecutive measurements are both shorter than the current estimate,
// the estimate shrinks to the larger of them, never below the floor.
// Otherwise the measurement becomes the reference for the next frame.
type Budget struct {
	active   time.Duration
	previous time.Duration
	floor    time.Duration
}

// NewBudget returns a budget starting at seed. Non-positive arguments fall
// back to the defaults, and a seed below the floor is raised to it.
func NewBudget(seed, floor time.Duration) *Budget {
	if seed <= 0 {
		seed = DefaultBudgetSeed
	}
	if floor <= 0 {
		floor = DefaultBudgetFloor
	}
	if seed < floor {
		seed = floor
	}
	return &Budget{active: seed, previous: seed, floor: floor}
}

// Active returns the current estimate.
func (b *Budget) Active() time.Duration {
	return b.active
}

// Floor returns the smallest value the estimate may take.
func (b *Budget) Floor() time.Duration {
	return b.floor
}

// Observe records a frame that started at frameStart, given the deadline set
// for the frame before it, and returns the updated estimate. A zero
// priorDeadline means no frame has been seen yet and is not measured.
func (b *Budget) Observe(frameStart, priorDeadline time.Time) time.Duration {
	if priorDeadline.IsZero() {
		return b.active
	}
	next := frameStart.Sub(priorDeadline) + b.active
	if next < b.active && b.previous < b.active {
		if next < b.floor {
			next = b.floor
		}
		if next < b.previous {
			next = b.previous
		}
		b.active = next
	} else {
		b.previous = next
	}
	return b.active
}

// Deadline returns the end of a frame that started at frameStart.
func (b *Budget) Deadline(frameStart time.Time) time.Time {
	return frameStart.Add(b.active)
}
