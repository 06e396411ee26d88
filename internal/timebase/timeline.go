package timebase

import "math"

// Timeline supplies the current logical time for eligibility checks.
type Timeline interface {
	Now() Time
}

// SteppedTimeline is a timeline that advances in fixed increments, one per
// coordination cycle. It is owned and advanced by a single goroutine.
type SteppedTimeline struct {
	now  Time
	step Time
}

// NewSteppedTimeline returns a timeline positioned at start that advances
// by step. A non-positive step is treated as a step of 1 so Advance always
// makes progress.
func NewSteppedTimeline(start, step Time) *SteppedTimeline {
	if step <= 0 {
		step = 1
	}
	return &SteppedTimeline{now: start, step: step}
}

// Now returns the current logical time.
func (tl *SteppedTimeline) Now() Time {
	return tl.now
}

// Step returns the increment applied by Advance.
func (tl *SteppedTimeline) Step() Time {
	return tl.step
}

// Advance moves the timeline forward one step and returns the new time.
// The timeline saturates at the maximum representable time instead of
// wrapping.
func (tl *SteppedTimeline) Advance() Time {
	if tl.now > Time(math.MaxInt64)-tl.step {
		tl.now = Time(math.MaxInt64)
	} else {
		tl.now += tl.step
	}
	return tl.now
}

// Seek repositions the timeline, used when resuming from a checkpoint.
func (tl *SteppedTimeline) Seek(t Time) {
	tl.now = t
}
