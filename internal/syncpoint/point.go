package syncpoint

import (
	"fmt"

	"github.com/fedsync/fedsync/internal/timebase"
)

// Point is one synchronization point: an immutable label, a mutable
// lifecycle state, and an optional target time. All transitions are driven
// by the owning List.
type Point struct {
	// Label identifies the barrier federation-wide. Unique within a list.
	Label string

	// State is the current lifecycle state.
	State State

	// At is the target logical time, or timebase.Unscheduled when the
	// point has none. An unscheduled point is due as soon as it is
	// announced.
	At timebase.Time
}

// Due reports whether the point's target time has been reached.
func (p *Point) Due(check timebase.Time) bool {
	return p.At.DueAt(check)
}

// String renders the point for logs: label, state, and target time.
func (p *Point) String() string {
	return fmt.Sprintf("%s [%s] at=%s", p.Label, p.State, p.At)
}
