package syncpoint

import (
	"fmt"
	"io"
)

// Dump writes a diagnostic listing of every point in insertion order, one
// line per point. No side effects; the output is stable for a given list
// state, so operators can diff dumps taken across cycles to spot stuck or
// errored points.
func (l *List) Dump(w io.Writer) {
	fmt.Fprintf(w, "sync points: %d\n", len(l.points))
	for i, p := range l.points {
		fmt.Fprintf(w, "%3d. %-12s %s at=%s\n", i+1, p.State, p.Label, p.At)
	}
}

// Tally counts points per state. Used by status reporting and metrics.
func (l *List) Tally() map[State]int {
	tally := make(map[State]int)
	for _, p := range l.points {
		tally[p.State]++
	}
	return tally
}
