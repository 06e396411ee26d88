package syncpoint

import (
	"fmt"

	"github.com/fedsync/fedsync/internal/timebase"
)

// Record is the checkpoint form of one synchronization point.
//
// State is the stable ordinal from the State constants. At is the raw
// base-unit time; the timebase.Unscheduled sentinel is stored as-is, so a
// restored point keeps "no target time" rather than gaining a concrete
// one.
type Record struct {
	Label string `json:"label"`
	State int    `json:"state"`
	At    int64  `json:"at"`
}

// Snapshot flattens the list for the checkpoint writer: one record per
// point, in insertion order.
func (l *List) Snapshot() []Record {
	records := make([]Record, len(l.points))
	for i, p := range l.points {
		records[i] = Record{
			Label: p.Label,
			State: int(p.State),
			At:    int64(p.At),
		}
	}
	return records
}

// RestoreSnapshot replaces the list contents with the given records,
// reproducing the identical ordered sequence of points and states.
//
// The records are validated before anything is replaced; on error the
// list is left exactly as it was.
func (l *List) RestoreSnapshot(records []Record) error {
	points := make([]*Point, 0, len(records))
	index := make(map[string]int, len(records))

	for i, rec := range records {
		if rec.Label == "" {
			return NewBadSnapshotError(fmt.Sprintf("record %d: empty label", i))
		}
		if _, dup := index[rec.Label]; dup {
			return NewBadSnapshotError(fmt.Sprintf("record %d: duplicate label %q", i, rec.Label))
		}
		state := State(rec.State)
		if !state.Known() {
			return NewBadSnapshotError(fmt.Sprintf("record %d: unknown state ordinal %d", i, rec.State))
		}
		index[rec.Label] = len(points)
		points = append(points, &Point{
			Label: rec.Label,
			State: state,
			At:    timebase.Time(rec.At),
		})
	}

	l.points = points
	l.index = index
	return nil
}
