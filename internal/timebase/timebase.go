// Package timebase provides the logical time model for federation runs.
//
// Logical time is an int64 count of base units (microseconds by default).
// All scheduling, eligibility checks, and checkpoint records use this
// representation; floating-point seconds appear only at configuration and
// display boundaries, converted through a Resolution.
//
// Key design constraints:
//   - Time is logical/scenario time, never wall-clock time
//   - One documented sentinel (Unscheduled) encodes "no target time"
//   - Conversions from seconds clamp rather than overflow
package timebase

import (
	"math"
	"strconv"
)

// Time is a logical time value counted in base units.
//
// The zero value is a valid time (the start of the scenario timeline),
// not an absence marker; see Unscheduled for the absence sentinel.
type Time int64

// Unscheduled is the sentinel for "no target time". A point carrying it is
// eligible as soon as it is announced. The value is stored as-is in
// checkpoint records, so the sentinel must never be produced by a seconds
// conversion; FromSeconds clamps to Unscheduled+1 instead.
const Unscheduled Time = math.MinInt64

// Scheduled reports whether t carries a concrete target time.
func (t Time) Scheduled() bool {
	return t != Unscheduled
}

// DueAt reports whether t is eligible at the given check time. An
// unscheduled time is always due.
func (t Time) DueAt(check Time) bool {
	return t == Unscheduled || t <= check
}

// String renders the raw base-unit count, or "unscheduled" for the
// sentinel. Use Resolution.Format for seconds-based display.
func (t Time) String() string {
	if t == Unscheduled {
		return "unscheduled"
	}
	return strconv.FormatInt(int64(t), 10)
}
