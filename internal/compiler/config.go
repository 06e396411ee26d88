package compiler

import (
	"github.com/fedsync/fedsync/internal/timebase"
)

// Config is a compiled federation configuration: which federation to
// join, who this federate is, and the synchronization points it plans.
//
// Compiled values carry raw config units (seconds as float64, the
// resolution word as a string); Validate checks them and the conversion
// methods turn them into base-unit times. Keeping the raw form here means
// validation errors can echo exactly what the config said.
type Config struct {
	Federation Federation
	Federate   Federate
	Schedule   Schedule
}

// Federation describes the shared coordination parameters every member
// must agree on.
type Federation struct {
	Name        string
	Exchange    string  // ws:// or wss:// URL of the exchange
	Resolution  string  // base-unit word, e.g. "microseconds"
	StepSeconds float64 // logical seconds per cycle
	StopSeconds *float64
}

// Federate describes the local member.
type Federate struct {
	Name       string
	LateJoiner bool
}

// Schedule is the initial synchronization-point plan.
type Schedule struct {
	Init   []string // labels achieved inside the startup barrier
	Points []ScheduledPoint
}

// ScheduledPoint pairs a label with its optional target time.
type ScheduledPoint struct {
	Label     string
	AtSeconds *float64
}

// Timebase returns the parsed federation resolution.
// Unknown resolution words are reported by Validate as E104.
func (f Federation) Timebase() (timebase.Resolution, error) {
	return timebase.ParseResolution(f.Resolution)
}

// StepTime converts the cycle step to base units at the given resolution.
func (f Federation) StepTime(res timebase.Resolution) timebase.Time {
	return res.FromSeconds(f.StepSeconds)
}

// StopTime converts the stop time to base units, or Unscheduled when the
// run is open-ended.
func (f Federation) StopTime(res timebase.Resolution) timebase.Time {
	if f.StopSeconds == nil {
		return timebase.Unscheduled
	}
	return res.FromSeconds(*f.StopSeconds)
}

// ActionTime converts the point's target time to base units, or
// Unscheduled when the point has none.
func (p ScheduledPoint) ActionTime(res timebase.Resolution) timebase.Time {
	if p.AtSeconds == nil {
		return timebase.Unscheduled
	}
	return res.FromSeconds(*p.AtSeconds)
}
