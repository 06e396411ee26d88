package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/fedsync/fedsync/internal/timebase"
)

// CompileConfig parses a CUE value into a Config.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the unified configuration root, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`federation: {...}
//	federate: {...}`)
//	cfg, err := CompileConfig(v)
//
// Compilation checks structure (required sections and value types);
// semantic rules are checked separately by Validate.
func CompileConfig(v cue.Value) (*Config, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	cfg := &Config{}

	// Parse federation (required)
	fedVal := v.LookupPath(cue.ParsePath("federation"))
	if !fedVal.Exists() {
		return nil, &CompileError{
			Field:   "federation",
			Message: "federation section is required",
			Pos:     v.Pos(),
		}
	}
	federation, err := parseFederation(fedVal)
	if err != nil {
		return nil, err
	}
	cfg.Federation = federation

	// Parse federate (required)
	memberVal := v.LookupPath(cue.ParsePath("federate"))
	if !memberVal.Exists() {
		return nil, &CompileError{
			Field:   "federate",
			Message: "federate section is required",
			Pos:     v.Pos(),
		}
	}
	member, err := parseFederate(memberVal)
	if err != nil {
		return nil, err
	}
	cfg.Federate = member

	// Parse schedule (optional) - a federate may join with no planned
	// points and adopt whatever the federation announces
	schedVal := v.LookupPath(cue.ParsePath("schedule"))
	if schedVal.Exists() {
		schedule, err := parseSchedule(schedVal)
		if err != nil {
			return nil, err
		}
		cfg.Schedule = schedule
	}

	return cfg, nil
}

// parseFederation extracts the shared coordination parameters.
func parseFederation(v cue.Value) (Federation, error) {
	var federation Federation

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return federation, &CompileError{
			Field:   "federation.name",
			Message: "federation name is required",
			Pos:     v.Pos(),
		}
	}
	name, err := nameVal.String()
	if err != nil {
		return federation, formatCUEError(err)
	}
	federation.Name = name

	exchangeVal := v.LookupPath(cue.ParsePath("exchange"))
	if !exchangeVal.Exists() {
		return federation, &CompileError{
			Field:   "federation.exchange",
			Message: "exchange URL is required",
			Pos:     v.Pos(),
		}
	}
	exchange, err := exchangeVal.String()
	if err != nil {
		return federation, formatCUEError(err)
	}
	federation.Exchange = exchange

	// Resolution defaults to the package default when omitted
	federation.Resolution = timebase.DefaultResolution.String()
	if resVal := v.LookupPath(cue.ParsePath("resolution")); resVal.Exists() {
		resolution, err := resVal.String()
		if err != nil {
			return federation, formatCUEError(err)
		}
		federation.Resolution = resolution
	}

	stepVal := v.LookupPath(cue.ParsePath("step"))
	if !stepVal.Exists() {
		return federation, &CompileError{
			Field:   "federation.step",
			Message: "cycle step is required",
			Pos:     v.Pos(),
		}
	}
	step, err := stepVal.Float64()
	if err != nil {
		return federation, formatCUEError(err)
	}
	federation.StepSeconds = step

	if stopVal := v.LookupPath(cue.ParsePath("stop")); stopVal.Exists() {
		stop, err := stopVal.Float64()
		if err != nil {
			return federation, formatCUEError(err)
		}
		federation.StopSeconds = &stop
	}

	return federation, nil
}

// parseFederate extracts the local member identity.
func parseFederate(v cue.Value) (Federate, error) {
	var member Federate

	nameVal := v.LookupPath(cue.ParsePath("name"))
	if !nameVal.Exists() {
		return member, &CompileError{
			Field:   "federate.name",
			Message: "federate name is required",
			Pos:     v.Pos(),
		}
	}
	name, err := nameVal.String()
	if err != nil {
		return member, formatCUEError(err)
	}
	member.Name = name

	if lateVal := v.LookupPath(cue.ParsePath("late_joiner")); lateVal.Exists() {
		late, err := lateVal.Bool()
		if err != nil {
			return member, formatCUEError(err)
		}
		member.LateJoiner = late
	}

	return member, nil
}

// parseSchedule extracts the synchronization-point plan.
func parseSchedule(v cue.Value) (Schedule, error) {
	var schedule Schedule

	if initVal := v.LookupPath(cue.ParsePath("init")); initVal.Exists() {
		iter, err := initVal.List()
		if err != nil {
			return schedule, formatCUEError(err)
		}
		for iter.Next() {
			label, err := iter.Value().String()
			if err != nil {
				return schedule, formatCUEError(err)
			}
			schedule.Init = append(schedule.Init, label)
		}
	}

	if pointsVal := v.LookupPath(cue.ParsePath("points")); pointsVal.Exists() {
		iter, err := pointsVal.List()
		if err != nil {
			return schedule, formatCUEError(err)
		}
		for iter.Next() {
			point, err := parseScheduledPoint(iter.Value())
			if err != nil {
				return schedule, err
			}
			schedule.Points = append(schedule.Points, point)
		}
	}

	return schedule, nil
}

// parseScheduledPoint parses one {label, at?} entry.
func parseScheduledPoint(v cue.Value) (ScheduledPoint, error) {
	var point ScheduledPoint

	labelVal := v.LookupPath(cue.ParsePath("label"))
	if !labelVal.Exists() {
		return point, &CompileError{
			Field:   "schedule.points.label",
			Message: "scheduled point label is required",
			Pos:     v.Pos(),
		}
	}
	label, err := labelVal.String()
	if err != nil {
		return point, formatCUEError(err)
	}
	point.Label = label

	if atVal := v.LookupPath(cue.ParsePath("at")); atVal.Exists() {
		at, err := atVal.Float64()
		if err != nil {
			return point, formatCUEError(err)
		}
		point.AtSeconds = &at
	}

	return point, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
