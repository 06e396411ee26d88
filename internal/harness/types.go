package harness

// TraceEvent records one gateway call a federate made during the script.
// Cycle and Time are the federate's own clock readings at the moment of
// the call, so a scheduled point's achieve event shows the cycle that
// made it due.
type TraceEvent struct {
	Event    string `json:"event"` // "register" or "achieve"
	Federate string `json:"federate"`
	Cycle    int64  `json:"cycle"`
	Time     int64  `json:"time"`
	Label    string `json:"label"`
	At       *int64 `json:"at,omitempty"`
}

// FinalPoint is one point's state at the end of the script, in base
// time units. At is omitted for unscheduled points.
type FinalPoint struct {
	Label string `json:"label"`
	State string `json:"state"`
	At    *int64 `json:"at,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	// True if every assertion held.
	Pass bool `json:"pass"`

	// Trace contains every register and achieve event in execution
	// order. Used by trace assertions and golden comparison.
	Trace []TraceEvent `json:"trace"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Final holds each federate's point list at the end of the script,
	// in insertion order, keyed by federate name.
	Final map[string][]FinalPoint `json:"final"`
}

// NewResult creates a new passing result.
// Used as the starting point for scenario execution.
func NewResult() *Result {
	return &Result{
		Pass:  true,
		Trace: []TraceEvent{},
		Final: make(map[string][]FinalPoint),
	}
}

// AddError adds an assertion failure and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddRegisterTrace adds a register event to the trace.
func (r *Result) AddRegisterTrace(federate string, cycle int64, now int64, label string, at *int64) {
	r.Trace = append(r.Trace, TraceEvent{
		Event:    "register",
		Federate: federate,
		Cycle:    cycle,
		Time:     now,
		Label:    label,
		At:       at,
	})
}

// AddAchieveTrace adds an achieve event to the trace.
func (r *Result) AddAchieveTrace(federate string, cycle int64, now int64, label string) {
	r.Trace = append(r.Trace, TraceEvent{
		Event:    "achieve",
		Federate: federate,
		Cycle:    cycle,
		Time:     now,
		Label:    label,
	})
}
