package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/fedsync/fedsync/internal/syncpoint"
	"github.com/fedsync/fedsync/internal/timebase"
)

// Scenario defines a conformance test scenario.
// Scenarios drive real federates against an in-process exchange through a
// scripted sequence of federation operations, then assert on the recorded
// trace and the final point states.
type Scenario struct {
	// Name uniquely identifies this scenario. It doubles as the golden
	// file name.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Federation configures the shared timebase and the exchange.
	Federation Federation `yaml:"federation"`

	// Federates lists the member names, in join order. Every federate
	// joins before the script starts.
	Federates []string `yaml:"federates"`

	// Schedule seeds each federate's point list before the script runs.
	// Seeded points stay Unregistered until a script step registers them.
	Schedule []SchedulePoint `yaml:"schedule,omitempty"`

	// Script contains the federation operations to execute, in order.
	// Supported ops: register, achieve, step, step_all, drain, resign.
	Script []ScriptStep `yaml:"script"`

	// Assertions validate the trace and final state.
	// Supported types: point_state, achieved_order, achieve_count,
	// all_synchronized.
	Assertions []Assertion `yaml:"assertions"`

	// RunToken is an optional fixed run token for deterministic tests.
	// If empty, the testutil default is used so golden comparison stays
	// byte-identical across runs.
	RunToken string `yaml:"run_token,omitempty"`
}

// Federation describes the federation every scenario federate joins.
type Federation struct {
	// Name is the federation name.
	Name string `yaml:"name"`

	// Resolution is the logical time resolution word ("milliseconds",
	// "us", ...). Empty selects the timebase default.
	Resolution string `yaml:"resolution,omitempty"`

	// Step is the per-cycle time step in seconds. Must be positive.
	Step float64 `yaml:"step_seconds"`
}

// SchedulePoint seeds one synchronization point in every federate's list.
type SchedulePoint struct {
	// Label names the point.
	Label string `yaml:"label"`

	// At is the action time in seconds. Nil seeds an unscheduled point.
	At *float64 `yaml:"at_seconds,omitempty"`
}

// ScriptStep is one federation operation in the scenario script.
type ScriptStep struct {
	// Op selects the operation:
	//   - "register": seed (if absent) and announce a point
	//   - "achieve": declare a point achieved regardless of its time
	//   - "step": run executive cycles on one federate
	//   - "step_all": run executive cycles on every federate in order
	//   - "drain": apply delivered federation traffic without stepping
	//   - "resign": leave the federation
	Op string `yaml:"op"`

	// Federate is the acting federate. Required for every op except
	// step_all.
	Federate string `yaml:"federate,omitempty"`

	// Label is the point label (register, achieve).
	Label string `yaml:"label,omitempty"`

	// At is the action time in seconds for register. Ignored when the
	// schedule already seeded the label.
	At *float64 `yaml:"at_seconds,omitempty"`

	// Cycles is how many executive cycles to run (step, step_all).
	// Zero means one.
	Cycles int `yaml:"cycles,omitempty"`
}

// Assertion validates the trace or the final point states.
type Assertion struct {
	// Type specifies the assertion type:
	// - "point_state": one point's final state at one federate
	// - "achieved_order": labels appear in this order among the
	//   federate's achieve events
	// - "achieve_count": the label reached the gateway exactly N times
	// - "all_synchronized": every non-errored point synchronized
	Type string `yaml:"type"`

	// Federate is the federate under assertion.
	Federate string `yaml:"federate"`

	// Label is the point label (point_state, achieve_count).
	Label string `yaml:"label,omitempty"`

	// State is the expected final state name (point_state).
	State string `yaml:"state,omitempty"`

	// Labels is the expected achievement order (achieved_order).
	Labels []string `yaml:"labels,omitempty"`

	// Count is the expected number of achieve events (achieve_count).
	Count int `yaml:"count,omitempty"`
}

// Script op constants.
const (
	OpRegister = "register"
	OpAchieve  = "achieve"
	OpStep     = "step"
	OpStepAll  = "step_all"
	OpDrain    = "drain"
	OpResign   = "resign"
)

// Assertion type constants.
const (
	AssertPointState      = "point_state"
	AssertAchievedOrder   = "achieved_order"
	AssertAchieveCount    = "achieve_count"
	AssertAllSynchronized = "all_synchronized"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "assertion:" vs
	// "assertions:".
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// LoadScenarioDir loads every scenario file in a directory, sorted by
// file name so the run order is stable. Files without a .yaml or .yml
// extension are ignored.
func LoadScenarioDir(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext == ".yaml" || ext == ".yml" {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)

	scenarios := make([]*Scenario, 0, len(paths))
	for _, path := range paths {
		s, err := LoadScenario(path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Federation.Name == "" {
		return fmt.Errorf("federation.name is required")
	}

	if s.Federation.Step <= 0 {
		return fmt.Errorf("federation.step_seconds must be positive, got %v", s.Federation.Step)
	}

	if s.Federation.Resolution != "" {
		if _, err := timebase.ParseResolution(s.Federation.Resolution); err != nil {
			return fmt.Errorf("federation.resolution: %w", err)
		}
	}

	if len(s.Federates) == 0 {
		return fmt.Errorf("federates list is required and must be non-empty")
	}

	members := make(map[string]bool, len(s.Federates))
	for i, name := range s.Federates {
		if name == "" {
			return fmt.Errorf("federates[%d]: name must not be empty", i)
		}
		if members[name] {
			return fmt.Errorf("federates[%d]: duplicate federate %q", i, name)
		}
		members[name] = true
	}

	seeded := make(map[string]bool, len(s.Schedule))
	for i, point := range s.Schedule {
		if point.Label == "" {
			return fmt.Errorf("schedule[%d]: label is required", i)
		}
		if seeded[point.Label] {
			return fmt.Errorf("schedule[%d]: duplicate label %q", i, point.Label)
		}
		seeded[point.Label] = true
		if point.At != nil && *point.At < 0 {
			return fmt.Errorf("schedule[%d]: at_seconds must not be negative, got %v", i, *point.At)
		}
	}

	if len(s.Script) == 0 {
		return fmt.Errorf("script list is required and must be non-empty")
	}

	for i, step := range s.Script {
		if err := validateStep(i, &step, members); err != nil {
			return err
		}
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, members); err != nil {
			return err
		}
	}

	return nil
}

// validateStep validates a single script step based on its op.
func validateStep(index int, step *ScriptStep, members map[string]bool) error {
	if step.Op == "" {
		return fmt.Errorf("script[%d]: op is required", index)
	}

	needsFederate := step.Op != OpStepAll
	if needsFederate {
		if step.Federate == "" {
			return fmt.Errorf("script[%d]: federate is required for %s", index, step.Op)
		}
		if !members[step.Federate] {
			return fmt.Errorf("script[%d]: federate %q is not in the federates list", index, step.Federate)
		}
	}

	switch step.Op {
	case OpRegister:
		if step.Label == "" {
			return fmt.Errorf("script[%d]: label is required for register", index)
		}
		if step.At != nil && *step.At < 0 {
			return fmt.Errorf("script[%d]: at_seconds must not be negative, got %v", index, *step.At)
		}
	case OpAchieve:
		if step.Label == "" {
			return fmt.Errorf("script[%d]: label is required for achieve", index)
		}
	case OpStep, OpStepAll:
		if step.Cycles < 0 {
			return fmt.Errorf("script[%d]: cycles must not be negative, got %d", index, step.Cycles)
		}
	case OpDrain, OpResign:
		// Federate checked above; nothing else to validate.
	default:
		return fmt.Errorf("script[%d]: unknown op %q", index, step.Op)
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, members map[string]bool) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	if a.Federate == "" {
		return fmt.Errorf("assertions[%d]: federate is required", index)
	}
	if !members[a.Federate] {
		return fmt.Errorf("assertions[%d]: federate %q is not in the federates list", index, a.Federate)
	}

	switch a.Type {
	case AssertPointState:
		if a.Label == "" {
			return fmt.Errorf("assertions[%d]: label is required for point_state", index)
		}
		if a.State == "" {
			return fmt.Errorf("assertions[%d]: state is required for point_state", index)
		}
		if !knownStateName(a.State) {
			return fmt.Errorf("assertions[%d]: unknown state %q", index, a.State)
		}
	case AssertAchievedOrder:
		if len(a.Labels) == 0 {
			return fmt.Errorf("assertions[%d]: labels list is required for achieved_order", index)
		}
	case AssertAchieveCount:
		if a.Label == "" {
			return fmt.Errorf("assertions[%d]: label is required for achieve_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for achieve_count", index)
		}
	case AssertAllSynchronized:
		// Federate checked above; nothing else to validate.
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	return nil
}

// knownStateName reports whether the name matches a lifecycle state,
// case-insensitively.
func knownStateName(name string) bool {
	for s := syncpoint.StateUnregistered; s <= syncpoint.StateError; s++ {
		if strings.EqualFold(s.String(), name) {
			return true
		}
	}
	return false
}
