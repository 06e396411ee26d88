package harness

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario writes scenario YAML to a temp file and returns its path.
func writeScenario(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadScenario_ValidFile(t *testing.T) {
	content := `
name: test_scenario
description: "Scenario for loader validation"
federation:
  name: test-fed
  resolution: milliseconds
  step_seconds: 0.5
federates:
  - physics
  - visuals
schedule:
  - label: checkpoint_1
    at_seconds: 2.5
script:
  - op: register
    federate: physics
    label: checkpoint_1
  - op: step_all
    cycles: 6
assertions:
  - type: point_state
    federate: physics
    label: checkpoint_1
    state: SYNCHRONIZED
run_token: loader-test-001
`
	scenario, err := LoadScenario(writeScenario(t, content))
	require.NoError(t, err)

	assert.Equal(t, "test_scenario", scenario.Name)
	assert.Equal(t, "Scenario for loader validation", scenario.Description)
	assert.Equal(t, "test-fed", scenario.Federation.Name)
	assert.Equal(t, "milliseconds", scenario.Federation.Resolution)
	assert.Equal(t, 0.5, scenario.Federation.Step)
	assert.Equal(t, []string{"physics", "visuals"}, scenario.Federates)
	require.Len(t, scenario.Schedule, 1)
	require.NotNil(t, scenario.Schedule[0].At)
	assert.Equal(t, 2.5, *scenario.Schedule[0].At)
	require.Len(t, scenario.Script, 2)
	assert.Equal(t, OpRegister, scenario.Script[0].Op)
	assert.Equal(t, OpStepAll, scenario.Script[1].Op)
	assert.Equal(t, 6, scenario.Script[1].Cycles)
	require.Len(t, scenario.Assertions, 1)
	assert.Equal(t, AssertPointState, scenario.Assertions[0].Type)
	assert.Equal(t, "loader-test-001", scenario.RunToken)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario("/nonexistent/scenario.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_MissingName(t *testing.T) {
	content := `
description: "Missing name"
federation:
  name: test-fed
  step_seconds: 0.5
federates:
  - physics
script:
  - op: step
    federate: physics
assertions:
  - type: all_synchronized
    federate: physics
`
	_, err := LoadScenario(writeScenario(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
}

func TestLoadScenario_MissingDescription(t *testing.T) {
	content := `
name: test
federation:
  name: test-fed
  step_seconds: 0.5
federates:
  - physics
script:
  - op: step
    federate: physics
assertions:
  - type: all_synchronized
    federate: physics
`
	_, err := LoadScenario(writeScenario(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "description is required")
}

func TestLoadScenario_MissingFederationName(t *testing.T) {
	content := `
name: test
description: "Test"
federation:
  step_seconds: 0.5
federates:
  - physics
script:
  - op: step
    federate: physics
assertions:
  - type: all_synchronized
    federate: physics
`
	_, err := LoadScenario(writeScenario(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "federation.name is required")
}

func TestLoadScenario_NonPositiveStep(t *testing.T) {
	content := `
name: test
description: "Test"
federation:
  name: test-fed
  step_seconds: 0
federates:
  - physics
script:
  - op: step
    federate: physics
assertions:
  - type: all_synchronized
    federate: physics
`
	_, err := LoadScenario(writeScenario(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step_seconds must be positive")
}

func TestLoadScenario_UnknownResolution(t *testing.T) {
	content := `
name: test
description: "Test"
federation:
  name: test-fed
  resolution: fortnights
  step_seconds: 0.5
federates:
  - physics
script:
  - op: step
    federate: physics
assertions:
  - type: all_synchronized
    federate: physics
`
	_, err := LoadScenario(writeScenario(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "federation.resolution")
}

func TestLoadScenario_MissingFederates(t *testing.T) {
	content := `
name: test
description: "Test"
federation:
  name: test-fed
  step_seconds: 0.5
federates: []
script:
  - op: step_all
assertions:
  - type: all_synchronized
    federate: physics
`
	_, err := LoadScenario(writeScenario(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "federates list is required")
}

func TestLoadScenario_DuplicateFederate(t *testing.T) {
	content := `
name: test
description: "Test"
federation:
  name: test-fed
  step_seconds: 0.5
federates:
  - physics
  - physics
script:
  - op: step_all
assertions:
  - type: all_synchronized
    federate: physics
`
	_, err := LoadScenario(writeScenario(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate federate "physics"`)
}

func TestLoadScenario_MissingScript(t *testing.T) {
	content := `
name: test
description: "Test"
federation:
  name: test-fed
  step_seconds: 0.5
federates:
  - physics
script: []
assertions:
  - type: all_synchronized
    federate: physics
`
	_, err := LoadScenario(writeScenario(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "script list is required")
}

func TestLoadScenario_MissingAssertions(t *testing.T) {
	content := `
name: test
description: "Test"
federation:
  name: test-fed
  step_seconds: 0.5
federates:
  - physics
script:
  - op: step
    federate: physics
assertions: []
`
	_, err := LoadScenario(writeScenario(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assertions list is required")
}

func TestLoadScenario_MalformedYAML(t *testing.T) {
	content := `
name: test
  description: bad indentation
`
	_, err := LoadScenario(writeScenario(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_UnknownFieldsRejected(t *testing.T) {
	// "assertion:" instead of "assertions:" must fail loudly, not load
	// a scenario with zero assertions.
	content := `
name: test
description: "Test"
federation:
  name: test-fed
  step_seconds: 0.5
federates:
  - physics
script:
  - op: step
    federate: physics
assertion:
  - type: all_synchronized
    federate: physics
`
	_, err := LoadScenario(writeScenario(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_UnknownOp(t *testing.T) {
	content := `
name: test
description: "Test"
federation:
  name: test-fed
  step_seconds: 0.5
federates:
  - physics
script:
  - op: teleport
    federate: physics
assertions:
  - type: all_synchronized
    federate: physics
`
	_, err := LoadScenario(writeScenario(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown op "teleport"`)
}

func TestLoadScenario_StepFederateNotDeclared(t *testing.T) {
	content := `
name: test
description: "Test"
federation:
  name: test-fed
  step_seconds: 0.5
federates:
  - physics
script:
  - op: step
    federate: ghost
assertions:
  - type: all_synchronized
    federate: physics
`
	_, err := LoadScenario(writeScenario(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `federate "ghost" is not in the federates list`)
}

func TestLoadScenario_RegisterMissingLabel(t *testing.T) {
	content := `
name: test
description: "Test"
federation:
  name: test-fed
  step_seconds: 0.5
federates:
  - physics
script:
  - op: register
    federate: physics
assertions:
  - type: all_synchronized
    federate: physics
`
	_, err := LoadScenario(writeScenario(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "label is required for register")
}

func TestLoadScenario_NegativeCycles(t *testing.T) {
	content := `
name: test
description: "Test"
federation:
  name: test-fed
  step_seconds: 0.5
federates:
  - physics
script:
  - op: step
    federate: physics
    cycles: -1
assertions:
  - type: all_synchronized
    federate: physics
`
	_, err := LoadScenario(writeScenario(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cycles must not be negative")
}

func TestLoadScenario_NegativeActionTime(t *testing.T) {
	content := `
name: test
description: "Test"
federation:
  name: test-fed
  step_seconds: 0.5
federates:
  - physics
schedule:
  - label: checkpoint_1
    at_seconds: -2.5
script:
  - op: step
    federate: physics
assertions:
  - type: all_synchronized
    federate: physics
`
	_, err := LoadScenario(writeScenario(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at_seconds must not be negative")
}

func TestLoadScenario_DuplicateScheduleLabel(t *testing.T) {
	content := `
name: test
description: "Test"
federation:
  name: test-fed
  step_seconds: 0.5
federates:
  - physics
schedule:
  - label: checkpoint_1
  - label: checkpoint_1
script:
  - op: step
    federate: physics
assertions:
  - type: all_synchronized
    federate: physics
`
	_, err := LoadScenario(writeScenario(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `duplicate label "checkpoint_1"`)
}

func TestLoadScenario_UnknownAssertionType(t *testing.T) {
	content := `
name: test
description: "Test"
federation:
  name: test-fed
  step_seconds: 0.5
federates:
  - physics
script:
  - op: step
    federate: physics
assertions:
  - type: telepathy
    federate: physics
`
	_, err := LoadScenario(writeScenario(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown assertion type "telepathy"`)
}

func TestLoadScenario_PointStateUnknownState(t *testing.T) {
	content := `
name: test
description: "Test"
federation:
  name: test-fed
  step_seconds: 0.5
federates:
  - physics
script:
  - op: step
    federate: physics
assertions:
  - type: point_state
    federate: physics
    label: checkpoint_1
    state: NIRVANA
`
	_, err := LoadScenario(writeScenario(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown state "NIRVANA"`)
}

func TestLoadScenario_PointStateLowercaseAccepted(t *testing.T) {
	content := `
name: test
description: "Test"
federation:
  name: test-fed
  step_seconds: 0.5
federates:
  - physics
script:
  - op: step
    federate: physics
assertions:
  - type: point_state
    federate: physics
    label: checkpoint_1
    state: synchronized
`
	_, err := LoadScenario(writeScenario(t, content))
	require.NoError(t, err)
}

func TestLoadScenario_AchieveCountZeroAllowed(t *testing.T) {
	content := `
name: test
description: "Test"
federation:
  name: test-fed
  step_seconds: 0.5
federates:
  - physics
script:
  - op: step
    federate: physics
assertions:
  - type: achieve_count
    federate: physics
    label: checkpoint_1
    count: 0
`
	scenario, err := LoadScenario(writeScenario(t, content))
	require.NoError(t, err)
	assert.Equal(t, 0, scenario.Assertions[0].Count)
}

func TestLoadScenario_AssertionFederateNotDeclared(t *testing.T) {
	content := `
name: test
description: "Test"
federation:
  name: test-fed
  step_seconds: 0.5
federates:
  - physics
script:
  - op: step
    federate: physics
assertions:
  - type: all_synchronized
    federate: ghost
`
	_, err := LoadScenario(writeScenario(t, content))
	require.Error(t, err)
	assert.Contains(t, err.Error(), `federate "ghost" is not in the federates list`)
}

func TestAssertionConstants(t *testing.T) {
	assert.Equal(t, "point_state", AssertPointState)
	assert.Equal(t, "achieved_order", AssertAchievedOrder)
	assert.Equal(t, "achieve_count", AssertAchieveCount)
	assert.Equal(t, "all_synchronized", AssertAllSynchronized)
}

func TestLoadScenarioDir_SortedAndFiltered(t *testing.T) {
	dir := t.TempDir()
	valid := `
name: %s
description: "Test"
federation:
  name: test-fed
  step_seconds: 0.5
federates:
  - physics
script:
  - op: step
    federate: physics
assertions:
  - type: all_synchronized
    federate: physics
`
	write := func(file, name string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, file),
			[]byte(fmt.Sprintf(valid, name)), 0644))
	}
	write("b_second.yaml", "second")
	write("a_first.yaml", "first")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0644))

	scenarios, err := LoadScenarioDir(dir)
	require.NoError(t, err)
	require.Len(t, scenarios, 2)
	assert.Equal(t, "first", scenarios[0].Name)
	assert.Equal(t, "second", scenarios[1].Name)
}

func TestLoadScenarioDir_PropagatesLoadError(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: only-a-name"), 0644))

	_, err := LoadScenarioDir(dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.yaml")
}

func TestLoadScenarioDir_MissingDirectory(t *testing.T) {
	_, err := LoadScenarioDir("/nonexistent/scenarios")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario directory")
}

// TestLoadExampleScenarios loads every shipped scenario so a broken
// fixture fails here, not first in the golden tests.
func TestLoadExampleScenarios(t *testing.T) {
	scenarios, err := LoadScenarioDir(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	assert.NotEmpty(t, scenarios)

	seen := make(map[string]bool)
	for _, s := range scenarios {
		assert.False(t, seen[s.Name], "scenario names must be unique, got %q twice", s.Name)
		seen[s.Name] = true
	}
}
