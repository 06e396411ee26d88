package harness

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestGoldenScenarios runs every shipped scenario against its golden
// file. Regenerate with: go test ./internal/harness -update
func TestGoldenScenarios(t *testing.T) {
	scenarios, err := LoadScenarioDir(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, scenario := range scenarios {
		t.Run(scenario.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, scenario)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestSnapshotBytes_Deterministic(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "startup_rendezvous.yaml"))
	require.NoError(t, err)

	first, err := Run(scenario)
	require.NoError(t, err)
	second, err := Run(scenario)
	require.NoError(t, err)

	a, err := SnapshotBytes(scenario, first)
	require.NoError(t, err)
	b, err := SnapshotBytes(scenario, second)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.True(t, bytes.HasSuffix(a, []byte("\n")), "snapshot must end with a newline")
}

func TestSnapshotBytes_OmitsEmptyRunToken(t *testing.T) {
	result := NewResult()

	data, err := SnapshotBytes(&Scenario{Name: "no_token"}, result)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "run_token")

	data, err = SnapshotBytes(&Scenario{Name: "with_token", RunToken: "tok-1"}, result)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run_token": "tok-1"`)
}
