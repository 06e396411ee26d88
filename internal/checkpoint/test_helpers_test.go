package checkpoint

import (
	"path/filepath"
	"testing"

	"github.com/fedsync/fedsync/internal/syncpoint"
	"github.com/fedsync/fedsync/internal/timebase"
)

// createTestStore creates a new file-backed store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a test run identity row.
func createTestRun(id string) Run {
	return Run{
		RunID:      id,
		Federation: "orbit-sim",
		Federate:   "physics",
	}
}

// sampleRecords returns a fixed point sequence covering every field shape:
// labels out of alphabetical order, an unscheduled action time, and mixed
// states.
func sampleRecords() []syncpoint.Record {
	return []syncpoint.Record{
		{Label: "startup", State: int(syncpoint.StateSynchronized), At: int64(timebase.Unscheduled)},
		{Label: "cp_one", State: int(syncpoint.StateAchieved), At: 1_000_000},
		{Label: "cp_two", State: int(syncpoint.StateAnnounced), At: 2_000_000},
		{Label: "adhoc", State: int(syncpoint.StateUnregistered), At: int64(timebase.Unscheduled)},
	}
}
