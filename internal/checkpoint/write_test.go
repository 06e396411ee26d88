package checkpoint

import (
	"context"
	"reflect"
	"testing"

	"github.com/fedsync/fedsync/internal/syncpoint"
)

func TestCreateRun_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run := createTestRun("run-1")
	if err := s.CreateRun(ctx, run); err != nil {
		t.Fatalf("first CreateRun() failed: %v", err)
	}

	// Re-creating with different metadata is silently ignored - the
	// original row wins
	altered := Run{RunID: "run-1", Federation: "other", Federate: "other"}
	if err := s.CreateRun(ctx, altered); err != nil {
		t.Fatalf("second CreateRun() failed: %v", err)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun() failed: %v", err)
	}
	if got != run {
		t.Errorf("GetRun() = %+v, expected original %+v", got, run)
	}
}

func TestSaveSnapshot_StoresRecords(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.CreateRun(ctx, createTestRun("run-1")); err != nil {
		t.Fatalf("CreateRun() failed: %v", err)
	}

	records := sampleRecords()
	inserted, err := s.SaveSnapshot(ctx, "run-1", 10, records)
	if err != nil {
		t.Fatalf("SaveSnapshot() failed: %v", err)
	}
	if !inserted {
		t.Error("expected inserted=true for new snapshot")
	}

	got, err := s.LoadSnapshot(ctx, "run-1", 10)
	if err != nil {
		t.Fatalf("LoadSnapshot() failed: %v", err)
	}
	if !reflect.DeepEqual(got, records) {
		t.Errorf("loaded records = %+v, expected %+v", got, records)
	}
}

func TestSaveSnapshot_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.CreateRun(ctx, createTestRun("run-1")); err != nil {
		t.Fatalf("CreateRun() failed: %v", err)
	}

	original := sampleRecords()
	if _, err := s.SaveSnapshot(ctx, "run-1", 10, original); err != nil {
		t.Fatalf("first SaveSnapshot() failed: %v", err)
	}

	// Re-saving the same cycle with different content is silently
	// ignored - the original rows win
	diverged := []syncpoint.Record{
		{Label: "startup", State: int(syncpoint.StateError), At: 0},
	}
	inserted, err := s.SaveSnapshot(ctx, "run-1", 10, diverged)
	if err != nil {
		t.Fatalf("second SaveSnapshot() failed: %v", err)
	}
	if inserted {
		t.Error("expected inserted=false for already-stored cycle")
	}

	got, err := s.LoadSnapshot(ctx, "run-1", 10)
	if err != nil {
		t.Fatalf("LoadSnapshot() failed: %v", err)
	}
	if !reflect.DeepEqual(got, original) {
		t.Errorf("loaded records = %+v, expected original %+v", got, original)
	}
}

func TestSaveSnapshot_RequiresRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	// No run row - foreign key should reject the snapshot
	_, err := s.SaveSnapshot(ctx, "missing-run", 1, sampleRecords())
	if err == nil {
		t.Error("expected foreign key error for missing run, got nil")
	}
}

func TestSaveSnapshot_EmptyList(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.CreateRun(ctx, createTestRun("run-1")); err != nil {
		t.Fatalf("CreateRun() failed: %v", err)
	}

	// A federate with no points still checkpoints; the snapshot header
	// exists with zero point rows
	inserted, err := s.SaveSnapshot(ctx, "run-1", 1, nil)
	if err != nil {
		t.Fatalf("SaveSnapshot() failed: %v", err)
	}
	if !inserted {
		t.Error("expected inserted=true for empty snapshot")
	}

	got, err := s.LoadSnapshot(ctx, "run-1", 1)
	if err != nil {
		t.Fatalf("LoadSnapshot() failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected zero records, got %d", len(got))
	}
}

func TestCheckpointFunc_SavesUnderRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	if err := s.CreateRun(ctx, createTestRun("run-1")); err != nil {
		t.Fatalf("CreateRun() failed: %v", err)
	}

	fn := s.CheckpointFunc("run-1")
	if err := fn(ctx, 3, sampleRecords()); err != nil {
		t.Fatalf("checkpoint func failed: %v", err)
	}
	// Re-offering the same cycle is a no-op, not an error
	if err := fn(ctx, 3, sampleRecords()); err != nil {
		t.Fatalf("repeat checkpoint func failed: %v", err)
	}

	seq, err := s.LatestSeq(ctx, "run-1")
	if err != nil {
		t.Fatalf("LatestSeq() failed: %v", err)
	}
	if seq != 3 {
		t.Errorf("LatestSeq() = %d, expected 3", seq)
	}
}
