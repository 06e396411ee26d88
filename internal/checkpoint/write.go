package checkpoint

import (
	"context"
	"fmt"
	"time"

	"github.com/fedsync/fedsync/internal/syncpoint"
)

// Run identifies one federate execution in the checkpoint database.
type Run struct {
	RunID      string
	Federation string
	Federate   string
}

// CreateRun records a run's identity.
// Uses ON CONFLICT(run_id) DO NOTHING for idempotency - a federate that
// resumes an existing run calls this unconditionally and the original
// row wins.
func (s *Store) CreateRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(run_id, federation, federate)
		VALUES (?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING
	`,
		run.RunID,
		run.Federation,
		run.Federate,
	)
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

// SaveSnapshot writes the ordered point records of one checkpointed cycle.
// Returns whether a new snapshot was stored.
//
// Uses ON CONFLICT(run_id, seq) DO NOTHING for idempotency: if the cycle
// was already checkpointed the original rows win and inserted=false is
// returned. The snapshot header and its point rows are written in one
// transaction so a crash never leaves a header without points.
//
// Note: The run referenced by runID must exist (foreign key constraint).
func (s *Store) SaveSnapshot(ctx context.Context, runID string, seq int64, records []syncpoint.Record) (inserted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("save snapshot: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	// Try to insert the header (claims the cycle atomically via the
	// primary key)
	result, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots
		(run_id, seq, taken_at)
		VALUES (?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		runID,
		seq,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return false, fmt.Errorf("save snapshot: insert header: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("save snapshot: rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Cycle already checkpointed - nothing more to do
		if err := tx.Commit(); err != nil {
			return false, fmt.Errorf("save snapshot: commit (existing): %w", err)
		}
		return false, nil
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshot_points
		(run_id, seq, position, label, state, action_time)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return false, fmt.Errorf("save snapshot: prepare points: %w", err)
	}
	defer stmt.Close()

	for i, rec := range records {
		if _, err := stmt.ExecContext(ctx, runID, seq, i, rec.Label, rec.State, rec.At); err != nil {
			return false, fmt.Errorf("save snapshot: insert point %q: %w", rec.Label, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("save snapshot: commit: %w", err)
	}

	return true, nil
}

// CheckpointFunc adapts the store to the federate executive's checkpoint
// hook for one run. The returned function saves each offered cycle under
// the given run ID, discarding the already-stored indicator.
func (s *Store) CheckpointFunc(runID string) func(ctx context.Context, seq int64, records []syncpoint.Record) error {
	return func(ctx context.Context, seq int64, records []syncpoint.Record) error {
		_, err := s.SaveSnapshot(ctx, runID, seq, records)
		return err
	}
}
