package checkpoint

import (
	"context"
	"fmt"

	"github.com/fedsync/fedsync/internal/syncpoint"
)

// SnapshotInfo describes one stored snapshot without its point rows.
type SnapshotInfo struct {
	RunID   string
	Seq     int64
	TakenAt string
	Points  int
}

// GetRun retrieves a run's identity by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetRun(ctx context.Context, runID string) (Run, error) {
	var run Run
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, federation, federate
		FROM runs
		WHERE run_id = ?
	`, runID).Scan(&run.RunID, &run.Federation, &run.Federate)
	if err != nil {
		return Run{}, err
	}
	return run, nil
}

// ListRuns returns all recorded runs with deterministic ordering.
// Results ordered by run_id ASC COLLATE BINARY.
//
// Returns an empty slice (not nil) if the database holds no runs.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, federation, federate
		FROM runs
		ORDER BY run_id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.RunID, &run.Federation, &run.Federate); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}

	if runs == nil {
		runs = []Run{}
	}

	return runs, nil
}

// ListSnapshots returns the snapshot headers of a run with deterministic
// ordering. Results ordered by seq ASC; the point count is included so
// callers can summarize a run without loading every snapshot.
//
// Returns an empty slice (not nil) if the run has no snapshots.
func (s *Store) ListSnapshots(ctx context.Context, runID string) ([]SnapshotInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.run_id, s.seq, s.taken_at, COUNT(p.position)
		FROM snapshots s
		LEFT JOIN snapshot_points p ON p.run_id = s.run_id AND p.seq = s.seq
		WHERE s.run_id = ?
		GROUP BY s.run_id, s.seq
		ORDER BY s.seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var infos []SnapshotInfo
	for rows.Next() {
		var info SnapshotInfo
		if err := rows.Scan(&info.RunID, &info.Seq, &info.TakenAt, &info.Points); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		infos = append(infos, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}

	if infos == nil {
		infos = []SnapshotInfo{}
	}

	return infos, nil
}

// LatestSeq returns the highest checkpointed cycle of a run.
// Used on restart to resume from the most recent snapshot.
// Returns sql.ErrNoRows if the run has no snapshots.
func (s *Store) LatestSeq(ctx context.Context, runID string) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT seq FROM snapshots
		WHERE run_id = ?
		ORDER BY seq DESC
		LIMIT 1
	`, runID).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// LoadSnapshot returns the point records of one snapshot in stored
// position order, exactly as they were saved.
// Returns sql.ErrNoRows if the snapshot does not exist.
func (s *Store) LoadSnapshot(ctx context.Context, runID string, seq int64) ([]syncpoint.Record, error) {
	// Distinguish "snapshot absent" from "snapshot with zero points"
	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM snapshots WHERE run_id = ? AND seq = ?
	`, runID, seq).Scan(&one)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT label, state, action_time
		FROM snapshot_points
		WHERE run_id = ? AND seq = ?
		ORDER BY position ASC
	`, runID, seq)
	if err != nil {
		return nil, fmt.Errorf("query snapshot points: %w", err)
	}
	defer rows.Close()

	var records []syncpoint.Record
	for rows.Next() {
		var rec syncpoint.Record
		if err := rows.Scan(&rec.Label, &rec.State, &rec.At); err != nil {
			return nil, fmt.Errorf("scan snapshot point: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot points: %w", err)
	}

	if records == nil {
		records = []syncpoint.Record{}
	}

	return records, nil
}
