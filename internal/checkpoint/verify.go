package checkpoint

import (
	"context"
	"fmt"

	"github.com/fedsync/fedsync/internal/syncpoint"
)

// Violation describes one state regression found by VerifyRun.
type Violation struct {
	Label     string
	FromSeq   int64
	FromState int
	ToSeq     int64
	ToState   int
}

func (v Violation) String() string {
	return fmt.Sprintf("point %q regressed from %s at seq %d to %s at seq %d",
		v.Label, syncpoint.State(v.FromState), v.FromSeq,
		syncpoint.State(v.ToState), v.ToSeq)
}

// VerifyRun checks that no point's state moves backward across a run's
// snapshot sequence. Point states only advance, so a regression between
// two snapshots of the same run means the recorded history is corrupt or
// was written by two diverging executions.
//
// Returns all violations found, ordered by label then seq. An empty
// slice means the run's history is consistent.
func (s *Store) VerifyRun(ctx context.Context, runID string) ([]Violation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT label, seq, state
		FROM snapshot_points
		WHERE run_id = ?
		ORDER BY label COLLATE BINARY ASC, seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run history: %w", err)
	}
	defer rows.Close()

	violations := []Violation{}
	var (
		prevLabel string
		prevSeq   int64
		prevState int
		havePrev  bool
	)

	for rows.Next() {
		var (
			label string
			seq   int64
			state int
		)
		if err := rows.Scan(&label, &seq, &state); err != nil {
			return nil, fmt.Errorf("scan run history: %w", err)
		}

		if havePrev && label == prevLabel && state < prevState {
			violations = append(violations, Violation{
				Label:     label,
				FromSeq:   prevSeq,
				FromState: prevState,
				ToSeq:     seq,
				ToState:   state,
			})
		}

		prevLabel, prevSeq, prevState = label, seq, state
		havePrev = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run history: %w", err)
	}

	return violations, nil
}
