package checkpoint

import (
	"context"
	"fmt"

	"github.com/fedsync/fedsync/internal/syncpoint"
)

// RestoreList loads a snapshot and rebuilds the point list it was taken
// from. The returned list reproduces the stored records exactly: same
// labels, same states, same action times, same insertion order.
//
// List options (announce policy and the like) are not part of the
// snapshot; pass the same options the original list was built with.
func (s *Store) RestoreList(ctx context.Context, runID string, seq int64, opts ...syncpoint.ListOption) (*syncpoint.List, error) {
	records, err := s.LoadSnapshot(ctx, runID, seq)
	if err != nil {
		return nil, fmt.Errorf("restore list: %w", err)
	}

	list := syncpoint.NewList(opts...)
	if err := list.RestoreSnapshot(records); err != nil {
		return nil, fmt.Errorf("restore list: %w", err)
	}

	return list, nil
}
