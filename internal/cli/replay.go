package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fedsync/fedsync/internal/checkpoint"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunID    string
}

// ReplayRunResult is the verification outcome for one run.
type ReplayRunResult struct {
	RunID         string   `json:"run_id"`
	Snapshots     int      `json:"snapshots"`
	Violations    []string `json:"violations,omitempty"`
	Monotonic     bool     `json:"monotonic"`
	Deterministic bool     `json:"deterministic"`
}

// ReplayResult aggregates verification across runs.
type ReplayResult struct {
	Runs          []ReplayRunResult `json:"runs"`
	TotalRuns     int               `json:"total_runs"`
	AllConsistent bool              `json:"all_consistent"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Verify checkpointed run histories",
		Long: `Verify the recorded history of checkpointed runs.

Two checks per run: point states never move backward across the
snapshot sequence, and re-reading a snapshot yields identical records.
A violation in either means the database was written by diverging
executions or corrupted after the fact.

Exit codes:
  0 - all runs consistent
  1 - at least one violation
  2 - command error (bad database, unknown run)`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite checkpoint database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID to verify (default: all runs)")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := checkpoint.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	runIDs, err := replayRunIDs(ctx, st, opts.RunID)
	if err != nil {
		return err
	}

	result := ReplayResult{
		Runs:          make([]ReplayRunResult, 0, len(runIDs)),
		TotalRuns:     len(runIDs),
		AllConsistent: true,
	}
	for _, runID := range runIDs {
		runResult, err := verifyRun(ctx, st, runID)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to verify run %s", runID), err)
		}
		if !runResult.Monotonic || !runResult.Deterministic {
			result.AllConsistent = false
		}
		result.Runs = append(result.Runs, runResult)
	}

	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}
	return outputReplayText(cmd, result)
}

// replayRunIDs resolves the set of runs to verify.
func replayRunIDs(ctx context.Context, st *checkpoint.Store, runID string) ([]string, error) {
	if runID != "" {
		if _, err := st.GetRun(ctx, runID); err != nil {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", runID))
		}
		return []string{runID}, nil
	}

	runs, err := st.ListRuns(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to list runs", err)
	}
	ids := make([]string, 0, len(runs))
	for _, run := range runs {
		ids = append(ids, run.RunID)
	}
	return ids, nil
}

// verifyRun runs both checks against one run's history.
func verifyRun(ctx context.Context, st *checkpoint.Store, runID string) (ReplayRunResult, error) {
	result := ReplayRunResult{RunID: runID, Monotonic: true, Deterministic: true}

	violations, err := st.VerifyRun(ctx, runID)
	if err != nil {
		return result, err
	}
	for _, v := range violations {
		result.Violations = append(result.Violations, v.String())
	}
	result.Monotonic = len(violations) == 0

	infos, err := st.ListSnapshots(ctx, runID)
	if err != nil {
		return result, err
	}
	result.Snapshots = len(infos)

	// Reading a snapshot twice must yield identical records. A mismatch
	// means a concurrent writer or unstable read ordering.
	for _, info := range infos {
		first, err := st.LoadSnapshot(ctx, runID, info.Seq)
		if err != nil {
			return result, err
		}
		second, err := st.LoadSnapshot(ctx, runID, info.Seq)
		if err != nil {
			return result, err
		}
		if len(first) != len(second) {
			result.Deterministic = false
			result.Violations = append(result.Violations,
				fmt.Sprintf("snapshot seq %d read %d points then %d points", info.Seq, len(first), len(second)))
			continue
		}
		for i := range first {
			if first[i] != second[i] {
				result.Deterministic = false
				result.Violations = append(result.Violations,
					fmt.Sprintf("snapshot seq %d position %d differs between reads", info.Seq, i))
				break
			}
		}
	}

	return result, nil
}

func outputReplayText(cmd *cobra.Command, result ReplayResult) error {
	w := cmd.OutOrStdout()

	if result.TotalRuns == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return nil
	}

	fmt.Fprintf(w, "Replay Summary: %d run(s)\n\n", result.TotalRuns)
	for _, run := range result.Runs {
		if run.Monotonic && run.Deterministic {
			fmt.Fprintf(w, "✓ %s (%d snapshots)\n", run.RunID, run.Snapshots)
			continue
		}
		fmt.Fprintf(w, "✗ %s (%d snapshots)\n", run.RunID, run.Snapshots)
		for _, v := range run.Violations {
			fmt.Fprintf(w, "    %s\n", v)
		}
	}
	fmt.Fprintln(w)

	if result.AllConsistent {
		fmt.Fprintln(w, "✓ All runs verified consistent")
		return nil
	}
	fmt.Fprintln(w, "✗ Replay verification failed")
	return NewExitError(ExitFailure, "replay verification failed")
}

func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}
	if !result.AllConsistent {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_REPLAY",
			Message: "replay verification failed",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.AllConsistent {
		return NewExitError(ExitFailure, "replay verification failed")
	}
	return nil
}
