package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/fedsync/fedsync/internal/checkpoint"
	"github.com/fedsync/fedsync/internal/syncpoint"
	"github.com/fedsync/fedsync/internal/timebase"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Database string
	RunID    string
	Seq      int64
	Styled   bool
}

// RunSummary is one run row in the run listing.
type RunSummary struct {
	RunID      string `json:"run_id"`
	Federation string `json:"federation"`
	Federate   string `json:"federate"`
	Snapshots  int    `json:"snapshots"`
	LatestSeq  int64  `json:"latest_seq"`
}

// StatusPoint is one point row in the snapshot view.
type StatusPoint struct {
	Label string `json:"label"`
	State string `json:"state"`
	At    string `json:"at"`
}

// StatusResult is the snapshot view of one run.
type StatusResult struct {
	RunID      string         `json:"run_id"`
	Federation string         `json:"federation"`
	Federate   string         `json:"federate"`
	Seq        int64          `json:"seq"`
	TakenAt    string         `json:"taken_at,omitempty"`
	Points     []StatusPoint  `json:"points"`
	Tally      map[string]int `json:"tally,omitempty"`
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show checkpointed synchronization-point state",
		Long: `Show the synchronization-point state recorded in a checkpoint
database.

Without --run, lists every recorded run. With --run, shows the point
states of one snapshot: the latest by default, or the cycle given with
--seq. --styled renders panels and tables instead of plain text.

Examples:
  fedsync status --db ./physics.db
  fedsync status --db ./physics.db --run 0190-abc
  fedsync status --db ./physics.db --run 0190-abc --seq 42 --styled`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite checkpoint database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID to inspect")
	cmd.Flags().Int64Var(&opts.Seq, "seq", -1, "snapshot cycle to show (default: latest)")
	cmd.Flags().BoolVar(&opts.Styled, "styled", false, "render styled panels and tables")

	return cmd
}

func runStatus(opts *StatusOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	st, err := checkpoint.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.RunID == "" {
		return listRunsStatus(ctx, st, opts, cmd)
	}
	return showRunStatus(ctx, st, opts, cmd)
}

// listRunsStatus renders the run listing.
func listRunsStatus(ctx context.Context, st *checkpoint.Store, opts *StatusOptions, cmd *cobra.Command) error {
	runs, err := st.ListRuns(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	summaries := make([]RunSummary, 0, len(runs))
	for _, run := range runs {
		summary := RunSummary{
			RunID:      run.RunID,
			Federation: run.Federation,
			Federate:   run.Federate,
		}
		infos, err := st.ListSnapshots(ctx, run.RunID)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to list snapshots for run %s", run.RunID), err)
		}
		summary.Snapshots = len(infos)
		if len(infos) > 0 {
			summary.LatestSeq = infos[len(infos)-1].Seq
		}
		summaries = append(summaries, summary)
	}

	if opts.Format == "json" {
		return outputStatusJSON(cmd, summaries)
	}

	w := cmd.OutOrStdout()
	if len(summaries) == 0 {
		fmt.Fprintln(w, "No runs found in database.")
		return nil
	}

	if opts.Styled {
		fmt.Fprintln(w, styledRunList(summaries))
		return nil
	}

	fmt.Fprintf(w, "runs: %d\n", len(summaries))
	for _, s := range summaries {
		fmt.Fprintf(w, "  %s  %s/%s  snapshots=%d latest_seq=%d\n",
			s.RunID, s.Federation, s.Federate, s.Snapshots, s.LatestSeq)
	}
	return nil
}

// showRunStatus renders one run's snapshot view.
func showRunStatus(ctx context.Context, st *checkpoint.Store, opts *StatusOptions, cmd *cobra.Command) error {
	run, err := st.GetRun(ctx, opts.RunID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunID))
		}
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	seq := opts.Seq
	if seq < 0 {
		seq, err = st.LatestSeq(ctx, opts.RunID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return NewExitError(ExitCommandError, fmt.Sprintf("run %s has no snapshots", opts.RunID))
			}
			return WrapExitError(ExitCommandError, "failed to find latest snapshot", err)
		}
	}

	infos, err := st.ListSnapshots(ctx, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list snapshots", err)
	}
	takenAt := ""
	for _, info := range infos {
		if info.Seq == seq {
			takenAt = info.TakenAt
			break
		}
	}

	records, err := st.LoadSnapshot(ctx, opts.RunID, seq)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return NewExitError(ExitCommandError, fmt.Sprintf("snapshot seq %d not found for run %s", seq, opts.RunID))
		}
		return WrapExitError(ExitCommandError, "failed to load snapshot", err)
	}

	result := buildStatusResult(run, seq, takenAt, records)

	if opts.Format == "json" {
		return outputStatusJSON(cmd, result)
	}
	if opts.Styled {
		fmt.Fprintln(cmd.OutOrStdout(), styledRunStatus(result))
		return nil
	}
	outputStatusText(cmd.OutOrStdout(), result)
	return nil
}

// buildStatusResult converts checkpoint records to the status view.
func buildStatusResult(run checkpoint.Run, seq int64, takenAt string, records []syncpoint.Record) StatusResult {
	result := StatusResult{
		RunID:      run.RunID,
		Federation: run.Federation,
		Federate:   run.Federate,
		Seq:        seq,
		TakenAt:    takenAt,
		Points:     make([]StatusPoint, 0, len(records)),
		Tally:      make(map[string]int),
	}
	for _, rec := range records {
		state := syncpoint.State(rec.State).String()
		result.Points = append(result.Points, StatusPoint{
			Label: rec.Label,
			State: state,
			At:    timebase.Time(rec.At).String(),
		})
		result.Tally[state]++
	}
	return result
}

// outputStatusText renders the snapshot view in the same shape as the
// point list's diagnostic dump, so dumps and status output diff cleanly.
func outputStatusText(w io.Writer, result StatusResult) {
	fmt.Fprintf(w, "Run %s (%s/%s)\n", result.RunID, result.Federation, result.Federate)
	fmt.Fprintf(w, "Snapshot seq %d", result.Seq)
	if result.TakenAt != "" {
		fmt.Fprintf(w, ", taken %s", result.TakenAt)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "sync points: %d\n", len(result.Points))
	for i, p := range result.Points {
		fmt.Fprintf(w, "%3d. %-12s %s at=%s\n", i+1, p.State, p.Label, p.At)
	}
}

// outputStatusJSON outputs a status payload as indented JSON.
func outputStatusJSON(cmd *cobra.Command, data interface{}) error {
	response := CLIResponse{
		Status: "ok",
		Data:   data,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}
