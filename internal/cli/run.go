package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fedsync/fedsync/internal/checkpoint"
	"github.com/fedsync/fedsync/internal/compiler"
	"github.com/fedsync/fedsync/internal/federate"
	"github.com/fedsync/fedsync/internal/gateway"
	"github.com/fedsync/fedsync/internal/syncpoint"
	"github.com/fedsync/fedsync/internal/timebase"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database        string
	RunID           string
	CheckpointEvery int64

	// Tokens allows overriding the run ID source (for testing).
	// If nil, defaults to UUIDv7Generator.
	Tokens federate.TokenGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <config-dir>",
		Short: "Join a federation and drive the step cycle",
		Long: `Join a federation and drive the synchronization-point step cycle.

The federate compiles its CUE configuration from the given directory,
opens the SQLite checkpoint database (creating it if it doesn't exist),
dials the exchange, holds on the init barrier, and then steps until the
configured stop condition or Ctrl-C.

Example:
  fedsync run --db ./physics.db ./config
  fedsync run --db ./physics.db ./config --every 10 --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFederate(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite checkpoint database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run ID to record checkpoints under (default: new UUIDv7)")
	cmd.Flags().Int64Var(&opts.CheckpointEvery, "every", 1, "checkpoint every N cycles")

	return cmd
}

func runFederate(opts *RunOptions, configDir string, cmd *cobra.Command) error {
	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))

	// Compile config
	slog.Info("compiling config", "dir", configDir)
	cfg, err := compileConfig(configDir)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to compile config", err)
	}

	res, _ := cfg.Federation.Timebase() // resolution already validated
	slog.Info("config compiled",
		"federation", cfg.Federation.Name,
		"federate", cfg.Federate.Name,
		"resolution", res.String(),
		"step", cfg.Federation.StepTime(res).String(),
	)

	// The run ID doubles as the federate's run token so checkpoints and
	// log lines correlate under one identifier.
	runID := opts.RunID
	if runID == "" {
		tokens := opts.Tokens
		if tokens == nil {
			tokens = federate.UUIDv7Generator{}
		}
		runID = tokens.Generate()
	}

	// Open database (create if not exists)
	slog.Info("opening checkpoint database", "path", opts.Database)
	st, err := checkpoint.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	if err := st.CreateRun(ctx, checkpoint.Run{
		RunID:      runID,
		Federation: cfg.Federation.Name,
		Federate:   cfg.Federate.Name,
	}); err != nil {
		return WrapExitError(ExitCommandError, "failed to record run", err)
	}

	slog.Info("dialing exchange", "url", cfg.Federation.Exchange)
	client, err := gateway.Dial(ctx, cfg.Federation.Exchange, cfg.Federate.Name)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to dial exchange", err)
	}
	defer client.Close()

	fed := buildFederate(cfg, res, client, st, runID, opts.CheckpointEvery)
	go fed.Pump(ctx, client.Inbound())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Federate %s joined %s as run %s.\n",
		cfg.Federate.Name, cfg.Federation.Name, runID)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	err = fed.RunInitBarrier(ctx)
	if err == nil {
		// Announce the scheduled points the init barrier didn't cover.
		err = fed.RegisterAll(ctx)
	}
	if err == nil {
		err = fed.Run(ctx)
	}
	if err != nil && err != context.Canceled && err != context.DeadlineExceeded {
		return WrapExitError(ExitFailure, "federate error", err)
	}

	if err := client.Resign(); err != nil {
		slog.Warn("resign failed", "error", err)
	}

	slog.Info("federate stopped gracefully")
	return nil
}

// buildFederate assembles the executive from the compiled config: run
// identity, init barrier labels, stop condition, checkpoint hook, and
// the scheduled points seeded into the list.
func buildFederate(cfg *compiler.Config, res timebase.Resolution, gw syncpoint.Gateway, st *checkpoint.Store, runID string, every int64) *federate.Federate {
	fedOpts := []federate.Option{
		federate.WithTokenGenerator(federate.NewFixedGenerator(runID)),
		federate.WithCheckpoint(st.CheckpointFunc(runID), every),
	}
	if len(cfg.Schedule.Init) > 0 {
		fedOpts = append(fedOpts, federate.WithInitLabels(cfg.Schedule.Init...))
	}
	if cfg.Federate.LateJoiner {
		fedOpts = append(fedOpts, federate.WithLateJoiner())
	}
	if stop := cfg.Federation.StopTime(res); stop.Scheduled() {
		fedOpts = append(fedOpts, federate.WithStopTime(stop))
	}

	timeline := timebase.NewSteppedTimeline(0, cfg.Federation.StepTime(res))
	fed := federate.New(cfg.Federate.Name, gw, timeline, fedOpts...)

	for _, point := range cfg.Schedule.Points {
		if err := fed.AddAt(point.Label, point.ActionTime(res)); err != nil {
			slog.Warn("skipping scheduled point", "label", point.Label, "error", err)
		}
	}
	return fed
}

// compileConfig loads and compiles the CUE configuration from a
// directory and checks the semantic rules. Only the first validation
// error is returned; the validate command reports them all.
func compileConfig(dir string) (*compiler.Config, error) {
	loadResult, err := LoadConfig(dir)
	if err != nil {
		return nil, err
	}

	if errs := compiler.Validate(loadResult.Config); len(errs) > 0 {
		return nil, fmt.Errorf("%d validation error(s), first: %w", len(errs), errs[0])
	}

	return loadResult.Config, nil
}
