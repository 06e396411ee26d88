package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/fedsync/fedsync/internal/exchange"
)

const shutdownGrace = 5 * time.Second

// ServeOptions holds flags for the serve command.
type ServeOptions struct {
	*RootOptions
	Listen     string
	Federation string
	Metrics    string
}

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the federation exchange",
		Long: `Run the federation exchange: the single authority arbitrating
synchronization points for one federation.

Federates connect on the /v1/federation websocket; operators inspect
and register points over the HTTP API. Prometheus metrics are served
on /metrics, or on a separate address with --metrics.

A point registered while no federate is connected synchronizes
immediately: an empty roster has nobody to wait for, and late joiners
replay it as already settled. Register barriers only once the
federates that must honor them have joined.

Example:
  fedsync serve --listen :8080 --federation orbit-sim
  fedsync serve --listen :8080 --federation orbit-sim --metrics :9090`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExchange(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Listen, "listen", ":8080", "address to listen on")
	cmd.Flags().StringVar(&opts.Federation, "federation", "", "federation name (required)")
	_ = cmd.MarkFlagRequired("federation")
	cmd.Flags().StringVar(&opts.Metrics, "metrics", "", "serve metrics on a separate address (default: /metrics on the main listener)")

	return cmd
}

func runExchange(opts *ServeOptions, cmd *cobra.Command) error {
	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))

	registry := prometheus.NewRegistry()
	ex := exchange.New(opts.Federation, exchange.NewMetrics(registry))

	router := exchange.NewServer(ex,
		exchange.WithMiddlewares(exchange.RequestLogger),
		exchange.WithMetricsGatherer(registry),
	)

	// Setup signal handling for graceful shutdown
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	srv := &http.Server{Addr: opts.Listen, Handler: router}

	var metricsSrv *http.Server
	if opts.Metrics != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: opts.Metrics, Handler: mux}
		go func() {
			slog.Info("metrics listening", "addr", opts.Metrics)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("metrics server failed", "error", err)
			}
		}()
	}

	errChan := make(chan error, 1)
	go func() {
		slog.Info("exchange listening", "federation", opts.Federation, "addr", opts.Listen)
		errChan <- srv.ListenAndServe()
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Exchange for %s listening on %s.\n", opts.Federation, opts.Listen)
	fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl-C to stop.")

	select {
	case err := <-errChan:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return WrapExitError(ExitFailure, "exchange server error", err)
		}
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		if metricsSrv != nil {
			if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
				slog.Error("metrics shutdown error", "error", err)
			}
		}
	}

	slog.Info("exchange stopped gracefully")
	return nil
}
