package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fedsync/fedsync/internal/exchange"
	"github.com/fedsync/fedsync/internal/timebase"
)

// RegisterOptions holds flags for the register command.
type RegisterOptions struct {
	*RootOptions
	Exchange   string
	Federate   string
	Resolution string
	At         float64
}

// registerPayload mirrors the exchange's POST /v1/points request body.
type registerPayload struct {
	Federate string `json:"federate,omitempty"`
	Label    string `json:"label"`
	At       *int64 `json:"at,omitempty"`
}

// NewRegisterCommand creates the register command.
func NewRegisterCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RegisterOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "register <label>",
		Short: "Register a synchronization point on the exchange",
		Long: `Register a synchronization point through the exchange HTTP API.

The exchange announces the point to every connected federate. By
default the point is unscheduled; --at pins it to a logical time in
seconds from run start, converted at the given resolution. The
resolution must match the federation's or the converted time lands on
the wrong cycle.

If no federate has joined yet the point synchronizes immediately,
since an empty roster has nobody to wait for.

Example:
  fedsync register checkpoint_1 --exchange http://localhost:8080 --at 2.5
  fedsync register shutdown --exchange http://localhost:8080`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Exchange, "exchange", "", "exchange base URL, e.g. http://localhost:8080 (required)")
	_ = cmd.MarkFlagRequired("exchange")
	cmd.Flags().StringVar(&opts.Federate, "federate", "", "federate to register as (default: external)")
	cmd.Flags().Float64Var(&opts.At, "at", 0, "action time in seconds from run start")
	cmd.Flags().StringVar(&opts.Resolution, "resolution", timebase.DefaultResolution.String(), "time resolution for --at")

	return cmd
}

func runRegister(opts *RegisterOptions, label string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	res, err := timebase.ParseResolution(opts.Resolution)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid resolution", err)
	}

	payload := registerPayload{Federate: opts.Federate, Label: label}
	if cmd.Flags().Changed("at") {
		at := int64(res.FromSeconds(opts.At))
		payload.At = &at
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to encode request", err)
	}

	url := strings.TrimRight(opts.Exchange, "/") + "/v1/points"
	formatter.VerboseLog("POST %s", url)

	httpClient := &http.Client{Timeout: 10 * time.Second}
	resp, err := httpClient.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to reach exchange", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read response", err)
	}

	switch resp.StatusCode {
	case http.StatusCreated, http.StatusOK:
	default:
		// The exchange reports request problems as {"error": "..."}.
		var apiErr struct {
			Error string `json:"error"`
		}
		msg := strings.TrimSpace(string(respBody))
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		_ = formatter.Error("E_REGISTER", msg, nil)
		return NewExitError(ExitFailure, fmt.Sprintf("exchange rejected registration: %s", msg))
	}

	var status exchange.PointStatus
	if err := json.Unmarshal(respBody, &status); err != nil {
		return WrapExitError(ExitCommandError, "failed to decode response", err)
	}

	if formatter.Format == "json" {
		return formatter.Success(status)
	}

	verb := "announced"
	if resp.StatusCode == http.StatusOK {
		verb = "already announced"
	}
	fmt.Fprintf(formatter.Writer, "✓ %s %s", status.Label, verb)
	if status.At != nil {
		fmt.Fprintf(formatter.Writer, " at %s", res.Format(timebase.Time(*status.At)))
	}
	fmt.Fprintln(formatter.Writer)
	return nil
}
