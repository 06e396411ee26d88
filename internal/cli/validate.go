package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"cuelang.org/go/cue/token"
	"github.com/spf13/cobra"

	"github.com/fedsync/fedsync/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config-dir>",
		Short: "Validate a federation configuration",
		Long: `Validate a CUE federation configuration without joining anything.

Compiles the configuration and checks every semantic rule, reporting
all errors with line information instead of stopping at the first.

Exit codes:
  0 - Configuration valid
  1 - Validation errors found
  2 - Command error (directory not found, no CUE files, etc.)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, configDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	loadResult, err := LoadConfig(configDir)
	if err != nil {
		// Structural config errors report like semantic ones, with line
		// info; environment errors (missing dir, no files) are command
		// errors.
		if verr, ok := compileErrorToValidation(err); ok {
			return outputValidationErrors(formatter, []compiler.ValidationError{verr})
		}
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, err.Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, configDir)
	formatter.VerboseLog("Validating federation %q, federate %q",
		loadResult.Config.Federation.Name, loadResult.Config.Federate.Name)

	validationErrors := compiler.Validate(loadResult.Config)
	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors)
	}

	return outputValidateSuccess(formatter)
}

// compileErrorToValidation converts a structural compile error to the
// validation error shape, so both kinds report identically.
func compileErrorToValidation(err error) (compiler.ValidationError, bool) {
	var compileErr *compiler.CompileError
	if !errors.As(err, &compileErr) {
		return compiler.ValidationError{}, false
	}
	return compiler.ValidationError{
		Field:   compileErr.Field,
		Message: compileErr.Message,
		Code:    MapFieldToErrorCode(compileErr.Field),
		Line:    getLineFromCuePos(compileErr.Pos),
	}, true
}

// getLineFromCuePos extracts a line number from a token.Pos.
func getLineFromCuePos(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter) error {
	if formatter.Format == "json" {
		result := ValidationResult{Valid: true}
		return formatter.Success(result)
	}

	fmt.Fprintln(formatter.Writer, "✓ Configuration valid")
	return nil
}

// outputValidateError outputs a single load-level error.
func outputValidateError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Load errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs the collected validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		result := ValidationResult{
			Valid:  false,
			Errors: errs,
		}

		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Validation failures = exit code 1
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}

	// Validation failures = exit code 1
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

// ValidateConfigDir validates the configuration in a directory.
// This is a helper function for external callers.
func ValidateConfigDir(dir string) ([]compiler.ValidationError, error) {
	loadResult, err := LoadConfig(dir)
	if err != nil {
		if verr, ok := compileErrorToValidation(err); ok {
			return []compiler.ValidationError{verr}, nil
		}
		return nil, err
	}
	return compiler.Validate(loadResult.Config), nil
}
