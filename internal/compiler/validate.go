package compiler

import (
	"fmt"
	"net/url"
	"strings"
)

// Validation error codes (E100-E199)
const (
	// Federation errors (E101-E104)
	ErrFederationNameEmpty = "E101" // federation or federate name missing
	ErrBadExchangeURL      = "E102" // exchange URL unusable
	ErrNonPositiveStep     = "E103" // cycle step must be > 0
	ErrUnknownResolution   = "E104" // resolution word not recognized

	// Schedule errors (E105-E108)
	ErrDuplicateLabel     = "E105" // label planned twice
	ErrEmptyLabel         = "E106" // label empty or whitespace
	ErrNegativeActionTime = "E107" // action time before run start
	ErrStopBeforeStep     = "E108" // stop time before the first cycle
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a compiled configuration against semantic rules.
// Returns all errors found (does not fail-fast).
func Validate(cfg *Config) []ValidationError {
	var errs []ValidationError

	errs = append(errs, validateFederation(&cfg.Federation)...)

	// E101: federate name required (same code as the federation name;
	// the field tells them apart)
	if strings.TrimSpace(cfg.Federate.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "federate.name",
			Message: "federate name is required and must be non-empty",
			Code:    ErrFederationNameEmpty,
		})
	}

	errs = append(errs, validateSchedule(&cfg.Schedule)...)

	return errs
}

// validateFederation checks the shared coordination parameters.
func validateFederation(federation *Federation) []ValidationError {
	var errs []ValidationError

	// E101: federation name required
	if strings.TrimSpace(federation.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   "federation.name",
			Message: "federation name is required and must be non-empty",
			Code:    ErrFederationNameEmpty,
		})
	}

	// E102: exchange URL must be a dialable websocket endpoint
	if err := validateExchangeURL(federation.Exchange); err != nil {
		errs = append(errs, ValidationError{
			Field:   "federation.exchange",
			Message: err.Error(),
			Code:    ErrBadExchangeURL,
		})
	}

	// E103: step must advance time
	if federation.StepSeconds <= 0 {
		errs = append(errs, ValidationError{
			Field:   "federation.step",
			Message: fmt.Sprintf("cycle step must be positive, got %v", federation.StepSeconds),
			Code:    ErrNonPositiveStep,
		})
	}

	// E104: resolution word must parse
	if _, err := federation.Timebase(); err != nil {
		errs = append(errs, ValidationError{
			Field:   "federation.resolution",
			Message: err.Error(),
			Code:    ErrUnknownResolution,
		})
	}

	// E108: a stop before the first step means zero cycles
	if federation.StopSeconds != nil && *federation.StopSeconds < federation.StepSeconds {
		errs = append(errs, ValidationError{
			Field:   "federation.stop",
			Message: fmt.Sprintf("stop time %v is before the first cycle step %v",
				*federation.StopSeconds, federation.StepSeconds),
			Code: ErrStopBeforeStep,
		})
	}

	return errs
}

// validateExchangeURL checks that the exchange address is a usable
// websocket URL.
func validateExchangeURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("exchange URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("exchange URL %q does not parse: %v", raw, err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("exchange URL %q must use ws or wss scheme, got %q", raw, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("exchange URL %q has no host", raw)
	}
	return nil
}

// validateSchedule checks the synchronization-point plan. Init labels and
// scheduled points share one namespace: a label planned in both would be
// added twice at startup.
func validateSchedule(schedule *Schedule) []ValidationError {
	var errs []ValidationError

	seen := make(map[string]bool)

	for i, label := range schedule.Init {
		field := fmt.Sprintf("schedule.init[%d]", i)
		errs = append(errs, validateLabel(label, field, seen)...)
	}

	for i, point := range schedule.Points {
		field := fmt.Sprintf("schedule.points[%d].label", i)
		errs = append(errs, validateLabel(point.Label, field, seen)...)

		// E107: action times are absolute logical times from run start
		if point.AtSeconds != nil && *point.AtSeconds < 0 {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("schedule.points[%d].at", i),
				Message: fmt.Sprintf("action time must not be negative, got %v", *point.AtSeconds),
				Code:    ErrNegativeActionTime,
			})
		}
	}

	return errs
}

// validateLabel checks one planned label against E105/E106 and records it
// in the seen set.
func validateLabel(label, field string, seen map[string]bool) []ValidationError {
	var errs []ValidationError

	// E106: empty label
	if strings.TrimSpace(label) == "" {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: "label must be non-empty",
			Code:    ErrEmptyLabel,
		})
		return errs
	}

	// E105: duplicate label
	if seen[label] {
		errs = append(errs, ValidationError{
			Field:   field,
			Message: fmt.Sprintf("duplicate label: %q", label),
			Code:    ErrDuplicateLabel,
		})
	}
	seen[label] = true

	return errs
}
