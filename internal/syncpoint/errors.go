package syncpoint

import (
	"errors"
	"fmt"
)

// ProtocolError represents a violation of the synchronization point
// lifecycle.
//
// Protocol errors include:
//   - Duplicate label: add of a label that already exists
//   - Unknown label: an inbound event names a label that was never added
//   - Gateway failure: a register or achieve call failed
//   - Not announced: achieve requested before the federation announced
//   - Bad snapshot: a checkpoint record set cannot be reconstructed
//
// Every error is scoped to a single point; batch operations record the
// error, move that point to StateError where applicable, and continue.
type ProtocolError struct {
	// Code identifies the error category.
	Code ProtocolErrorCode

	// Message is a human-readable description.
	Message string

	// Label identifies the affected point, when there is one.
	Label string

	// State is the point's state at the time of the violation.
	State State

	// Err is the underlying cause for gateway failures.
	Err error
}

// ProtocolErrorCode categorizes protocol errors.
type ProtocolErrorCode string

const (
	// ErrCodeDuplicateLabel indicates an add of an existing label.
	ErrCodeDuplicateLabel ProtocolErrorCode = "DUPLICATE_LABEL"

	// ErrCodeUnknownLabel indicates an event or request for a label that
	// was never added.
	ErrCodeUnknownLabel ProtocolErrorCode = "UNKNOWN_LABEL"

	// ErrCodeGatewayFailure indicates a register or achieve call failed.
	ErrCodeGatewayFailure ProtocolErrorCode = "GATEWAY_FAILURE"

	// ErrCodeNotAnnounced indicates an achieve was requested for a point
	// the federation has not announced.
	ErrCodeNotAnnounced ProtocolErrorCode = "NOT_ANNOUNCED"

	// ErrCodeBadSnapshot indicates a checkpoint record set that cannot
	// reproduce a valid list.
	ErrCodeBadSnapshot ProtocolErrorCode = "BAD_SNAPSHOT"
)

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("%s: %s (label=%q)", e.Code, e.Message, e.Label)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying gateway cause, if any.
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// IsDuplicateLabel returns true if the error is a duplicate label error.
// Uses errors.As to handle wrapped errors.
func IsDuplicateLabel(err error) bool {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeDuplicateLabel
	}
	return false
}

// IsUnknownLabel returns true if the error is an unknown label error.
// Uses errors.As to handle wrapped errors.
func IsUnknownLabel(err error) bool {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeUnknownLabel
	}
	return false
}

// IsGatewayFailure returns true if the error is a gateway failure.
// Uses errors.As to handle wrapped errors.
func IsGatewayFailure(err error) bool {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeGatewayFailure
	}
	return false
}

// IsBadSnapshot returns true if the error is a snapshot validation error.
// Uses errors.As to handle wrapped errors.
func IsBadSnapshot(err error) bool {
	var pe *ProtocolError
	if errors.As(err, &pe) {
		return pe.Code == ErrCodeBadSnapshot
	}
	return false
}

// NewDuplicateLabelError creates a ProtocolError for a rejected add.
func NewDuplicateLabelError(label string) *ProtocolError {
	return &ProtocolError{
		Code:    ErrCodeDuplicateLabel,
		Message: "sync point label already exists",
		Label:   label,
	}
}

// NewUnknownLabelError creates a ProtocolError for an unrecognized label.
func NewUnknownLabelError(label string) *ProtocolError {
	return &ProtocolError{
		Code:    ErrCodeUnknownLabel,
		Message: "sync point label not known",
		Label:   label,
	}
}

// NewGatewayFailureError creates a ProtocolError wrapping a failed
// register or achieve call.
func NewGatewayFailureError(label string, cause error) *ProtocolError {
	return &ProtocolError{
		Code:    ErrCodeGatewayFailure,
		Message: fmt.Sprintf("gateway call failed: %v", cause),
		Label:   label,
		Err:     cause,
	}
}

// NewNotAnnouncedError creates a ProtocolError for an achieve attempt on a
// point that is not in the announced state.
func NewNotAnnouncedError(label string, state State) *ProtocolError {
	return &ProtocolError{
		Code:    ErrCodeNotAnnounced,
		Message: fmt.Sprintf("sync point is %s, not %s", state, StateAnnounced),
		Label:   label,
		State:   state,
	}
}

// NewBadSnapshotError creates a ProtocolError for an invalid checkpoint
// record set.
func NewBadSnapshotError(message string) *ProtocolError {
	return &ProtocolError{
		Code:    ErrCodeBadSnapshot,
		Message: message,
	}
}
