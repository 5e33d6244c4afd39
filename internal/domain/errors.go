package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrSessionNotFound = errors.New("registration session not found")
	ErrSessionExpired  = errors.New("registration session expired")
	ErrCaseNotFound    = errors.New("kyc case not found")
)

// ConflictError is returned when a uniqueness value is already reserved by a
// live session or permanently claimed by an existing tenant. The caller can
// retry with a different value; no state changed.
type ConflictError struct {
	Kind  ReservationKind
	Value string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s %q is already taken", e.Kind, e.Value)
}

// TransitionError is returned when an operation is attempted from a step or
// status it is not valid in. It signals caller desynchronization; no state
// changed.
type TransitionError struct {
	Event   string
	Current string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %q is not valid from state %q", e.Event, e.Current)
}

// ValidationError is returned for malformed input before any state change.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IncompleteSubmissionError is returned when a KYC submission is missing one
// or more required document categories.
type IncompleteSubmissionError struct {
	Missing []DocumentType
}

func (e *IncompleteSubmissionError) Error() string {
	return fmt.Sprintf("submission is missing required documents: %v", e.Missing)
}

// ExternalServiceError wraps a failure from an outbound collaborator (payment
// gateway, provisioner, document store). The workflow step never advances on
// one of these, so the caller can retry.
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}
