// Package shared contains common domain types, errors, and events that are
// used across all domain packages. This package has zero external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Entity errors
	ErrNotFound      = errors.New("entity not found")
	ErrAlreadyExists = errors.New("entity already exists")
	ErrInvalidEntity = errors.New("invalid entity")

	// Validation errors
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrNegativeValue   = errors.New("value cannot be negative")
	ErrValueOutOfRange = errors.New("value out of range")

	// State errors
	ErrInvalidState   = errors.New("invalid state")
	ErrForbidden      = errors.New("forbidden")
	ErrQuotaExhausted = errors.New("quota exhausted")

	// Invariant errors. An invariant violation is a bug in the engine or a
	// corrupted ledger, never a user mistake; it must be logged loudly and
	// surfaced, not coerced into a success.
	ErrInvariantViolation = errors.New("ledger invariant violation")

	// Store errors
	ErrStoreUnavailable = errors.New("store unavailable")
	ErrTimeout          = errors.New("operation timeout")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "ledger", "reminder", "stats"
	Op      string // Operation that failed, e.g., "RecordCheckIn"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Check-in ledger errors
var (
	ErrNotAMember       = NewDomainError("ledger", "RecordCheckIn", ErrForbidden, "user is not an active member of this challenge")
	ErrDuplicateCheckIn = NewDomainError("ledger", "RecordCheckIn", ErrAlreadyExists, "check-in already exists for this habit today")
	ErrCheckInNotFound  = NewDomainError("ledger", "Find", ErrNotFound, "check-in not found")
	ErrNotCheckInOwner  = NewDomainError("ledger", "RetractCheckIn", ErrForbidden, "check-in belongs to another user")
	ErrEditWindowClosed = NewDomainError("ledger", "EditCaption", ErrInvalidState, "check-ins can only be edited on the day they were created")
	ErrStreakCorrupted  = NewDomainError("ledger", "RecordCheckIn", ErrInvariantViolation, "ledger contains a check-in for today but the duplicate guard passed")
)

// Reminder throttle errors
var (
	ErrNoQuotaRemaining  = NewDomainError("reminder", "SendReminder", ErrQuotaExhausted, "no hitches remaining for this challenge")
	ErrInvalidTargets    = NewDomainError("reminder", "SendReminder", ErrInvalidInput, "target list is empty or exceeds the per-call limit")
	ErrNoEligibleTargets = NewDomainError("reminder", "SendReminder", ErrInvalidState, "all targets are ineligible or already reminded today")
)

// Membership and challenge errors
var (
	ErrMembershipNotFound = NewDomainError("membership", "Find", ErrNotFound, "membership not found")
	ErrChallengeNotFound  = NewDomainError("challenge", "Find", ErrNotFound, "challenge not found")
)

// Stats errors
var (
	ErrAggregateNotFound = NewDomainError("stats", "Find", ErrNotFound, "aggregate not found")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDuplicate checks if the error is an "already exists" error.
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidation checks if the error is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrNegativeValue) ||
		errors.Is(err, ErrValueOutOfRange)
}

// IsInvariantViolation checks if the error signals a broken ledger invariant.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrInvariantViolation)
}

// IsRetryable checks if the operation can be retried safely.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, ErrTimeout)
}
