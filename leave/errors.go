/*
errors.go - Centralized error taxonomy for the leave engine

PURPOSE:
  All error categories in one place. Packages wrap these sentinels with
  structured errors carrying context; callers branch with errors.Is().

ERROR CATEGORIES:
  1. Validation errors - malformed dates, blank mandatory comments,
     unassigned routing targets
  2. Balance errors - reserve exceeding available days
  3. Transition errors - wrong actor, double decisions, terminal states
  4. Matching errors - schedule collisions, exhausted candidate pools

PROPAGATION RULES:
  Validation, authorization and balance errors abort the mutation with no
  partial state change. ErrScheduleConflict is internal to the matcher and
  recovered by trying the next candidate. An exhausted candidate pool is
  not an error at all: it surfaces as an escalated assignment value plus
  a substitute.unavailable notification.
*/
package leave

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned for malformed input: reversed date ranges,
	// dates in the past, blank mandatory comments, unassigned reviewers.
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientBalance is returned when a reservation exceeds the
	// account's available days.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrUnauthorizedTransition is returned when the actor is not the
	// reviewer designated for the request's current pending step.
	ErrUnauthorizedTransition = errors.New("actor not authorized for transition")

	// ErrConflict is returned when a request is already terminal, a chain
	// step was already decided, or a ledger pairing would be violated.
	ErrConflict = errors.New("state conflict")

	// ErrScheduleConflict is returned when a substitute booking would
	// collide with an existing (instructor, day, period) entry.
	ErrScheduleConflict = errors.New("schedule conflict")

	// ErrNotFound is returned when a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError describes a single rejected field or rule.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InsufficientBalanceError reports the shortfall on a reservation.
type InsufficientBalanceError struct {
	RequesterID RequesterID
	Year        int
	Available   decimal.Decimal
	Requested   decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance for %s/%d: available %s, requested %s",
		e.RequesterID, e.Year, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// ScheduleConflictError identifies the colliding slot.
type ScheduleConflictError struct {
	InstructorID RequesterID
	Day          Date
	Period       int
}

func (e *ScheduleConflictError) Error() string {
	return fmt.Sprintf("schedule conflict: %s already booked on %s period %d",
		e.InstructorID, e.Day, e.Period)
}

func (e *ScheduleConflictError) Unwrap() error { return ErrScheduleConflict }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError reports whether the error is due to invalid caller input
// or state, as opposed to an infrastructure failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrUnauthorizedTransition) ||
		errors.Is(err, ErrConflict)
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
