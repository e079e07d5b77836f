/*
errors.go - Error taxonomy for the scheduling core

PURPOSE:
  All core error types in one place. The scheduler degrades rather than
  aborts: a configuration problem produces a TBD assignment, an availability
  read failure counts as "unavailable", and a rule failure falls through to
  the next rule. Only systemic repository failures propagate to the caller.

ERROR CATEGORIES:
  1. Configuration errors - no usable offices/clinicians
  2. Availability errors  - appointment data unreadable during a check
  3. Rule errors          - one ladder tier blew up (contained locally)
  4. Persistence errors   - repository writes failed (counted, not fatal)

SEE ALSO:
  - resolver.go: contains rule errors per tier
  - engine.go: counts persistence errors across the batch
*/
package scheduling

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNoActiveOffices is returned when the configuration holds zero
	// active offices. The resolver degrades to TBD instead of failing.
	ErrNoActiveOffices = errors.New("no active offices configured")

	// ErrAppointmentNotFound is returned when a referenced appointment
	// does not exist in the day's snapshot.
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrClinicianNotFound is returned when an appointment references an
	// unknown clinician.
	ErrClinicianNotFound = errors.New("clinician not found")

	// ErrRepositoryUnavailable wraps a systemic storage failure that makes
	// a whole scheduling pass impossible.
	ErrRepositoryUnavailable = errors.New("repository unavailable")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// AvailabilityCheckError records a failed read during an availability check.
// The checker treats the office as unavailable and does not re-throw.
type AvailabilityCheckError struct {
	OfficeID string
	Cause    error
}

func (e *AvailabilityCheckError) Error() string {
	return fmt.Sprintf("availability check failed for %s: %v", e.OfficeID, e.Cause)
}

func (e *AvailabilityCheckError) Unwrap() error { return e.Cause }

// RuleError records an unexpected failure inside one resolver tier. The
// resolver logs it and continues with the next tier.
type RuleError struct {
	Tier  RuleTier
	Cause error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule %q (priority %d) failed: %v", e.Tier.String(), int(e.Tier), e.Cause)
}

func (e *RuleError) Unwrap() error { return e.Cause }

// PersistenceError records a failed assignment write for one appointment.
// The batch loop collects these and keeps going.
type PersistenceError struct {
	AppointmentID AppointmentID
	Cause         error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("failed to persist assignment for %s: %v", e.AppointmentID, e.Cause)
}

func (e *PersistenceError) Unwrap() error { return e.Cause }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsConfigurationError reports whether the error stems from missing or
// unusable configuration rather than data or storage.
func IsConfigurationError(err error) bool {
	return errors.Is(err, ErrNoActiveOffices) || errors.Is(err, ErrClinicianNotFound)
}

// IsSystemic reports whether the error should abort a whole scheduling run.
func IsSystemic(err error) bool {
	return errors.Is(err, ErrRepositoryUnavailable)
}
