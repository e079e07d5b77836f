/*
availability.go - Office availability checking

PURPOSE:
  Decides whether placing an appointment into an office creates a time
  overlap with any other appointment already occupying that office on the
  same day.

RULES:
  - The office id is normalized first; TBD or empty ids are never available
    (fail-closed).
  - Virtual offices are always available: they have no physical capacity
    limit and are exempt from double-booking.
  - Only same-canonical-office, non-cancelled, non-rescheduled appointments
    count, and the appointment being (re)placed is excluded so it does not
    collide with itself.
  - Overlap is tested on half-open intervals [start, end): back-to-back
    appointments never conflict.
  - Any failure while reading appointment data is swallowed and counts as
    "unavailable"; a broken record must never grant a room.

SEE ALSO:
  - office.go: Standardize / IsBookable
  - resolver.go: calls IsAvailable at every ladder candidate
*/
package scheduling

import (
	"time"

	"go.uber.org/zap"
)

// AvailabilityChecker performs interval-overlap checks against a same-day
// appointment snapshot. The zero value is usable; the logger defaults to a
// no-op so the check stays silent under test.
type AvailabilityChecker struct {
	logger *zap.Logger
}

// NewAvailabilityChecker creates a checker with the given logger. A nil
// logger is replaced with zap.NewNop().
func NewAvailabilityChecker(logger *zap.Logger) *AvailabilityChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityChecker{logger: logger}
}

// IsAvailable reports whether officeID is free for the window [start, end)
// given the day's appointments. exclude identifies the appointment being
// placed, so re-resolving an appointment never conflicts with its own slot.
//
// The check fails closed: an unparseable office id, an inverted window, or
// a panic while reading appointment data all yield false.
func (c *AvailabilityChecker) IsAvailable(officeID string, start, end time.Time, sameDay []Appointment, exclude AppointmentID) (available bool) {
	logger := c.log()

	// A broken appointment record must read as "occupied", never as free.
	defer func() {
		if r := recover(); r != nil {
			logger.Warn("availability check panicked, treating office as unavailable",
				zap.String("office", officeID),
				zap.Any("cause", r))
			available = false
		}
	}()

	canonical := Standardize(officeID)
	if canonical == SentinelTBD {
		return false
	}
	if IsVirtualOffice(canonical) {
		return true
	}
	if !start.Before(end) {
		logger.Warn("availability check rejected inverted window",
			zap.String("office", canonical),
			zap.Time("start", start),
			zap.Time("end", end))
		return false
	}

	for _, appt := range sameDay {
		if appt.ID == exclude {
			continue
		}
		if !appt.Status.CountsForOccupancy() {
			continue
		}
		if appt.EffectiveOfficeID() != canonical {
			continue
		}
		if appt.StartTime.IsZero() || appt.EndTime.IsZero() {
			// Unreadable window: fail closed for this office.
			logger.Warn("appointment with unreadable window blocks office",
				zap.String("office", canonical),
				zap.String("appointment", string(appt.ID)))
			return false
		}
		if start.Before(appt.EndTime) && appt.StartTime.Before(end) {
			return false
		}
	}
	return true
}

// IsAvailableFor is a convenience wrapper taking the window from an
// appointment instead of explicit instants.
func (c *AvailabilityChecker) IsAvailableFor(officeID string, appt Appointment, sameDay []Appointment) bool {
	return c.IsAvailable(officeID, appt.StartTime, appt.EndTime, sameDay, appt.ID)
}

func (c *AvailabilityChecker) log() *zap.Logger {
	if c.logger == nil {
		return zap.NewNop()
	}
	return c.logger
}
