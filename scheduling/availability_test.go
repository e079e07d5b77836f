package scheduling_test

import (
	"testing"
	"time"

	"github.com/catalyst-eval/catalyst-scheduler/scheduling"
)

func checker() *scheduling.AvailabilityChecker {
	return scheduling.NewAvailabilityChecker(nil)
}

// =============================================================================
// OVERLAP SEMANTICS
// =============================================================================

func TestIsAvailable_OverlappingWindowBlocks(t *testing.T) {
	// GIVEN: B-4 holds a 9:00-10:00 appointment
	// WHEN: checking B-4 for 9:30-10:30
	// THEN: unavailable
	sameDay := []scheduling.Appointment{appt("a1", 9, 0, 10, 0, withOffice("B-4"))}

	if checker().IsAvailable("B-4", at(9, 30), at(10, 30), sameDay, "new") {
		t.Error("overlapping window should make office unavailable")
	}
}

func TestIsAvailable_BackToBackDoesNotBlock(t *testing.T) {
	// Half-open intervals: [9:00,10:00) then [10:00,11:00) never conflict.
	sameDay := []scheduling.Appointment{appt("a1", 9, 0, 10, 0, withOffice("B-4"))}

	if !checker().IsAvailable("B-4", at(10, 0), at(11, 0), sameDay, "new") {
		t.Error("back-to-back appointments must not conflict")
	}
}

func TestIsAvailable_ContainmentBlocks(t *testing.T) {
	// A window fully containing the existing one still conflicts.
	sameDay := []scheduling.Appointment{appt("a1", 9, 30, 10, 0, withOffice("B-4"))}

	if checker().IsAvailable("B-4", at(9, 0), at(11, 0), sameDay, "new") {
		t.Error("containing window should conflict")
	}
}

func TestIsAvailable_DifferentOfficeDoesNotBlock(t *testing.T) {
	sameDay := []scheduling.Appointment{appt("a1", 9, 0, 10, 0, withOffice("C-2"))}

	if !checker().IsAvailable("B-4", at(9, 0), at(10, 0), sameDay, "new") {
		t.Error("occupancy in another office must not block")
	}
}

func TestIsAvailable_NormalizesBeforeComparing(t *testing.T) {
	// "b4" and "B-4" are the same room.
	sameDay := []scheduling.Appointment{appt("a1", 9, 0, 10, 0, withOffice("b4"))}

	if checker().IsAvailable("B-4", at(9, 0), at(10, 0), sameDay, "new") {
		t.Error("ids must be compared in canonical form")
	}
}

// =============================================================================
// FILTERING RULES
// =============================================================================

func TestIsAvailable_ExcludesTheAppointmentBeingPlaced(t *testing.T) {
	// Re-resolving a1 must not collide with a1's own stored slot.
	sameDay := []scheduling.Appointment{appt("a1", 9, 0, 10, 0, withOffice("B-4"))}

	if !checker().IsAvailable("B-4", at(9, 0), at(10, 0), sameDay, "a1") {
		t.Error("the appointment under evaluation must be excluded")
	}
}

func TestIsAvailable_IgnoresCancelledAndRescheduled(t *testing.T) {
	sameDay := []scheduling.Appointment{
		appt("a1", 9, 0, 10, 0, withOffice("B-4"), withStatus(scheduling.StatusCancelled)),
		appt("a2", 9, 0, 10, 0, withOffice("B-4"), withStatus(scheduling.StatusRescheduled)),
	}

	if !checker().IsAvailable("B-4", at(9, 0), at(10, 0), sameDay, "new") {
		t.Error("cancelled/rescheduled appointments must not hold rooms")
	}
}

func TestIsAvailable_OfficeIDPrecedence(t *testing.T) {
	// GIVEN: an appointment whose assigned office differs from its current
	//        and legacy ids
	// THEN: the assigned id wins for occupancy purposes
	occupant := appt("a1", 9, 0, 10, 0)
	occupant.AssignedOfficeID = "B-4"
	occupant.CurrentOfficeID = "C-2"
	occupant.LegacyOfficeID = "C-3"
	sameDay := []scheduling.Appointment{occupant}

	if checker().IsAvailable("B-4", at(9, 0), at(10, 0), sameDay, "new") {
		t.Error("assigned office should register occupancy")
	}
	if !checker().IsAvailable("C-2", at(9, 0), at(10, 0), sameDay, "new") {
		t.Error("current office is superseded by the assigned office")
	}
}

func TestIsAvailable_FallsBackThroughOfficeIDFields(t *testing.T) {
	occupant := appt("a1", 9, 0, 10, 0)
	occupant.CurrentOfficeID = "C-2"
	sameDay := []scheduling.Appointment{occupant}

	if checker().IsAvailable("C-2", at(9, 0), at(10, 0), sameDay, "new") {
		t.Error("current office should register occupancy when no assigned office exists")
	}
}

// =============================================================================
// FAIL-CLOSED BEHAVIOR
// =============================================================================

func TestIsAvailable_TBDAndEmptyFailClosed(t *testing.T) {
	if checker().IsAvailable("TBD", at(9, 0), at(10, 0), nil, "new") {
		t.Error("TBD must never be available")
	}
	if checker().IsAvailable("", at(9, 0), at(10, 0), nil, "new") {
		t.Error("empty id must never be available")
	}
	if checker().IsAvailable("not-an-office", at(9, 0), at(10, 0), nil, "new") {
		t.Error("unrecognized id must never be available")
	}
}

func TestIsAvailable_VirtualAlwaysAvailable(t *testing.T) {
	// The virtual office has no capacity limit.
	sameDay := []scheduling.Appointment{
		appt("a1", 9, 0, 10, 0, withOffice("A-v")),
		appt("a2", 9, 0, 10, 0, withOffice("A-v")),
	}

	if !checker().IsAvailable("A-v", at(9, 0), at(10, 0), sameDay, "new") {
		t.Error("virtual office is exempt from double-booking")
	}
}

func TestIsAvailable_InvertedWindowFailsClosed(t *testing.T) {
	if checker().IsAvailable("B-4", at(10, 0), at(9, 0), nil, "new") {
		t.Error("an inverted window must read as unavailable")
	}
}

func TestIsAvailable_UnreadableOccupantFailsClosed(t *testing.T) {
	// An occupant with a zeroed window can't be overlap-tested; the office
	// must read as occupied rather than free.
	broken := appt("a1", 9, 0, 10, 0, withOffice("B-4"))
	broken.StartTime = time.Time{}
	broken.EndTime = time.Time{}
	sameDay := []scheduling.Appointment{broken}

	if checker().IsAvailable("B-4", at(9, 0), at(10, 0), sameDay, "new") {
		t.Error("unreadable occupant data must fail closed")
	}
}
