package scheduling_test

import (
	"testing"

	"github.com/catalyst-eval/catalyst-scheduler/scheduling"
)

func repairer() *scheduling.ConflictResolver {
	return scheduling.NewConflictResolver(checker(), detector(), nil)
}

func TestRepair_TelehealthOffenderMovesToVirtual(t *testing.T) {
	// GIVEN: an in-person and a telehealth appointment double-booked in B-4
	// THEN: the in-person one keeps the room, the telehealth one moves to A-v
	appts := []scheduling.Appointment{
		appt("tele", 9, 0, 10, 0, withOffice("B-4"), withSession(scheduling.SessionTelehealth)),
		appt("phys", 9, 30, 10, 30, withOffice("B-4")),
	}
	// Telehealth sessions are exempt from detection, so hand-build the
	// conflict the way the legacy data sometimes presents it.
	conflicts := []scheduling.Conflict{{
		Type:           scheduling.ConflictDoubleBooking,
		OfficeID:       "B-4",
		AppointmentIDs: []scheduling.AppointmentID{"tele", "phys"},
		Severity:       scheduling.SeverityHigh,
	}}

	relocations, _ := repairer().Resolve(conflicts, appts, newContext(appts))

	if len(relocations) != 1 {
		t.Fatalf("expected 1 relocation, got %d", len(relocations))
	}
	move := relocations[0]
	if move.AppointmentID != "tele" {
		t.Errorf("the telehealth party should move, got %s", move.AppointmentID)
	}
	if move.ToOfficeID != scheduling.DefaultVirtualOffice {
		t.Errorf("telehealth offender must land on %s, got %s", scheduling.DefaultVirtualOffice, move.ToOfficeID)
	}
}

func TestRepair_PhysicalOffenderMovesToFreeOffice(t *testing.T) {
	appts := []scheduling.Appointment{
		appt("keep", 9, 0, 10, 0, withOffice("B-4")),
		appt("move", 9, 30, 10, 30, withOffice("B-4")),
	}
	conflicts := detector().Detect(appts)
	if len(conflicts) != 1 {
		t.Fatalf("fixture should produce 1 conflict, got %d", len(conflicts))
	}

	relocations, remaining := repairer().Resolve(conflicts, appts, newContext(appts))

	if len(relocations) != 1 {
		t.Fatalf("expected 1 relocation, got %d", len(relocations))
	}
	if len(remaining) != 0 {
		t.Errorf("expected no remaining conflicts, got %d", len(remaining))
	}
	move := relocations[0]
	if move.AppointmentID != "move" {
		t.Errorf("the first party keeps the room; expected 'move' relocated, got %s", move.AppointmentID)
	}
	if move.ToOfficeID == "B-4" || move.ToOfficeID == scheduling.SentinelTBD {
		t.Errorf("relocation target invalid: %s", move.ToOfficeID)
	}
}

func TestRepair_DoesNotMutateInput(t *testing.T) {
	appts := []scheduling.Appointment{
		appt("keep", 9, 0, 10, 0, withOffice("B-4")),
		appt("move", 9, 30, 10, 30, withOffice("B-4")),
	}
	conflicts := detector().Detect(appts)

	repairer().Resolve(conflicts, appts, newContext(appts))

	if appts[1].AssignedOfficeID != "B-4" {
		t.Error("input slice must stay untouched")
	}
}

func TestRepair_IteratesToFixedPoint(t *testing.T) {
	// GIVEN: a near-full day where the only free slot for a relocation is a
	// room that is itself contested in a later conflict
	// THEN: repeated passes settle the schedule without leftover collisions
	appts := []scheduling.Appointment{
		appt("a1", 9, 0, 10, 0, withOffice("B-2")),
		appt("a2", 9, 0, 10, 0, withOffice("B-2")),
		appt("a3", 9, 0, 10, 0, withOffice("B-4")),
		appt("a4", 9, 0, 10, 0, withOffice("B-4")),
	}
	conflicts := detector().Detect(appts)
	if len(conflicts) != 2 {
		t.Fatalf("fixture should produce 2 conflicts, got %d", len(conflicts))
	}

	relocations, remaining := repairer().Resolve(conflicts, appts, newContext(appts))

	if len(remaining) != 0 {
		t.Fatalf("expected all conflicts repaired, got %d remaining", len(remaining))
	}
	if len(relocations) != 2 {
		t.Errorf("expected 2 relocations, got %d", len(relocations))
	}
	// No two relocations may target the same office for the same window.
	if len(relocations) == 2 && relocations[0].ToOfficeID == relocations[1].ToOfficeID {
		t.Errorf("relocations collided on %s", relocations[0].ToOfficeID)
	}
}

func TestRepair_NoAlternativeLeavesConflictStanding(t *testing.T) {
	// Every physical office is occupied all morning; the collision cannot
	// be repaired and must be reported as remaining.
	var appts []scheduling.Appointment
	for _, id := range []string{"B-1", "B-2", "B-5", "C-1", "C-2", "C-3"} {
		appts = append(appts, appt("occ-"+id, 9, 0, 12, 0, withOffice(id)))
	}
	appts = append(appts,
		appt("k", 9, 0, 10, 0, withOffice("B-4")),
		appt("m", 9, 30, 10, 30, withOffice("B-4")),
	)
	conflicts := detector().Detect(appts)

	relocations, remaining := repairer().Resolve(conflicts, appts, newContext(appts))

	if len(relocations) != 0 {
		t.Errorf("nothing should have moved, got %d relocations", len(relocations))
	}
	if len(remaining) == 0 {
		t.Error("the unrepairable conflict must be reported")
	}
}
