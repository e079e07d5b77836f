package scheduling_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/catalyst-eval/catalyst-scheduler/scheduling"
	"github.com/catalyst-eval/catalyst-scheduler/scheduling/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func seededRepo() *store.Memory {
	repo := store.NewMemory()
	for _, o := range practiceOffices() {
		repo.PutOffice(o)
	}
	for _, c := range practiceClinicians() {
		repo.PutClinician(c)
	}
	return repo
}

type recordingSink struct {
	entries []scheduling.AuditEntry
}

func (s *recordingSink) Record(e scheduling.AuditEntry) { s.entries = append(s.entries, e) }

// failingRepo wraps Memory and fails every PersistAssignment call.
type failingRepo struct {
	*store.Memory
	failures int
}

func (f *failingRepo) PersistAssignment(context.Context, scheduling.Appointment) error {
	f.failures++
	return errors.New("storage quota exceeded")
}

// =============================================================================
// DAILY SCHEDULE GENERATION
// =============================================================================

func TestGenerateDailySchedule_FullPass(t *testing.T) {
	// GIVEN: a day of mixed appointments, both stored in B-4 with
	//        overlapping windows
	// WHEN: generating the daily schedule
	// THEN: offices are re-resolved and the result holds no conflicts
	repo := seededRepo()
	repo.PutAppointment(appt("a1", 9, 0, 10, 0, withCurrentOffice("B-4")))
	repo.PutAppointment(appt("a2", 9, 30, 10, 30, withCurrentOffice("B-4"), withClinician("clin-morgan", "Morgan Lee")))
	repo.PutAppointment(appt("a3", 11, 0, 12, 0, withSession(scheduling.SessionTelehealth)))
	repo.PutAppointment(appt("a4", 9, 0, 10, 0, withStatus(scheduling.StatusCancelled)))

	engine := scheduling.NewEngine(repo)
	schedule, err := engine.GenerateDailySchedule(context.Background(), testDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if schedule.Stats.Total != 4 {
		t.Errorf("expected 4 total, got %d", schedule.Stats.Total)
	}
	if schedule.Stats.Skipped != 1 {
		t.Errorf("cancelled appointment should be skipped, got %d skipped", schedule.Stats.Skipped)
	}
	if schedule.Stats.Resolved != 3 {
		t.Errorf("expected 3 resolved, got %d", schedule.Stats.Resolved)
	}
	if len(schedule.Conflicts) != 0 {
		t.Errorf("sequential re-resolution should leave no conflicts, got %d", len(schedule.Conflicts))
	}
	for _, a := range schedule.Appointments {
		if !a.Status.CountsForOccupancy() {
			continue
		}
		if a.AssignedOfficeID == "" {
			t.Errorf("appointment %s left without an assignment", a.ID)
		}
		if a.AssignmentReason == "" {
			t.Errorf("appointment %s left without a reason", a.ID)
		}
	}
}

func TestGenerateDailySchedule_SequentialOccupancy(t *testing.T) {
	// Two appointments with the same clinician and window cannot both win
	// the clinician's primary office: the second must see the occupancy
	// created by the first within the same pass.
	repo := seededRepo()
	repo.PutAppointment(appt("a1", 9, 0, 10, 0))
	repo.PutAppointment(appt("a2", 9, 0, 10, 0))

	engine := scheduling.NewEngine(repo)
	schedule, err := engine.GenerateDailySchedule(context.Background(), testDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := schedule.Appointments[0].AssignedOfficeID
	second := schedule.Appointments[1].AssignedOfficeID
	if first == second {
		t.Errorf("both appointments won %s", first)
	}
}

func TestGenerateDailySchedule_PersistsChangedAssignments(t *testing.T) {
	repo := seededRepo()
	repo.PutAppointment(appt("a1", 9, 0, 10, 0))

	engine := scheduling.NewEngine(repo)
	if _, err := engine.GenerateDailySchedule(context.Background(), testDay); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, ok := repo.Appointment("a1")
	if !ok {
		t.Fatal("appointment vanished")
	}
	if stored.AssignedOfficeID == "" || stored.AssignedOfficeID == scheduling.SentinelTBD {
		t.Errorf("assignment not persisted, got %q", stored.AssignedOfficeID)
	}
}

func TestGenerateDailySchedule_Idempotent(t *testing.T) {
	// Re-running on stable data must produce identical assignments and
	// never a worse conflict count.
	repo := seededRepo()
	repo.PutAppointment(appt("a1", 9, 0, 10, 0))
	repo.PutAppointment(appt("a2", 9, 30, 10, 30, withClinician("clin-morgan", "Morgan Lee")))
	repo.PutAppointment(appt("a3", 10, 0, 11, 0, withAge(8)))

	engine := scheduling.NewEngine(repo)
	first, err := engine.GenerateDailySchedule(context.Background(), testDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := engine.GenerateDailySchedule(context.Background(), testDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(second.Conflicts) > len(first.Conflicts) {
		t.Errorf("conflict count worsened: %d -> %d", len(first.Conflicts), len(second.Conflicts))
	}
	for i := range first.Appointments {
		if first.Appointments[i].AssignedOfficeID != second.Appointments[i].AssignedOfficeID {
			t.Errorf("appointment %s moved between runs: %s -> %s",
				first.Appointments[i].ID,
				first.Appointments[i].AssignedOfficeID,
				second.Appointments[i].AssignedOfficeID)
		}
	}
}

func TestGenerateDailySchedule_PersistFailuresDoNotAbort(t *testing.T) {
	repo := &failingRepo{Memory: seededRepo()}
	repo.Memory.PutAppointment(appt("a1", 9, 0, 10, 0))
	repo.Memory.PutAppointment(appt("a2", 10, 0, 11, 0))

	engine := scheduling.NewEngine(repo)
	schedule, err := engine.GenerateDailySchedule(context.Background(), testDay)
	if err != nil {
		t.Fatalf("persist failures must not abort the run: %v", err)
	}

	if schedule.Stats.PersistFailures != 2 {
		t.Errorf("expected 2 persist failures counted, got %d", schedule.Stats.PersistFailures)
	}
	if schedule.Stats.Resolved != 2 {
		t.Errorf("both appointments should still have been resolved, got %d", schedule.Stats.Resolved)
	}
}

func TestGenerateDailySchedule_SystemicFailureSurfaces(t *testing.T) {
	engine := scheduling.NewEngine(brokenRepo{})

	_, err := engine.GenerateDailySchedule(context.Background(), testDay)
	if err == nil {
		t.Fatal("an unreachable repository must surface one error")
	}
	if !errors.Is(err, scheduling.ErrRepositoryUnavailable) {
		t.Errorf("expected ErrRepositoryUnavailable, got %v", err)
	}
}

func TestGenerateDailySchedule_RecordsAudit(t *testing.T) {
	repo := seededRepo()
	repo.PutAppointment(appt("a1", 9, 0, 10, 0))
	sink := &recordingSink{}

	engine := scheduling.NewEngine(repo, scheduling.WithAuditSink(sink))
	if _, err := engine.GenerateDailySchedule(context.Background(), testDay); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sawAssignment, sawSummary bool
	for _, e := range sink.entries {
		switch e.EventType {
		case scheduling.AuditOfficeAssigned:
			sawAssignment = true
		case scheduling.AuditScheduleGenerated:
			sawSummary = true
		}
	}
	if !sawAssignment || !sawSummary {
		t.Errorf("expected assignment and summary audit entries, got %d entries", len(sink.entries))
	}
}

// =============================================================================
// CONFLICT RESOLUTION ENTRY POINT
// =============================================================================

func TestResolveConflicts_RepairsStoredDoubleBooking(t *testing.T) {
	repo := seededRepo()
	repo.PutAppointment(appt("a1", 9, 0, 10, 0, withOffice("B-4")))
	repo.PutAppointment(appt("a2", 9, 30, 10, 30, withOffice("B-4")))

	engine := scheduling.NewEngine(repo)
	count, err := engine.ResolveConflicts(context.Background(), testDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 relocation, got %d", count)
	}

	moved, _ := repo.Appointment("a2")
	if scheduling.Standardize(moved.AssignedOfficeID) == "B-4" {
		t.Error("relocation was not persisted")
	}
}

func TestResolveConflicts_CleanDayIsANoop(t *testing.T) {
	repo := seededRepo()
	repo.PutAppointment(appt("a1", 9, 0, 10, 0, withOffice("B-4")))
	repo.PutAppointment(appt("a2", 10, 0, 11, 0, withOffice("B-4")))

	engine := scheduling.NewEngine(repo)
	count, err := engine.ResolveConflicts(context.Background(), testDay)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != 0 {
		t.Errorf("expected no relocations, got %d", count)
	}
}

// =============================================================================
// SINGLE-EVENT PATH
// =============================================================================

func TestResolveAppointment_UsesSameLadder(t *testing.T) {
	repo := seededRepo()
	repo.PutProfile(scheduling.ClientAccessibilityProfile{
		ClientID:       "client-a1",
		RequiredOffice: "C-2",
	})
	a := appt("a1", 9, 0, 10, 0)
	repo.PutAppointment(a)

	engine := scheduling.NewEngine(repo)
	assignment, err := engine.ResolveAppointment(context.Background(), a)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if assignment.OfficeID != "C-2" {
		t.Errorf("expected the override office C-2, got %s", assignment.OfficeID)
	}
	stored, _ := repo.Appointment("a1")
	if stored.AssignedOfficeID != "C-2" {
		t.Errorf("single-event assignment not persisted, got %q", stored.AssignedOfficeID)
	}
}

func TestResolveAppointment_RejectsCancelled(t *testing.T) {
	engine := scheduling.NewEngine(seededRepo())

	_, err := engine.ResolveAppointment(context.Background(),
		appt("a1", 9, 0, 10, 0, withStatus(scheduling.StatusCancelled)))
	if err == nil {
		t.Error("cancelled appointments have nothing to place")
	}
}

// =============================================================================
// BUSINESS DATE
// =============================================================================

func TestBusinessDate_UsesPracticeTimezone(t *testing.T) {
	loc := time.FixedZone("practice", -5*3600)
	// 02:30 UTC on March 11 is still March 10 in the practice timezone.
	clock := func() time.Time { return time.Date(2025, time.March, 11, 2, 30, 0, 0, time.UTC) }

	engine := scheduling.NewEngine(seededRepo(),
		scheduling.WithLocation(loc),
		scheduling.WithClock(clock))

	got := engine.BusinessDate()
	if got.Day() != 10 || got.Month() != time.March {
		t.Errorf("expected March 10 in practice time, got %v", got)
	}
}

// brokenRepo fails every read.
type brokenRepo struct{}

func (brokenRepo) ActiveOffices(context.Context) ([]scheduling.Office, error) {
	return nil, errors.New("connection refused")
}
func (brokenRepo) Clinicians(context.Context) ([]scheduling.Clinician, error) {
	return nil, errors.New("connection refused")
}
func (brokenRepo) AssignmentRules(context.Context) ([]scheduling.AssignmentRule, error) {
	return nil, errors.New("connection refused")
}
func (brokenRepo) ClientProfile(context.Context, scheduling.ClientID) (*scheduling.ClientAccessibilityProfile, error) {
	return nil, errors.New("connection refused")
}
func (brokenRepo) ClientPreference(context.Context, scheduling.ClientID) (*scheduling.ClientPreference, error) {
	return nil, errors.New("connection refused")
}
func (brokenRepo) AppointmentsForDay(context.Context, time.Time) ([]scheduling.Appointment, error) {
	return nil, errors.New("connection refused")
}
func (brokenRepo) PersistAssignment(context.Context, scheduling.Appointment) error {
	return errors.New("connection refused")
}
func (brokenRepo) AppendAuditEntry(context.Context, scheduling.AuditEntry) error {
	return errors.New("connection refused")
}
