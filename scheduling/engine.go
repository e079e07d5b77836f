/*
engine.go - Daily schedule generation and conflict repair entry points

PURPOSE:
  Orchestrates the full pass the rest of the application calls into:
  fetch the day's appointments and configuration, re-resolve every
  non-cancelled appointment's office from scratch, detect double-bookings,
  optionally repair them, and persist changed assignments.

SEQUENCING:
  The pass is a single synchronous loop. Each appointment's resolution sees
  the occupancy created by appointments resolved earlier in the same pass
  (the working set is updated in place), so ordering matters; the order is
  whatever the repository returned.

DEGRADATION:
  - One malformed appointment is skipped/flagged, never aborts the run.
  - Persistence failures are counted and the loop keeps going.
  - Only a systemic repository failure (nothing readable) surfaces as an
    error from the top-level call.

SEE ALSO:
  - resolver.go / detector.go / repair.go: the pieces driven here
  - api/scheduler.go: runs this on a timer under the maintenance lease
*/
package scheduling

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// =============================================================================
// ENGINE
// =============================================================================

// Engine wires the resolver, detector and conflict resolver over a
// Repository. It holds no mutable scheduling state of its own.
type Engine struct {
	repo     Repository
	checker  *AvailabilityChecker
	resolver *OfficeAssignmentResolver
	detector *ConflictDetector
	repairer *ConflictResolver
	audit    AuditSink

	defaults   TierDefaults
	location   *time.Location
	autoRepair bool
	now        func() time.Time
	logger     *zap.Logger
}

// EngineOption customizes an Engine.
type EngineOption func(*Engine)

// WithLogger attaches a logger to the engine and its components.
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithTierDefaults overrides the practice's rule configuration.
func WithTierDefaults(d TierDefaults) EngineOption {
	return func(e *Engine) { e.defaults = d }
}

// WithLocation sets the practice's business timezone, used when a caller
// omits the date.
func WithLocation(loc *time.Location) EngineOption {
	return func(e *Engine) { e.location = loc }
}

// WithAutoRepair controls whether GenerateDailySchedule relocates the
// conflicts it finds (default true).
func WithAutoRepair(enabled bool) EngineOption {
	return func(e *Engine) { e.autoRepair = enabled }
}

// WithAuditSink routes audit entries somewhere other than the default
// no-op sink.
func WithAuditSink(sink AuditSink) EngineOption {
	return func(e *Engine) { e.audit = sink }
}

// WithResolver swaps the resolver, e.g. to run the scoring ladder.
func WithResolver(r *OfficeAssignmentResolver) EngineOption {
	return func(e *Engine) { e.resolver = r }
}

// WithClock overrides time.Now for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine creates an engine over the given repository.
func NewEngine(repo Repository, opts ...EngineOption) *Engine {
	e := &Engine{
		repo:       repo,
		defaults:   DefaultTierDefaults(),
		location:   time.UTC,
		autoRepair: true,
		now:        time.Now,
		audit:      NopAuditSink{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.checker = NewAvailabilityChecker(e.logger)
	if e.resolver == nil {
		e.resolver = NewResolver(e.checker, WithResolverLogger(e.logger))
	}
	e.detector = NewConflictDetector()
	e.repairer = NewConflictResolver(e.checker, e.detector, e.logger)
	return e
}

// BusinessDate returns today's date in the practice timezone, truncated to
// midnight. Used when callers omit the date.
func (e *Engine) BusinessDate() time.Time {
	now := e.now().In(e.location)
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, e.location)
}

// =============================================================================
// DAILY SCHEDULE GENERATION
// =============================================================================

// ScheduleStats summarizes one generation pass.
type ScheduleStats struct {
	Total             int `json:"total"`
	Resolved          int `json:"resolved"`
	Skipped           int `json:"skipped"`
	Changed           int `json:"changed"`
	PersistFailures   int `json:"persistFailures"`
	ConflictsFound    int `json:"conflictsFound"`
	ConflictsResolved int `json:"conflictsResolved"`
}

// DailySchedule is the result of one generation pass.
type DailySchedule struct {
	Date         time.Time     `json:"date"`
	Appointments []Appointment `json:"appointments"`
	Conflicts    []Conflict    `json:"conflicts"`
	Stats        ScheduleStats `json:"stats"`
}

// GenerateDailySchedule re-resolves every non-cancelled appointment for the
// given day, detects double-bookings, repairs them when auto-repair is on,
// and persists changed assignments. A zero date means the current business
// date. Idempotent: re-running on stable input never worsens the conflict
// count.
func (e *Engine) GenerateDailySchedule(ctx context.Context, date time.Time) (*DailySchedule, error) {
	if date.IsZero() {
		date = e.BusinessDate()
	}

	snapshot, err := e.loadSnapshot(ctx, date)
	if err != nil {
		return nil, err
	}

	stats := ScheduleStats{Total: len(snapshot.appointments)}
	working := snapshot.appointments

	// Sequential pass: each resolution sees the occupancy established by
	// the ones before it.
	for i := range working {
		if !working[i].Status.CountsForOccupancy() {
			stats.Skipped++
			continue
		}
		assignment := e.resolveOne(ctx, working[i], snapshot, working)
		stats.Resolved++

		previous := Standardize(working[i].AssignedOfficeID)
		working[i].AssignedOfficeID = assignment.OfficeID
		working[i].AssignmentReason = assignment.Reason

		if previous == assignment.OfficeID {
			continue
		}
		stats.Changed++
		if err := e.repo.PersistAssignment(ctx, working[i]); err != nil {
			stats.PersistFailures++
			e.logger.Error("failed to persist assignment",
				zap.String("appointment", string(working[i].ID)),
				zap.Error(err))
			continue
		}
		e.audit.Record(AuditEntry{
			Timestamp:     e.now(),
			EventType:     AuditOfficeAssigned,
			AppointmentID: working[i].ID,
			Description:   assignment.Reason,
			Payload:       map[string]any{"office": assignment.OfficeID, "previous": previous},
		})
	}

	conflicts := e.detector.Detect(working)
	stats.ConflictsFound = len(conflicts)
	for _, c := range conflicts {
		e.audit.Record(AuditEntry{
			Timestamp:   e.now(),
			EventType:   AuditConflictDetected,
			Description: fmt.Sprintf("%s in %s (%s)", c.Type, c.OfficeID, c.TimeRange),
			Payload:     map[string]any{"appointments": c.AppointmentIDs},
		})
	}

	if e.autoRepair && len(conflicts) > 0 {
		resolved, remaining := e.repairConflicts(ctx, conflicts, working, snapshot, &stats)
		stats.ConflictsResolved = resolved
		conflicts = remaining
	}

	e.audit.Record(AuditEntry{
		Timestamp:   e.now(),
		EventType:   AuditScheduleGenerated,
		Description: fmt.Sprintf("daily schedule for %s", date.Format("2006-01-02")),
		Payload: map[string]any{
			"total":     stats.Total,
			"conflicts": stats.ConflictsFound,
		},
	})

	return &DailySchedule{
		Date:         date,
		Appointments: working,
		Conflicts:    conflicts,
		Stats:        stats,
	}, nil
}

// ResolveConflicts detects and repairs double-bookings for the given day
// without re-resolving assignments. Returns how many appointments were
// relocated. A zero date means the current business date.
func (e *Engine) ResolveConflicts(ctx context.Context, date time.Time) (int, error) {
	if date.IsZero() {
		date = e.BusinessDate()
	}
	snapshot, err := e.loadSnapshot(ctx, date)
	if err != nil {
		return 0, err
	}

	conflicts := e.detector.Detect(snapshot.appointments)
	if len(conflicts) == 0 {
		return 0, nil
	}
	var stats ScheduleStats
	resolved, _ := e.repairConflicts(ctx, conflicts, snapshot.appointments, snapshot, &stats)
	return resolved, nil
}

// ResolveAppointment runs the single-event path: resolve one appointment
// (typically from a webhook event) against the day's current occupancy and
// persist the result. Same ladder as the batch path.
func (e *Engine) ResolveAppointment(ctx context.Context, appt Appointment) (Assignment, error) {
	if !appt.Status.CountsForOccupancy() {
		return Assignment{}, fmt.Errorf("appointment %s is %s: nothing to place", appt.ID, appt.Status)
	}
	snapshot, err := e.loadSnapshot(ctx, appt.StartTime)
	if err != nil {
		return Assignment{}, err
	}

	assignment := e.resolveOne(ctx, appt, snapshot, snapshot.appointments)
	appt.AssignedOfficeID = assignment.OfficeID
	appt.AssignmentReason = assignment.Reason
	if err := e.repo.PersistAssignment(ctx, appt); err != nil {
		return assignment, &PersistenceError{AppointmentID: appt.ID, Cause: err}
	}
	e.audit.Record(AuditEntry{
		Timestamp:     e.now(),
		EventType:     AuditOfficeAssigned,
		AppointmentID: appt.ID,
		Description:   assignment.Reason,
		Payload:       map[string]any{"office": assignment.OfficeID},
	})
	return assignment, nil
}

// =============================================================================
// INTERNALS
// =============================================================================

type daySnapshot struct {
	date         time.Time
	offices      []Office
	clinicians   map[ClinicianID]Clinician
	appointments []Appointment
}

// loadSnapshot fetches everything one pass needs. Configuration or
// appointment reads failing entirely is systemic and aborts the call.
func (e *Engine) loadSnapshot(ctx context.Context, date time.Time) (*daySnapshot, error) {
	offices, err := e.repo.ActiveOffices(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: reading offices: %v", ErrRepositoryUnavailable, err)
	}
	clinicians, err := e.repo.Clinicians(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: reading clinicians: %v", ErrRepositoryUnavailable, err)
	}
	appointments, err := e.repo.AppointmentsForDay(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("%w: reading appointments: %v", ErrRepositoryUnavailable, err)
	}

	byID := make(map[ClinicianID]Clinician, len(clinicians))
	for _, c := range clinicians {
		byID[c.ID] = c
	}
	return &daySnapshot{
		date:         date,
		offices:      offices,
		clinicians:   byID,
		appointments: appointments,
	}, nil
}

// resolveOne builds the resolution context for a single appointment and
// runs the ladder. Profile/preference read failures degrade to nil rather
// than failing the appointment.
func (e *Engine) resolveOne(ctx context.Context, appt Appointment, snapshot *daySnapshot, sameDay []Appointment) Assignment {
	profile, err := e.repo.ClientProfile(ctx, appt.ClientID)
	if err != nil {
		e.logger.Warn("client profile unreadable, resolving without it",
			zap.String("client", string(appt.ClientID)),
			zap.Error(err))
		profile = nil
	}
	preference, err := e.repo.ClientPreference(ctx, appt.ClientID)
	if err != nil {
		e.logger.Warn("client preference unreadable, resolving without it",
			zap.String("client", string(appt.ClientID)),
			zap.Error(err))
		preference = nil
	}

	rctx := &ResolutionContext{
		Offices:    snapshot.offices,
		Clinicians: snapshot.clinicians,
		Profile:    profile,
		Preference: preference,
		SameDay:    sameDay,
		Defaults:   e.defaults,
	}
	return e.resolver.Resolve(appt, rctx)
}

// repairConflicts runs the conflict resolver and persists its relocations.
// Returns the relocation count and the conflicts still standing.
func (e *Engine) repairConflicts(ctx context.Context, conflicts []Conflict, working []Appointment, snapshot *daySnapshot, stats *ScheduleStats) (int, []Conflict) {
	rctx := &ResolutionContext{
		Offices:    snapshot.offices,
		Clinicians: snapshot.clinicians,
		SameDay:    working,
		Defaults:   e.defaults,
	}
	relocations, remaining := e.repairer.Resolve(conflicts, working, rctx)

	for _, move := range relocations {
		idx := indexOf(working, move.AppointmentID)
		if idx < 0 {
			continue
		}
		working[idx].AssignedOfficeID = move.ToOfficeID
		working[idx].AssignmentReason = "Conflict resolution: " + move.Reason
		if err := e.repo.PersistAssignment(ctx, working[idx]); err != nil {
			stats.PersistFailures++
			e.logger.Error("failed to persist relocation",
				zap.String("appointment", string(move.AppointmentID)),
				zap.Error(err))
			continue
		}
		e.audit.Record(AuditEntry{
			Timestamp:     e.now(),
			EventType:     AuditConflictResolved,
			AppointmentID: move.AppointmentID,
			Description:   move.Reason,
			Payload:       map[string]any{"from": move.FromOfficeID, "to": move.ToOfficeID},
		})
	}
	return len(relocations), remaining
}

func indexOf(appts []Appointment, id AppointmentID) int {
	for i := range appts {
		if appts[i].ID == id {
			return i
		}
	}
	return -1
}
