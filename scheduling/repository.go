/*
repository.go - Persistence contract consumed by the core

PURPOSE:
  The core reads configuration and appointment snapshots through this
  interface and writes proposed assignments back through it. Storage
  technology is irrelevant here; store/sqlite implements it for production
  and store.Memory for tests.

CONTRACT NOTES:
  - AppointmentsForDay returns all statuses; the core filters.
  - PersistAssignment is an idempotent upsert keyed by appointment id.
  - AppendAuditEntry is fire-and-forget: a failure must never abort a
    scheduling run (the audit batcher enforces this).

SEE ALSO:
  - store/sqlite: production implementation
  - scheduling/store: in-memory implementation
  - audit: batching wrapper around AppendAuditEntry
*/
package scheduling

import (
	"context"
	"time"
)

// Repository is the storage collaborator the core depends on.
type Repository interface {
	// ActiveOffices returns offices with the active flag set.
	ActiveOffices(ctx context.Context) ([]Office, error)

	// Clinicians returns all configured clinicians.
	Clinicians(ctx context.Context) ([]Clinician, error)

	// AssignmentRules returns the stored rule table (display/audit only;
	// the resolver runs the built-in ladder).
	AssignmentRules(ctx context.Context) ([]AssignmentRule, error)

	// ClientProfile returns the client's accessibility profile, or nil when
	// none exists.
	ClientProfile(ctx context.Context, clientID ClientID) (*ClientAccessibilityProfile, error)

	// ClientPreference returns the legacy preference record, or nil.
	ClientPreference(ctx context.Context, clientID ClientID) (*ClientPreference, error)

	// AppointmentsForDay returns every appointment whose window starts on
	// the given calendar day, in any lifecycle status.
	AppointmentsForDay(ctx context.Context, day time.Time) ([]Appointment, error)

	// PersistAssignment upserts the appointment's assigned office and
	// reason. Idempotent.
	PersistAssignment(ctx context.Context, appt Appointment) error

	// AppendAuditEntry records one audit event. Implementations must not
	// let a failure here propagate into scheduling decisions.
	AppendAuditEntry(ctx context.Context, entry AuditEntry) error
}

// =============================================================================
// AUDIT TRAIL
// =============================================================================

// AuditEventType is the closed set of audit event kinds.
type AuditEventType string

const (
	AuditScheduleGenerated  AuditEventType = "schedule_generated"
	AuditOfficeAssigned     AuditEventType = "office_assigned"
	AuditConflictDetected   AuditEventType = "conflict_detected"
	AuditConflictResolved   AuditEventType = "conflict_resolved"
	AuditAssignmentError    AuditEventType = "assignment_error"
	AuditWebhookReceived    AuditEventType = "webhook_received"
	AuditImportCompleted    AuditEventType = "import_completed"
	AuditMaintenanceStarted AuditEventType = "maintenance_started"
)

// AuditEntry is one line of the scheduling audit trail.
type AuditEntry struct {
	ID            string
	Timestamp     time.Time
	EventType     AuditEventType
	AppointmentID AppointmentID
	Description   string
	Payload       map[string]any
}

// AuditSink receives audit entries. The audit batcher implements this over
// Repository.AppendAuditEntry; tests use a slice-backed fake.
type AuditSink interface {
	Record(entry AuditEntry)
}

// NopAuditSink discards entries.
type NopAuditSink struct{}

func (NopAuditSink) Record(AuditEntry) {}
