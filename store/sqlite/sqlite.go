/*
Package sqlite provides the SQLite-backed scheduling.Repository.

PURPOSE:
  Production persistence for practice configuration (offices, clinicians,
  assignment rules), client records, the appointment book, and the audit
  trail. The workbook importer writes configuration here; the engine reads
  snapshots and writes assignments back.

KEY TABLES:
  offices:            Bookable rooms plus the virtual slot, with entity flags
  clinicians:         Practitioners and their ordered office preferences
  assignment_rules:   Display/annotation form of the placement rules
  appointments:       The appointment book; assignment upserts land here
  client_profiles:    Accessibility requirements and hard office overrides
  client_preferences: Legacy preference records with free-text notes
  audit_log:          Append-only scheduling audit trail

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  repo, err := sqlite.New("./data/scheduler.db")
  if err != nil {
      log.Fatal(err)
  }
  defer repo.Close()

  engine := scheduling.NewEngine(repo)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - scheduling/repository.go: the interface this implements
  - scheduling/store: in-memory implementation for tests
  - store/sheets: workbook import that feeds the configuration tables
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/catalyst-eval/catalyst-scheduler/scheduling"
)

// Store implements scheduling.Repository using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a SQLite store at the given path. Use ":memory:" for an
// in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Offices (rooms plus the virtual slot)
	CREATE TABLE IF NOT EXISTS offices (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		accessible BOOLEAN NOT NULL DEFAULT FALSE,
		floor TEXT NOT NULL DEFAULT 'upper',
		size TEXT NOT NULL DEFAULT 'medium',
		features_json TEXT,
		child_friendly BOOLEAN NOT NULL DEFAULT FALSE,
		break_room BOOLEAN NOT NULL DEFAULT FALSE,
		primary_clinician TEXT,
		alternate_clinicians_json TEXT,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_offices_active ON offices(active);

	-- Clinicians
	CREATE TABLE IF NOT EXISTS clinicians (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		preferred_offices_json TEXT,
		age_range_min INTEGER NOT NULL DEFAULT 0,
		age_range_max INTEGER NOT NULL DEFAULT 0,
		specialties_json TEXT,
		updated_at TEXT NOT NULL
	);

	-- Assignment rules (display/annotation form)
	CREATE TABLE IF NOT EXISTS assignment_rules (
		priority INTEGER PRIMARY KEY,
		rule_type TEXT NOT NULL,
		condition TEXT NOT NULL DEFAULT '',
		office_ids_json TEXT,
		override_level TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at TEXT NOT NULL
	);

	-- Appointment book
	CREATE TABLE IF NOT EXISTS appointments (
		id TEXT PRIMARY KEY,
		client_id TEXT NOT NULL DEFAULT '',
		client_name TEXT NOT NULL DEFAULT '',
		client_age INTEGER,
		clinician_id TEXT NOT NULL DEFAULT '',
		clinician_name TEXT NOT NULL DEFAULT '',
		start_time TEXT NOT NULL,
		end_time TEXT NOT NULL,
		session_type TEXT NOT NULL DEFAULT 'in-person',
		status TEXT NOT NULL DEFAULT 'scheduled',
		needs_accessible BOOLEAN NOT NULL DEFAULT FALSE,
		required_features_json TEXT,
		assigned_office_id TEXT NOT NULL DEFAULT '',
		current_office_id TEXT NOT NULL DEFAULT '',
		legacy_office_id TEXT NOT NULL DEFAULT '',
		assignment_reason TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL
	);

	-- Day snapshot reads are the hot path
	CREATE INDEX IF NOT EXISTS idx_appointments_start
		ON appointments(start_time);
	CREATE INDEX IF NOT EXISTS idx_appointments_clinician
		ON appointments(clinician_id, start_time);

	-- Client accessibility profiles
	CREATE TABLE IF NOT EXISTS client_profiles (
		client_id TEXT PRIMARY KEY,
		mobility_needs BOOLEAN NOT NULL DEFAULT FALSE,
		mobility_detail TEXT NOT NULL DEFAULT '',
		sensory_needs BOOLEAN NOT NULL DEFAULT FALSE,
		sensory_detail TEXT NOT NULL DEFAULT '',
		physical_needs BOOLEAN NOT NULL DEFAULT FALSE,
		physical_detail TEXT NOT NULL DEFAULT '',
		support_needs BOOLEAN NOT NULL DEFAULT FALSE,
		support_detail TEXT NOT NULL DEFAULT '',
		room_consistency INTEGER NOT NULL DEFAULT 0,
		required_office TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL
	);

	-- Legacy client preferences
	CREATE TABLE IF NOT EXISTS client_preferences (
		client_id TEXT PRIMARY KEY,
		assigned_office TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		updated_at TEXT NOT NULL
	);

	-- Audit trail (append-only)
	CREATE TABLE IF NOT EXISTS audit_log (
		id TEXT PRIMARY KEY,
		timestamp TEXT NOT NULL,
		event_type TEXT NOT NULL,
		appointment_id TEXT,
		description TEXT NOT NULL DEFAULT '',
		payload_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_log(timestamp);
	CREATE INDEX IF NOT EXISTS idx_audit_event_type ON audit_log(event_type);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// REPOSITORY READS (scheduling.Repository interface)
// =============================================================================

// ActiveOffices returns offices with the active flag set, ordered by id.
func (s *Store) ActiveOffices(ctx context.Context) ([]scheduling.Office, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, name, active, accessible, floor, size, features_json,
		       child_friendly, break_room, primary_clinician, alternate_clinicians_json
		FROM offices
		WHERE active = TRUE
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query offices: %w", err)
	}
	defer rows.Close()

	var offices []scheduling.Office
	for rows.Next() {
		o, err := scanOffice(rows)
		if err != nil {
			return nil, err
		}
		offices = append(offices, o)
	}
	return offices, rows.Err()
}

func scanOffice(rows *sql.Rows) (scheduling.Office, error) {
	var (
		o                scheduling.Office
		featuresJSON     sql.NullString
		primaryClinician sql.NullString
		alternatesJSON   sql.NullString
	)

	err := rows.Scan(&o.ID, &o.Name, &o.Active, &o.Accessible, &o.Floor, &o.Size,
		&featuresJSON, &o.ChildFriendly, &o.BreakRoom, &primaryClinician, &alternatesJSON)
	if err != nil {
		return o, fmt.Errorf("failed to scan office: %w", err)
	}

	o.Features = decodeStrings(featuresJSON)
	o.PrimaryClinician = scheduling.ClinicianID(primaryClinician.String)
	for _, id := range decodeStrings(alternatesJSON) {
		o.AlternateClinicians = append(o.AlternateClinicians, scheduling.ClinicianID(id))
	}
	return o, nil
}

// Clinicians returns all configured clinicians, ordered by id.
func (s *Store) Clinicians(ctx context.Context) ([]scheduling.Clinician, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, name, preferred_offices_json, age_range_min, age_range_max, specialties_json
		FROM clinicians
		ORDER BY id ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query clinicians: %w", err)
	}
	defer rows.Close()

	var clinicians []scheduling.Clinician
	for rows.Next() {
		var c scheduling.Clinician
		var preferredJSON, specialtiesJSON sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &preferredJSON,
			&c.AgeRangeMin, &c.AgeRangeMax, &specialtiesJSON); err != nil {
			return nil, fmt.Errorf("failed to scan clinician: %w", err)
		}
		for _, id := range decodeStrings(preferredJSON) {
			c.PreferredOffices = append(c.PreferredOffices, scheduling.OfficeID(id))
		}
		c.Specialties = decodeStrings(specialtiesJSON)
		clinicians = append(clinicians, c)
	}
	return clinicians, rows.Err()
}

// AssignmentRules returns the stored rule table ordered by priority, highest
// first.
func (s *Store) AssignmentRules(ctx context.Context) ([]scheduling.AssignmentRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT priority, rule_type, condition, office_ids_json, override_level, active
		FROM assignment_rules
		ORDER BY priority DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignment rules: %w", err)
	}
	defer rows.Close()

	var rules []scheduling.AssignmentRule
	for rows.Next() {
		var r scheduling.AssignmentRule
		var officeIDsJSON sql.NullString
		if err := rows.Scan(&r.Priority, &r.RuleType, &r.Condition,
			&officeIDsJSON, &r.OverrideLevel, &r.Active); err != nil {
			return nil, fmt.Errorf("failed to scan assignment rule: %w", err)
		}
		for _, id := range decodeStrings(officeIDsJSON) {
			r.OfficeIDs = append(r.OfficeIDs, scheduling.OfficeID(id))
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// ClientProfile returns the client's accessibility profile, or nil when none
// exists.
func (s *Store) ClientProfile(ctx context.Context, clientID scheduling.ClientID) (*scheduling.ClientAccessibilityProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p scheduling.ClientAccessibilityProfile
	err := s.db.QueryRowContext(ctx, `
		SELECT client_id, mobility_needs, mobility_detail, sensory_needs, sensory_detail,
		       physical_needs, physical_detail, support_needs, support_detail,
		       room_consistency, required_office
		FROM client_profiles WHERE client_id = ?`,
		clientID,
	).Scan(&p.ClientID, &p.MobilityNeeds, &p.MobilityDetail, &p.SensoryNeeds, &p.SensoryDetail,
		&p.PhysicalNeeds, &p.PhysicalDetail, &p.SupportNeeds, &p.SupportDetail,
		&p.RoomConsistency, &p.RequiredOffice)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query client profile: %w", err)
	}
	return &p, nil
}

// ClientPreference returns the legacy preference record, or nil.
func (s *Store) ClientPreference(ctx context.Context, clientID scheduling.ClientID) (*scheduling.ClientPreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p scheduling.ClientPreference
	err := s.db.QueryRowContext(ctx,
		"SELECT client_id, assigned_office, notes FROM client_preferences WHERE client_id = ?",
		clientID,
	).Scan(&p.ClientID, &p.AssignedOffice, &p.Notes)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query client preference: %w", err)
	}
	return &p, nil
}

// AppointmentsForDay returns every appointment whose window starts on the
// given calendar day, in start-time order. Timestamps are stored in UTC;
// the day boundary is taken in the caller's location.
func (s *Store) AppointmentsForDay(ctx context.Context, day time.Time) ([]scheduling.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	query := `
		SELECT id, client_id, client_name, client_age, clinician_id, clinician_name,
		       start_time, end_time, session_type, status, needs_accessible,
		       required_features_json, assigned_office_id, current_office_id,
		       legacy_office_id, assignment_reason
		FROM appointments
		WHERE start_time >= ? AND start_time < ?
		ORDER BY start_time ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query,
		dayStart.UTC().Format(time.RFC3339), dayEnd.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()

	var appointments []scheduling.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		appointments = append(appointments, appt)
	}
	return appointments, rows.Err()
}

func scanAppointment(rows *sql.Rows) (scheduling.Appointment, error) {
	var (
		a            scheduling.Appointment
		clientAge    sql.NullInt64
		startTime    string
		endTime      string
		featuresJSON sql.NullString
	)

	err := rows.Scan(&a.ID, &a.ClientID, &a.ClientName, &clientAge,
		&a.ClinicianID, &a.ClinicianName, &startTime, &endTime,
		&a.SessionType, &a.Status, &a.NeedsAccessible, &featuresJSON,
		&a.AssignedOfficeID, &a.CurrentOfficeID, &a.LegacyOfficeID, &a.AssignmentReason)
	if err != nil {
		return a, fmt.Errorf("failed to scan appointment: %w", err)
	}

	if clientAge.Valid {
		age := int(clientAge.Int64)
		a.ClientAge = &age
	}
	a.StartTime, _ = time.Parse(time.RFC3339, startTime)
	a.EndTime, _ = time.Parse(time.RFC3339, endTime)
	a.RequiredFeatures = decodeStrings(featuresJSON)
	return a, nil
}

// =============================================================================
// REPOSITORY WRITES
// =============================================================================

// PersistAssignment upserts the appointment's assignment. An existing row
// keeps its booking fields and only the assigned office and reason change;
// a new row is inserted whole. Idempotent.
func (s *Store) PersistAssignment(ctx context.Context, appt scheduling.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.upsertAppointment(ctx, appt, `
		ON CONFLICT(id) DO UPDATE SET
			assigned_office_id = excluded.assigned_office_id,
			assignment_reason = excluded.assignment_reason,
			updated_at = excluded.updated_at
	`)
}

// SaveAppointment upserts the full appointment record, booking fields
// included. The webhook path and bulk import use this.
func (s *Store) SaveAppointment(ctx context.Context, appt scheduling.Appointment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.upsertAppointment(ctx, appt, `
		ON CONFLICT(id) DO UPDATE SET
			client_id = excluded.client_id,
			client_name = excluded.client_name,
			client_age = excluded.client_age,
			clinician_id = excluded.clinician_id,
			clinician_name = excluded.clinician_name,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			session_type = excluded.session_type,
			status = excluded.status,
			needs_accessible = excluded.needs_accessible,
			required_features_json = excluded.required_features_json,
			assigned_office_id = excluded.assigned_office_id,
			current_office_id = excluded.current_office_id,
			legacy_office_id = excluded.legacy_office_id,
			assignment_reason = excluded.assignment_reason,
			updated_at = excluded.updated_at
	`)
}

func (s *Store) upsertAppointment(ctx context.Context, appt scheduling.Appointment, conflictClause string) error {
	var clientAge sql.NullInt64
	if appt.ClientAge != nil {
		clientAge = sql.NullInt64{Int64: int64(*appt.ClientAge), Valid: true}
	}

	query := `
		INSERT INTO appointments
		(id, client_id, client_name, client_age, clinician_id, clinician_name,
		 start_time, end_time, session_type, status, needs_accessible,
		 required_features_json, assigned_office_id, current_office_id,
		 legacy_office_id, assignment_reason, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	` + conflictClause

	_, err := s.db.ExecContext(ctx, query,
		appt.ID, appt.ClientID, appt.ClientName, clientAge,
		appt.ClinicianID, appt.ClinicianName,
		appt.StartTime.UTC().Format(time.RFC3339),
		appt.EndTime.UTC().Format(time.RFC3339),
		appt.SessionType, appt.Status, appt.NeedsAccessible,
		encodeStrings(appt.RequiredFeatures),
		appt.AssignedOfficeID, appt.CurrentOfficeID, appt.LegacyOfficeID,
		appt.AssignmentReason,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to persist appointment: %w", err)
	}
	return nil
}

// AppendAuditEntry records one audit event.
func (s *Store) AppendAuditEntry(ctx context.Context, entry scheduling.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payloadJSON, _ := json.Marshal(entry.Payload)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, timestamp, event_type, appointment_id, description, payload_json)
		VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Timestamp.UTC().Format(time.RFC3339),
		entry.EventType,
		nullString(string(entry.AppointmentID)),
		entry.Description,
		string(payloadJSON),
	)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// =============================================================================
// CONFIGURATION WRITES (workbook import and admin tooling)
// =============================================================================

// SaveOffice upserts one office record.
func (s *Store) SaveOffice(ctx context.Context, o scheduling.Office) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	alternates := make([]string, 0, len(o.AlternateClinicians))
	for _, id := range o.AlternateClinicians {
		alternates = append(alternates, string(id))
	}

	query := `
		INSERT INTO offices
		(id, name, active, accessible, floor, size, features_json,
		 child_friendly, break_room, primary_clinician, alternate_clinicians_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			active = excluded.active,
			accessible = excluded.accessible,
			floor = excluded.floor,
			size = excluded.size,
			features_json = excluded.features_json,
			child_friendly = excluded.child_friendly,
			break_room = excluded.break_room,
			primary_clinician = excluded.primary_clinician,
			alternate_clinicians_json = excluded.alternate_clinicians_json,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		o.ID, o.Name, o.Active, o.Accessible, o.Floor, o.Size,
		encodeStrings(o.Features), o.ChildFriendly, o.BreakRoom,
		nullString(string(o.PrimaryClinician)),
		encodeStrings(alternates),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// SaveClinician upserts one clinician record.
func (s *Store) SaveClinician(ctx context.Context, c scheduling.Clinician) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	preferred := make([]string, 0, len(c.PreferredOffices))
	for _, id := range c.PreferredOffices {
		preferred = append(preferred, string(id))
	}

	query := `
		INSERT INTO clinicians
		(id, name, preferred_offices_json, age_range_min, age_range_max, specialties_json, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			preferred_offices_json = excluded.preferred_offices_json,
			age_range_min = excluded.age_range_min,
			age_range_max = excluded.age_range_max,
			specialties_json = excluded.specialties_json,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.Name, encodeStrings(preferred),
		c.AgeRangeMin, c.AgeRangeMax, encodeStrings(c.Specialties),
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// SaveAssignmentRule upserts one rule row, keyed by priority.
func (s *Store) SaveAssignmentRule(ctx context.Context, r scheduling.AssignmentRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	officeIDs := make([]string, 0, len(r.OfficeIDs))
	for _, id := range r.OfficeIDs {
		officeIDs = append(officeIDs, string(id))
	}

	query := `
		INSERT INTO assignment_rules
		(priority, rule_type, condition, office_ids_json, override_level, active, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(priority) DO UPDATE SET
			rule_type = excluded.rule_type,
			condition = excluded.condition,
			office_ids_json = excluded.office_ids_json,
			override_level = excluded.override_level,
			active = excluded.active,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		r.Priority, r.RuleType, r.Condition, encodeStrings(officeIDs),
		r.OverrideLevel, r.Active,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// SaveClientProfile upserts one accessibility profile.
func (s *Store) SaveClientProfile(ctx context.Context, p scheduling.ClientAccessibilityProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO client_profiles
		(client_id, mobility_needs, mobility_detail, sensory_needs, sensory_detail,
		 physical_needs, physical_detail, support_needs, support_detail,
		 room_consistency, required_office, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_id) DO UPDATE SET
			mobility_needs = excluded.mobility_needs,
			mobility_detail = excluded.mobility_detail,
			sensory_needs = excluded.sensory_needs,
			sensory_detail = excluded.sensory_detail,
			physical_needs = excluded.physical_needs,
			physical_detail = excluded.physical_detail,
			support_needs = excluded.support_needs,
			support_detail = excluded.support_detail,
			room_consistency = excluded.room_consistency,
			required_office = excluded.required_office,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		p.ClientID, p.MobilityNeeds, p.MobilityDetail, p.SensoryNeeds, p.SensoryDetail,
		p.PhysicalNeeds, p.PhysicalDetail, p.SupportNeeds, p.SupportDetail,
		p.RoomConsistency, p.RequiredOffice,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// SaveClientPreference upserts one legacy preference record.
func (s *Store) SaveClientPreference(ctx context.Context, p scheduling.ClientPreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO client_preferences (client_id, assigned_office, notes, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(client_id) DO UPDATE SET
			assigned_office = excluded.assigned_office,
			notes = excluded.notes,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		p.ClientID, p.AssignedOffice, p.Notes,
		time.Now().UTC().Format(time.RFC3339),
	)
	return err
}

// =============================================================================
// UTILITIES
// =============================================================================

// Appointment returns one appointment by id, or ErrAppointmentNotFound.
func (s *Store) Appointment(ctx context.Context, id scheduling.AppointmentID) (scheduling.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, client_id, client_name, client_age, clinician_id, clinician_name,
		       start_time, end_time, session_type, status, needs_accessible,
		       required_features_json, assigned_office_id, current_office_id,
		       legacy_office_id, assignment_reason
		FROM appointments
		WHERE id = ?
	`

	rows, err := s.db.QueryContext(ctx, query, id)
	if err != nil {
		return scheduling.Appointment{}, fmt.Errorf("failed to query appointment: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return scheduling.Appointment{}, err
		}
		return scheduling.Appointment{}, scheduling.ErrAppointmentNotFound
	}
	return scanAppointment(rows)
}

// AuditEntries returns the most recent audit entries, newest first.
func (s *Store) AuditEntries(ctx context.Context, limit int) ([]scheduling.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, timestamp, event_type, appointment_id, description, payload_json
		FROM audit_log
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []scheduling.AuditEntry
	for rows.Next() {
		var (
			e             scheduling.AuditEntry
			timestamp     string
			appointmentID sql.NullString
			payloadJSON   sql.NullString
		)
		if err := rows.Scan(&e.ID, &timestamp, &e.EventType,
			&appointmentID, &e.Description, &payloadJSON); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		e.Timestamp, _ = time.Parse(time.RFC3339, timestamp)
		e.AppointmentID = scheduling.AppointmentID(appointmentID.String)
		if payloadJSON.Valid && payloadJSON.String != "" {
			json.Unmarshal([]byte(payloadJSON.String), &e.Payload)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"appointments", "offices", "clinicians", "assignment_rules",
		"client_profiles", "client_preferences", "audit_log"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func encodeStrings(values []string) sql.NullString {
	if len(values) == 0 {
		return sql.NullString{}
	}
	data, _ := json.Marshal(values)
	return sql.NullString{String: string(data), Valid: true}
}

func decodeStrings(ns sql.NullString) []string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var values []string
	json.Unmarshal([]byte(ns.String), &values)
	return values
}
