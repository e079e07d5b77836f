// Package store provides Repository implementations.
package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/catalyst-eval/catalyst-scheduler/scheduling"
)

// =============================================================================
// MEMORY REPOSITORY - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu           sync.RWMutex
	offices      map[scheduling.OfficeID]scheduling.Office
	clinicians   map[scheduling.ClinicianID]scheduling.Clinician
	rules        []scheduling.AssignmentRule
	profiles     map[scheduling.ClientID]scheduling.ClientAccessibilityProfile
	preferences  map[scheduling.ClientID]scheduling.ClientPreference
	appointments map[scheduling.AppointmentID]scheduling.Appointment
	audit        []scheduling.AuditEntry

	// Insertion order of appointments, so AppointmentsForDay returns a
	// stable sequence.
	apptOrder []scheduling.AppointmentID
}

func NewMemory() *Memory {
	return &Memory{
		offices:      make(map[scheduling.OfficeID]scheduling.Office),
		clinicians:   make(map[scheduling.ClinicianID]scheduling.Clinician),
		profiles:     make(map[scheduling.ClientID]scheduling.ClientAccessibilityProfile),
		preferences:  make(map[scheduling.ClientID]scheduling.ClientPreference),
		appointments: make(map[scheduling.AppointmentID]scheduling.Appointment),
	}
}

// =============================================================================
// SEEDING - Test/dev setup helpers
// =============================================================================

func (m *Memory) PutOffice(o scheduling.Office) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offices[o.ID] = o
}

func (m *Memory) PutClinician(c scheduling.Clinician) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clinicians[c.ID] = c
}

func (m *Memory) PutRule(r scheduling.AssignmentRule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, r)
}

func (m *Memory) PutProfile(p scheduling.ClientAccessibilityProfile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ClientID] = p
}

func (m *Memory) PutPreference(p scheduling.ClientPreference) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.preferences[p.ClientID] = p
}

func (m *Memory) PutAppointment(a scheduling.Appointment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.appointments[a.ID]; !exists {
		m.apptOrder = append(m.apptOrder, a.ID)
	}
	m.appointments[a.ID] = a
}

// =============================================================================
// REPOSITORY CONTRACT
// =============================================================================

func (m *Memory) ActiveOffices(_ context.Context) ([]scheduling.Office, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []scheduling.Office
	for _, o := range m.offices {
		if o.Active {
			result = append(result, o)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) Clinicians(_ context.Context) ([]scheduling.Clinician, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []scheduling.Clinician
	for _, c := range m.clinicians {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) AssignmentRules(_ context.Context) ([]scheduling.AssignmentRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]scheduling.AssignmentRule, len(m.rules))
	copy(result, m.rules)
	return result, nil
}

func (m *Memory) ClientProfile(_ context.Context, clientID scheduling.ClientID) (*scheduling.ClientAccessibilityProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.profiles[clientID]; ok {
		cp := p
		return &cp, nil
	}
	return nil, nil
}

func (m *Memory) ClientPreference(_ context.Context, clientID scheduling.ClientID) (*scheduling.ClientPreference, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if p, ok := m.preferences[clientID]; ok {
		cp := p
		return &cp, nil
	}
	return nil, nil
}

func (m *Memory) AppointmentsForDay(_ context.Context, day time.Time) ([]scheduling.Appointment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var result []scheduling.Appointment
	for _, id := range m.apptOrder {
		a := m.appointments[id]
		if sameDay(a.StartTime, day) {
			result = append(result, a)
		}
	}
	return result, nil
}

// PersistAssignment upserts the assigned office and reason. Idempotent.
func (m *Memory) PersistAssignment(_ context.Context, appt scheduling.Appointment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.appointments[appt.ID]
	if !ok {
		m.apptOrder = append(m.apptOrder, appt.ID)
		m.appointments[appt.ID] = appt
		return nil
	}
	existing.AssignedOfficeID = appt.AssignedOfficeID
	existing.AssignmentReason = appt.AssignmentReason
	m.appointments[appt.ID] = existing
	return nil
}

// SaveOffice upserts one office row.
func (m *Memory) SaveOffice(_ context.Context, o scheduling.Office) error {
	m.PutOffice(o)
	return nil
}

// SaveClinician upserts one clinician row.
func (m *Memory) SaveClinician(_ context.Context, c scheduling.Clinician) error {
	m.PutClinician(c)
	return nil
}

// SaveAssignmentRule appends one rule row.
func (m *Memory) SaveAssignmentRule(_ context.Context, r scheduling.AssignmentRule) error {
	m.PutRule(r)
	return nil
}

// SaveAppointment upserts the full record, booking fields included. The
// webhook path uses this before re-resolving.
func (m *Memory) SaveAppointment(_ context.Context, appt scheduling.Appointment) error {
	m.PutAppointment(appt)
	return nil
}

func (m *Memory) AppendAuditEntry(_ context.Context, entry scheduling.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, entry)
	return nil
}

// AuditEntries returns a copy of the recorded audit trail.
func (m *Memory) AuditEntries() []scheduling.AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]scheduling.AuditEntry, len(m.audit))
	copy(result, m.audit)
	return result
}

// Appointment returns the stored appointment by id.
func (m *Memory) Appointment(id scheduling.AppointmentID) (scheduling.Appointment, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.appointments[id]
	return a, ok
}

func sameDay(t, day time.Time) bool {
	t = t.In(day.Location())
	return t.Year() == day.Year() && t.Month() == day.Month() && t.Day() == day.Day()
}
