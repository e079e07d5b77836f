/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - scheduling/types.go: The domain types these mirror
*/
package api

import (
	"time"

	"github.com/catalyst-eval/catalyst-scheduler/scheduling"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// OfficeDTO represents an office in API responses.
type OfficeDTO struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	Active              bool     `json:"active"`
	Accessible          bool     `json:"accessible"`
	Floor               string   `json:"floor"`
	Size                string   `json:"size"`
	Features            []string `json:"features,omitempty"`
	ChildFriendly       bool     `json:"child_friendly"`
	BreakRoom           bool     `json:"break_room"`
	PrimaryClinician    string   `json:"primary_clinician,omitempty"`
	AlternateClinicians []string `json:"alternate_clinicians,omitempty"`
}

// ClinicianDTO represents a clinician in API responses.
type ClinicianDTO struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	PreferredOffices []string `json:"preferred_offices,omitempty"`
	AgeRangeMin      int      `json:"age_range_min"`
	AgeRangeMax      int      `json:"age_range_max"`
	Specialties      []string `json:"specialties,omitempty"`
}

// RuleDTO represents one stored assignment rule.
type RuleDTO struct {
	Priority      int      `json:"priority"`
	RuleType      string   `json:"rule_type"`
	Condition     string   `json:"condition,omitempty"`
	OfficeIDs     []string `json:"office_ids,omitempty"`
	OverrideLevel string   `json:"override_level,omitempty"`
	Active        bool     `json:"active"`
}

// AppointmentDTO represents an appointment with its assignment.
type AppointmentDTO struct {
	ID               string `json:"id"`
	ClientName       string `json:"client_name"`
	ClinicianID      string `json:"clinician_id"`
	ClinicianName    string `json:"clinician_name"`
	StartTime        string `json:"start_time"`
	EndTime          string `json:"end_time"`
	SessionType      string `json:"session_type"`
	Status           string `json:"status"`
	AssignedOffice   string `json:"assigned_office"`
	AssignmentReason string `json:"assignment_reason,omitempty"`
}

// ConflictDTO represents one detected double-booking.
type ConflictDTO struct {
	Type           string   `json:"type"`
	OfficeID       string   `json:"office_id"`
	TimeRange      string   `json:"time_range"`
	AppointmentIDs []string `json:"appointment_ids"`
	ClinicianNames []string `json:"clinician_names,omitempty"`
	Severity       string   `json:"severity"`
	Suggestion     string   `json:"suggestion,omitempty"`
}

// GenerateScheduleRequest asks for a day's schedule to be regenerated.
// An empty date means the current business date.
type GenerateScheduleRequest struct {
	Date string `json:"date"` // YYYY-MM-DD
}

// ScheduleResponse is the result of a generation or read.
type ScheduleResponse struct {
	Date         string                    `json:"date"`
	Appointments []AppointmentDTO          `json:"appointments"`
	Conflicts    []ConflictDTO             `json:"conflicts"`
	Stats        *scheduling.ScheduleStats `json:"stats,omitempty"`
}

// ResolveConflictsResponse reports a repair-only pass.
type ResolveConflictsResponse struct {
	Date      string `json:"date"`
	Relocated int    `json:"relocated"`
}

// WebhookResponse acknowledges a processed webhook delivery.
type WebhookResponse struct {
	EventType      string `json:"event_type"`
	AppointmentID  string `json:"appointment_id"`
	AssignedOffice string `json:"assigned_office,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// ImportResponse reports a workbook import.
type ImportResponse struct {
	Offices      int `json:"offices"`
	Clinicians   int `json:"clinicians"`
	Rules        int `json:"rules"`
	Appointments int `json:"appointments"`
	SkippedRows  int `json:"skipped_rows"`
}

// AuditEntryDTO is one audit trail line.
type AuditEntryDTO struct {
	ID            string         `json:"id"`
	Timestamp     string         `json:"timestamp"`
	EventType     string         `json:"event_type"`
	AppointmentID string         `json:"appointment_id,omitempty"`
	Description   string         `json:"description,omitempty"`
	Payload       map[string]any `json:"payload,omitempty"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// MAPPERS
// =============================================================================

func toOfficeDTO(o scheduling.Office) OfficeDTO {
	dto := OfficeDTO{
		ID:               string(o.ID),
		Name:             o.Name,
		Active:           o.Active,
		Accessible:       o.Accessible,
		Floor:            string(o.Floor),
		Size:             string(o.Size),
		Features:         o.Features,
		ChildFriendly:    o.ChildFriendly,
		BreakRoom:        o.BreakRoom,
		PrimaryClinician: string(o.PrimaryClinician),
	}
	for _, id := range o.AlternateClinicians {
		dto.AlternateClinicians = append(dto.AlternateClinicians, string(id))
	}
	return dto
}

func toClinicianDTO(c scheduling.Clinician) ClinicianDTO {
	dto := ClinicianDTO{
		ID:          string(c.ID),
		Name:        c.Name,
		AgeRangeMin: c.AgeRangeMin,
		AgeRangeMax: c.AgeRangeMax,
		Specialties: c.Specialties,
	}
	for _, id := range c.PreferredOffices {
		dto.PreferredOffices = append(dto.PreferredOffices, string(id))
	}
	return dto
}

func toRuleDTO(r scheduling.AssignmentRule) RuleDTO {
	dto := RuleDTO{
		Priority:      r.Priority,
		RuleType:      r.RuleType,
		Condition:     r.Condition,
		OverrideLevel: r.OverrideLevel,
		Active:        r.Active,
	}
	for _, id := range r.OfficeIDs {
		dto.OfficeIDs = append(dto.OfficeIDs, string(id))
	}
	return dto
}

func toAppointmentDTO(a scheduling.Appointment) AppointmentDTO {
	return AppointmentDTO{
		ID:               string(a.ID),
		ClientName:       a.ClientName,
		ClinicianID:      string(a.ClinicianID),
		ClinicianName:    a.ClinicianName,
		StartTime:        a.StartTime.Format(time.RFC3339),
		EndTime:          a.EndTime.Format(time.RFC3339),
		SessionType:      string(a.SessionType),
		Status:           string(a.Status),
		AssignedOffice:   a.EffectiveOfficeID(),
		AssignmentReason: a.AssignmentReason,
	}
}

func toConflictDTO(c scheduling.Conflict) ConflictDTO {
	dto := ConflictDTO{
		Type:           string(c.Type),
		OfficeID:       c.OfficeID,
		TimeRange:      c.TimeRange,
		ClinicianNames: c.ClinicianNames,
		Severity:       string(c.Severity),
		Suggestion:     c.Suggestion,
	}
	for _, id := range c.AppointmentIDs {
		dto.AppointmentIDs = append(dto.AppointmentIDs, string(id))
	}
	return dto
}

func toAuditEntryDTO(e scheduling.AuditEntry) AuditEntryDTO {
	return AuditEntryDTO{
		ID:            e.ID,
		Timestamp:     e.Timestamp.Format(time.RFC3339),
		EventType:     string(e.EventType),
		AppointmentID: string(e.AppointmentID),
		Description:   e.Description,
		Payload:       e.Payload,
	}
}
