/*
Package scheduling contains the office assignment core.

PURPOSE:
  This package holds the domain model and the three algorithmic pieces of the
  scheduler: the office assignment resolver (ordered rule ladder), the
  availability checker (interval overlap over a day's appointments), and the
  conflict detector/resolver (double-booking audit and repair).

KEY CONCEPTS IN THIS FILE (types.go):
  - Office/Clinician/Appointment: configuration and booking entities
  - SessionType/AppointmentStatus: closed string enums
  - RuleTier: the resolver's priority ladder, one constant per rule
  - Conflict: a detected double-booking, recomputed each pass, never stored

DESIGN PRINCIPLES:
  1. The core reads snapshots and returns proposed mutations; it never
     persists anything itself.
  2. Office ids are compared only in canonical form (see office.go).
  3. All enums are closed types referenced everywhere; no ad hoc string
     literals scattered across call sites.

SEE ALSO:
  - office.go: id normalization
  - resolver.go: the tier ladder
  - detector.go / repair.go: conflict handling
*/
package scheduling

import (
	"fmt"
	"time"
)

// =============================================================================
// IDENTIFIERS - Type-safe ids prevent mixing entity kinds
// =============================================================================

type OfficeID string
type ClinicianID string
type AppointmentID string
type ClientID string

// =============================================================================
// SESSION TYPE / STATUS - Closed enums
// =============================================================================

// SessionType classifies how a session is delivered.
type SessionType string

const (
	SessionInPerson   SessionType = "in-person"
	SessionTelehealth SessionType = "telehealth"
	SessionGroup      SessionType = "group"
	SessionFamily     SessionType = "family"
)

// IsTelehealth reports whether the session occupies no physical room.
func (s SessionType) IsTelehealth() bool { return s == SessionTelehealth }

// AppointmentStatus is the booking lifecycle state.
type AppointmentStatus string

const (
	StatusScheduled   AppointmentStatus = "scheduled"
	StatusCompleted   AppointmentStatus = "completed"
	StatusCancelled   AppointmentStatus = "cancelled"
	StatusRescheduled AppointmentStatus = "rescheduled"
)

// CountsForOccupancy reports whether an appointment in this status holds a
// room. Cancelled and rescheduled bookings are invisible to every
// availability and conflict computation.
func (s AppointmentStatus) CountsForOccupancy() bool {
	return s != StatusCancelled && s != StatusRescheduled
}

// =============================================================================
// OFFICE - A bookable physical room or the virtual slot
// =============================================================================

// FloorCategory describes which floor band an office sits on.
type FloorCategory string

const (
	FloorGround FloorCategory = "ground"
	FloorUpper  FloorCategory = "upper"
)

// SizeCategory is a coarse room size label used by configuration.
type SizeCategory string

const (
	SizeSmall  SizeCategory = "small"
	SizeMedium SizeCategory = "medium"
	SizeLarge  SizeCategory = "large"
)

// Office is a bookable resource. The Accessible and Floor fields are the
// single source of truth for accessibility decisions; the resolver never
// consults a separate id whitelist.
type Office struct {
	ID            OfficeID
	Name          string
	Active        bool
	Accessible    bool
	Floor         FloorCategory
	Size          SizeCategory
	Features      []string // ordered special-feature tags
	ChildFriendly bool
	BreakRoom     bool // the designated last-resort room

	PrimaryClinician    ClinicianID
	AlternateClinicians []ClinicianID
}

// IsVirtual reports whether the office is a virtual (building A) slot.
func (o Office) IsVirtual() bool { return IsVirtualOffice(string(o.ID)) }

// HasFeature reports whether the office carries the given feature tag.
func (o Office) HasFeature(tag string) bool {
	for _, f := range o.Features {
		if f == tag {
			return true
		}
	}
	return false
}

// =============================================================================
// CLINICIAN
// =============================================================================

type Clinician struct {
	ID               ClinicianID
	Name             string
	PreferredOffices []OfficeID // first entry is the primary office
	AgeRangeMin      int
	AgeRangeMax      int
	Specialties      []string
}

// PrimaryOffice returns the clinician's first preferred office, or "" when
// no preference is configured.
func (c Clinician) PrimaryOffice() OfficeID {
	if len(c.PreferredOffices) == 0 {
		return ""
	}
	return c.PreferredOffices[0]
}

// SecondaryOffices returns the preferred offices after the primary, in order.
func (c Clinician) SecondaryOffices() []OfficeID {
	if len(c.PreferredOffices) < 2 {
		return nil
	}
	return c.PreferredOffices[1:]
}

// =============================================================================
// APPOINTMENT
// =============================================================================

// Appointment is one booking request. StartTime/EndTime are timezone-aware
// instants forming the half-open window [StartTime, EndTime).
type Appointment struct {
	ID            AppointmentID
	ClientID      ClientID
	ClientName    string
	ClinicianID   ClinicianID
	ClinicianName string

	StartTime time.Time
	EndTime   time.Time

	SessionType SessionType
	Status      AppointmentStatus

	// Requirement flags taken from the booking itself.
	NeedsAccessible  bool
	RequiredFeatures []string

	// Office id fields, in resolution precedence order. AssignedOfficeID is
	// the resolver's output; CurrentOfficeID is a prior or manual placement;
	// LegacyOfficeID is the old single office-id column still present on
	// imported records.
	AssignedOfficeID string
	CurrentOfficeID  string
	LegacyOfficeID   string

	// AssignmentReason records which rule produced the assignment. Audit
	// only, never an input to further logic.
	AssignmentReason string

	// ClientAge is the DOB-derived age where known. Age derivation happens
	// upstream; nil means the age-band rules are skipped.
	ClientAge *int
}

// EffectiveOfficeID returns the canonical office the appointment currently
// occupies, checking assigned, then current, then legacy ids.
func (a Appointment) EffectiveOfficeID() string {
	for _, raw := range []string{a.AssignedOfficeID, a.CurrentOfficeID, a.LegacyOfficeID} {
		if id := Standardize(raw); id != SentinelTBD {
			return id
		}
	}
	return SentinelTBD
}

// Overlaps applies the half-open interval test: [s1,e1) and [s2,e2) conflict
// iff s1 < e2 && s2 < e1. Back-to-back windows do not overlap.
func (a Appointment) Overlaps(other Appointment) bool {
	return a.StartTime.Before(other.EndTime) && other.StartTime.Before(a.EndTime)
}

// =============================================================================
// CLIENT PROFILE / PREFERENCE
// =============================================================================

// ClientAccessibilityProfile captures a client's physical requirements and
// any hard office override.
type ClientAccessibilityProfile struct {
	ClientID ClientID

	MobilityNeeds  bool
	MobilityDetail string
	SensoryNeeds   bool
	SensoryDetail  string
	PhysicalNeeds  bool
	PhysicalDetail string
	SupportNeeds   bool
	SupportDetail  string

	// RoomConsistency is a 1-5 preference for keeping the same room across
	// visits. 5 means the client should essentially never move.
	RoomConsistency int

	// RequiredOffice, when set, pre-empts every other rule.
	RequiredOffice string
}

// RequiresAccessible reports whether any physical-access flag is set.
func (p ClientAccessibilityProfile) RequiresAccessible() bool {
	return p.MobilityNeeds || p.PhysicalNeeds
}

// ClientPreference is the legacy preference record. AssignedOffice may also
// be embedded in free-text notes as "assigned office: <id>".
type ClientPreference struct {
	ClientID       ClientID
	AssignedOffice string
	Notes          string
}

// =============================================================================
// ASSIGNMENT RULE - Configuration table form of the ladder
// =============================================================================

// AssignmentRule is the stored, editable form of one placement rule. The
// resolver runs the canonical built-in ladder; this table exists so
// configuration tooling can display and annotate the rules.
type AssignmentRule struct {
	Priority      int
	RuleType      string
	Condition     string
	OfficeIDs     []OfficeID
	OverrideLevel string
	Active        bool
}

// =============================================================================
// RULE TIER - The resolver's closed priority ladder
// =============================================================================

// RuleTier identifies one rule in the resolver's ordered ladder. The numeric
// value is the priority; higher evaluates first.
type RuleTier int

const (
	TierNone               RuleTier = 0 // final fallback, below every rule
	TierDefaultTelehealth  RuleTier = 10
	TierBreakRoom          RuleTier = 15
	TierAnyAvailable       RuleTier = 20
	TierAlternateClinician RuleTier = 30
	TierFeatureMatch       RuleTier = 35
	TierTelehealthLinked   RuleTier = 40
	TierInPerson           RuleTier = 50
	TierAdult              RuleTier = 55
	TierClinicianSecondary RuleTier = 62
	TierClinicianPrimary   RuleTier = 65
	TierTeen               RuleTier = 75
	TierYoungChild         RuleTier = 80
	TierAccessibility      RuleTier = 90
	TierClientOverride     RuleTier = 100
)

var tierLabels = map[RuleTier]string{
	TierNone:               "final fallback",
	TierDefaultTelehealth:  "default telehealth office",
	TierBreakRoom:          "break room last resort",
	TierAnyAvailable:       "any available office",
	TierAlternateClinician: "alternate clinician office",
	TierFeatureMatch:       "special feature match",
	TierTelehealthLinked:   "telehealth with clinician office",
	TierInPerson:           "in-person session",
	TierAdult:              "adult client",
	TierClinicianSecondary: "clinician secondary preference",
	TierClinicianPrimary:   "clinician primary office",
	TierTeen:               "older child/teen client",
	TierYoungChild:         "young child client",
	TierAccessibility:      "accessibility requirement",
	TierClientOverride:     "client-specific override",
}

func (t RuleTier) String() string {
	if label, ok := tierLabels[t]; ok {
		return label
	}
	return fmt.Sprintf("tier %d", int(t))
}

// Reason builds the audit string attached to an assignment produced by this
// tier.
func (t RuleTier) Reason(detail string) string {
	if t == TierNone {
		return fmt.Sprintf("Fallback: %s", detail)
	}
	if detail == "" {
		return fmt.Sprintf("Priority %d: %s", int(t), t.String())
	}
	return fmt.Sprintf("Priority %d: %s (%s)", int(t), t.String(), detail)
}

// =============================================================================
// ASSIGNMENT - Resolver output
// =============================================================================

// Assignment is the resolver's proposal for one appointment.
type Assignment struct {
	OfficeID string
	Tier     RuleTier
	Reason   string
}

// =============================================================================
// CONFLICT - A detected double-booking
// =============================================================================

// ConflictType classifies a scheduling conflict.
type ConflictType string

const ConflictDoubleBooking ConflictType = "double-booking"

// ConflictSeverity grades a conflict. The detector currently emits only
// SeverityHigh for double-bookings.
type ConflictSeverity string

const (
	SeverityHigh   ConflictSeverity = "high"
	SeverityMedium ConflictSeverity = "medium"
	SeverityLow    ConflictSeverity = "low"
)

// Conflict records one same-office, overlapping-time collision. Conflicts
// are ephemeral: recomputed each pass, never persisted as entities.
type Conflict struct {
	Type           ConflictType
	OfficeID       string
	TimeRange      string
	AppointmentIDs []AppointmentID
	ClinicianNames []string
	Severity       ConflictSeverity
	Suggestion     string
}

// Involves reports whether the conflict references the given appointment.
func (c Conflict) Involves(id AppointmentID) bool {
	for _, a := range c.AppointmentIDs {
		if a == id {
			return true
		}
	}
	return false
}
