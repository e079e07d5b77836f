package scheduling_test

import (
	"time"

	"github.com/catalyst-eval/catalyst-scheduler/scheduling"
)

// =============================================================================
// SHARED FIXTURES - A small practice: seven physical rooms plus the virtual
// slot, three clinicians
// =============================================================================

// testDay is the fixed calendar day every test schedules against.
var testDay = time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

func at(hour, min int) time.Time {
	return time.Date(2025, time.March, 10, hour, min, 0, 0, time.UTC)
}

func practiceOffices() []scheduling.Office {
	return []scheduling.Office{
		{ID: "B-1", Name: "Break Room", Active: true, Floor: scheduling.FloorGround, Size: scheduling.SizeSmall, BreakRoom: true},
		{ID: "B-2", Name: "Office B-2", Active: true, Floor: scheduling.FloorUpper, Size: scheduling.SizeMedium,
			PrimaryClinician: "clin-dana", AlternateClinicians: []scheduling.ClinicianID{"clin-morgan"}},
		{ID: "B-4", Name: "Office B-4", Active: true, Accessible: true, Floor: scheduling.FloorGround, Size: scheduling.SizeMedium},
		{ID: "B-5", Name: "Play Therapy Room", Active: true, Accessible: true, Floor: scheduling.FloorGround,
			Size: scheduling.SizeLarge, ChildFriendly: true, Features: []string{"play-therapy"}},
		{ID: "C-1", Name: "Office C-1", Active: true, Floor: scheduling.FloorUpper, Size: scheduling.SizeMedium, ChildFriendly: true},
		{ID: "C-2", Name: "Office C-2", Active: true, Floor: scheduling.FloorUpper, Size: scheduling.SizeMedium,
			PrimaryClinician: "clin-morgan"},
		{ID: "C-3", Name: "Sensory Room", Active: true, Floor: scheduling.FloorUpper, Size: scheduling.SizeSmall,
			Features: []string{"sensory"}},
		{ID: "A-v", Name: "Virtual", Active: true},
	}
}

func practiceClinicians() map[scheduling.ClinicianID]scheduling.Clinician {
	return map[scheduling.ClinicianID]scheduling.Clinician{
		"clin-dana": {
			ID: "clin-dana", Name: "Dana Reyes",
			PreferredOffices: []scheduling.OfficeID{"B-2", "C-3"},
			AgeRangeMin:      18, AgeRangeMax: 99,
		},
		"clin-morgan": {
			ID: "clin-morgan", Name: "Morgan Lee",
			PreferredOffices: []scheduling.OfficeID{"C-2"},
			AgeRangeMin:      5, AgeRangeMax: 17,
		},
		"clin-asha": {
			ID: "clin-asha", Name: "Asha Patel",
			AgeRangeMin: 5, AgeRangeMax: 99,
		},
	}
}

func newContext(sameDay []scheduling.Appointment) *scheduling.ResolutionContext {
	return &scheduling.ResolutionContext{
		Offices:    practiceOffices(),
		Clinicians: practiceClinicians(),
		SameDay:    sameDay,
		Defaults:   scheduling.DefaultTierDefaults(),
	}
}

type apptOption func(*scheduling.Appointment)

func withOffice(id string) apptOption {
	return func(a *scheduling.Appointment) { a.AssignedOfficeID = id }
}

func withCurrentOffice(id string) apptOption {
	return func(a *scheduling.Appointment) { a.CurrentOfficeID = id }
}

func withStatus(s scheduling.AppointmentStatus) apptOption {
	return func(a *scheduling.Appointment) { a.Status = s }
}

func withSession(s scheduling.SessionType) apptOption {
	return func(a *scheduling.Appointment) { a.SessionType = s }
}

func withAge(age int) apptOption {
	return func(a *scheduling.Appointment) { a.ClientAge = &age }
}

func withClinician(id scheduling.ClinicianID, name string) apptOption {
	return func(a *scheduling.Appointment) {
		a.ClinicianID = id
		a.ClinicianName = name
	}
}

func withFeatures(tags ...string) apptOption {
	return func(a *scheduling.Appointment) { a.RequiredFeatures = tags }
}

func appt(id string, startHour, startMin, endHour, endMin int, opts ...apptOption) scheduling.Appointment {
	a := scheduling.Appointment{
		ID:          scheduling.AppointmentID(id),
		ClientID:    scheduling.ClientID("client-" + id),
		ClinicianID: "clin-dana",
		StartTime:   at(startHour, startMin),
		EndTime:     at(endHour, endMin),
		SessionType: scheduling.SessionInPerson,
		Status:      scheduling.StatusScheduled,
	}
	for _, opt := range opts {
		opt(&a)
	}
	return a
}
