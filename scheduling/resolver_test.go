package scheduling_test

import (
	"strings"
	"testing"

	"github.com/catalyst-eval/catalyst-scheduler/scheduling"
)

func resolver() *scheduling.OfficeAssignmentResolver {
	return scheduling.NewResolver(checker())
}

// =============================================================================
// TIER PRECEDENCE
// =============================================================================

func TestResolve_RequiredOfficePreemptsAccessibility(t *testing.T) {
	// GIVEN: a client profile with requiredOffice C-2 AND mobility needs
	// WHEN: resolving
	// THEN: C-2 wins with a priority-100 reason; tier 90 never fires
	rctx := newContext(nil)
	rctx.Profile = &scheduling.ClientAccessibilityProfile{
		ClientID:       "client-a1",
		MobilityNeeds:  true,
		RequiredOffice: "C-2",
	}

	got := resolver().Resolve(appt("a1", 9, 0, 10, 0), rctx)

	if got.OfficeID != "C-2" {
		t.Fatalf("expected C-2, got %s (%s)", got.OfficeID, got.Reason)
	}
	if got.Tier != scheduling.TierClientOverride {
		t.Errorf("expected tier 100, got %d", int(got.Tier))
	}
	if !strings.Contains(got.Reason, "Priority 100") {
		t.Errorf("reason should name priority 100, got %q", got.Reason)
	}
}

func TestResolve_AssignedOfficeNoteParsedFromPreference(t *testing.T) {
	rctx := newContext(nil)
	rctx.Preference = &scheduling.ClientPreference{
		ClientID: "client-a1",
		Notes:    "Prefers mornings. Assigned office: B-2. Bring forms.",
	}

	got := resolver().Resolve(appt("a1", 9, 0, 10, 0), rctx)

	if got.OfficeID != "B-2" {
		t.Fatalf("expected B-2 from notes directive, got %s (%s)", got.OfficeID, got.Reason)
	}
	if got.Tier != scheduling.TierClientOverride {
		t.Errorf("expected tier 100, got %d", int(got.Tier))
	}
}

func TestResolve_AccessibilityUsesOfficeFlags(t *testing.T) {
	// GIVEN: an appointment flagged as needing an accessible room
	// THEN: a ground-floor accessible office is chosen at tier 90
	rctx := newContext(nil)
	a := appt("a1", 9, 0, 10, 0)
	a.NeedsAccessible = true

	got := resolver().Resolve(a, rctx)

	if got.Tier != scheduling.TierAccessibility {
		t.Fatalf("expected tier 90, got %d (%s)", int(got.Tier), got.Reason)
	}
	if got.OfficeID != "B-4" {
		t.Errorf("expected first accessible ground-floor office B-4, got %s", got.OfficeID)
	}
}

func TestResolve_AgeBands(t *testing.T) {
	defaults := scheduling.DefaultTierDefaults()
	cases := []struct {
		name   string
		age    int
		tier   scheduling.RuleTier
		office string
	}{
		{"young child", 7, scheduling.TierYoungChild, string(defaults.YoungChildPrimary)},
		{"teen", 14, scheduling.TierTeen, string(defaults.TeenPrimary)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			// Use a clinician with no preferred offices so the age tier is
			// the first that can produce candidates.
			got := resolver().Resolve(appt("a1", 9, 0, 10, 0, withAge(tc.age), withClinician("clin-asha", "Asha Patel")), newContext(nil))
			if got.Tier != tc.tier {
				t.Fatalf("expected tier %d, got %d (%s)", int(tc.tier), int(got.Tier), got.Reason)
			}
			if got.OfficeID != tc.office {
				t.Errorf("expected %s, got %s", tc.office, got.OfficeID)
			}
		})
	}
}

func TestResolve_UnknownAgeSkipsAgeTiers(t *testing.T) {
	// No ClientAge: tiers 80/75/55 are skipped entirely and the clinician
	// primary office wins instead.
	got := resolver().Resolve(appt("a1", 9, 0, 10, 0), newContext(nil))

	if got.Tier != scheduling.TierClinicianPrimary {
		t.Fatalf("expected clinician primary tier, got %d (%s)", int(got.Tier), got.Reason)
	}
	if got.OfficeID != "B-2" {
		t.Errorf("expected Dana's primary office B-2, got %s", got.OfficeID)
	}
}

func TestResolve_OccupiedPreferredOfficeFallsThrough(t *testing.T) {
	// GIVEN: Morgan's only preferred office C-2 is occupied for the window
	// WHEN: resolving an in-person appointment with no higher-priority match
	// THEN: the ladder falls through instead of returning the occupied room
	occupied := appt("blocker", 9, 0, 10, 0, withOffice("C-2"))
	rctx := newContext([]scheduling.Appointment{occupied})

	got := resolver().Resolve(appt("a1", 9, 30, 10, 30, withClinician("clin-morgan", "Morgan Lee")), rctx)

	if got.OfficeID == "C-2" {
		t.Fatalf("resolver returned the occupied office (%s)", got.Reason)
	}
	if got.Tier != scheduling.TierInPerson {
		t.Errorf("expected fall-through to the in-person tier, got %d (%s)", int(got.Tier), got.Reason)
	}
}

func TestResolve_TelehealthDefaultsToVirtualWhenEverythingOccupied(t *testing.T) {
	// All physical rooms are taken; telehealth skips the break room tier
	// and lands on the default virtual office.
	var sameDay []scheduling.Appointment
	for _, id := range []string{"B-1", "B-2", "B-4", "B-5", "C-1", "C-2", "C-3"} {
		sameDay = append(sameDay, appt("occ-"+id, 9, 0, 10, 0, withOffice(id)))
	}
	rctx := newContext(sameDay)

	got := resolver().Resolve(appt("a1", 9, 0, 10, 0, withSession(scheduling.SessionTelehealth)), rctx)

	if got.OfficeID != scheduling.DefaultVirtualOffice {
		t.Fatalf("expected %s, got %s (%s)", scheduling.DefaultVirtualOffice, got.OfficeID, got.Reason)
	}
	if got.Tier != scheduling.TierDefaultTelehealth {
		t.Errorf("expected tier 10, got %d", int(got.Tier))
	}
}

func TestResolve_BreakRoomIsLastResortForPhysicalSessions(t *testing.T) {
	var sameDay []scheduling.Appointment
	for _, id := range []string{"B-2", "B-4", "B-5", "C-1", "C-2", "C-3"} {
		sameDay = append(sameDay, appt("occ-"+id, 9, 0, 10, 0, withOffice(id)))
	}
	rctx := newContext(sameDay)

	got := resolver().Resolve(appt("a1", 9, 0, 10, 0), rctx)

	if got.OfficeID != "B-1" {
		t.Fatalf("expected break room B-1, got %s (%s)", got.OfficeID, got.Reason)
	}
	if got.Tier != scheduling.TierBreakRoom {
		t.Errorf("expected tier 15, got %d", int(got.Tier))
	}
}

func TestResolve_FeatureMatch(t *testing.T) {
	// Occupy every clinician-linked office so the feature tier is reached.
	sameDay := []scheduling.Appointment{
		appt("occ-1", 9, 0, 10, 0, withOffice("B-2")),
	}
	rctx := newContext(sameDay)

	got := resolver().Resolve(
		appt("a1", 9, 0, 10, 0, withFeatures("sensory")),
		rctx)

	// Dana's secondary preference C-3 happens to be the sensory room, so
	// either tier 62 or tier 35 may legitimately produce it.
	if got.OfficeID != "C-3" {
		t.Fatalf("expected sensory room C-3, got %s (%s)", got.OfficeID, got.Reason)
	}
}

// =============================================================================
// DEGRADATION AND GUARANTEES
// =============================================================================

func TestResolve_NoActiveOffices(t *testing.T) {
	// GIVEN: zero active offices
	// THEN: TBD with a non-empty reason, no panic
	rctx := &scheduling.ResolutionContext{Defaults: scheduling.DefaultTierDefaults()}

	got := resolver().Resolve(appt("a1", 9, 0, 10, 0), rctx)

	if got.OfficeID != scheduling.SentinelTBD {
		t.Fatalf("expected TBD, got %s", got.OfficeID)
	}
	if got.Reason == "" {
		t.Error("reason must be non-empty")
	}
}

func TestResolve_NoActiveOffices_TelehealthStillVirtual(t *testing.T) {
	rctx := &scheduling.ResolutionContext{Defaults: scheduling.DefaultTierDefaults()}

	got := resolver().Resolve(appt("a1", 9, 0, 10, 0, withSession(scheduling.SessionTelehealth)), rctx)

	if got.OfficeID != scheduling.DefaultVirtualOffice {
		t.Fatalf("telehealth should still reach the virtual office, got %s", got.OfficeID)
	}
}

func TestResolve_ResultIsAlwaysVirtualActiveOrTBD(t *testing.T) {
	rctx := newContext(nil)
	active := make(map[string]bool)
	for _, o := range rctx.Offices {
		active[scheduling.Standardize(string(o.ID))] = true
	}

	variants := []scheduling.Appointment{
		appt("a1", 9, 0, 10, 0),
		appt("a2", 9, 0, 10, 0, withSession(scheduling.SessionTelehealth)),
		appt("a3", 9, 0, 10, 0, withAge(6)),
		appt("a4", 9, 0, 10, 0, withAge(45)),
		appt("a5", 9, 0, 10, 0, withClinician("missing-clinician", "")),
	}
	for _, a := range variants {
		got := resolver().Resolve(a, rctx)
		if got.OfficeID != scheduling.SentinelTBD &&
			got.OfficeID != scheduling.DefaultVirtualOffice &&
			!active[got.OfficeID] {
			t.Errorf("appointment %s resolved to %q, outside the allowed set", a.ID, got.OfficeID)
		}
	}
}

func TestResolve_Deterministic(t *testing.T) {
	// Two consecutive resolutions over an unmodified context must agree.
	rctx := newContext([]scheduling.Appointment{
		appt("occ-1", 9, 0, 10, 0, withOffice("B-2")),
		appt("occ-2", 9, 0, 11, 0, withOffice("C-3")),
	})
	a := appt("a1", 9, 0, 10, 0, withAge(30))

	first := resolver().Resolve(a, rctx)
	second := resolver().Resolve(a, rctx)

	if first != second {
		t.Errorf("resolution not deterministic: %+v vs %+v", first, second)
	}
}

func TestResolve_InactiveRequiredOfficeIsSkipped(t *testing.T) {
	// A required office outside the active set cannot be honored; the
	// ladder continues rather than placing the client in a closed room.
	rctx := newContext(nil)
	rctx.Profile = &scheduling.ClientAccessibilityProfile{
		ClientID:       "client-a1",
		RequiredOffice: "C-9",
	}

	got := resolver().Resolve(appt("a1", 9, 0, 10, 0), rctx)

	if got.OfficeID == "C-9" {
		t.Fatal("resolver honored an office outside the active set")
	}
	if got.Tier == scheduling.TierClientOverride {
		t.Errorf("override tier should not match an inactive office (%s)", got.Reason)
	}
}

func TestResolve_UnconfiguredVirtualOfficeIsSkipped(t *testing.T) {
	// Only the default virtual office has unbounded capacity; a building-A
	// id that is neither A-v nor a configured office is just as closed as
	// an unknown physical room.
	rctx := newContext(nil)
	rctx.Profile = &scheduling.ClientAccessibilityProfile{
		ClientID:       "client-a1",
		RequiredOffice: "A-3",
	}

	got := resolver().Resolve(appt("a1", 9, 0, 10, 0), rctx)

	if got.OfficeID == "A-c" || got.OfficeID == "A-3" {
		t.Fatalf("resolver honored an unconfigured virtual office (%s)", got.Reason)
	}
	if got.Tier == scheduling.TierClientOverride {
		t.Errorf("override tier should not match an unconfigured virtual office (%s)", got.Reason)
	}
}

// =============================================================================
// SCORING MODE
// =============================================================================

func TestResolve_ScoringLadderAgreesOnStrongSignals(t *testing.T) {
	// The additive strategy weighs every tier, but a tier-100 override
	// dominates any accumulation below it.
	scoring := scheduling.NewResolver(checker(), scheduling.WithLadder(scheduling.ScoringLadder()))
	rctx := newContext(nil)
	rctx.Profile = &scheduling.ClientAccessibilityProfile{
		ClientID:       "client-a1",
		RequiredOffice: "C-2",
	}

	got := scoring.Resolve(appt("a1", 9, 0, 10, 0), rctx)

	if got.OfficeID != "C-2" {
		t.Fatalf("scoring mode should still honor the override, got %s (%s)", got.OfficeID, got.Reason)
	}
}

func TestResolve_ScoringLadderSkipsOccupiedWinner(t *testing.T) {
	scoring := scheduling.NewResolver(checker(), scheduling.WithLadder(scheduling.ScoringLadder()))
	occupied := appt("blocker", 9, 0, 10, 0, withOffice("C-2"))
	rctx := newContext([]scheduling.Appointment{occupied})
	rctx.Profile = &scheduling.ClientAccessibilityProfile{
		ClientID:       "client-a1",
		RequiredOffice: "C-2",
	}

	got := scoring.Resolve(appt("a1", 9, 30, 10, 30), rctx)

	if got.OfficeID == "C-2" {
		t.Fatal("scoring mode returned an occupied office")
	}
}
