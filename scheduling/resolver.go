/*
resolver.go - The office assignment resolver

PURPOSE:
  Assigns an office to one appointment by walking an ordered ladder of
  placement rules: client overrides first, then accessibility, age bands,
  clinician preference, session type, and finally a chain of fallbacks that
  guarantees the resolver always returns something - worst case the TBD
  sentinel with an explanatory reason.

STRATEGY MODEL:
  Historically two divergent algorithms existed for this decision: a
  strict-priority short-circuit and an additive scoring pass. They are now
  one parameterized ladder: every tier declares its mode.

  - ModeFirstMatch: the tier's candidates are tried in order and the first
    one the availability checker confirms free wins immediately.
  - ModeScore: the tier adds weight to each of its candidates; after the
    whole ladder runs, the highest-scoring available office wins.

  The canonical rule set runs every tier in ModeFirstMatch, which reproduces
  the strict-priority behavior exactly. Both the batch path and the
  single-event webhook path call this same engine.

GUARANTEES:
  - Pure: never mutates the appointment or the context.
  - Total: never panics out; a failing tier is contained and the ladder
    continues with the next tier.
  - Every result carries a reason string naming the matched rule, and the
    returned office is always A-v, an active office, or TBD.

SEE ALSO:
  - availability.go: the leaf test at every candidate
  - engine.go: drives the resolver over a full day
*/
package scheduling

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// =============================================================================
// TIER RULES - One entry per ladder rung
// =============================================================================

// TierMode selects how a tier contributes to the decision.
type TierMode int

const (
	// ModeFirstMatch accepts the tier's first available candidate and stops.
	ModeFirstMatch TierMode = iota
	// ModeScore accumulates weighted votes; the winner is picked after the
	// whole ladder has run.
	ModeScore
)

// candidate is one office a tier proposes, with the human-readable detail
// that ends up in the assignment reason.
type candidate struct {
	OfficeID string
	Detail   string
}

// TierRule is one rung of the ladder. Applies gates the tier (nil = always
// applicable); Candidates lists offices in the tier's fixed preference order.
type TierRule struct {
	Tier       RuleTier
	Mode       TierMode
	Applies    func(appt Appointment, rctx *ResolutionContext) bool
	Candidates func(appt Appointment, rctx *ResolutionContext) []candidate
}

// =============================================================================
// RESOLUTION CONTEXT - Everything one resolution needs, read-only
// =============================================================================

// TierDefaults holds the office ids the fixed rules reference. These are
// practice configuration, not algorithm.
type TierDefaults struct {
	VirtualOffice      string
	YoungChildPrimary  OfficeID
	YoungChildFallback OfficeID
	TeenPrimary        OfficeID
	TeenFallback       OfficeID
	AdultPrimary       []OfficeID
	AdultSecondary     []OfficeID
}

// DefaultTierDefaults returns the practice's standard rule configuration.
func DefaultTierDefaults() TierDefaults {
	return TierDefaults{
		VirtualOffice:      DefaultVirtualOffice,
		YoungChildPrimary:  "B-5",
		YoungChildFallback: "C-1",
		TeenPrimary:        "C-1",
		TeenFallback:       "B-5",
		AdultPrimary:       []OfficeID{"B-4", "C-2"},
		AdultSecondary:     []OfficeID{"C-3", "B-2"},
	}
}

// ResolutionContext bundles the configuration snapshot one resolution runs
// against. The resolver treats it as read-only.
type ResolutionContext struct {
	Offices    []Office // active offices only
	Clinicians map[ClinicianID]Clinician
	Profile    *ClientAccessibilityProfile
	Preference *ClientPreference
	SameDay    []Appointment
	Defaults   TierDefaults
}

// officeByID returns the active office with the given canonical id.
func (rctx *ResolutionContext) officeByID(id string) (Office, bool) {
	for _, o := range rctx.Offices {
		if Standardize(string(o.ID)) == id {
			return o, true
		}
	}
	return Office{}, false
}

// isActive reports whether the canonical id belongs to the active set or is
// the default virtual office (whose capacity is unbounded). Any other
// virtual id must be configured as an office like a physical room.
func (rctx *ResolutionContext) isActive(id string) bool {
	virtual := Standardize(rctx.Defaults.VirtualOffice)
	if virtual == SentinelTBD {
		virtual = DefaultVirtualOffice
	}
	if id == virtual {
		return true
	}
	_, ok := rctx.officeByID(id)
	return ok
}

// clinicianFor resolves the appointment's clinician from the snapshot.
func (rctx *ResolutionContext) clinicianFor(appt Appointment) (Clinician, bool) {
	c, ok := rctx.Clinicians[appt.ClinicianID]
	return c, ok
}

// sortedOffices returns active offices matching keep, ordered by canonical
// id so the ladder's "fixed order" is stable across runs.
func (rctx *ResolutionContext) sortedOffices(keep func(Office) bool) []Office {
	var result []Office
	for _, o := range rctx.Offices {
		if keep == nil || keep(o) {
			result = append(result, o)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return Standardize(string(result[i].ID)) < Standardize(string(result[j].ID))
	})
	return result
}

// breakRoom returns the designated break-room office, if one is configured.
func (rctx *ResolutionContext) breakRoom() (Office, bool) {
	for _, o := range rctx.Offices {
		if o.BreakRoom {
			return o, true
		}
	}
	return Office{}, false
}

// =============================================================================
// RESOLVER
// =============================================================================

// OfficeAssignmentResolver walks the tier ladder for one appointment.
type OfficeAssignmentResolver struct {
	checker *AvailabilityChecker
	ladder  []TierRule
	logger  *zap.Logger
}

// ResolverOption customizes a resolver.
type ResolverOption func(*OfficeAssignmentResolver)

// WithLadder replaces the canonical rule set. Used to run the ladder in
// scoring mode or with a trimmed rule list.
func WithLadder(ladder []TierRule) ResolverOption {
	return func(r *OfficeAssignmentResolver) { r.ladder = ladder }
}

// WithResolverLogger attaches a logger for contained tier failures.
func WithResolverLogger(logger *zap.Logger) ResolverOption {
	return func(r *OfficeAssignmentResolver) { r.logger = logger }
}

// NewResolver creates a resolver using the canonical first-match ladder.
func NewResolver(checker *AvailabilityChecker, opts ...ResolverOption) *OfficeAssignmentResolver {
	if checker == nil {
		checker = NewAvailabilityChecker(nil)
	}
	r := &OfficeAssignmentResolver{
		checker: checker,
		ladder:  CanonicalLadder(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	return r
}

// Resolve produces an office assignment and reason for one appointment.
// It never returns an error and never panics; the worst case is the final
// fallback with an explanatory reason.
func (r *OfficeAssignmentResolver) Resolve(appt Appointment, rctx *ResolutionContext) Assignment {
	if rctx == nil || len(rctx.Offices) == 0 {
		if appt.SessionType.IsTelehealth() {
			return Assignment{
				OfficeID: DefaultVirtualOffice,
				Tier:     TierNone,
				Reason:   TierNone.Reason("no active offices, telehealth defaults to virtual"),
			}
		}
		return Assignment{
			OfficeID: SentinelTBD,
			Tier:     TierNone,
			Reason:   TierNone.Reason(ErrNoActiveOffices.Error()),
		}
	}

	scores := make(map[string]tierScore)

	for _, rule := range r.ladder {
		assignment, done := r.evaluateTier(rule, appt, rctx, scores)
		if done {
			return assignment
		}
	}

	if winner, ok := r.pickScored(appt, rctx, scores); ok {
		return winner
	}

	return r.finalFallback(appt, rctx)
}

type tierScore struct {
	points int
	tier   RuleTier
	detail string
}

// evaluateTier runs one rung. A panic inside the tier is contained as a
// RuleError and the ladder continues.
func (r *OfficeAssignmentResolver) evaluateTier(rule TierRule, appt Appointment, rctx *ResolutionContext, scores map[string]tierScore) (assignment Assignment, done bool) {
	defer func() {
		if rec := recover(); rec != nil {
			err := &RuleError{Tier: rule.Tier, Cause: recoveredError(rec)}
			r.logger.Warn("tier evaluation failed, continuing with next tier",
				zap.Int("priority", int(rule.Tier)),
				zap.Error(err))
			assignment, done = Assignment{}, false
		}
	}()

	if rule.Applies != nil && !rule.Applies(appt, rctx) {
		return Assignment{}, false
	}
	if rule.Candidates == nil {
		return Assignment{}, false
	}

	cands := rule.Candidates(appt, rctx)
	switch rule.Mode {
	case ModeScore:
		// Earlier candidates in a tier outrank later ones within the same
		// tier weight.
		for i, cand := range cands {
			id := Standardize(cand.OfficeID)
			if id == SentinelTBD || !rctx.isActive(id) {
				continue
			}
			entry := scores[id]
			entry.points += int(rule.Tier)*10 + (len(cands) - i)
			if rule.Tier > entry.tier {
				entry.tier = rule.Tier
				entry.detail = cand.Detail
			}
			scores[id] = entry
		}
		return Assignment{}, false

	default: // ModeFirstMatch
		for _, cand := range cands {
			id := Standardize(cand.OfficeID)
			if id == SentinelTBD || !rctx.isActive(id) {
				continue
			}
			if r.checker.IsAvailableFor(id, appt, rctx.SameDay) {
				return Assignment{
					OfficeID: id,
					Tier:     rule.Tier,
					Reason:   rule.Tier.Reason(cand.Detail),
				}, true
			}
		}
		return Assignment{}, false
	}
}

// pickScored selects the highest-scoring available office accumulated by
// ModeScore tiers. Ties break on canonical id for determinism.
func (r *OfficeAssignmentResolver) pickScored(appt Appointment, rctx *ResolutionContext, scores map[string]tierScore) (Assignment, bool) {
	ids := make([]string, 0, len(scores))
	for id := range scores {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		si, sj := scores[ids[i]], scores[ids[j]]
		if si.points != sj.points {
			return si.points > sj.points
		}
		return ids[i] < ids[j]
	})

	for _, id := range ids {
		if r.checker.IsAvailableFor(id, appt, rctx.SameDay) {
			entry := scores[id]
			return Assignment{
				OfficeID: id,
				Tier:     entry.tier,
				Reason:   entry.tier.Reason(entry.detail),
			}, true
		}
	}
	return Assignment{}, false
}

// finalFallback is the unconditional bottom of the ladder: virtual for
// telehealth, the break room when active, the first active office, or TBD.
func (r *OfficeAssignmentResolver) finalFallback(appt Appointment, rctx *ResolutionContext) Assignment {
	if appt.SessionType.IsTelehealth() {
		virtual := rctx.Defaults.VirtualOffice
		if virtual == "" {
			virtual = DefaultVirtualOffice
		}
		return Assignment{
			OfficeID: Standardize(virtual),
			Tier:     TierNone,
			Reason:   TierNone.Reason("telehealth defaults to virtual office"),
		}
	}
	if br, ok := rctx.breakRoom(); ok {
		return Assignment{
			OfficeID: Standardize(string(br.ID)),
			Tier:     TierNone,
			Reason:   TierNone.Reason("break room as last resort"),
		}
	}
	if all := rctx.sortedOffices(nil); len(all) > 0 {
		return Assignment{
			OfficeID: Standardize(string(all[0].ID)),
			Tier:     TierNone,
			Reason:   TierNone.Reason("first active office, no rule matched"),
		}
	}
	return Assignment{
		OfficeID: SentinelTBD,
		Tier:     TierNone,
		Reason:   TierNone.Reason(ErrNoActiveOffices.Error()),
	}
}

func recoveredError(rec any) error {
	if err, ok := rec.(error); ok {
		return err
	}
	return fmt.Errorf("panic: %v", rec)
}

// =============================================================================
// CANONICAL LADDER - The authoritative rule set, all first-match
// =============================================================================

// assignedOfficePattern extracts "assigned office: <id>" from free-text
// preference notes left by front-desk staff.
var assignedOfficePattern = regexp.MustCompile(`(?i)assigned\s+office\s*:\s*([A-Za-z][-_ ]?[A-Za-z0-9]+)`)

// ParseAssignedOfficeNote extracts an office id from a notes field, or ""
// when no directive is present.
func ParseAssignedOfficeNote(notes string) string {
	m := assignedOfficePattern.FindStringSubmatch(notes)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// CanonicalLadder returns the authoritative rule set in priority order.
// Every tier runs in ModeFirstMatch; ScoringLadder derives the additive
// variant from this same list.
func CanonicalLadder() []TierRule {
	return []TierRule{
		{
			Tier: TierClientOverride,
			Candidates: func(appt Appointment, rctx *ResolutionContext) []candidate {
				var cands []candidate
				if rctx.Profile != nil && rctx.Profile.RequiredOffice != "" {
					cands = append(cands, candidate{rctx.Profile.RequiredOffice, "required office " + Standardize(rctx.Profile.RequiredOffice)})
				}
				if rctx.Preference != nil {
					if id := ParseAssignedOfficeNote(rctx.Preference.Notes); id != "" {
						cands = append(cands, candidate{id, "office noted by staff"})
					}
					if rctx.Preference.AssignedOffice != "" {
						cands = append(cands, candidate{rctx.Preference.AssignedOffice, "legacy assigned office"})
					}
				}
				return cands
			},
		},
		{
			Tier: TierAccessibility,
			Applies: func(appt Appointment, rctx *ResolutionContext) bool {
				if appt.NeedsAccessible {
					return true
				}
				return rctx.Profile != nil && rctx.Profile.RequiresAccessible()
			},
			Candidates: func(appt Appointment, rctx *ResolutionContext) []candidate {
				// Ground-floor accessible rooms first, then the rest. The
				// Office entity's own flags are the source of truth here.
				offices := rctx.sortedOffices(func(o Office) bool { return o.Accessible && !o.IsVirtual() })
				sort.SliceStable(offices, func(i, j int) bool {
					return offices[i].Floor == FloorGround && offices[j].Floor != FloorGround
				})
				cands := make([]candidate, 0, len(offices))
				for _, o := range offices {
					cands = append(cands, candidate{string(o.ID), "accessible office"})
				}
				return cands
			},
		},
		{
			Tier: TierYoungChild,
			Applies: func(appt Appointment, rctx *ResolutionContext) bool {
				return appt.ClientAge != nil && *appt.ClientAge <= 10
			},
			Candidates: func(appt Appointment, rctx *ResolutionContext) []candidate {
				return []candidate{
					{string(rctx.Defaults.YoungChildPrimary), "young child office"},
					{string(rctx.Defaults.YoungChildFallback), "young child fallback office"},
				}
			},
		},
		{
			Tier: TierTeen,
			Applies: func(appt Appointment, rctx *ResolutionContext) bool {
				return appt.ClientAge != nil && *appt.ClientAge >= 11 && *appt.ClientAge <= 17
			},
			Candidates: func(appt Appointment, rctx *ResolutionContext) []candidate {
				return []candidate{
					{string(rctx.Defaults.TeenPrimary), "teen office"},
					{string(rctx.Defaults.TeenFallback), "teen fallback office"},
				}
			},
		},
		{
			Tier: TierClinicianPrimary,
			Candidates: func(appt Appointment, rctx *ResolutionContext) []candidate {
				c, ok := rctx.clinicianFor(appt)
				if !ok || c.PrimaryOffice() == "" {
					return nil
				}
				return []candidate{{string(c.PrimaryOffice()), "primary office of " + c.Name}}
			},
		},
		{
			Tier: TierClinicianSecondary,
			Candidates: func(appt Appointment, rctx *ResolutionContext) []candidate {
				c, ok := rctx.clinicianFor(appt)
				if !ok {
					return nil
				}
				var cands []candidate
				for _, id := range c.SecondaryOffices() {
					cands = append(cands, candidate{string(id), "preferred office of " + c.Name})
				}
				return cands
			},
		},
		{
			Tier: TierAdult,
			Applies: func(appt Appointment, rctx *ResolutionContext) bool {
				return appt.ClientAge != nil && *appt.ClientAge >= 18
			},
			Candidates: func(appt Appointment, rctx *ResolutionContext) []candidate {
				var cands []candidate
				for _, id := range rctx.Defaults.AdultPrimary {
					cands = append(cands, candidate{string(id), "adult primary office"})
				}
				for _, id := range rctx.Defaults.AdultSecondary {
					cands = append(cands, candidate{string(id), "adult secondary office"})
				}
				return cands
			},
		},
		{
			Tier: TierInPerson,
			Applies: func(appt Appointment, rctx *ResolutionContext) bool {
				return appt.SessionType == SessionInPerson
			},
			Candidates: func(appt Appointment, rctx *ResolutionContext) []candidate {
				// The break room is reserved for its own last-resort tier.
				offices := rctx.sortedOffices(func(o Office) bool { return !o.IsVirtual() && !o.BreakRoom })
				cands := make([]candidate, 0, len(offices))
				for _, o := range offices {
					cands = append(cands, candidate{string(o.ID), "physical office"})
				}
				return cands
			},
		},
		{
			Tier: TierTelehealthLinked,
			Applies: func(appt Appointment, rctx *ResolutionContext) bool {
				return appt.SessionType.IsTelehealth()
			},
			Candidates: func(appt Appointment, rctx *ResolutionContext) []candidate {
				c, ok := rctx.clinicianFor(appt)
				if !ok {
					return nil
				}
				var cands []candidate
				for _, id := range c.PreferredOffices {
					cands = append(cands, candidate{string(id), "preferred office of " + c.Name})
				}
				for _, o := range rctx.sortedOffices(func(o Office) bool { return o.PrimaryClinician == c.ID }) {
					cands = append(cands, candidate{string(o.ID), "office of " + c.Name})
				}
				return cands
			},
		},
		{
			Tier: TierFeatureMatch,
			Applies: func(appt Appointment, rctx *ResolutionContext) bool {
				return len(appt.RequiredFeatures) > 0
			},
			Candidates: func(appt Appointment, rctx *ResolutionContext) []candidate {
				offices := rctx.sortedOffices(func(o Office) bool {
					for _, tag := range appt.RequiredFeatures {
						if o.HasFeature(tag) {
							return true
						}
					}
					return false
				})
				cands := make([]candidate, 0, len(offices))
				for _, o := range offices {
					cands = append(cands, candidate{string(o.ID), "feature match"})
				}
				return cands
			},
		},
		{
			Tier: TierAlternateClinician,
			Candidates: func(appt Appointment, rctx *ResolutionContext) []candidate {
				offices := rctx.sortedOffices(func(o Office) bool {
					for _, id := range o.AlternateClinicians {
						if id == appt.ClinicianID {
							return true
						}
					}
					return false
				})
				cands := make([]candidate, 0, len(offices))
				for _, o := range offices {
					cands = append(cands, candidate{string(o.ID), "alternate clinician office"})
				}
				return cands
			},
		},
		{
			Tier: TierAnyAvailable,
			Candidates: func(appt Appointment, rctx *ResolutionContext) []candidate {
				offices := rctx.sortedOffices(func(o Office) bool { return !o.BreakRoom && !o.IsVirtual() })
				cands := make([]candidate, 0, len(offices))
				for _, o := range offices {
					cands = append(cands, candidate{string(o.ID), "open office"})
				}
				return cands
			},
		},
		{
			Tier: TierBreakRoom,
			Applies: func(appt Appointment, rctx *ResolutionContext) bool {
				return !appt.SessionType.IsTelehealth()
			},
			Candidates: func(appt Appointment, rctx *ResolutionContext) []candidate {
				br, ok := rctx.breakRoom()
				if !ok {
					return nil
				}
				return []candidate{{string(br.ID), "break room"}}
			},
		},
		{
			Tier: TierDefaultTelehealth,
			Applies: func(appt Appointment, rctx *ResolutionContext) bool {
				return appt.SessionType.IsTelehealth()
			},
			Candidates: func(appt Appointment, rctx *ResolutionContext) []candidate {
				virtual := rctx.Defaults.VirtualOffice
				if virtual == "" {
					virtual = DefaultVirtualOffice
				}
				return []candidate{{virtual, "default virtual office"}}
			},
		},
	}
}

// ScoringLadder returns the canonical rules with every tier switched to
// ModeScore. Kept for callers that want the additive behavior; the decision
// surface is identical, only the arbitration differs.
func ScoringLadder() []TierRule {
	ladder := CanonicalLadder()
	for i := range ladder {
		ladder[i].Mode = ModeScore
	}
	return ladder
}
