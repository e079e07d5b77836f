/*
repair.go - Conflict resolution (relocation of double-booked appointments)

PURPOSE:
  Given detected double-bookings, keeps one appointment per collision and
  relocates the rest. Telehealth offenders always move to the virtual
  office; physical offenders move to the first active office the
  availability checker confirms free.

WORKING-SET SEMANTICS:
  Relocations are applied to a continuously updated working copy of the
  day's appointments, and the detect/relocate pair iterates until no
  conflicts remain or a pass makes no progress. A relocation therefore
  cannot silently introduce a fresh conflict: it would be caught and
  repaired (or reported) by the next pass.

KEEPER SELECTION:
  The non-telehealth party keeps the room. When both parties are physical,
  the first in detection order stays.

SEE ALSO:
  - detector.go: produces the conflicts consumed here
  - engine.go: persists the relocations this returns
*/
package scheduling

import (
	"fmt"

	"go.uber.org/zap"
)

// maxRepairPasses bounds the detect/relocate fixed-point iteration. Each
// pass strictly reduces or preserves the conflict count, so a handful of
// passes is always enough in practice.
const maxRepairPasses = 5

// Relocation is one repair action: move an appointment to a new office.
type Relocation struct {
	AppointmentID AppointmentID
	FromOfficeID  string
	ToOfficeID    string
	Reason        string
}

// ConflictResolver relocates the losing parties of double-bookings.
type ConflictResolver struct {
	checker  *AvailabilityChecker
	detector *ConflictDetector
	logger   *zap.Logger
}

// NewConflictResolver creates a resolver. A nil logger is replaced with a
// no-op logger.
func NewConflictResolver(checker *AvailabilityChecker, detector *ConflictDetector, logger *zap.Logger) *ConflictResolver {
	if checker == nil {
		checker = NewAvailabilityChecker(nil)
	}
	if detector == nil {
		detector = NewConflictDetector()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictResolver{checker: checker, detector: detector, logger: logger}
}

// Resolve repairs the given conflicts over a working copy of appointments.
// It returns the relocations performed and any conflicts that could not be
// repaired (no alternative room free). The input slice is not mutated.
func (r *ConflictResolver) Resolve(conflicts []Conflict, appointments []Appointment, rctx *ResolutionContext) ([]Relocation, []Conflict) {
	working := make([]Appointment, len(appointments))
	copy(working, appointments)

	var relocations []Relocation
	remaining := conflicts

	for pass := 0; pass < maxRepairPasses && len(remaining) > 0; pass++ {
		moved := 0
		for _, conflict := range remaining {
			moved += r.repairOne(conflict, working, rctx, &relocations)
		}

		// Re-detect against the updated working set; relocations from this
		// pass may have opened or closed collisions.
		remaining = r.detector.Detect(working)
		if moved == 0 {
			break
		}
	}

	if len(remaining) > 0 {
		r.logger.Warn("conflicts left unresolved after repair passes",
			zap.Int("remaining", len(remaining)))
	}
	return relocations, remaining
}

// repairOne relocates every losing party of one conflict in the working
// set. Returns the number of appointments moved.
func (r *ConflictResolver) repairOne(conflict Conflict, working []Appointment, rctx *ResolutionContext, relocations *[]Relocation) int {
	members := conflictMembers(conflict, working)
	if len(members) < 2 {
		return 0
	}

	// Verify the collision still exists in the working set; an earlier
	// repair may already have cleared it.
	still := false
	for i := 0; i < len(members) && !still; i++ {
		for j := i + 1; j < len(members); j++ {
			if working[members[i]].Overlaps(working[members[j]]) &&
				working[members[i]].EffectiveOfficeID() == working[members[j]].EffectiveOfficeID() {
				still = true
				break
			}
		}
	}
	if !still {
		return 0
	}

	keeper := pickKeeper(working, members)
	moved := 0
	for _, idx := range members {
		if idx == keeper {
			continue
		}
		if r.relocate(idx, conflict.OfficeID, working, rctx, relocations) {
			moved++
		}
	}
	return moved
}

// relocate moves one appointment out of the conflicted office. Telehealth
// goes to the virtual office unconditionally; physical sessions take the
// first active office the checker confirms free against the working set.
func (r *ConflictResolver) relocate(idx int, conflictedOffice string, working []Appointment, rctx *ResolutionContext, relocations *[]Relocation) bool {
	appt := working[idx]
	from := appt.EffectiveOfficeID()

	if appt.SessionType.IsTelehealth() {
		virtual := DefaultVirtualOffice
		if rctx != nil && rctx.Defaults.VirtualOffice != "" {
			virtual = Standardize(rctx.Defaults.VirtualOffice)
		}
		r.apply(idx, working, virtual, "telehealth moved to virtual office", relocations, from)
		return true
	}

	if rctx == nil {
		return false
	}
	for _, office := range rctx.sortedOffices(func(o Office) bool { return !o.IsVirtual() }) {
		id := Standardize(string(office.ID))
		if id == conflictedOffice {
			continue
		}
		if r.checker.IsAvailableFor(id, appt, working) {
			r.apply(idx, working, id, fmt.Sprintf("relocated from double-booked %s", conflictedOffice), relocations, from)
			return true
		}
	}

	r.logger.Warn("no alternative office free, appointment left in conflict",
		zap.String("appointment", string(appt.ID)),
		zap.String("office", conflictedOffice))
	return false
}

func (r *ConflictResolver) apply(idx int, working []Appointment, to, reason string, relocations *[]Relocation, from string) {
	working[idx].AssignedOfficeID = to
	working[idx].AssignmentReason = "Conflict resolution: " + reason
	*relocations = append(*relocations, Relocation{
		AppointmentID: working[idx].ID,
		FromOfficeID:  from,
		ToOfficeID:    to,
		Reason:        reason,
	})
	r.logger.Info("relocated appointment",
		zap.String("appointment", string(working[idx].ID)),
		zap.String("from", from),
		zap.String("to", to))
}

// conflictMembers maps a conflict's appointment ids back to indexes in the
// working slice, preserving the conflict's order.
func conflictMembers(conflict Conflict, working []Appointment) []int {
	var members []int
	for _, id := range conflict.AppointmentIDs {
		for i := range working {
			if working[i].ID == id {
				members = append(members, i)
				break
			}
		}
	}
	return members
}

// pickKeeper chooses which party of a collision keeps the room: the first
// non-telehealth appointment, else the first in order.
func pickKeeper(working []Appointment, members []int) int {
	for _, idx := range members {
		if !working[idx].SessionType.IsTelehealth() {
			return idx
		}
	}
	return members[0]
}
