/*
detector.go - Double-booking detection

PURPOSE:
  Scans a fully resolved day's appointments and reports every pair that
  shares a concrete physical office with overlapping time windows.

RULES:
  - Virtual offices and TBD placeholders are exempt: only bookable physical
    ids participate.
  - Telehealth, cancelled and rescheduled appointments never appear in the
    output.
  - Each colliding pair is reported exactly once (symmetric pairs deduped by
    scan order).
  - O(n^2) per same-office group; daily volume is tens of appointments per
    office, not thousands.

SEE ALSO:
  - repair.go: relocates the losing side of each conflict
*/
package scheduling

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ConflictDetector finds same-office, overlapping-time collisions.
type ConflictDetector struct{}

// NewConflictDetector creates a detector.
func NewConflictDetector() *ConflictDetector { return &ConflictDetector{} }

// Detect reports every double-booked pair in the given appointment set.
func (d *ConflictDetector) Detect(appointments []Appointment) []Conflict {
	byOffice := make(map[string][]Appointment)
	for _, appt := range appointments {
		if !appt.Status.CountsForOccupancy() {
			continue
		}
		if appt.SessionType.IsTelehealth() {
			continue
		}
		office := appt.EffectiveOfficeID()
		if !IsBookable(office) {
			continue
		}
		byOffice[office] = append(byOffice[office], appt)
	}

	// Stable office order so repeated runs emit conflicts identically.
	offices := make([]string, 0, len(byOffice))
	for office := range byOffice {
		offices = append(offices, office)
	}
	sort.Strings(offices)

	var conflicts []Conflict
	for _, office := range offices {
		group := byOffice[office]
		sort.Slice(group, func(i, j int) bool {
			if !group[i].StartTime.Equal(group[j].StartTime) {
				return group[i].StartTime.Before(group[j].StartTime)
			}
			return group[i].ID < group[j].ID
		})
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				if group[i].Overlaps(group[j]) {
					conflicts = append(conflicts, newDoubleBooking(office, group[i], group[j]))
				}
			}
		}
	}
	return conflicts
}

// newDoubleBooking builds the conflict record for one colliding pair.
func newDoubleBooking(office string, a, b Appointment) Conflict {
	names := clinicianNames(a, b)
	return Conflict{
		Type:           ConflictDoubleBooking,
		OfficeID:       office,
		TimeRange:      formatUnionRange(a, b),
		AppointmentIDs: []AppointmentID{a.ID, b.ID},
		ClinicianNames: names,
		Severity:       SeverityHigh,
		Suggestion: fmt.Sprintf("Office %s is double-booked; move one appointment to another available office or to the virtual office if telehealth-capable.",
			office),
	}
}

// formatUnionRange renders the span covering both windows, in the
// appointments' own timezone.
func formatUnionRange(a, b Appointment) string {
	start := a.StartTime
	if b.StartTime.Before(start) {
		start = b.StartTime
	}
	end := a.EndTime
	if b.EndTime.After(end) {
		end = b.EndTime
	}
	return fmt.Sprintf("%s - %s", formatClock(start), formatClock(end))
}

func formatClock(t time.Time) string {
	return strings.TrimSpace(t.Format("3:04 PM"))
}

func clinicianNames(appts ...Appointment) []string {
	var names []string
	seen := make(map[string]bool)
	for _, appt := range appts {
		name := appt.ClinicianName
		if name == "" {
			name = string(appt.ClinicianID)
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}
