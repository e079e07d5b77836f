/*
Package sheets imports and exports practice configuration as workbooks.

PURPOSE:
  The practice maintains its office list, clinician roster, and placement
  rules in a spreadsheet. This package reads that workbook into the
  repository (import) and renders the repository back out (export), plus a
  bulk appointment import for migrating historical bookings.

WORKBOOK LAYOUT:
  Offices:          id, name, active, accessible, floor, size, features,
                    child friendly, break room, primary clinician, alternates
  Clinicians:       id, name, preferred offices, age min, age max, specialties
  Assignment Rules: priority, rule type, condition, offices, override, active
  Appointments:     optional sheet for bulk import (RFC3339 timestamps)

  Row 1 is always a header. Office ids are canonicalized on import, so
  legacy spellings like "b5" or "B_4" land in storage normalized.
*/
package sheets

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/catalyst-eval/catalyst-scheduler/scheduling"
)

const (
	sheetOffices      = "Offices"
	sheetClinicians   = "Clinicians"
	sheetRules        = "Assignment Rules"
	sheetAppointments = "Appointments"
)

// ConfigStore is the write side the importer needs. store/sqlite satisfies it.
type ConfigStore interface {
	SaveOffice(ctx context.Context, o scheduling.Office) error
	SaveClinician(ctx context.Context, c scheduling.Clinician) error
	SaveAssignmentRule(ctx context.Context, r scheduling.AssignmentRule) error
	SaveAppointment(ctx context.Context, appt scheduling.Appointment) error
}

// ImportStats counts what an import touched.
type ImportStats struct {
	Offices      int
	Clinicians   int
	Rules        int
	Appointments int
	SkippedRows  int
}

// Importer reads configuration workbooks into a ConfigStore.
type Importer struct {
	store  ConfigStore
	logger *zap.Logger
}

// NewImporter builds an importer writing into store.
func NewImporter(store ConfigStore, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{store: store, logger: logger}
}

// Import reads the workbook and upserts every recognized row. Malformed
// rows are skipped and counted; a missing optional sheet is not an error.
func (i *Importer) Import(ctx context.Context, r io.Reader) (ImportStats, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return ImportStats{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var stats ImportStats
	if err := i.importOffices(ctx, f, &stats); err != nil {
		return stats, err
	}
	if err := i.importClinicians(ctx, f, &stats); err != nil {
		return stats, err
	}
	if err := i.importRules(ctx, f, &stats); err != nil {
		return stats, err
	}
	if err := i.importAppointments(ctx, f, &stats); err != nil {
		return stats, err
	}

	i.logger.Info("workbook import completed",
		zap.Int("offices", stats.Offices),
		zap.Int("clinicians", stats.Clinicians),
		zap.Int("rules", stats.Rules),
		zap.Int("appointments", stats.Appointments),
		zap.Int("skipped_rows", stats.SkippedRows))
	return stats, nil
}

func (i *Importer) importOffices(ctx context.Context, f *excelize.File, stats *ImportStats) error {
	rows, err := dataRows(f, sheetOffices)
	if err != nil {
		return nil // sheet absent
	}
	for _, row := range rows {
		if cell(row, 0) == "" {
			stats.SkippedRows++
			continue
		}
		o := scheduling.Office{
			ID:               scheduling.OfficeID(scheduling.Standardize(cell(row, 0))),
			Name:             cell(row, 1),
			Active:           parseBool(cell(row, 2)),
			Accessible:       parseBool(cell(row, 3)),
			Floor:            parseFloor(cell(row, 4)),
			Size:             parseSize(cell(row, 5)),
			Features:         splitList(cell(row, 6)),
			ChildFriendly:    parseBool(cell(row, 7)),
			BreakRoom:        parseBool(cell(row, 8)),
			PrimaryClinician: scheduling.ClinicianID(cell(row, 9)),
		}
		for _, id := range splitList(cell(row, 10)) {
			o.AlternateClinicians = append(o.AlternateClinicians, scheduling.ClinicianID(id))
		}
		if err := i.store.SaveOffice(ctx, o); err != nil {
			return fmt.Errorf("save office %s: %w", o.ID, err)
		}
		stats.Offices++
	}
	return nil
}

func (i *Importer) importClinicians(ctx context.Context, f *excelize.File, stats *ImportStats) error {
	rows, err := dataRows(f, sheetClinicians)
	if err != nil {
		return nil
	}
	for _, row := range rows {
		if cell(row, 0) == "" {
			stats.SkippedRows++
			continue
		}
		c := scheduling.Clinician{
			ID:          scheduling.ClinicianID(cell(row, 0)),
			Name:        cell(row, 1),
			AgeRangeMin: parseInt(cell(row, 3)),
			AgeRangeMax: parseInt(cell(row, 4)),
			Specialties: splitList(cell(row, 5)),
		}
		for _, id := range splitList(cell(row, 2)) {
			c.PreferredOffices = append(c.PreferredOffices,
				scheduling.OfficeID(scheduling.Standardize(id)))
		}
		if err := i.store.SaveClinician(ctx, c); err != nil {
			return fmt.Errorf("save clinician %s: %w", c.ID, err)
		}
		stats.Clinicians++
	}
	return nil
}

func (i *Importer) importRules(ctx context.Context, f *excelize.File, stats *ImportStats) error {
	rows, err := dataRows(f, sheetRules)
	if err != nil {
		return nil
	}
	for _, row := range rows {
		priority := parseInt(cell(row, 0))
		if priority == 0 {
			stats.SkippedRows++
			continue
		}
		r := scheduling.AssignmentRule{
			Priority:      priority,
			RuleType:      cell(row, 1),
			Condition:     cell(row, 2),
			OverrideLevel: cell(row, 4),
			Active:        parseBool(cell(row, 5)),
		}
		for _, id := range splitList(cell(row, 3)) {
			r.OfficeIDs = append(r.OfficeIDs,
				scheduling.OfficeID(scheduling.Standardize(id)))
		}
		if err := i.store.SaveAssignmentRule(ctx, r); err != nil {
			return fmt.Errorf("save rule %d: %w", r.Priority, err)
		}
		stats.Rules++
	}
	return nil
}

func (i *Importer) importAppointments(ctx context.Context, f *excelize.File, stats *ImportStats) error {
	rows, err := dataRows(f, sheetAppointments)
	if err != nil {
		return nil
	}
	for _, row := range rows {
		if cell(row, 0) == "" {
			stats.SkippedRows++
			continue
		}
		start, startErr := time.Parse(time.RFC3339, cell(row, 4))
		end, endErr := time.Parse(time.RFC3339, cell(row, 5))
		if startErr != nil || endErr != nil {
			i.logger.Warn("skipping appointment row with bad timestamps",
				zap.String("appointment_id", cell(row, 0)))
			stats.SkippedRows++
			continue
		}
		appt := scheduling.Appointment{
			ID:             scheduling.AppointmentID(cell(row, 0)),
			ClientID:       scheduling.ClientID(cell(row, 1)),
			ClientName:     cell(row, 2),
			ClinicianID:    scheduling.ClinicianID(cell(row, 3)),
			StartTime:      start,
			EndTime:        end,
			SessionType:    scheduling.SessionType(strings.ToLower(cell(row, 6))),
			Status:         scheduling.AppointmentStatus(strings.ToLower(cell(row, 7))),
			LegacyOfficeID: cell(row, 8),
		}
		if appt.SessionType == "" {
			appt.SessionType = scheduling.SessionInPerson
		}
		if appt.Status == "" {
			appt.Status = scheduling.StatusScheduled
		}
		if err := i.store.SaveAppointment(ctx, appt); err != nil {
			return fmt.Errorf("save appointment %s: %w", appt.ID, err)
		}
		stats.Appointments++
	}
	return nil
}

// =============================================================================
// EXPORT
// =============================================================================

// Export renders the repository's configuration into a workbook.
func Export(ctx context.Context, repo scheduling.Repository, w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	offices, err := repo.ActiveOffices(ctx)
	if err != nil {
		return fmt.Errorf("load offices: %w", err)
	}
	clinicians, err := repo.Clinicians(ctx)
	if err != nil {
		return fmt.Errorf("load clinicians: %w", err)
	}
	rules, err := repo.AssignmentRules(ctx)
	if err != nil {
		return fmt.Errorf("load rules: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	officeRows := make([][]any, 0, len(offices))
	for _, o := range offices {
		var alternates []string
		for _, id := range o.AlternateClinicians {
			alternates = append(alternates, string(id))
		}
		officeRows = append(officeRows, []any{
			string(o.ID), o.Name, o.Active, o.Accessible, string(o.Floor),
			string(o.Size), strings.Join(o.Features, ", "), o.ChildFriendly,
			o.BreakRoom, string(o.PrimaryClinician), strings.Join(alternates, ", "),
		})
	}
	if err := writeSheet(f, sheetOffices, headerStyle,
		[]string{"Office ID", "Name", "Active", "Accessible", "Floor", "Size",
			"Features", "Child Friendly", "Break Room", "Primary Clinician",
			"Alternate Clinicians"},
		officeRows); err != nil {
		return err
	}

	clinicianRows := make([][]any, 0, len(clinicians))
	for _, c := range clinicians {
		var preferred []string
		for _, id := range c.PreferredOffices {
			preferred = append(preferred, string(id))
		}
		clinicianRows = append(clinicianRows, []any{
			string(c.ID), c.Name, strings.Join(preferred, ", "),
			c.AgeRangeMin, c.AgeRangeMax, strings.Join(c.Specialties, ", "),
		})
	}
	if err := writeSheet(f, sheetClinicians, headerStyle,
		[]string{"Clinician ID", "Name", "Preferred Offices", "Age Min", "Age Max",
			"Specialties"},
		clinicianRows); err != nil {
		return err
	}

	ruleRows := make([][]any, 0, len(rules))
	for _, r := range rules {
		var officeIDs []string
		for _, id := range r.OfficeIDs {
			officeIDs = append(officeIDs, string(id))
		}
		ruleRows = append(ruleRows, []any{
			r.Priority, r.RuleType, r.Condition,
			strings.Join(officeIDs, ", "), r.OverrideLevel, r.Active,
		})
	}
	if err := writeSheet(f, sheetRules, headerStyle,
		[]string{"Priority", "Rule Type", "Condition", "Offices", "Override Level",
			"Active"},
		ruleRows); err != nil {
		return err
	}

	// Drop the default sheet excelize creates.
	f.DeleteSheet("Sheet1")

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, name string, headerStyle int, headers []string, rows [][]any) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}

	for col, header := range headers {
		cellName, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return fmt.Errorf("convert coordinates: %w", err)
		}
		if err := f.SetCellValue(name, cellName, header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	lastHeader, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(name, "A1", lastHeader, headerStyle); err != nil {
		return fmt.Errorf("style header: %w", err)
	}

	for rowIdx, row := range rows {
		for col, value := range row {
			cellName, err := excelize.CoordinatesToCellName(col+1, rowIdx+2)
			if err != nil {
				return fmt.Errorf("convert coordinates: %w", err)
			}
			if err := f.SetCellValue(name, cellName, value); err != nil {
				return fmt.Errorf("write cell: %w", err)
			}
		}
	}
	return nil
}

// =============================================================================
// CELL PARSING
// =============================================================================

func dataRows(f *excelize.File, sheet string) ([][]string, error) {
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, err
	}
	if len(rows) <= 1 {
		return nil, nil
	}
	return rows[1:], nil
}

func cell(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "true", "yes", "y", "1", "x":
		return true
	default:
		return false
	}
}

func parseInt(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var values []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	return values
}

func parseFloor(s string) scheduling.FloorCategory {
	if strings.EqualFold(s, string(scheduling.FloorGround)) {
		return scheduling.FloorGround
	}
	return scheduling.FloorUpper
}

func parseSize(s string) scheduling.SizeCategory {
	switch strings.ToLower(s) {
	case string(scheduling.SizeSmall):
		return scheduling.SizeSmall
	case string(scheduling.SizeLarge):
		return scheduling.SizeLarge
	default:
		return scheduling.SizeMedium
	}
}
