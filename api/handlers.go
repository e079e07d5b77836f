/*
handlers.go - HTTP API handlers for the office scheduler

PURPOSE:
  Exposes the scheduling engine via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Schedule:
    GET    /api/schedule                 Read a day's appointments + conflicts
    POST   /api/schedule/generate        Regenerate a day's assignments
    POST   /api/schedule/conflicts/resolve  Repair-only pass

  Webhooks:
    POST   /api/webhooks/appointments    Signed appointment events

  Configuration:
    GET    /api/offices                  List active offices
    GET    /api/clinicians               List clinicians
    GET    /api/rules                    List assignment rules

  Admin:
    POST   /api/admin/import             Workbook configuration import
    GET    /api/admin/audit              Recent audit trail

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (and webhook signature)
  3. Call domain logic (engine, importer)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 401: Webhook signature rejected
  - 404: Resource not found
  - 503: Repository unavailable
  - 500: Internal errors

SECURITY NOTE:
  Webhooks are authenticated by HMAC signature. Administrative endpoints
  carry no authentication; front them with something that does.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - upstream/webhook.go: Signature verification and event parsing
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/catalyst-eval/catalyst-scheduler/scheduling"
	"github.com/catalyst-eval/catalyst-scheduler/store/sheets"
	"github.com/catalyst-eval/catalyst-scheduler/upstream"
)

// SignatureHeader carries the webhook body's hex HMAC-SHA256.
const SignatureHeader = "X-Webhook-Signature"

// maxWebhookBody caps webhook reads at 1 MiB.
const maxWebhookBody = 1 << 20

// AppointmentSaver is the full-record write the webhook path needs before
// re-resolving. Both stores satisfy it.
type AppointmentSaver interface {
	SaveAppointment(ctx context.Context, appt scheduling.Appointment) error
}

// AuditReader exposes the stored audit trail. Optional; store/sqlite
// satisfies it.
type AuditReader interface {
	AuditEntries(ctx context.Context, limit int) ([]scheduling.AuditEntry, error)
}

// ConfigInvalidator drops cached configuration after a mutation so the
// engine never resolves against a stale office or clinician list.
// scheduling.CachedRepository satisfies it.
type ConfigInvalidator interface {
	InvalidateAll()
}

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine        *scheduling.Engine
	Repo          scheduling.Repository
	Appointments  AppointmentSaver
	Audit         AuditReader       // nil disables /api/admin/audit
	Importer      *sheets.Importer  // nil disables /api/admin/import
	ConfigCache   ConfigInvalidator // invalidated after every import
	WebhookSecret string
	Retrier       *upstream.Retrier
	Logger        *zap.Logger
}

// NewHandler creates a handler around the engine and its repository.
func NewHandler(engine *scheduling.Engine, repo scheduling.Repository, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Engine:  engine,
		Repo:    repo,
		Retrier: upstream.NewRetrier(logger),
		Logger:  logger,
	}
}

// =============================================================================
// SCHEDULE HANDLERS
// =============================================================================

// GetSchedule returns the stored schedule for a day without re-resolving.
// GET /api/schedule?date=YYYY-MM-DD
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	date, err := parseDate(r.URL.Query().Get("date"), h.Engine.BusinessDate())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	appointments, err := h.Repo.AppointmentsForDay(r.Context(), date)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Failed to read appointments", err)
		return
	}

	detector := scheduling.NewConflictDetector()
	conflicts := detector.Detect(appointments)

	writeJSON(w, http.StatusOK, toScheduleResponse(date, appointments, conflicts, nil))
}

// GenerateSchedule re-resolves every appointment for a day.
// POST /api/schedule/generate
func (h *Handler) GenerateSchedule(w http.ResponseWriter, r *http.Request) {
	var req GenerateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := parseDate(req.Date, time.Time{})
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	schedule, err := h.Engine.GenerateDailySchedule(r.Context(), date)
	if err != nil {
		if errors.Is(err, scheduling.ErrRepositoryUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "Repository unavailable", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Schedule generation failed", err)
		return
	}

	writeJSON(w, http.StatusOK,
		toScheduleResponse(schedule.Date, schedule.Appointments, schedule.Conflicts, &schedule.Stats))
}

// ResolveConflicts runs a repair-only pass for a day.
// POST /api/schedule/conflicts/resolve
func (h *Handler) ResolveConflicts(w http.ResponseWriter, r *http.Request) {
	var req GenerateScheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	date, err := parseDate(req.Date, h.Engine.BusinessDate())
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	relocated, err := h.Engine.ResolveConflicts(r.Context(), date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Conflict resolution failed", err)
		return
	}

	writeJSON(w, http.StatusOK, ResolveConflictsResponse{
		Date:      date.Format("2006-01-02"),
		Relocated: relocated,
	})
}

// =============================================================================
// WEBHOOK HANDLER
// =============================================================================

// ReceiveWebhook processes one signed appointment event from the upstream
// booking provider: verify, store the booking, then run the single-event
// resolution path.
// POST /api/webhooks/appointments
func (h *Handler) ReceiveWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read body", err)
		return
	}

	if !upstream.VerifySignature(h.WebhookSecret, body, r.Header.Get(SignatureHeader)) {
		h.Logger.Warn("webhook signature rejected")
		writeError(w, http.StatusUnauthorized, "Invalid signature", nil)
		return
	}

	event, err := upstream.ParseEvent(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid webhook payload", err)
		return
	}

	ctx := r.Context()
	h.Logger.Info("webhook received",
		zap.String("event_type", string(event.Type)),
		zap.String("appointment_id", string(event.Appointment.ID)))

	// The booking write goes through the retry loop; the provider retries
	// deliveries we fail, so a permanent storage failure is a 503.
	if h.Appointments != nil {
		err = h.Retrier.Do(ctx, "save appointment", func() error {
			return h.Appointments.SaveAppointment(ctx, event.Appointment)
		})
		if err != nil {
			writeError(w, http.StatusServiceUnavailable, "Failed to store appointment", err)
			return
		}
	}

	resp := WebhookResponse{
		EventType:     string(event.Type),
		AppointmentID: string(event.Appointment.ID),
	}

	// Cancellations free their office; there is nothing to place.
	if event.Type.IsRemoval() {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	assignment, err := h.Engine.ResolveAppointment(ctx, event.Appointment)
	if err != nil {
		var persistErr *scheduling.PersistenceError
		if errors.As(err, &persistErr) {
			writeError(w, http.StatusServiceUnavailable, "Failed to persist assignment", err)
			return
		}
		writeError(w, http.StatusUnprocessableEntity, "Failed to resolve appointment", err)
		return
	}

	resp.AssignedOffice = assignment.OfficeID
	resp.Reason = assignment.Reason
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// CONFIGURATION HANDLERS
// =============================================================================

// ListOffices returns the active offices.
// GET /api/offices
func (h *Handler) ListOffices(w http.ResponseWriter, r *http.Request) {
	offices, err := h.Repo.ActiveOffices(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Failed to list offices", err)
		return
	}
	dtos := make([]OfficeDTO, len(offices))
	for i, o := range offices {
		dtos[i] = toOfficeDTO(o)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListClinicians returns all clinicians.
// GET /api/clinicians
func (h *Handler) ListClinicians(w http.ResponseWriter, r *http.Request) {
	clinicians, err := h.Repo.Clinicians(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Failed to list clinicians", err)
		return
	}
	dtos := make([]ClinicianDTO, len(clinicians))
	for i, c := range clinicians {
		dtos[i] = toClinicianDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListRules returns the stored assignment rule table.
// GET /api/rules
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.Repo.AssignmentRules(r.Context())
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Failed to list rules", err)
		return
	}
	dtos := make([]RuleDTO, len(rules))
	for i, rule := range rules {
		dtos[i] = toRuleDTO(rule)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// ImportWorkbook ingests a configuration workbook from the request body.
// POST /api/admin/import
func (h *Handler) ImportWorkbook(w http.ResponseWriter, r *http.Request) {
	if h.Importer == nil {
		writeError(w, http.StatusNotImplemented, "Import not configured", nil)
		return
	}

	stats, err := h.Importer.Import(r.Context(), r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Import failed", err)
		return
	}

	// The import wrote offices, clinicians and rules straight through the
	// repository; drop the cached snapshots before the engine reads again.
	if h.ConfigCache != nil {
		h.ConfigCache.InvalidateAll()
	}

	writeJSON(w, http.StatusOK, ImportResponse{
		Offices:      stats.Offices,
		Clinicians:   stats.Clinicians,
		Rules:        stats.Rules,
		Appointments: stats.Appointments,
		SkippedRows:  stats.SkippedRows,
	})
}

// GetAuditTrail returns recent audit entries, newest first.
// GET /api/admin/audit?limit=N
func (h *Handler) GetAuditTrail(w http.ResponseWriter, r *http.Request) {
	if h.Audit == nil {
		writeError(w, http.StatusNotImplemented, "Audit trail not configured", nil)
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := parsePositiveInt(raw); err == nil {
			limit = n
		}
	}

	entries, err := h.Audit.AuditEntries(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Failed to read audit trail", err)
		return
	}

	dtos := make([]AuditEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toAuditEntryDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func toScheduleResponse(date time.Time, appointments []scheduling.Appointment, conflicts []scheduling.Conflict, stats *scheduling.ScheduleStats) ScheduleResponse {
	resp := ScheduleResponse{
		Date:         date.Format("2006-01-02"),
		Appointments: make([]AppointmentDTO, len(appointments)),
		Conflicts:    make([]ConflictDTO, len(conflicts)),
		Stats:        stats,
	}
	for i, a := range appointments {
		resp.Appointments[i] = toAppointmentDTO(a)
	}
	for i, c := range conflicts {
		resp.Conflicts[i] = toConflictDTO(c)
	}
	return resp
}

// parseDate parses YYYY-MM-DD; an empty string yields fallback.
func parseDate(raw string, fallback time.Time) (time.Time, error) {
	if raw == "" {
		return fallback, nil
	}
	return time.Parse("2006-01-02", raw)
}

func parsePositiveInt(raw string) (int, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("must be positive: %d", n)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
