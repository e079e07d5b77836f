/*
Package upstream talks to the third-party appointment source.

PURPOSE:
  The practice does not own its booking system. Appointments arrive two
  ways: pulled in bulk over the provider's REST API (daily regeneration)
  and pushed one at a time over signed webhooks (live updates). This
  package owns both edges and translates the provider's wire shapes into
  scheduling types; nothing above it sees provider JSON.

DESIGN:
  - Client wraps a resty client with transport-level retry; callers get
    scheduling.Appointment values, already normalized.
  - Webhook verification is HMAC-SHA256 over the raw body, hex encoded,
    compared in constant time.
  - Event types are a closed set; unknown types are rejected at the edge
    rather than flowing into the engine.
*/
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/catalyst-eval/catalyst-scheduler/scheduling"
)

const (
	defaultTimeout      = 30 * time.Second
	defaultRetryCount   = 3
	defaultRetryWait    = 1 * time.Second
	defaultRetryWaitMax = 5 * time.Second
)

// Client fetches appointments from the provider's REST API.
type Client struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

// NewClient builds a client for the provider API at baseURL. The API key
// goes in the X-Auth-Key header on every request.
func NewClient(baseURL, apiKey string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(defaultTimeout).
		SetRetryCount(defaultRetryCount).
		SetRetryWaitTime(defaultRetryWait).
		SetRetryMaxWaitTime(defaultRetryWaitMax).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json").
		SetHeader("X-Auth-Key", apiKey)

	return &Client{httpClient: httpClient, logger: logger}
}

// wireAppointment is the provider's appointment shape.
type wireAppointment struct {
	ID             string   `json:"Id"`
	ClientID       string   `json:"ClientId"`
	ClientName     string   `json:"ClientName"`
	ClientAge      *int     `json:"ClientAge,omitempty"`
	PractitionerID string   `json:"PractitionerId"`
	Practitioner   string   `json:"PractitionerName"`
	StartDateISO   string   `json:"StartDateIso"`
	EndDateISO     string   `json:"EndDateIso"`
	ServiceType    string   `json:"ServiceType"`
	Status         string   `json:"Status"`
	Location       string   `json:"Location,omitempty"`
	Tags           []string `json:"Tags,omitempty"`
}

type wireAppointmentList struct {
	Appointments []wireAppointment `json:"Appointments"`
}

// AppointmentsForRange pulls every appointment whose start falls inside
// [from, to], normalized and ready for the engine.
func (c *Client) AppointmentsForRange(ctx context.Context, from, to time.Time) ([]scheduling.Appointment, error) {
	var list wireAppointmentList
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetQueryParam("startDate", from.Format("2006-01-02")).
		SetQueryParam("endDate", to.Format("2006-01-02")).
		SetResult(&list).
		Get("/appointments")
	if err != nil {
		return nil, fmt.Errorf("fetch appointments: %w", err)
	}
	if resp.IsError() {
		c.logger.Error("appointment source rejected request",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("body", resp.String()))
		return nil, fmt.Errorf("appointment source returned %d", resp.StatusCode())
	}

	appointments := make([]scheduling.Appointment, 0, len(list.Appointments))
	for _, w := range list.Appointments {
		appt, err := w.toAppointment()
		if err != nil {
			// One malformed record must not sink the whole pull.
			c.logger.Warn("skipping malformed appointment",
				zap.String("appointment_id", w.ID),
				zap.Error(err))
			continue
		}
		appointments = append(appointments, appt)
	}

	c.logger.Info("fetched appointments",
		zap.Int("count", len(appointments)),
		zap.String("from", from.Format("2006-01-02")),
		zap.String("to", to.Format("2006-01-02")))
	return appointments, nil
}

// Appointment fetches a single appointment by provider id.
func (c *Client) Appointment(ctx context.Context, id scheduling.AppointmentID) (scheduling.Appointment, error) {
	var w wireAppointment
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetResult(&w).
		Get("/appointments/" + string(id))
	if err != nil {
		return scheduling.Appointment{}, fmt.Errorf("fetch appointment %s: %w", id, err)
	}
	if resp.StatusCode() == 404 {
		return scheduling.Appointment{}, scheduling.ErrAppointmentNotFound
	}
	if resp.IsError() {
		return scheduling.Appointment{}, fmt.Errorf("appointment source returned %d", resp.StatusCode())
	}
	return w.toAppointment()
}

func (w wireAppointment) toAppointment() (scheduling.Appointment, error) {
	if w.ID == "" {
		return scheduling.Appointment{}, fmt.Errorf("appointment has no id")
	}
	start, err := time.Parse(time.RFC3339, w.StartDateISO)
	if err != nil {
		return scheduling.Appointment{}, fmt.Errorf("parse start %q: %w", w.StartDateISO, err)
	}
	end, err := time.Parse(time.RFC3339, w.EndDateISO)
	if err != nil {
		return scheduling.Appointment{}, fmt.Errorf("parse end %q: %w", w.EndDateISO, err)
	}

	return scheduling.Appointment{
		ID:               scheduling.AppointmentID(w.ID),
		ClientID:         scheduling.ClientID(w.ClientID),
		ClientName:       w.ClientName,
		ClientAge:        w.ClientAge,
		ClinicianID:      scheduling.ClinicianID(w.PractitionerID),
		ClinicianName:    w.Practitioner,
		StartTime:        start,
		EndTime:          end,
		SessionType:      normalizeSessionType(w.ServiceType),
		Status:           normalizeStatus(w.Status),
		CurrentOfficeID:  w.Location,
		RequiredFeatures: w.Tags,
	}, nil
}

// normalizeSessionType folds the provider's free-text service names into
// the closed session set. Anything unrecognized is treated as in-person,
// the conservative choice for room planning.
func normalizeSessionType(raw string) scheduling.SessionType {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(s, "telehealth"), strings.Contains(s, "virtual"),
		strings.Contains(s, "video"), strings.Contains(s, "remote"):
		return scheduling.SessionTelehealth
	case strings.Contains(s, "group"):
		return scheduling.SessionGroup
	case strings.Contains(s, "family"), strings.Contains(s, "couple"):
		return scheduling.SessionFamily
	default:
		return scheduling.SessionInPerson
	}
}

func normalizeStatus(raw string) scheduling.AppointmentStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "cancelled", "canceled", "declined", "no show", "no_show":
		return scheduling.StatusCancelled
	case "completed", "attended":
		return scheduling.StatusCompleted
	case "rescheduled":
		return scheduling.StatusRescheduled
	default:
		return scheduling.StatusScheduled
	}
}

// decodeWire is shared with webhook parsing.
func decodeWire(data []byte) (wireAppointment, error) {
	var w wireAppointment
	if err := json.Unmarshal(data, &w); err != nil {
		return wireAppointment{}, fmt.Errorf("decode appointment payload: %w", err)
	}
	return w, nil
}
