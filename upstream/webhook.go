package upstream

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/catalyst-eval/catalyst-scheduler/scheduling"
)

// EventType is the closed set of webhook events the provider sends.
type EventType string

const (
	EventAppointmentCreated   EventType = "AppointmentCreated"
	EventAppointmentUpdated   EventType = "AppointmentUpdated"
	EventAppointmentCancelled EventType = "AppointmentCancelled"
	EventAppointmentDeleted   EventType = "AppointmentDeleted"
)

// ErrUnknownEventType rejects payloads outside the closed event set.
var ErrUnknownEventType = errors.New("unknown webhook event type")

// ErrBadSignature rejects payloads whose HMAC doesn't match.
var ErrBadSignature = errors.New("webhook signature mismatch")

// ParseEventType validates raw against the closed set.
func ParseEventType(raw string) (EventType, error) {
	switch t := EventType(raw); t {
	case EventAppointmentCreated, EventAppointmentUpdated,
		EventAppointmentCancelled, EventAppointmentDeleted:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEventType, raw)
	}
}

// Removes the appointment from the working day rather than re-resolving it.
func (t EventType) IsRemoval() bool {
	return t == EventAppointmentCancelled || t == EventAppointmentDeleted
}

// Event is one parsed, verified webhook delivery.
type Event struct {
	Type        EventType
	Appointment scheduling.Appointment
}

type wireEvent struct {
	EventType   string          `json:"EventType"`
	Appointment json.RawMessage `json:"Appointment"`
}

// VerifySignature checks the hex-encoded HMAC-SHA256 of body against the
// shared secret. Constant-time compare; an empty secret verifies nothing
// and always fails.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Sign computes the hex HMAC-SHA256 of body. Only tests and tooling send;
// the server side just verifies.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// ParseEvent decodes a verified webhook body into an Event. The signature
// check happens before this; ParseEvent trusts its input's origin but not
// its shape.
func ParseEvent(body []byte) (Event, error) {
	var we wireEvent
	if err := json.Unmarshal(body, &we); err != nil {
		return Event{}, fmt.Errorf("decode webhook body: %w", err)
	}
	eventType, err := ParseEventType(we.EventType)
	if err != nil {
		return Event{}, err
	}
	if len(we.Appointment) == 0 {
		return Event{}, fmt.Errorf("webhook %s has no appointment payload", eventType)
	}
	w, err := decodeWire(we.Appointment)
	if err != nil {
		return Event{}, err
	}
	appt, err := w.toAppointment()
	if err != nil {
		return Event{}, err
	}
	if eventType.IsRemoval() {
		appt.Status = scheduling.StatusCancelled
	}
	return Event{Type: eventType, Appointment: appt}, nil
}
