package models

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentEventType string

const (
	EventBooked           AppointmentEventType = "booked"
	EventCancelled        AppointmentEventType = "cancelled"
	EventPaymentConfirmed AppointmentEventType = "payment_confirmed"
	EventCompleted        AppointmentEventType = "completed"
)

// AppointmentEvent is an externally triggered change to an appointment
// (booking flow, payment webhook, vendor completing a service).
type AppointmentEvent struct {
	AppointmentID uuid.UUID            `json:"appointment_id"`
	Type          AppointmentEventType `json:"type"`
	OccurredAt    time.Time            `json:"occurred_at"`
}

func (t AppointmentEventType) Valid() bool {
	switch t {
	case EventBooked, EventCancelled, EventPaymentConfirmed, EventCompleted:
		return true
	}
	return false
}
