package models

import (
	"time"

	"github.com/google/uuid"
)

type AppointmentStatus string

const (
	AppointmentPending   AppointmentStatus = "pending"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentOngoing   AppointmentStatus = "ongoing"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// ActiveStatuses are the statuses that occupy a place in a vendor's queue.
var ActiveStatuses = []AppointmentStatus{AppointmentPending, AppointmentConfirmed, AppointmentOngoing}

func (s AppointmentStatus) IsActive() bool {
	for _, active := range ActiveStatuses {
		if s == active {
			return true
		}
	}
	return false
}

type Appointment struct {
	ID              uuid.UUID         `json:"id"`
	UserID          uuid.UUID         `json:"user_id"`
	VendorID        uuid.UUID         `json:"vendor_id"`
	ServiceName     string            `json:"service_name"`
	AppointmentTime time.Time         `json:"appointment_time"`
	Status          AppointmentStatus `json:"status"`
	IsPaid          bool              `json:"is_paid"`
	ReminderSent    bool              `json:"reminder_sent"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}
