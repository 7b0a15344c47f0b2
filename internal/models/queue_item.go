package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// QueueItem is one slot of a vendor's computed wait queue. Sequences of QueueItem are
// always rebuilt wholesale; positions run 1..N.
type QueueItem struct {
	AppointmentID     uuid.UUID     `json:"appointment_id"`
	UserID            uuid.UUID     `json:"user_id"`
	VendorID          uuid.UUID     `json:"vendor_id"`
	AppointmentTime   time.Time     `json:"appointment_time"`
	IsPaid            bool          `json:"is_paid"`
	Position          int           `json:"position"`
	EstimatedWaitTime time.Duration `json:"-"`
}

func (q QueueItem) MarshalJSON() ([]byte, error) {
	type alias QueueItem
	return json.Marshal(struct {
		alias
		EstimatedWaitMinutes int `json:"estimated_wait_minutes"`
	}{alias(q), int(q.EstimatedWaitTime / time.Minute)})
}
