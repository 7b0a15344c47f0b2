package models

import (
	"time"

	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationChat          NotificationType = "chat"
	NotificationQueue         NotificationType = "queue"
	NotificationReminder      NotificationType = "reminder"
	NotificationPayment       NotificationType = "payment"
	NotificationVendorMessage NotificationType = "vendor_message"
)

type NotificationPriority string

const (
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
)

// Notification is persisted once per dispatch, whichever channel delivers it.
type Notification struct {
	ID          uuid.UUID            `json:"id"`
	RecipientID uuid.UUID            `json:"recipient_id"`
	Title       string               `json:"title"`
	Body        string               `json:"body"`
	Type        NotificationType     `json:"type"`
	Priority    NotificationPriority `json:"priority"`
	Data        map[string]string    `json:"data,omitempty"`
	IsPushSent  bool                 `json:"is_push_sent"`
	IsDelivered bool                 `json:"is_delivered"`
	IsRead      bool                 `json:"is_read"`
	SentAt      *time.Time           `json:"sent_at,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}
