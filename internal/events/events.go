// Package events names the server-to-client real-time events and their payloads.
package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/slotsync/internal/models"
)

const (
	NewMessage         = "new-message"
	MessageRead        = "message-read"
	MessageDeleted     = "message-deleted"
	UserTyping         = "user-typing"
	HeartbeatAck       = "heartbeat-ack"
	UserStatusChange   = "user-status-change"
	ConversationStatus = "conversation-presence"
	OnlineStatus       = "online-status"
	NewNotification    = "new-notification"
	NotificationList   = "notifications"
	UnreadCountUpdate  = "unread-count-update"
	QueuePosition      = "queue-position-update"
	QueueUpdate        = "queue-update"
	VendorQueueData    = "vendor-queue-data"
	PaymentConfirmed   = "payment-confirmed"
	VendorNotification = "vendor-notification"
	MessageHistory     = "messages"
	MessageAck         = "message-sent"
	Error              = "error"
	AuthError          = "auth_error"
	Connected          = "connected"

	CustomerNotificationSent = "customer-notification-sent"
)

// Topic prefixes for hub subscriptions.
const (
	ConversationTopic  = "conversation:"
	VendorQueueTopic   = "vendor-queue:"
	VendorOwnerTopic   = "vendor-owner:"
	NotificationsTopic = "notifications:"
	PresenceTopic      = "presence:"
)

func Conversation(id uuid.UUID) string { return ConversationTopic + id.String() }
func VendorQueue(id uuid.UUID) string { return VendorQueueTopic + id.String() }
func VendorOwner(id uuid.UUID) string { return VendorOwnerTopic + id.String() }
func Notifications(id uuid.UUID) string { return NotificationsTopic + id.String() }
func Presence(id uuid.UUID) string { return PresenceTopic + id.String() }

type StatusChange struct {
	UserID   uuid.UUID  `json:"userId"`
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

type UnreadCount struct {
	Scope          string     `json:"scope"`
	ConversationID *uuid.UUID `json:"conversationId,omitempty"`
	Count          int        `json:"count"`
}

const (
	ScopeNotifications = "notifications"
	ScopeConversation  = "conversation"
)

type Typing struct {
	ConversationID uuid.UUID `json:"conversationId"`
	UserID         uuid.UUID `json:"userId"`
	IsTyping       bool      `json:"isTyping"`
}

type ReadReceipt struct {
	ConversationID uuid.UUID   `json:"conversationId"`
	ReaderID       uuid.UUID   `json:"readerId"`
	MessageIDs     []uuid.UUID `json:"messageIds"`
}

type Deleted struct {
	ConversationID uuid.UUID `json:"conversationId"`
	MessageID      uuid.UUID `json:"messageId"`
}

type QueueSnapshot struct {
	VendorID uuid.UUID          `json:"vendorId"`
	Queue    []models.QueueItem `json:"queue"`
}

// QueueSummary is what every queue watcher sees; the full snapshot goes to the vendor only.
type QueueSummary struct {
	VendorID uuid.UUID `json:"vendorId"`
	Length   int       `json:"length"`
}

type Position struct {
	VendorID uuid.UUID         `json:"vendorId"`
	Item     *models.QueueItem `json:"item"`
	InQueue  bool              `json:"inQueue"`
}

type Payment struct {
	AppointmentID uuid.UUID `json:"appointmentId"`
	VendorID      uuid.UUID `json:"vendorId"`
	CustomerID    uuid.UUID `json:"customerId"`
}

type VendorAlert struct {
	Kind          string    `json:"kind"`
	AppointmentID uuid.UUID `json:"appointmentId"`
	CustomerID    uuid.UUID `json:"customerId"`
	Message       string    `json:"message"`
}

type ConversationPresence struct {
	ConversationID uuid.UUID          `json:"conversationId"`
	Online         map[uuid.UUID]bool `json:"online"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}

// Replies to client requests.

type Welcome struct {
	ConnectionID string    `json:"connectionId"`
	UserID       uuid.UUID `json:"userId"`
}

type History struct {
	ConversationID uuid.UUID            `json:"conversationId"`
	Page           int                  `json:"page"`
	Messages       []models.MessageView `json:"messages"`
}

type MessageSent struct {
	TempID    string              `json:"tempId,omitempty"`
	Message   *models.MessageView `json:"message,omitempty"`
	Duplicate bool                `json:"duplicate,omitempty"`
}

type OnlineStatuses struct {
	Statuses map[uuid.UUID]bool `json:"statuses"`
}

type Heartbeat struct {
	Timestamp time.Time `json:"timestamp"`
}

type NotificationPage struct {
	Page          int                    `json:"page"`
	Notifications []*models.Notification `json:"notifications"`
}

type CustomerNotificationResult struct {
	VendorID uuid.UUID `json:"vendorId"`
	Sent     int       `json:"sent"`
}
