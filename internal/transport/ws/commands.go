package ws

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prudhvinik1/slotsync/internal/models"
)

// Client event names.
const (
	EventAuth                     = "auth"
	EventJoinConversation         = "join-conversation"
	EventLeaveConversation        = "leave-conversation"
	EventGetMessages              = "get-messages"
	EventSendMessage              = "send-message"
	EventMarkRead                 = "mark-read"
	EventTyping                   = "typing"
	EventDeleteMessage            = "delete-message"
	EventGetOnlineStatus          = "get-online-status"
	EventSubscribeUserStatus      = "subscribe-user-status"
	EventHeartbeat                = "heartbeat"
	EventJoinNotifications        = "join-notifications"
	EventGetNotifications         = "get-notifications"
	EventGetUnreadCount           = "get-unread-count"
	EventMarkNotificationsRead    = "mark-notifications-read"
	EventJoinVendorQueue          = "join-vendor-queue"
	EventLeaveVendorQueue         = "leave-vendor-queue"
	EventGetMyQueuePosition       = "get-my-queue-position"
	EventSubscribeVendorQueue     = "subscribe-vendor-queue"
	EventSendCustomerNotification = "send-customer-notification"
)

var (
	ErrUnknownEvent   = errors.New("unknown event")
	ErrInvalidPayload = errors.New("invalid payload")
)

// Envelope is the wire frame in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Command is a decoded client request. Each client event has exactly one Command type.
type Command interface {
	Event() string
}

type Auth struct {
	Token string `json:"token" validate:"required"`
}

type JoinConversation struct {
	ConversationID uuid.UUID `json:"conversationId" validate:"required"`
}

type LeaveConversation struct {
	ConversationID uuid.UUID `json:"conversationId" validate:"required"`
}

type GetMessages struct {
	ConversationID uuid.UUID `json:"conversationId" validate:"required"`
	Page           int       `json:"page" validate:"gte=0"`
	Limit          int       `json:"limit" validate:"gte=0,lte=100"`
}

type SendMessage struct {
	ConversationID uuid.UUID           `json:"conversationId" validate:"required"`
	Content        string              `json:"content"`
	Attachments    []models.Attachment `json:"attachments"`
	TempID         string              `json:"tempId" validate:"max=128"`
}

type MarkRead struct {
	ConversationID uuid.UUID `json:"conversationId" validate:"required"`
}

type Typing struct {
	ConversationID uuid.UUID `json:"conversationId" validate:"required"`
	IsTyping       bool      `json:"isTyping"`
}

type DeleteMessage struct {
	MessageID uuid.UUID `json:"messageId" validate:"required"`
}

type GetOnlineStatus struct {
	UserIDs []uuid.UUID `json:"userIds" validate:"required,min=1,max=500"`
}

type SubscribeUserStatus struct {
	UserIDs []uuid.UUID `json:"userIds" validate:"required,min=1,max=500"`
}

type Heartbeat struct{}

type JoinNotifications struct{}

type GetNotifications struct {
	Page  int                     `json:"page" validate:"gte=0"`
	Limit int                     `json:"limit" validate:"gte=0,lte=100"`
	Type  models.NotificationType `json:"type"`
}

type GetUnreadCount struct{}

type MarkNotificationsRead struct {
	NotificationIDs []uuid.UUID `json:"notificationIds"`
}

type JoinVendorQueue struct {
	VendorID uuid.UUID `json:"vendorId" validate:"required"`
}

type LeaveVendorQueue struct {
	VendorID uuid.UUID `json:"vendorId" validate:"required"`
}

type GetMyQueuePosition struct {
	VendorID uuid.UUID `json:"vendorId" validate:"required"`
}

type SubscribeVendorQueue struct {
	VendorID uuid.UUID `json:"vendorId" validate:"required"`
}

type SendCustomerNotification struct {
	VendorID    uuid.UUID   `json:"vendorId" validate:"required"`
	CustomerIDs []uuid.UUID `json:"customerIds"`
	Title       string      `json:"title" validate:"max=200"`
	Message     string      `json:"message" validate:"required,max=1000"`
}

func (Auth) Event() string { return EventAuth }
func (JoinConversation) Event() string { return EventJoinConversation }
func (LeaveConversation) Event() string { return EventLeaveConversation }
func (GetMessages) Event() string { return EventGetMessages }
func (SendMessage) Event() string { return EventSendMessage }
func (MarkRead) Event() string { return EventMarkRead }
func (Typing) Event() string { return EventTyping }
func (DeleteMessage) Event() string { return EventDeleteMessage }
func (GetOnlineStatus) Event() string { return EventGetOnlineStatus }
func (SubscribeUserStatus) Event() string { return EventSubscribeUserStatus }
func (Heartbeat) Event() string { return EventHeartbeat }
func (JoinNotifications) Event() string { return EventJoinNotifications }
func (GetNotifications) Event() string { return EventGetNotifications }
func (GetUnreadCount) Event() string { return EventGetUnreadCount }
func (MarkNotificationsRead) Event() string { return EventMarkNotificationsRead }
func (JoinVendorQueue) Event() string { return EventJoinVendorQueue }
func (LeaveVendorQueue) Event() string { return EventLeaveVendorQueue }
func (GetMyQueuePosition) Event() string { return EventGetMyQueuePosition }
func (SubscribeVendorQueue) Event() string { return EventSubscribeVendorQueue }
func (SendCustomerNotification) Event() string { return EventSendCustomerNotification }

var decoders = map[string]func(json.RawMessage) (Command, error){
	EventAuth:                     decodeAs[Auth],
	EventJoinConversation:         decodeAs[JoinConversation],
	EventLeaveConversation:        decodeAs[LeaveConversation],
	EventGetMessages:              decodeAs[GetMessages],
	EventSendMessage:              decodeAs[SendMessage],
	EventMarkRead:                 decodeAs[MarkRead],
	EventTyping:                   decodeAs[Typing],
	EventDeleteMessage:            decodeAs[DeleteMessage],
	EventGetOnlineStatus:          decodeAs[GetOnlineStatus],
	EventSubscribeUserStatus:      decodeAs[SubscribeUserStatus],
	EventHeartbeat:                decodeAs[Heartbeat],
	EventJoinNotifications:        decodeAs[JoinNotifications],
	EventGetNotifications:         decodeAs[GetNotifications],
	EventGetUnreadCount:           decodeAs[GetUnreadCount],
	EventMarkNotificationsRead:    decodeAs[MarkNotificationsRead],
	EventJoinVendorQueue:          decodeAs[JoinVendorQueue],
	EventLeaveVendorQueue:         decodeAs[LeaveVendorQueue],
	EventGetMyQueuePosition:       decodeAs[GetMyQueuePosition],
	EventSubscribeVendorQueue:     decodeAs[SubscribeVendorQueue],
	EventSendCustomerNotification: decodeAs[SendCustomerNotification],
}

var validate = validator.New()

// Decode turns a client frame into its Command.
func Decode(env Envelope) (Command, error) {
	decode, ok := decoders[env.Event]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	return decode(env.Data)
}

func decodeAs[T Command](data json.RawMessage) (Command, error) {
	var cmd T
	if len(data) > 0 && string(data) != "null" {
		if err := json.Unmarshal(data, &cmd); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
	}
	if err := validate.Struct(cmd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return cmd, nil
}
