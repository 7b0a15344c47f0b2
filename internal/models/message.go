package models

import (
	"time"

	"github.com/google/uuid"
)

type Attachment struct {
	URL  string `json:"url" validate:"required,url"`
	Type string `json:"type" validate:"required"`
	Name string `json:"name,omitempty"`
}

type Message struct {
	ID                  uuid.UUID    `json:"id"`
	ConversationID      uuid.UUID    `json:"conversation_id"`
	SenderID            uuid.UUID    `json:"sender_id"`
	Content             string       `json:"content"`
	Attachments         []Attachment `json:"attachments,omitempty"`
	ReadBy              []uuid.UUID  `json:"read_by"`
	ClientCorrelationID string       `json:"temp_id,omitempty"`
	CreatedAt           time.Time    `json:"created_at"`
	DeletedAt           *time.Time   `json:"deleted_at,omitempty"`
}

// MessageView is a message together with its resolved sender.
type MessageView struct {
	Message
	Sender ParticipantView `json:"sender"`
}
