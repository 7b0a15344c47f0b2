package models

import (
	"time"

	"github.com/google/uuid"
)

type Conversation struct {
	ID             uuid.UUID   `json:"id"`
	ParticipantIDs []uuid.UUID `json:"participant_ids"`
	LastMessageID  *uuid.UUID  `json:"last_message_id,omitempty"`
	LastMessageAt  *time.Time  `json:"last_message_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
}

func (c *Conversation) HasParticipant(userID uuid.UUID) bool {
	for _, id := range c.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Others returns every participant except userID.
func (c *Conversation) Others(userID uuid.UUID) []uuid.UUID {
	others := make([]uuid.UUID, 0, len(c.ParticipantIDs))
	for _, id := range c.ParticipantIDs {
		if id != userID {
			others = append(others, id)
		}
	}
	return others
}
