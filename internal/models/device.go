package models

import (
	"time"

	"github.com/google/uuid"
)

// Device holds the push token registered by one of a user's installs.
type Device struct {
	ID         uuid.UUID  `json:"id"`
	UserID     uuid.UUID  `json:"user_id"`
	PushToken  string     `json:"-"`
	Platform   string     `json:"platform"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
