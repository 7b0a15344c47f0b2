package models

import (
	"time"

	"github.com/google/uuid"
)

// Connection is one live real-time session. It is owned by the presence registry
// from handshake until disconnect or eviction.
type Connection struct {
	ID       string    `json:"id"`
	UserID   uuid.UUID `json:"user_id"`
	JoinedAt time.Time `json:"joined_at"`
	LastSeen time.Time `json:"last_seen"`
}
