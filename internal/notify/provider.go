package notify

import (
	"context"

	"github.com/prudhvinik1/slotsync/internal/models"
)

// PushMessage is addressed to exactly one device token so every message maps to one ticket.
type PushMessage struct {
	To       string
	Title    string
	Body     string
	Data     map[string]string
	Priority models.NotificationPriority
}

// PushTicket is the provider's per-message outcome. TokenInvalid marks a permanent failure
// after which the token must not be used again.
type PushTicket struct {
	Token        string
	OK           bool
	TokenInvalid bool
	Err          error
}

type PushProvider interface {
	ValidToken(token string) bool
	// BatchLimit is the largest number of messages accepted by one Send.
	BatchLimit() int
	// Send returns one ticket per message in order. A non-nil error means the whole batch failed.
	Send(ctx context.Context, messages []PushMessage) ([]PushTicket, error)
}
