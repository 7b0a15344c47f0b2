package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/slotsync/internal/models"
)

type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.User, error)
	UpdateLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error
}

type VendorRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Vendor, error)
	// GetByOwnerIDs returns the vendor profile owned by each of the given users, keyed by owner.
	// Users without a vendor profile are absent from the map.
	GetByOwnerIDs(ctx context.Context, ownerIDs []uuid.UUID) (map[uuid.UUID]*models.Vendor, error)
}

type DeviceRepository interface {
	Register(ctx context.Context, device *models.Device) error
	GetPushTokens(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID][]string, error)
	RemoveToken(ctx context.Context, token string) error
}

type AppointmentRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error)
	ListForVendor(ctx context.Context, vendorID uuid.UUID, from, to time.Time, statuses []models.AppointmentStatus) ([]*models.Appointment, error)
	// FindImminent returns active appointments starting in [from, to) that have not been reminded yet.
	FindImminent(ctx context.Context, from, to time.Time) ([]*models.Appointment, error)
	MarkReminderSent(ctx context.Context, id uuid.UUID) error
	MarkPaid(ctx context.Context, id uuid.UUID) error
	MarkCompleted(ctx context.Context, id uuid.UUID) error
}

type ConversationRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error)
	UpdateLastMessage(ctx context.Context, id, messageID uuid.UUID, at time.Time) error
}

type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error)
	List(ctx context.Context, conversationID uuid.UUID, page, limit int) ([]*models.Message, error)
	CountUnread(ctx context.Context, conversationID, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, conversationID, userID uuid.UUID) ([]uuid.UUID, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
}

type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	CreateMany(ctx context.Context, notifications []*models.Notification) error
	UpdateDelivery(ctx context.Context, id uuid.UUID, pushSent, delivered bool, sentAt time.Time) error
	List(ctx context.Context, userID uuid.UUID, page, limit int, kind models.NotificationType) ([]*models.Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	MarkRead(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error
}

type PresenceRepository interface {
	SetOnline(ctx context.Context, userID uuid.UUID, at time.Time) error
	SetOffline(ctx context.Context, userID uuid.UUID, lastSeen time.Time) error
	GetBulkPresence(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]models.Presence, error)
}
