package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/slotsync/internal/models"
	"github.com/redis/go-redis/v9"
)

const presenceKeyPrefix = "presence:"

// RedisPresenceRepository mirrors the in-process registry so other instances can answer
// presence queries for users connected elsewhere. Entries expire after ttl unless refreshed.
type RedisPresenceRepository struct {
	client   redis.Cmdable
	ttl      time.Duration
	instance string
}

func NewRedisPresenceRepository(client redis.Cmdable, ttl time.Duration, instance string) *RedisPresenceRepository {
	return &RedisPresenceRepository{client: client, ttl: ttl, instance: instance}
}

// SetOnline records the user as online on this instance. Calling it again refreshes the TTL.
func (r *RedisPresenceRepository) SetOnline(ctx context.Context, userID uuid.UUID, at time.Time) error {
	return r.set(ctx, models.Presence{
		UserID:   userID,
		Status:   models.StatusOnline,
		LastSeen: at,
		Instance: r.instance,
	})
}

func (r *RedisPresenceRepository) SetOffline(ctx context.Context, userID uuid.UUID, lastSeen time.Time) error {
	return r.set(ctx, models.Presence{
		UserID:   userID,
		Status:   models.StatusOffline,
		LastSeen: lastSeen,
	})
}

func (r *RedisPresenceRepository) set(ctx context.Context, presence models.Presence) error {
	data, err := json.Marshal(presence)
	if err != nil {
		return fmt.Errorf("failed to marshal presence: %w", err)
	}

	err = r.client.Set(ctx, presenceKey(presence.UserID), data, r.ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set presence: %w", err)
	}
	return nil
}

// GetBulkPresence retrieves presence for multiple users in a single round trip.
// Users with no entry, or an unreadable one, are reported offline with a zero LastSeen.
func (r *RedisPresenceRepository) GetBulkPresence(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]models.Presence, error) {
	presenceMap := make(map[uuid.UUID]models.Presence, len(userIDs))
	if len(userIDs) == 0 {
		return presenceMap, nil
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = presenceKey(id)
	}

	results, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get bulk presence: %w", err)
	}

	for i, result := range results {
		userID := userIDs[i]
		offline := models.Presence{UserID: userID, Status: models.StatusOffline}

		data, ok := result.(string)
		if !ok {
			presenceMap[userID] = offline
			continue
		}

		var presence models.Presence
		if err := json.Unmarshal([]byte(data), &presence); err != nil {
			presenceMap[userID] = offline
			continue
		}
		presenceMap[userID] = presence
	}

	return presenceMap, nil
}

func presenceKey(userID uuid.UUID) string {
	return presenceKeyPrefix + userID.String()
}
