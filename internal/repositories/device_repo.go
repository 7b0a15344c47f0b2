package repositories

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/slotsync/internal/models"
)

type PostgresDeviceRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresDeviceRepository(pool *pgxpool.Pool) *PostgresDeviceRepository {
	return &PostgresDeviceRepository{pool: pool}
}

// Register stores a push token for a user's device. A token already known for another user is
// moved to the new owner, since the install has been signed into a different account.
func (r *PostgresDeviceRepository) Register(ctx context.Context, device *models.Device) error {
	query := `INSERT INTO devices (user_id, push_token, platform, last_seen_at)
	          VALUES ($1, $2, $3, NOW())
	          ON CONFLICT (push_token) DO UPDATE
	          SET user_id = EXCLUDED.user_id, platform = EXCLUDED.platform,
	              last_seen_at = NOW(), revoked_at = NULL
	          RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query, device.UserID, device.PushToken, device.Platform).
		Scan(&device.ID, &device.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to register device: %w", err)
	}
	return nil
}

func (r *PostgresDeviceRepository) GetPushTokens(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID][]string, error) {
	tokens := make(map[uuid.UUID][]string)
	if len(userIDs) == 0 {
		return tokens, nil
	}
	query := `SELECT user_id, push_token
	          FROM devices
	          WHERE user_id = ANY($1) AND revoked_at IS NULL
	          ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query push tokens: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var userID uuid.UUID
		var token string
		if err := rows.Scan(&userID, &token); err != nil {
			return nil, fmt.Errorf("failed to scan push token: %w", err)
		}
		tokens[userID] = append(tokens[userID], token)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating push tokens: %w", err)
	}
	return tokens, nil
}

// RemoveToken revokes a token the push provider reported as permanently invalid.
func (r *PostgresDeviceRepository) RemoveToken(ctx context.Context, token string) error {
	query := `UPDATE devices SET revoked_at = NOW() WHERE push_token = $1 AND revoked_at IS NULL`

	result, err := r.pool.Exec(ctx, query, token)
	if err != nil {
		return fmt.Errorf("failed to remove push token: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
