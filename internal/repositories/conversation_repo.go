package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/slotsync/internal/models"
)

type PostgresConversationRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresConversationRepository(pool *pgxpool.Pool) *PostgresConversationRepository {
	return &PostgresConversationRepository{pool: pool}
}

func (r *PostgresConversationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	query := `SELECT id, participant_ids, last_message_id, last_message_at, created_at
	          FROM conversations WHERE id = $1`

	var c models.Conversation
	err := r.pool.QueryRow(ctx, query, id).
		Scan(&c.ID, &c.ParticipantIDs, &c.LastMessageID, &c.LastMessageAt, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &c, nil
}

func (r *PostgresConversationRepository) UpdateLastMessage(ctx context.Context, id, messageID uuid.UUID, at time.Time) error {
	query := `UPDATE conversations SET last_message_id = $1, last_message_at = $2 WHERE id = $3`

	result, err := r.pool.Exec(ctx, query, messageID, at, id)
	if err != nil {
		return fmt.Errorf("failed to update last message: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
