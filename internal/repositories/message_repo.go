package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/slotsync/internal/models"
)

type PostgresMessageRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresMessageRepository(pool *pgxpool.Pool) *PostgresMessageRepository {
	return &PostgresMessageRepository{pool: pool}
}

const messageColumns = `id, conversation_id, sender_id, content, attachments, read_by,
	client_correlation_id, created_at, deleted_at`

func scanMessage(row pgx.Row) (*models.Message, error) {
	var m models.Message
	err := row.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.Attachments, &m.ReadBy,
		&m.ClientCorrelationID, &m.CreatedAt, &m.DeletedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Create persists a message; the sender counts as having read it.
func (r *PostgresMessageRepository) Create(ctx context.Context, message *models.Message) error {
	if message.Attachments == nil {
		message.Attachments = []models.Attachment{}
	}
	message.ReadBy = []uuid.UUID{message.SenderID}

	query := `INSERT INTO messages (conversation_id, sender_id, content, attachments, read_by, client_correlation_id)
	          VALUES ($1, $2, $3, $4, $5, $6)
	          RETURNING id, created_at`

	err := r.pool.QueryRow(ctx, query,
		message.ConversationID,
		message.SenderID,
		message.Content,
		message.Attachments,
		message.ReadBy,
		message.ClientCorrelationID,
	).Scan(&message.ID, &message.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

func (r *PostgresMessageRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE id = $1 AND deleted_at IS NULL`

	message, err := scanMessage(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return message, nil
}

// List returns one page of a conversation's messages, newest first. Pages start at 1.
func (r *PostgresMessageRepository) List(ctx context.Context, conversationID uuid.UUID, page, limit int) ([]*models.Message, error) {
	query := `SELECT ` + messageColumns + `
	          FROM messages
	          WHERE conversation_id = $1 AND deleted_at IS NULL
	          ORDER BY created_at DESC
	          LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, conversationID, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, message)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return messages, nil
}

func (r *PostgresMessageRepository) CountUnread(ctx context.Context, conversationID, userID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM messages
	          WHERE conversation_id = $1 AND sender_id <> $2
	            AND NOT ($2 = ANY(read_by)) AND deleted_at IS NULL`

	var count int
	if err := r.pool.QueryRow(ctx, query, conversationID, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return count, nil
}

// MarkRead adds userID to the readers of every unread message in the conversation and
// returns the ids of the messages it changed.
func (r *PostgresMessageRepository) MarkRead(ctx context.Context, conversationID, userID uuid.UUID) ([]uuid.UUID, error) {
	query := `UPDATE messages SET read_by = array_append(read_by, $2)
	          WHERE conversation_id = $1 AND sender_id <> $2
	            AND NOT ($2 = ANY(read_by)) AND deleted_at IS NULL
	          RETURNING id`

	rows, err := r.pool.Query(ctx, query, conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark messages read: %w", err)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("failed to mark messages read: %w", err)
	}
	return ids, nil
}

func (r *PostgresMessageRepository) SoftDelete(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE messages SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
