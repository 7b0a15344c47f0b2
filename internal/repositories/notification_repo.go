package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prudhvinik1/slotsync/internal/models"
)

type PostgresNotificationRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresNotificationRepository(pool *pgxpool.Pool) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{pool: pool}
}

const insertNotification = `INSERT INTO notifications (recipient_id, title, body, type, priority, data)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING id, created_at`

func (r *PostgresNotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	err := r.pool.QueryRow(ctx, insertNotification, n.RecipientID, n.Title, n.Body, n.Type, n.Priority, n.Data).
		Scan(&n.ID, &n.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// CreateMany inserts all notifications in one round trip inside a transaction.
func (r *PostgresNotificationRepository) CreateMany(ctx context.Context, notifications []*models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, n := range notifications {
		batch.Queue(insertNotification, n.RecipientID, n.Title, n.Body, n.Type, n.Priority, n.Data).
			QueryRow(func(row pgx.Row) error {
				return row.Scan(&n.ID, &n.CreatedAt)
			})
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to create notifications: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit notifications: %w", err)
	}
	return nil
}

func (r *PostgresNotificationRepository) UpdateDelivery(ctx context.Context, id uuid.UUID, pushSent, delivered bool, sentAt time.Time) error {
	query := `UPDATE notifications SET is_push_sent = $1, is_delivered = $2, sent_at = $3 WHERE id = $4`

	result, err := r.pool.Exec(ctx, query, pushSent, delivered, sentAt, id)
	if err != nil {
		return fmt.Errorf("failed to update notification delivery: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns one page of the user's notifications, newest first. An empty kind matches all types.
func (r *PostgresNotificationRepository) List(ctx context.Context, userID uuid.UUID, page, limit int, kind models.NotificationType) ([]*models.Notification, error) {
	query := `SELECT id, recipient_id, title, body, type, priority, data,
	                 is_push_sent, is_delivered, is_read, sent_at, created_at
	          FROM notifications
	          WHERE recipient_id = $1 AND ($2::text = '' OR type = $2::text)
	          ORDER BY created_at DESC
	          LIMIT $3 OFFSET $4`

	rows, err := r.pool.Query(ctx, query, userID, string(kind), limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		var n models.Notification
		err := rows.Scan(&n.ID, &n.RecipientID, &n.Title, &n.Body, &n.Type, &n.Priority, &n.Data,
			&n.IsPushSent, &n.IsDelivered, &n.IsRead, &n.SentAt, &n.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		notifications = append(notifications, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}
	return notifications, nil
}

func (r *PostgresNotificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	query := `SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND is_read = FALSE`

	var count int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks the given notifications read, or all of the user's notifications when ids is empty.
func (r *PostgresNotificationRepository) MarkRead(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error {
	query := `UPDATE notifications SET is_read = TRUE
	          WHERE recipient_id = $1 AND is_read = FALSE
	            AND (cardinality($2::uuid[]) = 0 OR id = ANY($2))`

	if ids == nil {
		ids = []uuid.UUID{}
	}
	if _, err := r.pool.Exec(ctx, query, userID, ids); err != nil {
		return fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return nil
}
