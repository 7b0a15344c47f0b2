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

var ErrNotFound = errors.New("not found")

type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

const userColumns = `id, name, avatar, role, last_seen_at, created_at, updated_at`

func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	err := row.Scan(&user.ID, &user.Name, &user.Avatar, &user.Role, &user.LastSeenAt, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *PostgresUserRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1 AND deleted_at IS NULL`

	user, err := scanUser(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

func (r *PostgresUserRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ANY($1) AND deleted_at IS NULL`

	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}

func (r *PostgresUserRepository) UpdateLastSeen(ctx context.Context, id uuid.UUID, at time.Time) error {
	query := `UPDATE users SET last_seen_at = $1, updated_at = NOW() WHERE id = $2 AND deleted_at IS NULL`

	result, err := r.pool.Exec(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("failed to update last seen: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

type PostgresVendorRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresVendorRepository(pool *pgxpool.Pool) *PostgresVendorRepository {
	return &PostgresVendorRepository{pool: pool}
}

func (r *PostgresVendorRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Vendor, error) {
	query := `SELECT id, owner_id, business_name, logo, created_at FROM vendors WHERE id = $1`

	var vendor models.Vendor
	err := r.pool.QueryRow(ctx, query, id).
		Scan(&vendor.ID, &vendor.OwnerID, &vendor.BusinessName, &vendor.Logo, &vendor.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vendor: %w", err)
	}
	return &vendor, nil
}

func (r *PostgresVendorRepository) GetByOwnerIDs(ctx context.Context, ownerIDs []uuid.UUID) (map[uuid.UUID]*models.Vendor, error) {
	vendors := make(map[uuid.UUID]*models.Vendor)
	if len(ownerIDs) == 0 {
		return vendors, nil
	}
	query := `SELECT id, owner_id, business_name, logo, created_at FROM vendors WHERE owner_id = ANY($1)`

	rows, err := r.pool.Query(ctx, query, ownerIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query vendors: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var vendor models.Vendor
		if err := rows.Scan(&vendor.ID, &vendor.OwnerID, &vendor.BusinessName, &vendor.Logo, &vendor.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan vendor: %w", err)
		}
		vendors[vendor.OwnerID] = &vendor
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vendors: %w", err)
	}
	return vendors, nil
}
