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

type PostgresAppointmentRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresAppointmentRepository(pool *pgxpool.Pool) *PostgresAppointmentRepository {
	return &PostgresAppointmentRepository{pool: pool}
}

const appointmentColumns = `id, user_id, vendor_id, service_name, appointment_time, status,
	is_paid, reminder_sent, created_at, updated_at`

func scanAppointment(row pgx.Row) (*models.Appointment, error) {
	var a models.Appointment
	err := row.Scan(&a.ID, &a.UserID, &a.VendorID, &a.ServiceName, &a.AppointmentTime, &a.Status,
		&a.IsPaid, &a.ReminderSent, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *PostgresAppointmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`

	appointment, err := scanAppointment(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return appointment, nil
}

// ListForVendor returns the vendor's appointments in [from, to) whose status is one of statuses.
func (r *PostgresAppointmentRepository) ListForVendor(ctx context.Context, vendorID uuid.UUID, from, to time.Time, statuses []models.AppointmentStatus) ([]*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
	          FROM appointments
	          WHERE vendor_id = $1
	            AND appointment_time >= $2 AND appointment_time < $3
	            AND status = ANY($4)
	          ORDER BY appointment_time ASC`

	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	return r.list(ctx, query, vendorID, from, to, names)
}

func (r *PostgresAppointmentRepository) FindImminent(ctx context.Context, from, to time.Time) ([]*models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
	          FROM appointments
	          WHERE appointment_time >= $1 AND appointment_time < $2
	            AND status IN ('pending', 'confirmed')
	            AND reminder_sent = FALSE
	          ORDER BY appointment_time ASC`

	return r.list(ctx, query, from, to)
}

func (r *PostgresAppointmentRepository) list(ctx context.Context, query string, args ...any) ([]*models.Appointment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query appointments: %w", err)
	}
	defer rows.Close()

	var appointments []*models.Appointment
	for rows.Next() {
		appointment, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan appointment: %w", err)
		}
		appointments = append(appointments, appointment)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating appointments: %w", err)
	}
	return appointments, nil
}

func (r *PostgresAppointmentRepository) MarkReminderSent(ctx context.Context, id uuid.UUID) error {
	return r.updateOne(ctx, `UPDATE appointments SET reminder_sent = TRUE, updated_at = NOW() WHERE id = $1`, id)
}

func (r *PostgresAppointmentRepository) MarkPaid(ctx context.Context, id uuid.UUID) error {
	return r.updateOne(ctx, `UPDATE appointments SET is_paid = TRUE, updated_at = NOW() WHERE id = $1`, id)
}

func (r *PostgresAppointmentRepository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	return r.updateOne(ctx, `UPDATE appointments SET status = 'completed', updated_at = NOW() WHERE id = $1`, id)
}

func (r *PostgresAppointmentRepository) updateOne(ctx context.Context, query string, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to update appointment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
