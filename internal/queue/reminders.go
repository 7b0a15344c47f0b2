package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/prudhvinik1/slotsync/internal/models"
	"github.com/prudhvinik1/slotsync/internal/repositories"
	"github.com/prudhvinik1/slotsync/internal/scheduler"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

type Notifier interface {
	SendToUser(ctx context.Context, userID uuid.UUID, n models.Notification) (*models.Notification, error)
}

// Refresher rebuilds a vendor's queue and announces the result.
type Refresher interface {
	RefreshVendor(ctx context.Context, vendorID uuid.UUID) error
}

// Reminders notifies customers shortly before their appointment starts and refreshes the
// queues those appointments belong to.
type Reminders struct {
	appointments repositories.AppointmentRepository
	notifier     Notifier
	refresher    Refresher
	clock        clock.Clock
	interval     time.Duration
	lead         time.Duration
	location     *time.Location
	logger       zerolog.Logger
}

func NewReminders(
	appointments repositories.AppointmentRepository,
	notifier Notifier,
	refresher Refresher,
	clk clock.Clock,
	interval, lead time.Duration,
	location *time.Location,
	logger zerolog.Logger,
) *Reminders {
	return &Reminders{
		appointments: appointments,
		notifier:     notifier,
		refresher:    refresher,
		clock:        clk,
		interval:     interval,
		lead:         lead,
		location:     location,
		logger:       logger.With().Str("component", "Reminders").Logger(),
	}
}

func (r *Reminders) Run(ctx context.Context) error {
	r.logger.Info().Dur("interval", r.interval).Dur("lead", r.lead).Msg("Reminder sweep started")
	defer r.logger.Info().Msg("Reminder sweep stopped")

	return scheduler.Every(ctx, r.clock, r.interval, func(ctx context.Context) {
		if _, err := r.Sweep(ctx); err != nil {
			r.logger.Error().Err(err).Msg("Reminder sweep failed")
		}
	})
}

// Sweep sends one reminder per imminent appointment and returns how many were sent.
// Appointments are flagged before the send so a crash never produces a second reminder.
func (r *Reminders) Sweep(ctx context.Context) (int, error) {
	now := r.clock.Now()
	imminent, err := r.appointments.FindImminent(ctx, now, now.Add(r.lead))
	if err != nil {
		return 0, fmt.Errorf("failed to find imminent appointments: %w", err)
	}

	sent := 0
	var touched []uuid.UUID
	for _, a := range imminent {
		if err := r.appointments.MarkReminderSent(ctx, a.ID); err != nil {
			r.logger.Error().Err(err).Str("appointment_id", a.ID.String()).Msg("Failed to flag reminder")
			continue
		}
		touched = append(touched, a.VendorID)

		_, err := r.notifier.SendToUser(ctx, a.UserID, models.Notification{
			Title:    "Appointment reminder",
			Body:     r.reminderBody(a),
			Type:     models.NotificationReminder,
			Priority: models.PriorityHigh,
			Data: map[string]string{
				"appointmentId": a.ID.String(),
				"vendorId":      a.VendorID.String(),
			},
		})
		if err != nil {
			r.logger.Error().Err(err).Str("appointment_id", a.ID.String()).Msg("Failed to send reminder")
			continue
		}
		sent++
	}

	for _, vendorID := range lo.Uniq(touched) {
		if err := r.refresher.RefreshVendor(ctx, vendorID); err != nil {
			r.logger.Warn().Err(err).Str("vendor_id", vendorID.String()).Msg("Failed to refresh queue after reminders")
		}
	}
	return sent, nil
}

func (r *Reminders) reminderBody(a *models.Appointment) string {
	at := a.AppointmentTime.In(r.location).Format("15:04")
	if a.ServiceName == "" {
		return "Your appointment starts at " + at
	}
	return "Your " + a.ServiceName + " appointment starts at " + at
}
