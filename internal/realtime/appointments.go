package realtime

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/prudhvinik1/slotsync/internal/events"
	"github.com/prudhvinik1/slotsync/internal/models"
	"github.com/prudhvinik1/slotsync/internal/repositories"
)

// RefreshVendor rebuilds the vendor's queue and announces it: a summary to everyone watching
// the vendor, the full snapshot to the vendor's own sessions and a personal position update to
// each queued customer. Customers who dropped out of the queue are told so.
func (e *Engine) RefreshVendor(ctx context.Context, vendorID uuid.UUID) error {
	previous := e.queue.Cached(vendorID)

	items, err := e.queue.Refresh(ctx, vendorID)
	if err != nil {
		return err
	}

	e.hub.Emit(events.VendorQueue(vendorID), events.QueueUpdate, events.QueueSummary{VendorID: vendorID, Length: len(items)})
	e.hub.Emit(events.VendorOwner(vendorID), events.VendorQueueData, events.QueueSnapshot{VendorID: vendorID, Queue: items})

	queued := make(map[uuid.UUID]bool, len(items))
	for i := range items {
		item := items[i]
		if queued[item.UserID] {
			continue
		}
		queued[item.UserID] = true
		e.hub.EmitToUser(item.UserID, events.QueuePosition, events.Position{VendorID: vendorID, Item: &item, InQueue: true})
	}
	for _, item := range previous {
		if !queued[item.UserID] {
			queued[item.UserID] = true
			e.hub.EmitToUser(item.UserID, events.QueuePosition, events.Position{VendorID: vendorID, InQueue: false})
		}
	}
	return nil
}

func (e *Engine) appointment(ctx context.Context, id uuid.UUID) (*models.Appointment, error) {
	appointment, err := e.repos.Appointments.GetByID(ctx, id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrAppointmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get appointment: %w", err)
	}
	return appointment, nil
}

// HandleAppointmentEvent routes an external appointment trigger.
func (e *Engine) HandleAppointmentEvent(ctx context.Context, event models.AppointmentEvent) error {
	switch event.Type {
	case models.EventBooked, models.EventCancelled:
		return e.AppointmentChanged(ctx, event.AppointmentID)
	case models.EventPaymentConfirmed:
		return e.PaymentConfirmed(ctx, event.AppointmentID)
	case models.EventCompleted:
		return e.AppointmentCompleted(ctx, event.AppointmentID)
	default:
		return fmt.Errorf("unknown appointment event %q", event.Type)
	}
}

// AppointmentChanged covers bookings and cancellations: the vendor's queue is rebuilt.
func (e *Engine) AppointmentChanged(ctx context.Context, appointmentID uuid.UUID) error {
	appointment, err := e.appointment(ctx, appointmentID)
	if err != nil {
		return err
	}
	return e.RefreshVendor(ctx, appointment.VendorID)
}

// PaymentConfirmed marks the appointment paid, moves it up the queue and tells the customer
// and the vendor.
func (e *Engine) PaymentConfirmed(ctx context.Context, appointmentID uuid.UUID) error {
	appointment, err := e.appointment(ctx, appointmentID)
	if err != nil {
		return err
	}
	if !appointment.IsPaid {
		if err := e.repos.Appointments.MarkPaid(ctx, appointmentID); err != nil {
			return fmt.Errorf("failed to mark appointment paid: %w", err)
		}
	}

	if err := e.RefreshVendor(ctx, appointment.VendorID); err != nil {
		return err
	}

	payment := events.Payment{AppointmentID: appointment.ID, VendorID: appointment.VendorID, CustomerID: appointment.UserID}
	e.hub.EmitToUser(appointment.UserID, events.PaymentConfirmed, payment)

	if vendor, err := e.repos.Vendors.GetByID(ctx, appointment.VendorID); err != nil {
		e.logger.Warn().Err(err).Str("vendor_id", appointment.VendorID.String()).Msg("Failed to load vendor for payment alert")
	} else {
		e.hub.EmitToUser(vendor.OwnerID, events.VendorNotification, events.VendorAlert{
			Kind:          "payment",
			AppointmentID: appointment.ID,
			CustomerID:    appointment.UserID,
			Message:       "Payment received",
		})
	}

	_, err = e.dispatcher.SendToUser(ctx, appointment.UserID, models.Notification{
		Title:    "Payment confirmed",
		Body:     "Your payment was received and your spot has been prioritised",
		Type:     models.NotificationPayment,
		Priority: models.PriorityHigh,
		Data: map[string]string{
			"appointmentId": appointment.ID.String(),
			"vendorId":      appointment.VendorID.String(),
		},
	})
	return err
}

// AppointmentCompleted marks the appointment completed, rebuilds the queue and notifies the
// customers now at positions 1 and 2, once each per completion.
func (e *Engine) AppointmentCompleted(ctx context.Context, appointmentID uuid.UUID) error {
	appointment, err := e.appointment(ctx, appointmentID)
	if err != nil {
		return err
	}
	if appointment.Status != models.AppointmentCompleted {
		if err := e.repos.Appointments.MarkCompleted(ctx, appointmentID); err != nil {
			return fmt.Errorf("failed to mark appointment completed: %w", err)
		}
	}
	if err := e.RefreshVendor(ctx, appointment.VendorID); err != nil {
		return err
	}

	items := e.queue.Cached(appointment.VendorID)
	turns := []struct {
		title string
		body  string
	}{
		{"It's your turn", "The vendor is ready for you now"},
		{"Almost your turn", "You're next in line, please get ready"},
	}
	for i := 0; i < len(turns) && i < len(items); i++ {
		_, err := e.dispatcher.SendToUser(ctx, items[i].UserID, models.Notification{
			Title:    turns[i].title,
			Body:     turns[i].body,
			Type:     models.NotificationQueue,
			Priority: models.PriorityHigh,
			Data: map[string]string{
				"appointmentId": items[i].AppointmentID.String(),
				"vendorId":      appointment.VendorID.String(),
				"position":      strconv.Itoa(items[i].Position),
			},
		})
		if err != nil {
			e.logger.Error().Err(err).Str("user_id", items[i].UserID.String()).Msg("Failed to send turn notification")
		}
	}
	return nil
}
