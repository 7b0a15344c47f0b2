package notify

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/prudhvinik1/slotsync/internal/events"
	"github.com/prudhvinik1/slotsync/internal/models"
	"github.com/prudhvinik1/slotsync/internal/repositories"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type OnlineChecker interface {
	IsOnline(userID uuid.UUID) bool
}

// UserEmitter sends an event to every live connection of a user and returns how many received it.
type UserEmitter interface {
	EmitToUser(userID uuid.UUID, event string, payload any) int
}

// Dispatcher persists notifications and delivers each one live when the recipient is connected,
// or through the push provider otherwise. Only the persistence step can fail a call.
type Dispatcher struct {
	notifications repositories.NotificationRepository
	devices       repositories.DeviceRepository
	presence      OnlineChecker
	emitter       UserEmitter
	push          PushProvider
	clock         clock.Clock
	batchSize     int
	logger        zerolog.Logger

	pushSent      metric.Int64Counter
	pushFailed    metric.Int64Counter
	liveDelivered metric.Int64Counter
}

func NewDispatcher(
	notifications repositories.NotificationRepository,
	devices repositories.DeviceRepository,
	presence OnlineChecker,
	emitter UserEmitter,
	push PushProvider,
	clk clock.Clock,
	batchSize int,
	logger zerolog.Logger,
) *Dispatcher {
	meter := otel.Meter("slotsync/notify")
	pushSent, _ := meter.Int64Counter("notifications_push_sent_total",
		metric.WithDescription("Push messages accepted by the provider"))
	pushFailed, _ := meter.Int64Counter("notifications_push_failed_total",
		metric.WithDescription("Push messages rejected or not sent"))
	liveDelivered, _ := meter.Int64Counter("notifications_live_delivered_total",
		metric.WithDescription("Notifications delivered over a live connection"))

	if limit := push.BatchLimit(); limit > 0 && (batchSize <= 0 || batchSize > limit) {
		batchSize = limit
	}
	if batchSize <= 0 {
		batchSize = 1
	}

	return &Dispatcher{
		notifications: notifications,
		devices:       devices,
		presence:      presence,
		emitter:       emitter,
		push:          push,
		clock:         clk,
		batchSize:     batchSize,
		logger:        logger.With().Str("component", "NotificationDispatcher").Logger(),
		pushSent:      pushSent,
		pushFailed:    pushFailed,
		liveDelivered: liveDelivered,
	}
}

// SendToUser records the notification and delivers it. The returned error is only ever a
// persistence failure; delivery problems are logged and reflected in the stored record.
func (d *Dispatcher) SendToUser(ctx context.Context, userID uuid.UUID, n models.Notification) (*models.Notification, error) {
	record := newRecord(userID, n)
	if err := d.notifications.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	if d.presence.IsOnline(userID) {
		d.deliverLive(ctx, record)
		return record, nil
	}

	d.deliverPush(ctx, []*models.Notification{record})
	return record, nil
}

// SendBulk records one notification per distinct recipient, then fans out live to online users
// and pushes to the rest in provider-sized batches.
func (d *Dispatcher) SendBulk(ctx context.Context, userIDs []uuid.UUID, n models.Notification) ([]*models.Notification, error) {
	records := lo.Map(lo.Uniq(userIDs), func(id uuid.UUID, _ int) *models.Notification {
		return newRecord(id, n)
	})
	if len(records) == 0 {
		return nil, nil
	}
	if err := d.notifications.CreateMany(ctx, records); err != nil {
		return nil, fmt.Errorf("failed to create notifications: %w", err)
	}

	online, offline := lo.FilterReject(records, func(r *models.Notification, _ int) bool {
		return d.presence.IsOnline(r.RecipientID)
	})
	for _, record := range online {
		d.deliverLive(ctx, record)
	}
	d.deliverPush(ctx, offline)

	return records, nil
}

func newRecord(userID uuid.UUID, n models.Notification) *models.Notification {
	record := n
	record.ID = uuid.Nil
	record.RecipientID = userID
	record.IsPushSent = false
	record.IsDelivered = false
	record.IsRead = false
	record.SentAt = nil
	if record.Priority == "" {
		record.Priority = models.PriorityNormal
	}
	return &record
}

func (d *Dispatcher) deliverLive(ctx context.Context, record *models.Notification) {
	now := d.clock.Now()
	record.IsDelivered = true
	record.SentAt = &now

	delivered := d.emitter.EmitToUser(record.RecipientID, events.NewNotification, record)
	d.liveDelivered.Add(ctx, int64(delivered), metric.WithAttributes(attribute.String("type", string(record.Type))))
	d.emitUnread(ctx, record.RecipientID)

	if err := d.notifications.UpdateDelivery(ctx, record.ID, false, true, now); err != nil {
		d.logger.Warn().Err(err).Str("notification_id", record.ID.String()).Msg("Failed to record live delivery")
	}
}

func (d *Dispatcher) emitUnread(ctx context.Context, userID uuid.UUID) {
	count, err := d.notifications.CountUnread(ctx, userID)
	if err != nil {
		d.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("Failed to count unread notifications")
		return
	}
	d.emitter.EmitToUser(userID, events.UnreadCountUpdate, events.UnreadCount{
		Scope: events.ScopeNotifications,
		Count: count,
	})
}

type pushTarget struct {
	record *models.Notification
	token  string
}

func (d *Dispatcher) deliverPush(ctx context.Context, records []*models.Notification) {
	if len(records) == 0 {
		return
	}

	recipients := lo.Map(records, func(r *models.Notification, _ int) uuid.UUID { return r.RecipientID })
	tokens, err := d.devices.GetPushTokens(ctx, recipients)
	if err != nil {
		d.logger.Error().Err(err).Int("recipients", len(records)).Msg("Failed to load push tokens")
		return
	}

	var targets []pushTarget
	for _, record := range records {
		for _, token := range tokens[record.RecipientID] {
			if !d.push.ValidToken(token) {
				d.logger.Warn().Str("user_id", record.RecipientID.String()).Msg("Skipping malformed push token")
				continue
			}
			targets = append(targets, pushTarget{record: record, token: token})
		}
	}
	if len(targets) == 0 {
		d.logger.Debug().Int("recipients", len(records)).Msg("No push tokens for offline recipients")
		return
	}

	accepted := make(map[uuid.UUID]bool)
	for _, chunk := range lo.Chunk(targets, d.batchSize) {
		d.sendChunk(ctx, chunk, accepted)
	}

	now := d.clock.Now()
	for _, record := range records {
		if !accepted[record.ID] {
			continue
		}
		record.IsPushSent = true
		record.SentAt = &now
		if err := d.notifications.UpdateDelivery(ctx, record.ID, true, false, now); err != nil {
			d.logger.Warn().Err(err).Str("notification_id", record.ID.String()).Msg("Failed to record push delivery")
		}
	}
}

func (d *Dispatcher) sendChunk(ctx context.Context, chunk []pushTarget, accepted map[uuid.UUID]bool) {
	messages := lo.Map(chunk, func(t pushTarget, _ int) PushMessage {
		return PushMessage{
			To:       t.token,
			Title:    t.record.Title,
			Body:     t.record.Body,
			Data:     pushData(t.record),
			Priority: t.record.Priority,
		}
	})

	tickets, err := d.push.Send(ctx, messages)
	if err != nil {
		d.pushFailed.Add(ctx, int64(len(chunk)))
		d.logger.Error().Err(err).Int("messages", len(chunk)).Msg("Push batch failed")
		return
	}

	for i, ticket := range tickets {
		if i >= len(chunk) {
			break
		}
		target := chunk[i]
		if ticket.OK {
			accepted[target.record.ID] = true
			d.pushSent.Add(ctx, 1)
			continue
		}

		d.pushFailed.Add(ctx, 1)
		d.logger.Warn().Err(ticket.Err).
			Str("user_id", target.record.RecipientID.String()).
			Bool("token_invalid", ticket.TokenInvalid).
			Msg("Push ticket rejected")
		if ticket.TokenInvalid {
			if err := d.devices.RemoveToken(ctx, target.token); err != nil {
				d.logger.Warn().Err(err).Str("user_id", target.record.RecipientID.String()).Msg("Failed to remove invalid push token")
			}
		}
	}
}

func pushData(record *models.Notification) map[string]string {
	data := make(map[string]string, len(record.Data)+2)
	for k, v := range record.Data {
		data[k] = v
	}
	data["notificationId"] = record.ID.String()
	data["type"] = string(record.Type)
	return data
}

// List returns one page of the user's notifications, optionally filtered by type.
func (d *Dispatcher) List(ctx context.Context, userID uuid.UUID, page, limit int, kind models.NotificationType) ([]*models.Notification, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return d.notifications.List(ctx, userID, page, limit, kind)
}

func (d *Dispatcher) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	return d.notifications.CountUnread(ctx, userID)
}

// MarkRead marks notifications read (all of them when ids is empty) and pushes the new unread
// count to the user's live connections.
func (d *Dispatcher) MarkRead(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error {
	if err := d.notifications.MarkRead(ctx, userID, ids); err != nil {
		return err
	}
	d.emitUnread(ctx, userID)
	return nil
}
