package ws

import (
	"context"
	"errors"
	"fmt"

	"github.com/prudhvinik1/slotsync/internal/chat"
	"github.com/prudhvinik1/slotsync/internal/events"
	"github.com/prudhvinik1/slotsync/internal/realtime"
	"github.com/rs/zerolog"
)

// Error codes carried by the client error event.
const (
	CodeNotFound       = "not_found"
	CodeForbidden      = "forbidden"
	CodeInvalidRequest = "invalid_request"
	CodeUnknownEvent   = "unknown_event"
	CodeInternal       = "internal"
	CodeUnauthorized   = "unauthorized"
)

// Router executes decoded commands for one connection against the engine.
type Router struct {
	engine *realtime.Engine
	logger zerolog.Logger
}

func NewRouter(engine *realtime.Engine, logger zerolog.Logger) *Router {
	return &Router{
		engine: engine,
		logger: logger.With().Str("component", "Router").Logger(),
	}
}

// Handle runs cmd on behalf of c. Replies go to c; broadcasts go through the engine.
func (r *Router) Handle(ctx context.Context, c *Conn, cmd Command) error {
	userID := c.UserID()
	pipeline := r.engine.Pipeline()
	dispatcher := r.engine.Dispatcher()

	switch cmd := cmd.(type) {
	case Auth:
		// Already authenticated; a repeated auth frame is harmless.
		return nil

	case JoinConversation:
		presence, err := r.engine.JoinConversation(ctx, c.ID(), userID, cmd.ConversationID)
		if err != nil {
			return err
		}
		return c.Send(events.ConversationStatus, presence)

	case LeaveConversation:
		r.engine.LeaveConversation(c.ID(), userID, cmd.ConversationID)
		return nil

	case GetMessages:
		messages, err := pipeline.History(ctx, userID, cmd.ConversationID, cmd.Page, cmd.Limit)
		if err != nil {
			return err
		}
		return c.Send(events.MessageHistory, events.History{
			ConversationID: cmd.ConversationID,
			Page:           max(cmd.Page, 1),
			Messages:       messages,
		})

	case SendMessage:
		result, err := pipeline.Submit(ctx, chat.SubmitRequest{
			SenderID:            userID,
			ConnectionID:        c.ID(),
			ConversationID:      cmd.ConversationID,
			Content:             cmd.Content,
			Attachments:         cmd.Attachments,
			ClientCorrelationID: cmd.TempID,
		})
		if err != nil {
			return err
		}
		return c.Send(events.MessageAck, events.MessageSent{
			TempID:    cmd.TempID,
			Message:   result.Message,
			Duplicate: result.Duplicate,
		})

	case MarkRead:
		_, err := pipeline.MarkRead(ctx, userID, cmd.ConversationID)
		return err

	case Typing:
		return r.engine.SetTyping(c.ID(), userID, cmd.ConversationID, cmd.IsTyping)

	case DeleteMessage:
		return pipeline.Delete(ctx, userID, cmd.MessageID)

	case GetOnlineStatus:
		return c.Send(events.OnlineStatus, events.OnlineStatuses{
			Statuses: r.engine.OnlineStatus(ctx, cmd.UserIDs),
		})

	case SubscribeUserStatus:
		r.engine.SubscribePresence(c.ID(), cmd.UserIDs)
		return c.Send(events.OnlineStatus, events.OnlineStatuses{
			Statuses: r.engine.OnlineStatus(ctx, cmd.UserIDs),
		})

	case Heartbeat:
		r.engine.Heartbeat(ctx, c.ID())
		return c.Send(events.HeartbeatAck, events.Heartbeat{Timestamp: r.engine.Now()})

	case JoinNotifications, GetUnreadCount:
		count, err := dispatcher.UnreadCount(ctx, userID)
		if err != nil {
			return err
		}
		return c.Send(events.UnreadCountUpdate, events.UnreadCount{Scope: events.ScopeNotifications, Count: count})

	case GetNotifications:
		notifications, err := dispatcher.List(ctx, userID, cmd.Page, cmd.Limit, cmd.Type)
		if err != nil {
			return err
		}
		return c.Send(events.NotificationList, events.NotificationPage{
			Page:          max(cmd.Page, 1),
			Notifications: notifications,
		})

	case MarkNotificationsRead:
		return dispatcher.MarkRead(ctx, userID, cmd.NotificationIDs)

	case JoinVendorQueue:
		position, err := r.engine.JoinVendorQueue(ctx, c.ID(), userID, cmd.VendorID)
		if err != nil {
			return err
		}
		return c.Send(events.QueuePosition, position)

	case LeaveVendorQueue:
		r.engine.LeaveVendorQueue(c.ID(), cmd.VendorID)
		return nil

	case GetMyQueuePosition:
		position, err := r.engine.MyQueuePosition(ctx, userID, cmd.VendorID)
		if err != nil {
			return err
		}
		return c.Send(events.QueuePosition, position)

	case SubscribeVendorQueue:
		snapshot, err := r.engine.SubscribeVendorQueue(ctx, c.ID(), userID, cmd.VendorID)
		if err != nil {
			return err
		}
		return c.Send(events.VendorQueueData, snapshot)

	case SendCustomerNotification:
		sent, err := r.engine.SendCustomerNotification(ctx, userID, cmd.VendorID, cmd.CustomerIDs, cmd.Title, cmd.Message)
		if err != nil {
			return err
		}
		return c.Send(events.CustomerNotificationSent, events.CustomerNotificationResult{VendorID: cmd.VendorID, Sent: sent})

	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, cmd.Event())
	}
}

// errorPayload classifies err for the client. Internal failures are not described.
func errorPayload(event string, err error) events.ErrorPayload {
	payload := events.ErrorPayload{Code: errorCode(err), Message: err.Error(), Event: event}
	if payload.Code == CodeInternal {
		payload.Message = "internal error"
	}
	return payload
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, ErrUnknownEvent):
		return CodeUnknownEvent
	case errors.Is(err, ErrInvalidPayload),
		errors.Is(err, chat.ErrEmptyContent),
		errors.Is(err, chat.ErrInvalidAttachment):
		return CodeInvalidRequest
	case errors.Is(err, chat.ErrConversationNotFound),
		errors.Is(err, chat.ErrMessageNotFound),
		errors.Is(err, realtime.ErrAppointmentNotFound),
		errors.Is(err, realtime.ErrVendorNotFound):
		return CodeNotFound
	case errors.Is(err, chat.ErrNotParticipant),
		errors.Is(err, chat.ErrNotSender),
		errors.Is(err, realtime.ErrForbidden):
		return CodeForbidden
	default:
		return CodeInternal
	}
}
