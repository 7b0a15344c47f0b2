package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/prudhvinik1/slotsync/internal/events"
	"github.com/prudhvinik1/slotsync/internal/models"
	"github.com/prudhvinik1/slotsync/internal/repositories"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrEmptyContent         = errors.New("message content is empty")
	ErrInvalidAttachment    = errors.New("invalid attachment")
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNotParticipant       = errors.New("not a participant of this conversation")
	ErrMessageNotFound      = errors.New("message not found")
	ErrNotSender            = errors.New("only the sender can delete a message")
)

type Broadcaster interface {
	Emit(topic, event string, payload any, exclude ...string) int
	EmitToUser(userID uuid.UUID, event string, payload any) int
}

type OnlineChecker interface {
	IsOnline(userID uuid.UUID) bool
}

type Notifier interface {
	SendToUser(ctx context.Context, userID uuid.UUID, n models.Notification) (*models.Notification, error)
}

type SubmitRequest struct {
	SenderID            uuid.UUID
	ConnectionID        string
	ConversationID      uuid.UUID
	Content             string
	Attachments         []models.Attachment
	ClientCorrelationID string
}

type SubmitResult struct {
	Message   *models.MessageView
	Duplicate bool
}

// Pipeline ingests chat messages: dedup, authorize, persist, fan out, then unread updates.
type Pipeline struct {
	conversations repositories.ConversationRepository
	messages      repositories.MessageRepository
	users         repositories.UserRepository
	vendors       repositories.VendorRepository
	dedup         *DedupTable
	typing        *Typing
	hub           Broadcaster
	presence      OnlineChecker
	notifier      Notifier
	validate      *validator.Validate
	logger        zerolog.Logger
	duplicates    metric.Int64Counter
}

func NewPipeline(
	conversations repositories.ConversationRepository,
	messages repositories.MessageRepository,
	users repositories.UserRepository,
	vendors repositories.VendorRepository,
	dedup *DedupTable,
	typing *Typing,
	hub Broadcaster,
	presence OnlineChecker,
	notifier Notifier,
	logger zerolog.Logger,
) *Pipeline {
	duplicates, _ := otel.Meter("slotsync/chat").Int64Counter("chat_duplicate_submissions_total",
		metric.WithDescription("Messages dropped by the dedup window"))

	return &Pipeline{
		conversations: conversations,
		messages:      messages,
		users:         users,
		vendors:       vendors,
		dedup:         dedup,
		typing:        typing,
		hub:           hub,
		presence:      presence,
		notifier:      notifier,
		validate:      validator.New(),
		logger:        logger.With().Str("component", "MessagePipeline").Logger(),
		duplicates:    duplicates,
	}
}

func (p *Pipeline) Typing() *Typing {
	return p.typing
}

// Submit runs one message through the pipeline. A duplicate within the dedup window is not an
// error: the result carries Duplicate and nothing is persisted.
func (p *Pipeline) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return SubmitResult{}, ErrEmptyContent
	}
	for _, a := range req.Attachments {
		if err := p.validate.Struct(a); err != nil {
			return SubmitResult{}, fmt.Errorf("%w: %v", ErrInvalidAttachment, err)
		}
	}

	key := newDedupKey(req.SenderID, req.ConversationID, content)
	acceptedAt, ok := p.dedup.Accept(key)
	if !ok {
		p.duplicates.Add(ctx, 1)
		p.logger.Debug().
			Str("sender_id", req.SenderID.String()).
			Str("conversation_id", req.ConversationID.String()).
			Msg("Dropped duplicate message")
		return SubmitResult{Duplicate: true}, nil
	}

	conversation, err := p.authorize(ctx, req.SenderID, req.ConversationID)
	if err != nil {
		p.dedup.Release(key, acceptedAt)
		return SubmitResult{}, err
	}

	message := &models.Message{
		ConversationID:      req.ConversationID,
		SenderID:            req.SenderID,
		Content:             content,
		Attachments:         req.Attachments,
		ClientCorrelationID: req.ClientCorrelationID,
	}
	if err := p.messages.Create(ctx, message); err != nil {
		p.dedup.Release(key, acceptedAt)
		return SubmitResult{}, fmt.Errorf("failed to persist message: %w", err)
	}
	if err := p.conversations.UpdateLastMessage(ctx, conversation.ID, message.ID, message.CreatedAt); err != nil {
		p.logger.Warn().Err(err).Str("conversation_id", conversation.ID.String()).Msg("Failed to update last message")
	}

	sender := p.resolveSenders(ctx, []uuid.UUID{req.SenderID})[req.SenderID]
	view := &models.MessageView{Message: *message, Sender: sender}

	topic := events.Conversation(conversation.ID)
	p.hub.Emit(topic, events.NewMessage, view, req.ConnectionID)

	if p.typing.Set(conversation.ID, req.SenderID, false) {
		p.hub.Emit(topic, events.UserTyping, events.Typing{ConversationID: conversation.ID, UserID: req.SenderID})
	}

	for _, recipient := range conversation.Others(req.SenderID) {
		p.notifyRecipient(ctx, recipient, view)
	}

	return SubmitResult{Message: view}, nil
}

func (p *Pipeline) notifyRecipient(ctx context.Context, recipient uuid.UUID, view *models.MessageView) {
	log := p.logger.With().Str("recipient_id", recipient.String()).Logger()

	if !p.presence.IsOnline(recipient) {
		_, err := p.notifier.SendToUser(ctx, recipient, models.Notification{
			Title: view.Sender.Name,
			Body:  preview(view.Content),
			Type:  models.NotificationChat,
			Data: map[string]string{
				"conversationId": view.ConversationID.String(),
				"messageId":      view.ID.String(),
			},
		})
		if err != nil {
			log.Error().Err(err).Msg("Failed to dispatch chat notification")
		}
		return
	}

	count, err := p.messages.CountUnread(ctx, view.ConversationID, recipient)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to count unread messages")
		return
	}
	conversationID := view.ConversationID
	p.hub.EmitToUser(recipient, events.UnreadCountUpdate, events.UnreadCount{
		Scope:          events.ScopeConversation,
		ConversationID: &conversationID,
		Count:          count,
	})
}

const previewRunes = 100

func preview(content string) string {
	if utf8.RuneCountInString(content) <= previewRunes {
		return content
	}
	return string([]rune(content)[:previewRunes]) + "…"
}

// Authorize loads the conversation and checks the user takes part in it.
func (p *Pipeline) Authorize(ctx context.Context, userID, conversationID uuid.UUID) (*models.Conversation, error) {
	return p.authorize(ctx, userID, conversationID)
}

func (p *Pipeline) authorize(ctx context.Context, userID, conversationID uuid.UUID) (*models.Conversation, error) {
	conversation, err := p.conversations.GetByID(ctx, conversationID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	if !conversation.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return conversation, nil
}

// resolveSenders projects each user to the identity shown in chat. Lookup failures degrade to
// an id-only view rather than failing the caller.
func (p *Pipeline) resolveSenders(ctx context.Context, userIDs []uuid.UUID) map[uuid.UUID]models.ParticipantView {
	userIDs = lo.Uniq(userIDs)
	views := make(map[uuid.UUID]models.ParticipantView, len(userIDs))
	for _, id := range userIDs {
		views[id] = models.ParticipantView{ID: id}
	}

	users, err := p.users.GetByIDs(ctx, userIDs)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Failed to load message senders")
		return views
	}
	vendors, err := p.vendors.GetByOwnerIDs(ctx, userIDs)
	if err != nil {
		p.logger.Warn().Err(err).Msg("Failed to load sender vendor profiles")
		vendors = nil
	}

	for _, user := range users {
		views[user.ID] = models.ProjectParticipant(user, vendors[user.ID])
	}
	return views
}

// History returns a page of the conversation's messages, newest first, with resolved senders.
func (p *Pipeline) History(ctx context.Context, userID, conversationID uuid.UUID, page, limit int) ([]models.MessageView, error) {
	if _, err := p.authorize(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}

	messages, err := p.messages.List(ctx, conversationID, page, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	senders := p.resolveSenders(ctx, lo.Map(messages, func(m *models.Message, _ int) uuid.UUID { return m.SenderID }))
	return lo.Map(messages, func(m *models.Message, _ int) models.MessageView {
		return models.MessageView{Message: *m, Sender: senders[m.SenderID]}
	}), nil
}

// MarkRead marks everything the user has not read in the conversation as read, tells the other
// participants which messages were read and resets the user's unread badge.
func (p *Pipeline) MarkRead(ctx context.Context, userID, conversationID uuid.UUID) ([]uuid.UUID, error) {
	if _, err := p.authorize(ctx, userID, conversationID); err != nil {
		return nil, err
	}

	ids, err := p.messages.MarkRead(ctx, conversationID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark messages read: %w", err)
	}

	if len(ids) > 0 {
		p.hub.Emit(events.Conversation(conversationID), events.MessageRead, events.ReadReceipt{
			ConversationID: conversationID,
			ReaderID:       userID,
			MessageIDs:     ids,
		})
	}
	p.hub.EmitToUser(userID, events.UnreadCountUpdate, events.UnreadCount{
		Scope:          events.ScopeConversation,
		ConversationID: &conversationID,
		Count:          0,
	})
	return ids, nil
}

// Delete soft-deletes a message. Only its sender may delete it.
func (p *Pipeline) Delete(ctx context.Context, userID, messageID uuid.UUID) error {
	message, err := p.messages.GetByID(ctx, messageID)
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrMessageNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to get message: %w", err)
	}
	if message.SenderID != userID {
		return ErrNotSender
	}

	if err := p.messages.SoftDelete(ctx, messageID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrMessageNotFound
		}
		return fmt.Errorf("failed to delete message: %w", err)
	}

	p.hub.Emit(events.Conversation(message.ConversationID), events.MessageDeleted, events.Deleted{
		ConversationID: message.ConversationID,
		MessageID:      messageID,
	})
	return nil
}

// SetTyping updates the user's typing state and tells the rest of the conversation when it
// changes. The caller's own connection is excluded.
func (p *Pipeline) SetTyping(userID, conversationID uuid.UUID, typing bool, connectionID string) {
	if !p.typing.Set(conversationID, userID, typing) {
		return
	}
	p.hub.Emit(events.Conversation(conversationID), events.UserTyping, events.Typing{
		ConversationID: conversationID,
		UserID:         userID,
		IsTyping:       typing,
	}, connectionID)
}

// ClearUser stops every typing indicator the user has open, used when they go offline.
func (p *Pipeline) ClearUser(userID uuid.UUID) {
	for _, conversationID := range p.typing.ClearUser(userID) {
		p.hub.Emit(events.Conversation(conversationID), events.UserTyping, events.Typing{
			ConversationID: conversationID,
			UserID:         userID,
		})
	}
}
