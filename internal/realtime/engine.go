package realtime

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/prudhvinik1/slotsync/internal/chat"
	"github.com/prudhvinik1/slotsync/internal/config"
	"github.com/prudhvinik1/slotsync/internal/events"
	"github.com/prudhvinik1/slotsync/internal/models"
	"github.com/prudhvinik1/slotsync/internal/notify"
	"github.com/prudhvinik1/slotsync/internal/presence"
	"github.com/prudhvinik1/slotsync/internal/queue"
	"github.com/prudhvinik1/slotsync/internal/repositories"
	"github.com/prudhvinik1/slotsync/internal/scheduler"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrVendorNotFound      = queue.ErrVendorNotFound
	ErrForbidden           = errors.New("forbidden")
)

type Repositories struct {
	Users         repositories.UserRepository
	Vendors       repositories.VendorRepository
	Devices       repositories.DeviceRepository
	Appointments  repositories.AppointmentRepository
	Conversations repositories.ConversationRepository
	Messages      repositories.MessageRepository
	Notifications repositories.NotificationRepository
	Presence      repositories.PresenceRepository
}

type Options struct {
	PresenceDebounce      time.Duration
	HeartbeatPersistEvery int
	ReaperInterval        time.Duration
	StaleThreshold        time.Duration
	DedupWindow           time.Duration
	DedupMaxEntries       int
	DedupTrimCount        int
	ServiceDuration       time.Duration
	Location              *time.Location
	ReminderInterval      time.Duration
	ReminderLead          time.Duration
	PushBatchSize         int
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		PresenceDebounce:      cfg.PresenceDebounce,
		HeartbeatPersistEvery: cfg.HeartbeatPersistEvery,
		ReaperInterval:        cfg.ReaperInterval,
		StaleThreshold:        cfg.StaleThreshold,
		DedupWindow:           cfg.DedupWindow,
		DedupMaxEntries:       cfg.DedupMaxEntries,
		DedupTrimCount:        cfg.DedupTrimCount,
		ServiceDuration:       cfg.ServiceDuration,
		Location:              cfg.Location(),
		ReminderInterval:      cfg.ReminderInterval,
		ReminderLead:          cfg.ReminderLead,
		PushBatchSize:         cfg.PushBatchSize,
	}
}

// Engine is the single owner of the instance's in-memory coordination state: the connection
// registry, topic hub, presence debouncer, queue cache, dedup table and typing sets. Transport
// code reaches that state only through Engine methods.
type Engine struct {
	repos      Repositories
	clock      clock.Clock
	registry   *presence.Registry
	hub        *Hub
	debouncer  *scheduler.Debouncer
	queue      *queue.Builder
	pipeline   *chat.Pipeline
	dispatcher *notify.Dispatcher
	reaper     *presence.Reaper
	reminders  *queue.Reminders
	logger     zerolog.Logger
}

func NewEngine(repos Repositories, push notify.PushProvider, clk clock.Clock, opts Options, logger zerolog.Logger) *Engine {
	if opts.Location == nil {
		opts.Location = time.UTC
	}

	e := &Engine{
		repos:  repos,
		clock:  clk,
		logger: logger.With().Str("component", "Engine").Logger(),
	}
	e.registry = presence.NewRegistry(clk, opts.HeartbeatPersistEvery)
	e.hub = NewHub(e.registry, logger)
	e.debouncer = scheduler.NewDebouncer(clk, opts.PresenceDebounce)
	e.queue = queue.NewBuilder(repos.Appointments, repos.Vendors, clk, opts.Location, opts.ServiceDuration, logger)
	e.dispatcher = notify.NewDispatcher(repos.Notifications, repos.Devices, e.registry, e.hub, push, clk, opts.PushBatchSize, logger)
	e.pipeline = chat.NewPipeline(
		repos.Conversations,
		repos.Messages,
		repos.Users,
		repos.Vendors,
		chat.NewDedupTable(clk, opts.DedupWindow, opts.DedupMaxEntries, opts.DedupTrimCount),
		chat.NewTyping(),
		e.hub,
		e.registry,
		e.dispatcher,
		logger,
	)
	e.reaper = presence.NewReaper(e.registry, e, clk, opts.ReaperInterval, opts.StaleThreshold, logger)
	e.reminders = queue.NewReminders(repos.Appointments, e.dispatcher, e, clk, opts.ReminderInterval, opts.ReminderLead, opts.Location, logger)
	return e
}

func (e *Engine) Hub() *Hub { return e.hub }

func (e *Engine) Pipeline() *chat.Pipeline { return e.pipeline }

func (e *Engine) Dispatcher() *notify.Dispatcher { return e.dispatcher }

func (e *Engine) Queue() *queue.Builder { return e.queue }

func (e *Engine) Now() time.Time { return e.clock.Now() }

func (e *Engine) IsOnline(userID uuid.UUID) bool { return e.registry.IsOnline(userID) }

func (e *Engine) Connection(id string) (models.Connection, bool) { return e.registry.Connection(id) }

// Run drives the reaper and reminder sweeps until ctx is done.
func (e *Engine) Run(ctx context.Context) error {
	defer e.debouncer.Stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return e.reaper.Run(ctx) })
	g.Go(func() error { return e.reminders.Run(ctx) })
	return g.Wait()
}

type Stats struct {
	Connections int            `json:"connections"`
	OnlineUsers int            `json:"online_users"`
	Reaper      presence.Stats `json:"reaper"`
}

func (e *Engine) Stats() Stats {
	conns, users := e.registry.Count()
	return Stats{Connections: conns, OnlineUsers: users, Reaper: e.reaper.Stats()}
}

// Sweep runs one reaper pass immediately.
func (e *Engine) Sweep(ctx context.Context) int {
	return e.reaper.Sweep(ctx)
}

// CloseAll closes every live connection. Transports run their normal disconnect path as their
// read loops end.
func (e *Engine) CloseAll() int {
	sinks := e.registry.Sinks()
	for _, sink := range sinks {
		if err := sink.Close(); err != nil {
			e.logger.Debug().Err(err).Str("connection_id", sink.ID()).Msg("Failed to close connection")
		}
	}
	return len(sinks)
}

// Connect registers an authenticated connection and subscribes it to the user's notification
// topic. The first connection of a user schedules an online broadcast.
func (e *Engine) Connect(ctx context.Context, sink presence.Sink) {
	userID := sink.UserID()
	first := e.registry.Register(sink)
	e.hub.Subscribe(sink.ID(), events.Notifications(userID))

	e.logger.Debug().Str("connection_id", sink.ID()).Str("user_id", userID.String()).Bool("first", first).Msg("Connection registered")
	if !first {
		return
	}

	if err := e.repos.Presence.SetOnline(ctx, userID, e.clock.Now()); err != nil {
		e.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("Failed to mirror online presence")
	}
	e.schedulePresence(userID)
}

// Disconnect is the cleanup shared by client disconnects and reaper evictions. It is safe to
// call more than once for the same connection.
func (e *Engine) Disconnect(ctx context.Context, connID string) error {
	userID, last, ok := e.registry.Unregister(connID)
	if !ok {
		return nil
	}
	e.clearTyping(userID, connID)
	e.hub.Drop(connID)
	if !last {
		return nil
	}

	now := e.clock.Now()
	e.pipeline.ClearUser(userID)
	if err := e.repos.Presence.SetOffline(ctx, userID, now); err != nil {
		e.logger.Warn().Err(err).Str("user_id", userID.String()).Msg("Failed to mirror offline presence")
	}
	e.schedulePresence(userID)

	if err := e.repos.Users.UpdateLastSeen(ctx, userID, now); err != nil {
		return fmt.Errorf("failed to persist last seen: %w", err)
	}
	return nil
}

// clearTyping stops the typing indicators a dropped connection may have set in the
// conversations it had joined.
func (e *Engine) clearTyping(userID uuid.UUID, connID string) {
	for _, topic := range e.hub.Topics(connID, events.ConversationTopic) {
		conversationID, err := uuid.Parse(strings.TrimPrefix(topic, events.ConversationTopic))
		if err != nil {
			continue
		}
		e.pipeline.SetTyping(userID, conversationID, false, connID)
	}
}

// Heartbeat refreshes the connection's liveness; every Nth beat is also written through.
func (e *Engine) Heartbeat(ctx context.Context, connID string) bool {
	persist, ok := e.registry.Heartbeat(connID)
	if !ok || !persist {
		return ok
	}

	conn, ok := e.registry.Connection(connID)
	if !ok {
		return false
	}
	if err := e.repos.Users.UpdateLastSeen(ctx, conn.UserID, conn.LastSeen); err != nil {
		e.logger.Warn().Err(err).Str("user_id", conn.UserID.String()).Msg("Failed to persist heartbeat")
	}
	if err := e.repos.Presence.SetOnline(ctx, conn.UserID, conn.LastSeen); err != nil {
		e.logger.Warn().Err(err).Str("user_id", conn.UserID.String()).Msg("Failed to refresh presence mirror")
	}
	return true
}

// Touch records client activity other than an explicit heartbeat.
func (e *Engine) Touch(connID string) {
	e.registry.Touch(connID)
}

// schedulePresence announces the user's presence once flapping settles. The state is read
// when the window expires, so a reconnect inside the window produces no offline broadcast.
func (e *Engine) schedulePresence(userID uuid.UUID) {
	e.debouncer.Schedule(userID.String(), func() {
		change := events.StatusChange{UserID: userID, IsOnline: e.registry.IsOnline(userID)}
		if !change.IsOnline {
			now := e.clock.Now()
			change.LastSeen = &now
		}
		e.hub.Emit(events.Presence(userID), events.UserStatusChange, change)
	})
}

// OnlineStatus answers from the local registry first and asks the shared mirror about users
// who are not connected here.
func (e *Engine) OnlineStatus(ctx context.Context, userIDs []uuid.UUID) map[uuid.UUID]bool {
	status := e.registry.OnlineUsers(userIDs)

	remote := lo.Filter(userIDs, func(id uuid.UUID, _ int) bool { return !status[id] })
	if len(remote) == 0 {
		return status
	}
	mirrored, err := e.repos.Presence.GetBulkPresence(ctx, remote)
	if err != nil {
		e.logger.Warn().Err(err).Msg("Failed to read presence mirror")
		return status
	}
	for id, p := range mirrored {
		if p.IsOnline() {
			status[id] = true
		}
	}
	return status
}

// SubscribePresence subscribes the connection to status changes of the given users.
func (e *Engine) SubscribePresence(connID string, userIDs []uuid.UUID) {
	for _, id := range lo.Uniq(userIDs) {
		e.hub.Subscribe(connID, events.Presence(id))
	}
}

// JoinConversation checks membership, subscribes the connection and returns who is online.
func (e *Engine) JoinConversation(ctx context.Context, connID string, userID, conversationID uuid.UUID) (events.ConversationPresence, error) {
	conversation, err := e.pipeline.Authorize(ctx, userID, conversationID)
	if err != nil {
		return events.ConversationPresence{}, err
	}
	e.hub.Subscribe(connID, events.Conversation(conversationID))
	e.SubscribePresence(connID, conversation.Others(userID))

	return events.ConversationPresence{
		ConversationID: conversationID,
		Online:         e.OnlineStatus(ctx, conversation.ParticipantIDs),
	}, nil
}

func (e *Engine) LeaveConversation(connID string, userID, conversationID uuid.UUID) {
	e.hub.Unsubscribe(connID, events.Conversation(conversationID))
	e.pipeline.SetTyping(userID, conversationID, false, connID)
}

// SetTyping is only honoured on conversations the connection has joined.
func (e *Engine) SetTyping(connID string, userID, conversationID uuid.UUID, typing bool) error {
	if !e.hub.IsSubscribed(connID, events.Conversation(conversationID)) {
		return chat.ErrNotParticipant
	}
	e.pipeline.SetTyping(userID, conversationID, typing, connID)
	return nil
}
