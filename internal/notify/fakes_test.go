package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/slotsync/internal/models"
	"github.com/prudhvinik1/slotsync/internal/repositories"
	"github.com/stretchr/testify/mock"
)

type memoryNotifications struct {
	mu        sync.Mutex
	records   map[uuid.UUID]*models.Notification
	order     []uuid.UUID
	createErr error
}

func newMemoryNotifications() *memoryNotifications {
	return &memoryNotifications{records: make(map[uuid.UUID]*models.Notification)}
}

func (m *memoryNotifications) Create(_ context.Context, n *models.Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	cp := *n
	m.records[n.ID] = &cp
	m.order = append(m.order, n.ID)
	return nil
}

func (m *memoryNotifications) CreateMany(ctx context.Context, ns []*models.Notification) error {
	for _, n := range ns {
		if err := m.Create(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

func (m *memoryNotifications) UpdateDelivery(_ context.Context, id uuid.UUID, pushSent, delivered bool, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.records[id]
	if !ok {
		return repositories.ErrNotFound
	}
	n.IsPushSent = pushSent
	n.IsDelivered = delivered
	n.SentAt = &sentAt
	return nil
}

func (m *memoryNotifications) List(_ context.Context, userID uuid.UUID, page, limit int, kind models.NotificationType) ([]*models.Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Notification
	for i := len(m.order) - 1; i >= 0; i-- {
		n := m.records[m.order[i]]
		if n.RecipientID == userID && (kind == "" || n.Type == kind) {
			cp := *n
			out = append(out, &cp)
		}
	}
	start := (page - 1) * limit
	if start >= len(out) {
		return nil, nil
	}
	return out[start:min(start+limit, len(out))], nil
}

func (m *memoryNotifications) CountUnread(_ context.Context, userID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, n := range m.records {
		if n.RecipientID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (m *memoryNotifications) MarkRead(_ context.Context, userID uuid.UUID, ids []uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.records {
		if n.RecipientID != userID {
			continue
		}
		if len(ids) == 0 {
			n.IsRead = true
			continue
		}
		for _, id := range ids {
			if n.ID == id {
				n.IsRead = true
			}
		}
	}
	return nil
}

func (m *memoryNotifications) get(id uuid.UUID) models.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.records[id]
}

func (m *memoryNotifications) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

type memoryDevices struct {
	mu      sync.Mutex
	tokens  map[uuid.UUID][]string
	removed []string
}

func (m *memoryDevices) Register(_ context.Context, d *models.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[d.UserID] = append(m.tokens[d.UserID], d.PushToken)
	return nil
}

func (m *memoryDevices) GetPushTokens(_ context.Context, userIDs []uuid.UUID) (map[uuid.UUID][]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uuid.UUID][]string)
	for _, id := range userIDs {
		if tokens := m.tokens[id]; len(tokens) > 0 {
			out[id] = append([]string(nil), tokens...)
		}
	}
	return out, nil
}

func (m *memoryDevices) RemoveToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for user, tokens := range m.tokens {
		for i, t := range tokens {
			if t == token {
				m.tokens[user] = append(tokens[:i:i], tokens[i+1:]...)
				m.removed = append(m.removed, token)
				return nil
			}
		}
	}
	return repositories.ErrNotFound
}

type onlineSet map[uuid.UUID]bool

func (s onlineSet) IsOnline(id uuid.UUID) bool { return s[id] }

type emitted struct {
	userID  uuid.UUID
	event   string
	payload any
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []emitted
}

func (e *recordingEmitter) EmitToUser(userID uuid.UUID, event string, payload any) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, emitted{userID: userID, event: event, payload: payload})
	return 1
}

func (e *recordingEmitter) named(event string) []emitted {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []emitted
	for _, ev := range e.events {
		if ev.event == event {
			out = append(out, ev)
		}
	}
	return out
}

type mockPushProvider struct {
	mock.Mock
	limit int
}

func (m *mockPushProvider) ValidToken(token string) bool {
	return token != "" && token != "garbage"
}

func (m *mockPushProvider) BatchLimit() int {
	return m.limit
}

func (m *mockPushProvider) Send(ctx context.Context, messages []PushMessage) ([]PushTicket, error) {
	args := m.Called(ctx, messages)
	switch v := args.Get(0).(type) {
	case func([]PushMessage) []PushTicket:
		return v(messages), args.Error(1)
	case []PushTicket:
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

// okTickets accepts every message in the batch.
func okTickets(messages []PushMessage) []PushTicket {
	tickets := make([]PushTicket, len(messages))
	for i, m := range messages {
		tickets[i] = PushTicket{Token: m.To, OK: true}
	}
	return tickets
}

var errProviderDown = errors.New("provider unreachable")
