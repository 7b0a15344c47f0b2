package chat

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/slotsync/internal/models"
	"github.com/prudhvinik1/slotsync/internal/repositories"
	"github.com/stretchr/testify/mock"
)

type memoryConversations map[uuid.UUID]*models.Conversation

func (m memoryConversations) GetByID(_ context.Context, id uuid.UUID) (*models.Conversation, error) {
	c, ok := m[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return c, nil
}

func (m memoryConversations) UpdateLastMessage(_ context.Context, id, messageID uuid.UUID, at time.Time) error {
	c, ok := m[id]
	if !ok {
		return repositories.ErrNotFound
	}
	c.LastMessageID = &messageID
	c.LastMessageAt = &at
	return nil
}

type memoryMessages struct {
	mu        sync.Mutex
	rows      []*models.Message
	createErr error
}

func (m *memoryMessages) Create(_ context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	msg.ID = uuid.New()
	msg.CreatedAt = time.Now()
	msg.ReadBy = []uuid.UUID{msg.SenderID}
	cp := *msg
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memoryMessages) GetByID(_ context.Context, id uuid.UUID) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.ID == id && row.DeletedAt == nil {
			cp := *row
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memoryMessages) List(_ context.Context, conversationID uuid.UUID, page, limit int) ([]*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Message
	for i := len(m.rows) - 1; i >= 0; i-- {
		if row := m.rows[i]; row.ConversationID == conversationID && row.DeletedAt == nil {
			cp := *row
			out = append(out, &cp)
		}
	}
	start := (page - 1) * limit
	if start >= len(out) {
		return nil, nil
	}
	return out[start:min(start+limit, len(out))], nil
}

func (m *memoryMessages) CountUnread(_ context.Context, conversationID, userID uuid.UUID) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, row := range m.rows {
		if row.ConversationID == conversationID && row.DeletedAt == nil && !slices.Contains(row.ReadBy, userID) {
			count++
		}
	}
	return count, nil
}

func (m *memoryMessages) MarkRead(_ context.Context, conversationID, userID uuid.UUID) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for _, row := range m.rows {
		if row.ConversationID == conversationID && row.DeletedAt == nil && !slices.Contains(row.ReadBy, userID) {
			row.ReadBy = append(row.ReadBy, userID)
			ids = append(ids, row.ID)
		}
	}
	return ids, nil
}

func (m *memoryMessages) SoftDelete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.ID == id && row.DeletedAt == nil {
			now := time.Now()
			row.DeletedAt = &now
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (m *memoryMessages) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type memoryUsers map[uuid.UUID]*models.User

func (m memoryUsers) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	u, ok := m[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return u, nil
}

func (m memoryUsers) GetByIDs(_ context.Context, ids []uuid.UUID) ([]*models.User, error) {
	var out []*models.User
	for _, id := range ids {
		if u, ok := m[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m memoryUsers) UpdateLastSeen(context.Context, uuid.UUID, time.Time) error { return nil }

type memoryVendors []*models.Vendor

func (m memoryVendors) GetByID(_ context.Context, id uuid.UUID) (*models.Vendor, error) {
	for _, v := range m {
		if v.ID == id {
			return v, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m memoryVendors) GetByOwnerIDs(_ context.Context, ownerIDs []uuid.UUID) (map[uuid.UUID]*models.Vendor, error) {
	out := make(map[uuid.UUID]*models.Vendor)
	for _, v := range m {
		if slices.Contains(ownerIDs, v.OwnerID) {
			out[v.OwnerID] = v
		}
	}
	return out, nil
}

type emission struct {
	topic   string
	userID  uuid.UUID
	event   string
	payload any
	exclude []string
}

type recordingHub struct {
	mu        sync.Mutex
	emissions []emission
}

func (h *recordingHub) Emit(topic, event string, payload any, exclude ...string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.emissions = append(h.emissions, emission{topic: topic, event: event, payload: payload, exclude: exclude})
	return 1
}

func (h *recordingHub) EmitToUser(userID uuid.UUID, event string, payload any) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.emissions = append(h.emissions, emission{userID: userID, event: event, payload: payload})
	return 1
}

func (h *recordingHub) named(event string) []emission {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []emission
	for _, e := range h.emissions {
		if e.event == event {
			out = append(out, e)
		}
	}
	return out
}

type onlineSet map[uuid.UUID]bool

func (s onlineSet) IsOnline(id uuid.UUID) bool { return s[id] }

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) SendToUser(ctx context.Context, userID uuid.UUID, n models.Notification) (*models.Notification, error) {
	args := m.Called(ctx, userID, n)
	if v := args.Get(0); v != nil {
		return v.(*models.Notification), args.Error(1)
	}
	return nil, args.Error(1)
}

var errStoreDown = errors.New("store unavailable")
