// Package memstore is an in-memory implementation of the repository interfaces for tests that
// exercise several components together.
package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/slotsync/internal/models"
	"github.com/prudhvinik1/slotsync/internal/repositories"
)

type Store struct {
	mu            sync.Mutex
	users         map[uuid.UUID]*models.User
	vendors       map[uuid.UUID]*models.Vendor
	devices       []*models.Device
	appointments  map[uuid.UUID]*models.Appointment
	conversations map[uuid.UUID]*models.Conversation
	messages      []*models.Message
	notifications []*models.Notification
	presence      map[uuid.UUID]models.Presence
	removedTokens []string
}

func New() *Store {
	return &Store{
		users:         make(map[uuid.UUID]*models.User),
		vendors:       make(map[uuid.UUID]*models.Vendor),
		appointments:  make(map[uuid.UUID]*models.Appointment),
		conversations: make(map[uuid.UUID]*models.Conversation),
		presence:      make(map[uuid.UUID]models.Presence),
	}
}

type (
	Users         struct{ *Store }
	Vendors       struct{ *Store }
	Devices       struct{ *Store }
	Appointments  struct{ *Store }
	Conversations struct{ *Store }
	Messages      struct{ *Store }
	Notifications struct{ *Store }
	Presence      struct{ *Store }
)

var (
	_ repositories.UserRepository         = Users{}
	_ repositories.VendorRepository       = Vendors{}
	_ repositories.DeviceRepository       = Devices{}
	_ repositories.AppointmentRepository  = Appointments{}
	_ repositories.ConversationRepository = Conversations{}
	_ repositories.MessageRepository      = Messages{}
	_ repositories.NotificationRepository = Notifications{}
	_ repositories.PresenceRepository     = Presence{}
)

// Seeding helpers.

func (s *Store) AddUser(u *models.User) *models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	s.users[u.ID] = u
	return u
}

func (s *Store) AddVendor(v *models.Vendor) *models.Vendor {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	s.vendors[v.ID] = v
	return v
}

func (s *Store) AddAppointment(a *models.Appointment) *models.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	cp := *a
	s.appointments[a.ID] = &cp
	return a
}

func (s *Store) SetStatus(id uuid.UUID, status models.AppointmentStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appointments[id].Status = status
}

func (s *Store) AddConversation(c *models.Conversation) *models.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	s.conversations[c.ID] = c
	return c
}

func (s *Store) AddDevice(userID uuid.UUID, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices = append(s.devices, &models.Device{ID: uuid.New(), UserID: userID, PushToken: token})
}

// Inspection helpers.

func (s *Store) NotificationsFor(userID uuid.UUID) []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Notification
	for _, n := range s.notifications {
		if n.RecipientID == userID {
			out = append(out, *n)
		}
	}
	return out
}

func (s *Store) MessageCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

func (s *Store) User(id uuid.UUID) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.users[id]
}

func (s *Store) Appointment(id uuid.UUID) models.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.appointments[id]
}

func (s *Store) MirroredPresence(id uuid.UUID) (models.Presence, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.presence[id]
	return p, ok
}

func (s *Store) RemovedTokens() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.removedTokens)
}

// Users

func (r Users) GetByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r Users) GetByIDs(_ context.Context, ids []uuid.UUID) ([]*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.User
	for _, id := range ids {
		if u, ok := r.users[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r Users) UpdateLastSeen(_ context.Context, id uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	u.LastSeenAt = &at
	return nil
}

// Vendors

func (r Vendors) GetByID(_ context.Context, id uuid.UUID) (*models.Vendor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.vendors[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (r Vendors) GetByOwnerIDs(_ context.Context, ownerIDs []uuid.UUID) (map[uuid.UUID]*models.Vendor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uuid.UUID]*models.Vendor)
	for _, v := range r.vendors {
		if slices.Contains(ownerIDs, v.OwnerID) {
			cp := *v
			out[v.OwnerID] = &cp
		}
	}
	return out, nil
}

// Devices

func (r Devices) Register(_ context.Context, d *models.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d.ID = uuid.New()
	cp := *d
	r.devices = append(r.devices, &cp)
	return nil
}

func (r Devices) GetPushTokens(_ context.Context, userIDs []uuid.UUID) (map[uuid.UUID][]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uuid.UUID][]string)
	for _, d := range r.devices {
		if d.RevokedAt == nil && slices.Contains(userIDs, d.UserID) {
			out[d.UserID] = append(out[d.UserID], d.PushToken)
		}
	}
	return out, nil
}

func (r Devices) RemoveToken(_ context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.devices {
		if d.PushToken == token && d.RevokedAt == nil {
			now := time.Now()
			d.RevokedAt = &now
			r.removedTokens = append(r.removedTokens, token)
			return nil
		}
	}
	return repositories.ErrNotFound
}

// Appointments

func (r Appointments) GetByID(_ context.Context, id uuid.UUID) (*models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r Appointments) ListForVendor(_ context.Context, vendorID uuid.UUID, from, to time.Time, statuses []models.AppointmentStatus) ([]*models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Appointment
	for _, a := range r.appointments {
		if a.VendorID == vendorID && !a.AppointmentTime.Before(from) && a.AppointmentTime.Before(to) && slices.Contains(statuses, a.Status) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r Appointments) FindImminent(_ context.Context, from, to time.Time) ([]*models.Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Appointment
	for _, a := range r.appointments {
		if !a.ReminderSent && a.Status.IsActive() && !a.AppointmentTime.Before(from) && a.AppointmentTime.Before(to) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r Appointments) MarkReminderSent(_ context.Context, id uuid.UUID) error {
	return r.update(id, func(a *models.Appointment) { a.ReminderSent = true })
}

func (r Appointments) MarkPaid(_ context.Context, id uuid.UUID) error {
	return r.update(id, func(a *models.Appointment) { a.IsPaid = true })
}

func (r Appointments) MarkCompleted(_ context.Context, id uuid.UUID) error {
	return r.update(id, func(a *models.Appointment) { a.Status = models.AppointmentCompleted })
}

func (r Appointments) update(id uuid.UUID, fn func(*models.Appointment)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return repositories.ErrNotFound
	}
	fn(a)
	return nil
}

// Conversations

func (r Conversations) GetByID(_ context.Context, id uuid.UUID) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r Conversations) UpdateLastMessage(_ context.Context, id, messageID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.conversations[id]
	if !ok {
		return repositories.ErrNotFound
	}
	c.LastMessageID = &messageID
	c.LastMessageAt = &at
	return nil
}

// Messages

func (r Messages) Create(_ context.Context, m *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m.ID = uuid.New()
	m.CreatedAt = time.Now()
	m.ReadBy = []uuid.UUID{m.SenderID}
	cp := *m
	r.messages = append(r.messages, &cp)
	return nil
}

func (r Messages) GetByID(_ context.Context, id uuid.UUID) (*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id && m.DeletedAt == nil {
			cp := *m
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r Messages) List(_ context.Context, conversationID uuid.UUID, page, limit int) ([]*models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Message
	for i := len(r.messages) - 1; i >= 0; i-- {
		if m := r.messages[i]; m.ConversationID == conversationID && m.DeletedAt == nil {
			cp := *m
			out = append(out, &cp)
		}
	}
	start := (page - 1) * limit
	if start >= len(out) {
		return nil, nil
	}
	return out[start:min(start+limit, len(out))], nil
}

func (r Messages) CountUnread(_ context.Context, conversationID, userID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, m := range r.messages {
		if m.ConversationID == conversationID && m.DeletedAt == nil && !slices.Contains(m.ReadBy, userID) {
			count++
		}
	}
	return count, nil
}

func (r Messages) MarkRead(_ context.Context, conversationID, userID uuid.UUID) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []uuid.UUID
	for _, m := range r.messages {
		if m.ConversationID == conversationID && m.DeletedAt == nil && !slices.Contains(m.ReadBy, userID) {
			m.ReadBy = append(m.ReadBy, userID)
			ids = append(ids, m.ID)
		}
	}
	return ids, nil
}

func (r Messages) SoftDelete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.messages {
		if m.ID == id && m.DeletedAt == nil {
			now := time.Now()
			m.DeletedAt = &now
			return nil
		}
	}
	return repositories.ErrNotFound
}

// Notifications

func (r Notifications) Create(_ context.Context, n *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n.ID = uuid.New()
	n.CreatedAt = time.Now()
	cp := *n
	r.notifications = append(r.notifications, &cp)
	return nil
}

func (r Notifications) CreateMany(ctx context.Context, ns []*models.Notification) error {
	for _, n := range ns {
		if err := r.Create(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

func (r Notifications) UpdateDelivery(_ context.Context, id uuid.UUID, pushSent, delivered bool, sentAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notifications {
		if n.ID == id {
			n.IsPushSent = pushSent
			n.IsDelivered = delivered
			n.SentAt = &sentAt
			return nil
		}
	}
	return repositories.ErrNotFound
}

func (r Notifications) List(_ context.Context, userID uuid.UUID, page, limit int, kind models.NotificationType) ([]*models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Notification
	for i := len(r.notifications) - 1; i >= 0; i-- {
		n := r.notifications[i]
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

func (r Notifications) CountUnread(_ context.Context, userID uuid.UUID) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, n := range r.notifications {
		if n.RecipientID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func (r Notifications) MarkRead(_ context.Context, userID uuid.UUID, ids []uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.notifications {
		if n.RecipientID == userID && (len(ids) == 0 || slices.Contains(ids, n.ID)) {
			n.IsRead = true
		}
	}
	return nil
}

// Presence

func (r Presence) SetOnline(_ context.Context, userID uuid.UUID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presence[userID] = models.Presence{UserID: userID, Status: models.StatusOnline, LastSeen: at}
	return nil
}

func (r Presence) SetOffline(_ context.Context, userID uuid.UUID, lastSeen time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.presence[userID] = models.Presence{UserID: userID, Status: models.StatusOffline, LastSeen: lastSeen}
	return nil
}

func (r Presence) GetBulkPresence(_ context.Context, userIDs []uuid.UUID) (map[uuid.UUID]models.Presence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[uuid.UUID]models.Presence, len(userIDs))
	for _, id := range userIDs {
		p, ok := r.presence[id]
		if !ok {
			p = models.Presence{UserID: id, Status: models.StatusOffline}
		}
		out[id] = p
	}
	return out, nil
}

// Repositories returns every repository view over the store.
func (s *Store) Repositories() (Users, Vendors, Devices, Appointments, Conversations, Messages, Notifications, Presence) {
	return Users{s}, Vendors{s}, Devices{s}, Appointments{s}, Conversations{s}, Messages{s}, Notifications{s}, Presence{s}
}
