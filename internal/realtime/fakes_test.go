package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/prudhvinik1/slotsync/internal/models"
	"github.com/prudhvinik1/slotsync/internal/notify"
	"github.com/prudhvinik1/slotsync/internal/testutil/memstore"
	"github.com/rs/zerolog"
)

var errClosed = errors.New("sink closed")

type sent struct {
	event   string
	payload any
}

// recordingSink captures every event delivered to it.
type recordingSink struct {
	id     string
	userID uuid.UUID

	mu     sync.Mutex
	events []sent
	closed bool
}

func newSink(userID uuid.UUID) *recordingSink {
	return &recordingSink{id: uuid.NewString(), userID: userID}
}

func (s *recordingSink) ID() string { return s.id }
func (s *recordingSink) UserID() uuid.UUID { return s.userID }

func (s *recordingSink) Send(event string, payload any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errClosed
	}
	s.events = append(s.events, sent{event: event, payload: payload})
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recordingSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *recordingSink) received(event string) []any {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []any
	for _, e := range s.events {
		if e.event == event {
			out = append(out, e.payload)
		}
	}
	return out
}

type recordingPush struct {
	mu       sync.Mutex
	messages []notify.PushMessage
}

func (p *recordingPush) ValidToken(token string) bool { return token != "" }
func (p *recordingPush) BatchLimit() int { return 100 }

func (p *recordingPush) Send(_ context.Context, messages []notify.PushMessage) ([]notify.PushTicket, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, messages...)
	tickets := make([]notify.PushTicket, len(messages))
	for i, m := range messages {
		tickets[i] = notify.PushTicket{Token: m.To, OK: true}
	}
	return tickets, nil
}

func (p *recordingPush) sentTo(token string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	count := 0
	for _, m := range p.messages {
		if m.To == token {
			count++
		}
	}
	return count
}

var testNow = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

type fixture struct {
	store  *memstore.Store
	clock  *clock.Mock
	push   *recordingPush
	engine *Engine
}

func testOptions() Options {
	return Options{
		PresenceDebounce:      time.Second,
		HeartbeatPersistEvery: 2,
		ReaperInterval:        5 * time.Minute,
		StaleThreshold:        10 * time.Minute,
		DedupWindow:           2 * time.Second,
		DedupMaxEntries:       1000,
		DedupTrimCount:        500,
		ServiceDuration:       30 * time.Minute,
		Location:              time.UTC,
		ReminderInterval:      time.Minute,
		ReminderLead:          15 * time.Minute,
		PushBatchSize:         100,
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memstore.New()
	mock := clock.NewMock()
	mock.Set(testNow)
	push := &recordingPush{}

	users, vendors, devices, appointments, conversations, messages, notifications, presenceRepo := store.Repositories()
	repos := Repositories{
		Users:         users,
		Vendors:       vendors,
		Devices:       devices,
		Appointments:  appointments,
		Conversations: conversations,
		Messages:      messages,
		Notifications: notifications,
		Presence:      presenceRepo,
	}
	engine := NewEngine(repos, push, mock, testOptions(), zerolog.Nop())
	t.Cleanup(engine.debouncer.Stop)

	return &fixture{store: store, clock: mock, push: push, engine: engine}
}

func (f *fixture) user(name string) uuid.UUID {
	return f.store.AddUser(&models.User{Name: name, Role: models.RoleCustomer}).ID
}

func (f *fixture) vendor(name string) (ownerID, vendorID uuid.UUID) {
	ownerID = f.store.AddUser(&models.User{Name: name + " owner", Role: models.RoleVendor}).ID
	vendorID = f.store.AddVendor(&models.Vendor{OwnerID: ownerID, BusinessName: name}).ID
	return ownerID, vendorID
}

func (f *fixture) book(userID, vendorID uuid.UUID, at time.Time, status models.AppointmentStatus) uuid.UUID {
	return f.store.AddAppointment(&models.Appointment{
		UserID:          userID,
		VendorID:        vendorID,
		ServiceName:     "Haircut",
		AppointmentTime: at,
		Status:          status,
	}).ID
}

func (f *fixture) connect(userID uuid.UUID) *recordingSink {
	sink := newSink(userID)
	f.engine.Connect(context.Background(), sink)
	return sink
}
