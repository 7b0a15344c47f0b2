package queue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prudhvinik1/slotsync/internal/models"
	"github.com/prudhvinik1/slotsync/internal/repositories"
	"github.com/stretchr/testify/mock"
)

type fakeAppointments struct {
	mu           sync.Mutex
	appointments map[uuid.UUID]*models.Appointment
	listErr      error
	listCalls    int
	// afterList, when set, runs once a ListForVendor call has read its snapshot.
	afterList func(call int)
}

func newFakeAppointments(appointments ...*models.Appointment) *fakeAppointments {
	f := &fakeAppointments{appointments: make(map[uuid.UUID]*models.Appointment)}
	for _, a := range appointments {
		f.put(a)
	}
	return f
}

func (f *fakeAppointments) put(a *models.Appointment) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *a
	f.appointments[a.ID] = &cp
}

func (f *fakeAppointments) GetByID(_ context.Context, id uuid.UUID) (*models.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAppointments) ListForVendor(_ context.Context, vendorID uuid.UUID, from, to time.Time, statuses []models.AppointmentStatus) ([]*models.Appointment, error) {
	f.mu.Lock()
	f.listCalls++
	call := f.listCalls
	if f.listErr != nil {
		f.mu.Unlock()
		return nil, f.listErr
	}

	var out []*models.Appointment
	for _, a := range f.appointments {
		if a.VendorID != vendorID || a.AppointmentTime.Before(from) || !a.AppointmentTime.Before(to) {
			continue
		}
		for _, s := range statuses {
			if a.Status == s {
				cp := *a
				out = append(out, &cp)
				break
			}
		}
	}
	f.mu.Unlock()

	if f.afterList != nil {
		f.afterList(call)
	}
	return out, nil
}

func (f *fakeAppointments) FindImminent(_ context.Context, from, to time.Time) ([]*models.Appointment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*models.Appointment
	for _, a := range f.appointments {
		if a.ReminderSent || !a.Status.IsActive() || a.AppointmentTime.Before(from) || !a.AppointmentTime.Before(to) {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeAppointments) MarkReminderSent(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok {
		return repositories.ErrNotFound
	}
	a.ReminderSent = true
	return nil
}

func (f *fakeAppointments) MarkPaid(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok {
		return repositories.ErrNotFound
	}
	a.IsPaid = true
	return nil
}

func (f *fakeAppointments) MarkCompleted(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.appointments[id]
	if !ok {
		return repositories.ErrNotFound
	}
	a.Status = models.AppointmentCompleted
	return nil
}

type fakeVendors map[uuid.UUID]*models.Vendor

func (f fakeVendors) GetByID(_ context.Context, id uuid.UUID) (*models.Vendor, error) {
	v, ok := f[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return v, nil
}

func (f fakeVendors) GetByOwnerIDs(_ context.Context, ownerIDs []uuid.UUID) (map[uuid.UUID]*models.Vendor, error) {
	out := make(map[uuid.UUID]*models.Vendor)
	for _, v := range f {
		for _, id := range ownerIDs {
			if v.OwnerID == id {
				out[id] = v
			}
		}
	}
	return out, nil
}

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

type mockRefresher struct {
	mock.Mock
}

func (m *mockRefresher) RefreshVendor(ctx context.Context, vendorID uuid.UUID) error {
	return m.Called(ctx, vendorID).Error(0)
}
