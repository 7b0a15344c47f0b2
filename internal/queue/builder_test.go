package queue

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/prudhvinik1/slotsync/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testDay = time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)

type builderFixture struct {
	builder      *Builder
	appointments *fakeAppointments
	clock        *clock.Mock
	vendorID     uuid.UUID
}

func newBuilderFixture(t *testing.T, appointments ...*models.Appointment) builderFixture {
	t.Helper()
	vendorID := uuid.New()
	for _, a := range appointments {
		a.VendorID = vendorID
	}
	store := newFakeAppointments(appointments...)
	vendors := fakeVendors{vendorID: {ID: vendorID, OwnerID: uuid.New(), BusinessName: "Fade Masters"}}

	mock := clock.NewMock()
	mock.Set(testDay.Add(8 * time.Hour))

	return builderFixture{
		builder:      NewBuilder(store, vendors, mock, time.UTC, 30*time.Minute, zerolog.Nop()),
		appointments: store,
		clock:        mock,
		vendorID:     vendorID,
	}
}

func appointmentAt(hour int, paid bool) *models.Appointment {
	return &models.Appointment{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		AppointmentTime: testDay.Add(time.Duration(hour) * time.Hour),
		Status:          models.AppointmentPending,
		IsPaid:          paid,
	}
}

func appointmentIDs(items []models.QueueItem) []uuid.UUID {
	ids := make([]uuid.UUID, len(items))
	for i, item := range items {
		ids[i] = item.AppointmentID
	}
	return ids
}

// TestBuilder_UnpaidOrderedByTime covers three unpaid pending appointments queued by time
func TestBuilder_UnpaidOrderedByTime(t *testing.T) {
	t1, t2, t3 := appointmentAt(9, false), appointmentAt(10, false), appointmentAt(11, false)
	f := newBuilderFixture(t, t3, t1, t2)

	// ACT
	items, err := f.builder.Refresh(context.Background(), f.vendorID)

	// ASSERT
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{t1.ID, t2.ID, t3.ID}, appointmentIDs(items))
	for i, item := range items {
		assert.Equal(t, i+1, item.Position)
		assert.Equal(t, time.Duration(i)*30*time.Minute, item.EstimatedWaitTime)
	}
}

// TestBuilder_PaidMovesAhead covers the middle appointment becoming paid
func TestBuilder_PaidMovesAhead(t *testing.T) {
	t1, t2, t3 := appointmentAt(9, false), appointmentAt(10, false), appointmentAt(11, false)
	f := newBuilderFixture(t, t1, t2, t3)
	ctx := context.Background()

	_, err := f.builder.Refresh(ctx, f.vendorID)
	require.NoError(t, err)

	// ACT
	require.NoError(t, f.appointments.MarkPaid(ctx, t2.ID))
	items, err := f.builder.Refresh(ctx, f.vendorID)

	// ASSERT
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{t2.ID, t1.ID, t3.ID}, appointmentIDs(items))
	assert.True(t, items[0].IsPaid)

	pos, ok := f.builder.Position(t1.UserID, f.vendorID)
	require.True(t, ok)
	assert.Equal(t, 2, pos.Position)
}

func TestBuilder_FiltersInactiveAndOtherDays(t *testing.T) {
	active := appointmentAt(9, false)
	ongoing := appointmentAt(10, false)
	ongoing.Status = models.AppointmentOngoing
	done := appointmentAt(8, true)
	done.Status = models.AppointmentCompleted
	cancelled := appointmentAt(12, true)
	cancelled.Status = models.AppointmentCancelled
	tomorrow := appointmentAt(33, true)
	f := newBuilderFixture(t, active, ongoing, done, cancelled, tomorrow)

	items, err := f.builder.Refresh(context.Background(), f.vendorID)

	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{active.ID, ongoing.ID}, appointmentIDs(items))
}

func TestBuilder_DayFollowsConfiguredTimezone(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 2026-06-15 23:30 UTC is already 2026-06-16 in Tokyo
	late := &models.Appointment{ID: uuid.New(), UserID: uuid.New(), Status: models.AppointmentConfirmed,
		AppointmentTime: time.Date(2026, 6, 16, 1, 0, 0, 0, tokyo)}
	early := &models.Appointment{ID: uuid.New(), UserID: uuid.New(), Status: models.AppointmentConfirmed,
		AppointmentTime: time.Date(2026, 6, 15, 20, 0, 0, 0, tokyo)}
	f := newBuilderFixture(t, late, early)
	f.builder.location = tokyo
	f.clock.Set(time.Date(2026, 6, 15, 23, 30, 0, 0, time.UTC))

	items, err := f.builder.Refresh(context.Background(), f.vendorID)

	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{late.ID}, appointmentIDs(items))
}

func TestBuilder_VendorNotFound(t *testing.T) {
	f := newBuilderFixture(t, appointmentAt(9, false))
	ctx := context.Background()
	_, err := f.builder.Refresh(ctx, f.vendorID)
	require.NoError(t, err)

	// ACT
	_, err = f.builder.Refresh(ctx, uuid.New())

	// ASSERT: other vendors' caches are untouched
	assert.ErrorIs(t, err, ErrVendorNotFound)
	assert.Len(t, f.builder.Cached(f.vendorID), 1)
}

func TestBuilder_StoreErrorKeepsCache(t *testing.T) {
	f := newBuilderFixture(t, appointmentAt(9, false))
	ctx := context.Background()
	_, err := f.builder.Refresh(ctx, f.vendorID)
	require.NoError(t, err)

	f.appointments.listErr = errors.New("connection refused")
	_, err = f.builder.Refresh(ctx, f.vendorID)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load appointments")
	assert.Len(t, f.builder.Cached(f.vendorID), 1)
}

func TestBuilder_PositionAbsent(t *testing.T) {
	f := newBuilderFixture(t, appointmentAt(9, false))
	_, err := f.builder.Refresh(context.Background(), f.vendorID)
	require.NoError(t, err)

	_, ok := f.builder.Position(uuid.New(), f.vendorID)
	assert.False(t, ok)
	_, ok = f.builder.Position(uuid.New(), uuid.New())
	assert.False(t, ok)
}

// TestBuild_Properties checks contiguous positions and paid-before-unpaid over random inputs
func TestBuild_Properties(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))
	statuses := []models.AppointmentStatus{
		models.AppointmentPending, models.AppointmentConfirmed, models.AppointmentOngoing,
		models.AppointmentCompleted, models.AppointmentCancelled,
	}

	for round := 0; round < 200; round++ {
		n := rng.IntN(25)
		appointments := make([]*models.Appointment, n)
		for i := range appointments {
			appointments[i] = &models.Appointment{
				ID:              uuid.New(),
				UserID:          uuid.New(),
				AppointmentTime: testDay.Add(time.Duration(rng.IntN(48)) * 15 * time.Minute),
				Status:          statuses[rng.IntN(len(statuses))],
				IsPaid:          rng.IntN(2) == 0,
			}
		}

		items := Build(appointments, 30*time.Minute)

		for i, item := range items {
			require.Equal(t, i+1, item.Position, "positions must be contiguous from 1")
		}
		for i := range items {
			for j := i + 1; j < len(items); j++ {
				if items[i].IsPaid != items[j].IsPaid {
					require.True(t, items[i].IsPaid, "paid item must precede unpaid item")
				}
				if items[i].IsPaid == items[j].IsPaid {
					require.False(t, items[j].AppointmentTime.Before(items[i].AppointmentTime))
				}
			}
		}

		again := Build(appointments, 30*time.Minute)
		require.Equal(t, appointmentIDs(items), appointmentIDs(again), "build must be deterministic")
	}
}

// TestBuilder_ConcurrentRefreshLastCompletionWins pins down the accepted race between two
// refreshes of one vendor: the refresh that finishes last owns the cache, even if it read older data.
func TestBuilder_ConcurrentRefreshLastCompletionWins(t *testing.T) {
	t1, t2 := appointmentAt(9, false), appointmentAt(10, false)
	f := newBuilderFixture(t, t1, t2)
	ctx := context.Background()

	firstRead := make(chan struct{})
	releaseFirst := make(chan struct{})
	f.appointments.afterList = func(call int) {
		if call == 1 {
			close(firstRead)
			<-releaseFirst
		}
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := f.builder.Refresh(ctx, f.vendorID)
		assert.NoError(t, err)
	}()
	<-firstRead

	// ACT: the state changes and a second refresh completes while the first is in flight
	require.NoError(t, f.appointments.MarkPaid(ctx, t2.ID))
	fresh, err := f.builder.Refresh(ctx, f.vendorID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{t2.ID, t1.ID}, appointmentIDs(fresh))

	close(releaseFirst)
	wg.Wait()

	// ASSERT: the stale refresh finished last and its view is cached
	assert.Equal(t, []uuid.UUID{t1.ID, t2.ID}, appointmentIDs(f.builder.Cached(f.vendorID)))

	// the next trigger converges on durable state
	_, err = f.builder.Refresh(ctx, f.vendorID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{t2.ID, t1.ID}, appointmentIDs(f.builder.Cached(f.vendorID)))
}
