package queue

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"github.com/prudhvinik1/slotsync/internal/models"
	"github.com/prudhvinik1/slotsync/internal/repositories"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

var ErrVendorNotFound = errors.New("vendor not found")

// Builder keeps a per-vendor cache of today's wait queue. The cache is rebuilt wholesale from
// the appointment store on every refresh and is never patched in place.
type Builder struct {
	appointments    repositories.AppointmentRepository
	vendors         repositories.VendorRepository
	clock           clock.Clock
	location        *time.Location
	serviceDuration time.Duration
	logger          zerolog.Logger

	mu    sync.RWMutex
	cache map[uuid.UUID][]models.QueueItem
}

func NewBuilder(
	appointments repositories.AppointmentRepository,
	vendors repositories.VendorRepository,
	clk clock.Clock,
	location *time.Location,
	serviceDuration time.Duration,
	logger zerolog.Logger,
) *Builder {
	return &Builder{
		appointments:    appointments,
		vendors:         vendors,
		clock:           clk,
		location:        location,
		serviceDuration: serviceDuration,
		logger:          logger.With().Str("component", "QueueBuilder").Logger(),
		cache:           make(map[uuid.UUID][]models.QueueItem),
	}
}

// Refresh reloads the vendor's active appointments for the current day and replaces the cached
// queue. Concurrent refreshes of one vendor are not serialized; the last to finish wins.
func (b *Builder) Refresh(ctx context.Context, vendorID uuid.UUID) ([]models.QueueItem, error) {
	if _, err := b.vendors.GetByID(ctx, vendorID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, ErrVendorNotFound
		}
		return nil, fmt.Errorf("failed to get vendor: %w", err)
	}

	from, to := b.today()
	appointments, err := b.appointments.ListForVendor(ctx, vendorID, from, to, models.ActiveStatuses)
	if err != nil {
		return nil, fmt.Errorf("failed to load appointments: %w", err)
	}

	items := Build(appointments, b.serviceDuration)

	b.mu.Lock()
	b.cache[vendorID] = items
	b.mu.Unlock()

	b.logger.Debug().Str("vendor_id", vendorID.String()).Int("size", len(items)).Msg("Queue rebuilt")
	return slices.Clone(items), nil
}

// VendorQueue refreshes the vendor's queue and returns it.
func (b *Builder) VendorQueue(ctx context.Context, vendorID uuid.UUID) ([]models.QueueItem, error) {
	return b.Refresh(ctx, vendorID)
}

// Cached returns the last built queue without touching the store.
func (b *Builder) Cached(vendorID uuid.UUID) []models.QueueItem {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return slices.Clone(b.cache[vendorID])
}

// Position finds the user's earliest slot in the cached queue.
func (b *Builder) Position(userID, vendorID uuid.UUID) (models.QueueItem, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, item := range b.cache[vendorID] {
		if item.UserID == userID {
			return item, true
		}
	}
	return models.QueueItem{}, false
}

func (b *Builder) today() (time.Time, time.Time) {
	now := b.clock.Now().In(b.location)
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, b.location)
	return start, start.AddDate(0, 0, 1)
}

// Build orders active appointments paid first, then by appointment time, and assigns
// positions 1..N. The wait estimate is the number of people ahead times serviceDuration.
func Build(appointments []*models.Appointment, serviceDuration time.Duration) []models.QueueItem {
	active := lo.Filter(appointments, func(a *models.Appointment, _ int) bool {
		return a != nil && a.Status.IsActive()
	})

	slices.SortFunc(active, func(a, b *models.Appointment) int {
		if a.IsPaid != b.IsPaid {
			if a.IsPaid {
				return -1
			}
			return 1
		}
		if c := a.AppointmentTime.Compare(b.AppointmentTime); c != 0 {
			return c
		}
		return bytes.Compare(a.ID[:], b.ID[:])
	})

	return lo.Map(active, func(a *models.Appointment, i int) models.QueueItem {
		return models.QueueItem{
			AppointmentID:     a.ID,
			UserID:            a.UserID,
			VendorID:          a.VendorID,
			AppointmentTime:   a.AppointmentTime,
			IsPaid:            a.IsPaid,
			Position:          i + 1,
			EstimatedWaitTime: time.Duration(i) * serviceDuration,
		}
	})
}
