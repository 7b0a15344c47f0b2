package realtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/prudhvinik1/slotsync/internal/events"
	"github.com/prudhvinik1/slotsync/internal/models"
	"github.com/prudhvinik1/slotsync/internal/repositories"
	"github.com/samber/lo"
)

func (e *Engine) vendor(ctx context.Context, vendorID uuid.UUID) (*models.Vendor, error) {
	vendor, err := e.repos.Vendors.GetByID(ctx, vendorID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, ErrVendorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get vendor: %w", err)
	}
	return vendor, nil
}

func (e *Engine) ownedVendor(ctx context.Context, userID, vendorID uuid.UUID) (*models.Vendor, error) {
	vendor, err := e.vendor(ctx, vendorID)
	if err != nil {
		return nil, err
	}
	if vendor.OwnerID != userID {
		return nil, ErrForbidden
	}
	return vendor, nil
}

// JoinVendorQueue subscribes a customer's connection to the vendor's queue summary and returns
// their current position.
func (e *Engine) JoinVendorQueue(ctx context.Context, connID string, userID, vendorID uuid.UUID) (events.Position, error) {
	if _, err := e.vendor(ctx, vendorID); err != nil {
		return events.Position{}, err
	}
	e.hub.Subscribe(connID, events.VendorQueue(vendorID))
	return e.MyQueuePosition(ctx, userID, vendorID)
}

func (e *Engine) LeaveVendorQueue(connID string, vendorID uuid.UUID) {
	e.hub.Unsubscribe(connID, events.VendorQueue(vendorID))
}

// MyQueuePosition reads the cached queue, building it first if this instance has not yet.
func (e *Engine) MyQueuePosition(ctx context.Context, userID, vendorID uuid.UUID) (events.Position, error) {
	item, ok := e.queue.Position(userID, vendorID)
	if !ok {
		if _, err := e.queue.Refresh(ctx, vendorID); err != nil {
			return events.Position{}, err
		}
		item, ok = e.queue.Position(userID, vendorID)
	}
	if !ok {
		return events.Position{VendorID: vendorID}, nil
	}
	return events.Position{VendorID: vendorID, Item: &item, InQueue: true}, nil
}

// SubscribeVendorQueue gives the vendor's owner the full live queue.
func (e *Engine) SubscribeVendorQueue(ctx context.Context, connID string, userID, vendorID uuid.UUID) (events.QueueSnapshot, error) {
	if _, err := e.ownedVendor(ctx, userID, vendorID); err != nil {
		return events.QueueSnapshot{}, err
	}
	items, err := e.queue.VendorQueue(ctx, vendorID)
	if err != nil {
		return events.QueueSnapshot{}, err
	}
	e.hub.Subscribe(connID, events.VendorOwner(vendorID))
	e.hub.Subscribe(connID, events.VendorQueue(vendorID))
	return events.QueueSnapshot{VendorID: vendorID, Queue: items}, nil
}

// SendCustomerNotification lets a vendor owner message customers in today's queue: the given
// ones, or all of them when customerIDs is empty. Users not in the queue are ignored.
func (e *Engine) SendCustomerNotification(ctx context.Context, userID, vendorID uuid.UUID, customerIDs []uuid.UUID, title, body string) (int, error) {
	vendor, err := e.ownedVendor(ctx, userID, vendorID)
	if err != nil {
		return 0, err
	}
	items, err := e.queue.VendorQueue(ctx, vendorID)
	if err != nil {
		return 0, err
	}

	recipients := lo.Uniq(lo.Map(items, func(item models.QueueItem, _ int) uuid.UUID { return item.UserID }))
	if len(customerIDs) > 0 {
		recipients = lo.Filter(recipients, func(id uuid.UUID, _ int) bool { return lo.Contains(customerIDs, id) })
	}
	if len(recipients) == 0 {
		return 0, nil
	}

	if title == "" {
		title = vendor.BusinessName
	}
	records, err := e.dispatcher.SendBulk(ctx, recipients, models.Notification{
		Title: title,
		Body:  body,
		Type:  models.NotificationVendorMessage,
		Data:  map[string]string{"vendorId": vendorID.String()},
	})
	if err != nil {
		return 0, err
	}
	return len(records), nil
}
