package events

import (
	"context"

	"github.com/dinetab/dinetab-backend/pkg/models"
)

// Event type names pushed to clients. These match the socket event names the
// frontend already listens for.
const (
	EventNewOrder     = "newOrder"
	EventOrderUpdated = "orderUpdated"
	EventDeleteOrder  = "deleteOrder"
)

// Notifier delivers domain events to the owning tenant's realtime channel.
// Delivery is strictly fire-and-forget: implementations log failures and
// never propagate them, since realtime push is not required for correctness
// of the underlying mutation.
type Notifier interface {
	OrderCreated(ctx context.Context, order *models.Order)
	OrderUpdated(ctx context.Context, order *models.Order)
	OrderDeleted(ctx context.Context, tenantID, orderID string)
	TableArchived(ctx context.Context, tenantID, tableID string, orderIDs []string)
}

// NopNotifier discards all events.
type NopNotifier struct{}

func (NopNotifier) OrderCreated(context.Context, *models.Order)                {}
func (NopNotifier) OrderUpdated(context.Context, *models.Order)                {}
func (NopNotifier) OrderDeleted(ctx context.Context, tenantID, orderID string) {}
func (NopNotifier) TableArchived(ctx context.Context, tenantID, tableID string, orderIDs []string) {
}
