package settlement

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dinetab/dinetab-backend/internal/events"
	"github.com/dinetab/dinetab-backend/internal/metrics"
	"github.com/dinetab/dinetab-backend/internal/storage"
)

// Coordinator decides when a table's order set is fully settled and, if so,
// archives it. This is the only path by which an order reaches archived:
// archival is a derived consequence of settlement, never a direct action.
type Coordinator struct {
	orders   storage.OrderStore
	notifier events.Notifier
	metrics  *metrics.Registry
	logger   *logrus.Logger
}

func NewCoordinator(orders storage.OrderStore, notifier events.Notifier, reg *metrics.Registry, logger *logrus.Logger) *Coordinator {
	return &Coordinator{
		orders:   orders,
		notifier: notifier,
		metrics:  reg,
		logger:   logger,
	}
}

// ArchiveIfSettled archives all of a table's orders when none of its
// non-archived orders remain unpaid. Only orders existing at query time are
// considered: an order created concurrently simply stays a fresh non-archived
// order for the table, which is correct.
func (c *Coordinator) ArchiveIfSettled(ctx context.Context, tableID, actingUserID string) (bool, error) {
	unpaid, err := c.orders.CountUnpaidByTable(ctx, tableID)
	if err != nil {
		return false, err
	}
	if unpaid > 0 {
		return false, nil
	}

	archived, err := c.orders.ArchiveTableOrders(ctx, tableID, actingUserID, time.Now())
	if err != nil {
		return false, err
	}
	if len(archived) == 0 {
		return false, nil
	}

	ids := make([]string, len(archived))
	for i, order := range archived {
		ids[i] = order.ID
	}

	c.logger.WithFields(logrus.Fields{
		"table_id":       tableID,
		"archived_count": len(ids),
		"acting_user":    actingUserID,
	}).Info("Table orders archived after settlement")

	c.notifier.TableArchived(ctx, archived[0].TenantID, tableID, ids)
	c.metrics.TablesArchived.Inc()
	return true, nil
}
