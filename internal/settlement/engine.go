package settlement

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/dinetab/dinetab-backend/internal/events"
	"github.com/dinetab/dinetab-backend/internal/metrics"
	"github.com/dinetab/dinetab-backend/internal/storage"
	"github.com/dinetab/dinetab-backend/pkg/models"
)

// DefaultCommissionRate is the share of settled revenue posted to the
// tenant's bill when no rate is configured.
const DefaultCommissionRate = 0.04

var (
	// ErrNoOrderIDs rejects a whole-order confirmation without ids.
	ErrNoOrderIDs = errors.New("no order ids provided")

	// ErrNoUnpaidOrders is returned when none of the requested orders
	// were still unpaid.
	ErrNoUnpaidOrders = errors.New("no unpaid orders found")

	// ErrNoSelectors rejects a per-unit confirmation without product
	// selectors.
	ErrNoSelectors = errors.New("no product selectors provided")

	// ErrOrderIDRequired rejects a per-unit confirmation without an
	// order id.
	ErrOrderIDRequired = errors.New("order id is required")
)

type Config struct {
	CommissionRate float64
}

// Engine settles orders: it marks whole orders or individual product units
// as paid, posts commission to the tenant's bill and triggers table archival
// once a table has no unpaid orders left.
type Engine struct {
	cfg      Config
	orders   storage.OrderStore
	bills    storage.BillStore
	archiver *Coordinator
	metrics  *metrics.Registry
	logger   *logrus.Logger
}

func NewEngine(
	cfg Config,
	orders storage.OrderStore,
	bills storage.BillStore,
	notifier events.Notifier,
	reg *metrics.Registry,
	logger *logrus.Logger,
) *Engine {
	if cfg.CommissionRate == 0 {
		cfg.CommissionRate = DefaultCommissionRate
	}
	return &Engine{
		cfg:      cfg,
		orders:   orders,
		bills:    bills,
		archiver: NewCoordinator(orders, notifier, reg, logger),
		metrics:  reg,
		logger:   logger,
	}
}

// Result summarises a whole-order settlement run.
type Result struct {
	ConfirmedOrderIDs []string `json:"confirmed_order_ids"`
	ArchivedTables    []string `json:"archived_tables"`
}

// ConfirmOrders settles whole orders. Already-paid orders are skipped, which
// makes retries safe: a second run confirms nothing and posts no commission.
// Failures are per-item; one order's trouble never aborts the rest.
func (e *Engine) ConfirmOrders(ctx context.Context, orderIDs []string, actingUserID string) (*Result, error) {
	if len(orderIDs) == 0 {
		return nil, ErrNoOrderIDs
	}

	result := &Result{}
	tables := make(map[string]bool)

	for _, id := range orderIDs {
		order, err := e.orders.MarkPaid(ctx, id, actingUserID)
		if err != nil {
			// A previously paid order still gets its table re-checked,
			// so a retry can heal a settlement that archived nothing.
			if errors.Is(err, storage.ErrAlreadyPaid) {
				if paid, gerr := e.orders.GetByID(ctx, id); gerr == nil {
					tables[paid.TableID] = true
				}
				e.logger.WithField("order_id", id).Info("Order already paid, skipping")
				continue
			}
			e.logger.WithError(err).WithField("order_id", id).Warn("Skipping order during settlement")
			continue
		}

		commission := order.TotalPrice * e.cfg.CommissionRate
		e.postCommission(ctx, order.TenantID, commission,
			fmt.Sprintf("commission for order %s", order.ID))

		tables[order.TableID] = true
		result.ConfirmedOrderIDs = append(result.ConfirmedOrderIDs, order.ID)
		e.metrics.OrdersSettled.Inc()

		e.logger.WithFields(logrus.Fields{
			"order_id":    order.ID,
			"tenant_id":   order.TenantID,
			"commission":  commission,
			"acting_user": actingUserID,
		}).Info("Order confirmed as paid")
	}

	if len(result.ConfirmedOrderIDs) == 0 && len(tables) == 0 {
		return nil, ErrNoUnpaidOrders
	}

	for tableID := range tables {
		archived, err := e.archiver.ArchiveIfSettled(ctx, tableID, actingUserID)
		if err != nil {
			e.logger.WithError(err).WithField("table_id", tableID).Error("Archival check failed")
			continue
		}
		if archived {
			result.ArchivedTables = append(result.ArchivedTables, tableID)
		}
	}

	return result, nil
}

// ConfirmProducts settles individual product units of one order. Each
// selector names a product id; repeating a selector requests one more unit of
// that line. A line is never paid beyond its remaining unpaid units, so the
// call is safe to retry.
func (e *Engine) ConfirmProducts(ctx context.Context, orderID string, selectors []string, actingUserID string) (*models.Order, error) {
	if orderID == "" {
		return nil, ErrOrderIDRequired
	}
	if len(selectors) == 0 {
		return nil, ErrNoSelectors
	}

	requested := make(map[string]int, len(selectors))
	for _, productID := range selectors {
		requested[productID]++
	}

	var order *models.Order
	var totalPaid float64
	var unitsPaid int

	// Optimistic update with a short retry: a concurrent writer on the
	// same order invalidates our read, so reapply against fresh state.
	for attempt := 0; attempt < 3; attempt++ {
		var err error
		order, err = e.orders.GetByID(ctx, orderID)
		if err != nil {
			return nil, err
		}

		totalPaid, unitsPaid = applySelectors(order, requested)
		order.RecomputePaid()
		order.ActingUserID = actingUserID

		err = e.orders.Update(ctx, order)
		if err == nil {
			break
		}
		if errors.Is(err, storage.ErrVersionConflict) && attempt < 2 {
			e.logger.WithField("order_id", orderID).Info("Concurrent order update, retrying product settlement")
			continue
		}
		return nil, err
	}

	if unitsPaid > 0 {
		commission := totalPaid * e.cfg.CommissionRate
		e.postCommission(ctx, order.TenantID, commission,
			fmt.Sprintf("commission for %d product units of order %s", unitsPaid, order.ID))
		e.metrics.ProductUnitsSettled.Add(float64(unitsPaid))

		e.logger.WithFields(logrus.Fields{
			"order_id":    order.ID,
			"units_paid":  unitsPaid,
			"amount_paid": totalPaid,
			"commission":  commission,
		}).Info("Product units confirmed as paid")
	}

	if _, err := e.archiver.ArchiveIfSettled(ctx, order.TableID, actingUserID); err != nil {
		e.logger.WithError(err).WithField("table_id", order.TableID).Error("Archival check failed")
	}

	return order, nil
}

// applySelectors increments paid quantities in place, capping each line at
// its remaining unpaid units. Returns the settled amount and unit count.
func applySelectors(order *models.Order, requested map[string]int) (float64, int) {
	var totalPaid float64
	var unitsPaid int
	for i := range order.Lines {
		line := &order.Lines[i]
		count, ok := requested[line.ProductID]
		if !ok || line.Remaining() <= 0 {
			continue
		}
		quantityToPay := count
		if remaining := line.Remaining(); quantityToPay > remaining {
			quantityToPay = remaining
		}
		line.PaidQuantity += quantityToPay
		totalPaid += float64(quantityToPay) * line.Snapshot.Price
		unitsPaid += quantityToPay
	}
	return totalPaid, unitsPaid
}

// postCommission adds commission to the tenant's bill. A tenant without a
// bill is logged, not an error: settlement proceeds regardless.
func (e *Engine) postCommission(ctx context.Context, tenantID string, amount float64, description string) {
	if err := e.bills.AddCommission(ctx, tenantID, amount, description); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			e.logger.WithField("tenant_id", tenantID).Info("No bill found for tenant, payment continues without posting commission")
			return
		}
		e.logger.WithError(err).WithField("tenant_id", tenantID).Error("Failed to post commission to bill")
		return
	}
	e.metrics.CommissionPosted.Add(amount)
}
