package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/dinetab/dinetab-backend/internal/events"
	"github.com/dinetab/dinetab-backend/internal/identity"
	"github.com/dinetab/dinetab-backend/internal/metrics"
	"github.com/dinetab/dinetab-backend/internal/pricing"
	"github.com/dinetab/dinetab-backend/internal/storage"
	"github.com/dinetab/dinetab-backend/pkg/models"
)

// Service owns the order aggregate: creation, edits, lifecycle transitions
// and deletion. Settlement lives in its own package and only shares the
// stores.
type Service struct {
	orders   storage.OrderStore
	tables   storage.TableStore
	products storage.ProductStore
	pricer   *pricing.Engine
	notifier events.Notifier
	metrics  *metrics.Registry
	logger   *logrus.Logger
}

func NewService(
	orders storage.OrderStore,
	tables storage.TableStore,
	products storage.ProductStore,
	pricer *pricing.Engine,
	notifier events.Notifier,
	reg *metrics.Registry,
	logger *logrus.Logger,
) *Service {
	return &Service{
		orders:   orders,
		tables:   tables,
		products: products,
		pricer:   pricer,
		notifier: notifier,
		metrics:  reg,
		logger:   logger,
	}
}

type CreateOrderInput struct {
	Lines   []pricing.LineInput
	Comment string
}

type UpdateOrderInput struct {
	// Lines nil means "leave unchanged". An explicit empty list is a
	// deletion request and must be routed to Delete by the boundary; see
	// IsDeletionRequest.
	Lines   []pricing.LineInput
	TableID *string
	Status  *models.OrderStatus
	Payed   *bool
	Comment *string
}

// IsDeletionRequest reports whether an update payload carries the legacy
// "empty lines means delete" shape. Kept at the boundary so the core Update
// stays strictly update-only.
func IsDeletionRequest(in UpdateOrderInput) bool {
	return in.Lines != nil && len(in.Lines) == 0
}

func (s *Service) Create(ctx context.Context, ident identity.Identity, in CreateOrderInput) (*models.Order, error) {
	if ident.TableID == "" {
		return nil, ErrTableRequired
	}
	if len(in.Lines) == 0 {
		return nil, ErrNoLines
	}
	if err := validateQuantities(in.Lines); err != nil {
		return nil, err
	}

	table, err := s.tables.GetByID(ctx, ident.TableID)
	if err != nil {
		return nil, fmt.Errorf("resolve table %s: %w", ident.TableID, err)
	}

	total, enriched, err := s.pricer.ComputeTotalStrict(ctx, in.Lines)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	order := &models.Order{
		ID:               uuid.New().String(),
		TableID:          table.ID,
		TenantID:         table.TenantID,
		Lines:            enriched,
		Status:           models.StatusPending,
		StatusTimestamps: map[models.OrderStatus]time.Time{models.StatusPending: now},
		TotalPrice:       total,
		Comment:          in.Comment,
		ActingUserID:     ident.ActingUserID,
		CreatedAt:        now,
		Version:          1,
	}

	if err := s.orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("persist order: %w", err)
	}
	if err := s.tables.AppendOrder(ctx, table.ID, order.ID); err != nil {
		return nil, fmt.Errorf("attach order to table: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":    order.ID,
		"table_id":    order.TableID,
		"tenant_id":   order.TenantID,
		"total_price": order.TotalPrice,
		"lines_count": len(order.Lines),
	}).Info("Order created successfully")

	s.notifier.OrderCreated(ctx, order)
	s.metrics.OrdersCreated.Inc()
	return order, nil
}

func (s *Service) Get(ctx context.Context, orderID string) (*models.Order, error) {
	return s.orders.GetByID(ctx, orderID)
}

// ListByTable returns a table's active and settled orders, excluding
// archived ones.
func (s *Service) ListByTable(ctx context.Context, tableID string) ([]*models.Order, error) {
	if tableID == "" {
		return nil, ErrTableRequired
	}
	return s.orders.ListByTable(ctx, tableID, models.StatusArchived)
}

// OrderWithDurations annotates an order with per-status durations in
// milliseconds for the kitchen FIFO view.
type OrderWithDurations struct {
	*models.Order
	StatusDurations map[models.OrderStatus]int64 `json:"status_durations"`
}

// ListTenantFIFO returns a tenant's non-archived orders in creation order,
// oldest first, for kitchen and service sequencing.
func (s *Service) ListTenantFIFO(ctx context.Context, tenantID string) ([]OrderWithDurations, error) {
	list, err := s.orders.ListByTenantFIFO(ctx, tenantID, models.StatusArchived)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	out := make([]OrderWithDurations, 0, len(list))
	for _, order := range list {
		durations := make(map[models.OrderStatus]int64)
		for status, d := range order.StatusDurations(now) {
			durations[status] = d.Milliseconds()
		}
		out = append(out, OrderWithDurations{Order: order, StatusDurations: durations})
	}
	return out, nil
}

func (s *Service) Update(ctx context.Context, ident identity.Identity, orderID string, in UpdateOrderInput) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status == models.StatusArchived && (in.Lines != nil || in.TableID != nil) {
		return nil, ErrOrderArchived
	}

	if len(in.Lines) > 0 {
		if err := validateQuantities(in.Lines); err != nil {
			return nil, err
		}
		if err := s.applyLines(ctx, order, in.Lines); err != nil {
			return nil, err
		}
	}

	if in.TableID != nil && *in.TableID != order.TableID {
		newTable, err := s.tables.GetByID(ctx, *in.TableID)
		if err != nil {
			return nil, fmt.Errorf("resolve table %s: %w", *in.TableID, err)
		}
		if err := s.tables.RemoveOrder(ctx, order.TableID, order.ID); err != nil {
			s.logger.WithError(err).WithField("table_id", order.TableID).Warn("Failed to detach order from previous table")
		}
		if err := s.tables.AppendOrder(ctx, newTable.ID, order.ID); err != nil {
			return nil, fmt.Errorf("attach order to table: %w", err)
		}
		order.TableID = newTable.ID
		order.TenantID = newTable.TenantID
	}

	if in.Status != nil {
		if err := Transition(order, *in.Status, time.Now()); err != nil {
			return nil, err
		}
		s.metrics.StatusTransitions.Inc()
	}

	if in.Payed != nil {
		// A direct paid flag pays out (or reopens) every line so the
		// flag never drifts from the per-line paid quantities.
		for i := range order.Lines {
			if *in.Payed {
				order.Lines[i].PaidQuantity = order.Lines[i].Quantity
			} else {
				order.Lines[i].PaidQuantity = 0
			}
		}
		order.Payed = *in.Payed
		order.ActingUserID = ident.ActingUserID
	}

	if in.Comment != nil {
		order.Comment = *in.Comment
	}

	if err := s.orders.Update(ctx, order); err != nil {
		return nil, err
	}

	s.logger.WithField("order_id", order.ID).Info("Order updated successfully")
	s.notifier.OrderUpdated(ctx, order)
	return order, nil
}

// applyLines recomputes the order's lines with the lenient pricing policy.
// A line whose product no longer resolves keeps its previously frozen
// snapshot but contributes nothing to the new total. Already-paid units are
// carried over per product, capped at the new quantity.
func (s *Service) applyLines(ctx context.Context, order *models.Order, lines []pricing.LineInput) error {
	total, enriched, missing, err := s.pricer.ComputeTotalLenient(ctx, lines)
	if err != nil {
		return err
	}

	previous := make(map[string]models.OrderLine, len(order.Lines))
	for _, line := range order.Lines {
		previous[line.ProductID] = line
	}

	missingSet := make(map[string]bool, len(missing))
	for _, id := range missing {
		missingSet[id] = true
	}

	for i := range enriched {
		old, existed := previous[enriched[i].ProductID]
		if !existed {
			continue
		}
		if missingSet[enriched[i].ProductID] {
			enriched[i].Snapshot = old.Snapshot
		}
		paid := old.PaidQuantity
		if paid > enriched[i].Quantity {
			paid = enriched[i].Quantity
		}
		enriched[i].PaidQuantity = paid
	}

	order.Lines = enriched
	order.TotalPrice = total
	order.RecomputePaid()
	return nil
}

// UpdateStatus is the explicit status-change operation, gated by the state
// machine.
func (s *Service) UpdateStatus(ctx context.Context, ident identity.Identity, orderID string, status models.OrderStatus) (*models.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if err := Transition(order, status, time.Now()); err != nil {
		return nil, err
	}
	if err := s.orders.Update(ctx, order); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_id": order.ID,
		"status":   order.Status,
	}).Info("Order status updated")

	s.notifier.OrderUpdated(ctx, order)
	s.metrics.StatusTransitions.Inc()
	return order, nil
}

// Delete removes an order and always detaches its id from the owning
// table's order list.
func (s *Service) Delete(ctx context.Context, orderID string) error {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if err := s.orders.Delete(ctx, orderID); err != nil {
		return err
	}
	if err := s.tables.RemoveOrder(ctx, order.TableID, orderID); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"order_id": orderID,
			"table_id": order.TableID,
		}).Warn("Failed to detach deleted order from table")
	}

	s.logger.WithField("order_id", orderID).Info("Order deleted successfully")
	s.notifier.OrderDeleted(ctx, order.TenantID, orderID)
	s.metrics.OrdersDeleted.Inc()
	return nil
}

// DeleteCancelled purges all of a tenant's cancelled orders, detaching each
// from its table. Returns how many orders were removed.
func (s *Service) DeleteCancelled(ctx context.Context, ident identity.Identity) (int, error) {
	cancelled, err := s.orders.ListByTenantStatus(ctx, ident.TenantID, models.StatusCancelled)
	if err != nil {
		return 0, err
	}
	deleted := 0
	for _, order := range cancelled {
		if err := s.Delete(ctx, order.ID); err != nil {
			s.logger.WithError(err).WithField("order_id", order.ID).Warn("Failed to delete cancelled order")
			continue
		}
		deleted++
	}
	return deleted, nil
}

// RateProducts folds submitted ratings into each product's running average
// and marks the order as rated. Ratings for products not on the order are
// ignored.
func (s *Service) RateProducts(ctx context.Context, orderID string, ratings map[string]float64) error {
	if len(ratings) == 0 {
		return ErrNoRatings
	}
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}

	var ids []string
	for _, line := range order.Lines {
		if _, ok := ratings[line.ProductID]; ok {
			ids = append(ids, line.ProductID)
		}
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return fmt.Errorf("catalog lookup: %w", err)
	}

	for _, p := range products {
		given := ratings[p.ID]
		newRate := (p.Rate*float64(p.Raters) + given) / float64(p.Raters+1)
		if err := s.products.UpdateRating(ctx, p.ID, newRate, p.Raters+1); err != nil {
			s.logger.WithError(err).WithField("product_id", p.ID).Warn("Failed to update product rating")
		}
	}

	order.Rated = true
	if err := s.orders.Update(ctx, order); err != nil {
		return err
	}
	s.logger.WithField("order_id", orderID).Info("Products rated for order")
	return nil
}

// Tip records a gratuity on the order. A tip can be set once.
func (s *Service) Tip(ctx context.Context, orderID string, amount float64) error {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Tips != nil {
		return ErrTipAlreadySet
	}
	order.Tips = &amount
	if err := s.orders.Update(ctx, order); err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"order_id": orderID,
		"tips":     amount,
	}).Info("Tip added to order")
	return nil
}

func validateQuantities(lines []pricing.LineInput) error {
	for _, line := range lines {
		if line.Quantity < 1 {
			return ErrInvalidQuantity
		}
	}
	return nil
}
