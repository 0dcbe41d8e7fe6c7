package storage

import (
	"context"
	"errors"
	"time"

	"github.com/dinetab/dinetab-backend/pkg/models"
)

var (
	// ErrNotFound is returned when the addressed document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict is returned when an optimistic update lost the
	// race against a concurrent writer. Safe to retry with a fresh read.
	ErrVersionConflict = errors.New("version conflict")

	// ErrAlreadyPaid is returned by MarkPaid when the order is already
	// settled, making whole-order confirmation idempotent.
	ErrAlreadyPaid = errors.New("order already paid")
)

// OrderStore persists order aggregates. Every mutation of an existing order
// goes through a versioned or conditional update so that two concurrent
// writers on the same order id cannot interleave.
type OrderStore interface {
	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)

	// ListByTable returns a table's orders, newest first, skipping the
	// given statuses.
	ListByTable(ctx context.Context, tableID string, exclude ...models.OrderStatus) ([]*models.Order, error)

	// ListByTenantFIFO returns a tenant's orders ascending by creation
	// time, skipping the given statuses.
	ListByTenantFIFO(ctx context.Context, tenantID string, exclude ...models.OrderStatus) ([]*models.Order, error)

	// ListByTenantStatus returns a tenant's orders in the given status.
	ListByTenantStatus(ctx context.Context, tenantID string, status models.OrderStatus) ([]*models.Order, error)

	// Update writes the full aggregate back, guarded by order.Version.
	// On success the order's version is bumped in place.
	Update(ctx context.Context, order *models.Order) error

	Delete(ctx context.Context, id string) error

	// MarkPaid atomically flips an unpaid order to paid, pays out every
	// line and stamps the acting user. Returns ErrAlreadyPaid when the
	// order was settled before this call.
	MarkPaid(ctx context.Context, id, actingUserID string) (*models.Order, error)

	// CountUnpaidByTable counts a table's unpaid, non-archived orders.
	CountUnpaidByTable(ctx context.Context, tableID string) (int, error)

	// ArchiveTableOrders transitions every non-archived order of a table
	// to archived, stamping the acting user and the archival instant, and
	// returns the orders it touched.
	ArchiveTableOrders(ctx context.Context, tableID, actingUserID string, now time.Time) ([]*models.Order, error)

	// ListArchivedOpenByUser returns archived orders settled by the user
	// that have not yet been folded into a closed daily receipt.
	ListArchivedOpenByUser(ctx context.Context, userID string) ([]*models.Order, error)

	// CloseOrders marks the given orders as part of a closed receipt.
	CloseOrders(ctx context.Context, ids []string) error
}

// TableStore resolves tables and maintains their order-id lists. A table's
// list and its orders are kept free of dangling references by the order
// service, which pairs every order create/delete with an append/remove here.
type TableStore interface {
	GetByID(ctx context.Context, id string) (*models.Table, error)
	AppendOrder(ctx context.Context, tableID, orderID string) error
	RemoveOrder(ctx context.Context, tableID, orderID string) error
}

// ProductStore is the read-mostly catalog reference.
type ProductStore interface {
	FindByIDs(ctx context.Context, ids []string) ([]models.Product, error)
	UpdateRating(ctx context.Context, productID string, rate float64, raters int) error
}

// BillStore is the tenant commission ledger. AddCommission is a single
// additive update and tolerates last-writer-wins, since postings only ever
// increase the total.
type BillStore interface {
	FindByTenant(ctx context.Context, tenantID string) (*models.Bill, error)
	AddCommission(ctx context.Context, tenantID string, amount float64, description string) error
}
