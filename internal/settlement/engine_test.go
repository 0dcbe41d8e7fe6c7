package settlement

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dinetab/dinetab-backend/internal/metrics"
	"github.com/dinetab/dinetab-backend/internal/storage"
	"github.com/dinetab/dinetab-backend/pkg/models"
)

type archivedTable struct {
	tenantID string
	tableID  string
	orderIDs []string
}

// captureNotifier records archival notifications for assertions.
type captureNotifier struct {
	mu       sync.Mutex
	archived []archivedTable
}

func (c *captureNotifier) OrderCreated(context.Context, *models.Order)                {}
func (c *captureNotifier) OrderUpdated(context.Context, *models.Order)                {}
func (c *captureNotifier) OrderDeleted(ctx context.Context, tenantID, orderID string) {}
func (c *captureNotifier) TableArchived(ctx context.Context, tenantID, tableID string, orderIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.archived = append(c.archived, archivedTable{tenantID: tenantID, tableID: tableID, orderIDs: orderIDs})
}

func newTestEngine(t *testing.T) (*Engine, *storage.MemoryStore, *captureNotifier) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	store := storage.NewMemoryStore()
	notifier := &captureNotifier{}
	engine := NewEngine(Config{CommissionRate: 0.04}, store, store, notifier, metrics.NewRegistry(), logger)
	return engine, store, notifier
}

func seedOrder(t *testing.T, store *storage.MemoryStore, id, tableID, tenantID string, lines []models.OrderLine) *models.Order {
	t.Helper()
	var total float64
	for _, line := range lines {
		total += line.Snapshot.Price * float64(line.Quantity)
	}
	order := &models.Order{
		ID:               id,
		TableID:          tableID,
		TenantID:         tenantID,
		Lines:            lines,
		Status:           models.StatusPending,
		StatusTimestamps: map[models.OrderStatus]time.Time{models.StatusPending: time.Now()},
		TotalPrice:       total,
		CreatedAt:        time.Now(),
	}
	require.NoError(t, store.Create(context.Background(), order))
	return order
}

func line(productID string, price float64, quantity, paid int) models.OrderLine {
	return models.OrderLine{
		ProductID:    productID,
		Snapshot:     models.PriceSnapshot{ProductID: productID, Name: productID, Price: price},
		Quantity:     quantity,
		PaidQuantity: paid,
	}
}

func TestConfirmOrdersSettlesAndArchives(t *testing.T) {
	engine, store, notifier := newTestEngine(t)
	ctx := context.Background()

	store.AddBill(models.Bill{TenantID: "tenant1"})
	seedOrder(t, store, "o1", "table1", "tenant1", []models.OrderLine{line("burger", 5.00, 2, 0)})

	result, err := engine.ConfirmOrders(ctx, []string{"o1"}, "waiter1")
	require.NoError(t, err)
	assert.Equal(t, []string{"o1"}, result.ConfirmedOrderIDs)
	assert.Equal(t, []string{"table1"}, result.ArchivedTables)

	order, err := store.GetByID(ctx, "o1")
	require.NoError(t, err)
	assert.True(t, order.Payed)
	assert.Equal(t, models.StatusArchived, order.Status)
	assert.Equal(t, "waiter1", order.ActingUserID)
	assert.NotZero(t, order.StatusTimestamps[models.StatusArchived])

	bill, err := store.FindByTenant(ctx, "tenant1")
	require.NoError(t, err)
	assert.InDelta(t, 0.40, bill.TotalAmount, 1e-9, "commission is 4%% of the 10.00 total")
	require.Len(t, bill.Transactions, 1)

	require.Len(t, notifier.archived, 1)
	assert.Equal(t, "tenant1", notifier.archived[0].tenantID)
	assert.Equal(t, []string{"o1"}, notifier.archived[0].orderIDs)
}

func TestConfirmOrdersIsIdempotent(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	store.AddBill(models.Bill{TenantID: "tenant1"})
	seedOrder(t, store, "o1", "table1", "tenant1", []models.OrderLine{line("burger", 5.00, 2, 0)})

	_, err := engine.ConfirmOrders(ctx, []string{"o1"}, "waiter1")
	require.NoError(t, err)

	// The second confirmation finds no unpaid order and must not post
	// commission again.
	result, err := engine.ConfirmOrders(ctx, []string{"o1"}, "waiter1")
	require.NoError(t, err)
	assert.Empty(t, result.ConfirmedOrderIDs)

	bill, err := store.FindByTenant(ctx, "tenant1")
	require.NoError(t, err)
	assert.InDelta(t, 0.40, bill.TotalAmount, 1e-9)
	assert.Len(t, bill.Transactions, 1)
}

func TestConfirmOrdersArchivesOnlyWhenTableFullySettled(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	store.AddBill(models.Bill{TenantID: "tenant1"})
	seedOrder(t, store, "o1", "table1", "tenant1", []models.OrderLine{line("burger", 5.00, 1, 0)})
	seedOrder(t, store, "o2", "table1", "tenant1", []models.OrderLine{line("espresso", 2.50, 1, 0)})

	result, err := engine.ConfirmOrders(ctx, []string{"o1"}, "waiter1")
	require.NoError(t, err)
	assert.Empty(t, result.ArchivedTables)

	for _, id := range []string{"o1", "o2"} {
		order, err := store.GetByID(ctx, id)
		require.NoError(t, err)
		assert.NotEqual(t, models.StatusArchived, order.Status)
	}

	result, err = engine.ConfirmOrders(ctx, []string{"o2"}, "waiter1")
	require.NoError(t, err)
	assert.Equal(t, []string{"table1"}, result.ArchivedTables)

	for _, id := range []string{"o1", "o2"} {
		order, err := store.GetByID(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.StatusArchived, order.Status)
	}
}

func TestConfirmOrdersWithoutBillIsLenient(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	seedOrder(t, store, "o1", "table1", "tenant-without-bill", []models.OrderLine{line("burger", 5.00, 1, 0)})

	result, err := engine.ConfirmOrders(ctx, []string{"o1"}, "waiter1")
	require.NoError(t, err)
	assert.Equal(t, []string{"o1"}, result.ConfirmedOrderIDs)

	order, err := store.GetByID(ctx, "o1")
	require.NoError(t, err)
	assert.True(t, order.Payed)
}

func TestConfirmOrdersSkipsUnknownIDs(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	seedOrder(t, store, "o1", "table1", "tenant1", []models.OrderLine{line("burger", 5.00, 1, 0)})

	result, err := engine.ConfirmOrders(ctx, []string{"missing", "o1"}, "waiter1")
	require.NoError(t, err)
	assert.Equal(t, []string{"o1"}, result.ConfirmedOrderIDs)
}

func TestConfirmOrdersValidation(t *testing.T) {
	engine, _, _ := newTestEngine(t)

	_, err := engine.ConfirmOrders(context.Background(), nil, "waiter1")
	assert.ErrorIs(t, err, ErrNoOrderIDs)

	_, err = engine.ConfirmOrders(context.Background(), []string{"missing"}, "waiter1")
	assert.ErrorIs(t, err, ErrNoUnpaidOrders)
}

func TestConfirmProductsCapsAtRemainingUnits(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	store.AddBill(models.Bill{TenantID: "tenant1"})
	seedOrder(t, store, "o1", "table1", "tenant1", []models.OrderLine{
		line("p1", 3.00, 3, 1),
		line("p2", 4.00, 1, 0),
	})

	order, err := engine.ConfirmProducts(ctx, "o1", []string{"p1", "p1", "p2"}, "waiter1")
	require.NoError(t, err)

	assert.Equal(t, 3, order.Lines[0].PaidQuantity, "two requested units settle the two remaining")
	assert.Equal(t, 1, order.Lines[1].PaidQuantity)
	assert.True(t, order.Payed)

	bill, err := store.FindByTenant(ctx, "tenant1")
	require.NoError(t, err)
	// 2 units of p1 at 3.00 plus 1 unit of p2 at 4.00, at 4% commission.
	assert.InDelta(t, (2*3.00+4.00)*0.04, bill.TotalAmount, 1e-9)
}

func TestConfirmProductsNeverOverpays(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	store.AddBill(models.Bill{TenantID: "tenant1"})
	seedOrder(t, store, "o1", "table1", "tenant1", []models.OrderLine{line("p1", 3.00, 2, 0)})

	order, err := engine.ConfirmProducts(ctx, "o1",
		[]string{"p1", "p1", "p1", "p1", "p1"}, "waiter1")
	require.NoError(t, err)
	assert.Equal(t, 2, order.Lines[0].PaidQuantity)

	bill, err := store.FindByTenant(ctx, "tenant1")
	require.NoError(t, err)
	assert.InDelta(t, 2*3.00*0.04, bill.TotalAmount, 1e-9)

	// Retrying the same selectors settles nothing further.
	order, err = engine.ConfirmProducts(ctx, "o1", []string{"p1"}, "waiter1")
	require.NoError(t, err)
	assert.Equal(t, 2, order.Lines[0].PaidQuantity)

	bill, err = store.FindByTenant(ctx, "tenant1")
	require.NoError(t, err)
	assert.InDelta(t, 2*3.00*0.04, bill.TotalAmount, 1e-9)
}

func TestConfirmProductsPartialLeavesOrderUnpaid(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	seedOrder(t, store, "o1", "table1", "tenant1", []models.OrderLine{line("p1", 3.00, 3, 0)})

	order, err := engine.ConfirmProducts(ctx, "o1", []string{"p1"}, "waiter1")
	require.NoError(t, err)
	assert.Equal(t, 1, order.Lines[0].PaidQuantity)
	assert.False(t, order.Payed)

	stored, err := store.GetByID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, stored.Status, "partially paid table must not archive")
}

func TestConfirmProductsValidation(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	ctx := context.Background()

	_, err := engine.ConfirmProducts(ctx, "", []string{"p1"}, "waiter1")
	assert.ErrorIs(t, err, ErrOrderIDRequired)

	_, err = engine.ConfirmProducts(ctx, "o1", nil, "waiter1")
	assert.ErrorIs(t, err, ErrNoSelectors)

	_, err = engine.ConfirmProducts(ctx, "missing", []string{"p1"}, "waiter1")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	seedOrder(t, store, "o1", "table1", "tenant1", []models.OrderLine{line("p1", 3.00, 1, 0)})
	order, err := engine.ConfirmProducts(ctx, "o1", []string{"unknown-product"}, "waiter1")
	require.NoError(t, err)
	assert.False(t, order.Payed, "selectors for products not on the order are ignored")
}

func TestArchiveIfSettledSkipsTablesWithUnpaidOrders(t *testing.T) {
	engine, store, notifier := newTestEngine(t)
	ctx := context.Background()

	seedOrder(t, store, "o1", "table1", "tenant1", []models.OrderLine{line("p1", 3.00, 1, 0)})

	archived, err := engine.archiver.ArchiveIfSettled(ctx, "table1", "waiter1")
	require.NoError(t, err)
	assert.False(t, archived)
	assert.Empty(t, notifier.archived)
}

func TestArchiveIfSettledArchivesWholeTable(t *testing.T) {
	engine, store, notifier := newTestEngine(t)
	ctx := context.Background()

	// A cancelled-but-paid set: everything on the table is settled.
	o1 := seedOrder(t, store, "o1", "table1", "tenant1", []models.OrderLine{line("p1", 3.00, 1, 1)})
	o1.Payed = true
	require.NoError(t, store.Update(ctx, o1))

	archived, err := engine.archiver.ArchiveIfSettled(ctx, "table1", "waiter1")
	require.NoError(t, err)
	assert.True(t, archived)

	order, err := store.GetByID(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusArchived, order.Status)
	require.Len(t, notifier.archived, 1)
	assert.Equal(t, "table1", notifier.archived[0].tableID)
}
