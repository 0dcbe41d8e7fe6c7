package receipts

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dinetab/dinetab-backend/internal/storage"
	"github.com/dinetab/dinetab-backend/pkg/models"
)

func newTestService(t *testing.T) (*Service, *storage.MemoryStore) {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	store := storage.NewMemoryStore()
	return NewService(store, logger), store
}

func seedArchivedOrder(t *testing.T, store *storage.MemoryStore, id, userID string, total float64, closed bool) {
	t.Helper()
	tips := 1.00
	order := &models.Order{
		ID:           id,
		TableID:      "table1",
		TenantID:     "tenant1",
		Status:       models.StatusArchived,
		ActingUserID: userID,
		IsClosed:     closed,
		TotalPrice:   total,
		Tips:         &tips,
		Lines: []models.OrderLine{
			{
				ProductID: "espresso",
				Snapshot:  models.PriceSnapshot{ProductID: "espresso", Name: "Espresso", Price: total},
				Quantity:  1,
			},
		},
		CreatedAt: time.Now(),
	}
	require.NoError(t, store.Create(context.Background(), order))
}

func TestArchivedOpen(t *testing.T) {
	service, store := newTestService(t)
	ctx := context.Background()

	seedArchivedOrder(t, store, "o1", "waiter1", 10.00, false)
	seedArchivedOrder(t, store, "o2", "waiter1", 4.50, false)
	seedArchivedOrder(t, store, "o3", "waiter1", 99.00, true)
	seedArchivedOrder(t, store, "o4", "someone-else", 7.00, false)

	receipt, err := service.ArchivedOpen(ctx, "waiter1")
	require.NoError(t, err)
	require.Len(t, receipt.Orders, 2, "closed orders and other users' orders are excluded")
	assert.InDelta(t, 14.50, receipt.TotalRevenue, 1e-9)

	first := receipt.Orders[0]
	assert.Equal(t, "o1", first.OrderID)
	require.Len(t, first.Lines, 1)
	assert.Equal(t, "Espresso", first.Lines[0].ProductName, "line details come from the frozen snapshot")
	require.NotNil(t, first.Tips)
	assert.Equal(t, 1.00, *first.Tips)
}

func TestArchivedOpenWithNothingOpen(t *testing.T) {
	service, _ := newTestService(t)

	receipt, err := service.ArchivedOpen(context.Background(), "waiter1")
	require.NoError(t, err)
	assert.Empty(t, receipt.Orders)
	assert.Zero(t, receipt.TotalRevenue)
}

func TestCloseMarksOrdersClosed(t *testing.T) {
	service, store := newTestService(t)
	ctx := context.Background()

	seedArchivedOrder(t, store, "o1", "waiter1", 10.00, false)
	seedArchivedOrder(t, store, "o2", "waiter1", 4.50, false)

	receipt, err := service.Close(ctx, "waiter1")
	require.NoError(t, err)
	assert.Len(t, receipt.Orders, 2)
	assert.InDelta(t, 14.50, receipt.TotalRevenue, 1e-9)

	for _, id := range []string{"o1", "o2"} {
		order, err := store.GetByID(ctx, id)
		require.NoError(t, err)
		assert.True(t, order.IsClosed)
	}

	// The batch is closed now, so a second close finds nothing.
	_, err = service.Close(ctx, "waiter1")
	assert.ErrorIs(t, err, ErrNoOpenOrders)
}
