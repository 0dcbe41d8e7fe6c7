package receipts

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dinetab/dinetab-backend/internal/storage"
	"github.com/dinetab/dinetab-backend/pkg/models"
)

// ErrNoOpenOrders is returned when the user has no archived orders awaiting
// closure.
var ErrNoOpenOrders = errors.New("no open archived orders found")

type ReceiptLine struct {
	ProductID    string  `json:"product_id"`
	ProductName  string  `json:"product_name"`
	ProductPrice float64 `json:"product_price"`
	Quantity     int     `json:"quantity"`
	TotalPrice   float64 `json:"total_price"`
}

type ReceiptOrder struct {
	OrderID    string        `json:"order_id"`
	Lines      []ReceiptLine `json:"lines"`
	TotalPrice float64       `json:"total_price"`
	Tips       *float64      `json:"tips,omitempty"`
	CreatedAt  time.Time     `json:"created_at"`
}

type Receipt struct {
	Orders       []ReceiptOrder `json:"orders"`
	TotalRevenue float64        `json:"total_revenue"`
}

// Service builds daily receipts over a user's archived orders. Line details
// come from the frozen price snapshots, so receipts stay correct after
// catalog edits.
type Service struct {
	orders storage.OrderStore
	logger *logrus.Logger
}

func NewService(orders storage.OrderStore, logger *logrus.Logger) *Service {
	return &Service{orders: orders, logger: logger}
}

// ArchivedOpen lists the user's archived, not-yet-closed orders with their
// combined revenue.
func (s *Service) ArchivedOpen(ctx context.Context, userID string) (*Receipt, error) {
	orders, err := s.orders.ListArchivedOpenByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return buildReceipt(orders), nil
}

// Close folds the user's open archived orders into a closed receipt batch
// and returns it.
func (s *Service) Close(ctx context.Context, userID string) (*Receipt, error) {
	orders, err := s.orders.ListArchivedOpenByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, ErrNoOpenOrders
	}

	ids := make([]string, len(orders))
	for i, order := range orders {
		ids[i] = order.ID
	}
	if err := s.orders.CloseOrders(ctx, ids); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"user_id":      userID,
		"orders_count": len(ids),
	}).Info("Archived orders closed into daily receipt")

	return buildReceipt(orders), nil
}

func buildReceipt(orders []*models.Order) *Receipt {
	receipt := &Receipt{Orders: make([]ReceiptOrder, 0, len(orders))}
	for _, order := range orders {
		entry := ReceiptOrder{
			OrderID:    order.ID,
			TotalPrice: order.TotalPrice,
			Tips:       order.Tips,
			CreatedAt:  order.CreatedAt,
		}
		for _, line := range order.Lines {
			entry.Lines = append(entry.Lines, ReceiptLine{
				ProductID:    line.ProductID,
				ProductName:  line.Snapshot.Name,
				ProductPrice: line.Snapshot.Price,
				Quantity:     line.Quantity,
				TotalPrice:   float64(line.Quantity) * line.Snapshot.Price,
			})
		}
		receipt.Orders = append(receipt.Orders, entry)
		receipt.TotalRevenue += order.TotalPrice
	}
	return receipt
}
