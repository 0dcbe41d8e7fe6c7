package models

import (
	"time"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusPreparing OrderStatus = "preparing"
	StatusCompleted OrderStatus = "completed"
	StatusCancelled OrderStatus = "cancelled"
	StatusArchived  OrderStatus = "archived"
)

// statusSequence is the fixed progression used for duration analytics.
// Cancelled sits outside the sequence; a cancelled order keeps whatever
// durations it accumulated before cancellation.
var statusSequence = []OrderStatus{StatusPending, StatusPreparing, StatusCompleted, StatusArchived}

// PriceSnapshot is the product name and price frozen onto an order line at
// write time, so historical orders stay correct after the product is edited
// or deleted from the catalog.
type PriceSnapshot struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
}

type OrderLine struct {
	ProductID    string        `json:"product_id"`
	Snapshot     PriceSnapshot `json:"snapshot"`
	Quantity     int           `json:"quantity"`
	PaidQuantity int           `json:"paid_quantity"`
}

// Remaining returns the number of unpaid units on the line.
func (l OrderLine) Remaining() int {
	return l.Quantity - l.PaidQuantity
}

type Order struct {
	ID               string                    `json:"id"`
	TableID          string                    `json:"table_id"`
	TenantID         string                    `json:"tenant_id"`
	Lines            []OrderLine               `json:"lines"`
	Status           OrderStatus               `json:"status"`
	StatusTimestamps map[OrderStatus]time.Time `json:"status_timestamps"`
	Payed            bool                      `json:"payed"`
	TotalPrice       float64                   `json:"total_price"`
	Tips             *float64                  `json:"tips,omitempty"`
	Rated            bool                      `json:"rated"`
	IsClosed         bool                      `json:"is_closed"`
	Comment          string                    `json:"comment,omitempty"`
	ActingUserID     string                    `json:"acting_user_id,omitempty"`
	CreatedAt        time.Time                 `json:"created_at"`
	Version          int                       `json:"-"`
}

// StampStatus records the instant a status was first entered. Timestamps are
// append-only: re-entering a status never resets its clock.
func (o *Order) StampStatus(status OrderStatus, now time.Time) {
	if o.StatusTimestamps == nil {
		o.StatusTimestamps = make(map[OrderStatus]time.Time)
	}
	if _, ok := o.StatusTimestamps[status]; !ok {
		o.StatusTimestamps[status] = now
	}
}

// AllLinesPaid reports whether every line has all units paid.
func (o *Order) AllLinesPaid() bool {
	for _, line := range o.Lines {
		if line.PaidQuantity < line.Quantity {
			return false
		}
	}
	return true
}

// RecomputePaid derives the payed flag from the lines. It is the only
// sanctioned way to flip the flag outside of whole-order settlement.
func (o *Order) RecomputePaid() {
	o.Payed = o.AllLinesPaid()
}

// StatusDurations reports how long the order spent in each status it has
// entered: the gap to the next entered status in the fixed sequence, or the
// gap to now for the most recent one. Used for kitchen analytics only.
func (o *Order) StatusDurations(now time.Time) map[OrderStatus]time.Duration {
	durations := make(map[OrderStatus]time.Duration)
	for i, status := range statusSequence {
		entered, ok := o.StatusTimestamps[status]
		if !ok {
			continue
		}
		end := now
		for j := i + 1; j < len(statusSequence); j++ {
			if next, ok := o.StatusTimestamps[statusSequence[j]]; ok {
				end = next
				break
			}
		}
		durations[status] = end.Sub(entered)
	}
	return durations
}
