package models

import (
	"testing"
	"time"
)

func TestStampStatusIsIdempotent(t *testing.T) {
	order := &Order{Status: StatusPending}
	first := time.Now()
	order.StampStatus(StatusPending, first)
	order.StampStatus(StatusPending, first.Add(time.Minute))

	if got := order.StatusTimestamps[StatusPending]; !got.Equal(first) {
		t.Errorf("Expected pending timestamp to stay %v, got %v", first, got)
	}
}

func TestStatusDurations(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	order := &Order{
		Status: StatusCompleted,
		StatusTimestamps: map[OrderStatus]time.Time{
			StatusPending:   base,
			StatusPreparing: base.Add(5 * time.Minute),
			StatusCompleted: base.Add(20 * time.Minute),
		},
	}

	now := base.Add(30 * time.Minute)
	durations := order.StatusDurations(now)

	if durations[StatusPending] != 5*time.Minute {
		t.Errorf("Expected pending duration 5m, got %v", durations[StatusPending])
	}
	if durations[StatusPreparing] != 15*time.Minute {
		t.Errorf("Expected preparing duration 15m, got %v", durations[StatusPreparing])
	}
	// Completed is the last entered status, so its clock runs until now.
	if durations[StatusCompleted] != 10*time.Minute {
		t.Errorf("Expected completed duration 10m, got %v", durations[StatusCompleted])
	}
	if _, ok := durations[StatusArchived]; ok {
		t.Error("Expected no duration for a status never entered")
	}
}

func TestStatusDurationsSkipsGaps(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	order := &Order{
		Status: StatusArchived,
		StatusTimestamps: map[OrderStatus]time.Time{
			StatusPending:  base,
			StatusArchived: base.Add(10 * time.Minute),
		},
	}

	durations := order.StatusDurations(base.Add(15 * time.Minute))
	if durations[StatusPending] != 10*time.Minute {
		t.Errorf("Expected pending to run until archival, got %v", durations[StatusPending])
	}
	if durations[StatusArchived] != 5*time.Minute {
		t.Errorf("Expected archived duration 5m, got %v", durations[StatusArchived])
	}
}

func TestRecomputePaid(t *testing.T) {
	order := &Order{
		Lines: []OrderLine{
			{ProductID: "p1", Quantity: 2, PaidQuantity: 2},
			{ProductID: "p2", Quantity: 1, PaidQuantity: 0},
		},
	}

	order.RecomputePaid()
	if order.Payed {
		t.Error("Expected order with unpaid units to stay unpaid")
	}

	order.Lines[1].PaidQuantity = 1
	order.RecomputePaid()
	if !order.Payed {
		t.Error("Expected fully paid lines to mark the order payed")
	}
}

func TestLineRemaining(t *testing.T) {
	line := OrderLine{Quantity: 3, PaidQuantity: 1}
	if line.Remaining() != 2 {
		t.Errorf("Expected 2 remaining units, got %d", line.Remaining())
	}
}
