package orders

import (
	"errors"
	"testing"
	"time"

	"github.com/dinetab/dinetab-backend/pkg/models"
)

func TestTransitionSequence(t *testing.T) {
	order := &models.Order{
		Status:           models.StatusPending,
		StatusTimestamps: map[models.OrderStatus]time.Time{models.StatusPending: time.Now()},
	}

	if err := Transition(order, models.StatusPreparing, time.Now()); err != nil {
		t.Fatalf("pending -> preparing should succeed, got %v", err)
	}
	if order.Status != models.StatusPreparing {
		t.Errorf("Expected status preparing, got %s", order.Status)
	}
	if _, ok := order.StatusTimestamps[models.StatusPreparing]; !ok {
		t.Error("Expected preparing timestamp to be stamped")
	}

	if err := Transition(order, models.StatusCompleted, time.Now()); err != nil {
		t.Fatalf("preparing -> completed should succeed, got %v", err)
	}
	if order.Status != models.StatusCompleted {
		t.Errorf("Expected status completed, got %s", order.Status)
	}
}

func TestTransitionRejectsSkippingPreparing(t *testing.T) {
	order := &models.Order{Status: models.StatusPending}

	err := Transition(order, models.StatusCompleted, time.Now())
	var invalid *InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("pending -> completed should fail with InvalidTransitionError, got %v", err)
	}
	if order.Status != models.StatusPending {
		t.Errorf("Failed transition must leave state unchanged, got %s", order.Status)
	}
}

func TestTransitionCompletedIsTerminal(t *testing.T) {
	for _, target := range []models.OrderStatus{
		models.StatusPending,
		models.StatusPreparing,
		models.StatusCancelled,
		models.StatusArchived,
	} {
		order := &models.Order{Status: models.StatusCompleted}
		if err := Transition(order, target, time.Now()); err == nil {
			t.Errorf("completed -> %s should fail", target)
		}
		if order.Status != models.StatusCompleted {
			t.Errorf("Expected order to remain completed, got %s", order.Status)
		}
	}
}

func TestTransitionPendingCanBeCancelled(t *testing.T) {
	order := &models.Order{Status: models.StatusPending}
	if err := Transition(order, models.StatusCancelled, time.Now()); err != nil {
		t.Fatalf("pending -> cancelled should succeed, got %v", err)
	}
	if order.Status != models.StatusCancelled {
		t.Errorf("Expected status cancelled, got %s", order.Status)
	}
}

func TestTransitionArchivedNeverDirect(t *testing.T) {
	// Archival is a settlement consequence, not a staff transition.
	for _, from := range []models.OrderStatus{
		models.StatusPending,
		models.StatusPreparing,
	} {
		order := &models.Order{Status: from}
		if err := Transition(order, models.StatusArchived, time.Now()); err == nil {
			t.Errorf("%s -> archived should fail", from)
		}
	}
}

func TestTransitionDoesNotResetTimestamps(t *testing.T) {
	first := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	order := &models.Order{
		Status: models.StatusPending,
		StatusTimestamps: map[models.OrderStatus]time.Time{
			models.StatusPending:   first,
			models.StatusPreparing: first.Add(time.Minute),
		},
	}

	if err := Transition(order, models.StatusPreparing, first.Add(time.Hour)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := order.StatusTimestamps[models.StatusPreparing]; !got.Equal(first.Add(time.Minute)) {
		t.Errorf("Re-entering a status must not reset its clock, got %v", got)
	}
}
