package orders

import (
	"fmt"
	"time"

	"github.com/dinetab/dinetab-backend/pkg/models"
)

// validTransitions is the staff-initiated transition table. Completed and
// cancelled are terminal; archived is reachable only through the settlement
// archival path, never by a direct status change.
var validTransitions = map[models.OrderStatus][]models.OrderStatus{
	models.StatusPending:   {models.StatusPreparing, models.StatusCancelled},
	models.StatusPreparing: {models.StatusCompleted},
}

// InvalidTransitionError rejects a status change the transition table does
// not allow. The order is left untouched.
type InvalidTransitionError struct {
	From models.OrderStatus
	To   models.OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// Transition applies a staff-initiated status change in place, stamping the
// first-entry timestamp for the new status.
func Transition(order *models.Order, to models.OrderStatus, now time.Time) error {
	for _, allowed := range validTransitions[order.Status] {
		if allowed == to {
			order.Status = to
			order.StampStatus(to, now)
			return nil
		}
	}
	return &InvalidTransitionError{From: order.Status, To: to}
}
