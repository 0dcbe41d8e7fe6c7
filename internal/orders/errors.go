package orders

import (
	"errors"
)

var (
	// ErrNoLines rejects order creation without any line items.
	ErrNoLines = errors.New("products are required")

	// ErrInvalidQuantity rejects a line with quantity below 1.
	ErrInvalidQuantity = errors.New("line quantity must be at least 1")

	// ErrTableRequired rejects table-scoped operations without a resolved
	// table identity.
	ErrTableRequired = errors.New("table is required")

	// ErrOrderArchived rejects line or table edits on an archived order.
	ErrOrderArchived = errors.New("archived orders are immutable")

	// ErrTipAlreadySet rejects a second gratuity on the same order.
	ErrTipAlreadySet = errors.New("tip already set for this order")

	// ErrNoRatings rejects a rating submission without any ratings.
	ErrNoRatings = errors.New("ratings are required")
)
