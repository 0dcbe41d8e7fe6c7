package models

import (
	"time"
)

type BillTransaction struct {
	ID          string    `json:"id"`
	Date        time.Time `json:"date"`
	Amount      float64   `json:"amount"`
	Description string    `json:"description,omitempty"`
}

// Bill is the running ledger a tenant owes commission against. Settlement
// only ever adds to TotalAmount; AmountPaid is maintained by the billing
// service.
type Bill struct {
	TenantID     string            `json:"tenant_id"`
	TotalAmount  float64           `json:"total_amount"`
	AmountPaid   float64           `json:"amount_paid"`
	Transactions []BillTransaction `json:"transactions"`
	LastUpdated  time.Time         `json:"last_updated"`
}

// Balance is the remaining amount owed.
func (b *Bill) Balance() float64 {
	return b.TotalAmount - b.AmountPaid
}
