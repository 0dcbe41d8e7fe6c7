package models

import (
	"math"
	"testing"
)

func TestBillBalance(t *testing.T) {
	bill := &Bill{TotalAmount: 12.40, AmountPaid: 10.00}
	if got := bill.Balance(); math.Abs(got-2.40) > 1e-9 {
		t.Errorf("Expected balance 2.40, got %v", got)
	}
}
