package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/dinetab/dinetab-backend/pkg/models"
)

type PostgresBillStore struct {
	db *sql.DB
}

func NewPostgresBillStore(db *sql.DB) *PostgresBillStore {
	return &PostgresBillStore{db: db}
}

func (s *PostgresBillStore) FindByTenant(ctx context.Context, tenantID string) (*models.Bill, error) {
	bill := &models.Bill{}
	var transactions []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT tenant_id, total_amount, amount_paid, transactions, last_updated
		 FROM bills WHERE tenant_id = $1`, tenantID).
		Scan(&bill.TenantID, &bill.TotalAmount, &bill.AmountPaid, &transactions, &bill.LastUpdated)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(transactions, &bill.Transactions); err != nil {
		return nil, fmt.Errorf("unmarshal transactions: %w", err)
	}
	return bill, nil
}

// AddCommission posts a commission transaction in one additive update.
// Concurrent postings interleave safely because each one only increments the
// total and appends to the transaction log.
func (s *PostgresBillStore) AddCommission(ctx context.Context, tenantID string, amount float64, description string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE bills
		SET total_amount = total_amount + $2,
		    transactions = transactions || jsonb_build_object(
		        'id', $3::text,
		        'date', to_jsonb(now()),
		        'amount', $2::numeric,
		        'description', $4::text),
		    last_updated = now()
		WHERE tenant_id = $1`,
		tenantID, amount, uuid.New().String(), description)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func unmarshalStringSlice(data []byte, dst *[]string) error {
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("unmarshal id list: %w", err)
	}
	return nil
}
