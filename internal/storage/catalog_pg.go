package storage

import (
	"context"
	"database/sql"

	"github.com/lib/pq"

	"github.com/dinetab/dinetab-backend/pkg/models"
)

type PostgresProductStore struct {
	db *sql.DB
}

func NewPostgresProductStore(db *sql.DB) *PostgresProductStore {
	return &PostgresProductStore{db: db}
}

func (s *PostgresProductStore) FindByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, price, available, rate, raters
		 FROM products WHERE id = ANY($1)`,
		pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		var p models.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price,
			&p.Available, &p.Rate, &p.Raters); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (s *PostgresProductStore) UpdateRating(ctx context.Context, productID string, rate float64, raters int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE products SET rate = $2, raters = $3 WHERE id = $1`,
		productID, rate, raters)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type PostgresTableStore struct {
	db *sql.DB
}

func NewPostgresTableStore(db *sql.DB) *PostgresTableStore {
	return &PostgresTableStore{db: db}
}

func (s *PostgresTableStore) GetByID(ctx context.Context, id string) (*models.Table, error) {
	table := &models.Table{}
	var orderIDs []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT id, tenant_id, number, order_ids FROM tables WHERE id = $1`, id).
		Scan(&table.ID, &table.TenantID, &table.Number, &orderIDs)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := unmarshalStringSlice(orderIDs, &table.OrderIDs); err != nil {
		return nil, err
	}
	return table, nil
}

// AppendOrder and RemoveOrder are single atomic jsonb updates, so concurrent
// order creations on one table never clobber each other's references.
func (s *PostgresTableStore) AppendOrder(ctx context.Context, tableID, orderID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tables SET order_ids = order_ids || to_jsonb($2::text) WHERE id = $1`,
		tableID, orderID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (s *PostgresTableStore) RemoveOrder(ctx context.Context, tableID, orderID string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tables SET order_ids = order_ids - $2 WHERE id = $1`,
		tableID, orderID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
