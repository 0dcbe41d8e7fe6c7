package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"github.com/dinetab/dinetab-backend/pkg/models"
)

const orderColumns = `id, table_id, tenant_id, lines, status, status_timestamps,
	payed, total_price, tips, rated, is_closed, comment, acting_user_id, created_at, version`

type PostgresOrderStore struct {
	db     *sql.DB
	logger *logrus.Logger
}

func NewPostgresOrderStore(db *sql.DB, logger *logrus.Logger) *PostgresOrderStore {
	return &PostgresOrderStore{db: db, logger: logger}
}

func (s *PostgresOrderStore) Create(ctx context.Context, order *models.Order) error {
	lines, err := json.Marshal(order.Lines)
	if err != nil {
		return fmt.Errorf("marshal lines: %w", err)
	}
	timestamps, err := json.Marshal(order.StatusTimestamps)
	if err != nil {
		return fmt.Errorf("marshal status timestamps: %w", err)
	}

	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err = s.db.ExecContext(ctx, query,
		order.ID, order.TableID, order.TenantID, lines, order.Status, timestamps,
		order.Payed, order.TotalPrice, order.Tips, order.Rated, order.IsClosed,
		order.Comment, order.ActingUserID, order.CreatedAt, order.Version)
	return err
}

func (s *PostgresOrderStore) GetByID(ctx context.Context, id string) (*models.Order, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	return scanOrder(row)
}

func (s *PostgresOrderStore) ListByTable(ctx context.Context, tableID string, exclude ...models.OrderStatus) ([]*models.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE table_id = $1 AND status <> ALL($2)
		 ORDER BY created_at DESC`,
		tableID, pq.Array(statusStrings(exclude)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (s *PostgresOrderStore) ListByTenantFIFO(ctx context.Context, tenantID string, exclude ...models.OrderStatus) ([]*models.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE tenant_id = $1 AND status <> ALL($2)
		 ORDER BY created_at ASC`,
		tenantID, pq.Array(statusStrings(exclude)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (s *PostgresOrderStore) ListByTenantStatus(ctx context.Context, tenantID string, status models.OrderStatus) ([]*models.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE tenant_id = $1 AND status = $2
		 ORDER BY created_at ASC`,
		tenantID, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (s *PostgresOrderStore) Update(ctx context.Context, order *models.Order) error {
	lines, err := json.Marshal(order.Lines)
	if err != nil {
		return fmt.Errorf("marshal lines: %w", err)
	}
	timestamps, err := json.Marshal(order.StatusTimestamps)
	if err != nil {
		return fmt.Errorf("marshal status timestamps: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE orders
		SET table_id = $3, lines = $4, status = $5, status_timestamps = $6,
		    payed = $7, total_price = $8, tips = $9, rated = $10,
		    is_closed = $11, comment = $12, acting_user_id = $13,
		    version = version + 1
		WHERE id = $1 AND version = $2`,
		order.ID, order.Version, order.TableID, lines, order.Status, timestamps,
		order.Payed, order.TotalPrice, order.Tips, order.Rated, order.IsClosed,
		order.Comment, order.ActingUserID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		// Distinguish a stale version from a vanished order.
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, order.ID).Scan(&exists); err != nil {
			return err
		}
		if exists {
			return ErrVersionConflict
		}
		return ErrNotFound
	}
	order.Version++
	return nil
}

func (s *PostgresOrderStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM orders WHERE id = $1`, id)
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

func (s *PostgresOrderStore) MarkPaid(ctx context.Context, id, actingUserID string) (*models.Order, error) {
	// Conditional single-statement update: the payed=false guard makes
	// repeated confirmations no-ops, and paying out each line keeps the
	// payed flag consistent with per-line paid quantities.
	row := s.db.QueryRowContext(ctx, `
		UPDATE orders
		SET payed = true,
		    lines = COALESCE(
		        (SELECT jsonb_agg(jsonb_set(line, '{paid_quantity}', line->'quantity'))
		         FROM jsonb_array_elements(lines) AS line),
		        '[]'::jsonb),
		    acting_user_id = $2,
		    version = version + 1
		WHERE id = $1 AND payed = false
		RETURNING `+orderColumns,
		id, actingUserID)

	order, err := scanOrder(row)
	if err == ErrNotFound {
		var exists bool
		if qerr := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); qerr != nil {
			return nil, qerr
		}
		if exists {
			return nil, ErrAlreadyPaid
		}
		return nil, ErrNotFound
	}
	return order, err
}

func (s *PostgresOrderStore) CountUnpaidByTable(ctx context.Context, tableID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM orders
		 WHERE table_id = $1 AND payed = false AND status <> $2`,
		tableID, string(models.StatusArchived)).Scan(&count)
	return count, err
}

func (s *PostgresOrderStore) ArchiveTableOrders(ctx context.Context, tableID, actingUserID string, now time.Time) ([]*models.Order, error) {
	ts, err := json.Marshal(now)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		UPDATE orders
		SET status = $3,
		    status_timestamps = CASE
		        WHEN status_timestamps ? $3 THEN status_timestamps
		        ELSE jsonb_set(status_timestamps, ARRAY[$3], $4::jsonb)
		    END,
		    acting_user_id = $2,
		    version = version + 1
		WHERE table_id = $1 AND status <> $3
		RETURNING `+orderColumns,
		tableID, actingUserID, string(models.StatusArchived), ts)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (s *PostgresOrderStore) ListArchivedOpenByUser(ctx context.Context, userID string) ([]*models.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+orderColumns+` FROM orders
		 WHERE acting_user_id = $1 AND status = $2 AND is_closed = false
		 ORDER BY created_at ASC`,
		userID, string(models.StatusArchived))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanOrders(rows)
}

func (s *PostgresOrderStore) CloseOrders(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE orders SET is_closed = true, version = version + 1 WHERE id = ANY($1)`,
		pq.Array(ids))
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	order := &models.Order{}
	var lines, timestamps []byte
	var tips sql.NullFloat64

	err := row.Scan(
		&order.ID, &order.TableID, &order.TenantID, &lines, &order.Status, &timestamps,
		&order.Payed, &order.TotalPrice, &tips, &order.Rated, &order.IsClosed,
		&order.Comment, &order.ActingUserID, &order.CreatedAt, &order.Version)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(lines, &order.Lines); err != nil {
		return nil, fmt.Errorf("unmarshal lines: %w", err)
	}
	if err := json.Unmarshal(timestamps, &order.StatusTimestamps); err != nil {
		return nil, fmt.Errorf("unmarshal status timestamps: %w", err)
	}
	if tips.Valid {
		order.Tips = &tips.Float64
	}
	return order, nil
}

func scanOrders(rows *sql.Rows) ([]*models.Order, error) {
	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return orders, rows.Err()
}

func statusStrings(statuses []models.OrderStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}
