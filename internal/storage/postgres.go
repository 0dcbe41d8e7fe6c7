package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

// Open connects to Postgres and waits for it to become reachable, so the
// service can start before the database container is ready.
func Open(host, port, user, password, dbname string, logger *logrus.Logger) (*sql.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	for i := 0; i < 30; i++ {
		if err = db.Ping(); err == nil {
			logger.Info("Database connection established")
			return db, nil
		}
		logger.Info("Waiting for database...")
		time.Sleep(2 * time.Second)
	}
	return nil, fmt.Errorf("database not reachable: %w", err)
}

// CreateSchema creates the tables the order core owns. Orders keep their
// document shape: lines and status timestamps are JSONB, and a version
// column guards every update.
func CreateSchema(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			id VARCHAR(64) PRIMARY KEY,
			table_id VARCHAR(64) NOT NULL,
			tenant_id VARCHAR(64) NOT NULL,
			lines JSONB NOT NULL,
			status VARCHAR(20) NOT NULL,
			status_timestamps JSONB NOT NULL DEFAULT '{}',
			payed BOOLEAN NOT NULL DEFAULT false,
			total_price NUMERIC(10,2) NOT NULL DEFAULT 0,
			tips NUMERIC(10,2),
			rated BOOLEAN NOT NULL DEFAULT false,
			is_closed BOOLEAN NOT NULL DEFAULT false,
			comment TEXT NOT NULL DEFAULT '',
			acting_user_id VARCHAR(64) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL,
			version INTEGER NOT NULL DEFAULT 1
		)`,
		`CREATE TABLE IF NOT EXISTS tables (
			id VARCHAR(64) PRIMARY KEY,
			tenant_id VARCHAR(64) NOT NULL,
			number INTEGER NOT NULL,
			order_ids JSONB NOT NULL DEFAULT '[]',
			UNIQUE (tenant_id, number)
		)`,
		`CREATE TABLE IF NOT EXISTS products (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			price NUMERIC(10,2) NOT NULL,
			available BOOLEAN NOT NULL DEFAULT true,
			rate NUMERIC(4,2) NOT NULL DEFAULT 0,
			raters INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS bills (
			tenant_id VARCHAR(64) PRIMARY KEY,
			total_amount NUMERIC(12,2) NOT NULL DEFAULT 0,
			amount_paid NUMERIC(12,2) NOT NULL DEFAULT 0,
			transactions JSONB NOT NULL DEFAULT '[]',
			last_updated TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_table_id ON orders(table_id)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_tenant_created ON orders(tenant_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_user_archived ON orders(acting_user_id) WHERE status = 'archived' AND is_closed = false`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}
