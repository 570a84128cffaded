package finance

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema creates the ledger tables. payments.order_id carries the unique
// index backing the exactly-once settlement guard.
const schema = `
CREATE TABLE IF NOT EXISTS payments (
	id          UUID PRIMARY KEY,
	order_id    TEXT NOT NULL,
	order_seq   BIGINT NOT NULL,
	amount      NUMERIC(12,2) NOT NULL,
	method      TEXT NOT NULL,
	fee         NUMERIC(12,2) NOT NULL,
	net_amount  NUMERIC(12,2) NOT NULL,
	status      TEXT NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE UNIQUE INDEX IF NOT EXISTS payments_order_id_key ON payments (order_id);

CREATE TABLE IF NOT EXISTS financial_records (
	id          UUID PRIMARY KEY,
	kind        TEXT NOT NULL CHECK (kind IN ('income','expense')),
	category    TEXT NOT NULL,
	amount      NUMERIC(12,2) NOT NULL,
	order_id    TEXT,
	payment_id  UUID REFERENCES payments(id),
	description TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS sales_samples (
	id          UUID PRIMARY KEY,
	order_id    TEXT NOT NULL,
	product     TEXT NOT NULL,
	qty         INTEGER NOT NULL,
	unit_price  NUMERIC(12,2) NOT NULL,
	subtotal    NUMERIC(12,2) NOT NULL,
	sold_at     TIMESTAMPTZ NOT NULL
);
`

// EnsureSchema creates the ledger tables when missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("finance: ensure schema: %w", err)
	}
	return nil
}
