package finance

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/comanda-pos/comanda-pos/internal/platform/db"
	"github.com/comanda-pos/comanda-pos/internal/shared"
)

// ErrPaymentExists signals the order was already settled; callers treat it
// as a successful no-op.
var ErrPaymentExists = errors.New("finance: payment already recorded for order")

// Repository persists the ledger. The production implementation is
// PostgreSQL backed; services are tested against a mock.
type Repository interface {
	GetPaymentByOrder(ctx context.Context, orderID string) (*Payment, error)
	CreatePayment(ctx context.Context, p Payment) error
	RefundPayment(ctx context.Context, paymentID string, rec FinancialRecord) error
	InsertRecord(ctx context.Context, rec FinancialRecord) error
	InsertSample(ctx context.Context, s SalesSample) error
	ListPayments(ctx context.Context) ([]Payment, error)
	ListRecords(ctx context.Context) ([]FinancialRecord, error)
}

type pgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs the PostgreSQL ledger repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &pgRepository{pool: pool}
}

func (r *pgRepository) GetPaymentByOrder(ctx context.Context, orderID string) (*Payment, error) {
	const query = `
		SELECT id, order_id, order_seq, amount, method, fee, net_amount, status, created_at
		FROM payments WHERE order_id = $1`
	var p Payment
	err := r.pool.QueryRow(ctx, query, orderID).Scan(
		&p.ID, &p.OrderID, &p.OrderSeq, &p.Amount, &p.Method, &p.Fee,
		&p.NetAmount, &p.Status, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("finance: get payment: %w", err)
	}
	return &p, nil
}

// CreatePayment inserts the payment row. A unique violation on order_id
// maps to ErrPaymentExists so a concurrent double-settle degrades to a
// no-op instead of a duplicate ledger entry.
func (r *pgRepository) CreatePayment(ctx context.Context, p Payment) error {
	const query = `
		INSERT INTO payments (id, order_id, order_seq, amount, method, fee, net_amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.pool.Exec(ctx, query,
		p.ID, p.OrderID, p.OrderSeq, p.Amount, p.Method, p.Fee, p.NetAmount, p.Status, p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrPaymentExists
		}
		return fmt.Errorf("finance: create payment: %w", err)
	}
	return nil
}

// RefundPayment flips the payment status and appends the compensating
// record in one transaction, so the ledger never shows a refunded payment
// without its expense row.
func (r *pgRepository) RefundPayment(ctx context.Context, paymentID string, rec FinancialRecord) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx,
			`UPDATE payments SET status = $1 WHERE id = $2`, PaymentRefunded, paymentID)
		if err != nil {
			return fmt.Errorf("finance: refund payment: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		const insert = `
			INSERT INTO financial_records (id, kind, category, amount, order_id, payment_id, description, created_at)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, '')::uuid, $7, $8)`
		if _, err := tx.Exec(ctx, insert,
			rec.ID, rec.Kind, rec.Category, rec.Amount, rec.OrderID, rec.PaymentID,
			rec.Description, rec.CreatedAt); err != nil {
			return fmt.Errorf("finance: refund record: %w", err)
		}
		return nil
	})
}

func (r *pgRepository) InsertRecord(ctx context.Context, rec FinancialRecord) error {
	const query = `
		INSERT INTO financial_records (id, kind, category, amount, order_id, payment_id, description, created_at)
		VALUES ($1, $2, $3, $4, NULLIF($5, ''), NULLIF($6, '')::uuid, $7, $8)`
	_, err := r.pool.Exec(ctx, query,
		rec.ID, rec.Kind, rec.Category, rec.Amount, rec.OrderID, rec.PaymentID,
		rec.Description, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("finance: insert record: %w", err)
	}
	return nil
}

func (r *pgRepository) InsertSample(ctx context.Context, s SalesSample) error {
	const query = `
		INSERT INTO sales_samples (id, order_id, product, qty, unit_price, subtotal, sold_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.pool.Exec(ctx, query,
		s.ID, s.OrderID, s.Product, s.Qty, s.UnitPrice, s.Subtotal, s.SoldAt)
	if err != nil {
		return fmt.Errorf("finance: insert sample: %w", err)
	}
	return nil
}

func (r *pgRepository) ListPayments(ctx context.Context) ([]Payment, error) {
	const query = `
		SELECT id, order_id, order_seq, amount, method, fee, net_amount, status, created_at
		FROM payments ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("finance: list payments: %w", err)
	}
	defer rows.Close()

	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.OrderID, &p.OrderSeq, &p.Amount, &p.Method,
			&p.Fee, &p.NetAmount, &p.Status, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *pgRepository) ListRecords(ctx context.Context) ([]FinancialRecord, error) {
	const query = `
		SELECT id, kind, category, amount, COALESCE(order_id, ''), COALESCE(payment_id::text, ''), description, created_at
		FROM financial_records ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("finance: list records: %w", err)
	}
	defer rows.Close()

	var records []FinancialRecord
	for rows.Next() {
		var rec FinancialRecord
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.Category, &rec.Amount,
			&rec.OrderID, &rec.PaymentID, &rec.Description, &rec.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
