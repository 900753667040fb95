package ar

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mini-erp/mini-erp/internal/fx"
	"github.com/mini-erp/mini-erp/internal/notify"
	"github.com/mini-erp/mini-erp/internal/platform/db"
	"github.com/mini-erp/mini-erp/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	LatestRate(ctx context.Context, from, to string, asOf time.Time) (decimal.Decimal, bool, error)
	InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error)
	GetInvoice(ctx context.Context, id int64, forUpdate bool) (Invoice, error)
	ListInvoices(ctx context.Context, customerID int64) ([]Invoice, error)
	UpdateInvoice(ctx context.Context, id int64, patch InvoicePatch) (Invoice, error)
	SetInvoiceStatus(ctx context.Context, id int64, status InvoiceStatus) (Invoice, error)
	ApplyPayment(ctx context.Context, id int64, amount decimal.Decimal, status InvoiceStatus) (Invoice, error)
	DeleteInvoice(ctx context.Context, id int64) error
	InsertPayment(ctx context.Context, p Payment) (Payment, error)
	ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error)
	AdjustCustomerOutstanding(ctx context.Context, customerID int64, delta decimal.Decimal) error
	InsertNotification(ctx context.Context, n notify.Notification) error
	ClaimIdempotencyKey(ctx context.Context, module, key string) error
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("ar repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

func (r *txRepo) LatestRate(ctx context.Context, from, to string, asOf time.Time) (decimal.Decimal, bool, error) {
	return fx.LatestRate(ctx, r.tx, from, to, asOf)
}

const invoiceColumns = `id, invoice_number, customer_id, project_id, invoice_date, due_date, total_amount, tax_amount,
currency, exchange_rate, paid_amount, status, line_items, notes, COALESCE(created_by, 0), created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.Number, &inv.CustomerID, &inv.ProjectID, &inv.InvoiceDate, &inv.DueDate,
		&inv.TotalAmount, &inv.TaxAmount, &inv.Currency, &inv.ExchangeRate, &inv.PaidAmount, &inv.Status,
		&inv.LineItems, &inv.Notes, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

func (r *txRepo) InsertInvoice(ctx context.Context, inv Invoice) (Invoice, error) {
	out, err := scanInvoice(r.tx.QueryRow(ctx, `INSERT INTO invoices (invoice_number, customer_id, project_id, invoice_date, due_date,
total_amount, tax_amount, currency, exchange_rate, paid_amount, status, line_items, notes, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,0,'pending',$10,$11,$12) RETURNING `+invoiceColumns,
		inv.Number, inv.CustomerID, inv.ProjectID, inv.InvoiceDate, inv.DueDate, inv.TotalAmount, inv.TaxAmount,
		inv.Currency, inv.ExchangeRate, inv.LineItems, inv.Notes, nullInt(inv.CreatedBy)))
	if err != nil {
		return Invoice{}, db.Translate(err)
	}
	return out, nil
}

func (r *txRepo) GetInvoice(ctx context.Context, id int64, forUpdate bool) (Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE id=$1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	inv, err := scanInvoice(r.tx.QueryRow(ctx, query, id))
	if err != nil {
		if db.IsNoRows(err) {
			return Invoice{}, shared.NotFound("invoice", id)
		}
		return Invoice{}, err
	}
	return inv, nil
}

func (r *txRepo) ListInvoices(ctx context.Context, customerID int64) ([]Invoice, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+invoiceColumns+` FROM invoices
WHERE ($1::BIGINT = 0 OR customer_id = $1) ORDER BY invoice_date DESC, id DESC`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var invoices []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func (r *txRepo) UpdateInvoice(ctx context.Context, id int64, patch InvoicePatch) (Invoice, error) {
	inv, err := scanInvoice(r.tx.QueryRow(ctx, `UPDATE invoices SET
status = COALESCE($2, status),
due_date = COALESCE($3, due_date),
notes = COALESCE($4, notes),
updated_at = NOW()
WHERE id=$1 RETURNING `+invoiceColumns, id, patch.Status, patch.DueDate, patch.Notes))
	if err != nil {
		if db.IsNoRows(err) {
			return Invoice{}, shared.NotFound("invoice", id)
		}
		return Invoice{}, db.Translate(err)
	}
	return inv, nil
}

func (r *txRepo) SetInvoiceStatus(ctx context.Context, id int64, status InvoiceStatus) (Invoice, error) {
	inv, err := scanInvoice(r.tx.QueryRow(ctx, `UPDATE invoices SET status=$2, updated_at=NOW() WHERE id=$1 RETURNING `+invoiceColumns, id, status))
	if err != nil {
		if db.IsNoRows(err) {
			return Invoice{}, shared.NotFound("invoice", id)
		}
		return Invoice{}, db.Translate(err)
	}
	return inv, nil
}

// ApplyPayment adds amount to paid_amount relative to the stored value.
func (r *txRepo) ApplyPayment(ctx context.Context, id int64, amount decimal.Decimal, status InvoiceStatus) (Invoice, error) {
	inv, err := scanInvoice(r.tx.QueryRow(ctx, `UPDATE invoices SET paid_amount = paid_amount + $2, status=$3, updated_at=NOW()
WHERE id=$1 RETURNING `+invoiceColumns, id, amount, status))
	if err != nil {
		if db.IsNoRows(err) {
			return Invoice{}, shared.NotFound("invoice", id)
		}
		return Invoice{}, db.Translate(err)
	}
	return inv, nil
}

func (r *txRepo) DeleteInvoice(ctx context.Context, id int64) error {
	cmd, err := r.tx.Exec(ctx, `DELETE FROM invoices WHERE id=$1`, id)
	if err != nil {
		return db.TranslateDelete(err)
	}
	if cmd.RowsAffected() == 0 {
		return shared.NotFound("invoice", id)
	}
	return nil
}

func (r *txRepo) InsertPayment(ctx context.Context, p Payment) (Payment, error) {
	err := r.tx.QueryRow(ctx, `INSERT INTO payments (invoice_id, amount, payment_date, payment_method, reference, notes, type, created_by)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id, created_at`,
		p.InvoiceID, p.Amount, p.PaymentDate, p.PaymentMethod, p.Reference, p.Notes, p.Type, nullInt(p.CreatedBy)).
		Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return Payment{}, db.Translate(err)
	}
	return p, nil
}

func (r *txRepo) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, invoice_id, amount, payment_date, payment_method, reference, notes, type, COALESCE(created_by, 0), created_at
FROM payments WHERE invoice_id=$1 ORDER BY payment_date, id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var payments []Payment
	for rows.Next() {
		var p Payment
		if err := rows.Scan(&p.ID, &p.InvoiceID, &p.Amount, &p.PaymentDate, &p.PaymentMethod, &p.Reference, &p.Notes, &p.Type, &p.CreatedBy, &p.CreatedAt); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

func (r *txRepo) AdjustCustomerOutstanding(ctx context.Context, customerID int64, delta decimal.Decimal) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE customers SET outstanding_balance = outstanding_balance + $2, updated_at=NOW() WHERE id=$1`, customerID, delta)
	if err != nil {
		return db.Translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return shared.NotFound("customer", customerID)
	}
	return nil
}

func (r *txRepo) InsertNotification(ctx context.Context, n notify.Notification) error {
	_, err := notify.Insert(ctx, r.tx, n)
	return err
}

func (r *txRepo) ClaimIdempotencyKey(ctx context.Context, module, key string) error {
	return db.ClaimKey(ctx, r.tx, module, key)
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}
