package reconcile

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mini-erp/mini-erp/internal/platform/db"
	"github.com/mini-erp/mini-erp/internal/shared"
)

const accountBalancesSQL = `SELECT a.id, a.account_code, a.balance, COALESCE(SUM(t.debit - t.credit), 0)
FROM accounts a LEFT JOIN transactions t ON t.account_id = a.id
GROUP BY a.id ORDER BY a.id`

const customerBalancesSQL = `SELECT c.id, c.customer_name, c.outstanding_balance, COALESCE(SUM(i.total_amount - i.paid_amount), 0)
FROM customers c LEFT JOIN invoices i ON i.customer_id = c.id
GROUP BY c.id ORDER BY c.id`

// Repository reads and repairs balance caches in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes the locked reads and writes used by a repair.
type TxRepository interface {
	LockAccountBalances(ctx context.Context, ids []int64) ([]Balance, error)
	SetAccountBalance(ctx context.Context, id int64, balance decimal.Decimal) error
	LockCustomerBalances(ctx context.Context, ids []int64) ([]Balance, error)
	SetCustomerOutstanding(ctx context.Context, id int64, balance decimal.Decimal) error
}

// AccountBalances returns every account's cached and recomputed balance.
func (r *Repository) AccountBalances(ctx context.Context) ([]Balance, error) {
	return queryBalances(ctx, r.pool, accountBalancesSQL)
}

// CustomerBalances returns every customer's cached and recomputed outstanding balance.
func (r *Repository) CustomerBalances(ctx context.Context) ([]Balance, error) {
	return queryBalances(ctx, r.pool, customerBalancesSQL)
}

// WithTx wraps callback in a read-committed transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("reconcile repository not initialised")
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

type txRepo struct {
	tx pgx.Tx
}

// LockAccountBalances locks the account rows first so postings wait for the
// repair, then recomputes their balances.
func (r *txRepo) LockAccountBalances(ctx context.Context, ids []int64) ([]Balance, error) {
	if _, err := r.tx.Exec(ctx, `SELECT id FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids); err != nil {
		return nil, err
	}
	return queryBalances(ctx, r.tx, `SELECT a.id, a.account_code, a.balance, COALESCE(SUM(t.debit - t.credit), 0)
FROM accounts a LEFT JOIN transactions t ON t.account_id = a.id
WHERE a.id = ANY($1) GROUP BY a.id ORDER BY a.id`, ids)
}

func (r *txRepo) SetAccountBalance(ctx context.Context, id int64, balance decimal.Decimal) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET balance=$2, updated_at=NOW() WHERE id=$1`, id, balance)
	if err != nil {
		return db.Translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return shared.NotFound("account", id)
	}
	return nil
}

func (r *txRepo) LockCustomerBalances(ctx context.Context, ids []int64) ([]Balance, error) {
	if _, err := r.tx.Exec(ctx, `SELECT id FROM customers WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids); err != nil {
		return nil, err
	}
	return queryBalances(ctx, r.tx, `SELECT c.id, c.customer_name, c.outstanding_balance, COALESCE(SUM(i.total_amount - i.paid_amount), 0)
FROM customers c LEFT JOIN invoices i ON i.customer_id = c.id
WHERE c.id = ANY($1) GROUP BY c.id ORDER BY c.id`, ids)
}

func (r *txRepo) SetCustomerOutstanding(ctx context.Context, id int64, balance decimal.Decimal) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE customers SET outstanding_balance=$2, updated_at=NOW() WHERE id=$1`, id, balance)
	if err != nil {
		return db.Translate(err)
	}
	if cmd.RowsAffected() == 0 {
		return shared.NotFound("customer", id)
	}
	return nil
}

func queryBalances(ctx context.Context, q db.Querier, sql string, args ...any) ([]Balance, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Balance
	for rows.Next() {
		var b Balance
		if err := rows.Scan(&b.ID, &b.Label, &b.Cached, &b.Computed); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
