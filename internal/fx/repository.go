package fx

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mini-erp/mini-erp/internal/platform/db"
)

// LatestRate returns the newest rate for the pair effective on or before asOf.
// The boolean is false when no such rate exists.
func LatestRate(ctx context.Context, q db.Querier, from, to string, asOf time.Time) (decimal.Decimal, bool, error) {
	var rate decimal.Decimal
	err := q.QueryRow(ctx, `SELECT rate FROM exchange_rates
WHERE from_currency=$1 AND to_currency=$2 AND effective_date <= $3
ORDER BY effective_date DESC LIMIT 1`, from, to, asOf).Scan(&rate)
	if err != nil {
		if db.IsNoRows(err) {
			return decimal.Zero, false, nil
		}
		return decimal.Zero, false, fmt.Errorf("fx: latest rate: %w", err)
	}
	return rate, true, nil
}

// Repository persists exchange rates.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Latest looks up a rate outside of any transaction.
func (r *Repository) Latest(ctx context.Context, from, to string, asOf time.Time) (decimal.Decimal, bool, error) {
	return LatestRate(ctx, r.pool, from, to, asOf)
}

// Upsert stores a rate, replacing the value for the same pair and date.
func (r *Repository) Upsert(ctx context.Context, in SetRateInput) (ExchangeRate, error) {
	out := ExchangeRate{From: in.From, To: in.To, Rate: in.Rate, EffectiveDate: in.EffectiveDate}
	err := r.pool.QueryRow(ctx, `INSERT INTO exchange_rates (from_currency, to_currency, rate, effective_date)
VALUES ($1,$2,$3,$4)
ON CONFLICT ON CONSTRAINT uq_exchange_rates_pair_date DO UPDATE SET rate = EXCLUDED.rate
RETURNING id, created_at`, in.From, in.To, in.Rate, in.EffectiveDate).Scan(&out.ID, &out.CreatedAt)
	if err != nil {
		return ExchangeRate{}, db.Translate(err)
	}
	return out, nil
}

// List returns rates for a source currency, newest first.
func (r *Repository) List(ctx context.Context, from string) ([]ExchangeRate, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, from_currency, to_currency, rate, effective_date, created_at
FROM exchange_rates WHERE ($1 = '' OR from_currency = $1) ORDER BY effective_date DESC, id DESC`, from)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var rates []ExchangeRate
	for rows.Next() {
		var rate ExchangeRate
		if err := rows.Scan(&rate.ID, &rate.From, &rate.To, &rate.Rate, &rate.EffectiveDate, &rate.CreatedAt); err != nil {
			return nil, err
		}
		rates = append(rates, rate)
	}
	return rates, rows.Err()
}
