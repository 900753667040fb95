package fx

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mini-erp/mini-erp/internal/shared"
)

// RepositoryPort abstracts rate persistence.
type RepositoryPort interface {
	Latest(ctx context.Context, from, to string, asOf time.Time) (decimal.Decimal, bool, error)
	Upsert(ctx context.Context, in SetRateInput) (ExchangeRate, error)
	List(ctx context.Context, from string) ([]ExchangeRate, error)
}

// Service manages exchange rates relative to a base currency.
type Service struct {
	repo RepositoryPort
	base string
	now  func() time.Time
}

// NewService constructs the rate service. An empty base falls back to USD.
func NewService(repo RepositoryPort, base string) *Service {
	if base == "" {
		base = DefaultBaseCurrency
	}
	return &Service{repo: repo, base: base, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Base returns the configured base currency.
func (s *Service) Base() string {
	return s.base
}

// Resolve returns the current rate from the given currency to the base currency,
// or 1 when the currency is the base or no rate has been recorded.
func (s *Service) Resolve(ctx context.Context, from string) (decimal.Decimal, error) {
	code, err := NormalizeCurrency(from)
	if err != nil {
		return decimal.Zero, err
	}
	if code == s.base {
		return Unity, nil
	}
	rate, ok, err := s.repo.Latest(ctx, code, s.base, s.now())
	if err != nil {
		return decimal.Zero, err
	}
	if !ok {
		return Unity, nil
	}
	return rate, nil
}

// SetRate validates and stores a rate. Missing To defaults to the base currency
// and a zero EffectiveDate to today.
func (s *Service) SetRate(ctx context.Context, in SetRateInput) (ExchangeRate, error) {
	from, err := NormalizeCurrency(in.From)
	if err != nil {
		return ExchangeRate{}, err
	}
	to := s.base
	if in.To != "" {
		if to, err = NormalizeCurrency(in.To); err != nil {
			return ExchangeRate{}, err
		}
	}
	if from == to {
		return ExchangeRate{}, shared.Validationf("rate pair %s/%s must differ", from, to)
	}
	if !in.Rate.IsPositive() {
		return ExchangeRate{}, shared.Validationf("rate must be positive")
	}
	date := in.EffectiveDate
	if date.IsZero() {
		date = s.now()
	}
	return s.repo.Upsert(ctx, SetRateInput{
		From:          from,
		To:            to,
		Rate:          in.Rate,
		EffectiveDate: shared.StartOfDay(date),
	})
}

// ListRates returns stored rates, optionally filtered by source currency.
func (s *Service) ListRates(ctx context.Context, from string) ([]ExchangeRate, error) {
	if from != "" {
		code, err := NormalizeCurrency(from)
		if err != nil {
			return nil, err
		}
		from = code
	}
	return s.repo.List(ctx, from)
}
