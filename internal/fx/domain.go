// Package fx resolves exchange rates against the base currency.
package fx

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"

	"github.com/mini-erp/mini-erp/internal/shared"
)

// DefaultBaseCurrency is used when no base currency is configured.
const DefaultBaseCurrency = "USD"

// ExchangeRate converts one unit of From into To, effective from EffectiveDate.
type ExchangeRate struct {
	ID            int64           `json:"id"`
	From          string          `json:"from_currency"`
	To            string          `json:"to_currency"`
	Rate          decimal.Decimal `json:"rate"`
	EffectiveDate time.Time       `json:"effective_date"`
	CreatedAt     time.Time       `json:"created_at"`
}

// SetRateInput describes a rate to store.
type SetRateInput struct {
	From          string
	To            string
	Rate          decimal.Decimal
	EffectiveDate time.Time
}

// NormalizeCurrency upper-cases and validates an ISO 4217 code.
func NormalizeCurrency(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	unit, err := currency.ParseISO(code)
	if err != nil {
		return "", shared.Validationf("unknown currency %q", code)
	}
	return unit.String(), nil
}

// Unity is the rate used when an amount is already in the base currency.
var Unity = decimal.NewFromInt(1)
