// Package reconcile compares the cached balances on accounts and customers
// with the values implied by the ledger and invoice rows, and optionally
// rewrites the cache.
package reconcile

import (
	"time"

	"github.com/shopspring/decimal"
)

// Kind names the cache being checked.
type Kind string

const (
	KindAccount  Kind = "account"
	KindCustomer Kind = "customer"
)

// Balance pairs a cached value with the value recomputed from source rows.
type Balance struct {
	ID       int64
	Label    string
	Cached   decimal.Decimal
	Computed decimal.Decimal
}

// Drift is a balance whose cache disagrees with its source rows.
type Drift struct {
	Kind     Kind            `json:"kind"`
	ID       int64           `json:"id"`
	Label    string          `json:"label"`
	Cached   decimal.Decimal `json:"cached"`
	Computed decimal.Decimal `json:"computed"`
	Diff     decimal.Decimal `json:"diff"`
}

// Options controls a reconciliation run.
type Options struct {
	// Repair rewrites drifted caches to their computed values.
	Repair bool
}

// Report summarises one run.
type Report struct {
	CheckedAccounts  int       `json:"checked_accounts"`
	CheckedCustomers int       `json:"checked_customers"`
	Drifts           []Drift   `json:"drifts"`
	Repaired         int       `json:"repaired"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
}

// Clean reports whether no drift was found.
func (r Report) Clean() bool { return len(r.Drifts) == 0 }

func drifts(kind Kind, balances []Balance) []Drift {
	var out []Drift
	for _, b := range balances {
		if b.Cached.Equal(b.Computed) {
			continue
		}
		out = append(out, Drift{
			Kind:     kind,
			ID:       b.ID,
			Label:    b.Label,
			Cached:   b.Cached,
			Computed: b.Computed,
			Diff:     b.Cached.Sub(b.Computed),
		})
	}
	return out
}
