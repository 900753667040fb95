package ar

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mini-erp/mini-erp/internal/notify"
	"github.com/mini-erp/mini-erp/internal/shared"
)

type rateKey struct{ from, to string }

type datedRate struct {
	effective time.Time
	rate      decimal.Decimal
}

// memoryAR is a TxRepository fake with all-or-nothing commits.
type memoryAR struct {
	mu    sync.Mutex
	state arState
}

type arState struct {
	customers     map[int64]decimal.Decimal
	invoices      map[int64]Invoice
	payments      map[int64][]Payment
	notifications []notify.Notification
	rates         map[rateKey][]datedRate
	claimed       map[string]bool
	projects      map[int64]bool
	nextID        int64
}

func newMemoryAR(customerIDs ...int64) *memoryAR {
	m := &memoryAR{state: arState{
		customers: map[int64]decimal.Decimal{},
		invoices:  map[int64]Invoice{},
		payments:  map[int64][]Payment{},
		rates:     map[rateKey][]datedRate{},
		claimed:   map[string]bool{},
		projects:  map[int64]bool{},
		nextID:    10,
	}}
	for _, id := range customerIDs {
		m.state.customers[id] = decimal.Zero
	}
	return m
}

func (s arState) clone() arState {
	out := s
	out.customers = maps.Clone(s.customers)
	out.invoices = maps.Clone(s.invoices)
	out.payments = make(map[int64][]Payment, len(s.payments))
	for k, v := range s.payments {
		out.payments[k] = slices.Clone(v)
	}
	out.notifications = slices.Clone(s.notifications)
	out.rates = maps.Clone(s.rates)
	out.claimed = maps.Clone(s.claimed)
	out.projects = maps.Clone(s.projects)
	return out
}

func (m *memoryAR) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &memoryARTx{state: m.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

func (m *memoryAR) addRate(from, to string, effective time.Time, rate string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := rateKey{from, to}
	m.state.rates[key] = append(m.state.rates[key], datedRate{effective: effective, rate: decimal.RequireFromString(rate)})
}

func (m *memoryAR) addProject(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.projects[id] = true
}

func (m *memoryAR) outstanding(customerID int64) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.customers[customerID]
}

func (m *memoryAR) invoice(id int64) (Invoice, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.state.invoices[id]
	return inv, ok
}

func (m *memoryAR) paymentCount(invoiceID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.payments[invoiceID])
}

func (m *memoryAR) sentNotifications() []notify.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.state.notifications)
}

type memoryARTx struct {
	state arState
}

func (t *memoryARTx) id() int64 {
	t.state.nextID++
	return t.state.nextID
}

func (t *memoryARTx) LatestRate(_ context.Context, from, to string, asOf time.Time) (decimal.Decimal, bool, error) {
	var best *datedRate
	for _, r := range t.state.rates[rateKey{from, to}] {
		if r.effective.After(asOf) {
			continue
		}
		if best == nil || r.effective.After(best.effective) {
			best = &r
		}
	}
	if best == nil {
		return decimal.Zero, false, nil
	}
	return best.rate, true, nil
}

func (t *memoryARTx) InsertInvoice(_ context.Context, inv Invoice) (Invoice, error) {
	if _, ok := t.state.customers[inv.CustomerID]; !ok {
		return Invoice{}, shared.NewConstraintError(shared.ErrUnknownReference, "fk_invoices_customer", "")
	}
	if inv.ProjectID != nil && !t.state.projects[*inv.ProjectID] {
		return Invoice{}, shared.NewConstraintError(shared.ErrUnknownReference, ProjectConstraint, "")
	}
	for _, existing := range t.state.invoices {
		if existing.Number == inv.Number {
			return Invoice{}, shared.NewConstraintError(shared.ErrConstraintViolation, "uq_invoices_number", inv.Number)
		}
	}
	inv.ID = t.id()
	inv.PaidAmount = decimal.Zero
	inv.Status = StatusPending
	t.state.invoices[inv.ID] = inv
	return inv, nil
}

func (t *memoryARTx) GetInvoice(_ context.Context, id int64, _ bool) (Invoice, error) {
	inv, ok := t.state.invoices[id]
	if !ok {
		return Invoice{}, shared.NotFound("invoice", id)
	}
	return inv, nil
}

func (t *memoryARTx) ListInvoices(_ context.Context, customerID int64) ([]Invoice, error) {
	var out []Invoice
	for _, inv := range t.state.invoices {
		if customerID == 0 || inv.CustomerID == customerID {
			out = append(out, inv)
		}
	}
	slices.SortFunc(out, func(a, b Invoice) int { return cmp.Compare(b.ID, a.ID) })
	return out, nil
}

func (t *memoryARTx) UpdateInvoice(_ context.Context, id int64, patch InvoicePatch) (Invoice, error) {
	inv, ok := t.state.invoices[id]
	if !ok {
		return Invoice{}, shared.NotFound("invoice", id)
	}
	if patch.Status != nil {
		inv.Status = *patch.Status
	}
	if patch.DueDate != nil {
		inv.DueDate = *patch.DueDate
	}
	if patch.Notes != nil {
		inv.Notes = *patch.Notes
	}
	t.state.invoices[id] = inv
	return inv, nil
}

func (t *memoryARTx) SetInvoiceStatus(_ context.Context, id int64, status InvoiceStatus) (Invoice, error) {
	inv, ok := t.state.invoices[id]
	if !ok {
		return Invoice{}, shared.NotFound("invoice", id)
	}
	inv.Status = status
	t.state.invoices[id] = inv
	return inv, nil
}

func (t *memoryARTx) ApplyPayment(_ context.Context, id int64, amount decimal.Decimal, status InvoiceStatus) (Invoice, error) {
	inv, ok := t.state.invoices[id]
	if !ok {
		return Invoice{}, shared.NotFound("invoice", id)
	}
	inv.PaidAmount = inv.PaidAmount.Add(amount)
	inv.Status = status
	t.state.invoices[id] = inv
	return inv, nil
}

func (t *memoryARTx) DeleteInvoice(_ context.Context, id int64) error {
	if _, ok := t.state.invoices[id]; !ok {
		return shared.NotFound("invoice", id)
	}
	delete(t.state.invoices, id)
	delete(t.state.payments, id)
	return nil
}

func (t *memoryARTx) InsertPayment(_ context.Context, p Payment) (Payment, error) {
	p.ID = t.id()
	t.state.payments[p.InvoiceID] = append(t.state.payments[p.InvoiceID], p)
	return p, nil
}

func (t *memoryARTx) ListPayments(_ context.Context, invoiceID int64) ([]Payment, error) {
	return slices.Clone(t.state.payments[invoiceID]), nil
}

func (t *memoryARTx) AdjustCustomerOutstanding(_ context.Context, customerID int64, delta decimal.Decimal) error {
	bal, ok := t.state.customers[customerID]
	if !ok {
		return shared.NotFound("customer", customerID)
	}
	t.state.customers[customerID] = bal.Add(delta)
	return nil
}

func (t *memoryARTx) InsertNotification(_ context.Context, n notify.Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}
	t.state.notifications = append(t.state.notifications, n)
	return nil
}

func (t *memoryARTx) ClaimIdempotencyKey(_ context.Context, module, key string) error {
	if t.state.claimed[module+"/"+key] {
		return shared.ErrDuplicateRequest
	}
	t.state.claimed[module+"/"+key] = true
	return nil
}
