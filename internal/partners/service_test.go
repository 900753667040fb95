package partners

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mini-erp/mini-erp/internal/shared"
)

type memoryPartners struct {
	mu        sync.Mutex
	customers []Customer
	vendors   []Vendor
	invoiced  map[int64]bool
	nextID    int64
}

func newMemoryPartners() *memoryPartners {
	return &memoryPartners{invoiced: map[int64]bool{}}
}

func pageOf[T any](items []T, f ListFilters) []T {
	start := (f.Page - 1) * f.Limit
	if start >= len(items) {
		return nil
	}
	return items[start:min(start+f.Limit, len(items))]
}

func (m *memoryPartners) ListCustomers(_ context.Context, f ListFilters) ([]Customer, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matches []Customer
	for _, c := range m.customers {
		if strings.Contains(strings.ToLower(c.Name), strings.ToLower(f.Search)) {
			matches = append(matches, c)
		}
	}
	slices.SortFunc(matches, func(a, b Customer) int { return strings.Compare(a.Name, b.Name) })
	return pageOf(matches, f), len(matches), nil
}

func (m *memoryPartners) GetCustomer(_ context.Context, id int64) (Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.customers {
		if c.ID == id {
			return c, nil
		}
	}
	return Customer{}, shared.NotFound("customer", id)
}

func (m *memoryPartners) CreateCustomer(_ context.Context, in CustomerInput) (Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	c := Customer{ID: m.nextID, Name: in.Name, ContactPerson: in.ContactPerson, Email: in.Email,
		Phone: in.Phone, Address: in.Address, CreditLimit: in.CreditLimit, OutstandingBalance: decimal.Zero, IsActive: true}
	m.customers = append(m.customers, c)
	return c, nil
}

func (m *memoryPartners) UpdateCustomer(_ context.Context, id int64, p CustomerPatch) (Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, c := range m.customers {
		if c.ID != id {
			continue
		}
		if p.Name != nil {
			c.Name = *p.Name
		}
		if p.Email != nil {
			c.Email = *p.Email
		}
		if p.CreditLimit != nil {
			c.CreditLimit = *p.CreditLimit
		}
		if p.IsActive != nil {
			c.IsActive = *p.IsActive
		}
		m.customers[i] = c
		return c, nil
	}
	return Customer{}, shared.NotFound("customer", id)
}

func (m *memoryPartners) DeleteCustomer(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.invoiced[id] {
		return shared.NewConstraintError(shared.ErrConstraintViolation, "fk_invoices_customer", "customer has invoices")
	}
	idx := slices.IndexFunc(m.customers, func(c Customer) bool { return c.ID == id })
	if idx < 0 {
		return shared.NotFound("customer", id)
	}
	m.customers = slices.Delete(m.customers, idx, idx+1)
	return nil
}

func (m *memoryPartners) ListVendors(_ context.Context, f ListFilters) ([]Vendor, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matches []Vendor
	for _, v := range m.vendors {
		if strings.Contains(strings.ToLower(v.Name), strings.ToLower(f.Search)) {
			matches = append(matches, v)
		}
	}
	slices.SortFunc(matches, func(a, b Vendor) int { return strings.Compare(a.Name, b.Name) })
	return pageOf(matches, f), len(matches), nil
}

func (m *memoryPartners) GetVendor(_ context.Context, id int64) (Vendor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, v := range m.vendors {
		if v.ID == id {
			return v, nil
		}
	}
	return Vendor{}, shared.NotFound("vendor", id)
}

func (m *memoryPartners) CreateVendor(_ context.Context, in VendorInput) (Vendor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	v := Vendor{ID: m.nextID, Name: in.Name, Email: in.Email, PaymentTerms: in.PaymentTerms, IsActive: true}
	m.vendors = append(m.vendors, v)
	return v, nil
}

func (m *memoryPartners) UpdateVendor(_ context.Context, id int64, p VendorPatch) (Vendor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, v := range m.vendors {
		if v.ID != id {
			continue
		}
		if p.Name != nil {
			v.Name = *p.Name
		}
		if p.PaymentTerms != nil {
			v.PaymentTerms = *p.PaymentTerms
		}
		m.vendors[i] = v
		return v, nil
	}
	return Vendor{}, shared.NotFound("vendor", id)
}

func (m *memoryPartners) DeleteVendor(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := slices.IndexFunc(m.vendors, func(v Vendor) bool { return v.ID == id })
	if idx < 0 {
		return shared.NotFound("vendor", id)
	}
	m.vendors = slices.Delete(m.vendors, idx, idx+1)
	return nil
}

func newTestService() (*Service, *memoryPartners) {
	repo := newMemoryPartners()
	return NewService(repo, slog.New(slog.NewTextHandler(io.Discard, nil))), repo
}

func TestCreateCustomerValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	cases := []struct {
		name  string
		input CustomerInput
		field string
	}{
		{name: "missing name", input: CustomerInput{Name: "   "}, field: "customer_name"},
		{name: "bad email", input: CustomerInput{Name: "Acme", Email: "not-an-email"}, field: "email"},
		{name: "negative credit", input: CustomerInput{Name: "Acme", CreditLimit: decimal.NewFromInt(-1)}, field: "credit_limit"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateCustomer(ctx, tc.input)
			require.ErrorIs(t, err, shared.ErrValidation)
			require.Contains(t, err.Error(), tc.field)
		})
	}
}

func TestCustomerLifecycle(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	acme, err := svc.CreateCustomer(ctx, CustomerInput{Name: " Acme ", Email: "ap@acme.test", CreditLimit: decimal.NewFromInt(5000)})
	require.NoError(t, err)
	require.Equal(t, "Acme", acme.Name)
	require.True(t, acme.OutstandingBalance.IsZero())
	_, err = svc.CreateCustomer(ctx, CustomerInput{Name: "Beta"})
	require.NoError(t, err)

	name := "Acme Corp"
	inactive := false
	updated, err := svc.UpdateCustomer(ctx, acme.ID, CustomerPatch{Name: &name, IsActive: &inactive})
	require.NoError(t, err)
	require.Equal(t, "Acme Corp", updated.Name)
	require.False(t, updated.IsActive)
	require.Equal(t, "ap@acme.test", updated.Email)

	bad := "nope"
	_, err = svc.UpdateCustomer(ctx, acme.ID, CustomerPatch{Email: &bad})
	require.ErrorIs(t, err, shared.ErrValidation)

	repo.invoiced[acme.ID] = true
	require.ErrorIs(t, svc.DeleteCustomer(ctx, acme.ID), shared.ErrConstraintViolation)
	repo.invoiced[acme.ID] = false
	require.NoError(t, svc.DeleteCustomer(ctx, acme.ID))

	_, err = svc.GetCustomer(ctx, acme.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
	_, err = svc.GetCustomer(ctx, 0)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestListCustomersPaginates(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	for _, name := range []string{"Delta", "alpha", "Charlie", "Bravo", "Alpine"} {
		_, err := svc.CreateCustomer(ctx, CustomerInput{Name: name})
		require.NoError(t, err)
	}

	items, meta, err := svc.ListCustomers(ctx, ListFilters{Limit: 2, Page: 2})
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, shared.Pagination{Page: 2, PerPage: 2, Total: 5, TotalPages: 3}, meta)

	items, meta, err = svc.ListCustomers(ctx, ListFilters{Search: " alp ", Limit: 500})
	require.NoError(t, err)
	require.Equal(t, 50, meta.PerPage)
	require.Len(t, items, 2)
}

func TestVendorLifecycle(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.CreateVendor(ctx, VendorInput{})
	require.ErrorIs(t, err, shared.ErrValidation)

	v, err := svc.CreateVendor(ctx, VendorInput{Name: "Supplies Ltd", PaymentTerms: "NET30"})
	require.NoError(t, err)
	terms := "NET45"
	v, err = svc.UpdateVendor(ctx, v.ID, VendorPatch{PaymentTerms: &terms})
	require.NoError(t, err)
	require.Equal(t, "NET45", v.PaymentTerms)
	require.NoError(t, svc.DeleteVendor(ctx, v.ID))
	require.ErrorIs(t, svc.DeleteVendor(ctx, v.ID), shared.ErrNotFound)
}

func TestHandlerCustomerRoutes(t *testing.T) {
	svc, repo := newTestService()
	r := chi.NewRouter()
	NewHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), svc).MountRoutes(r)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(method, path, strings.NewReader(body)))
		return rec
	}

	rec := do(http.MethodPost, "/customers", `{"customer_name":"Acme","credit_limit":"1000.50"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.Contains(t, rec.Body.String(), `"credit_limit":"1000.5"`)

	rec = do(http.MethodPost, "/customers", `{"email":"x"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(http.MethodGet, "/customers?search=ac", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"total":1`)

	repo.invoiced[1] = true
	rec = do(http.MethodDelete, "/customers/1", "")
	require.Equal(t, http.StatusConflict, rec.Code)

	rec = do(http.MethodGet, "/vendors", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"data":[]`)

	rec = do(http.MethodGet, "/vendors/abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
