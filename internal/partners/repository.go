package partners

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mini-erp/mini-erp/internal/platform/db"
	"github.com/mini-erp/mini-erp/internal/shared"
)

// Repository persists customers and vendors in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const customerColumns = `id, customer_name, contact_person, email, phone, address, credit_limit, outstanding_balance, is_active, created_at, updated_at`

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Name, &c.ContactPerson, &c.Email, &c.Phone, &c.Address, &c.CreditLimit, &c.OutstandingBalance, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

// ListCustomers returns one page of customers ordered by name and the total match count.
func (r *Repository) ListCustomers(ctx context.Context, f ListFilters) ([]Customer, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM customers WHERE customer_name ILIKE '%' || $1 || '%'`, f.Search).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+customerColumns+` FROM customers
WHERE customer_name ILIKE '%' || $1 || '%' ORDER BY customer_name, id LIMIT $2 OFFSET $3`, f.Search, f.Limit, shared.Offset(f.Page, f.Limit))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

// GetCustomer loads one customer.
func (r *Repository) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	c, err := scanCustomer(r.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id=$1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return Customer{}, shared.NotFound("customer", id)
		}
		return Customer{}, err
	}
	return c, nil
}

// CreateCustomer inserts a customer with a zero outstanding balance.
func (r *Repository) CreateCustomer(ctx context.Context, in CustomerInput) (Customer, error) {
	c, err := scanCustomer(r.pool.QueryRow(ctx, `INSERT INTO customers (customer_name, contact_person, email, phone, address, credit_limit)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING `+customerColumns, in.Name, in.ContactPerson, in.Email, in.Phone, in.Address, in.CreditLimit))
	if err != nil {
		return Customer{}, db.Translate(err)
	}
	return c, nil
}

// UpdateCustomer applies the non-nil fields of patch.
func (r *Repository) UpdateCustomer(ctx context.Context, id int64, p CustomerPatch) (Customer, error) {
	c, err := scanCustomer(r.pool.QueryRow(ctx, `UPDATE customers SET
customer_name = COALESCE($2, customer_name),
contact_person = COALESCE($3, contact_person),
email = COALESCE($4, email),
phone = COALESCE($5, phone),
address = COALESCE($6, address),
credit_limit = COALESCE($7, credit_limit),
is_active = COALESCE($8, is_active),
updated_at = NOW()
WHERE id=$1 RETURNING `+customerColumns, id, p.Name, p.ContactPerson, p.Email, p.Phone, p.Address, p.CreditLimit, p.IsActive))
	if err != nil {
		if db.IsNoRows(err) {
			return Customer{}, shared.NotFound("customer", id)
		}
		return Customer{}, db.Translate(err)
	}
	return c, nil
}

// DeleteCustomer removes a customer without invoices.
func (r *Repository) DeleteCustomer(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM customers WHERE id=$1`, id)
	if err != nil {
		return db.TranslateDelete(err)
	}
	if cmd.RowsAffected() == 0 {
		return shared.NotFound("customer", id)
	}
	return nil
}

const vendorColumns = `id, vendor_name, contact_person, email, phone, address, payment_terms, outstanding_balance, is_active, created_at, updated_at`

func scanVendor(row pgx.Row) (Vendor, error) {
	var v Vendor
	err := row.Scan(&v.ID, &v.Name, &v.ContactPerson, &v.Email, &v.Phone, &v.Address, &v.PaymentTerms, &v.OutstandingBalance, &v.IsActive, &v.CreatedAt, &v.UpdatedAt)
	return v, err
}

// ListVendors returns one page of vendors ordered by name and the total match count.
func (r *Repository) ListVendors(ctx context.Context, f ListFilters) ([]Vendor, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM vendors WHERE vendor_name ILIKE '%' || $1 || '%'`, f.Search).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `SELECT `+vendorColumns+` FROM vendors
WHERE vendor_name ILIKE '%' || $1 || '%' ORDER BY vendor_name, id LIMIT $2 OFFSET $3`, f.Search, f.Limit, shared.Offset(f.Page, f.Limit))
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []Vendor
	for rows.Next() {
		v, err := scanVendor(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, v)
	}
	return out, total, rows.Err()
}

// GetVendor loads one vendor.
func (r *Repository) GetVendor(ctx context.Context, id int64) (Vendor, error) {
	v, err := scanVendor(r.pool.QueryRow(ctx, `SELECT `+vendorColumns+` FROM vendors WHERE id=$1`, id))
	if err != nil {
		if db.IsNoRows(err) {
			return Vendor{}, shared.NotFound("vendor", id)
		}
		return Vendor{}, err
	}
	return v, nil
}

// CreateVendor inserts a vendor with a zero outstanding balance.
func (r *Repository) CreateVendor(ctx context.Context, in VendorInput) (Vendor, error) {
	v, err := scanVendor(r.pool.QueryRow(ctx, `INSERT INTO vendors (vendor_name, contact_person, email, phone, address, payment_terms)
VALUES ($1,$2,$3,$4,$5,$6) RETURNING `+vendorColumns, in.Name, in.ContactPerson, in.Email, in.Phone, in.Address, in.PaymentTerms))
	if err != nil {
		return Vendor{}, db.Translate(err)
	}
	return v, nil
}

// UpdateVendor applies the non-nil fields of patch.
func (r *Repository) UpdateVendor(ctx context.Context, id int64, p VendorPatch) (Vendor, error) {
	v, err := scanVendor(r.pool.QueryRow(ctx, `UPDATE vendors SET
vendor_name = COALESCE($2, vendor_name),
contact_person = COALESCE($3, contact_person),
email = COALESCE($4, email),
phone = COALESCE($5, phone),
address = COALESCE($6, address),
payment_terms = COALESCE($7, payment_terms),
is_active = COALESCE($8, is_active),
updated_at = NOW()
WHERE id=$1 RETURNING `+vendorColumns, id, p.Name, p.ContactPerson, p.Email, p.Phone, p.Address, p.PaymentTerms, p.IsActive))
	if err != nil {
		if db.IsNoRows(err) {
			return Vendor{}, shared.NotFound("vendor", id)
		}
		return Vendor{}, db.Translate(err)
	}
	return v, nil
}

// DeleteVendor removes a vendor.
func (r *Repository) DeleteVendor(ctx context.Context, id int64) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM vendors WHERE id=$1`, id)
	if err != nil {
		return db.TranslateDelete(err)
	}
	if cmd.RowsAffected() == 0 {
		return shared.NotFound("vendor", id)
	}
	return nil
}
