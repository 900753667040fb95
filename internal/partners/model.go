// Package partners maintains the customers and vendors the ledger bills and pays.
package partners

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer represents a customer entity. OutstandingBalance is maintained by
// invoice and payment operations and never written from here.
type Customer struct {
	ID                 int64           `json:"id"`
	Name               string          `json:"customer_name"`
	ContactPerson      string          `json:"contact_person"`
	Email              string          `json:"email"`
	Phone              string          `json:"phone"`
	Address            string          `json:"address"`
	CreditLimit        decimal.Decimal `json:"credit_limit"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	IsActive           bool            `json:"is_active"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Vendor represents a vendor entity.
type Vendor struct {
	ID                 int64           `json:"id"`
	Name               string          `json:"vendor_name"`
	ContactPerson      string          `json:"contact_person"`
	Email              string          `json:"email"`
	Phone              string          `json:"phone"`
	Address            string          `json:"address"`
	PaymentTerms       string          `json:"payment_terms"`
	OutstandingBalance decimal.Decimal `json:"outstanding_balance"`
	IsActive           bool            `json:"is_active"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// CustomerInput carries the fields of a new customer.
type CustomerInput struct {
	Name          string          `json:"customer_name" validate:"required,max=200"`
	ContactPerson string          `json:"contact_person" validate:"max=200"`
	Email         string          `json:"email" validate:"omitempty,email"`
	Phone         string          `json:"phone" validate:"max=50"`
	Address       string          `json:"address"`
	CreditLimit   decimal.Decimal `json:"credit_limit"`
}

// CustomerPatch carries optional customer changes; nil fields keep their value.
type CustomerPatch struct {
	Name          *string          `json:"customer_name" validate:"omitempty,min=1,max=200"`
	ContactPerson *string          `json:"contact_person" validate:"omitempty,max=200"`
	Email         *string          `json:"email" validate:"omitempty,email"`
	Phone         *string          `json:"phone" validate:"omitempty,max=50"`
	Address       *string          `json:"address"`
	CreditLimit   *decimal.Decimal `json:"credit_limit"`
	IsActive      *bool            `json:"is_active"`
}

// VendorInput carries the fields of a new vendor.
type VendorInput struct {
	Name          string `json:"vendor_name" validate:"required,max=200"`
	ContactPerson string `json:"contact_person" validate:"max=200"`
	Email         string `json:"email" validate:"omitempty,email"`
	Phone         string `json:"phone" validate:"max=50"`
	Address       string `json:"address"`
	PaymentTerms  string `json:"payment_terms" validate:"max=64"`
}

// VendorPatch carries optional vendor changes; nil fields keep their value.
type VendorPatch struct {
	Name          *string `json:"vendor_name" validate:"omitempty,min=1,max=200"`
	ContactPerson *string `json:"contact_person" validate:"omitempty,max=200"`
	Email         *string `json:"email" validate:"omitempty,email"`
	Phone         *string `json:"phone" validate:"omitempty,max=50"`
	Address       *string `json:"address"`
	PaymentTerms  *string `json:"payment_terms" validate:"omitempty,max=64"`
	IsActive      *bool   `json:"is_active"`
}

// ListFilters narrows list queries.
type ListFilters struct {
	Search string
	Page   int
	Limit  int
}

func (f ListFilters) normalize() ListFilters {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 || f.Limit > 200 {
		f.Limit = 50
	}
	return f
}
