package ar

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mini-erp/mini-erp/internal/shared"
)

// InvoiceStatus enumerates invoice statuses.
type InvoiceStatus string

const (
	StatusPending InvoiceStatus = "pending"
	StatusPartial InvoiceStatus = "partial"
	StatusPaid    InvoiceStatus = "paid"
	StatusOverdue InvoiceStatus = "overdue"
)

// Valid reports whether s is a known status.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPartial, StatusPaid, StatusOverdue:
		return true
	}
	return false
}

// PaymentType distinguishes money received from money paid out.
type PaymentType string

const (
	PaymentInflow  PaymentType = "inflow"
	PaymentOutflow PaymentType = "outflow"
)

// Invoice model.
type Invoice struct {
	ID           int64           `json:"id"`
	Number       string          `json:"invoice_number"`
	CustomerID   int64           `json:"customer_id"`
	ProjectID    *int64          `json:"project_id,omitempty"`
	InvoiceDate  time.Time       `json:"invoice_date"`
	DueDate      time.Time       `json:"due_date"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	TaxAmount    decimal.Decimal `json:"tax_amount"`
	Currency     string          `json:"currency"`
	ExchangeRate decimal.Decimal `json:"exchange_rate"`
	PaidAmount   decimal.Decimal `json:"paid_amount"`
	Status       InvoiceStatus   `json:"status"`
	LineItems    json.RawMessage `json:"line_items"`
	Notes        string          `json:"notes"`
	CreatedBy    int64           `json:"created_by"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// Outstanding is the part of the total not yet paid.
func (inv Invoice) Outstanding() decimal.Decimal {
	return inv.TotalAmount.Sub(inv.PaidAmount)
}

// EffectiveStatus derives the status from the amounts and the due date as of
// today. Stored statuses only change on writes, so reads report this value.
func (inv Invoice) EffectiveStatus(today time.Time) InvoiceStatus {
	status := DeriveStatus(inv.PaidAmount, inv.TotalAmount)
	if status == StatusPaid {
		return StatusPaid
	}
	if shared.IsPastDue(inv.DueDate, today) {
		return StatusOverdue
	}
	return status
}

// DeriveStatus maps paid against total onto pending, partial or paid.
func DeriveStatus(paid, total decimal.Decimal) InvoiceStatus {
	switch {
	case paid.GreaterThanOrEqual(total):
		return StatusPaid
	case paid.IsPositive():
		return StatusPartial
	default:
		return StatusPending
	}
}

// Payment model.
type Payment struct {
	ID            int64           `json:"id"`
	InvoiceID     int64           `json:"invoice_id"`
	Amount        decimal.Decimal `json:"amount"`
	PaymentDate   time.Time       `json:"payment_date"`
	PaymentMethod string          `json:"payment_method"`
	Reference     string          `json:"reference"`
	Notes         string          `json:"notes"`
	Type          PaymentType     `json:"type"`
	CreatedBy     int64           `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
}

// CreateInvoiceInput for creating invoices.
type CreateInvoiceInput struct {
	Number      string
	CustomerID  int64
	ProjectID   *int64
	InvoiceDate time.Time
	DueDate     time.Time
	TotalAmount decimal.Decimal
	TaxAmount   decimal.Decimal
	Currency    string
	LineItems   json.RawMessage
	Notes       string
	CreatedBy   int64
}

// InvoicePatch carries optional invoice changes; nil fields keep their value.
type InvoicePatch struct {
	Status  *InvoiceStatus
	DueDate *time.Time
	Notes   *string
}

// RecordPaymentInput for recording payments against invoices.
type RecordPaymentInput struct {
	InvoiceID     int64
	Amount        decimal.Decimal
	PaymentDate   time.Time
	PaymentMethod string
	Reference     string
	Notes         string
	ActorID       int64

	// IdempotencyKey, when set, makes a retried request fail instead of
	// applying the payment twice.
	IdempotencyKey string
}

// PaymentResult is the stored payment with the invoice after applying it.
type PaymentResult struct {
	Payment Payment `json:"payment"`
	Invoice Invoice `json:"invoice"`
}

// InvoiceFilter narrows ListInvoices.
type InvoiceFilter struct {
	CustomerID int64
	Status     InvoiceStatus
}

// ErrUnknownCustomer indicates an invoice references a customer that does not exist.
var ErrUnknownCustomer = fmt.Errorf("ar: unknown customer: %w", shared.ErrUnknownReference)

// ErrUnknownProject indicates an invoice references a project that does not exist.
var ErrUnknownProject = fmt.Errorf("ar: unknown project: %w", shared.ErrUnknownReference)

// ProjectConstraint names the invoice to project foreign key.
const ProjectConstraint = "fk_invoices_project"

// OverpaymentError reports a payment that would push paid above the total.
type OverpaymentError struct {
	InvoiceID int64
	Amount    decimal.Decimal
	Paid      decimal.Decimal
	Total     decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("ar: invoice %d: %s: paid %s + payment %s > total %s",
		e.InvoiceID, shared.ErrOverpayment, e.Paid.StringFixed(2), e.Amount.StringFixed(2), e.Total.StringFixed(2))
}

func (e *OverpaymentError) Unwrap() error { return shared.ErrOverpayment }

// Validate checks invoice input before storage is touched.
func (in CreateInvoiceInput) Validate() error {
	if strings.TrimSpace(in.Number) == "" {
		return shared.Validationf("ar: invoice number required")
	}
	if in.CustomerID <= 0 {
		return shared.Validationf("ar: customer required")
	}
	if in.ProjectID != nil && *in.ProjectID <= 0 {
		return shared.Validationf("ar: invalid project id")
	}
	if in.InvoiceDate.IsZero() || in.DueDate.IsZero() {
		return shared.Validationf("ar: invoice and due dates required")
	}
	if in.TotalAmount.IsNegative() || in.TaxAmount.IsNegative() {
		return shared.Validationf("ar: amounts must not be negative")
	}
	if !shared.WholeCents(in.TotalAmount) || !shared.WholeCents(in.TaxAmount) {
		return shared.Validationf("ar: amounts must not have fractional cents")
	}
	if len(in.LineItems) > 0 && !json.Valid(in.LineItems) {
		return shared.Validationf("ar: line items must be valid JSON")
	}
	return nil
}

// Validate checks payment input before storage is touched.
func (in RecordPaymentInput) Validate() error {
	if in.InvoiceID <= 0 {
		return shared.Validationf("ar: invoice required")
	}
	if !in.Amount.IsPositive() {
		return shared.Validationf("ar: payment amount must be positive")
	}
	if !shared.WholeCents(in.Amount) {
		return shared.Validationf("ar: payment amount %s has fractional cents", in.Amount)
	}
	if in.ActorID <= 0 {
		return shared.Validationf("ar: actor required")
	}
	return nil
}
