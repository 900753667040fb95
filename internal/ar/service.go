package ar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mini-erp/mini-erp/internal/fx"
	"github.com/mini-erp/mini-erp/internal/notify"
	"github.com/mini-erp/mini-erp/internal/shared"
)

// RepositoryPort defines data access methods for AR.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
}

// ServiceConfig carries receivables defaults.
type ServiceConfig struct {
	BaseCurrency string
}

// Service handles AR business logic.
type Service struct {
	repo   RepositoryPort
	logger *slog.Logger
	base   string
	now    func() time.Time
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, logger *slog.Logger, cfg ServiceConfig) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	base := cfg.BaseCurrency
	if base == "" {
		base = fx.DefaultBaseCurrency
	}
	return &Service{repo: repo, logger: logger, base: base, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) today() time.Time {
	return shared.StartOfDay(s.now())
}

// CreateInvoice stores a pending invoice and adds its total to the customer's
// outstanding balance. Foreign currency invoices capture the latest rate to
// the base currency effective today, or 1 when no rate is known.
func (s *Service) CreateInvoice(ctx context.Context, input CreateInvoiceInput) (Invoice, error) {
	input.Number = strings.TrimSpace(input.Number)
	if err := input.Validate(); err != nil {
		return Invoice{}, err
	}
	currency := s.base
	if input.Currency != "" {
		code, err := fx.NormalizeCurrency(input.Currency)
		if err != nil {
			return Invoice{}, err
		}
		currency = code
	}
	lineItems := input.LineItems
	if len(lineItems) == 0 {
		lineItems = json.RawMessage("[]")
	}
	draft := Invoice{
		Number:       input.Number,
		CustomerID:   input.CustomerID,
		ProjectID:    input.ProjectID,
		InvoiceDate:  shared.StartOfDay(input.InvoiceDate),
		DueDate:      shared.StartOfDay(input.DueDate),
		TotalAmount:  input.TotalAmount,
		TaxAmount:    input.TaxAmount,
		Currency:     currency,
		ExchangeRate: fx.Unity,
		PaidAmount:   decimal.Zero,
		Status:       StatusPending,
		LineItems:    lineItems,
		Notes:        input.Notes,
		CreatedBy:    input.CreatedBy,
	}

	var created Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if currency != s.base {
			rate, ok, err := tx.LatestRate(ctx, currency, s.base, s.today())
			if err != nil {
				return err
			}
			if ok {
				draft.ExchangeRate = rate
			}
		}
		inv, err := tx.InsertInvoice(ctx, draft)
		if err != nil {
			return referenceError(input, err)
		}
		if err := tx.AdjustCustomerOutstanding(ctx, inv.CustomerID, inv.TotalAmount); err != nil {
			return customerError(input.CustomerID, err)
		}
		created = inv
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	s.logger.InfoContext(ctx, "invoice created",
		slog.Int64("invoice_id", created.ID),
		slog.String("number", created.Number),
		slog.String("currency", created.Currency),
		slog.String("exchange_rate", created.ExchangeRate.String()),
	)
	return created, nil
}

func referenceError(input CreateInvoiceInput, err error) error {
	var ce *shared.ConstraintError
	if input.ProjectID != nil && errors.As(err, &ce) && ce.Constraint == ProjectConstraint {
		return fmt.Errorf("%w: project %d", ErrUnknownProject, *input.ProjectID)
	}
	return customerError(input.CustomerID, err)
}

func customerError(customerID int64, err error) error {
	if errors.Is(err, shared.ErrUnknownReference) || errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("%w: customer %d", ErrUnknownCustomer, customerID)
	}
	return err
}

// UpdateInvoice applies the provided fields. A pending invoice whose due date
// has passed is moved to overdue in the same transaction.
func (s *Service) UpdateInvoice(ctx context.Context, id int64, patch InvoicePatch) (Invoice, error) {
	if patch.Status != nil && !patch.Status.Valid() {
		return Invoice{}, shared.Validationf("ar: unknown invoice status %q", *patch.Status)
	}
	if patch.DueDate != nil {
		due := shared.StartOfDay(*patch.DueDate)
		patch.DueDate = &due
	}
	today := s.today()
	var updated Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetInvoice(ctx, id, true); err != nil {
			return err
		}
		inv, err := tx.UpdateInvoice(ctx, id, patch)
		if err != nil {
			return err
		}
		if inv.Status == StatusPending && shared.IsPastDue(inv.DueDate, today) {
			inv, err = tx.SetInvoiceStatus(ctx, id, StatusOverdue)
			if err != nil {
				return err
			}
		}
		updated = inv
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}
	s.logger.InfoContext(ctx, "invoice updated", slog.Int64("invoice_id", id), slog.String("status", string(updated.Status)))
	return updated, nil
}

// DeleteInvoice removes the invoice and takes its unpaid remainder off the
// customer's outstanding balance.
func (s *Service) DeleteInvoice(ctx context.Context, id int64) error {
	var removed Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInvoice(ctx, id, true)
		if err != nil {
			return err
		}
		if err := tx.AdjustCustomerOutstanding(ctx, inv.CustomerID, inv.Outstanding().Neg()); err != nil {
			return err
		}
		if err := tx.DeleteInvoice(ctx, id); err != nil {
			return err
		}
		removed = inv
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "invoice deleted", slog.Int64("invoice_id", id), slog.Int64("customer_id", removed.CustomerID))
	return nil
}

const paymentIdempotencyModule = "ar.payment"

// RecordPayment applies an inflow payment to an invoice. The invoice row is
// locked for the whole transaction so the overpayment check and the update
// see the same paid amount.
func (s *Service) RecordPayment(ctx context.Context, input RecordPaymentInput) (PaymentResult, error) {
	if err := input.Validate(); err != nil {
		return PaymentResult{}, err
	}
	paymentDate := s.today()
	if !input.PaymentDate.IsZero() {
		paymentDate = shared.StartOfDay(input.PaymentDate)
	}
	var result PaymentResult
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if input.IdempotencyKey != "" {
			if err := tx.ClaimIdempotencyKey(ctx, paymentIdempotencyModule, input.IdempotencyKey); err != nil {
				return err
			}
		}
		inv, err := tx.GetInvoice(ctx, input.InvoiceID, true)
		if err != nil {
			return err
		}
		newPaid := inv.PaidAmount.Add(input.Amount)
		if shared.Exceeds(newPaid, inv.TotalAmount) {
			return &OverpaymentError{InvoiceID: inv.ID, Amount: input.Amount, Paid: inv.PaidAmount, Total: inv.TotalAmount}
		}
		payment, err := tx.InsertPayment(ctx, Payment{
			InvoiceID:     inv.ID,
			Amount:        input.Amount,
			PaymentDate:   paymentDate,
			PaymentMethod: input.PaymentMethod,
			Reference:     input.Reference,
			Notes:         input.Notes,
			Type:          PaymentInflow,
			CreatedBy:     input.ActorID,
		})
		if err != nil {
			return err
		}
		status := StatusPartial
		if newPaid.GreaterThanOrEqual(inv.TotalAmount) {
			status = StatusPaid
		}
		updated, err := tx.ApplyPayment(ctx, inv.ID, input.Amount, status)
		if err != nil {
			return err
		}
		if err := tx.AdjustCustomerOutstanding(ctx, inv.CustomerID, input.Amount.Neg()); err != nil {
			return err
		}
		if err := tx.InsertNotification(ctx, paymentNotification(input.ActorID, input.Amount, inv.Number)); err != nil {
			return err
		}
		result = PaymentResult{Payment: payment, Invoice: updated}
		return nil
	})
	if err != nil {
		return PaymentResult{}, err
	}
	s.logger.InfoContext(ctx, "payment recorded",
		slog.Int64("invoice_id", input.InvoiceID),
		slog.Int64("payment_id", result.Payment.ID),
		slog.String("amount", input.Amount.StringFixed(2)),
		slog.String("status", string(result.Invoice.Status)),
	)
	return result, nil
}

func paymentNotification(userID int64, amount decimal.Decimal, number string) notify.Notification {
	return notify.Notification{
		UserID:  userID,
		Title:   "Payment Received",
		Message: fmt.Sprintf("Payment of %s received for invoice #%s", amount.StringFixed(2), number),
		Type:    notify.TypePayment,
	}
}

// GetInvoice loads one invoice with its status evaluated as of today.
func (s *Service) GetInvoice(ctx context.Context, id int64) (Invoice, error) {
	var inv Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		inv, err = tx.GetInvoice(ctx, id, false)
		return err
	})
	if err != nil {
		return Invoice{}, err
	}
	inv.Status = inv.EffectiveStatus(s.today())
	return inv, nil
}

// ListInvoices returns invoices, newest first, with effective statuses.
func (s *Service) ListInvoices(ctx context.Context, filter InvoiceFilter) ([]Invoice, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, shared.Validationf("ar: unknown invoice status %q", filter.Status)
	}
	var invoices []Invoice
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		var err error
		invoices, err = tx.ListInvoices(ctx, filter.CustomerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	today := s.today()
	out := invoices[:0]
	for _, inv := range invoices {
		inv.Status = inv.EffectiveStatus(today)
		if filter.Status != "" && inv.Status != filter.Status {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

// ListPayments returns the payments of an invoice in payment order.
func (s *Service) ListPayments(ctx context.Context, invoiceID int64) ([]Payment, error) {
	var payments []Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetInvoice(ctx, invoiceID, false); err != nil {
			return err
		}
		var err error
		payments, err = tx.ListPayments(ctx, invoiceID)
		return err
	})
	return payments, err
}
