package ar

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mini-erp/mini-erp/internal/platform/httpx"
	"github.com/mini-erp/mini-erp/internal/shared"
)

// IdempotencyHeader carries the client's retry key for payment requests.
const IdempotencyHeader = "Idempotency-Key"

// Handler manages AR endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers AR routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", h.listInvoices)
		r.Post("/", h.createInvoice)
		r.Get("/{id}", h.getInvoice)
		r.Patch("/{id}", h.updateInvoice)
		r.Delete("/{id}", h.deleteInvoice)
		r.Get("/{id}/payments", h.listPayments)
		r.Post("/{id}/payments", h.recordPayment)
	})
}

type createInvoiceRequest struct {
	Number      string          `json:"invoice_number" validate:"required,max=64"`
	CustomerID  int64           `json:"customer_id" validate:"required,gt=0"`
	ProjectID   *int64          `json:"project_id" validate:"omitempty,gt=0"`
	InvoiceDate string          `json:"invoice_date" validate:"required,datetime=2006-01-02"`
	DueDate     string          `json:"due_date" validate:"required,datetime=2006-01-02"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	Currency    string          `json:"currency" validate:"omitempty,len=3"`
	LineItems   json.RawMessage `json:"line_items"`
	Notes       string          `json:"notes"`
}

type updateInvoiceRequest struct {
	Status  *string `json:"status" validate:"omitempty,oneof=pending partial paid overdue"`
	DueDate *string `json:"due_date" validate:"omitempty,datetime=2006-01-02"`
	Notes   *string `json:"notes"`
}

type paymentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentDate   string          `json:"payment_date" validate:"omitempty,datetime=2006-01-02"`
	PaymentMethod string          `json:"payment_method" validate:"max=32"`
	Reference     string          `json:"reference"`
	Notes         string          `json:"notes"`
}

func parseDate(field, raw string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", httpx.ErrBadRequest, field, err)
	}
	return t, nil
}

func (h *Handler) createInvoice(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	invoiceDate, err := parseDate("invoice_date", req.InvoiceDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	dueDate, err := parseDate("due_date", req.DueDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actorID, _ := shared.ActorFromContext(r.Context())
	inv, err := h.service.CreateInvoice(r.Context(), CreateInvoiceInput{
		Number:      req.Number,
		CustomerID:  req.CustomerID,
		ProjectID:   req.ProjectID,
		InvoiceDate: invoiceDate,
		DueDate:     dueDate,
		TotalAmount: req.TotalAmount,
		TaxAmount:   req.TaxAmount,
		Currency:    req.Currency,
		LineItems:   req.LineItems,
		Notes:       req.Notes,
		CreatedBy:   actorID,
	})
	if err != nil {
		h.fail(w, r, "create invoice", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) updateInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateInvoiceRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	patch := InvoicePatch{Notes: req.Notes}
	if req.Status != nil {
		status := InvoiceStatus(*req.Status)
		patch.Status = &status
	}
	if req.DueDate != nil {
		due, err := parseDate("due_date", *req.DueDate)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		patch.DueDate = &due
	}
	inv, err := h.service.UpdateInvoice(r.Context(), id, patch)
	if err != nil {
		h.fail(w, r, "update invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) deleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteInvoice(r.Context(), id); err != nil {
		h.fail(w, r, "delete invoice", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getInvoice(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	inv, err := h.service.GetInvoice(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get invoice", err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) listInvoices(w http.ResponseWriter, r *http.Request) {
	filter := InvoiceFilter{Status: InvoiceStatus(r.URL.Query().Get("status"))}
	if raw := r.URL.Query().Get("customer_id"); raw != "" {
		customerID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: customer_id %q", httpx.ErrBadRequest, raw))
			return
		}
		filter.CustomerID = customerID
	}
	invoices, err := h.service.ListInvoices(r.Context(), filter)
	if err != nil {
		h.fail(w, r, "list invoices", err)
		return
	}
	if invoices == nil {
		invoices = []Invoice{}
	}
	httpx.JSON(w, http.StatusOK, invoices)
}

func (h *Handler) recordPayment(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req paymentRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input := RecordPaymentInput{
		InvoiceID:      id,
		Amount:         req.Amount,
		PaymentMethod:  req.PaymentMethod,
		Reference:      req.Reference,
		Notes:          req.Notes,
		IdempotencyKey: strings.TrimSpace(r.Header.Get(IdempotencyHeader)),
	}
	input.ActorID, _ = shared.ActorFromContext(r.Context())
	if req.PaymentDate != "" {
		if input.PaymentDate, err = parseDate("payment_date", req.PaymentDate); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	result, err := h.service.RecordPayment(r.Context(), input)
	if err != nil {
		h.fail(w, r, "record payment", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	payments, err := h.service.ListPayments(r.Context(), id)
	if err != nil {
		h.fail(w, r, "list payments", err)
		return
	}
	if payments == nil {
		payments = []Payment{}
	}
	httpx.JSON(w, http.StatusOK, payments)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if status, _ := httpx.StatusFor(err); status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
