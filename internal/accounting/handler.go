package accounting

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mini-erp/mini-erp/internal/platform/httpx"
	"github.com/mini-erp/mini-erp/internal/shared"
)

// Handler wires ledger endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers HTTP routes for the ledger module.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/accounts", func(r chi.Router) {
		r.Get("/", h.listAccounts)
		r.Post("/", h.createAccount)
		r.Get("/{id}", h.getAccount)
		r.Patch("/{id}", h.updateAccount)
		r.Delete("/{id}", h.deleteAccount)
	})
	r.Route("/journal-entries", func(r chi.Router) {
		r.Get("/", h.listJournals)
		r.Post("/", h.postJournal)
		r.Get("/{id}", h.getJournal)
		r.Delete("/{id}", h.deleteJournal)
		r.Post("/{id}/approve", h.approveJournal)
		r.Post("/{id}/reverse", h.reverseJournal)
	})
}

type lineRequest struct {
	AccountID   int64           `json:"account_id" validate:"required,gt=0"`
	Debit       decimal.Decimal `json:"debit"`
	Credit      decimal.Decimal `json:"credit"`
	Description string          `json:"description"`
}

type postJournalRequest struct {
	EntryDate    string        `json:"entry_date" validate:"required,datetime=2006-01-02"`
	Description  string        `json:"description"`
	Reference    string        `json:"reference"`
	Transactions []lineRequest `json:"transactions" validate:"dive"`
}

type reverseRequest struct {
	Date        string `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Description string `json:"description"`
}

type createAccountRequest struct {
	Code     string `json:"account_code" validate:"required,max=32"`
	Name     string `json:"account_name" validate:"required"`
	Type     string `json:"account_type" validate:"required,oneof=Asset Liability Equity Revenue Expense"`
	ParentID *int64 `json:"parent_account_id" validate:"omitempty,gt=0"`
	Currency string `json:"currency" validate:"omitempty,len=3"`
}

type updateAccountRequest struct {
	Name     *string `json:"account_name" validate:"omitempty,min=1"`
	Type     *string `json:"account_type" validate:"omitempty,oneof=Asset Liability Equity Revenue Expense"`
	IsActive *bool   `json:"is_active"`
}

func (h *Handler) postJournal(w http.ResponseWriter, r *http.Request) {
	var req postJournalRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	date, err := time.Parse(time.DateOnly, req.EntryDate)
	if err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: entry_date: %v", httpx.ErrBadRequest, err))
		return
	}
	actorID, _ := shared.ActorFromContext(r.Context())
	input := PostingInput{
		Date:        date,
		Description: req.Description,
		Reference:   req.Reference,
		CreatedBy:   actorID,
		Lines:       make([]PostingLineInput, 0, len(req.Transactions)),
	}
	for _, line := range req.Transactions {
		input.Lines = append(input.Lines, PostingLineInput{
			AccountID:   line.AccountID,
			Debit:       line.Debit,
			Credit:      line.Credit,
			Description: line.Description,
		})
	}
	result, err := h.service.PostJournalEntry(r.Context(), input)
	if err != nil {
		h.fail(w, r, "post journal entry", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) approveJournal(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actorID, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, fmt.Errorf("%w: approver required", httpx.ErrBadRequest))
		return
	}
	entry, err := h.service.ApproveJournalEntry(r.Context(), id, actorID)
	if err != nil {
		h.fail(w, r, "approve journal entry", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) reverseJournal(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req reverseRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeAndValidate(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	actorID, _ := shared.ActorFromContext(r.Context())
	input := ReverseInput{EntryID: id, ActorID: actorID, Description: req.Description}
	if req.Date != "" {
		date, err := time.Parse(time.DateOnly, req.Date)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: date: %v", httpx.ErrBadRequest, err))
			return
		}
		input.Date = &date
	}
	result, err := h.service.ReverseJournalEntry(r.Context(), input)
	if err != nil {
		h.fail(w, r, "reverse journal entry", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) getJournal(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.GetJournalEntry(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get journal entry", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) listJournals(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.ListJournalEntries(r.Context())
	if err != nil {
		h.fail(w, r, "list journal entries", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) deleteJournal(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteJournalEntry(r.Context(), id); err != nil {
		h.fail(w, r, "delete journal entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.ListAccounts(r.Context())
	if err != nil {
		h.fail(w, r, "list accounts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, accounts)
}

func (h *Handler) getAccount(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	account, err := h.service.GetAccount(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) createAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	account, err := h.service.CreateAccount(r.Context(), CreateAccountInput{
		Code:     req.Code,
		Name:     req.Name,
		Type:     AccountType(req.Type),
		ParentID: req.ParentID,
		Currency: req.Currency,
	})
	if err != nil {
		h.fail(w, r, "create account", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, account)
}

func (h *Handler) updateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateAccountRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	patch := AccountPatch{Name: req.Name, IsActive: req.IsActive}
	if req.Type != nil {
		t := AccountType(*req.Type)
		patch.Type = &t
	}
	account, err := h.service.UpdateAccount(r.Context(), id, patch)
	if err != nil {
		h.fail(w, r, "update account", err)
		return
	}
	httpx.JSON(w, http.StatusOK, account)
}

func (h *Handler) deleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteAccount(r.Context(), id); err != nil {
		h.fail(w, r, "delete account", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if status, _ := httpx.StatusFor(err); status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
