package fx

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mini-erp/mini-erp/internal/platform/httpx"
)

// Handler exposes exchange rate endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers rate routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/exchange-rates", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.set)
		r.Get("/resolve/{currency}", h.resolve)
	})
}

type setRateRequest struct {
	From          string          `json:"from_currency" validate:"required,len=3"`
	To            string          `json:"to_currency" validate:"omitempty,len=3"`
	Rate          decimal.Decimal `json:"rate"`
	EffectiveDate string          `json:"effective_date" validate:"omitempty,datetime=2006-01-02"`
}

func (h *Handler) set(w http.ResponseWriter, r *http.Request) {
	var req setRateRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	in := SetRateInput{From: req.From, To: req.To, Rate: req.Rate}
	if req.EffectiveDate != "" {
		date, err := time.Parse(time.DateOnly, req.EffectiveDate)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: effective_date: %v", httpx.ErrBadRequest, err))
			return
		}
		in.EffectiveDate = date
	}
	rate, err := h.service.SetRate(r.Context(), in)
	if err != nil {
		h.fail(w, r, "set exchange rate", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rate)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	rates, err := h.service.ListRates(r.Context(), r.URL.Query().Get("from"))
	if err != nil {
		h.fail(w, r, "list exchange rates", err)
		return
	}
	if rates == nil {
		rates = []ExchangeRate{}
	}
	httpx.JSON(w, http.StatusOK, rates)
}

func (h *Handler) resolve(w http.ResponseWriter, r *http.Request) {
	code, err := NormalizeCurrency(chi.URLParam(r, "currency"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rate, err := h.service.Resolve(r.Context(), code)
	if err != nil {
		h.fail(w, r, "resolve exchange rate", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"from_currency": code, "to_currency": h.service.Base(), "rate": rate})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if status, _ := httpx.StatusFor(err); status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), op+" failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
