package projects

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/mini-erp/mini-erp/internal/platform/httpx"
	"github.com/mini-erp/mini-erp/internal/shared"
)

// Handler exposes project maintenance endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers project routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/projects", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Patch("/{id}", h.update)
		r.Delete("/{id}", h.delete)
	})
}

type createRequest struct {
	Name            string          `json:"project_name" validate:"required,max=200"`
	Description     string          `json:"description"`
	CustomerID      *int64          `json:"customer_id" validate:"omitempty,gt=0"`
	StartDate       string          `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate         string          `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Budget          decimal.Decimal `json:"budget"`
	PlannedProgress decimal.Decimal `json:"planned_progress"`
}

type updateRequest struct {
	Name            *string          `json:"project_name" validate:"omitempty,max=200"`
	Description     *string          `json:"description"`
	Status          *string          `json:"status" validate:"omitempty,oneof=planning active on_hold completed cancelled"`
	EndDate         *string          `json:"end_date" validate:"omitempty,datetime=2006-01-02"`
	Budget          *decimal.Decimal `json:"budget"`
	ActualCost      *decimal.Decimal `json:"actual_cost"`
	PlannedProgress *decimal.Decimal `json:"planned_progress"`
	ActualProgress  *decimal.Decimal `json:"actual_progress"`
}

type page struct {
	Data       []Project         `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

func parseDate(field, raw string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s: %v", httpx.ErrBadRequest, field, err)
	}
	return t, nil
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := ListFilters{Status: Status(q.Get("status"))}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	if raw := q.Get("customer_id"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			httpx.RespondError(w, fmt.Errorf("%w: customer_id %q", httpx.ErrBadRequest, raw))
			return
		}
		f.CustomerID = id
	}
	items, meta, err := h.service.List(r.Context(), f)
	if err != nil {
		h.fail(w, r, "list projects", err)
		return
	}
	if items == nil {
		items = []Project{}
	}
	httpx.JSON(w, http.StatusOK, page{Data: items, Pagination: meta})
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get project", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	start, err := parseDate("start_date", req.StartDate)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	in := CreateInput{
		Name:            req.Name,
		Description:     req.Description,
		CustomerID:      req.CustomerID,
		StartDate:       start,
		Budget:          req.Budget,
		PlannedProgress: req.PlannedProgress,
	}
	if req.EndDate != "" {
		end, err := parseDate("end_date", req.EndDate)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		in.EndDate = &end
	}
	in.CreatedBy, _ = shared.ActorFromContext(r.Context())
	p, err := h.service.Create(r.Context(), in)
	if err != nil {
		h.fail(w, r, "create project", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, p)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req updateRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	patch := Patch{
		Name:            req.Name,
		Description:     req.Description,
		Budget:          req.Budget,
		ActualCost:      req.ActualCost,
		PlannedProgress: req.PlannedProgress,
		ActualProgress:  req.ActualProgress,
	}
	if req.Status != nil {
		status := Status(*req.Status)
		patch.Status = &status
	}
	if req.EndDate != nil {
		end, err := parseDate("end_date", *req.EndDate)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		patch.EndDate = &end
	}
	p, err := h.service.Update(r.Context(), id, patch)
	if err != nil {
		h.fail(w, r, "update project", err)
		return
	}
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		h.fail(w, r, "delete project", err)
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
