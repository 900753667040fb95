package partners

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mini-erp/mini-erp/internal/platform/httpx"
	"github.com/mini-erp/mini-erp/internal/shared"
)

// Handler exposes customer and vendor maintenance endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers partner routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/customers", func(r chi.Router) {
		r.Get("/", h.listCustomers)
		r.Post("/", h.createCustomer)
		r.Get("/{id}", h.getCustomer)
		r.Patch("/{id}", h.updateCustomer)
		r.Delete("/{id}", h.deleteCustomer)
	})
	r.Route("/vendors", func(r chi.Router) {
		r.Get("/", h.listVendors)
		r.Post("/", h.createVendor)
		r.Get("/{id}", h.getVendor)
		r.Patch("/{id}", h.updateVendor)
		r.Delete("/{id}", h.deleteVendor)
	})
}

type page[T any] struct {
	Data       []T               `json:"data"`
	Pagination shared.Pagination `json:"pagination"`
}

func listFilters(r *http.Request) ListFilters {
	q := r.URL.Query()
	f := ListFilters{Search: q.Get("search")}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	return f
}

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	items, meta, err := h.service.ListCustomers(r.Context(), listFilters(r))
	if err != nil {
		h.fail(w, r, "list customers", err)
		return
	}
	if items == nil {
		items = []Customer{}
	}
	httpx.JSON(w, http.StatusOK, page[Customer]{Data: items, Pagination: meta})
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.GetCustomer(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get customer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var in CustomerInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.CreateCustomer(r.Context(), in)
	if err != nil {
		h.fail(w, r, "create customer", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, c)
}

func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var patch CustomerPatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.RespondError(w, err)
		return
	}
	c, err := h.service.UpdateCustomer(r.Context(), id, patch)
	if err != nil {
		h.fail(w, r, "update customer", err)
		return
	}
	httpx.JSON(w, http.StatusOK, c)
}

func (h *Handler) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteCustomer(r.Context(), id); err != nil {
		h.fail(w, r, "delete customer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listVendors(w http.ResponseWriter, r *http.Request) {
	items, meta, err := h.service.ListVendors(r.Context(), listFilters(r))
	if err != nil {
		h.fail(w, r, "list vendors", err)
		return
	}
	if items == nil {
		items = []Vendor{}
	}
	httpx.JSON(w, http.StatusOK, page[Vendor]{Data: items, Pagination: meta})
}

func (h *Handler) getVendor(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.GetVendor(r.Context(), id)
	if err != nil {
		h.fail(w, r, "get vendor", err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) createVendor(w http.ResponseWriter, r *http.Request) {
	var in VendorInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.CreateVendor(r.Context(), in)
	if err != nil {
		h.fail(w, r, "create vendor", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, v)
}

func (h *Handler) updateVendor(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var patch VendorPatch
	if err := httpx.DecodeJSON(r, &patch); err != nil {
		httpx.RespondError(w, err)
		return
	}
	v, err := h.service.UpdateVendor(r.Context(), id, patch)
	if err != nil {
		h.fail(w, r, "update vendor", err)
		return
	}
	httpx.JSON(w, http.StatusOK, v)
}

func (h *Handler) deleteVendor(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteVendor(r.Context(), id); err != nil {
		h.fail(w, r, "delete vendor", err)
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
