package notify

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/mini-erp/mini-erp/internal/platform/httpx"
	"github.com/mini-erp/mini-erp/internal/shared"
)

// Handler serves the notification inbox of the calling user.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers notification routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/notifications", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/unread-count", h.unreadCount)
		r.Post("/read-all", h.markAllRead)
		r.Post("/{id}/read", h.markRead)
		r.Delete("/{id}", h.delete)
	})
}

type createRequest struct {
	UserID  int64  `json:"user_id" validate:"required,gt=0"`
	Title   string `json:"title" validate:"required,max=255"`
	Message string `json:"message" validate:"required"`
	Type    string `json:"type" validate:"omitempty,oneof=info payment warning"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	actorID, _ := shared.ActorFromContext(r.Context())
	n, err := h.service.Create(r.Context(), actorID, Notification{
		UserID: req.UserID, Title: req.Title, Message: req.Message, Type: Type(req.Type),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, n)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	userID, _ := shared.ActorFromContext(r.Context())
	if err := h.service.Delete(r.Context(), userID, id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.ActorFromContext(r.Context())
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := h.service.ListForUser(r.Context(), userID, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if items == nil {
		items = []Notification{}
	}
	httpx.JSON(w, http.StatusOK, items)
}

func (h *Handler) unreadCount(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.ActorFromContext(r.Context())
	count, err := h.service.UnreadCount(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	userID, _ := shared.ActorFromContext(r.Context())
	if err := h.service.MarkRead(r.Context(), userID, id); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	userID, _ := shared.ActorFromContext(r.Context())
	n, err := h.service.MarkAllRead(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"updated": n})
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if status, _ := httpx.StatusFor(err); status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "notification request failed", slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
