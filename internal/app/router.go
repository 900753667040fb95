package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mini-erp/mini-erp/internal/accounting"
	"github.com/mini-erp/mini-erp/internal/ar"
	"github.com/mini-erp/mini-erp/internal/fx"
	"github.com/mini-erp/mini-erp/internal/notify"
	"github.com/mini-erp/mini-erp/internal/observability"
	"github.com/mini-erp/mini-erp/internal/partners"
	"github.com/mini-erp/mini-erp/internal/platform/httpx"
	"github.com/mini-erp/mini-erp/internal/projects"
	"github.com/mini-erp/mini-erp/jobs"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger            *slog.Logger
	Config            *Config
	AccountingHandler *accounting.Handler
	ARHandler         *ar.Handler
	PartnersHandler   *partners.Handler
	ProjectsHandler   *projects.Handler
	NotifyHandler     *notify.Handler
	FXHandler         *fx.Handler
	JobHandler        *jobs.Handler
	Metrics           *observability.Metrics
	Database          Pinger
}

type healthStatus struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		status := healthStatus{Status: "ok"}
		if params.Database != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := params.Database.Ping(ctx); err != nil {
				status = healthStatus{Status: "degraded", Database: "unreachable"}
				httpx.JSON(w, http.StatusServiceUnavailable, status)
				return
			}
			status.Database = "ok"
		}
		httpx.JSON(w, http.StatusOK, status)
	})
	if params.Metrics != nil {
		r.Handle("/metrics", params.Metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if params.AccountingHandler != nil {
			params.AccountingHandler.MountRoutes(r)
		}
		if params.ARHandler != nil {
			params.ARHandler.MountRoutes(r)
		}
		if params.PartnersHandler != nil {
			params.PartnersHandler.MountRoutes(r)
		}
		if params.ProjectsHandler != nil {
			params.ProjectsHandler.MountRoutes(r)
		}
		if params.NotifyHandler != nil {
			params.NotifyHandler.MountRoutes(r)
		}
		if params.FXHandler != nil {
			params.FXHandler.MountRoutes(r)
		}
	})
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, "Not Found", "no route for "+r.Method+" "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, "Method Not Allowed", r.Method+" not allowed on "+r.URL.Path)
	})
	return r
}
