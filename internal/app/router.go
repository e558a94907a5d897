package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rangoon-shop/rangoon-admin/internal/audit"
	"github.com/rangoon-shop/rangoon-admin/internal/observability"
	"github.com/rangoon-shop/rangoon-admin/internal/platform/httpx"
	"github.com/rangoon-shop/rangoon-admin/internal/rbac"
	"github.com/rangoon-shop/rangoon-admin/internal/session"
)

// Mounter is implemented by every handler that owns a route subtree.
type Mounter interface {
	MountRoutes(r chi.Router)
}

// Pinger reports whether a backing store is reachable.
type Pinger func(ctx context.Context) error

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger    *slog.Logger
	Config    *Config
	Sessions  *session.Store
	AuditSink audit.Sink
	Metrics   *observability.Metrics

	BrandHandler       Mounter
	RegionHandler      Mounter
	ProductHandler     Mounter
	AuditHandler       Mounter
	PermissionsHandler *rbac.PermissionsHandler
	JobHandler         Mounter

	// Checks are pinged by /healthz, keyed by dependency name.
	Checks map[string]Pinger
}

// NewRouter constructs the chi.Router with the admin API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:    params.Logger,
		Config:    params.Config,
		Sessions:  params.Sessions,
		AuditSink: params.AuditSink,
		Metrics:   params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", healthz(params.Checks))

	mount(r, "/brands", params.BrandHandler)
	mount(r, "/regions", params.RegionHandler)
	mount(r, "/products", params.ProductHandler)
	mount(r, "/audit-logs", params.AuditHandler)
	mount(r, "/jobs", params.JobHandler)
	if params.PermissionsHandler != nil {
		r.Route("/me/permissions", params.PermissionsHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, http.StatusText(http.StatusNotFound), "no route for "+r.URL.Path)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed), "")
	})
	return r
}

func mount(r chi.Router, prefix string, h Mounter) {
	if h == nil {
		return
	}
	r.Route(prefix, h.MountRoutes)
}

func healthz(checks map[string]Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := http.StatusOK
		report := map[string]string{"status": "ok"}
		for name, ping := range checks {
			if err := ping(ctx); err != nil {
				status = http.StatusServiceUnavailable
				report["status"] = "degraded"
				report[name] = err.Error()
				continue
			}
			report[name] = "ok"
		}
		httpx.JSON(w, status, report)
	}
}
