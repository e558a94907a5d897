package audithttp

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/rangoon-shop/rangoon-admin/internal/platform/httpx"
	"github.com/rangoon-shop/rangoon-admin/internal/rbac"
)

const rateLimit = 10
const rateWindow = time.Minute

// MountRoutes registers the read-only audit log endpoints and exports.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(rateLimit, rateWindow,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests), "export rate limit exceeded")
		}),
	)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ActionRead, rbac.ResourceAuditLog))
		r.Get("/", h.handleTimeline)
		r.Get("/detail/{id}", h.handleDetail)
		r.Group(func(gr chi.Router) {
			gr.Use(limiter)
			gr.Get("/export.csv", h.handleExportCSV)
			gr.Get("/export.xlsx", h.handleExportXLSX)
		})
	})
}

func rateLimitKey(r *http.Request) (string, error) {
	if p, ok := rbac.PrincipalFromContext(r.Context()); ok {
		if user := strings.TrimSpace(p.UserID); user != "" {
			return "user:" + user, nil
		}
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
