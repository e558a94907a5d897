package rbac

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/rangoon-shop/rangoon-admin/internal/platform/httpx"
)

// PermissionsHandler exposes the caller's effective permissions so clients can gate UI.
type PermissionsHandler struct {
	logger *slog.Logger
	engine *Engine
	rbac   Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(logger *slog.Logger, engine *Engine, rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{logger: logger, engine: engine, rbac: rbac}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAuthenticated)
		r.Get("/", h.listPermissions)
	})
}

type permissionsView struct {
	Role        Role    `json:"role"`
	Permissions []Grant `json:"permissions"`
}

func (h *PermissionsHandler) listPermissions(w http.ResponseWriter, r *http.Request) {
	principal, _ := PrincipalFromContext(r.Context())
	role := principal.EffectiveRole()
	if err := h.engine.Resolve(r.Context(), role); err != nil {
		h.logger.Error("resolve permissions", slog.String("role", string(role)), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.Data(w, http.StatusOK, permissionsView{Role: role, Permissions: h.engine.EffectivePermissions(role)})
}
