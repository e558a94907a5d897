package rbac

import (
	"log/slog"
	"net/http"

	"github.com/rangoon-shop/rangoon-admin/internal/platform/httpx"
)

// DecisionObserver receives every authorization outcome of Require.
type DecisionObserver interface {
	ObserveDecision(resource string, allowed bool)
}

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Engine   *Engine
	Logger   *slog.Logger
	Observer DecisionObserver
}

// Require lets the request through only when the current principal may perform
// action on resource. A missing principal is 401; a denial or a blocked user is 403.
func (m Middleware) Require(action Action, resource Resource) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := PrincipalFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
				return
			}
			if principal.Blocked {
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "user is blocked")
				return
			}
			allowed, err := m.Engine.Authorize(r.Context(), principal.EffectiveRole(), action, resource)
			if err != nil {
				m.logger().Error("rbac authorize", slog.String("role", string(principal.EffectiveRole())), slog.Any("error", err))
				httpx.Problem(w, http.StatusInternalServerError, "Internal Server Error", "")
				return
			}
			if m.Observer != nil {
				m.Observer.ObserveDecision(string(resource), allowed)
			}
			if !allowed {
				m.logger().Info("rbac denied",
					slog.String("user", principal.UserID),
					slog.String("action", string(action)),
					slog.String("resource", string(resource)))
				httpx.Problem(w, http.StatusForbidden, "Forbidden", "you do not have permission to "+string(action)+" "+string(resource))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuthenticated rejects requests without a principal.
func (m Middleware) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PrincipalFromContext(r.Context()); !ok {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (m Middleware) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}
