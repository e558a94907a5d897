package session

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/rangoon-shop/rangoon-admin/internal/platform/httpx"
	"github.com/rangoon-shop/rangoon-admin/internal/rbac"
)

// Middleware binds the request's principal to its context when a valid token is
// presented. Anonymous requests pass through; route guards decide what they may do.
func Middleware(store *Store, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := store.Token(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			p, err := store.Lookup(r.Context(), token)
			switch {
			case errors.Is(err, ErrNoSession):
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "session expired or invalid")
				return
			case err != nil:
				logger.Error("session lookup", slog.Any("error", err))
				httpx.Problem(w, http.StatusServiceUnavailable, "Service Unavailable", "session store unavailable")
				return
			}
			next.ServeHTTP(w, r.WithContext(rbac.ContextWithPrincipal(r.Context(), p)))
		})
	}
}
