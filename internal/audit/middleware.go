package audit

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/rangoon-shop/rangoon-admin/internal/rbac"
)

const lateFlushTimeout = 5 * time.Second

// Middleware binds a fresh Trail to every request. Entries a handler staged but did
// not flush are flushed afterwards under the request principal, even when the client
// has gone away.
func Middleware(sink Sink, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, trail := WithTrail(r.Context())
			next.ServeHTTP(w, r.WithContext(ctx))

			pending := trail.Pending()
			if len(pending) == 0 || sink == nil {
				return
			}
			principal, ok := rbac.PrincipalFromContext(r.Context())
			if !ok || principal.UserID == "" {
				logger.Warn("audit entries left unattributed", slog.Int("count", len(pending)), slog.String("path", r.URL.Path))
				return
			}
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), lateFlushTimeout)
			defer cancel()
			if _, err := trail.FlushPending(flushCtx, sink, principal.UserID); err != nil {
				logger.Error("late audit flush", slog.String("path", r.URL.Path), slog.Any("error", err))
			}
		})
	}
}
