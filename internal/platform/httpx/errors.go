// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/rangoon-shop/rangoon-admin/internal/apperr"
)

// RespondError classifies err and writes it as an RFC7807 problem.
func RespondError(w http.ResponseWriter, err error) {
	RespondAppError(w, apperr.Classify(err))
}

// RespondAppError writes a classified error. Internal errors never leak their message.
func RespondAppError(w http.ResponseWriter, err *apperr.Error) {
	if err == nil {
		err = apperr.Internal("unknown error")
	}
	detail := err.Message
	if err.Status == apperr.StatusInternalServerError {
		detail = ""
	}
	Problem(w, err.HTTPStatus(), err.Status.Title(), detail)
}

// Recoverer turns panics carrying an *apperr.Error (raised by result.UnwrapOrThrow)
// into problem responses. Any other panic is re-raised for the outer recoverer.
func Recoverer(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				err, ok := rec.(error)
				var appErr *apperr.Error
				if !ok || !errors.As(err, &appErr) {
					panic(rec)
				}
				if logger != nil {
					logger.Warn("request aborted", slog.String("path", r.URL.Path), slog.Any("error", appErr))
				}
				RespondAppError(w, appErr)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
