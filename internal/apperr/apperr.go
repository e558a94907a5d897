// Package apperr defines the closed error taxonomy returned by every service call.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Status is a taxonomy kind expressed as its numeric status code.
type Status int

// Known statuses. The set is closed; Classify never produces anything else.
const (
	StatusBadRequest          Status = http.StatusBadRequest
	StatusUnauthorized        Status = http.StatusUnauthorized
	StatusForbidden           Status = http.StatusForbidden
	StatusNotFound            Status = http.StatusNotFound
	StatusConflict            Status = http.StatusConflict
	StatusInternalServerError Status = http.StatusInternalServerError
	StatusServiceUnavailable  Status = http.StatusServiceUnavailable
)

// Title returns the short human label for the status.
func (s Status) Title() string {
	switch s {
	case StatusBadRequest:
		return "Bad Request"
	case StatusUnauthorized:
		return "Unauthorized"
	case StatusForbidden:
		return "Forbidden"
	case StatusNotFound:
		return "Not Found"
	case StatusConflict:
		return "Conflict"
	case StatusServiceUnavailable:
		return "Service Unavailable"
	default:
		return "Internal Server Error"
	}
}

// Error is a classified, status-bearing failure. It is immutable once built.
type Error struct {
	Status  Status
	Message string
	cause   error
}

// New builds an Error with the given status and message.
func New(status Status, message string) *Error {
	return &Error{Status: normalize(status), Message: message}
}

// Newf builds an Error with a formatted message.
func Newf(status Status, format string, args ...any) *Error {
	return New(status, fmt.Sprintf(format, args...))
}

// Wrap builds an Error that keeps cause reachable through errors.Unwrap.
func Wrap(status Status, message string, cause error) *Error {
	return &Error{Status: normalize(status), Message: message, cause: cause}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%d %s: %s", int(e.Status), e.Status.Title(), e.Message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Is matches any *Error carrying the same status, so errors.Is(err, apperr.NotFound("")) works.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) || e == nil || other == nil {
		return false
	}
	return e.Status == other.Status
}

// HTTPStatus returns the carried status as a plain int.
func (e *Error) HTTPStatus() int {
	if e == nil {
		return http.StatusInternalServerError
	}
	return int(e.Status)
}

func BadRequest(message string) *Error   { return New(StatusBadRequest, message) }
func Unauthorized(message string) *Error { return New(StatusUnauthorized, message) }
func Forbidden(message string) *Error    { return New(StatusForbidden, message) }
func NotFound(message string) *Error     { return New(StatusNotFound, message) }
func Conflict(message string) *Error     { return New(StatusConflict, message) }
func Internal(message string) *Error     { return New(StatusInternalServerError, message) }

// Unavailable marks a capability that is intentionally not implemented for a resource.
func Unavailable(message string) *Error { return New(StatusServiceUnavailable, message) }

func normalize(s Status) Status {
	switch s {
	case StatusBadRequest, StatusUnauthorized, StatusForbidden, StatusNotFound,
		StatusConflict, StatusInternalServerError, StatusServiceUnavailable:
		return s
	default:
		return StatusInternalServerError
	}
}
