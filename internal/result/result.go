// Package result provides the explicit success/failure value returned by every fallible
// service call.
package result

import (
	"github.com/rangoon-shop/rangoon-admin/internal/apperr"
)

// Result holds either a success value or a classified error, never both.
// The zero value is not valid; build one with Ok or Err.
type Result[T any] struct {
	value T
	err   *apperr.Error
	ok    bool
}

// Ok wraps a success value.
func Ok[T any](value T) Result[T] {
	return Result[T]{value: value, ok: true}
}

// Err wraps a classified failure. A nil error is replaced by an internal error so the
// Err variant is always populated.
func Err[T any](err *apperr.Error) Result[T] {
	if err == nil {
		err = apperr.Internal("nil error passed to result.Err")
	}
	return Result[T]{err: err}
}

// From builds a Result from a conventional (value, error) pair, classifying the error.
func From[T any](value T, err error, classify apperr.Classifier) Result[T] {
	if err != nil {
		if classify == nil {
			classify = apperr.Classify
		}
		return Err[T](classify(err))
	}
	return Ok(value)
}

func (r Result[T]) IsOk() bool  { return r.ok }
func (r Result[T]) IsErr() bool { return !r.ok }

// Error returns the contained error, or nil for Ok.
func (r Result[T]) Error() *apperr.Error {
	if r.ok {
		return nil
	}
	return r.errOrInternal()
}

// Unwrap returns the pair form for callers that prefer ordinary Go error handling.
func (r Result[T]) Unwrap() (T, error) {
	if r.ok {
		return r.value, nil
	}
	var zero T
	return zero, r.errOrInternal()
}

// UnwrapOr returns the success value or fallback. It never panics.
func (r Result[T]) UnwrapOr(fallback T) T {
	if r.ok {
		return r.value
	}
	return fallback
}

// UnwrapOrThrow returns the success value or panics with the contained *apperr.Error.
// Only the outermost layer (a recovering HTTP boundary or main) should call it.
func (r Result[T]) UnwrapOrThrow() T {
	if r.ok {
		return r.value
	}
	panic(r.errOrInternal())
}

// MapErr transforms the error, passing Ok through unchanged.
func (r Result[T]) MapErr(f func(*apperr.Error) *apperr.Error) Result[T] {
	if r.ok {
		return r
	}
	return Err[T](f(r.errOrInternal()))
}

// Match forces both variants to be handled.
func (r Result[T]) Match(onOk func(T), onErr func(*apperr.Error)) {
	if r.ok {
		onOk(r.value)
		return
	}
	onErr(r.errOrInternal())
}

// Map transforms the success value, passing Err through unchanged.
func Map[T, U any](r Result[T], f func(T) U) Result[U] {
	if r.ok {
		return Ok(f(r.value))
	}
	return Err[U](r.errOrInternal())
}

// AndThen chains a fallible step onto a success value.
func AndThen[T, U any](r Result[T], f func(T) Result[U]) Result[U] {
	if r.ok {
		return f(r.value)
	}
	return Err[U](r.errOrInternal())
}

// errOrInternal guards against the zero Result, which carries neither variant.
func (r Result[T]) errOrInternal() *apperr.Error {
	if r.err == nil {
		return apperr.Internal("uninitialised result")
	}
	return r.err
}
