package apperr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Postgres SQLSTATE codes recognised by Classify.
const (
	pgUniqueViolation     = "23505"
	pgNotNullViolation    = "23502"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgInvalidText         = "22P02"
	pgStringTooLong       = "22001"
	pgInvalidDatetime     = "22007"
	pgUndefinedColumn     = "42703"
)

const invalidInputMessage = "Invalid input. Please check your request parameters and try again"

// Classifier turns a low-level failure into an *Error. Implementations must be total.
type Classifier func(err error) *Error

// Classify maps storage and validation failures into the taxonomy. It always returns
// a non-nil *Error; a nil input is treated as an unclassified internal failure.
func Classify(err error) *Error {
	if err == nil {
		return Internal("unknown error")
	}

	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyPg(pgErr)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return Wrap(StatusNotFound, "record not found", err)
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return Wrap(StatusBadRequest, validationMessage(verrs), err)
	}

	var invalid *validator.InvalidValidationError
	if errors.As(err, &invalid) {
		return Wrap(StatusBadRequest, invalidInputMessage, err)
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return Wrap(StatusServiceUnavailable, "request cancelled before storage responded", err)
	}

	msg := err.Error()
	if strings.TrimSpace(msg) == "" {
		msg = "internal server error"
	}
	return Wrap(StatusInternalServerError, msg, err)
}

// ForResource returns a Classifier that names the resource in conflict and not-found messages.
func ForResource(resource string) Classifier {
	return func(err error) *Error {
		classified := Classify(err)
		if classified.cause == nil {
			return classified
		}
		switch classified.Status {
		case StatusConflict:
			return Wrap(StatusConflict, fmt.Sprintf("%s already exists", resource), classified.cause)
		case StatusNotFound:
			return Wrap(StatusNotFound, fmt.Sprintf("%s not found", resource), classified.cause)
		}
		return classified
	}
}

func classifyPg(pgErr *pgconn.PgError) *Error {
	switch pgErr.Code {
	case pgUniqueViolation:
		msg := "duplicate value violates a unique constraint"
		if pgErr.ConstraintName != "" {
			msg = fmt.Sprintf("duplicate value violates unique constraint %q", pgErr.ConstraintName)
		}
		return Wrap(StatusConflict, msg, pgErr)
	case pgNotNullViolation, pgForeignKeyViolation, pgCheckViolation,
		pgInvalidText, pgStringTooLong, pgInvalidDatetime, pgUndefinedColumn:
		return Wrap(StatusBadRequest, invalidInputMessage, pgErr)
	default:
		return Wrap(StatusInternalServerError, pgErr.Message, pgErr)
	}
}

func validationMessage(verrs validator.ValidationErrors) string {
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag()))
	}
	return "validation failed: " + strings.Join(fields, ", ")
}
