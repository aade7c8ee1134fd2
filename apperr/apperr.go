// Package apperr defines the API error values returned by services and
// mapped to HTTP responses by the REST layer.
package apperr

import (
	"fmt"
	"net/http"
)

// Error is an error with an HTTP status and a stable machine-readable code.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

// Is matches any *Error with the same code, so errors.Is(err, ErrNotFound)
// holds for every NotFound(...) value.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

var (
	ErrNotFound     = &Error{Status: http.StatusNotFound, Code: "not_found", Message: "not found"}
	ErrConflict     = &Error{Status: http.StatusConflict, Code: "conflict", Message: "conflict"}
	ErrValidation   = &Error{Status: http.StatusBadRequest, Code: "validation", Message: "invalid request"}
	ErrForbidden    = &Error{Status: http.StatusForbidden, Code: "forbidden", Message: "forbidden"}
	ErrUnauthorized = &Error{Status: http.StatusUnauthorized, Code: "unauthorized", Message: "unauthorized"}
)

func with(base *Error, format string, args ...interface{}) *Error {
	return &Error{Status: base.Status, Code: base.Code, Message: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...interface{}) *Error {
	return with(ErrNotFound, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return with(ErrConflict, format, args...)
}

func Validation(format string, args ...interface{}) *Error {
	return with(ErrValidation, format, args...)
}

func Forbidden(format string, args ...interface{}) *Error {
	return with(ErrForbidden, format, args...)
}

func Unauthorized(format string, args ...interface{}) *Error {
	return with(ErrUnauthorized, format, args...)
}
