package httpx

import (
	"errors"
	"net/http"
)

// Sentinel errors shared by gateway handlers.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrRateLimited  = errors.New("too many requests")
	ErrUpstream     = errors.New("upstream unavailable")
)

var statusFor = []struct {
	err    error
	status int
}{
	{ErrNotFound, http.StatusNotFound},
	{ErrValidation, http.StatusBadRequest},
	{ErrForbidden, http.StatusForbidden},
	{ErrUnauthorized, http.StatusUnauthorized},
	{ErrConflict, http.StatusConflict},
	{ErrRateLimited, http.StatusTooManyRequests},
	{ErrUpstream, http.StatusBadGateway},
}

// StatusFor returns the HTTP status matching err, or 500.
func StatusFor(err error) int {
	for _, entry := range statusFor {
		if errors.Is(err, entry.err) {
			return entry.status
		}
	}
	return http.StatusInternalServerError
}

// RespondError maps err to a problem response. Unknown errors are reported
// without detail.
func RespondError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	detail := ""
	if status != http.StatusInternalServerError {
		detail = err.Error()
	}
	Problem(w, status, http.StatusText(status), detail)
}
