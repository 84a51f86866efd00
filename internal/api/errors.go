// Package api implements the REST client for the booking backend.  The
// backend owns all authoritative state (seat locks, bookings, payments,
// coupon validity); this package only moves payloads across the wire
// and maps failures onto sentinel errors the rest of the client can
// branch on with errors.Is.
package api

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthorized is returned when the backend rejects the access
// token.  Callers should re-authenticate rather than retry.
var ErrUnauthorized = errors.New("unauthorized")

// ErrNotFound is returned when the requested resource does not exist,
// e.g. a showtime id that has been removed from the catalog.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an operation cannot proceed because of
// conflicting state, such as locking a seat another user already holds.
var ErrConflict = errors.New("conflict")

// ErrUnavailable is returned for transport failures and 5xx responses.
// These are the only failures worth retrying, and retry is always
// user-initiated in this client.
var ErrUnavailable = errors.New("backend unavailable")

// APIError carries the backend-provided failure message alongside the
// HTTP status so the UI can show the server's reason verbatim when one
// exists.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.Status)
}

// Unwrap maps the HTTP status onto the package sentinels so callers
// can use errors.Is without inspecting status codes themselves.
func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized:
		return ErrUnauthorized
	case e.Status == http.StatusNotFound:
		return ErrNotFound
	case e.Status == http.StatusConflict:
		return ErrConflict
	case e.Status >= 500:
		return ErrUnavailable
	}
	return nil
}
