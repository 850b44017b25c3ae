// Package apperr defines the error kinds shared by the generation and deployment pipeline.
//
// Callers wrap a kind with context using fmt.Errorf("%w: ...", apperr.ErrValidation) and test
// for it with errors.Is. The transport maps kinds to HTTP status codes with StatusCode.
package apperr

import (
	"errors"
	"net/http"
)

var (
	// ErrValidation marks malformed or missing input. Never touches storage.
	ErrValidation = errors.New("validation error")
	// ErrAuthorization marks an ownership or role mismatch, checked before any side effect.
	ErrAuthorization = errors.New("authorization error")
	// ErrNotFound marks an absent entity or directory.
	ErrNotFound = errors.New("not found")
	// ErrBuild marks a failed external build step or missing build output.
	ErrBuild = errors.New("build error")
	// ErrStorage marks a filesystem or database write failure.
	ErrStorage = errors.New("storage error")
)

// StatusCode maps an error to the HTTP status the API responds with.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuthorization):
		return http.StatusForbidden
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrBuild):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Kind returns a short machine-readable name for the error's kind.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrAuthorization):
		return "authorization"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrBuild):
		return "build"
	case errors.Is(err, ErrStorage):
		return "storage"
	default:
		return "internal"
	}
}
