// Package apperrors defines the error kinds shared by every LinguaFlow module.
// Callers match them with errors.Is; constructors wrap them with context.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound is returned when an id is unknown to a repository or store
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is returned for out-of-range input or malformed settings
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrPermissionDenied is returned when notification permission was refused
	ErrPermissionDenied = errors.New("permission denied")
	// ErrStorageExhausted is returned when all offline download slots are taken
	ErrStorageExhausted = errors.New("storage exhausted")
)

// NotFound reports an unknown id of the given resource kind
func NotFound(resource, id string) error {
	return fmt.Errorf("%s %q: %w", resource, id, ErrNotFound)
}

// Invalid reports an invalid argument
func Invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidArgument)
}

// PermissionDenied reports a refused permission on the given platform
func PermissionDenied(platform string) error {
	return fmt.Errorf("%s notifications: %w", platform, ErrPermissionDenied)
}

// StorageExhausted reports that the limit of stored items was reached
func StorageExhausted(limit int) error {
	return fmt.Errorf("limit of %d downloads reached: %w", limit, ErrStorageExhausted)
}

// HTTPStatus maps an error to the response status used by the API
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrStorageExhausted):
		return http.StatusInsufficientStorage
	default:
		return http.StatusInternalServerError
	}
}
