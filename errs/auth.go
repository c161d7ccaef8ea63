package errs

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	Unauthorized = NewUnauthorizedError("unauthorized - please login first")
)

// Authentication & CSRF Errors
var (
	ErrCsrfRejected       = errors.New("csrf token rejected")
	ErrAdminNotConfigured = fmt.Errorf("admin access is not configured: %w", ErrUnauthorized)
	ErrInvalidAdminKey    = fmt.Errorf("invalid admin key: %w", ErrUnauthorized)
)

func NewUnauthorizedError(message string) *ApiErr {
	return &ApiErr{StatusCode: http.StatusUnauthorized, err: fmt.Errorf("%s: %w", message, ErrUnauthorized)}
}

// Authentication & CSRF Error Constructors
func NewAdminNotConfiguredError() *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusForbidden,
		Code:       "admin_not_configured",
		err:        ErrAdminNotConfigured,
	}
}

func NewInvalidAdminKeyError() *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusUnauthorized,
		err:        ErrInvalidAdminKey,
		Field:      "key",
	}
}

// NewCsrfRejectedError carries the reason (missing, mismatch, expired...) in Details.
func NewCsrfRejectedError(reason string) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusForbidden,
		err:        ErrCsrfRejected,
		Details:    reason,
		Field:      "csrf_token",
	}
}

// Authentication & CSRF Error Type Checkers
func IsCsrfRejected(err error) bool {
	return errors.Is(err, ErrCsrfRejected)
}

func IsAdminNotConfigured(err error) bool {
	return errors.Is(err, ErrAdminNotConfigured)
}
