package errs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrConfigInvalid      = errors.New("configuration invalid")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrStorageTimeout     = fmt.Errorf("storage timeout: %w", ErrStorageUnavailable)
)

func NewNotFound(entity string) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusNotFound,
		err:        fmt.Errorf("%s %w", entity, ErrNotFound),
	}
}

// NewConfigInvalidError reports a document that failed shape validation before save.
func NewConfigInvalidError(reason string) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusInternalServerError,
		err:        ErrConfigInvalid,
		Details:    reason,
	}
}

// NewStorageError wraps a backend failure. Deadline errors become the transient timeout variant.
func NewStorageError(operation string, cause error) *ApiErr {
	if errors.Is(cause, context.DeadlineExceeded) {
		return &ApiErr{
			StatusCode: http.StatusServiceUnavailable,
			err:        ErrStorageTimeout,
			Details:    fmt.Sprintf("Timed out during %s", operation),
			Cause:      cause,
		}
	}
	return &ApiErr{
		StatusCode: http.StatusServiceUnavailable,
		err:        ErrStorageUnavailable,
		Details:    fmt.Sprintf("Failed to %s", operation),
		Cause:      cause,
	}
}

func IsConfigInvalid(err error) bool {
	return errors.Is(err, ErrConfigInvalid)
}

func IsStorageUnavailable(err error) bool {
	return errors.Is(err, ErrStorageUnavailable)
}

func IsStorageTimeout(err error) bool {
	return errors.Is(err, ErrStorageTimeout)
}
