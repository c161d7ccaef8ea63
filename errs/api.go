package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Common error sentinel values
var (
	ErrBadRequest   = errors.New("malformed request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInternal     = errors.New("internal server error")
	ErrCORSBlocked  = errors.New("request blocked by CORS policy")
)

// Kind is the closed set of failure categories the API reports.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnauthorized
	KindCsrfRejected
	KindInvalidArgument
	KindPayloadRejected
	KindNotFound
	KindConfigInvalid
	KindStorageUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindCsrfRejected:
		return "csrf_rejected"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindPayloadRejected:
		return "payload_rejected"
	case KindNotFound:
		return "not_found"
	case KindConfigInvalid:
		return "config_invalid"
	case KindStorageUnavailable:
		return "storage_unavailable"
	default:
		return "internal"
	}
}

type ApiErr struct {
	StatusCode int
	Code       string // machine-readable code, defaults to the Kind name
	err        error
	Details    string // Additional details about the error
	Field      string // Field that caused the error (for validation errors)
	Cause      error  // The underlying cause of the error, never sent to clients
}

func NewApiErr(statusCode int, message string) *ApiErr {
	return &ApiErr{
		StatusCode: statusCode,
		err:        errors.New(message),
	}
}

// implements error interface. this allows us to pass an instance of ApiErr as an argument of type `error`
func (e *ApiErr) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s", e.err.Error(), e.Details)
	}
	return e.err.Error()
}

// GetFullError returns a recursive error message including all causes
func (e *ApiErr) GetFullError() string {
	msg := e.Error()
	if e.Cause != nil {
		var apiErr *ApiErr
		if errors.As(e.Cause, &apiErr) {
			msg = fmt.Sprintf("%s -> %s", msg, apiErr.GetFullError())
		} else {
			msg = fmt.Sprintf("%s -> %s", msg, e.Cause.Error())
		}
	}
	return msg
}

// this function allows us to do the following:
// err := &ApiErr{StatusCode: ..., err: someSentinelError}
// errors.Is(err, someSentinelError) ==> evaluates to true
func (e *ApiErr) Unwrap() error {
	return e.err
}

// Kind reports which taxonomy entry the error belongs to.
func (e *ApiErr) Kind() Kind {
	switch {
	case errors.Is(e.err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(e.err, ErrCsrfRejected):
		return KindCsrfRejected
	case errors.Is(e.err, ErrInvalidArgument):
		return KindInvalidArgument
	case errors.Is(e.err, ErrPayloadRejected):
		return KindPayloadRejected
	case errors.Is(e.err, ErrNotFound):
		return KindNotFound
	case errors.Is(e.err, ErrConfigInvalid):
		return KindConfigInvalid
	case errors.Is(e.err, ErrStorageUnavailable):
		return KindStorageUnavailable
	default:
		return KindUnknown
	}
}

// ResponseCode returns the code sent to clients.
func (e *ApiErr) ResponseCode() string {
	if e.Code != "" {
		return e.Code
	}
	return e.Kind().String()
}

// KindOf classifies any error. Errors that are not an *ApiErr are KindUnknown.
func KindOf(err error) Kind {
	var apiErr *ApiErr
	if errors.As(err, &apiErr) {
		return apiErr.Kind()
	}
	return KindUnknown
}

// Common error constructors with appropriate HTTP status codes
func NewBadRequestError(message string) *ApiErr {
	return &ApiErr{StatusCode: http.StatusBadRequest, err: fmt.Errorf("%s: %w", message, ErrInvalidArgument)}
}

func NewInternalErrorWithCause(message string, cause error) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusInternalServerError,
		err:        errors.New(message),
		Cause:      cause,
	}
}

func NewCORSError(origin string) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusForbidden,
		Code:       "cors_blocked",
		err:        ErrCORSBlocked,
		Details:    fmt.Sprintf("Origin '%s' is not allowed by CORS policy", origin),
	}
}

func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
