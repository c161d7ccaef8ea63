package errs

import (
	"errors"
	"fmt"
	"net/http"
)

// Request & Input-Validation Errors
var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrPayloadRejected  = errors.New("payload rejected")
	ErrMalformedPayload = fmt.Errorf("malformed payload: %w", ErrInvalidArgument)
)

// Constraints an upload can violate.
const (
	ConstraintSize    = "size"
	ConstraintType    = "type"
	ConstraintContent = "content"
	ConstraintMalware = "malware"
)

// Request & Input-Validation Error Constructors
func NewInvalidArgumentError(fieldName string, reason string) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusBadRequest,
		err:        ErrInvalidArgument,
		Details:    fmt.Sprintf("Invalid field %s: %s", fieldName, reason),
		Field:      fieldName,
	}
}

func NewMissingRequiredFieldError(fieldName string) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusBadRequest,
		err:        ErrInvalidArgument,
		Details:    fmt.Sprintf("Missing required field: %s", fieldName),
		Field:      fieldName,
	}
}

func NewMalformedPayloadError(payloadType string, cause error) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusBadRequest,
		err:        ErrMalformedPayload,
		Details:    fmt.Sprintf("Malformed %s payload", payloadType),
		Cause:      cause,
		Field:      "payload",
	}
}

// NewPayloadRejectedError names the violated upload constraint in Field.
func NewPayloadRejectedError(constraint string, details string) *ApiErr {
	status := http.StatusUnsupportedMediaType
	switch constraint {
	case ConstraintSize:
		status = http.StatusRequestEntityTooLarge
	case ConstraintMalware:
		status = http.StatusUnprocessableEntity
	}
	return &ApiErr{
		StatusCode: status,
		err:        ErrPayloadRejected,
		Details:    details,
		Field:      constraint,
	}
}

func NewMaxBodySizeExceededError(maxSize int64) *ApiErr {
	return NewPayloadRejectedError(ConstraintSize, fmt.Sprintf("Request body exceeds the maximum allowed size of %d bytes", maxSize))
}

// Request & Input-Validation Error Type Checkers
func IsInvalidArgument(err error) bool {
	return errors.Is(err, ErrInvalidArgument)
}

func IsPayloadRejected(err error) bool {
	return errors.Is(err, ErrPayloadRejected)
}

// RejectedConstraint returns the constraint named by a PayloadRejected error.
func RejectedConstraint(err error) string {
	var apiErr *ApiErr
	if errors.As(err, &apiErr) && errors.Is(apiErr, ErrPayloadRejected) {
		return apiErr.Field
	}
	return ""
}

// NewRateLimitedError is returned when a client exceeds a per-IP request budget.
func NewRateLimitedError(details string) *ApiErr {
	return &ApiErr{
		StatusCode: http.StatusTooManyRequests,
		Code:       "rate_limited",
		err:        errors.New("too many requests"),
		Details:    details,
	}
}
