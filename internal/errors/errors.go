package errors

import (
	stderrors "errors"
	"fmt"
)

// APIError represents a standardized API error response
type APIError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Field   string    `json:"field,omitempty"`
	Details string    `json:"details,omitempty"`
	Status  int       `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code ErrorCode, message string) *APIError {
	return &APIError{Code: code, Message: message, Status: code.StatusCode()}
}

// NotFound creates a NOT_FOUND error
func NotFound(resource string) *APIError {
	return newError(ErrNotFound, fmt.Sprintf("%s not found", resource))
}

// Unauthorized creates an UNAUTHORIZED error
func Unauthorized(message string) *APIError {
	return newError(ErrUnauthorized, message)
}

// Forbidden creates a FORBIDDEN error
func Forbidden(message string) *APIError {
	return newError(ErrForbidden, message)
}

// Conflict creates a CONFLICT error
func Conflict(resource string) *APIError {
	return newError(ErrConflict, fmt.Sprintf("%s already exists or is in an invalid state", resource))
}

// ValidationError creates a VALIDATION_ERROR
func ValidationError(field, message string) *APIError {
	e := newError(ErrValidation, message)
	e.Field = field
	return e
}

// BadRequest creates a BAD_REQUEST error
func BadRequest(message string) *APIError {
	return newError(ErrBadRequest, message)
}

// InternalError creates an INTERNAL_ERROR
func InternalError(message string) *APIError {
	return newError(ErrInternalError, message)
}

// AlreadyExists creates an ALREADY_EXISTS error
func AlreadyExists(resource string) *APIError {
	return newError(ErrAlreadyExists, fmt.Sprintf("%s already exists", resource))
}

// RateLimited creates a RATE_LIMITED error
func RateLimited(message string) *APIError {
	if message == "" {
		message = "rate limit exceeded"
	}
	return newError(ErrRateLimited, message)
}

// ServiceUnavailable creates a SERVICE_UNAVAILABLE error
func ServiceUnavailable(service string) *APIError {
	return newError(ErrServiceUnavail, fmt.Sprintf("%s is temporarily unavailable", service))
}

// PayloadTooLarge creates a PAYLOAD_TOO_LARGE error
func PayloadTooLarge(message string) *APIError {
	return newError(ErrTooLarge, message)
}

// UnsupportedMediaType creates an UNSUPPORTED_MEDIA_TYPE error
func UnsupportedMediaType(message string) *APIError {
	return newError(ErrUnsupported, message)
}

// WithDetails adds additional details to an error
func (e *APIError) WithDetails(details string) *APIError {
	e.Details = details
	return e
}

// AsAPIError unwraps err into an *APIError if one is in the chain.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// HasCode reports whether err carries an APIError with the given code.
func HasCode(err error, code ErrorCode) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Code == code
}
