package errors

import "net/http"

// ErrorCode represents the type of error
type ErrorCode string

const (
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrUnauthorized   ErrorCode = "UNAUTHORIZED"
	ErrForbidden      ErrorCode = "FORBIDDEN"
	ErrConflict       ErrorCode = "CONFLICT"
	ErrValidation     ErrorCode = "VALIDATION_ERROR"
	ErrBadRequest     ErrorCode = "BAD_REQUEST"
	ErrInternalError  ErrorCode = "INTERNAL_ERROR"
	ErrAlreadyExists  ErrorCode = "ALREADY_EXISTS"
	ErrRateLimited    ErrorCode = "RATE_LIMITED"
	ErrServiceUnavail ErrorCode = "SERVICE_UNAVAILABLE"
	ErrTooLarge       ErrorCode = "PAYLOAD_TOO_LARGE"
	ErrUnsupported    ErrorCode = "UNSUPPORTED_MEDIA_TYPE"
)

// StatusCodeMap maps ErrorCode to HTTP status code.
// Validation errors are plain 400s on this API; clients only distinguish them by code.
var StatusCodeMap = map[ErrorCode]int{
	ErrNotFound:       http.StatusNotFound,
	ErrUnauthorized:   http.StatusUnauthorized,
	ErrForbidden:      http.StatusForbidden,
	ErrConflict:       http.StatusConflict,
	ErrValidation:     http.StatusBadRequest,
	ErrBadRequest:     http.StatusBadRequest,
	ErrInternalError:  http.StatusInternalServerError,
	ErrAlreadyExists:  http.StatusConflict,
	ErrRateLimited:    http.StatusTooManyRequests,
	ErrServiceUnavail: http.StatusServiceUnavailable,
	ErrTooLarge:       http.StatusRequestEntityTooLarge,
	ErrUnsupported:    http.StatusUnsupportedMediaType,
}

// StatusCode returns the HTTP status code for this error code
func (e ErrorCode) StatusCode() int {
	if code, ok := StatusCodeMap[e]; ok {
		return code
	}
	return http.StatusInternalServerError
}
