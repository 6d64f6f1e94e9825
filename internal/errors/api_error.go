package errors

import (
	stderrors "errors"
	"net/http"
)

const (
	CodeTimerNotFound       = "timer_not_found"
	CodeInvalidTransition   = "invalid_transition"
	CodeActiveTimerConflict = "active_timer_conflict"
	CodeStoreUnavailable    = "store_unavailable"
)

type APIError struct {
	Status  int         `json:"-"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// Retryable reports whether the caller may safely repeat the request.
func (e *APIError) Retryable() bool {
	return e.Code == CodeStoreUnavailable
}

func New(status int, code, message string) *APIError {
	return &APIError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

// Is reports whether err is an *APIError with the given code.
func Is(err error, code string) bool {
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.Code == code
	}
	return false
}

func Internal(message string) *APIError {
	if message == "" {
		message = "internal server error"
	}
	return New(http.StatusInternalServerError, "internal_error", message)
}

func BadRequest(code, message string) *APIError {
	return New(http.StatusBadRequest, code, message)
}

func Unauthorized(message string) *APIError {
	if message == "" {
		message = "unauthorized"
	}
	return New(http.StatusUnauthorized, "unauthorized", message)
}

func NotFound(code, message string) *APIError {
	return New(http.StatusNotFound, code, message)
}

func Conflict(code, message string, details interface{}) *APIError {
	err := New(http.StatusConflict, code, message)
	err.Details = details
	return err
}

// Unavailable marks a transient persistence failure. No partial change
// was applied, so the request can be retried.
func Unavailable(message string) *APIError {
	if message == "" {
		message = "storage temporarily unavailable"
	}
	return New(http.StatusServiceUnavailable, CodeStoreUnavailable, message)
}

func TimerNotFound() *APIError {
	return NotFound(CodeTimerNotFound, "timer not found")
}

func InvalidTransition(message string, details interface{}) *APIError {
	return Conflict(CodeInvalidTransition, message, details)
}

func ActiveTimerConflict(details interface{}) *APIError {
	return Conflict(CodeActiveTimerConflict, "another timer is already active", details)
}
