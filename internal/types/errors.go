package types

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrorCode is a typed string for categorizing application errors.
type ErrorCode string

// Error code constants. Handlers and repositories use these instead of
// hardcoded strings.
const (
	// Validation (400)
	ErrCodeValidationDaysAhead    ErrorCode = "validation_invalid_days_ahead"
	ErrCodeValidationUserID       ErrorCode = "validation_invalid_user_id"
	ErrCodeValidationMissingField ErrorCode = "validation_missing_required_field"
	ErrCodeValidationFailed       ErrorCode = "validation_failed"
	ErrCodeValidationInvalidJSON  ErrorCode = "validation_invalid_json"
	ErrCodeValidationInvalidEmail ErrorCode = "validation_invalid_email"

	// Auth (401)
	ErrCodeAuthTokenMissing ErrorCode = "auth_token_missing"
	ErrCodeAuthTokenInvalid ErrorCode = "auth_token_invalid"

	// Routing (404/405)
	ErrCodeNotFoundRoute    ErrorCode = "not_found_route"
	ErrCodeMethodNotAllowed ErrorCode = "method_not_allowed"

	// Conflict (409)
	ErrCodeConflictRunInProgress ErrorCode = "conflict_run_in_progress"

	// Internal (500)
	ErrCodeInternalDB             ErrorCode = "internal_database_error"
	ErrCodeInternalUnexpected     ErrorCode = "internal_unexpected_error"
	ErrCodeConfigInvalid          ErrorCode = "internal_config_invalid"
	ErrCodeStoreQuery             ErrorCode = "internal_store_query_failed"
	ErrCodeUserResolution         ErrorCode = "internal_user_resolution_failed"
	ErrCodeNotificationLogFailure ErrorCode = "internal_notification_log_failed"
	ErrCodeRenderFailure          ErrorCode = "internal_render_failed"

	// Upstream (502/504)
	ErrCodeUpstreamEmailProvider ErrorCode = "upstream_email_provider_unavailable"
	ErrCodeUpstreamUnavailable   ErrorCode = "upstream_unavailable"
	ErrCodeUpstreamRateLimited   ErrorCode = "upstream_rate_limited"
	ErrCodeUpstreamTimeout       ErrorCode = "upstream_timeout"

	// Delivery rejected for a specific recipient (suppression list, bounce).
	ErrCodeEmailBlocked ErrorCode = "email_blocked"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Unrecognized codes map to 500.
func (c ErrorCode) HTTPStatus() int {
	s := string(c)
	switch {
	case strings.HasPrefix(s, "validation_"):
		return http.StatusBadRequest
	case strings.HasPrefix(s, "auth_"):
		return http.StatusUnauthorized
	case strings.HasPrefix(s, "not_found_"):
		return http.StatusNotFound
	case c == ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case strings.HasPrefix(s, "conflict_"):
		return http.StatusConflict
	case s == string(ErrCodeEmailBlocked):
		return http.StatusForbidden
	case s == string(ErrCodeUpstreamTimeout):
		return http.StatusGatewayTimeout
	case strings.HasPrefix(s, "upstream_"):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// ErrorKind is the closed set of failure categories the notification job
// distinguishes. Every AppError maps to exactly one kind via KindOf.
type ErrorKind string

const (
	KindConfig   ErrorKind = "ConfigError"
	KindQuery    ErrorKind = "QueryError"
	KindDelivery ErrorKind = "DeliveryError"
	KindLog      ErrorKind = "LogError"
	// KindOther covers request validation, auth, and lock conflicts, which
	// are surfaced to callers but are not job failure categories.
	KindOther ErrorKind = "Other"
)

// Kind returns the ErrorKind for this code.
func (c ErrorCode) Kind() ErrorKind {
	s := string(c)
	switch {
	case c == ErrCodeConfigInvalid:
		return KindConfig
	case c == ErrCodeStoreQuery, c == ErrCodeUserResolution, c == ErrCodeInternalDB:
		return KindQuery
	case c == ErrCodeNotificationLogFailure:
		return KindLog
	case c == ErrCodeEmailBlocked, strings.HasPrefix(s, "upstream_"):
		return KindDelivery
	default:
		return KindOther
	}
}

// KindOf extracts the ErrorKind from an error chain. Errors that carry no
// AppError are reported as KindOther.
func KindOf(err error) ErrorKind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code.Kind()
	}
	return KindOther
}

// AppError is the standard application error type. Domain and handler errors
// are expressed as AppError so they format, map to HTTP, and unwrap the same
// way everywhere.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// WithDetails returns a copy of the error with the provided details merged in.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Err:     e.Err,
		Details: merged,
	}
}

// NewAppError creates a new AppError with the given code, message, and
// optional underlying error.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError carrying structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
