package types

import (
	"errors"
	"net/http"
	"strings"
	"time"
)

// RunRequest is the invocation payload accepted by the HTTP endpoint, the
// Lambda handler, and the local stdin runner. Field names follow the
// camelCase shape the web client already sends.
type RunRequest struct {
	DaysAhead     *int   `json:"daysAhead,omitempty" validate:"omitempty,min=1,max=90" errcode:"validation_invalid_days_ahead"`
	ManualTrigger bool   `json:"manualTrigger,omitempty"`
	TestMode      bool   `json:"testMode,omitempty"`
	UserID        string `json:"userId,omitempty" validate:"omitempty,max=128" errcode:"validation_invalid_user_id"`
}

// RunResponse is the success envelope returned to callers.
type RunResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Results *RunResult `json:"results"`
}

// RunErrorResponse is the failure envelope. Stack is only populated when
// explicitly enabled by configuration.
type RunErrorResponse struct {
	Success   bool           `json:"success"`
	Error     string         `json:"error"`
	Code      ErrorCode      `json:"code,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Stack     string         `json:"stack,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// NewRunErrorResponse builds the failure envelope for err and returns it with
// its HTTP status. Errors without an AppError in their chain are reported as
// internal_unexpected_error and their text is withheld.
func NewRunErrorResponse(err error, now time.Time, exposeStack bool) (int, RunErrorResponse) {
	resp := RunErrorResponse{
		Success:   false,
		Error:     "an unexpected error occurred",
		Code:      ErrCodeInternalUnexpected,
		Timestamp: now.UTC(),
	}
	status := http.StatusInternalServerError

	var appErr *AppError
	if errors.As(err, &appErr) {
		resp.Error = appErr.Message
		resp.Code = appErr.Code
		resp.Details = appErr.Details
		status = appErr.HTTPStatus()
	}
	if exposeStack {
		resp.Stack = ErrorStack(err)
	}
	return status, resp
}

// ErrorStack renders the wrapped error chain, outermost first, one error per
// line.
func ErrorStack(err error) string {
	var lines []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		lines = append(lines, e.Error())
	}
	return strings.Join(lines, "\n")
}

// DeliveryFailureMessage is published to the failed-delivery queue when a
// recipient's digest could not be sent. Operators redrive these manually.
type DeliveryFailureMessage struct {
	RunID         string    `json:"run_id"`
	UserID        string    `json:"user_id"`
	IngredientIDs []string  `json:"ingredient_ids"`
	ErrorCode     ErrorCode `json:"error_code"`
	ErrorMessage  string    `json:"error_message"`
	Retryable     bool      `json:"retryable"`
	FailedAt      time.Time `json:"failed_at"`
}
