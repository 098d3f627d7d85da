package core

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"pantrynotify/internal/types"
)

const maxRequestBodySize = 1 << 20

var (
	errNotFound         = types.NewAppError(types.ErrCodeNotFoundRoute, "route not found", nil)
	errMethodNotAllowed = types.NewAppError(types.ErrCodeMethodNotAllowed, "method not allowed", nil)
)

// now is swapped in tests.
var now = func() time.Time { return time.Now().UTC() }

// JSON writes data with the given status. A marshalling failure degrades to
// a 500 envelope.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, fallback := types.NewRunErrorResponse(err, now(), false)
		fallback.Error = "failed to marshal response"
		fallback.RequestID = types.GetRequestID(r.Context())
		_ = json.NewEncoder(w).Encode(fallback)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes the failure envelope for err without a stack.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	ErrorWithStack(w, r, err, false)
}

// ErrorWithStack writes the failure envelope for err. The status comes from
// the AppError code; anything else is a 500 with a generic message. The error
// chain is included only when exposeStack is set.
func ErrorWithStack(w http.ResponseWriter, r *http.Request, err error, exposeStack bool) {
	status, resp := types.NewRunErrorResponse(err, now(), exposeStack)
	resp.RequestID = types.GetRequestID(r.Context())
	JSON(w, r, status, resp)
}

// DecodeJSON reads a single JSON object from the body into dst, rejecting
// unknown fields and bodies over 1 MB. An empty body decodes to the zero
// value, since every RunRequest field is optional. Failures are
// validation_invalid_json.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return mapDecodeError(err)
	}
	if dec.More() {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "request body must contain a single JSON object", nil)
	}
	return nil
}

func mapDecodeError(err error) *types.AppError {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "request body must not exceed 1MB", err)
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "malformed JSON in request body", err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidJSON, "invalid value for field "+typeErr.Field, err,
			map[string]any{"field": typeErr.Field, "expected": typeErr.Type.String()})
	}

	if strings.HasPrefix(err.Error(), "json: unknown field") {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON,
			"unknown field in request body: "+strings.TrimPrefix(err.Error(), "json: unknown field "), err)
	}

	if errors.Is(err, io.ErrUnexpectedEOF) {
		return types.NewAppError(types.ErrCodeValidationInvalidJSON, "truncated JSON in request body", err)
	}

	return types.NewAppError(types.ErrCodeValidationInvalidJSON, "invalid JSON in request body", err)
}
