package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"pantrynotify/internal/api/handlers"
	"pantrynotify/internal/core"
	"pantrynotify/internal/expiry"
	"pantrynotify/internal/types"
)

// Handler adapts the expiry job to Lambda invocations. It accepts either a
// bare RunRequest (direct invoke, EventBridge constant input) or a raw
// EventBridge scheduled event whose detail, if any, is a RunRequest.
type Handler struct {
	job         handlers.JobRunner
	validator   *core.Validator
	logger      *slog.Logger
	exposeStack bool
	now         func() time.Time
}

func NewHandler(job handlers.JobRunner, logger *slog.Logger, exposeStack bool) *Handler {
	return &Handler{
		job:         job,
		validator:   core.NewValidator(logger),
		logger:      logger,
		exposeStack: exposeStack,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Handle runs the job and always answers with an API Gateway shaped
// envelope. Job failures are reported in the envelope rather than as an
// invocation error so Lambda does not retry a partially delivered run.
func (h *Handler) Handle(ctx context.Context, payload json.RawMessage) (events.APIGatewayProxyResponse, error) {
	req, trigger, err := decodeInvocation(payload)
	if err == nil {
		err = h.validator.ValidateStruct(req)
	}
	if err != nil {
		return h.failure(ctx, err), nil
	}

	result, err := h.job.Run(types.WithTrigger(ctx, trigger), handlers.RunOptionsFrom(req))
	if err != nil {
		h.logger.ErrorContext(ctx, "expiry run failed", "error", err, "kind", types.KindOf(err))
		return h.failure(ctx, err), nil
	}

	return envelope(http.StatusOK, types.RunResponse{
		Success: true,
		Message: expiry.Summary(result),
		Results: result,
	}), nil
}

func (h *Handler) failure(_ context.Context, err error) events.APIGatewayProxyResponse {
	status, resp := types.NewRunErrorResponse(err, h.now(), h.exposeStack)
	return envelope(status, resp)
}

func envelope(status int, body any) events.APIGatewayProxyResponse {
	b, err := json.Marshal(body)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"success":false,"error":"failed to marshal response"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(b),
	}
}

// decodeInvocation distinguishes EventBridge events by their detail-type
// field. Manual direct invocations set manualTrigger themselves.
func decodeInvocation(payload json.RawMessage) (types.RunRequest, types.Trigger, error) {
	var req types.RunRequest
	payload = bytes.TrimSpace(payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		return req, types.TriggerScheduled, nil
	}

	var probe struct {
		DetailType string `json:"detail-type"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil {
		return req, "", types.NewAppError(types.ErrCodeValidationInvalidJSON, "invocation payload is not a JSON object", err)
	}

	body := []byte(payload)
	if probe.DetailType != "" {
		var ev events.CloudWatchEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return req, "", types.NewAppError(types.ErrCodeValidationInvalidJSON, "malformed EventBridge event", err)
		}
		body = bytes.TrimSpace(ev.Detail)
		if len(body) == 0 || bytes.Equal(body, []byte("null")) {
			return req, types.TriggerScheduled, nil
		}
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return req, "", types.NewAppError(types.ErrCodeValidationInvalidJSON, "invalid run request: "+err.Error(), err)
	}
	return req, types.TriggerScheduled, nil
}
