// Package handlers contains the HTTP handlers mounted under /v1.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"pantrynotify/internal/core"
	"pantrynotify/internal/expiry"
	"pantrynotify/internal/types"
)

// JobRunner is the slice of expiry.Job the handler needs.
type JobRunner interface {
	Run(ctx context.Context, opts expiry.RunOptions) (*types.RunResult, error)
}

// ExpiryHandler exposes the expiry notification job over HTTP.
type ExpiryHandler struct {
	job         JobRunner
	validator   *core.Validator
	logger      *slog.Logger
	exposeStack bool
}

// NewExpiryHandler builds the handler. exposeStack mirrors
// EXPOSE_ERROR_STACK.
func NewExpiryHandler(job JobRunner, v *core.Validator, logger *slog.Logger, exposeStack bool) *ExpiryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if v == nil {
		v = core.NewValidator(logger)
	}
	return &ExpiryHandler{job: job, validator: v, logger: logger, exposeStack: exposeStack}
}

// RegisterRoutes mounts the job endpoints. Authentication is applied by the
// server middleware.
func (h *ExpiryHandler) RegisterRoutes(r chi.Router) {
	r.Post("/notifications/expiry/run", h.HandleRun)
}

// HandleRun handles POST /v1/notifications/expiry/run. The body is optional;
// an empty body runs with the configured defaults.
func (h *ExpiryHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	var req types.RunRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		core.Error(w, r, err)
		return
	}

	// The scheduler calls with the service role key and no manualTrigger
	// flag; everything else is an operator run.
	trigger := types.TriggerManual
	if actor, ok := types.GetActor(r.Context()); ok && actor.Type == types.ActorServiceRole && !req.ManualTrigger {
		trigger = types.TriggerScheduled
	}
	ctx := types.WithTrigger(r.Context(), trigger)

	started := time.Now()
	result, err := h.job.Run(ctx, RunOptionsFrom(req))
	if err != nil {
		h.logger.ErrorContext(ctx, "expiry run failed",
			"error", err,
			"kind", types.KindOf(err),
			"duration", time.Since(started),
		)
		core.ErrorWithStack(w, r, err, h.exposeStack)
		return
	}

	core.JSON(w, r, http.StatusOK, types.RunResponse{
		Success: true,
		Message: expiry.Summary(result),
		Results: result,
	})
}

// RunOptionsFrom maps the wire request onto job options.
func RunOptionsFrom(req types.RunRequest) expiry.RunOptions {
	return expiry.RunOptions{
		DaysAhead:     req.DaysAhead,
		ManualTrigger: req.ManualTrigger,
		TestMode:      req.TestMode,
		UserID:        req.UserID,
	}
}
