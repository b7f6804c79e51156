package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"leadgen-engine/internal/runner"
)

type RunHandler struct {
	Runner     Runner
	Reconciler Reconciler
	Ctx        context.Context
	Log        *slog.Logger
}

func (h RunHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.Runner.Status())
}

// Run starts a pipeline run in the background. Overlapping runs are refused.
func (h RunHandler) Run(w http.ResponseWriter, r *http.Request) {
	if h.Runner.Status().Running {
		WriteError(w, r, http.StatusConflict, "run_in_progress", runner.ErrBusy.Error())
		return
	}

	reqID := RequestIDFrom(r.Context())
	go func() {
		rep, err := h.Runner.Run(h.Ctx)
		if err != nil {
			level := slog.LevelError
			if errors.Is(err, runner.ErrBusy) {
				level = slog.LevelInfo
			}
			h.Log.Log(h.Ctx, level, "manual run not completed", "request_id", reqID, "err", err)
			return
		}
		h.Log.Info("manual run finished", "request_id", reqID, "run_id", rep.RunID)
	}()

	WriteJSON(w, http.StatusAccepted, map[string]any{"ok": true})
}

// Reconcile recomputes recruiter send counters from the email log.
func (h RunHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	if h.Reconciler == nil {
		WriteError(w, r, http.StatusServiceUnavailable, "sending_disabled", "email dispatch is not configured")
		return
	}
	fixed, err := h.Reconciler.Reconcile(r.Context())
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "reconcile_failed", err.Error())
		return
	}
	writeJSON(w, map[string]any{"ok": true, "fixed": fixed})
}
