package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"leadgen-engine/internal/secrets"
)

// NewMux returns the raw mux so main() can still attach /shutdown (needs srv+token).
func NewMux(d Deps) *http.ServeMux {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.RunCtx == nil {
		d.RunCtx = context.Background()
	}
	if d.SetSecret == nil {
		d.SetSecret = secrets.Set
	}
	if d.DeleteSecret == nil {
		d.DeleteSecret = secrets.Delete
	}

	mux := http.NewServeMux()

	hh := HealthHandler{}
	mux.HandleFunc("/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: hh.Health,
	}))

	// Runs
	rh := RunHandler{Runner: d.Runner, Reconciler: d.Reconciler, Ctx: d.RunCtx, Log: d.Log}
	mux.HandleFunc("/run", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: rh.Run,
	}))
	mux.HandleFunc("/run/status", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: rh.Status,
	}))
	mux.HandleFunc("/reconcile", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: rh.Reconcile,
	}))

	// Leads
	lh := LeadsHandler{Leads: d.Leads}
	mux.HandleFunc("/recruiters", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: lh.Recruiters,
	}))
	mux.HandleFunc("/recruiters/", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: lh.RecruiterByPath, // expects /recruiters/{id}
	}))
	mux.HandleFunc("/jobs", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: lh.Jobs,
	}))
	mux.HandleFunc("/email-log", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: lh.EmailLog,
	}))
	mux.HandleFunc("/export.xlsx", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: lh.Export,
	}))

	// Config
	ch := ConfigHandler{
		CfgVal:      d.CfgVal,
		UserCfgPath: d.UserCfgPath,
		LoadCfg:     d.LoadCfg,
	}
	mux.HandleFunc("/config", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Get,
		http.MethodPut: ch.Put,
	}))
	mux.HandleFunc("/config/path", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Path,
	}))
	mux.HandleFunc("/config/validate", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Validate,
	}))

	// Secrets
	sh := SecretsHandler{Set: d.SetSecret, Delete: d.DeleteSecret}
	mux.HandleFunc("/api/secrets/", methodMux(map[string]http.HandlerFunc{
		http.MethodPut:    sh.Put,
		http.MethodDelete: sh.Remove,
	}))

	// Event stream
	eh := EventsHandler{Hub: d.Hub, Log: d.Log}
	mux.HandleFunc("/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: eh.ServeSSE,
	}))
	mux.HandleFunc("/ws", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: eh.ServeWS,
	}))

	return mux
}

// Handler wraps h with the standard middleware chain.
func Handler(h http.Handler, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	return Chain(h, RequestID, Recover(log), AccessLog(log), Cors)
}
