// internal/dashapi/server.go
package dashapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"tenon/pkg/middleware"
	"tenon/pkg/pipeline"
	"tenon/pkg/policy"
	"tenon/pkg/problems"
)

// Handler builds the HTTP handler with routes and middleware.
func (a *App) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(a.log))
	r.Use(middleware.AccessLog(a.log))
	r.Use(middleware.Tracing(a.cfg))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	})
	r.Get("/readyz", a.readyz)
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/api/manifest", a.getManifest)
	r.Get("/.well-known/openapi.json", a.api.ServeHandler("tenon-app-service", a.spec.Version))
	if a.hooks != nil {
		r.Mount("/webhooks", a.hooks.Routes())
	}

	r.Group(func(gr chi.Router) {
		gr.Use(middleware.CORS(a.cfg.CORSOrigins))
		gr.Post("/api/install", a.postInstall)
		for _, op := range a.operations() {
			h := op.handler
			if op.mutates {
				h = a.withReconcile(op.name, h)
				h = a.withPolicy(op.name, h)
			}
			gr.Method(op.method, op.path, a.guard.Protect(op.permissions, h))
		}
	})
	return r
}

func (a *App) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.store.Ready(ctx); err != nil {
		problems.Write(w, http.StatusServiceUnavailable, "not-ready", "Not ready", err.Error())
		return
	}
	a.respond(w, http.StatusOK, map[string]any{"ok": true})
}

// withPolicy gates a configuration-mutating operation on the optional rego
// policy. Reasons stay in the log.
func (a *App) withPolicy(opName string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc := pipeline.FromContext(r.Context())
		flags, err := a.flags.Get(r.Context(), rc.Record.InstanceURL)
		if err != nil {
			a.log.Errorw("flag load failed", "operation", opName, "err", err)
			problems.Write(w, http.StatusInternalServerError, "internal", "Internal error", "")
			return
		}
		dec := a.gate.Evaluate(r.Context(), policy.Input{
			Operation:   opName,
			AppID:       rc.AppID,
			InstanceURL: rc.Record.InstanceURL,
			Flags:       flags,
		})
		if !dec.Allow {
			a.log.Warnw("operation blocked by policy", "operation", opName, "app", rc.AppID, "reasons", dec.Reasons)
			problems.Write(w, http.StatusForbidden, "authorization-denied", "Authorization denied", "")
			return
		}
		next(w, r)
	}
}
