// internal/dashapi/app.go
package dashapi

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"tenon/internal/hooks"
	"tenon/pkg/auth"
	"tenon/pkg/authstore"
	"tenon/pkg/config"
	"tenon/pkg/features"
	"tenon/pkg/openapi"
	"tenon/pkg/pipeline"
	"tenon/pkg/policy"
	"tenon/pkg/webhooks"
)

// App is the dashboard-api application container.
// Handlers and middleware have methods on this type.
//
// Keep it lean: shared deps and config only.
// Request-scoped state rides in the pipeline context.
type App struct {
	log   *zap.SugaredLogger
	cfg   config.Config
	spec  *features.AppSpec
	store authstore.Store
	flags features.FlagStore
	guard *pipeline.Guard
	sync  *webhooks.Synchronizer
	gate  *policy.Gate
	hooks *hooks.Receiver
	api   *openapi.Registry
}

func New(log *zap.SugaredLogger, cfg config.Config, spec *features.AppSpec, store authstore.Store, flags features.FlagStore, verifier *auth.Verifier, sync *webhooks.Synchronizer, gate *policy.Gate, rcv *hooks.Receiver) *App {
	app := &App{
		log:   log,
		cfg:   cfg,
		spec:  spec,
		store: store,
		flags: flags,
		guard: pipeline.NewGuard(store, verifier, cfg.InternalToken, log),
		sync:  sync,
		gate:  gate,
		hooks: rcv,
		api:   openapi.NewRegistry(),
	}
	for _, op := range app.operations() {
		app.api.Register(openapi.Operation{
			Method:      op.method,
			Path:        op.path,
			Summary:     op.summary,
			Tags:        []string{"dashboard"},
			Permissions: auth.Required(op.permissions...),
			Mutates:     op.mutates,
			Responses:   map[string]any{"200": map[string]any{"description": "OK"}},
		})
	}
	return app
}

func (a *App) respond(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
