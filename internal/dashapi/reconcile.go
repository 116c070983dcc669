// internal/dashapi/reconcile.go
package dashapi

import (
	"context"
	"errors"
	"net/http"

	"tenon/pkg/pipeline"
	"tenon/pkg/platform"
	"tenon/pkg/webhooks"
)

// statusCapture records the first status code a handler writes so the
// reconcile hook can tell success from failure.
type statusCapture struct {
	http.ResponseWriter
	code int
}

func (s *statusCapture) WriteHeader(code int) {
	if s.code == 0 {
		s.code = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusCapture) status() int {
	if s.code == 0 {
		return http.StatusOK
	}
	return s.code
}

// withReconcile re-syncs the instance's webhook subscriptions after a
// mutating operation succeeds. The operation's response is already out by
// then; sync failures are logged and the next run converges.
func (a *App) withReconcile(opName string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sw := &statusCapture{ResponseWriter: w}
		next(sw, r)
		if sw.status() >= 300 {
			return
		}
		rc := pipeline.FromContext(r.Context())
		if rc.Client == nil {
			return
		}
		a.runReconcile(r.Context(), rc.Client, rc.Record.InstanceURL, opName)
	}
}

// postReconcile only acknowledges; the actual sync runs in the
// post-operation hook shared with config updates.
func (a *App) postReconcile(w http.ResponseWriter, r *http.Request) {
	a.respond(w, http.StatusAccepted, map[string]any{"ok": true})
}

func (a *App) runReconcile(ctx context.Context, client *platform.Client, instanceURL, trigger string) {
	flags, err := a.flags.Get(ctx, instanceURL)
	if err != nil {
		a.log.Errorw("reconcile flag load failed", "instance", instanceURL, "trigger", trigger, "err", err)
		return
	}
	desired := a.spec.DesiredManifest(a.cfg.AppBaseURL, flags)
	owned := a.spec.Catalog()
	res, err := a.sync.Reconcile(ctx, webhooks.NewRegistry(client), desired, func(n string) bool { return owned[n] })
	if err != nil {
		var pe *webhooks.PartialError
		if errors.As(err, &pe) {
			a.log.Warnw("reconcile incomplete", "instance", instanceURL, "trigger", trigger,
				"failed", len(pe.Failed), "created", res.Created, "updated", res.Updated, "deleted", res.Deleted)
			return
		}
		a.log.Warnw("reconcile failed", "instance", instanceURL, "trigger", trigger, "err", err)
		return
	}
	a.log.Infow("reconciled", "instance", instanceURL, "trigger", trigger,
		"created", res.Created, "updated", res.Updated, "deleted", res.Deleted)
}
