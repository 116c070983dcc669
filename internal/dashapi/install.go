// internal/dashapi/install.go
package dashapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"tenon/pkg/authstore"
	"tenon/pkg/compat"
	"tenon/pkg/pipeline"
	"tenon/pkg/platform"
	"tenon/pkg/problems"
	"tenon/pkg/webhooks"
)

const installQuery = `query AppInstall {
  app { id }
  platform { version }
}`

type installRequest struct {
	InstanceURL  string `json:"instance_url"`
	AuthToken    string `json:"auth_token"`
	DashboardURL string `json:"dashboard_url"`
}

// postInstall finishes an installation handshake: it proves the provided
// token by querying the instance, checks the platform version against the
// supported range, and persists the auth record. Re-installing the same
// instance rotates the token and app id in place.
func (a *App) postInstall(w http.ResponseWriter, r *http.Request) {
	var req installRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		problems.Write(w, http.StatusBadRequest, "bad-request", "Bad request", "body must be JSON")
		return
	}
	if req.InstanceURL == "" || req.AuthToken == "" || req.DashboardURL == "" {
		problems.Write(w, http.StatusBadRequest, "bad-request", "Bad request", "instance_url, auth_token and dashboard_url are required")
		return
	}

	client := platform.NewClient(req.InstanceURL, req.AuthToken, req.DashboardURL)
	var probe struct {
		App struct {
			ID string `json:"id"`
		} `json:"app"`
		Platform struct {
			Version string `json:"version"`
		} `json:"platform"`
	}
	if err := client.Query(r.Context(), installQuery, nil, &probe); err != nil {
		a.log.Warnw("install probe failed", "instance", req.InstanceURL, "err", err)
		problems.Write(w, http.StatusBadGateway, "instance-unreachable", "Instance unreachable", "could not query the instance with the provided token")
		return
	}
	if probe.App.ID == "" {
		problems.Write(w, http.StatusBadGateway, "instance-unreachable", "Instance unreachable", "instance did not report an app id")
		return
	}
	if err := compat.Check(probe.Platform.Version, a.cfg.SupportedVersions); err != nil {
		var ie *compat.IncompatibleError
		detail := err.Error()
		if errors.As(err, &ie) {
			detail = ie.Error()
		}
		problems.Write(w, http.StatusUnprocessableEntity, "unsupported-platform-version", "Unsupported platform version", detail)
		return
	}

	rec := authstore.Record{
		InstanceURL:  req.InstanceURL,
		Token:        req.AuthToken,
		AppID:        probe.App.ID,
		DashboardURL: req.DashboardURL,
	}
	if err := a.store.Set(r.Context(), rec); err != nil {
		a.log.Errorw("install persist failed", "instance", req.InstanceURL, "err", err)
		problems.Write(w, http.StatusInternalServerError, "internal", "Internal error", "")
		return
	}

	// Seed defaults only on first install; a re-install keeps the flags the
	// merchant already chose.
	flags, err := a.flags.Get(r.Context(), rec.InstanceURL)
	if err == nil && len(flags) == 0 {
		flags = a.spec.Defaults()
		if err := a.flags.Set(r.Context(), rec.InstanceURL, flags); err != nil {
			a.log.Warnw("default flag seed failed", "instance", rec.InstanceURL, "err", err)
		}
	}

	a.runReconcile(r.Context(), client, rec.InstanceURL, "install")
	a.log.Infow("installed", "instance", rec.InstanceURL, "app", rec.AppID, "platform_version", probe.Platform.Version)
	a.respond(w, http.StatusCreated, map[string]any{
		"app_id":   rec.AppID,
		"features": flags,
	})
}

// deleteUninstall removes the installation: owned webhooks best-effort,
// then flags and the auth record. Remote cleanup failure does not block
// removal; an unreachable instance must still be uninstallable.
func (a *App) deleteUninstall(w http.ResponseWriter, r *http.Request) {
	rc := pipeline.FromContext(r.Context())
	owned := a.spec.Catalog()
	reg := webhooks.NewRegistry(rc.Client)
	if _, err := a.sync.Reconcile(r.Context(), reg, nil, func(n string) bool { return owned[n] }); err != nil {
		a.log.Warnw("uninstall webhook cleanup incomplete", "instance", rc.Record.InstanceURL, "err", err)
	}
	if err := a.flags.Delete(r.Context(), rc.Record.InstanceURL); err != nil {
		a.log.Warnw("flag delete failed", "instance", rc.Record.InstanceURL, "err", err)
	}
	if err := a.store.Delete(r.Context(), rc.Record.InstanceURL); err != nil {
		a.log.Errorw("uninstall persist failed", "instance", rc.Record.InstanceURL, "err", err)
		problems.Write(w, http.StatusInternalServerError, "internal", "Internal error", "")
		return
	}
	a.log.Infow("uninstalled", "instance", rc.Record.InstanceURL, "app", rc.AppID)
	a.respond(w, http.StatusOK, map[string]any{"ok": true})
}
