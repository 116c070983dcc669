// internal/dashapi/config.go
package dashapi

import (
	"encoding/json"
	"io"
	"net/http"

	"tenon/pkg/pipeline"
	"tenon/pkg/problems"
)

type featureState struct {
	Key     string `json:"key"`
	Title   string `json:"title"`
	Enabled bool   `json:"enabled"`
	Default bool   `json:"default"`
}

type configPayload struct {
	App struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"app"`
	InstanceURL string         `json:"instance_url"`
	Features    []featureState `json:"features"`
}

func (a *App) configFor(rc pipeline.ReqContext, flags map[string]bool) configPayload {
	var p configPayload
	p.App.ID = a.spec.ID
	p.App.Name = a.spec.Name
	p.App.Version = a.spec.Version
	p.InstanceURL = rc.Record.InstanceURL
	for _, f := range a.spec.Features {
		p.Features = append(p.Features, featureState{
			Key:     f.Key,
			Title:   f.Title,
			Enabled: a.spec.Enabled(flags, f.Key),
			Default: f.Default,
		})
	}
	return p
}

func (a *App) getConfig(w http.ResponseWriter, r *http.Request) {
	rc := pipeline.FromContext(r.Context())
	flags, err := a.flags.Get(r.Context(), rc.Record.InstanceURL)
	if err != nil {
		a.log.Errorw("flag load failed", "instance", rc.Record.InstanceURL, "err", err)
		problems.Write(w, http.StatusInternalServerError, "internal", "Internal error", "")
		return
	}
	a.respond(w, http.StatusOK, a.configFor(rc, flags))
}

type configUpdate struct {
	Features map[string]bool `json:"features"`
}

// putConfig merges the submitted flags over the stored ones. Keys the app
// spec does not declare are rejected before anything persists.
func (a *App) putConfig(w http.ResponseWriter, r *http.Request) {
	rc := pipeline.FromContext(r.Context())
	var req configUpdate
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		problems.Write(w, http.StatusBadRequest, "bad-request", "Bad request", "body must be JSON")
		return
	}
	known := a.spec.Defaults()
	for key := range req.Features {
		if _, ok := known[key]; !ok {
			problems.Write(w, http.StatusUnprocessableEntity, "unknown-feature", "Unknown feature", "no such feature: "+key)
			return
		}
	}

	flags, err := a.flags.Get(r.Context(), rc.Record.InstanceURL)
	if err != nil {
		a.log.Errorw("flag load failed", "instance", rc.Record.InstanceURL, "err", err)
		problems.Write(w, http.StatusInternalServerError, "internal", "Internal error", "")
		return
	}
	if flags == nil {
		flags = map[string]bool{}
	}
	for k, v := range req.Features {
		flags[k] = v
	}
	if err := a.flags.Set(r.Context(), rc.Record.InstanceURL, flags); err != nil {
		a.log.Errorw("flag save failed", "instance", rc.Record.InstanceURL, "err", err)
		problems.Write(w, http.StatusInternalServerError, "internal", "Internal error", "")
		return
	}
	a.log.Infow("config updated", "instance", rc.Record.InstanceURL, "changed", len(req.Features))
	a.respond(w, http.StatusOK, a.configFor(rc, flags))
}
