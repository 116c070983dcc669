// internal/dashapi/manifest.go
package dashapi

import "net/http"

// getManifest serves the public app manifest the platform reads when the
// app is listed or installed.
func (a *App) getManifest(w http.ResponseWriter, r *http.Request) {
	feats := make([]map[string]any, 0, len(a.spec.Features))
	for _, f := range a.spec.Features {
		names := make([]string, 0, len(f.Webhooks))
		for _, wh := range f.Webhooks {
			names = append(names, wh.Name)
		}
		feats = append(feats, map[string]any{
			"key":      f.Key,
			"title":    f.Title,
			"default":  f.Default,
			"webhooks": names,
		})
	}
	a.respond(w, http.StatusOK, map[string]any{
		"id":                a.spec.ID,
		"name":              a.spec.Name,
		"version":           a.spec.Version,
		"required_platform": a.spec.RequiredPlatform,
		"permissions":       a.spec.Permissions,
		"features":          feats,
	})
}
