// internal/dashapi/operations.go
package dashapi

import "net/http"

// operation is one guarded dashboard endpoint. permissions come on top of
// the baseline; mutates marks the operation configuration-mutating, which
// gates it on the policy hook and triggers webhook reconciliation after it
// succeeds.
type operation struct {
	name        string
	method      string
	path        string
	summary     string
	permissions []string
	mutates     bool
	handler     http.HandlerFunc
}

func (a *App) operations() []operation {
	return []operation{
		{
			name:    "config-read",
			method:  http.MethodGet,
			path:    "/api/config",
			summary: "Read the instance's feature configuration",
			handler: a.getConfig,
		},
		{
			name:    "config-update",
			method:  http.MethodPut,
			path:    "/api/config",
			summary: "Update feature flags",
			mutates: true,
			handler: a.putConfig,
		},
		{
			name:    "reconcile",
			method:  http.MethodPost,
			path:    "/api/reconcile",
			summary: "Re-run webhook reconciliation",
			mutates: true,
			handler: a.postReconcile,
		},
		{
			name:    "uninstall",
			method:  http.MethodDelete,
			path:    "/api/uninstall",
			summary: "Remove this installation",
			handler: a.deleteUninstall,
		},
	}
}
