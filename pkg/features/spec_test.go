// pkg/features/spec_test.go
package features

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleSpec = `
name: Tenon
id: tenon
version: 1.4.0
required_platform: ">=3.10"
permissions:
  - manage-app
  - manage-orders
features:
  - key: order-sync
    title: Order sync
    default: true
    webhooks:
      - name: tenon-order-created
        path: /webhooks/order-created
        events: [ORDER_CREATED]
      - name: tenon-order-cancelled
        path: webhooks/order-cancelled
        events: [ORDER_CANCELLED]
        delivery: sync
  - key: stock-alerts
    title: Stock alerts
    default: false
    webhooks:
      - name: tenon-stock-low
        path: /webhooks/stock-low
        events: [STOCK_LOW, STOCK_OUT]
`

func writeSpec(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write spec: %v", err)
	}
	return path
}

func loadSample(t *testing.T) *AppSpec {
	t.Helper()
	spec, err := Load(writeSpec(t, sampleSpec))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return spec
}

func TestLoadSpec(t *testing.T) {
	spec := loadSample(t)
	if spec.ID != "tenon" || spec.Version != "1.4.0" || spec.RequiredPlatform != ">=3.10" {
		t.Fatalf("spec = %+v", spec)
	}
	if len(spec.Features) != 2 {
		t.Fatalf("features = %d", len(spec.Features))
	}
	created, ok := spec.Template("tenon-order-created")
	if !ok || created.Delivery != "async" {
		t.Fatalf("delivery not defaulted: %+v", created)
	}
	cancelled, ok := spec.Template("tenon-order-cancelled")
	if !ok || cancelled.Delivery != "sync" {
		t.Fatalf("explicit delivery lost: %+v", cancelled)
	}
	if cancelled.Path != "/webhooks/order-cancelled" {
		t.Fatalf("path not normalized: %q", cancelled.Path)
	}
}

func TestLoadRejectsDuplicateWebhookName(t *testing.T) {
	body := `
name: X
id: x
version: 1.0.0
features:
  - key: a
    webhooks:
      - {name: dup, path: /a, events: [E]}
  - key: b
    webhooks:
      - {name: dup, path: /b, events: [E]}
`
	if _, err := Load(writeSpec(t, body)); err == nil {
		t.Fatalf("expected duplicate-name error")
	}
}

func TestLoadRejectsUnknownDelivery(t *testing.T) {
	body := `
name: X
id: x
version: 1.0.0
features:
  - key: a
    webhooks:
      - {name: a, path: /a, events: [E], delivery: batch}
`
	if _, err := Load(writeSpec(t, body)); err == nil {
		t.Fatalf("expected delivery error")
	}
}

func TestCatalogCoversDisabledFeatures(t *testing.T) {
	spec := loadSample(t)
	cat := spec.Catalog()
	for _, name := range []string{"tenon-order-created", "tenon-order-cancelled", "tenon-stock-low"} {
		if !cat[name] {
			t.Fatalf("catalog missing %s", name)
		}
	}
	if cat["someone-elses-hook"] {
		t.Fatalf("catalog claims foreign name")
	}
}

func TestDesiredManifestHonorsFlags(t *testing.T) {
	spec := loadSample(t)

	// No stored flags: defaults apply, order-sync on, stock-alerts off.
	entries := spec.DesiredManifest("https://app.example.com", nil)
	if len(entries) != 2 {
		t.Fatalf("entries = %+v", entries)
	}

	// Default-on feature switched off removes its hooks entirely.
	entries = spec.DesiredManifest("https://app.example.com", map[string]bool{"order-sync": false})
	if len(entries) != 0 {
		t.Fatalf("entries = %+v", entries)
	}

	// Default-off feature switched on contributes its hooks.
	entries = spec.DesiredManifest("https://app.example.com", map[string]bool{"stock-alerts": true})
	if len(entries) != 3 {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestDesiredManifestTargets(t *testing.T) {
	spec := loadSample(t)
	entries := spec.DesiredManifest("https://app.example.com/", nil)
	for _, e := range entries {
		if e.Name == "tenon-order-created" {
			if e.TargetURL != "https://app.example.com/webhooks/order-created" {
				t.Fatalf("target = %q", e.TargetURL)
			}
			if !e.Active || len(e.Events) != 1 || e.Events[0] != "ORDER_CREATED" {
				t.Fatalf("entry = %+v", e)
			}
			return
		}
	}
	t.Fatalf("entry not found: %+v", entries)
}

func TestEnabledFallsBackToDefault(t *testing.T) {
	spec := loadSample(t)
	if !spec.Enabled(nil, "order-sync") {
		t.Fatalf("default-on feature reported off")
	}
	if spec.Enabled(nil, "stock-alerts") {
		t.Fatalf("default-off feature reported on")
	}
	if spec.Enabled(nil, "ghost") {
		t.Fatalf("unknown feature reported on")
	}
	if spec.Enabled(map[string]bool{"stock-alerts": true}, "stock-alerts") != true {
		t.Fatalf("explicit flag ignored")
	}
}
