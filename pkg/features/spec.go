// pkg/features/spec.go
package features

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"tenon/pkg/webhooks"
)

// AppSpec declares the app's identity and everything feature-driven: the
// permissions it asks for at install and the webhook subscriptions each
// feature needs while enabled.
type AppSpec struct {
	Name             string    `json:"name" yaml:"name"`
	ID               string    `json:"id" yaml:"id"`
	Version          string    `json:"version" yaml:"version"`
	RequiredPlatform string    `json:"required_platform" yaml:"required_platform"`
	Permissions      []string  `json:"permissions" yaml:"permissions"`
	Features         []Feature `json:"features" yaml:"features"`
}

type Feature struct {
	Key      string            `json:"key" yaml:"key"`
	Title    string            `json:"title" yaml:"title"`
	Default  bool              `json:"default" yaml:"default"`
	Webhooks []WebhookTemplate `json:"webhooks,omitempty" yaml:"webhooks,omitempty"`
}

// WebhookTemplate becomes a manifest entry with the target resolved against
// the app's public base URL.
type WebhookTemplate struct {
	Name     string   `json:"name" yaml:"name"`
	Path     string   `json:"path" yaml:"path"`
	Events   []string `json:"events" yaml:"events"`
	Delivery string   `json:"delivery,omitempty" yaml:"delivery,omitempty"`
}

// Load reads and validates an app spec from a yaml or json file.
func Load(path string) (*AppSpec, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var spec AppSpec
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(b, &spec); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(b, &spec); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := spec.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &spec, nil
}

func (s *AppSpec) validate() error {
	if s.ID == "" || s.Name == "" || s.Version == "" {
		return fmt.Errorf("app spec needs id, name and version")
	}
	keys := map[string]bool{}
	hooks := map[string]bool{}
	for i := range s.Features {
		f := &s.Features[i]
		if f.Key == "" {
			return fmt.Errorf("feature %d has no key", i)
		}
		if keys[f.Key] {
			return fmt.Errorf("duplicate feature key %q", f.Key)
		}
		keys[f.Key] = true
		for j := range f.Webhooks {
			w := &f.Webhooks[j]
			if w.Name == "" || w.Path == "" || len(w.Events) == 0 {
				return fmt.Errorf("feature %q webhook %d needs name, path and events", f.Key, j)
			}
			if hooks[w.Name] {
				return fmt.Errorf("duplicate webhook name %q", w.Name)
			}
			hooks[w.Name] = true
			switch w.Delivery {
			case "":
				w.Delivery = webhooks.DeliveryAsync
			case webhooks.DeliveryAsync, webhooks.DeliverySync:
			default:
				return fmt.Errorf("webhook %q: unknown delivery %q", w.Name, w.Delivery)
			}
			if !strings.HasPrefix(w.Path, "/") {
				w.Path = "/" + w.Path
			}
		}
	}
	return nil
}

// Catalog returns every webhook name any feature can register, enabled or
// not. This is the ownership set: reconciliation may delete a remote
// subscription only when its name is in here.
func (s *AppSpec) Catalog() map[string]bool {
	out := map[string]bool{}
	for _, f := range s.Features {
		for _, w := range f.Webhooks {
			out[w.Name] = true
		}
	}
	return out
}

// Template returns the webhook template registered under name, if any.
func (s *AppSpec) Template(name string) (WebhookTemplate, bool) {
	for _, f := range s.Features {
		for _, w := range f.Webhooks {
			if w.Name == name {
				return w, true
			}
		}
	}
	return WebhookTemplate{}, false
}

// Defaults returns the flag state of a fresh installation.
func (s *AppSpec) Defaults() map[string]bool {
	out := map[string]bool{}
	for _, f := range s.Features {
		out[f.Key] = f.Default
	}
	return out
}

// Enabled reports whether a feature is on under the given flags, falling
// back to the feature's default when the flag was never set.
func (s *AppSpec) Enabled(flags map[string]bool, key string) bool {
	if v, ok := flags[key]; ok {
		return v
	}
	for _, f := range s.Features {
		if f.Key == key {
			return f.Default
		}
	}
	return false
}

// DesiredManifest expands the templates of every enabled feature into the
// manifest reconciliation should converge the instance to. A feature that is
// off contributes nothing, exactly as if it never existed.
func (s *AppSpec) DesiredManifest(baseURL string, flags map[string]bool) []webhooks.ManifestEntry {
	base := strings.TrimRight(baseURL, "/")
	var out []webhooks.ManifestEntry
	for _, f := range s.Features {
		if !s.Enabled(flags, f.Key) {
			continue
		}
		for _, w := range f.Webhooks {
			out = append(out, webhooks.ManifestEntry{
				Name:      w.Name,
				TargetURL: base + w.Path,
				Events:    append([]string(nil), w.Events...),
				Active:    true,
				Delivery:  w.Delivery,
			})
		}
	}
	return out
}
