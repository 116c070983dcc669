// pkg/webhooks/manifest.go
package webhooks

import "sort"

// Delivery modes accepted by the instance registry.
const (
	DeliveryAsync = "async"
	DeliverySync  = "sync"
)

// ManifestEntry is one subscription the app wants to exist on an instance.
// Entries are identified by (name, target URL); everything else is payload
// that can be updated in place.
type ManifestEntry struct {
	Name      string   `json:"name"`
	TargetURL string   `json:"targetUrl"`
	Events    []string `json:"events"`
	Active    bool     `json:"active"`
	Delivery  string   `json:"delivery,omitempty"`
}

// RemoteWebhook is a subscription as the instance reports it: the manifest
// shape plus the server-assigned id needed to update or delete it.
type RemoteWebhook struct {
	RemoteID  string   `json:"id"`
	Name      string   `json:"name"`
	TargetURL string   `json:"targetUrl"`
	Events    []string `json:"events"`
	Active    bool     `json:"active"`
	Delivery  string   `json:"delivery,omitempty"`
}

// Entry strips the remote id, leaving the comparable manifest shape.
func (r RemoteWebhook) Entry() ManifestEntry {
	return ManifestEntry{
		Name:      r.Name,
		TargetURL: r.TargetURL,
		Events:    r.Events,
		Active:    r.Active,
		Delivery:  r.Delivery,
	}
}

type entryKey struct {
	name      string
	targetURL string
}

func keyOf(name, targetURL string) entryKey {
	return entryKey{name: name, targetURL: targetURL}
}

// sameEvents compares event lists as sets; the registry does not promise a
// stable order.
func sameEvents(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}
