// pkg/webhooks/differ.go
package webhooks

// Plan is the minimal set of remote mutations that converges actual state
// onto the desired manifest. Applying an empty plan is a no-op, so running
// reconciliation twice without a manifest change mutates nothing.
type Plan struct {
	Creates []ManifestEntry
	Updates []Update
	Deletes []RemoteWebhook
}

// Update pairs a desired shape with the remote id it replaces in full.
type Update struct {
	RemoteID string
	Entry    ManifestEntry
}

func (p Plan) Empty() bool {
	return len(p.Creates) == 0 && len(p.Updates) == 0 && len(p.Deletes) == 0
}

func deliveryOf(d string) string {
	if d == "" {
		return DeliveryAsync
	}
	return d
}

// Diff matches desired against actual by (name, target URL). owned reports
// whether a webhook name originated here; a remote webhook outside the
// owned set is never deleted, whatever the desired manifest says, so an
// unrelated actor's subscriptions survive every reconcile. A nil owned
// claims nothing and therefore deletes nothing.
func Diff(desired []ManifestEntry, actual []RemoteWebhook, owned func(name string) bool) Plan {
	var plan Plan
	byKey := make(map[entryKey]RemoteWebhook, len(actual))
	for _, r := range actual {
		byKey[keyOf(r.Name, r.TargetURL)] = r
	}
	seen := make(map[entryKey]bool, len(desired))
	for _, d := range desired {
		k := keyOf(d.Name, d.TargetURL)
		seen[k] = true
		r, ok := byKey[k]
		if !ok {
			plan.Creates = append(plan.Creates, d)
			continue
		}
		if !sameEvents(d.Events, r.Events) || d.Active != r.Active || deliveryOf(d.Delivery) != deliveryOf(r.Delivery) {
			plan.Updates = append(plan.Updates, Update{RemoteID: r.RemoteID, Entry: d})
		}
	}
	for _, r := range actual {
		if seen[keyOf(r.Name, r.TargetURL)] {
			continue
		}
		if owned == nil || !owned(r.Name) {
			continue
		}
		plan.Deletes = append(plan.Deletes, r)
	}
	return plan
}
