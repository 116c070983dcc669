// pkg/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TokenVerifications counts verifier outcomes. result is "ok" or the
	// failure reason.
	TokenVerifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenon_token_verifications_total",
		Help: "Token verification attempts by result.",
	}, []string{"result"})

	// KeySetFetches counts remote key set fetches (cache misses and
	// rotation refreshes).
	KeySetFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenon_keyset_fetches_total",
		Help: "Key set endpoint fetches by outcome.",
	}, []string{"outcome"})

	// KeySetInvalidations counts cache entries dropped before their TTL,
	// typically on key rotation.
	KeySetInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tenon_keyset_invalidations_total",
		Help: "Key set cache invalidations.",
	})

	// WebhookDeliveries counts inbound webhook deliveries by hook name and
	// result.
	WebhookDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenon_webhook_deliveries_total",
		Help: "Inbound webhook deliveries by hook and result.",
	}, []string{"hook", "result"})

	// WebhookMutations counts remote webhook registry writes.
	WebhookMutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenon_webhook_mutations_total",
		Help: "Webhook registry mutations by operation and outcome.",
	}, []string{"op", "outcome"})

	// ReconcileRuns observes reconciliation passes.
	ReconcileRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenon_reconcile_runs_total",
		Help: "Webhook reconciliation passes by outcome.",
	}, []string{"outcome"})

	// ReconcileDuration observes reconciliation latency.
	ReconcileDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tenon_reconcile_duration_seconds",
		Help:    "Duration of webhook reconciliation passes.",
		Buckets: prometheus.DefBuckets,
	})
)
