// internal/hooks/receiver.go
package hooks

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/lestrrat-go/jwx/v2/jws"
	"go.uber.org/zap"

	"tenon/pkg/authstore"
	"tenon/pkg/features"
	"tenon/pkg/keyset"
	"tenon/pkg/metrics"
	"tenon/pkg/problems"
)

// Handler processes one verified webhook delivery.
type Handler func(ctx context.Context, rec authstore.Record, payload []byte) error

// Receiver terminates platform-originated webhook deliveries. A delivery is
// a POST to /webhooks/{name} with the event payload as body; the instance
// signs the payload with its key set and sends the detached JWS (compact,
// empty payload segment) in X-Signature. X-Instance-Url names the sender.
type Receiver struct {
	spec     *features.AppSpec
	store    authstore.Store
	keys     *keyset.Fetcher
	log      *zap.SugaredLogger
	handlers map[string]Handler
}

func NewReceiver(spec *features.AppSpec, store authstore.Store, keys *keyset.Fetcher, log *zap.SugaredLogger) *Receiver {
	return &Receiver{
		spec:     spec,
		store:    store,
		keys:     keys,
		log:      log,
		handlers: map[string]Handler{},
	}
}

// Handle registers the processing func for one webhook name. Deliveries for
// names without a handler are acknowledged and dropped; the platform keeps
// redelivering async hooks that 5xx, so an unhandled name must not error.
func (rv *Receiver) Handle(name string, h Handler) {
	rv.handlers[name] = h
}

func (rv *Receiver) Routes() chi.Router {
	r := chi.NewRouter()
	r.Post("/{name}", rv.serve)
	return r
}

func (rv *Receiver) serve(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if !rv.spec.Catalog()[name] {
		problems.Write(w, http.StatusNotFound, "unknown-webhook", "Unknown webhook", "no webhook named "+name)
		return
	}

	instanceURL := r.Header.Get("X-Instance-Url")
	if instanceURL == "" {
		metrics.WebhookDeliveries.WithLabelValues(name, "rejected").Inc()
		problems.Write(w, http.StatusBadRequest, "bad-request", "Bad request", "X-Instance-Url header is required")
		return
	}
	rec, err := rv.store.GetByURL(r.Context(), instanceURL)
	if err != nil {
		if !errors.Is(err, authstore.ErrNotFound) {
			rv.log.Errorw("delivery record lookup failed", "hook", name, "instance", instanceURL, "err", err)
			problems.Write(w, http.StatusInternalServerError, "internal", "Internal error", "")
			return
		}
		metrics.WebhookDeliveries.WithLabelValues(name, "rejected").Inc()
		rv.log.Warnw("delivery from unknown instance", "hook", name, "instance", instanceURL)
		problems.Write(w, http.StatusUnauthorized, "authorization-denied", "Authorization denied", "")
		return
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, 4<<20))
	if err != nil {
		problems.Write(w, http.StatusBadRequest, "bad-request", "Bad request", "unreadable body")
		return
	}

	if err := rv.verify(r.Context(), rec, r.Header.Get("X-Signature"), payload); err != nil {
		var ue *keyset.UnavailableError
		if errors.As(err, &ue) {
			rv.log.Warnw("delivery key set unavailable", "hook", name, "instance", instanceURL, "err", err)
			w.Header().Set("Retry-After", "30")
			problems.Write(w, http.StatusServiceUnavailable, "key-set-unavailable", "Key set unavailable", "")
			return
		}
		metrics.WebhookDeliveries.WithLabelValues(name, "rejected").Inc()
		rv.log.Warnw("delivery signature rejected", "hook", name, "instance", instanceURL, "err", err)
		problems.Write(w, http.StatusUnauthorized, "authorization-denied", "Authorization denied", "")
		return
	}

	if h, ok := rv.handlers[name]; ok {
		if err := h(r.Context(), rec, payload); err != nil {
			metrics.WebhookDeliveries.WithLabelValues(name, "error").Inc()
			rv.log.Errorw("delivery handler failed", "hook", name, "instance", instanceURL, "err", err)
			problems.Write(w, http.StatusInternalServerError, "internal", "Internal error", "")
			return
		}
	} else {
		rv.log.Infow("delivery for unhandled hook", "hook", name, "instance", instanceURL)
	}

	metrics.WebhookDeliveries.WithLabelValues(name, "ok").Inc()
	rv.log.Infow("delivery processed", "hook", name, "instance", instanceURL, "bytes", len(payload))
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"ok":true}`))
}

// verify checks the detached signature against the instance's key set. A
// signature referencing a key id the cached set lacks triggers exactly one
// refetch, the same rotation tolerance the token verifier has.
func (rv *Receiver) verify(ctx context.Context, rec authstore.Record, sig string, payload []byte) error {
	if sig == "" {
		return errors.New("missing X-Signature header")
	}
	src := keyset.Source{InstanceURL: rec.InstanceURL, DashboardURL: rec.DashboardURL, JWKSURL: rec.JWKSURL}
	ks, err := rv.keys.Resolve(ctx, src)
	if err != nil {
		return err
	}
	if kid, ok := signatureKeyID(sig); ok {
		if _, found := ks.Keys.LookupKeyID(kid); !found {
			if ks, err = rv.keys.Refresh(ctx, src); err != nil {
				return err
			}
		}
	}
	_, err = jws.Verify([]byte(sig),
		jws.WithKeySet(ks.Keys, jws.WithInferAlgorithmFromKey(true)),
		jws.WithDetachedPayload(payload),
	)
	return err
}

// signatureKeyID extracts the kid protected header without verifying.
func signatureKeyID(sig string) (string, bool) {
	msg, err := jws.Parse([]byte(sig))
	if err != nil || len(msg.Signatures()) == 0 {
		return "", false
	}
	kid := msg.Signatures()[0].ProtectedHeaders().KeyID()
	return kid, kid != ""
}
