// pkg/pipeline/http.go
package pipeline

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"tenon/pkg/auth"
	"tenon/pkg/authstore"
	"tenon/pkg/keyset"
	"tenon/pkg/problems"
)

type rcKey struct{}

// WithReqContext stores the pipeline result for handlers downstream.
func WithReqContext(ctx context.Context, rc ReqContext) context.Context {
	return context.WithValue(ctx, rcKey{}, rc)
}

// FromContext returns the pipeline result, or the zero value outside a
// guarded route.
func FromContext(ctx context.Context) ReqContext {
	if rc, ok := ctx.Value(rcKey{}).(ReqContext); ok {
		return rc
	}
	return ReqContext{}
}

// Guard adapts the stage pipeline to HTTP middleware. It seeds a ReqContext
// from request headers, runs identify, verify and bind, and maps failures to
// problem responses without leaking why a token was rejected.
type Guard struct {
	store         authstore.Store
	verifier      *auth.Verifier
	internalToken string
	log           *zap.SugaredLogger
}

func NewGuard(store authstore.Store, verifier *auth.Verifier, internalToken string, log *zap.SugaredLogger) *Guard {
	return &Guard{store: store, verifier: verifier, internalToken: internalToken, log: log}
}

// Protect wraps next with the full pipeline for an operation that needs the
// given permissions on top of the baseline.
func (g *Guard) Protect(required []string, next http.Handler) http.Handler {
	runner := NewRunner(
		Identify(g.store),
		VerifyToken(g.verifier, auth.Required(required...)),
		BindClient(),
	)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rc, err := g.seed(r)
		if err == nil {
			rc, err = runner.Run(r.Context(), rc)
		}
		if err != nil {
			g.deny(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithReqContext(r.Context(), rc)))
	})
}

// seed extracts identity material from headers. The app id comes from the
// X-App-Id header when the dashboard sends it, otherwise from the token's
// unverified claims. Trusting the unverified claim here is fine: it only
// selects which key set the signature is checked against.
func (g *Guard) seed(r *http.Request) (ReqContext, error) {
	rc := ReqContext{Source: SourceDashboard}
	if g.internalToken != "" {
		got := r.Header.Get("X-Internal-Token")
		if got != "" && subtle.ConstantTimeCompare([]byte(got), []byte(g.internalToken)) == 1 {
			rc.Source = SourceInternal
		}
	}
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		rc.RawToken = strings.TrimSpace(h[7:])
	}
	rc.AppID = r.Header.Get("X-App-Id")
	if rc.AppID == "" && rc.RawToken != "" {
		id, err := auth.PeekAppID(rc.RawToken)
		if err != nil {
			return rc, &auth.VerificationError{Reason: auth.ReasonMalformed, Err: err}
		}
		rc.AppID = id
	}
	return rc, nil
}

// deny renders a failure. Verification reasons stay in the log; the response
// body is the same for every rejected token.
func (g *Guard) deny(w http.ResponseWriter, err error) {
	var ve *auth.VerificationError
	var ue *keyset.UnavailableError
	switch {
	case errors.Is(err, ErrUnauthenticated):
		problems.Write(w, http.StatusUnauthorized, "unauthenticated", "Unauthenticated", "no installation matches the presented identity")
	case errors.As(err, &ve):
		g.log.Warnw("token rejected", "reason", ve.Reason, "err", ve.Unwrap())
		problems.Write(w, http.StatusUnauthorized, "authorization-denied", "Authorization denied", "")
	case errors.As(err, &ue):
		g.log.Warnw("key set unavailable", "endpoint", ue.Endpoint, "err", err)
		w.Header().Set("Retry-After", "30")
		problems.Write(w, http.StatusServiceUnavailable, "key-set-unavailable", "Key set unavailable", "")
	default:
		g.log.Errorw("pipeline failure", "err", err)
		problems.Write(w, http.StatusInternalServerError, "internal", "Internal error", "")
	}
}
