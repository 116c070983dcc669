// pkg/pipeline/stages.go
package pipeline

import (
	"context"
	"errors"

	"tenon/pkg/auth"
	"tenon/pkg/authstore"
	"tenon/pkg/platform"
)

// ErrUnauthenticated means no installation matches the claimed identity.
// Distinct from a verification failure: there was nothing to verify against.
var ErrUnauthenticated = errors.New("no installation matches the claimed identity")

// Identify resolves the claimed app id to its stored installation record.
// Everything downstream (key set endpoint, expected app id, API credentials)
// hangs off the record.
func Identify(store authstore.Store) Stage {
	return func(ctx context.Context, rc ReqContext) (ReqContext, error) {
		if rc.AppID == "" {
			return rc, ErrUnauthenticated
		}
		rec, err := store.Get(ctx, rc.AppID)
		if errors.Is(err, authstore.ErrNotFound) {
			return rc, ErrUnauthenticated
		}
		if err != nil {
			return rc, err
		}
		rc.Record = rec
		rc.InstanceURL = rec.InstanceURL
		return rc, nil
	}
}

// VerifyToken validates the bearer token against the installation's key set
// and required permissions. Internal calls were authenticated by shared
// secret already and skip this stage entirely.
func VerifyToken(v *auth.Verifier, required []string) Stage {
	return func(ctx context.Context, rc ReqContext) (ReqContext, error) {
		if rc.Source == SourceInternal {
			return rc, nil
		}
		claims, err := v.Verify(ctx, rc.RawToken, rc.Record, required)
		if err != nil {
			return rc, err
		}
		rc.Claims = claims
		return rc, nil
	}
}

// BindClient attaches an API client scoped to the caller's instance.
// Construction never fails; a dead instance surfaces on first use.
func BindClient() Stage {
	return func(ctx context.Context, rc ReqContext) (ReqContext, error) {
		rc.Client = platform.NewClient(rc.Record.InstanceURL, rc.Record.Token, rc.Record.DashboardURL)
		return rc, nil
	}
}
