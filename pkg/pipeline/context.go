// pkg/pipeline/context.go
package pipeline

import (
	"github.com/lestrrat-go/jwx/v2/jwt"

	"tenon/pkg/authstore"
	"tenon/pkg/platform"
)

// Source distinguishes browser-originated dashboard calls, which are always
// verified, from trusted server-originated calls, which skip verification.
type Source string

const (
	SourceDashboard Source = "dashboard"
	SourceInternal  Source = "internal"
)

// ReqContext accumulates what each stage established. A stage returns an
// extended copy; later stages trust earlier ones and never re-check.
type ReqContext struct {
	RawToken string
	AppID    string
	Source   Source

	// Set by Identify.
	InstanceURL string
	Record      authstore.Record

	// Set by VerifyToken (nil for internal calls).
	Claims jwt.Token

	// Set by BindClient.
	Client *platform.Client
}
