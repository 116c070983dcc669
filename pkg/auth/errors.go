// pkg/auth/errors.go
package auth

import "fmt"

// Reason identifies which verification step rejected a token.
type Reason string

const (
	ReasonMalformed              Reason = "malformed"
	ReasonBadSignature           Reason = "bad-signature"
	ReasonAppMismatch            Reason = "app-mismatch"
	ReasonInsufficientPermission Reason = "insufficient-permission"
)

// VerificationError is terminal for the request. The reason is for logs and
// metrics; callers facing a browser collapse it to a single opaque denial.
type VerificationError struct {
	Reason Reason
	Err    error
}

func (e *VerificationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("token verification failed: %s: %v", e.Reason, e.Err)
	}
	return "token verification failed: " + string(e.Reason)
}

func (e *VerificationError) Unwrap() error { return e.Err }
