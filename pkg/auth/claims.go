// pkg/auth/claims.go
package auth

import (
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwt"
)

// Baseline is granted to every dashboard token this app accepts, regardless
// of the operation it targets.
var Baseline = []string{"manage-app"}

// AppID returns the token's embedded application identifier.
func AppID(t jwt.Token) string {
	if v, ok := t.Get("app"); ok {
		s, _ := v.(string)
		return s
	}
	return ""
}

// Permissions returns the permission names the token grants. The claim is
// normally a JSON array; a space-separated string is tolerated.
func Permissions(t jwt.Token) []string {
	v, ok := t.Get("permissions")
	if !ok {
		return nil
	}
	switch p := v.(type) {
	case []any:
		out := make([]string, 0, len(p))
		for _, it := range p {
			if s, ok := it.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return p
	case string:
		return strings.Fields(p)
	}
	return nil
}

// Required returns the union of the baseline set and operation-specific
// permissions, de-duplicated, preserving order of first appearance.
func Required(extra ...string) []string {
	seen := make(map[string]struct{}, len(Baseline)+len(extra))
	out := make([]string, 0, len(Baseline)+len(extra))
	for _, p := range append(append([]string{}, Baseline...), extra...) {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// HasAll reports whether granted covers every required permission.
func HasAll(granted, required []string) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(granted))
	for _, g := range granted {
		have[g] = struct{}{}
	}
	for _, r := range required {
		if _, ok := have[r]; !ok {
			return false
		}
	}
	return true
}

// PeekAppID structurally decodes a token without verifying it and returns
// the embedded app identifier. Used before any record lookup, when the key
// set for the issuing instance is not yet known.
func PeekAppID(raw string) (string, error) {
	t, err := jwt.Parse([]byte(raw), jwt.WithVerify(false), jwt.WithValidate(false))
	if err != nil {
		return "", err
	}
	return AppID(t), nil
}
