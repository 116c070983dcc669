// pkg/compat/compat.go
package compat

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// IncompatibleError reports a platform outside the supported range.
type IncompatibleError struct {
	Version    string
	Constraint string
}

func (e *IncompatibleError) Error() string {
	return fmt.Sprintf("platform version %s does not satisfy %s", e.Version, e.Constraint)
}

// Check reports whether an instance's platform version satisfies the range
// the app declares (e.g. ">=3.10"). An empty constraint accepts anything.
func Check(version, constraint string) error {
	if constraint == "" {
		return nil
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return fmt.Errorf("bad version constraint %q: %w", constraint, err)
	}
	v, err := semver.NewVersion(version)
	if err != nil {
		return fmt.Errorf("bad platform version %q: %w", version, err)
	}
	if !c.Check(v) {
		return &IncompatibleError{Version: version, Constraint: constraint}
	}
	return nil
}
