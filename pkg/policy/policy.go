// pkg/policy/policy.go
package policy

import (
	"context"
	"os"

	"github.com/open-policy-agent/opa/rego"
	"go.uber.org/zap"
)

// Decision is the outcome of evaluating the operation policy.
type Decision struct {
	Allow   bool
	Reasons []string
}

// Input is what the policy sees for one mutating operation.
type Input struct {
	Operation   string
	AppID       string
	InstanceURL string
	Flags       map[string]bool
}

// Gate evaluates an optional rego policy before mutating operations run.
// Deployments that ship no policy file allow everything; a policy that
// fails to evaluate blocks, never silently allows.
type Gate struct {
	log    *zap.SugaredLogger
	module string
}

// Load reads the policy module at path. An empty path yields an allow-all
// gate.
func Load(path string, log *zap.SugaredLogger) (*Gate, error) {
	g := &Gate{log: log}
	if path == "" {
		return g, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	g.module = string(b)
	return g, nil
}

// Evaluate queries data.app for {allow, reasons} with the operation input.
func (g *Gate) Evaluate(ctx context.Context, in Input) Decision {
	if g.module == "" {
		return Decision{Allow: true}
	}
	r := rego.New(
		rego.Query("data.app"),
		rego.Module("app.rego", g.module),
		rego.Input(map[string]any{
			"operation":    in.Operation,
			"app_id":       in.AppID,
			"instance_url": in.InstanceURL,
			"flags":        flagDoc(in.Flags),
		}),
	)
	rs, err := r.Eval(ctx)
	if err != nil || len(rs) == 0 || len(rs[0].Expressions) == 0 {
		if err != nil {
			g.log.Warnw("policy eval failed", "operation", in.Operation, "err", err)
		}
		return Decision{Reasons: []string{"policy_error"}}
	}
	var dec Decision
	if m, ok := rs[0].Expressions[0].Value.(map[string]any); ok {
		if a, ok := m["allow"].(bool); ok {
			dec.Allow = a
		}
		switch rsn := m["reasons"].(type) {
		case []any:
			for _, r := range rsn {
				if s, ok := r.(string); ok {
					dec.Reasons = append(dec.Reasons, s)
				}
			}
		}
	}
	return dec
}

func flagDoc(flags map[string]bool) map[string]any {
	out := make(map[string]any, len(flags))
	for k, v := range flags {
		out[k] = v
	}
	return out
}
