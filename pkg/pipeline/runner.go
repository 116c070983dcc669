// pkg/pipeline/runner.go
package pipeline

import "context"

// Stage transforms the request context or fails the request. Failing returns
// the error verbatim so the HTTP layer can map it by type.
type Stage func(ctx context.Context, rc ReqContext) (ReqContext, error)

// Runner executes stages in declaration order and stops at the first error.
// Stages after a failed one never run.
type Runner struct {
	stages []Stage
}

func NewRunner(stages ...Stage) *Runner {
	return &Runner{stages: stages}
}

func (r *Runner) Run(ctx context.Context, rc ReqContext) (ReqContext, error) {
	for _, s := range r.stages {
		next, err := s(ctx, rc)
		if err != nil {
			return rc, err
		}
		rc = next
	}
	return rc, nil
}
