// pkg/webhooks/sync.go
package webhooks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"tenon/pkg/metrics"
)

// EntryError records one failed remote mutation.
type EntryError struct {
	Op   string
	Name string
	Err  error
}

func (e EntryError) Error() string { return fmt.Sprintf("%s %s: %v", e.Op, e.Name, e.Err) }
func (e EntryError) Unwrap() error { return e.Err }

// PartialError aggregates the entries that failed in one reconcile run. The
// run itself kept going; failed entries get retried naturally on the next
// mutating request.
type PartialError struct {
	Failed []EntryError
}

func (e *PartialError) Error() string {
	msgs := make([]string, 0, len(e.Failed))
	for _, f := range e.Failed {
		msgs = append(msgs, f.Error())
	}
	return fmt.Sprintf("%d webhook mutations failed: %s", len(e.Failed), strings.Join(msgs, "; "))
}

// Result counts the mutations a run applied successfully.
type Result struct {
	Created int
	Updated int
	Deleted int
}

// Synchronizer applies diff plans against a remote registry with a bounded
// number of concurrent calls per batch.
type Synchronizer struct {
	log     *zap.SugaredLogger
	workers int
}

func NewSynchronizer(log *zap.SugaredLogger, workers int) *Synchronizer {
	if workers < 1 {
		workers = 1
	}
	return &Synchronizer{log: log, workers: workers}
}

type job struct {
	op   string
	name string
	run  func(context.Context) error
}

// Reconcile converges the instance's registry onto desired. Deletes run as
// a batch before creates and updates so a renamed hook never trips a
// duplicate-name conflict remotely; within a batch order is free. A failed
// entry is logged and collected, not fatal to the rest of the batch.
func (s *Synchronizer) Reconcile(ctx context.Context, remote Remote, desired []ManifestEntry, owned func(string) bool) (Result, error) {
	start := time.Now()
	actual, err := remote.List(ctx)
	if err != nil {
		metrics.ReconcileRuns.WithLabelValues("error").Inc()
		return Result{}, fmt.Errorf("list remote webhooks: %w", err)
	}
	plan := Diff(desired, actual, owned)

	var res Result
	var failed []EntryError

	del := make([]job, 0, len(plan.Deletes))
	for _, r := range plan.Deletes {
		r := r
		del = append(del, job{op: "delete", name: r.Name, run: func(ctx context.Context) error {
			return remote.Delete(ctx, r.RemoteID)
		}})
	}
	failed = append(failed, s.apply(ctx, del, &res)...)

	rest := make([]job, 0, len(plan.Creates)+len(plan.Updates))
	for _, e := range plan.Creates {
		e := e
		rest = append(rest, job{op: "create", name: e.Name, run: func(ctx context.Context) error {
			return remote.Create(ctx, e)
		}})
	}
	for _, u := range plan.Updates {
		u := u
		rest = append(rest, job{op: "update", name: u.Entry.Name, run: func(ctx context.Context) error {
			return remote.Update(ctx, u.RemoteID, u.Entry)
		}})
	}
	failed = append(failed, s.apply(ctx, rest, &res)...)

	metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
	if len(failed) > 0 {
		metrics.ReconcileRuns.WithLabelValues("partial").Inc()
		return res, &PartialError{Failed: failed}
	}
	metrics.ReconcileRuns.WithLabelValues("ok").Inc()
	return res, nil
}

func (s *Synchronizer) apply(ctx context.Context, jobs []job, res *Result) []EntryError {
	if len(jobs) == 0 {
		return nil
	}
	var (
		mu     sync.Mutex
		failed []EntryError
		wg     sync.WaitGroup
		sem    = make(chan struct{}, s.workers)
	)
	for _, j := range jobs {
		j := j
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			err := j.run(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				metrics.WebhookMutations.WithLabelValues(j.op, "error").Inc()
				s.log.Warnw("webhook mutation failed", "op", j.op, "name", j.name, "err", err)
				failed = append(failed, EntryError{Op: j.op, Name: j.name, Err: err})
				return
			}
			metrics.WebhookMutations.WithLabelValues(j.op, "ok").Inc()
			switch j.op {
			case "create":
				res.Created++
			case "update":
				res.Updated++
			case "delete":
				res.Deleted++
			}
		}()
	}
	wg.Wait()
	return failed
}
