// pkg/webhooks/sync_test.go
package webhooks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

type fakeRemote struct {
	mu        sync.Mutex
	byID      map[string]RemoteWebhook
	nextID    int
	ops       []string
	failNames map[string]error
	listErr   error

	delay     time.Duration
	inFlight  int32
	maxFlight int32
}

func newFakeRemote(hooks ...RemoteWebhook) *fakeRemote {
	f := &fakeRemote{byID: map[string]RemoteWebhook{}, failNames: map[string]error{}}
	for _, h := range hooks {
		f.byID[h.RemoteID] = h
	}
	return f
}

func (f *fakeRemote) track() func() {
	n := atomic.AddInt32(&f.inFlight, 1)
	for {
		m := atomic.LoadInt32(&f.maxFlight)
		if n <= m || atomic.CompareAndSwapInt32(&f.maxFlight, m, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return func() { atomic.AddInt32(&f.inFlight, -1) }
}

func (f *fakeRemote) List(ctx context.Context) ([]RemoteWebhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]RemoteWebhook, 0, len(f.byID))
	for _, h := range f.byID {
		out = append(out, h)
	}
	return out, nil
}

func (f *fakeRemote) Create(ctx context.Context, e ManifestEntry) error {
	defer f.track()()
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failNames[e.Name]; err != nil {
		return err
	}
	f.nextID++
	id := fmt.Sprintf("%d", f.nextID)
	f.byID[id] = RemoteWebhook{
		RemoteID: id, Name: e.Name, TargetURL: e.TargetURL,
		Events: e.Events, Active: e.Active, Delivery: e.Delivery,
	}
	f.ops = append(f.ops, "create "+e.Name)
	return nil
}

func (f *fakeRemote) Update(ctx context.Context, remoteID string, e ManifestEntry) error {
	defer f.track()()
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failNames[e.Name]; err != nil {
		return err
	}
	f.byID[remoteID] = RemoteWebhook{
		RemoteID: remoteID, Name: e.Name, TargetURL: e.TargetURL,
		Events: e.Events, Active: e.Active, Delivery: e.Delivery,
	}
	f.ops = append(f.ops, "update "+e.Name)
	return nil
}

func (f *fakeRemote) Delete(ctx context.Context, remoteID string) error {
	defer f.track()()
	f.mu.Lock()
	defer f.mu.Unlock()
	h, ok := f.byID[remoteID]
	if !ok {
		return fmt.Errorf("no webhook %s", remoteID)
	}
	if err := f.failNames[h.Name]; err != nil {
		return err
	}
	delete(f.byID, remoteID)
	f.ops = append(f.ops, "delete "+h.Name)
	return nil
}

func (f *fakeRemote) mutations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.ops)
}

func newSync(workers int) *Synchronizer {
	return NewSynchronizer(zap.NewNop().Sugar(), workers)
}

func TestReconcileConvergesAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	desired := []ManifestEntry{
		entry("order-created", "https://app/wh/orders", "ORDER_CREATED"),
		entry("stock-low", "https://app/wh/stock", "STOCK_LOW"),
	}
	owned := ownedSet("order-created", "stock-low")

	res, err := newSync(2).Reconcile(ctx, remote, desired, owned)
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.Created != 2 || res.Updated != 0 || res.Deleted != 0 {
		t.Fatalf("result = %+v", res)
	}

	before := remote.mutations()
	res, err = newSync(2).Reconcile(ctx, remote, desired, owned)
	if err != nil {
		t.Fatalf("second reconcile: %v", err)
	}
	if res.Created+res.Updated+res.Deleted != 0 {
		t.Fatalf("second run mutated: %+v", res)
	}
	if remote.mutations() != before {
		t.Fatalf("second run issued remote calls")
	}
}

func TestReconcileDeletesBeforeCreates(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote(hook("1", "order-created", "https://app/wh", "ORDER_CREATED"))
	desired := []ManifestEntry{entry("order-paid", "https://app/wh/paid", "ORDER_PAID")}

	_, err := newSync(4).Reconcile(ctx, remote, desired, ownedSet("order-created", "order-paid"))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if len(remote.ops) != 2 {
		t.Fatalf("ops = %v", remote.ops)
	}
	if !strings.HasPrefix(remote.ops[0], "delete ") || !strings.HasPrefix(remote.ops[1], "create ") {
		t.Fatalf("ops out of order: %v", remote.ops)
	}
}

func TestReconcileUpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote(hook("1", "order-created", "https://app/wh", "ORDER_CREATED"))
	desired := []ManifestEntry{entry("order-created", "https://app/wh", "ORDER_CREATED", "ORDER_PAID")}

	res, err := newSync(1).Reconcile(ctx, remote, desired, ownedSet("order-created"))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.Updated != 1 || res.Created != 0 || res.Deleted != 0 {
		t.Fatalf("result = %+v", res)
	}
	if got := remote.byID["1"].Events; len(got) != 2 {
		t.Fatalf("events = %v", got)
	}
}

func TestReconcilePartialFailure(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.failNames["stock-low"] = errors.New("upstream 500")
	desired := []ManifestEntry{
		entry("order-created", "https://app/wh/orders", "ORDER_CREATED"),
		entry("stock-low", "https://app/wh/stock", "STOCK_LOW"),
		entry("order-paid", "https://app/wh/paid", "ORDER_PAID"),
	}

	res, err := newSync(1).Reconcile(ctx, remote, desired, ownedSet("order-created", "stock-low", "order-paid"))
	if res.Created != 2 {
		t.Fatalf("result = %+v", res)
	}
	var pe *PartialError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want PartialError", err)
	}
	if len(pe.Failed) != 1 || pe.Failed[0].Name != "stock-low" || pe.Failed[0].Op != "create" {
		t.Fatalf("failed = %+v", pe.Failed)
	}

	// The failed entry is retried on the next run; nothing else moves.
	delete(remote.failNames, "stock-low")
	res, err = newSync(1).Reconcile(ctx, remote, desired, ownedSet("order-created", "stock-low", "order-paid"))
	if err != nil {
		t.Fatalf("retry reconcile: %v", err)
	}
	if res.Created != 1 {
		t.Fatalf("retry result = %+v", res)
	}
}

func TestReconcileListFailureIsFatal(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.listErr = errors.New("connection refused")

	_, err := newSync(1).Reconcile(ctx, remote, nil, nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	var pe *PartialError
	if errors.As(err, &pe) {
		t.Fatalf("list failure reported as partial: %v", err)
	}
}

func TestReconcileLeavesUnownedAlone(t *testing.T) {
	ctx := context.Background()
	foreign := hook("7", "someone-elses-hook", "https://other/wh", "ORDER_CREATED")
	remote := newFakeRemote(foreign)

	res, err := newSync(2).Reconcile(ctx, remote, nil, ownedSet("order-created"))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if res.Created+res.Updated+res.Deleted != 0 {
		t.Fatalf("result = %+v", res)
	}
	if _, ok := remote.byID["7"]; !ok {
		t.Fatalf("foreign webhook was deleted")
	}
}

func TestReconcileBoundsConcurrency(t *testing.T) {
	ctx := context.Background()
	remote := newFakeRemote()
	remote.delay = 10 * time.Millisecond
	var desired []ManifestEntry
	names := make([]string, 0, 6)
	for i := 0; i < 6; i++ {
		name := fmt.Sprintf("hook-%d", i)
		names = append(names, name)
		desired = append(desired, entry(name, "https://app/wh/"+name, "EVENT"))
	}

	_, err := newSync(2).Reconcile(ctx, remote, desired, ownedSet(names...))
	if err != nil {
		t.Fatalf("reconcile: %v", err)
	}
	if max := atomic.LoadInt32(&remote.maxFlight); max > 2 {
		t.Fatalf("in-flight peaked at %d, want <= 2", max)
	}
	if remote.mutations() != 6 {
		t.Fatalf("mutations = %d", remote.mutations())
	}
}
