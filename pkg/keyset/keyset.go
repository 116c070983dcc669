// pkg/keyset/keyset.go
package keyset

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"go.uber.org/zap"

	"tenon/pkg/metrics"
)

// WellKnownPath is appended to an instance's origin to locate its key set.
const WellKnownPath = "/.well-known/jwks.json"

// DefaultTTL bounds how long a fetched key set is reused without a refetch.
const DefaultTTL = 6 * time.Hour

// Source identifies where an instance's keys live and which dashboard
// origin to present when fetching them.
type Source struct {
	InstanceURL  string
	DashboardURL string
	// JWKSURL overrides the derived endpoint when set.
	JWKSURL string
}

// KeySet is the cached verification material of one instance.
type KeySet struct {
	InstanceURL string
	Keys        jwk.Set
	FetchedAt   time.Time
}

// UnavailableError reports that the key set endpoint could not be used.
// Endpoint is always populated so operators can see which URL failed.
type UnavailableError struct {
	Endpoint string
	Status   int
	Err      error
}

func (e *UnavailableError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("key set unavailable: %s returned %d", e.Endpoint, e.Status)
	}
	return fmt.Sprintf("key set unavailable: %s: %v", e.Endpoint, e.Err)
}

func (e *UnavailableError) Unwrap() error { return e.Err }

// Endpoint derives the key set URL from the instance URL's origin.
func Endpoint(instanceURL string) string {
	u, err := url.Parse(instanceURL)
	if err != nil || u.Host == "" {
		return strings.TrimRight(instanceURL, "/") + WellKnownPath
	}
	return u.Scheme + "://" + u.Host + WellKnownPath
}

// Origin normalizes a stored dashboard host into the https origin presented
// as Origin and Referer. The key-serving side gates on these headers, so an
// empty result means fetches will fail upstream, not here.
func Origin(dashboardURL string) string {
	d := strings.TrimSpace(dashboardURL)
	if d == "" {
		return ""
	}
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	return "https://" + strings.TrimRight(d, "/")
}

// Fetcher resolves and caches instance key sets.
type Fetcher struct {
	client *http.Client
	cache  *Cache
	log    *zap.SugaredLogger
}

func NewFetcher(ttl time.Duration, log *zap.SugaredLogger) *Fetcher {
	return &Fetcher{
		client: &http.Client{Timeout: 10 * time.Second},
		cache:  NewCache(ttl),
		log:    log,
	}
}

// Resolve returns the instance's key set, fetching it when not cached.
func (f *Fetcher) Resolve(ctx context.Context, src Source) (KeySet, error) {
	if ks, ok := f.cache.Get(src.InstanceURL); ok {
		return ks, nil
	}
	return f.fetch(ctx, src)
}

// Refresh drops the cached entry and fetches anew. Callers use it when a
// verification failed against a key id the cached set does not contain.
func (f *Fetcher) Refresh(ctx context.Context, src Source) (KeySet, error) {
	f.Invalidate(src.InstanceURL)
	return f.fetch(ctx, src)
}

// Invalidate drops the cached key set for an instance.
func (f *Fetcher) Invalidate(instanceURL string) {
	f.cache.Invalidate(instanceURL)
	metrics.KeySetInvalidations.Inc()
}

func (f *Fetcher) fetch(ctx context.Context, src Source) (KeySet, error) {
	endpoint := src.JWKSURL
	if endpoint == "" {
		endpoint = Endpoint(src.InstanceURL)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return KeySet{}, &UnavailableError{Endpoint: endpoint, Err: err}
	}
	if o := Origin(src.DashboardURL); o != "" {
		req.Header.Set("Origin", o)
		req.Header.Set("Referer", o)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		metrics.KeySetFetches.WithLabelValues("error").Inc()
		return KeySet{}, &UnavailableError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.KeySetFetches.WithLabelValues("error").Inc()
		return KeySet{}, &UnavailableError{Endpoint: endpoint, Status: resp.StatusCode}
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		metrics.KeySetFetches.WithLabelValues("error").Inc()
		return KeySet{}, &UnavailableError{Endpoint: endpoint, Err: err}
	}
	keys, err := jwk.Parse(body)
	if err != nil {
		metrics.KeySetFetches.WithLabelValues("error").Inc()
		return KeySet{}, &UnavailableError{Endpoint: endpoint, Err: fmt.Errorf("parse keys: %w", err)}
	}
	metrics.KeySetFetches.WithLabelValues("ok").Inc()
	ks := KeySet{InstanceURL: src.InstanceURL, Keys: keys, FetchedAt: time.Now()}
	f.cache.Put(src.InstanceURL, ks)
	return ks, nil
}
