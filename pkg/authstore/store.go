// pkg/authstore/store.go
package authstore

import (
	"context"
	"errors"
)

// Record holds the credentials of one installed instance.
type Record struct {
	// InstanceURL is the instance's API endpoint and the unique key of the
	// record.
	InstanceURL string `json:"instance_url"`
	// Token authenticates this app against the instance API. Written once
	// per install; a re-install rotates it.
	Token string `json:"token"`
	// AppID is the identifier the instance assigned to this app at install
	// time. Stable for the lifetime of the installation.
	AppID string `json:"app_id"`
	// DashboardURL is the host of the dashboard that issued the install,
	// without scheme. Outbound calls to the instance present it as
	// Origin/Referer.
	DashboardURL string `json:"dashboard_url"`
	// JWKSURL optionally overrides the derived key set endpoint.
	JWKSURL string `json:"jwks_url,omitempty"`
}

// ErrNotFound is returned when no record matches the lookup.
var ErrNotFound = errors.New("auth record not found")

// Store persists one Record per installed instance.
type Store interface {
	// Get returns the record for an app ID.
	Get(ctx context.Context, appID string) (Record, error)
	// GetByURL returns the record for an instance URL.
	GetByURL(ctx context.Context, instanceURL string) (Record, error)
	// Set inserts or replaces the record keyed by its InstanceURL.
	Set(ctx context.Context, rec Record) error
	// Delete removes the record for an instance URL.
	Delete(ctx context.Context, instanceURL string) error
	// List returns all records.
	List(ctx context.Context) ([]Record, error)
	// Ready reports whether the backing store is reachable.
	Ready(ctx context.Context) error
}
