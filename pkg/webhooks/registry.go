// pkg/webhooks/registry.go
package webhooks

import (
	"context"

	"tenon/pkg/platform"
)

// Remote is the instance's webhook registry as reconciliation sees it.
type Remote interface {
	List(ctx context.Context) ([]RemoteWebhook, error)
	Create(ctx context.Context, e ManifestEntry) error
	Update(ctx context.Context, remoteID string, e ManifestEntry) error
	Delete(ctx context.Context, remoteID string) error
}

const (
	listQuery = `query Webhooks {
  webhooks {
    id
    name
    targetUrl
    events
    active
    delivery
  }
}`
	createMutation = `mutation WebhookCreate($input: WebhookInput!) {
  webhookCreate(input: $input) { id }
}`
	updateMutation = `mutation WebhookUpdate($id: ID!, $input: WebhookInput!) {
  webhookUpdate(id: $id, input: $input) { id }
}`
	deleteMutation = `mutation WebhookDelete($id: ID!) {
  webhookDelete(id: $id) { deletedId }
}`
)

// Registry implements Remote over an instance-bound GraphQL client.
type Registry struct {
	client *platform.Client
}

func NewRegistry(client *platform.Client) *Registry {
	return &Registry{client: client}
}

func (r *Registry) List(ctx context.Context) ([]RemoteWebhook, error) {
	var out []RemoteWebhook
	if err := r.client.QueryPath(ctx, listQuery, nil, "webhooks", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func input(e ManifestEntry) map[string]any {
	return map[string]any{
		"name":      e.Name,
		"targetUrl": e.TargetURL,
		"events":    e.Events,
		"active":    e.Active,
		"delivery":  deliveryOf(e.Delivery),
	}
}

func (r *Registry) Create(ctx context.Context, e ManifestEntry) error {
	return r.client.Query(ctx, createMutation, map[string]any{"input": input(e)}, nil)
}

func (r *Registry) Update(ctx context.Context, remoteID string, e ManifestEntry) error {
	return r.client.Query(ctx, updateMutation, map[string]any{"id": remoteID, "input": input(e)}, nil)
}

func (r *Registry) Delete(ctx context.Context, remoteID string) error {
	return r.client.Query(ctx, deleteMutation, map[string]any{"id": remoteID}, nil)
}
