package webhookevent

import (
	"context"

	"github.com/qazuor/qzpay-sub003/internal/types"
)

type Filter struct {
	types.QueryFilter
	Provider    types.ProviderKind
	EventStatus types.WebhookEventStatus
	EventType   string
}

// Repository defines the interface for webhook event data access
type Repository interface {
	Create(ctx context.Context, e *WebhookEvent) error
	Get(ctx context.Context, id string) (*WebhookEvent, error)
	// GetByProviderEventID is the idempotency lookup: one row per
	// (provider, provider event id)
	GetByProviderEventID(ctx context.Context, provider types.ProviderKind, providerEventID string) (*WebhookEvent, error)
	List(ctx context.Context, filter *Filter) ([]*WebhookEvent, error)
	Count(ctx context.Context, filter *Filter) (int, error)
	Update(ctx context.Context, e *WebhookEvent) error
	// ListDeadLettered returns events parked after exhausting delivery attempts
	ListDeadLettered(ctx context.Context, filter *types.QueryFilter) ([]*WebhookEvent, error)
}
