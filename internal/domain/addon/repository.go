package addon

import (
	"context"

	"github.com/qazuor/qzpay-sub003/internal/types"
)

type Filter struct {
	types.QueryFilter
	Active *bool
}

// Repository defines the interface for add-on data access
type Repository interface {
	Create(ctx context.Context, a *AddOn) error
	Get(ctx context.Context, id string) (*AddOn, error)
	List(ctx context.Context, filter *Filter) ([]*AddOn, error)
	Update(ctx context.Context, a *AddOn) error
	Delete(ctx context.Context, id string) error

	Attach(ctx context.Context, sa *SubscriptionAddOn) error
	GetAttachment(ctx context.Context, id string) (*SubscriptionAddOn, error)
	ListBySubscription(ctx context.Context, subscriptionID string) ([]*SubscriptionAddOn, error)
	UpdateAttachment(ctx context.Context, sa *SubscriptionAddOn) error
}
