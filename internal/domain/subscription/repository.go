package subscription

import (
	"context"
	"time"

	"github.com/qazuor/qzpay-sub003/internal/types"
)

type Filter struct {
	types.QueryFilter
	CustomerID         string
	PlanID             string
	SubscriptionStatus []types.SubscriptionStatus
}

// Repository defines the interface for subscription data access.
//
// Update must enforce optimistic concurrency: it matches on the version the
// caller read, bumps it by one, and fails with a version conflict when the
// row moved underneath. The lifecycle engine's read-compute-write sequence
// is only safe under that guarantee.
type Repository interface {
	Create(ctx context.Context, sub *Subscription) error
	Get(ctx context.Context, id string) (*Subscription, error)
	List(ctx context.Context, filter *Filter) ([]*Subscription, error)
	Count(ctx context.Context, filter *Filter) (int, error)
	Update(ctx context.Context, sub *Subscription) error
	Delete(ctx context.Context, id string) error

	ListByCustomer(ctx context.Context, customerID string) ([]*Subscription, error)
	GetActiveByCustomer(ctx context.Context, customerID string) (*Subscription, error)

	// Lifecycle scans; all return every matching row without pagination
	ListDueForRenewal(ctx context.Context, now time.Time) ([]*Subscription, error)
	ListTrialsEndingBy(ctx context.Context, cutoff time.Time) ([]*Subscription, error)
	ListPastDue(ctx context.Context) ([]*Subscription, error)
}
