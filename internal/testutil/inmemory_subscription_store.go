package testutil

import (
	"context"
	"time"

	"github.com/samber/lo"

	"github.com/qazuor/qzpay-sub003/internal/domain/subscription"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// InMemorySubscriptionStore implements subscription.Repository with the
// optimistic-concurrency semantics the lifecycle engine depends on
type InMemorySubscriptionStore struct {
	*InMemoryStore[*subscription.Subscription]
}

// NewInMemorySubscriptionStore creates a new in-memory subscription store
func NewInMemorySubscriptionStore() *InMemorySubscriptionStore {
	return &InMemorySubscriptionStore{
		InMemoryStore: NewInMemoryStore[*subscription.Subscription](),
	}
}

func copySubscription(sub *subscription.Subscription) *subscription.Subscription {
	if sub == nil {
		return nil
	}

	clone := *sub
	clone.Metadata = sub.Metadata.Copy()
	if sub.ProviderIDs != nil {
		clone.ProviderIDs = make(types.ProviderIDs, len(sub.ProviderIDs))
		for k, v := range sub.ProviderIDs {
			clone.ProviderIDs[k] = v
		}
	}
	return &clone
}

func (s *InMemorySubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	clone := copySubscription(sub)
	if clone.Version == 0 {
		clone.Version = 1
		sub.Version = 1
	}
	return s.InMemoryStore.Create(ctx, sub.ID, clone)
}

func (s *InMemorySubscriptionStore) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copySubscription(sub), nil
}

// Update matches on the version the caller read and bumps it by one.
// A stale version fails with a version conflict, exactly like the
// `UPDATE ... WHERE id = $1 AND version = $2` the Postgres store runs.
func (s *InMemorySubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	current, err := s.InMemoryStore.Get(ctx, sub.ID)
	if err != nil {
		return err
	}
	if current.Version != sub.Version {
		return ierr.NewError("subscription was modified concurrently").
			WithHint("The subscription changed since it was read").
			WithReportableDetails(map[string]any{
				"subscription_id":  sub.ID,
				"expected_version": sub.Version,
				"actual_version":   current.Version,
			}).
			Mark(ierr.ErrVersionConflict)
	}

	clone := copySubscription(sub)
	clone.Version++
	if err := s.InMemoryStore.Update(ctx, sub.ID, clone); err != nil {
		return err
	}
	sub.Version = clone.Version
	return nil
}

func (s *InMemorySubscriptionStore) Delete(ctx context.Context, id string) error {
	return s.InMemoryStore.Delete(ctx, id)
}

func (s *InMemorySubscriptionStore) List(ctx context.Context, filter *subscription.Filter) ([]*subscription.Subscription, error) {
	items, err := s.InMemoryStore.List(ctx, filter, subscriptionFilterFn, subscriptionSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(sub *subscription.Subscription, _ int) *subscription.Subscription {
		return copySubscription(sub)
	}), nil
}

func (s *InMemorySubscriptionStore) Count(ctx context.Context, filter *subscription.Filter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, subscriptionFilterFn)
}

func (s *InMemorySubscriptionStore) ListByCustomer(ctx context.Context, customerID string) ([]*subscription.Subscription, error) {
	return s.listWhere(ctx, func(sub *subscription.Subscription) bool {
		return sub.CustomerID == customerID
	})
}

func (s *InMemorySubscriptionStore) GetActiveByCustomer(ctx context.Context, customerID string) (*subscription.Subscription, error) {
	subs, err := s.listWhere(ctx, func(sub *subscription.Subscription) bool {
		return sub.CustomerID == customerID &&
			sub.SubscriptionStatus == types.SubscriptionStatusActive
	})
	if err != nil {
		return nil, err
	}
	if len(subs) == 0 {
		return nil, ierr.NewError("no active subscription").
			WithHint("Customer has no active subscription").
			WithReportableDetails(map[string]any{"customer_id": customerID}).
			Mark(ierr.ErrNotFound)
	}
	return subs[0], nil
}

func (s *InMemorySubscriptionStore) ListDueForRenewal(ctx context.Context, now time.Time) ([]*subscription.Subscription, error) {
	return s.listWhere(ctx, func(sub *subscription.Subscription) bool {
		return sub.SubscriptionStatus == types.SubscriptionStatusActive &&
			!sub.CurrentPeriodEnd.After(now)
	})
}

func (s *InMemorySubscriptionStore) ListTrialsEndingBy(ctx context.Context, cutoff time.Time) ([]*subscription.Subscription, error) {
	return s.listWhere(ctx, func(sub *subscription.Subscription) bool {
		return sub.SubscriptionStatus == types.SubscriptionStatusTrialing &&
			sub.TrialEnd != nil && !sub.TrialEnd.After(cutoff)
	})
}

func (s *InMemorySubscriptionStore) ListPastDue(ctx context.Context) ([]*subscription.Subscription, error) {
	return s.listWhere(ctx, func(sub *subscription.Subscription) bool {
		return sub.SubscriptionStatus == types.SubscriptionStatusPastDue
	})
}

func (s *InMemorySubscriptionStore) listWhere(ctx context.Context, match func(*subscription.Subscription) bool) ([]*subscription.Subscription, error) {
	filterFn := func(_ context.Context, sub *subscription.Subscription, _ interface{}) bool {
		return !sub.IsDeleted() && match(sub)
	}
	items, err := s.InMemoryStore.List(ctx, nil, filterFn, subscriptionSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(sub *subscription.Subscription, _ int) *subscription.Subscription {
		return copySubscription(sub)
	}), nil
}

func subscriptionFilterFn(_ context.Context, sub *subscription.Subscription, filter interface{}) bool {
	f, ok := filter.(*subscription.Filter)
	if !ok {
		return !sub.IsDeleted()
	}

	if sub.IsDeleted() {
		return false
	}
	if f.CustomerID != "" && sub.CustomerID != f.CustomerID {
		return false
	}
	if f.PlanID != "" && sub.PlanID != f.PlanID {
		return false
	}
	if len(f.SubscriptionStatus) > 0 && !lo.Contains(f.SubscriptionStatus, sub.SubscriptionStatus) {
		return false
	}
	return true
}

func subscriptionSortFn(i, j *subscription.Subscription) bool {
	return i.CreatedAt.After(j.CreatedAt)
}
