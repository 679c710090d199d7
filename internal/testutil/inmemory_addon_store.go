package testutil

import (
	"context"

	"github.com/samber/lo"

	"github.com/qazuor/qzpay-sub003/internal/domain/addon"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// InMemoryAddOnStore implements addon.Repository
type InMemoryAddOnStore struct {
	*InMemoryStore[*addon.AddOn]
	attachments *InMemoryStore[*addon.SubscriptionAddOn]
}

// NewInMemoryAddOnStore creates a new in-memory add-on store
func NewInMemoryAddOnStore() *InMemoryAddOnStore {
	return &InMemoryAddOnStore{
		InMemoryStore: NewInMemoryStore[*addon.AddOn](),
		attachments:   NewInMemoryStore[*addon.SubscriptionAddOn](),
	}
}

func copyAddOn(a *addon.AddOn) *addon.AddOn {
	if a == nil {
		return nil
	}
	clone := *a
	clone.Metadata = a.Metadata.Copy()
	clone.EntitlementKeys = append([]string(nil), a.EntitlementKeys...)
	if a.LimitBumps != nil {
		clone.LimitBumps = make(map[string]int64, len(a.LimitBumps))
		for k, v := range a.LimitBumps {
			clone.LimitBumps[k] = v
		}
	}
	if a.ProviderIDs != nil {
		clone.ProviderIDs = make(types.ProviderIDs, len(a.ProviderIDs))
		for k, v := range a.ProviderIDs {
			clone.ProviderIDs[k] = v
		}
	}
	return &clone
}

func copyAttachment(sa *addon.SubscriptionAddOn) *addon.SubscriptionAddOn {
	if sa == nil {
		return nil
	}
	clone := *sa
	if sa.DetachedAt != nil {
		detached := *sa.DetachedAt
		clone.DetachedAt = &detached
	}
	return &clone
}

func (s *InMemoryAddOnStore) Create(ctx context.Context, a *addon.AddOn) error {
	return s.InMemoryStore.Create(ctx, a.ID, copyAddOn(a))
}

func (s *InMemoryAddOnStore) Get(ctx context.Context, id string) (*addon.AddOn, error) {
	a, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyAddOn(a), nil
}

func (s *InMemoryAddOnStore) List(ctx context.Context, filter *addon.Filter) ([]*addon.AddOn, error) {
	items, err := s.InMemoryStore.List(ctx, filter, addonFilterFn, addonSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(a *addon.AddOn, _ int) *addon.AddOn {
		return copyAddOn(a)
	}), nil
}

func (s *InMemoryAddOnStore) Update(ctx context.Context, a *addon.AddOn) error {
	return s.InMemoryStore.Update(ctx, a.ID, copyAddOn(a))
}

func (s *InMemoryAddOnStore) Delete(ctx context.Context, id string) error {
	return s.InMemoryStore.Delete(ctx, id)
}

func (s *InMemoryAddOnStore) Attach(ctx context.Context, sa *addon.SubscriptionAddOn) error {
	return s.attachments.Create(ctx, sa.ID, copyAttachment(sa))
}

func (s *InMemoryAddOnStore) GetAttachment(ctx context.Context, id string) (*addon.SubscriptionAddOn, error) {
	sa, err := s.attachments.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyAttachment(sa), nil
}

func (s *InMemoryAddOnStore) ListBySubscription(ctx context.Context, subscriptionID string) ([]*addon.SubscriptionAddOn, error) {
	filterFn := func(_ context.Context, sa *addon.SubscriptionAddOn, _ interface{}) bool {
		return sa.SubscriptionID == subscriptionID
	}
	items, err := s.attachments.List(ctx, nil, filterFn, func(i, j *addon.SubscriptionAddOn) bool {
		return i.AttachedAt.After(j.AttachedAt)
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(sa *addon.SubscriptionAddOn, _ int) *addon.SubscriptionAddOn {
		return copyAttachment(sa)
	}), nil
}

func (s *InMemoryAddOnStore) UpdateAttachment(ctx context.Context, sa *addon.SubscriptionAddOn) error {
	return s.attachments.Update(ctx, sa.ID, copyAttachment(sa))
}

// Clear wipes add-ons and attachments
func (s *InMemoryAddOnStore) Clear() {
	s.InMemoryStore.Clear()
	s.attachments.Clear()
}

func addonFilterFn(_ context.Context, a *addon.AddOn, filter interface{}) bool {
	f, ok := filter.(*addon.Filter)
	if !ok {
		return !a.IsDeleted()
	}

	if a.IsDeleted() {
		return false
	}
	if f.Active != nil && a.Active != *f.Active {
		return false
	}
	return true
}

func addonSortFn(i, j *addon.AddOn) bool {
	return i.CreatedAt.After(j.CreatedAt)
}
