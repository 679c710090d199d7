package testutil

import (
	"context"

	"github.com/samber/lo"

	"github.com/qazuor/qzpay-sub003/internal/domain/vendor"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// InMemoryVendorStore implements vendor.Repository
type InMemoryVendorStore struct {
	*InMemoryStore[*vendor.Vendor]
	payouts *InMemoryStore[*vendor.VendorPayout]
}

// NewInMemoryVendorStore creates a new in-memory vendor store
func NewInMemoryVendorStore() *InMemoryVendorStore {
	return &InMemoryVendorStore{
		InMemoryStore: NewInMemoryStore[*vendor.Vendor](),
		payouts:       NewInMemoryStore[*vendor.VendorPayout](),
	}
}

func copyVendor(v *vendor.Vendor) *vendor.Vendor {
	if v == nil {
		return nil
	}
	clone := *v
	clone.Metadata = v.Metadata.Copy()
	if v.ProviderIDs != nil {
		clone.ProviderIDs = make(types.ProviderIDs, len(v.ProviderIDs))
		for k, val := range v.ProviderIDs {
			clone.ProviderIDs[k] = val
		}
	}
	return &clone
}

func copyPayout(p *vendor.VendorPayout) *vendor.VendorPayout {
	if p == nil {
		return nil
	}
	clone := *p
	if p.PaidAt != nil {
		paid := *p.PaidAt
		clone.PaidAt = &paid
	}
	return &clone
}

func (s *InMemoryVendorStore) Create(ctx context.Context, v *vendor.Vendor) error {
	return s.InMemoryStore.Create(ctx, v.ID, copyVendor(v))
}

func (s *InMemoryVendorStore) Get(ctx context.Context, id string) (*vendor.Vendor, error) {
	v, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyVendor(v), nil
}

func (s *InMemoryVendorStore) List(ctx context.Context, filter *types.QueryFilter) ([]*vendor.Vendor, error) {
	var f interface{}
	if filter != nil {
		f = filter
	}
	filterFn := func(_ context.Context, v *vendor.Vendor, _ interface{}) bool {
		return !v.IsDeleted()
	}
	items, err := s.InMemoryStore.List(ctx, f, filterFn, func(i, j *vendor.Vendor) bool {
		return i.CreatedAt.After(j.CreatedAt)
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(v *vendor.Vendor, _ int) *vendor.Vendor {
		return copyVendor(v)
	}), nil
}

func (s *InMemoryVendorStore) Update(ctx context.Context, v *vendor.Vendor) error {
	return s.InMemoryStore.Update(ctx, v.ID, copyVendor(v))
}

func (s *InMemoryVendorStore) Delete(ctx context.Context, id string) error {
	return s.InMemoryStore.Delete(ctx, id)
}

func (s *InMemoryVendorStore) CreatePayout(ctx context.Context, p *vendor.VendorPayout) error {
	return s.payouts.Create(ctx, p.ID, copyPayout(p))
}

func (s *InMemoryVendorStore) GetPayout(ctx context.Context, id string) (*vendor.VendorPayout, error) {
	p, err := s.payouts.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyPayout(p), nil
}

func (s *InMemoryVendorStore) ListPayouts(ctx context.Context, filter *vendor.PayoutFilter) ([]*vendor.VendorPayout, error) {
	items, err := s.payouts.List(ctx, filter, payoutFilterFn, payoutSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(p *vendor.VendorPayout, _ int) *vendor.VendorPayout {
		return copyPayout(p)
	}), nil
}

func (s *InMemoryVendorStore) UpdatePayout(ctx context.Context, p *vendor.VendorPayout) error {
	return s.payouts.Update(ctx, p.ID, copyPayout(p))
}

func (s *InMemoryVendorStore) ListScheduledPayouts(ctx context.Context) ([]*vendor.VendorPayout, error) {
	filterFn := func(_ context.Context, p *vendor.VendorPayout, _ interface{}) bool {
		return p.PayoutStatus == types.PayoutStatusScheduled
	}
	items, err := s.payouts.List(ctx, nil, filterFn, payoutSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(p *vendor.VendorPayout, _ int) *vendor.VendorPayout {
		return copyPayout(p)
	}), nil
}

// Clear wipes vendors and payouts
func (s *InMemoryVendorStore) Clear() {
	s.InMemoryStore.Clear()
	s.payouts.Clear()
}

func payoutFilterFn(_ context.Context, p *vendor.VendorPayout, filter interface{}) bool {
	f, ok := filter.(*vendor.PayoutFilter)
	if !ok {
		return true
	}

	if f.VendorID != "" && p.VendorID != f.VendorID {
		return false
	}
	if f.PayoutStatus != "" && p.PayoutStatus != f.PayoutStatus {
		return false
	}
	if f.PeriodStart != nil && p.PeriodStart.Before(*f.PeriodStart) {
		return false
	}
	if f.PeriodEnd != nil && p.PeriodEnd.After(*f.PeriodEnd) {
		return false
	}
	return true
}

func payoutSortFn(i, j *vendor.VendorPayout) bool {
	return i.PeriodEnd.After(j.PeriodEnd)
}
