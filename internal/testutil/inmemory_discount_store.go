package testutil

import (
	"context"

	"github.com/samber/lo"

	"github.com/qazuor/qzpay-sub003/internal/domain/discount"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// InMemoryDiscountStore implements discount.Repository
type InMemoryDiscountStore struct {
	*InMemoryStore[*discount.AutomaticDiscount]
}

// NewInMemoryDiscountStore creates a new in-memory automatic discount store
func NewInMemoryDiscountStore() *InMemoryDiscountStore {
	return &InMemoryDiscountStore{
		InMemoryStore: NewInMemoryStore[*discount.AutomaticDiscount](),
	}
}

func copyDiscount(d *discount.AutomaticDiscount) *discount.AutomaticDiscount {
	if d == nil {
		return nil
	}

	clone := *d
	clone.Conditions = append([]types.DiscountCondition(nil), d.Conditions...)
	return &clone
}

func (s *InMemoryDiscountStore) Create(ctx context.Context, d *discount.AutomaticDiscount) error {
	return s.InMemoryStore.Create(ctx, d.ID, copyDiscount(d))
}

func (s *InMemoryDiscountStore) Get(ctx context.Context, id string) (*discount.AutomaticDiscount, error) {
	d, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyDiscount(d), nil
}

func (s *InMemoryDiscountStore) List(ctx context.Context, filter *discount.Filter) ([]*discount.AutomaticDiscount, error) {
	items, err := s.InMemoryStore.List(ctx, filter, discountFilterFn, discountSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(d *discount.AutomaticDiscount, _ int) *discount.AutomaticDiscount {
		return copyDiscount(d)
	}), nil
}

func (s *InMemoryDiscountStore) Count(ctx context.Context, filter *discount.Filter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, discountFilterFn)
}

func (s *InMemoryDiscountStore) ListActive(ctx context.Context) ([]*discount.AutomaticDiscount, error) {
	filterFn := func(_ context.Context, d *discount.AutomaticDiscount, _ interface{}) bool {
		return d.Active && !d.IsDeleted()
	}
	items, err := s.InMemoryStore.List(ctx, nil, filterFn, discountSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(d *discount.AutomaticDiscount, _ int) *discount.AutomaticDiscount {
		return copyDiscount(d)
	}), nil
}

func (s *InMemoryDiscountStore) Update(ctx context.Context, d *discount.AutomaticDiscount) error {
	return s.InMemoryStore.Update(ctx, d.ID, copyDiscount(d))
}

func (s *InMemoryDiscountStore) Delete(ctx context.Context, id string) error {
	return s.InMemoryStore.Delete(ctx, id)
}

func discountFilterFn(_ context.Context, d *discount.AutomaticDiscount, filter interface{}) bool {
	f, ok := filter.(*discount.Filter)
	if !ok {
		return !d.IsDeleted()
	}

	if d.IsDeleted() {
		return false
	}
	if f.Active != nil && d.Active != *f.Active {
		return false
	}
	return true
}

// discountSortFn orders by priority descending so higher priority
// discounts evaluate first
func discountSortFn(i, j *discount.AutomaticDiscount) bool {
	if i.Priority != j.Priority {
		return i.Priority > j.Priority
	}
	return i.CreatedAt.After(j.CreatedAt)
}
