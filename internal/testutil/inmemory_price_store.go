package testutil

import (
	"context"

	"github.com/samber/lo"

	"github.com/qazuor/qzpay-sub003/internal/domain/price"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// InMemoryPriceStore implements price.Repository
type InMemoryPriceStore struct {
	*InMemoryStore[*price.Price]
}

// NewInMemoryPriceStore creates a new in-memory price store
func NewInMemoryPriceStore() *InMemoryPriceStore {
	return &InMemoryPriceStore{
		InMemoryStore: NewInMemoryStore[*price.Price](),
	}
}

func copyPrice(p *price.Price) *price.Price {
	if p == nil {
		return nil
	}

	clone := *p
	clone.Metadata = p.Metadata.Copy()
	if p.ProviderIDs != nil {
		clone.ProviderIDs = make(types.ProviderIDs, len(p.ProviderIDs))
		for k, v := range p.ProviderIDs {
			clone.ProviderIDs[k] = v
		}
	}
	return &clone
}

func (s *InMemoryPriceStore) Create(ctx context.Context, p *price.Price) error {
	return s.InMemoryStore.Create(ctx, p.ID, copyPrice(p))
}

func (s *InMemoryPriceStore) Get(ctx context.Context, id string) (*price.Price, error) {
	p, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyPrice(p), nil
}

func (s *InMemoryPriceStore) List(ctx context.Context, filter *price.Filter) ([]*price.Price, error) {
	items, err := s.InMemoryStore.List(ctx, filter, priceFilterFn, priceSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(p *price.Price, _ int) *price.Price {
		return copyPrice(p)
	}), nil
}

func (s *InMemoryPriceStore) Count(ctx context.Context, filter *price.Filter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, priceFilterFn)
}

func (s *InMemoryPriceStore) ListByPlan(ctx context.Context, planID string) ([]*price.Price, error) {
	filterFn := func(_ context.Context, p *price.Price, _ interface{}) bool {
		return p.PlanID == planID && !p.IsDeleted()
	}
	items, err := s.InMemoryStore.List(ctx, nil, filterFn, priceSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(p *price.Price, _ int) *price.Price {
		return copyPrice(p)
	}), nil
}

func (s *InMemoryPriceStore) Update(ctx context.Context, p *price.Price) error {
	return s.InMemoryStore.Update(ctx, p.ID, copyPrice(p))
}

func (s *InMemoryPriceStore) Delete(ctx context.Context, id string) error {
	return s.InMemoryStore.Delete(ctx, id)
}

func priceFilterFn(_ context.Context, p *price.Price, filter interface{}) bool {
	f, ok := filter.(*price.Filter)
	if !ok {
		return !p.IsDeleted()
	}

	if p.IsDeleted() {
		return false
	}
	if f.PlanID != "" && p.PlanID != f.PlanID {
		return false
	}
	if f.Active != nil && p.Active != *f.Active {
		return false
	}
	if f.Currency != "" && p.Currency != f.Currency {
		return false
	}
	return true
}

func priceSortFn(i, j *price.Price) bool {
	return i.CreatedAt.After(j.CreatedAt)
}
