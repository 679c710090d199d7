package testutil

import (
	"context"

	"github.com/samber/lo"

	"github.com/qazuor/qzpay-sub003/internal/domain/plan"
)

// InMemoryPlanStore implements plan.Repository
type InMemoryPlanStore struct {
	*InMemoryStore[*plan.Plan]
}

// NewInMemoryPlanStore creates a new in-memory plan store
func NewInMemoryPlanStore() *InMemoryPlanStore {
	return &InMemoryPlanStore{
		InMemoryStore: NewInMemoryStore[*plan.Plan](),
	}
}

func copyPlan(p *plan.Plan) *plan.Plan {
	if p == nil {
		return nil
	}

	clone := *p
	clone.Features = append([]plan.Feature(nil), p.Features...)
	clone.EntitlementKeys = append([]string(nil), p.EntitlementKeys...)
	clone.Metadata = p.Metadata.Copy()
	if p.LimitDefaults != nil {
		clone.LimitDefaults = make(map[string]int64, len(p.LimitDefaults))
		for k, v := range p.LimitDefaults {
			clone.LimitDefaults[k] = v
		}
	}
	return &clone
}

func (s *InMemoryPlanStore) Create(ctx context.Context, p *plan.Plan) error {
	return s.InMemoryStore.Create(ctx, p.ID, copyPlan(p))
}

func (s *InMemoryPlanStore) Get(ctx context.Context, id string) (*plan.Plan, error) {
	p, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyPlan(p), nil
}

func (s *InMemoryPlanStore) List(ctx context.Context, filter *plan.Filter) ([]*plan.Plan, error) {
	items, err := s.InMemoryStore.List(ctx, filter, planFilterFn, planSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(p *plan.Plan, _ int) *plan.Plan {
		return copyPlan(p)
	}), nil
}

func (s *InMemoryPlanStore) Count(ctx context.Context, filter *plan.Filter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, planFilterFn)
}

func (s *InMemoryPlanStore) Update(ctx context.Context, p *plan.Plan) error {
	return s.InMemoryStore.Update(ctx, p.ID, copyPlan(p))
}

func (s *InMemoryPlanStore) Delete(ctx context.Context, id string) error {
	return s.InMemoryStore.Delete(ctx, id)
}

func planFilterFn(_ context.Context, p *plan.Plan, filter interface{}) bool {
	f, ok := filter.(*plan.Filter)
	if !ok {
		return !p.IsDeleted()
	}

	if p.IsDeleted() {
		return false
	}
	if f.Active != nil && p.Active != *f.Active {
		return false
	}
	if len(f.PlanIDs) > 0 && !lo.Contains(f.PlanIDs, p.ID) {
		return false
	}
	return true
}

func planSortFn(i, j *plan.Plan) bool {
	return i.CreatedAt.After(j.CreatedAt)
}
