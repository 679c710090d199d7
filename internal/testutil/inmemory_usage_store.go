package testutil

import (
	"context"

	"github.com/samber/lo"

	"github.com/qazuor/qzpay-sub003/internal/domain/usage"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
)

// InMemoryUsageStore implements usage.Repository
type InMemoryUsageStore struct {
	*InMemoryStore[*usage.UsageRecord]
}

// NewInMemoryUsageStore creates a new in-memory usage record store
func NewInMemoryUsageStore() *InMemoryUsageStore {
	return &InMemoryUsageStore{
		InMemoryStore: NewInMemoryStore[*usage.UsageRecord](),
	}
}

func copyUsageRecord(u *usage.UsageRecord) *usage.UsageRecord {
	if u == nil {
		return nil
	}
	clone := *u
	clone.Metadata = u.Metadata.Copy()
	return &clone
}

func (s *InMemoryUsageStore) Create(ctx context.Context, record *usage.UsageRecord) error {
	return s.InMemoryStore.Create(ctx, record.ID, copyUsageRecord(record))
}

func (s *InMemoryUsageStore) Get(ctx context.Context, id string) (*usage.UsageRecord, error) {
	u, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyUsageRecord(u), nil
}

func (s *InMemoryUsageStore) GetByIdempotencyKey(ctx context.Context, key string) (*usage.UsageRecord, error) {
	filterFn := func(_ context.Context, u *usage.UsageRecord, _ interface{}) bool {
		return u.IdempotencyKey != "" && u.IdempotencyKey == key
	}
	items, err := s.InMemoryStore.List(ctx, nil, filterFn, nil)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ierr.NewError("usage record not found").
			WithHint("No usage record with this idempotency key").
			WithReportableDetails(map[string]any{"idempotency_key": key}).
			Mark(ierr.ErrNotFound)
	}
	return copyUsageRecord(items[0]), nil
}

func (s *InMemoryUsageStore) List(ctx context.Context, filter *usage.Filter) ([]*usage.UsageRecord, error) {
	items, err := s.InMemoryStore.List(ctx, filter, usageFilterFn, usageSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(u *usage.UsageRecord, _ int) *usage.UsageRecord {
		return copyUsageRecord(u)
	}), nil
}

func (s *InMemoryUsageStore) Count(ctx context.Context, filter *usage.Filter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, usageFilterFn)
}

func usageFilterFn(_ context.Context, u *usage.UsageRecord, filter interface{}) bool {
	f, ok := filter.(*usage.Filter)
	if !ok {
		return true
	}

	if f.CustomerID != "" && u.CustomerID != f.CustomerID {
		return false
	}
	if f.LimitKey != "" && u.LimitKey != f.LimitKey {
		return false
	}
	if f.StartTime != nil && u.RecordedAt.Before(*f.StartTime) {
		return false
	}
	if f.EndTime != nil && u.RecordedAt.After(*f.EndTime) {
		return false
	}
	return true
}

func usageSortFn(i, j *usage.UsageRecord) bool {
	return i.RecordedAt.After(j.RecordedAt)
}
