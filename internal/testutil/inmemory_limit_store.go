package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/samber/lo"

	"github.com/qazuor/qzpay-sub003/internal/domain/limit"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// InMemoryLimitStore implements limit.Repository. Counter mutations are
// serialized per store so concurrent consumption cannot overshoot.
type InMemoryLimitStore struct {
	definitions *InMemoryStore[*limit.Definition]
	limits      *InMemoryStore[*limit.CustomerLimit]
	counterMu   sync.Mutex
}

// NewInMemoryLimitStore creates a new in-memory limit store
func NewInMemoryLimitStore() *InMemoryLimitStore {
	return &InMemoryLimitStore{
		definitions: NewInMemoryStore[*limit.Definition](),
		limits:      NewInMemoryStore[*limit.CustomerLimit](),
	}
}

func limitKey(customerID, key string) string {
	return fmt.Sprintf("%s/%s", customerID, key)
}

func copyCustomerLimit(l *limit.CustomerLimit) *limit.CustomerLimit {
	if l == nil {
		return nil
	}
	clone := *l
	if l.ResetAt != nil {
		reset := *l.ResetAt
		clone.ResetAt = &reset
	}
	return &clone
}

func (s *InMemoryLimitStore) CreateDefinition(ctx context.Context, def *limit.Definition) error {
	clone := *def
	return s.definitions.Create(ctx, def.Key, &clone)
}

func (s *InMemoryLimitStore) GetDefinition(ctx context.Context, key string) (*limit.Definition, error) {
	def, err := s.definitions.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	clone := *def
	return &clone, nil
}

func (s *InMemoryLimitStore) ListDefinitions(ctx context.Context, filter *types.QueryFilter) ([]*limit.Definition, error) {
	var f interface{}
	if filter != nil {
		f = filter
	}
	items, err := s.definitions.List(ctx, f, nil, func(i, j *limit.Definition) bool {
		return i.Key < j.Key
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(def *limit.Definition, _ int) *limit.Definition {
		clone := *def
		return &clone
	}), nil
}

func (s *InMemoryLimitStore) Upsert(ctx context.Context, l *limit.CustomerLimit) (*limit.CustomerLimit, error) {
	key := limitKey(l.CustomerID, l.LimitKey)

	existing, err := s.limits.Get(ctx, key)
	if err != nil {
		if !ierr.IsNotFound(err) {
			return nil, err
		}
		clone := copyCustomerLimit(l)
		if clone.Version == 0 {
			clone.Version = 1
		}
		if err := s.limits.Create(ctx, key, clone); err != nil {
			return nil, err
		}
		return copyCustomerLimit(clone), nil
	}

	clone := copyCustomerLimit(l)
	clone.Version = existing.Version + 1
	if err := s.limits.Update(ctx, key, clone); err != nil {
		return nil, err
	}
	return copyCustomerLimit(clone), nil
}

func (s *InMemoryLimitStore) Get(ctx context.Context, customerID, key string) (*limit.CustomerLimit, error) {
	l, err := s.limits.Get(ctx, limitKey(customerID, key))
	if err != nil {
		return nil, err
	}
	return copyCustomerLimit(l), nil
}

func (s *InMemoryLimitStore) List(ctx context.Context, filter *limit.Filter) ([]*limit.CustomerLimit, error) {
	items, err := s.limits.List(ctx, filter, limitFilterFn, limitSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(l *limit.CustomerLimit, _ int) *limit.CustomerLimit {
		return copyCustomerLimit(l)
	}), nil
}

func (s *InMemoryLimitStore) Increment(ctx context.Context, customerID, key string, delta int64) (*limit.CustomerLimit, error) {
	s.counterMu.Lock()
	defer s.counterMu.Unlock()

	l, err := s.limits.Get(ctx, limitKey(customerID, key))
	if err != nil {
		return nil, err
	}

	clone := copyCustomerLimit(l)
	clone.CurrentValue += delta
	if clone.CurrentValue < 0 {
		clone.CurrentValue = 0
	}
	clone.Version++
	if err := s.limits.Update(ctx, limitKey(customerID, key), clone); err != nil {
		return nil, err
	}
	return copyCustomerLimit(clone), nil
}

func (s *InMemoryLimitStore) SetCurrent(ctx context.Context, customerID, key string, value int64) (*limit.CustomerLimit, error) {
	s.counterMu.Lock()
	defer s.counterMu.Unlock()

	l, err := s.limits.Get(ctx, limitKey(customerID, key))
	if err != nil {
		return nil, err
	}

	clone := copyCustomerLimit(l)
	clone.CurrentValue = value
	clone.Version++
	if err := s.limits.Update(ctx, limitKey(customerID, key), clone); err != nil {
		return nil, err
	}
	return copyCustomerLimit(clone), nil
}

func (s *InMemoryLimitStore) Delete(ctx context.Context, customerID, key string) error {
	return s.limits.Delete(ctx, limitKey(customerID, key))
}

// Clear wipes definitions and customer limits
func (s *InMemoryLimitStore) Clear() {
	s.definitions.Clear()
	s.limits.Clear()
}

func limitFilterFn(_ context.Context, l *limit.CustomerLimit, filter interface{}) bool {
	f, ok := filter.(*limit.Filter)
	if !ok {
		return true
	}

	if f.CustomerID != "" && l.CustomerID != f.CustomerID {
		return false
	}
	if f.LimitKey != "" && l.LimitKey != f.LimitKey {
		return false
	}
	return true
}

func limitSortFn(i, j *limit.CustomerLimit) bool {
	return i.LimitKey < j.LimitKey
}
