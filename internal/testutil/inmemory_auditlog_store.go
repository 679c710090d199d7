package testutil

import (
	"context"

	"github.com/samber/lo"

	"github.com/qazuor/qzpay-sub003/internal/domain/auditlog"
)

// InMemoryAuditLogStore implements auditlog.Repository
type InMemoryAuditLogStore struct {
	*InMemoryStore[*auditlog.Entry]
}

// NewInMemoryAuditLogStore creates a new in-memory audit log store
func NewInMemoryAuditLogStore() *InMemoryAuditLogStore {
	return &InMemoryAuditLogStore{
		InMemoryStore: NewInMemoryStore[*auditlog.Entry](),
	}
}

func copyAuditEntry(e *auditlog.Entry) *auditlog.Entry {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Before = append([]byte(nil), e.Before...)
	clone.After = append([]byte(nil), e.After...)
	clone.Metadata = e.Metadata.Copy()
	return &clone
}

func (s *InMemoryAuditLogStore) Create(ctx context.Context, e *auditlog.Entry) error {
	return s.InMemoryStore.Create(ctx, e.ID, copyAuditEntry(e))
}

func (s *InMemoryAuditLogStore) Get(ctx context.Context, id string) (*auditlog.Entry, error) {
	e, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyAuditEntry(e), nil
}

func (s *InMemoryAuditLogStore) List(ctx context.Context, filter *auditlog.Filter) ([]*auditlog.Entry, error) {
	items, err := s.InMemoryStore.List(ctx, filter, auditLogFilterFn, auditLogSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(e *auditlog.Entry, _ int) *auditlog.Entry {
		return copyAuditEntry(e)
	}), nil
}

func (s *InMemoryAuditLogStore) Count(ctx context.Context, filter *auditlog.Filter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, auditLogFilterFn)
}

func auditLogFilterFn(_ context.Context, e *auditlog.Entry, filter interface{}) bool {
	f, ok := filter.(*auditlog.Filter)
	if !ok {
		return true
	}

	if f.EntityType != "" && e.EntityType != f.EntityType {
		return false
	}
	if f.EntityID != "" && e.EntityID != f.EntityID {
		return false
	}
	if f.ActorID != "" && e.ActorID != f.ActorID {
		return false
	}
	if f.StartTime != nil && e.OccurredAt.Before(*f.StartTime) {
		return false
	}
	if f.EndTime != nil && e.OccurredAt.After(*f.EndTime) {
		return false
	}
	return true
}

func auditLogSortFn(i, j *auditlog.Entry) bool {
	return i.OccurredAt.After(j.OccurredAt)
}
