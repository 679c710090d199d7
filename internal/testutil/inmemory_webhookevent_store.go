package testutil

import (
	"context"

	"github.com/samber/lo"

	"github.com/qazuor/qzpay-sub003/internal/domain/webhookevent"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// InMemoryWebhookEventStore implements webhookevent.Repository
type InMemoryWebhookEventStore struct {
	*InMemoryStore[*webhookevent.WebhookEvent]
}

// NewInMemoryWebhookEventStore creates a new in-memory webhook event store
func NewInMemoryWebhookEventStore() *InMemoryWebhookEventStore {
	return &InMemoryWebhookEventStore{
		InMemoryStore: NewInMemoryStore[*webhookevent.WebhookEvent](),
	}
}

func copyWebhookEvent(e *webhookevent.WebhookEvent) *webhookevent.WebhookEvent {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Payload = append([]byte(nil), e.Payload...)
	if e.ProcessedAt != nil {
		processed := *e.ProcessedAt
		clone.ProcessedAt = &processed
	}
	return &clone
}

func (s *InMemoryWebhookEventStore) Create(ctx context.Context, e *webhookevent.WebhookEvent) error {
	return s.InMemoryStore.Create(ctx, e.ID, copyWebhookEvent(e))
}

func (s *InMemoryWebhookEventStore) Get(ctx context.Context, id string) (*webhookevent.WebhookEvent, error) {
	e, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyWebhookEvent(e), nil
}

func (s *InMemoryWebhookEventStore) GetByProviderEventID(ctx context.Context, provider types.ProviderKind, providerEventID string) (*webhookevent.WebhookEvent, error) {
	filterFn := func(_ context.Context, e *webhookevent.WebhookEvent, _ interface{}) bool {
		return e.Provider == provider && e.ProviderEventID == providerEventID
	}
	items, err := s.InMemoryStore.List(ctx, nil, filterFn, nil)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ierr.NewError("webhook event not found").
			WithHint("No webhook event with this provider event ID").
			WithReportableDetails(map[string]any{
				"provider":          provider,
				"provider_event_id": providerEventID,
			}).
			Mark(ierr.ErrNotFound)
	}
	return copyWebhookEvent(items[0]), nil
}

func (s *InMemoryWebhookEventStore) List(ctx context.Context, filter *webhookevent.Filter) ([]*webhookevent.WebhookEvent, error) {
	items, err := s.InMemoryStore.List(ctx, filter, webhookEventFilterFn, webhookEventSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(e *webhookevent.WebhookEvent, _ int) *webhookevent.WebhookEvent {
		return copyWebhookEvent(e)
	}), nil
}

func (s *InMemoryWebhookEventStore) Count(ctx context.Context, filter *webhookevent.Filter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, webhookEventFilterFn)
}

func (s *InMemoryWebhookEventStore) Update(ctx context.Context, e *webhookevent.WebhookEvent) error {
	return s.InMemoryStore.Update(ctx, e.ID, copyWebhookEvent(e))
}

func (s *InMemoryWebhookEventStore) ListDeadLettered(ctx context.Context, filter *types.QueryFilter) ([]*webhookevent.WebhookEvent, error) {
	var f interface{}
	if filter != nil {
		f = filter
	}
	filterFn := func(_ context.Context, e *webhookevent.WebhookEvent, _ interface{}) bool {
		return e.EventStatus == types.WebhookEventStatusDeadLettered
	}
	items, err := s.InMemoryStore.List(ctx, f, filterFn, webhookEventSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(e *webhookevent.WebhookEvent, _ int) *webhookevent.WebhookEvent {
		return copyWebhookEvent(e)
	}), nil
}

func webhookEventFilterFn(_ context.Context, e *webhookevent.WebhookEvent, filter interface{}) bool {
	f, ok := filter.(*webhookevent.Filter)
	if !ok {
		return true
	}

	if f.Provider != "" && e.Provider != f.Provider {
		return false
	}
	if f.EventStatus != "" && e.EventStatus != f.EventStatus {
		return false
	}
	if f.EventType != "" && e.EventType != f.EventType {
		return false
	}
	return true
}

func webhookEventSortFn(i, j *webhookevent.WebhookEvent) bool {
	return i.ReceivedAt.After(j.ReceivedAt)
}
