package testutil

import (
	"context"
	"time"

	"github.com/samber/lo"

	"github.com/qazuor/qzpay-sub003/internal/domain/payment"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// InMemoryPaymentStore implements payment.Repository
type InMemoryPaymentStore struct {
	*InMemoryStore[*payment.Payment]
	refunds *InMemoryStore[*payment.Refund]
}

// NewInMemoryPaymentStore creates a new in-memory payment store
func NewInMemoryPaymentStore() *InMemoryPaymentStore {
	return &InMemoryPaymentStore{
		InMemoryStore: NewInMemoryStore[*payment.Payment](),
		refunds:       NewInMemoryStore[*payment.Refund](),
	}
}

func copyPayment(p *payment.Payment) *payment.Payment {
	if p == nil {
		return nil
	}

	clone := *p
	clone.Metadata = p.Metadata.Copy()
	if p.ExchangeRate != nil {
		rate := *p.ExchangeRate
		clone.ExchangeRate = &rate
	}
	if p.BaseAmount != nil {
		amount := *p.BaseAmount
		clone.BaseAmount = &amount
	}
	return &clone
}

func copyRefund(r *payment.Refund) *payment.Refund {
	if r == nil {
		return nil
	}
	clone := *r
	return &clone
}

func (s *InMemoryPaymentStore) Create(ctx context.Context, p *payment.Payment) error {
	clone := copyPayment(p)
	if clone.Version == 0 {
		clone.Version = 1
		p.Version = 1
	}
	return s.InMemoryStore.Create(ctx, p.ID, clone)
}

func (s *InMemoryPaymentStore) Get(ctx context.Context, id string) (*payment.Payment, error) {
	p, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyPayment(p), nil
}

func (s *InMemoryPaymentStore) GetByProviderPaymentID(ctx context.Context, provider types.ProviderKind, providerPaymentID string) (*payment.Payment, error) {
	filterFn := func(_ context.Context, p *payment.Payment, _ interface{}) bool {
		return p.Provider == provider && p.ProviderPaymentID == providerPaymentID
	}
	items, err := s.InMemoryStore.List(ctx, nil, filterFn, nil)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ierr.NewError("payment not found").
			WithHint("No payment with this provider payment ID").
			WithReportableDetails(map[string]any{
				"provider":            provider,
				"provider_payment_id": providerPaymentID,
			}).
			Mark(ierr.ErrNotFound)
	}
	return copyPayment(items[0]), nil
}

func (s *InMemoryPaymentStore) GetByIdempotencyKey(ctx context.Context, key string) (*payment.Payment, error) {
	filterFn := func(_ context.Context, p *payment.Payment, _ interface{}) bool {
		return p.IdempotencyKey == key
	}
	items, err := s.InMemoryStore.List(ctx, nil, filterFn, nil)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ierr.NewError("payment not found").
			WithHint("No payment with this idempotency key").
			Mark(ierr.ErrNotFound)
	}
	return copyPayment(items[0]), nil
}

func (s *InMemoryPaymentStore) List(ctx context.Context, filter *payment.Filter) ([]*payment.Payment, error) {
	items, err := s.InMemoryStore.List(ctx, filter, paymentFilterFn, paymentSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(p *payment.Payment, _ int) *payment.Payment {
		return copyPayment(p)
	}), nil
}

func (s *InMemoryPaymentStore) Count(ctx context.Context, filter *payment.Filter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, paymentFilterFn)
}

func (s *InMemoryPaymentStore) ListInPeriod(ctx context.Context, start, end time.Time) ([]*payment.Payment, error) {
	filterFn := func(_ context.Context, p *payment.Payment, _ interface{}) bool {
		return !p.CreatedAt.Before(start) && p.CreatedAt.Before(end)
	}
	items, err := s.InMemoryStore.List(ctx, nil, filterFn, paymentSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(p *payment.Payment, _ int) *payment.Payment {
		return copyPayment(p)
	}), nil
}

// Update enforces the version column the same way the subscription
// store does
func (s *InMemoryPaymentStore) Update(ctx context.Context, p *payment.Payment) error {
	current, err := s.InMemoryStore.Get(ctx, p.ID)
	if err != nil {
		return err
	}
	if current.Version != p.Version {
		return ierr.NewError("payment was modified concurrently").
			WithHint("The payment changed since it was read").
			WithReportableDetails(map[string]any{
				"payment_id":       p.ID,
				"expected_version": p.Version,
				"actual_version":   current.Version,
			}).
			Mark(ierr.ErrVersionConflict)
	}

	clone := copyPayment(p)
	clone.Version++
	if err := s.InMemoryStore.Update(ctx, p.ID, clone); err != nil {
		return err
	}
	p.Version = clone.Version
	return nil
}

func (s *InMemoryPaymentStore) CreateRefund(ctx context.Context, r *payment.Refund) error {
	return s.refunds.Create(ctx, r.ID, copyRefund(r))
}

func (s *InMemoryPaymentStore) GetRefund(ctx context.Context, id string) (*payment.Refund, error) {
	r, err := s.refunds.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyRefund(r), nil
}

func (s *InMemoryPaymentStore) ListRefundsByPayment(ctx context.Context, paymentID string) ([]*payment.Refund, error) {
	filterFn := func(_ context.Context, r *payment.Refund, _ interface{}) bool {
		return r.PaymentID == paymentID
	}
	items, err := s.refunds.List(ctx, nil, filterFn, nil)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(r *payment.Refund, _ int) *payment.Refund {
		return copyRefund(r)
	}), nil
}

func (s *InMemoryPaymentStore) UpdateRefund(ctx context.Context, r *payment.Refund) error {
	return s.refunds.Update(ctx, r.ID, copyRefund(r))
}

// Clear wipes payments and refunds
func (s *InMemoryPaymentStore) Clear() {
	s.InMemoryStore.Clear()
	s.refunds.Clear()
}

func paymentFilterFn(_ context.Context, p *payment.Payment, filter interface{}) bool {
	f, ok := filter.(*payment.Filter)
	if !ok {
		return true
	}

	if f.CustomerID != "" && p.CustomerID != f.CustomerID {
		return false
	}
	if f.SubscriptionID != "" && p.SubscriptionID != f.SubscriptionID {
		return false
	}
	if len(f.PaymentStatus) > 0 && !lo.Contains(f.PaymentStatus, p.PaymentStatus) {
		return false
	}
	if f.Currency != "" && p.Currency != f.Currency {
		return false
	}
	if f.StartTime != nil && p.CreatedAt.Before(*f.StartTime) {
		return false
	}
	if f.EndTime != nil && p.CreatedAt.After(*f.EndTime) {
		return false
	}
	return true
}

func paymentSortFn(i, j *payment.Payment) bool {
	return i.CreatedAt.After(j.CreatedAt)
}
