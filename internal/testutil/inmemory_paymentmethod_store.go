package testutil

import (
	"context"
	"time"

	"github.com/samber/lo"

	"github.com/qazuor/qzpay-sub003/internal/domain/paymentmethod"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// InMemoryPaymentMethodStore implements paymentmethod.Repository
type InMemoryPaymentMethodStore struct {
	*InMemoryStore[*paymentmethod.PaymentMethod]
}

// NewInMemoryPaymentMethodStore creates a new in-memory payment method store
func NewInMemoryPaymentMethodStore() *InMemoryPaymentMethodStore {
	return &InMemoryPaymentMethodStore{
		InMemoryStore: NewInMemoryStore[*paymentmethod.PaymentMethod](),
	}
}

func copyPaymentMethod(pm *paymentmethod.PaymentMethod) *paymentmethod.PaymentMethod {
	if pm == nil {
		return nil
	}

	clone := *pm
	clone.Metadata = pm.Metadata.Copy()
	if pm.Card != nil {
		card := *pm.Card
		clone.Card = &card
	}
	if pm.BankAccount != nil {
		account := *pm.BankAccount
		clone.BankAccount = &account
	}
	if pm.Billing != nil {
		billing := *pm.Billing
		clone.Billing = &billing
	}
	if pm.ProviderIDs != nil {
		clone.ProviderIDs = make(types.ProviderIDs, len(pm.ProviderIDs))
		for k, v := range pm.ProviderIDs {
			clone.ProviderIDs[k] = v
		}
	}
	return &clone
}

func (s *InMemoryPaymentMethodStore) Create(ctx context.Context, pm *paymentmethod.PaymentMethod) error {
	clone := copyPaymentMethod(pm)
	if clone.Version == 0 {
		clone.Version = 1
		pm.Version = 1
	}
	return s.InMemoryStore.Create(ctx, pm.ID, clone)
}

func (s *InMemoryPaymentMethodStore) Get(ctx context.Context, id string) (*paymentmethod.PaymentMethod, error) {
	pm, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyPaymentMethod(pm), nil
}

func (s *InMemoryPaymentMethodStore) List(ctx context.Context, filter *paymentmethod.Filter) ([]*paymentmethod.PaymentMethod, error) {
	items, err := s.InMemoryStore.List(ctx, filter, paymentMethodFilterFn, paymentMethodSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(pm *paymentmethod.PaymentMethod, _ int) *paymentmethod.PaymentMethod {
		return copyPaymentMethod(pm)
	}), nil
}

func (s *InMemoryPaymentMethodStore) Count(ctx context.Context, filter *paymentmethod.Filter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, paymentMethodFilterFn)
}

func (s *InMemoryPaymentMethodStore) ListByCustomer(ctx context.Context, customerID string) ([]*paymentmethod.PaymentMethod, error) {
	filterFn := func(_ context.Context, pm *paymentmethod.PaymentMethod, _ interface{}) bool {
		return pm.CustomerID == customerID && !pm.IsDeleted()
	}
	items, err := s.InMemoryStore.List(ctx, nil, filterFn, paymentMethodSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(pm *paymentmethod.PaymentMethod, _ int) *paymentmethod.PaymentMethod {
		return copyPaymentMethod(pm)
	}), nil
}

func (s *InMemoryPaymentMethodStore) GetDefault(ctx context.Context, customerID string) (*paymentmethod.PaymentMethod, error) {
	filterFn := func(_ context.Context, pm *paymentmethod.PaymentMethod, _ interface{}) bool {
		return pm.CustomerID == customerID && pm.IsDefault && !pm.IsDeleted()
	}
	items, err := s.InMemoryStore.List(ctx, nil, filterFn, nil)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ierr.NewError("no default payment method").
			WithHint("Customer has no default payment method").
			WithReportableDetails(map[string]any{"customer_id": customerID}).
			Mark(ierr.ErrNotFound)
	}
	return copyPaymentMethod(items[0]), nil
}

// SetDefault flips every other method of the customer to non-default and
// marks the target, all under one lock
func (s *InMemoryPaymentMethodStore) SetDefault(ctx context.Context, customerID, paymentMethodID string) error {
	target, err := s.InMemoryStore.Get(ctx, paymentMethodID)
	if err != nil {
		return err
	}
	if target.CustomerID != customerID {
		return ierr.NewError("payment method belongs to another customer").
			WithHint("Payment method does not belong to this customer").
			WithReportableDetails(map[string]any{
				"payment_method_id": paymentMethodID,
				"customer_id":       customerID,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	methods, err := s.ListByCustomer(ctx, customerID)
	if err != nil {
		return err
	}
	for _, pm := range methods {
		isTarget := pm.ID == paymentMethodID
		if pm.IsDefault == isTarget {
			continue
		}
		pm.IsDefault = isTarget
		pm.Version++
		if err := s.InMemoryStore.Update(ctx, pm.ID, copyPaymentMethod(pm)); err != nil {
			return err
		}
	}
	return nil
}

func (s *InMemoryPaymentMethodStore) Update(ctx context.Context, pm *paymentmethod.PaymentMethod) error {
	current, err := s.InMemoryStore.Get(ctx, pm.ID)
	if err != nil {
		return err
	}
	if current.Version != pm.Version {
		return ierr.NewError("payment method was modified concurrently").
			WithHint("The payment method changed since it was read").
			WithReportableDetails(map[string]any{
				"payment_method_id": pm.ID,
				"expected_version":  pm.Version,
				"actual_version":    current.Version,
			}).
			Mark(ierr.ErrVersionConflict)
	}

	clone := copyPaymentMethod(pm)
	clone.Version++
	if err := s.InMemoryStore.Update(ctx, pm.ID, clone); err != nil {
		return err
	}
	pm.Version = clone.Version
	return nil
}

func (s *InMemoryPaymentMethodStore) Delete(ctx context.Context, id string) error {
	return s.InMemoryStore.Delete(ctx, id)
}

func (s *InMemoryPaymentMethodStore) ListCardsExpiringBy(ctx context.Context, cutoff time.Time) ([]*paymentmethod.PaymentMethod, error) {
	filterFn := func(_ context.Context, pm *paymentmethod.PaymentMethod, _ interface{}) bool {
		return pm.Type == types.PaymentMethodTypeCard &&
			pm.MethodSts == types.PaymentMethodStatusActive &&
			!pm.IsDeleted() &&
			pm.Card.ExpiresBy(cutoff)
	}
	items, err := s.InMemoryStore.List(ctx, nil, filterFn, paymentMethodSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(pm *paymentmethod.PaymentMethod, _ int) *paymentmethod.PaymentMethod {
		return copyPaymentMethod(pm)
	}), nil
}

func paymentMethodFilterFn(_ context.Context, pm *paymentmethod.PaymentMethod, filter interface{}) bool {
	f, ok := filter.(*paymentmethod.Filter)
	if !ok {
		return !pm.IsDeleted()
	}

	if pm.IsDeleted() {
		return false
	}
	if f.CustomerID != "" && pm.CustomerID != f.CustomerID {
		return false
	}
	if f.Type != "" && pm.Type != f.Type {
		return false
	}
	return true
}

func paymentMethodSortFn(i, j *paymentmethod.PaymentMethod) bool {
	return i.CreatedAt.After(j.CreatedAt)
}
