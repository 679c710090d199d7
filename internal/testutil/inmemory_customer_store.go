package testutil

import (
	"context"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/qazuor/qzpay-sub003/internal/domain/customer"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// InMemoryCustomerStore implements customer.Repository
type InMemoryCustomerStore struct {
	*InMemoryStore[*customer.Customer]
}

// NewInMemoryCustomerStore creates a new in-memory customer store
func NewInMemoryCustomerStore() *InMemoryCustomerStore {
	return &InMemoryCustomerStore{
		InMemoryStore: NewInMemoryStore[*customer.Customer](),
	}
}

func copyCustomer(c *customer.Customer) *customer.Customer {
	if c == nil {
		return nil
	}

	clone := *c
	clone.Tags = append([]string(nil), c.Tags...)
	clone.Metadata = c.Metadata.Copy()
	if c.ProviderIDs != nil {
		clone.ProviderIDs = make(types.ProviderIDs, len(c.ProviderIDs))
		for k, v := range c.ProviderIDs {
			clone.ProviderIDs[k] = v
		}
	}
	if c.BillingAddress != nil {
		addr := *c.BillingAddress
		clone.BillingAddress = &addr
	}
	if c.ShippingAddress != nil {
		addr := *c.ShippingAddress
		clone.ShippingAddress = &addr
	}
	return &clone
}

func (s *InMemoryCustomerStore) Create(ctx context.Context, c *customer.Customer) error {
	return s.InMemoryStore.Create(ctx, c.ID, copyCustomer(c))
}

func (s *InMemoryCustomerStore) Get(ctx context.Context, id string) (*customer.Customer, error) {
	c, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.IsDeleted() {
		return nil, ierr.NewError("customer not found").
			WithHint("Customer not found").
			WithReportableDetails(map[string]any{"id": id}).
			Mark(ierr.ErrNotFound)
	}
	return copyCustomer(c), nil
}

func (s *InMemoryCustomerStore) GetByExternalID(ctx context.Context, externalID string) (*customer.Customer, error) {
	filterFn := func(_ context.Context, c *customer.Customer, _ interface{}) bool {
		return c.ExternalID == externalID && !c.IsDeleted()
	}

	customers, err := s.InMemoryStore.List(ctx, nil, filterFn, nil)
	if err != nil {
		return nil, err
	}
	if len(customers) == 0 {
		return nil, ierr.NewError("customer not found").
			WithHint("No customer with this external ID").
			WithReportableDetails(map[string]any{"external_id": externalID}).
			Mark(ierr.ErrNotFound)
	}
	return copyCustomer(customers[0]), nil
}

func (s *InMemoryCustomerStore) GetByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	filterFn := func(_ context.Context, c *customer.Customer, _ interface{}) bool {
		return strings.EqualFold(c.Email, email) && !c.IsDeleted()
	}

	customers, err := s.InMemoryStore.List(ctx, nil, filterFn, nil)
	if err != nil {
		return nil, err
	}
	if len(customers) == 0 {
		return nil, ierr.NewError("customer not found").
			WithHint("No customer with this email").
			WithReportableDetails(map[string]any{"email": email}).
			Mark(ierr.ErrNotFound)
	}
	return copyCustomer(customers[0]), nil
}

func (s *InMemoryCustomerStore) List(ctx context.Context, filter *customer.Filter) ([]*customer.Customer, error) {
	items, err := s.InMemoryStore.List(ctx, filter, customerFilterFn, customerSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(c *customer.Customer, _ int) *customer.Customer {
		return copyCustomer(c)
	}), nil
}

func (s *InMemoryCustomerStore) Count(ctx context.Context, filter *customer.Filter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, customerFilterFn)
}

func (s *InMemoryCustomerStore) Update(ctx context.Context, c *customer.Customer) error {
	return s.InMemoryStore.Update(ctx, c.ID, copyCustomer(c))
}

func (s *InMemoryCustomerStore) Delete(ctx context.Context, id string) error {
	c, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	clone := copyCustomer(c)
	clone.DeletedAt = &now
	clone.Status = types.StatusDeleted
	return s.InMemoryStore.Update(ctx, id, clone)
}

func customerFilterFn(_ context.Context, c *customer.Customer, filter interface{}) bool {
	f, ok := filter.(*customer.Filter)
	if !ok {
		return !c.IsDeleted()
	}

	if !f.IncludeDeleted && c.IsDeleted() {
		return false
	}
	if f.ExternalID != "" && c.ExternalID != f.ExternalID {
		return false
	}
	if f.Email != "" && !strings.EqualFold(c.Email, f.Email) {
		return false
	}
	if len(f.CustomerIDs) > 0 && !lo.Contains(f.CustomerIDs, c.ID) {
		return false
	}
	return true
}

func customerSortFn(i, j *customer.Customer) bool {
	// Default sort by created_at desc
	return i.CreatedAt.After(j.CreatedAt)
}
