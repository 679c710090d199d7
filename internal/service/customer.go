package service

import (
	"context"

	"github.com/qazuor/qzpay-sub003/internal/domain/customer"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/logger"
	"github.com/qazuor/qzpay-sub003/internal/provider"
	"github.com/qazuor/qzpay-sub003/internal/publisher"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// CustomerService manages billing customers and their provider-side
// counterparts. Provider customer objects are created lazily, the first
// time a provider is actually needed.
type CustomerService struct {
	repo     customer.Repository
	registry *provider.Registry
	eventBus *publisher.EventBus
	clock    types.Clock
	livemode bool
	logger   *logger.Logger
}

func NewCustomerService(
	repo customer.Repository,
	registry *provider.Registry,
	eventBus *publisher.EventBus,
	clock types.Clock,
	livemode bool,
	log *logger.Logger,
) *CustomerService {
	return &CustomerService{
		repo:     repo,
		registry: registry,
		eventBus: eventBus,
		clock:    clock,
		livemode: livemode,
		logger:   log,
	}
}

// Create registers a new billing customer. ExternalID must be unique per
// host application.
func (s *CustomerService) Create(ctx context.Context, c *customer.Customer) (*customer.Customer, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if existing, err := s.repo.GetByExternalID(ctx, c.ExternalID); err == nil && existing != nil {
		return nil, ierr.NewError("customer with this external id already exists").
			WithHint("A customer with this external ID already exists").
			WithReportableDetails(map[string]any{"external_id": c.ExternalID}).
			Mark(ierr.ErrAlreadyExists)
	}

	c.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CUSTOMER)
	if c.ProviderIDs == nil {
		c.ProviderIDs = types.ProviderIDs{}
	}
	c.BaseModel = types.GetDefaultBaseModel(ctx, s.livemode)

	if err := s.repo.Create(ctx, c); err != nil {
		return nil, err
	}

	s.eventBus.Emit(ctx, &types.LifecycleEvent{
		ID:         types.GenerateUUID(),
		Type:       types.EventCustomerCreated,
		CustomerID: c.ID,
		Data:       mustMarshal(map[string]any{"external_id": c.ExternalID, "email": c.Email}),
		Timestamp:  s.clock.Now(),
	})
	return c, nil
}

func (s *CustomerService) Get(ctx context.Context, id string) (*customer.Customer, error) {
	return s.repo.Get(ctx, id)
}

func (s *CustomerService) GetByExternalID(ctx context.Context, externalID string) (*customer.Customer, error) {
	return s.repo.GetByExternalID(ctx, externalID)
}

func (s *CustomerService) GetByEmail(ctx context.Context, email string) (*customer.Customer, error) {
	return s.repo.GetByEmail(ctx, email)
}

func (s *CustomerService) List(ctx context.Context, filter *customer.Filter) ([]*customer.Customer, error) {
	return s.repo.List(ctx, filter)
}

func (s *CustomerService) Count(ctx context.Context, filter *customer.Filter) (int, error) {
	return s.repo.Count(ctx, filter)
}

// Update applies the mutable fields of the given customer
func (s *CustomerService) Update(ctx context.Context, c *customer.Customer) (*customer.Customer, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, c); err != nil {
		return nil, err
	}

	s.eventBus.Emit(ctx, &types.LifecycleEvent{
		ID:         types.GenerateUUID(),
		Type:       types.EventCustomerUpdated,
		CustomerID: c.ID,
		Timestamp:  s.clock.Now(),
	})
	return c, nil
}

// Delete soft-deletes the customer and removes its provider counterparts.
// Provider deletion failures are logged, not surfaced: the local record is
// already gone and orphaned provider customers are harmless.
func (s *CustomerService) Delete(ctx context.Context, id string) error {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	for kind, providerCustomerID := range c.ProviderIDs {
		prov, err := s.registry.Get(kind)
		if err != nil {
			continue
		}
		if err := prov.DeleteCustomer(ctx, providerCustomerID); err != nil {
			s.logger.Warnw("failed to delete provider customer",
				"customer_id", id, "provider", kind, "error", err)
		}
	}

	s.eventBus.Emit(ctx, &types.LifecycleEvent{
		ID:         types.GenerateUUID(),
		Type:       types.EventCustomerDeleted,
		CustomerID: id,
		Timestamp:  s.clock.Now(),
	})
	return nil
}

// EnsureProviderCustomer returns the provider-side customer id, creating
// the provider object on first use.
func (s *CustomerService) EnsureProviderCustomer(ctx context.Context, customerID string, kind types.ProviderKind) (string, error) {
	c, err := s.repo.Get(ctx, customerID)
	if err != nil {
		return "", err
	}
	if id := c.ProviderIDs[kind]; id != "" {
		return id, nil
	}

	prov, err := s.registry.Get(kind)
	if err != nil {
		return "", err
	}
	providerCustomerID, err := prov.CreateCustomer(ctx, c.Email, c.Name)
	if err != nil {
		return "", err
	}

	if c.ProviderIDs == nil {
		c.ProviderIDs = types.ProviderIDs{}
	}
	c.ProviderIDs[kind] = providerCustomerID
	if err := s.repo.Update(ctx, c); err != nil {
		return "", err
	}
	return providerCustomerID, nil
}
