package service

import (
	"context"

	"github.com/qazuor/qzpay-sub003/internal/domain/paymentmethod"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/logger"
	"github.com/qazuor/qzpay-sub003/internal/provider"
	"github.com/qazuor/qzpay-sub003/internal/publisher"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// AttachMethodInput binds a provider method token to a customer
type AttachMethodInput struct {
	CustomerID string
	Provider   types.ProviderKind
	// MethodToken is the tokenized instrument from the provider's client SDK
	MethodToken string
	SetDefault  bool
}

// PaymentMethodService stores payment instruments. Card material lives at
// the provider; only display-safe fields are persisted here.
type PaymentMethodService struct {
	repo      paymentmethod.Repository
	customers *CustomerService
	registry  *provider.Registry
	eventBus  *publisher.EventBus
	clock     types.Clock
	livemode  bool
	logger    *logger.Logger
}

func NewPaymentMethodService(
	repo paymentmethod.Repository,
	customers *CustomerService,
	registry *provider.Registry,
	eventBus *publisher.EventBus,
	clock types.Clock,
	livemode bool,
	log *logger.Logger,
) *PaymentMethodService {
	return &PaymentMethodService{
		repo:      repo,
		customers: customers,
		registry:  registry,
		eventBus:  eventBus,
		clock:     clock,
		livemode:  livemode,
		logger:    log,
	}
}

// Attach registers the instrument with the provider and stores it. The
// customer's provider object is created on first attach.
func (s *PaymentMethodService) Attach(ctx context.Context, input AttachMethodInput) (*paymentmethod.PaymentMethod, error) {
	if input.MethodToken == "" {
		return nil, ierr.NewError("method token is required").
			WithHint("Method token is required").
			Mark(ierr.ErrValidation)
	}

	providerCustomerID, err := s.customers.EnsureProviderCustomer(ctx, input.CustomerID, input.Provider)
	if err != nil {
		return nil, err
	}
	prov, err := s.registry.Get(input.Provider)
	if err != nil {
		return nil, err
	}

	attached, err := prov.AttachPaymentMethod(ctx, provider.AttachRequest{
		ProviderCustomerID: providerCustomerID,
		MethodToken:        input.MethodToken,
	})
	if err != nil {
		return nil, err
	}

	pm := &paymentmethod.PaymentMethod{
		ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT_METHOD),
		CustomerID: input.CustomerID,
		Type:       attached.Type,
		MethodSts:  types.PaymentMethodStatusActive,
		ProviderIDs: types.ProviderIDs{
			input.Provider: attached.ProviderMethodID,
		},
		Version:   1,
		BaseModel: types.GetDefaultBaseModel(ctx, s.livemode),
	}
	if attached.Type == types.PaymentMethodTypeCard {
		pm.Card = &paymentmethod.Card{
			Last4:    attached.CardLast4,
			Brand:    attached.CardBrand,
			ExpMonth: attached.CardExpMonth,
			ExpYear:  attached.CardExpYear,
		}
	}
	if err := s.repo.Create(ctx, pm); err != nil {
		return nil, err
	}

	// first method of a customer becomes the default implicitly
	if input.SetDefault || s.isOnlyMethod(ctx, input.CustomerID) {
		if err := s.repo.SetDefault(ctx, input.CustomerID, pm.ID); err != nil {
			return nil, err
		}
		pm.IsDefault = true
	}
	return pm, nil
}

func (s *PaymentMethodService) isOnlyMethod(ctx context.Context, customerID string) bool {
	methods, err := s.repo.ListByCustomer(ctx, customerID)
	return err == nil && len(methods) == 1
}

func (s *PaymentMethodService) Get(ctx context.Context, id string) (*paymentmethod.PaymentMethod, error) {
	return s.repo.Get(ctx, id)
}

func (s *PaymentMethodService) ListByCustomer(ctx context.Context, customerID string) ([]*paymentmethod.PaymentMethod, error) {
	return s.repo.ListByCustomer(ctx, customerID)
}

func (s *PaymentMethodService) GetDefault(ctx context.Context, customerID string) (*paymentmethod.PaymentMethod, error) {
	return s.repo.GetDefault(ctx, customerID)
}

// SetDefault atomically makes the method the customer's single default
func (s *PaymentMethodService) SetDefault(ctx context.Context, customerID, paymentMethodID string) error {
	return s.repo.SetDefault(ctx, customerID, paymentMethodID)
}

// Detach removes the instrument at the provider and marks it detached
// locally.
func (s *PaymentMethodService) Detach(ctx context.Context, id string) error {
	pm, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}

	for kind, providerMethodID := range pm.ProviderIDs {
		prov, err := s.registry.Get(kind)
		if err != nil {
			continue
		}
		if err := prov.DetachPaymentMethod(ctx, providerMethodID); err != nil {
			s.logger.Warnw("failed to detach provider payment method",
				"payment_method_id", id, "provider", kind, "error", err)
		}
	}

	pm.MethodSts = types.PaymentMethodStatusDetached
	pm.IsDefault = false
	return s.repo.Update(ctx, pm)
}

// CheckExpiring scans for cards expiring on or before the cutoff, marks
// already-expired ones, and emits a payment_method.expiring event per card.
// It returns the expiring methods.
func (s *PaymentMethodService) CheckExpiring(ctx context.Context, daysAhead int) ([]*paymentmethod.PaymentMethod, error) {
	now := s.clock.Now()
	cutoff := now.AddDate(0, 0, daysAhead)

	methods, err := s.repo.ListCardsExpiringBy(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	for _, pm := range methods {
		if pm.Card.ExpiresBy(now) && pm.MethodSts == types.PaymentMethodStatusActive {
			pm.MethodSts = types.PaymentMethodStatusExpired
			if err := s.repo.Update(ctx, pm); err != nil {
				s.logger.Errorw("failed to mark payment method expired",
					"payment_method_id", pm.ID, "error", err)
				continue
			}
		}

		s.eventBus.Emit(ctx, &types.LifecycleEvent{
			ID:         types.GenerateUUID(),
			Type:       types.EventPaymentMethodExpiring,
			CustomerID: pm.CustomerID,
			Data: mustMarshal(map[string]any{
				"payment_method_id": pm.ID,
				"card_last4":        pm.Card.Last4,
				"exp_month":         pm.Card.ExpMonth,
				"exp_year":          pm.Card.ExpYear,
			}),
			Timestamp: now,
		})
	}
	return methods, nil
}
