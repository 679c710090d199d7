package service

import (
	"context"

	"github.com/qazuor/qzpay-sub003/internal/domain/addon"
	"github.com/qazuor/qzpay-sub003/internal/domain/subscription"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/logger"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// AddOnService manages the add-on catalog and subscription attachments.
// Attaching grants the add-on's entitlements and bumps the customer's
// limits; detaching reverses both.
type AddOnService struct {
	repo             addon.Repository
	subscriptionRepo subscription.Repository
	entitlements     *EntitlementService
	limits           *LimitService
	clock            types.Clock
	livemode         bool
	logger           *logger.Logger
}

func NewAddOnService(
	repo addon.Repository,
	subscriptionRepo subscription.Repository,
	entitlements *EntitlementService,
	limits *LimitService,
	clock types.Clock,
	livemode bool,
	log *logger.Logger,
) *AddOnService {
	return &AddOnService{
		repo:             repo,
		subscriptionRepo: subscriptionRepo,
		entitlements:     entitlements,
		limits:           limits,
		clock:            clock,
		livemode:         livemode,
		logger:           log,
	}
}

func (s *AddOnService) Create(ctx context.Context, a *addon.AddOn) (*addon.AddOn, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	a.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ADDON)
	a.BaseModel = types.GetDefaultBaseModel(ctx, s.livemode)
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AddOnService) Get(ctx context.Context, id string) (*addon.AddOn, error) {
	return s.repo.Get(ctx, id)
}

func (s *AddOnService) List(ctx context.Context, filter *addon.Filter) ([]*addon.AddOn, error) {
	return s.repo.List(ctx, filter)
}

func (s *AddOnService) Update(ctx context.Context, a *addon.AddOn) (*addon.AddOn, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *AddOnService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Attach binds the add-on to a subscription, granting its entitlements and
// bumping the customer's limits by the add-on's limit bumps.
func (s *AddOnService) Attach(ctx context.Context, subscriptionID, addOnID string, quantity int64) (*addon.SubscriptionAddOn, error) {
	sub, err := s.subscriptionRepo.Get(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	a, err := s.repo.Get(ctx, addOnID)
	if err != nil {
		return nil, err
	}
	if !a.Active {
		return nil, ierr.NewError("addon is not active").
			WithHint("The add-on is not available").
			WithReportableDetails(map[string]any{"addon_id": a.ID}).
			Mark(ierr.ErrInvalidOperation)
	}

	sa := &addon.SubscriptionAddOn{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUB_ADDON),
		SubscriptionID: subscriptionID,
		AddOnID:        addOnID,
		Quantity:       quantity,
		AttachedAt:     s.clock.Now(),
		BaseModel:      types.GetDefaultBaseModel(ctx, s.livemode),
	}
	if err := sa.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Attach(ctx, sa); err != nil {
		return nil, err
	}

	for _, key := range a.EntitlementKeys {
		if _, err := s.entitlements.Grant(ctx, GrantInput{
			CustomerID:     sub.CustomerID,
			EntitlementKey: key,
			Source:         types.GrantSourceAddon,
			SourceID:       sa.ID,
		}); err != nil {
			s.logger.Errorw("failed to grant addon entitlement",
				"subscription_addon_id", sa.ID, "entitlement_key", key, "error", err)
		}
	}
	s.applyLimitBumps(ctx, sub.CustomerID, a, quantity, 1)

	return sa, nil
}

// Detach stops billing the add-on and reverses its grants
func (s *AddOnService) Detach(ctx context.Context, attachmentID string) error {
	sa, err := s.repo.GetAttachment(ctx, attachmentID)
	if err != nil {
		return err
	}
	if !sa.IsAttached() {
		return ierr.NewError("addon is already detached").
			WithHint("The add-on is already detached").
			Mark(ierr.ErrInvalidOperation)
	}
	sub, err := s.subscriptionRepo.Get(ctx, sa.SubscriptionID)
	if err != nil {
		return err
	}
	a, err := s.repo.Get(ctx, sa.AddOnID)
	if err != nil {
		return err
	}

	now := s.clock.Now()
	sa.DetachedAt = &now
	if err := s.repo.UpdateAttachment(ctx, sa); err != nil {
		return err
	}

	if err := s.entitlements.RevokeBySource(ctx, types.GrantSourceAddon, sa.ID); err != nil {
		s.logger.Errorw("failed to revoke addon entitlements",
			"subscription_addon_id", sa.ID, "error", err)
	}
	s.applyLimitBumps(ctx, sub.CustomerID, a, sa.Quantity, -1)

	return nil
}

func (s *AddOnService) ListBySubscription(ctx context.Context, subscriptionID string) ([]*addon.SubscriptionAddOn, error) {
	return s.repo.ListBySubscription(ctx, subscriptionID)
}

// applyLimitBumps moves the customer's caps by the add-on's bumps scaled by
// quantity; direction -1 undoes an earlier bump. Caps never go below zero.
func (s *AddOnService) applyLimitBumps(ctx context.Context, customerID string, a *addon.AddOn, quantity, direction int64) {
	for key, bump := range a.LimitBumps {
		current, err := s.limits.Get(ctx, customerID, key)
		if err != nil {
			s.logger.Errorw("failed to load limit for addon bump",
				"customer_id", customerID, "limit_key", key, "error", err)
			continue
		}
		next := current.MaxValue + direction*bump*quantity
		if next < 0 {
			next = 0
		}
		if _, err := s.limits.SetLimit(ctx, customerID, key, next, types.GrantSourceAddon); err != nil {
			s.logger.Errorw("failed to apply addon limit bump",
				"customer_id", customerID, "limit_key", key, "error", err)
		}
	}
}
