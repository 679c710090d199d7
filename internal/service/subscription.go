package service

import (
	"context"

	"github.com/qazuor/qzpay-sub003/internal/domain/plan"
	"github.com/qazuor/qzpay-sub003/internal/domain/price"
	"github.com/qazuor/qzpay-sub003/internal/domain/subscription"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/logger"
	"github.com/qazuor/qzpay-sub003/internal/publisher"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// CreateSubscriptionInput starts a subscription to a plan
type CreateSubscriptionInput struct {
	CustomerID string
	PlanID     string
	// PriceID empty picks the plan's first active price
	PriceID  string
	Quantity int64
	// TrialDays overrides the price's trial; negative means use the price's
	TrialDays int
	Metadata  types.Metadata
}

// SubscriptionService manages the subscription lifecycle outside the
// periodic engine: creation, explicit cancellation, pause, and
// reactivation. Plan entitlements and limit defaults are granted on
// creation and revoked on cancellation.
type SubscriptionService struct {
	repo         subscription.Repository
	planRepo     plan.Repository
	priceRepo    price.Repository
	entitlements *EntitlementService
	limits       *LimitService
	eventBus     *publisher.EventBus
	clock        types.Clock
	livemode     bool
	logger       *logger.Logger
}

func NewSubscriptionService(
	repo subscription.Repository,
	planRepo plan.Repository,
	priceRepo price.Repository,
	entitlements *EntitlementService,
	limits *LimitService,
	eventBus *publisher.EventBus,
	clock types.Clock,
	livemode bool,
	log *logger.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		repo:         repo,
		planRepo:     planRepo,
		priceRepo:    priceRepo,
		entitlements: entitlements,
		limits:       limits,
		eventBus:     eventBus,
		clock:        clock,
		livemode:     livemode,
		logger:       log,
	}
}

// Create starts a subscription. With a trial it begins trialing and the
// first charge happens at conversion; without one it begins active and the
// first renewal charge is due at period end.
func (s *SubscriptionService) Create(ctx context.Context, input CreateSubscriptionInput) (*subscription.Subscription, error) {
	if input.Quantity < 1 {
		input.Quantity = 1
	}

	p, err := s.planRepo.Get(ctx, input.PlanID)
	if err != nil {
		return nil, err
	}
	if !p.Active {
		return nil, ierr.NewError("plan is not active").
			WithHint("The plan is not available for new subscriptions").
			WithReportableDetails(map[string]any{"plan_id": p.ID}).
			Mark(ierr.ErrInvalidOperation)
	}

	pr, err := s.resolvePrice(ctx, input)
	if err != nil {
		return nil, err
	}
	if !pr.BillingInterval.IsRecurring() {
		return nil, ierr.NewError("price is not recurring").
			WithHint("Subscriptions require a recurring price").
			WithReportableDetails(map[string]any{"price_id": pr.ID}).
			Mark(ierr.ErrValidation)
	}

	now := s.clock.Now()
	trialDays := pr.TrialDays
	if input.TrialDays >= 0 {
		trialDays = input.TrialDays
	}

	sub := &subscription.Subscription{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		CustomerID:         input.CustomerID,
		PlanID:             input.PlanID,
		Currency:           pr.Currency,
		Interval:           pr.BillingInterval,
		IntervalCount:      pr.IntervalCount,
		Quantity:           input.Quantity,
		CurrentPeriodStart: now,
		Metadata:           input.Metadata,
		Version:            1,
		BaseModel:          types.GetDefaultBaseModel(ctx, s.livemode),
	}
	if trialDays > 0 {
		trialEnd := now.AddDate(0, 0, trialDays)
		sub.SubscriptionStatus = types.SubscriptionStatusTrialing
		sub.TrialStart = &now
		sub.TrialEnd = &trialEnd
		sub.CurrentPeriodEnd = trialEnd
	} else {
		sub.SubscriptionStatus = types.SubscriptionStatusActive
		sub.CurrentPeriodEnd = types.AddInterval(now, pr.BillingInterval, pr.IntervalCount)
	}

	if err := sub.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, err
	}

	s.applyPlanGrants(ctx, sub, p)

	s.eventBus.Emit(ctx, &types.LifecycleEvent{
		ID:             types.GenerateUUID(),
		Type:           types.EventSubscriptionCreated,
		SubscriptionID: sub.ID,
		CustomerID:     sub.CustomerID,
		Data:           mustMarshal(map[string]any{"plan_id": sub.PlanID, "status": sub.SubscriptionStatus}),
		Timestamp:      now,
	})
	return sub, nil
}

func (s *SubscriptionService) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	return s.repo.Get(ctx, id)
}

func (s *SubscriptionService) List(ctx context.Context, filter *subscription.Filter) ([]*subscription.Subscription, error) {
	return s.repo.List(ctx, filter)
}

func (s *SubscriptionService) ListByCustomer(ctx context.Context, customerID string) ([]*subscription.Subscription, error) {
	return s.repo.ListByCustomer(ctx, customerID)
}

// GetActive returns the customer's single active subscription
func (s *SubscriptionService) GetActive(ctx context.Context, customerID string) (*subscription.Subscription, error) {
	return s.repo.GetActiveByCustomer(ctx, customerID)
}

// HasAccess reports whether the customer's subscription still grants
// product access, including the past_due grace window.
func (s *SubscriptionService) HasAccess(ctx context.Context, subscriptionID string, gracePeriodDays int) (bool, error) {
	sub, err := s.repo.Get(ctx, subscriptionID)
	if err != nil {
		return false, err
	}
	return subscription.HasAccess(sub, gracePeriodDays, s.clock.Now()), nil
}

// Cancel ends the subscription. With atPeriodEnd it keeps running until the
// current period closes; otherwise it cancels immediately and revokes plan
// grants.
func (s *SubscriptionService) Cancel(ctx context.Context, id, reason string, atPeriodEnd bool) (*subscription.Subscription, error) {
	sub, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.SubscriptionStatus == types.SubscriptionStatusCanceled {
		return nil, ierr.NewError("subscription is already canceled").
			WithHint("The subscription is already canceled").
			Mark(ierr.ErrInvalidOperation)
	}

	now := s.clock.Now()
	if atPeriodEnd {
		sub.CancelAtPeriodEnd = true
		sub.CancelAt = &sub.CurrentPeriodEnd
		sub.CancelReason = reason
	} else {
		sub.SubscriptionStatus = types.SubscriptionStatusCanceled
		sub.CanceledAt = &now
		sub.CancelReason = reason
	}
	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, err
	}

	if !atPeriodEnd {
		if err := s.entitlements.RevokeBySource(ctx, types.GrantSourceSubscription, sub.ID); err != nil {
			s.logger.Errorw("failed to revoke subscription entitlements",
				"subscription_id", sub.ID, "error", err)
		}
	}

	s.eventBus.Emit(ctx, &types.LifecycleEvent{
		ID:             types.GenerateUUID(),
		Type:           types.EventSubscriptionCanceled,
		SubscriptionID: sub.ID,
		CustomerID:     sub.CustomerID,
		Data:           mustMarshal(map[string]any{"at_period_end": atPeriodEnd, "reason": reason}),
		Timestamp:      now,
	})
	return sub, nil
}

// Reactivate restores a canceled subscription; this is the explicit host
// operation, the lifecycle engine never un-cancels.
func (s *SubscriptionService) Reactivate(ctx context.Context, id string) (*subscription.Subscription, error) {
	sub, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.SubscriptionStatus != types.SubscriptionStatusCanceled {
		return nil, ierr.NewError("only canceled subscriptions can be reactivated").
			WithHint("Only canceled subscriptions can be reactivated").
			WithReportableDetails(map[string]any{"status": sub.SubscriptionStatus}).
			Mark(ierr.ErrInvalidOperation)
	}

	now := s.clock.Now()
	sub.SubscriptionStatus = types.SubscriptionStatusActive
	sub.CanceledAt = nil
	sub.CancelAt = nil
	sub.CancelAtPeriodEnd = false
	sub.CancelReason = ""
	sub.GracePeriodStartedAt = nil
	sub.GracePeriodEndedAt = nil
	sub.RetryCount = 0
	sub.LastRetryAt = nil
	sub.LastRetryError = ""
	sub.CurrentPeriodStart = now
	sub.CurrentPeriodEnd = types.AddInterval(now, sub.Interval, sub.IntervalCount)
	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, err
	}

	if p, err := s.planRepo.Get(ctx, sub.PlanID); err == nil {
		s.applyPlanGrants(ctx, sub, p)
	}

	s.eventBus.Emit(ctx, &types.LifecycleEvent{
		ID:             types.GenerateUUID(),
		Type:           types.EventSubscriptionReactivate,
		SubscriptionID: sub.ID,
		CustomerID:     sub.CustomerID,
		Timestamp:      now,
	})
	return sub, nil
}

// Pause suspends billing without canceling
func (s *SubscriptionService) Pause(ctx context.Context, id string) (*subscription.Subscription, error) {
	return s.transition(ctx, id, types.SubscriptionStatusActive, types.SubscriptionStatusPaused)
}

// Resume re-enables billing on a paused subscription
func (s *SubscriptionService) Resume(ctx context.Context, id string) (*subscription.Subscription, error) {
	return s.transition(ctx, id, types.SubscriptionStatusPaused, types.SubscriptionStatusActive)
}

func (s *SubscriptionService) transition(ctx context.Context, id string, from, to types.SubscriptionStatus) (*subscription.Subscription, error) {
	sub, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.SubscriptionStatus != from {
		return nil, ierr.NewError("invalid subscription state for this operation").
			WithHintf("Subscription must be %s", from).
			WithReportableDetails(map[string]any{
				"status":   sub.SubscriptionStatus,
				"required": from,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	sub.SubscriptionStatus = to
	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// UpdateQuantity changes the seat count; billing picks it up at the next
// renewal.
func (s *SubscriptionService) UpdateQuantity(ctx context.Context, id string, quantity int64) (*subscription.Subscription, error) {
	if quantity < 1 {
		return nil, ierr.NewError("quantity must be at least 1").
			WithHint("Quantity must be at least 1").
			Mark(ierr.ErrValidation)
	}
	sub, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sub.Quantity = quantity
	if err := s.repo.Update(ctx, sub); err != nil {
		return nil, err
	}
	return sub, nil
}

// applyPlanGrants gives the customer the plan's entitlements and limit
// defaults. Grant failures are logged; the subscription stands regardless.
func (s *SubscriptionService) applyPlanGrants(ctx context.Context, sub *subscription.Subscription, p *plan.Plan) {
	for _, key := range p.EntitlementKeys {
		if _, err := s.entitlements.Grant(ctx, GrantInput{
			CustomerID:     sub.CustomerID,
			EntitlementKey: key,
			Source:         types.GrantSourceSubscription,
			SourceID:       sub.ID,
		}); err != nil {
			s.logger.Errorw("failed to grant plan entitlement",
				"subscription_id", sub.ID, "entitlement_key", key, "error", err)
		}
	}
	for key, maxValue := range p.LimitDefaults {
		if _, err := s.limits.SetLimit(ctx, sub.CustomerID, key, maxValue, types.GrantSourceSubscription); err != nil {
			s.logger.Errorw("failed to set plan limit",
				"subscription_id", sub.ID, "limit_key", key, "error", err)
		}
	}
}

func (s *SubscriptionService) resolvePrice(ctx context.Context, input CreateSubscriptionInput) (*price.Price, error) {
	if input.PriceID != "" {
		return s.priceRepo.Get(ctx, input.PriceID)
	}
	prices, err := s.priceRepo.ListByPlan(ctx, input.PlanID)
	if err != nil {
		return nil, err
	}
	for _, pr := range prices {
		if pr.Active {
			return pr, nil
		}
	}
	return nil, ierr.NewError("plan has no active price").
		WithHint("The plan has no active price").
		WithReportableDetails(map[string]any{"plan_id": input.PlanID}).
		Mark(ierr.ErrNotFound)
}
