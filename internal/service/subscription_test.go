package service

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"

	"github.com/qazuor/qzpay-sub003/internal/domain/plan"
	"github.com/qazuor/qzpay-sub003/internal/domain/price"
	"github.com/qazuor/qzpay-sub003/internal/domain/subscription"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/testutil"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

type SubscriptionServiceSuite struct {
	testutil.BaseServiceTestSuite
	service      *SubscriptionService
	entitlements *EntitlementService
	limits       *LimitService
}

func TestSubscriptionService(t *testing.T) {
	suite.Run(t, new(SubscriptionServiceSuite))
}

func (s *SubscriptionServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	stores := s.GetStores()
	s.entitlements = NewEntitlementService(stores.EntitlementRepo, s.GetClock(), s.GetLogger())
	s.limits = NewLimitService(stores.LimitRepo, stores.UsageRepo, s.GetClock(), s.GetLogger())
	s.service = NewSubscriptionService(
		stores.SubscriptionRepo,
		stores.PlanRepo,
		stores.PriceRepo,
		s.entitlements,
		s.limits,
		s.GetEventBus(),
		s.GetClock(),
		false,
		s.GetLogger(),
	)
}

func (s *SubscriptionServiceSuite) createPlan(trialDays int) *plan.Plan {
	p := &plan.Plan{
		ID:              "plan_pro",
		Name:            "Pro",
		Active:          true,
		EntitlementKeys: []string{"api_access", "priority_support"},
		LimitDefaults:   map[string]int64{"projects": 10},
		BaseModel:       types.GetDefaultBaseModel(s.GetContext(), false),
	}
	s.Require().NoError(s.GetStores().PlanRepo.Create(s.GetContext(), p))

	pr := &price.Price{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PRICE),
		PlanID:          p.ID,
		Currency:        "USD",
		UnitAmount:      1000,
		BillingInterval: types.BillingIntervalMonth,
		IntervalCount:   1,
		TrialDays:       trialDays,
		Active:          true,
		BaseModel:       types.GetDefaultBaseModel(s.GetContext(), false),
	}
	s.Require().NoError(s.GetStores().PriceRepo.Create(s.GetContext(), pr))
	return p
}

func (s *SubscriptionServiceSuite) TestCreateActiveSubscription() {
	s.createPlan(0)

	sub, err := s.service.Create(s.GetContext(), CreateSubscriptionInput{
		CustomerID: "cust_1",
		PlanID:     "plan_pro",
		Quantity:   2,
		TrialDays:  -1,
	})
	s.Require().NoError(err)
	s.Equal(types.SubscriptionStatusActive, sub.SubscriptionStatus)
	s.Equal(int64(2), sub.Quantity)
	s.Nil(sub.TrialEnd)
	s.True(sub.CurrentPeriodStart.Equal(s.GetClock().Now()))
	s.True(sub.CurrentPeriodEnd.Equal(s.GetClock().Now().AddDate(0, 1, 0)))
}

func (s *SubscriptionServiceSuite) TestCreateGrantsPlanEntitlementsAndLimits() {
	s.createPlan(0)

	sub, err := s.service.Create(s.GetContext(), CreateSubscriptionInput{
		CustomerID: "cust_1",
		PlanID:     "plan_pro",
		TrialDays:  -1,
	})
	s.Require().NoError(err)

	has, err := s.entitlements.Has(s.GetContext(), "cust_1", "api_access")
	s.Require().NoError(err)
	s.True(has)

	grants, err := s.entitlements.ListActive(s.GetContext(), "cust_1")
	s.Require().NoError(err)
	s.Len(grants, 2)
	s.Equal(sub.ID, grants[0].SourceID)

	l, err := s.limits.Get(s.GetContext(), "cust_1", "projects")
	s.Require().NoError(err)
	s.Equal(int64(10), l.MaxValue)
}

func (s *SubscriptionServiceSuite) TestCreateTrialSubscription() {
	s.createPlan(14)

	sub, err := s.service.Create(s.GetContext(), CreateSubscriptionInput{
		CustomerID: "cust_1",
		PlanID:     "plan_pro",
		TrialDays:  -1,
	})
	s.Require().NoError(err)
	s.Equal(types.SubscriptionStatusTrialing, sub.SubscriptionStatus)
	s.Require().NotNil(sub.TrialEnd)
	s.True(sub.TrialEnd.Equal(s.GetClock().Now().AddDate(0, 0, 14)))
	s.True(sub.CurrentPeriodEnd.Equal(*sub.TrialEnd))
}

func (s *SubscriptionServiceSuite) TestCreateTrialOverride() {
	s.createPlan(14)

	sub, err := s.service.Create(s.GetContext(), CreateSubscriptionInput{
		CustomerID: "cust_1",
		PlanID:     "plan_pro",
		TrialDays:  7,
	})
	s.Require().NoError(err)
	s.Require().NotNil(sub.TrialEnd)
	s.True(sub.TrialEnd.Equal(s.GetClock().Now().AddDate(0, 0, 7)))

	// an explicit zero skips the price's trial entirely
	noTrial, err := s.service.Create(s.GetContext(), CreateSubscriptionInput{
		CustomerID: "cust_2",
		PlanID:     "plan_pro",
		TrialDays:  0,
	})
	s.Require().NoError(err)
	s.Equal(types.SubscriptionStatusActive, noTrial.SubscriptionStatus)
}

func (s *SubscriptionServiceSuite) TestCreateRejectsInactivePlan() {
	p := s.createPlan(0)
	p.Active = false
	s.Require().NoError(s.GetStores().PlanRepo.Update(s.GetContext(), p))

	_, err := s.service.Create(s.GetContext(), CreateSubscriptionInput{
		CustomerID: "cust_1",
		PlanID:     "plan_pro",
	})
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *SubscriptionServiceSuite) TestCreateRejectsPlanWithoutActivePrice() {
	p := &plan.Plan{
		ID:        "plan_empty",
		Name:      "Empty",
		Active:    true,
		BaseModel: types.GetDefaultBaseModel(s.GetContext(), false),
	}
	s.Require().NoError(s.GetStores().PlanRepo.Create(s.GetContext(), p))

	_, err := s.service.Create(s.GetContext(), CreateSubscriptionInput{
		CustomerID: "cust_1",
		PlanID:     "plan_empty",
	})
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *SubscriptionServiceSuite) TestCancelImmediatelyRevokesGrants() {
	s.createPlan(0)
	sub, err := s.service.Create(s.GetContext(), CreateSubscriptionInput{
		CustomerID: "cust_1",
		PlanID:     "plan_pro",
		TrialDays:  -1,
	})
	s.Require().NoError(err)

	canceled, err := s.service.Cancel(s.GetContext(), sub.ID, "too expensive", false)
	s.Require().NoError(err)
	s.Equal(types.SubscriptionStatusCanceled, canceled.SubscriptionStatus)
	s.NotNil(canceled.CanceledAt)
	s.Equal("too expensive", canceled.CancelReason)

	has, err := s.entitlements.Has(s.GetContext(), "cust_1", "api_access")
	s.Require().NoError(err)
	s.False(has)
}

func (s *SubscriptionServiceSuite) TestCancelAtPeriodEndKeepsGrants() {
	s.createPlan(0)
	sub, err := s.service.Create(s.GetContext(), CreateSubscriptionInput{
		CustomerID: "cust_1",
		PlanID:     "plan_pro",
		TrialDays:  -1,
	})
	s.Require().NoError(err)

	canceled, err := s.service.Cancel(s.GetContext(), sub.ID, "churning", true)
	s.Require().NoError(err)
	s.Equal(types.SubscriptionStatusActive, canceled.SubscriptionStatus)
	s.True(canceled.CancelAtPeriodEnd)
	s.Require().NotNil(canceled.CancelAt)
	s.True(canceled.CancelAt.Equal(canceled.CurrentPeriodEnd))

	has, err := s.entitlements.Has(s.GetContext(), "cust_1", "api_access")
	s.Require().NoError(err)
	s.True(has)
}

func (s *SubscriptionServiceSuite) TestCancelTwiceFails() {
	s.createPlan(0)
	sub, err := s.service.Create(s.GetContext(), CreateSubscriptionInput{
		CustomerID: "cust_1",
		PlanID:     "plan_pro",
		TrialDays:  -1,
	})
	s.Require().NoError(err)

	_, err = s.service.Cancel(s.GetContext(), sub.ID, "", false)
	s.Require().NoError(err)

	_, err = s.service.Cancel(s.GetContext(), sub.ID, "", false)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *SubscriptionServiceSuite) TestReactivateRestoresGrants() {
	s.createPlan(0)
	sub, err := s.service.Create(s.GetContext(), CreateSubscriptionInput{
		CustomerID: "cust_1",
		PlanID:     "plan_pro",
		TrialDays:  -1,
	})
	s.Require().NoError(err)

	_, err = s.service.Cancel(s.GetContext(), sub.ID, "oops", false)
	s.Require().NoError(err)

	s.GetClock().Advance(48 * time.Hour)
	restored, err := s.service.Reactivate(s.GetContext(), sub.ID)
	s.Require().NoError(err)
	s.Equal(types.SubscriptionStatusActive, restored.SubscriptionStatus)
	s.Nil(restored.CanceledAt)
	s.Empty(restored.CancelReason)
	s.False(restored.CancelAtPeriodEnd)
	s.True(restored.CurrentPeriodStart.Equal(s.GetClock().Now()))
	s.True(restored.CurrentPeriodEnd.Equal(s.GetClock().Now().AddDate(0, 1, 0)))

	has, err := s.entitlements.Has(s.GetContext(), "cust_1", "api_access")
	s.Require().NoError(err)
	s.True(has)
}

func (s *SubscriptionServiceSuite) TestReactivateRequiresCanceled() {
	s.createPlan(0)
	sub, err := s.service.Create(s.GetContext(), CreateSubscriptionInput{
		CustomerID: "cust_1",
		PlanID:     "plan_pro",
		TrialDays:  -1,
	})
	s.Require().NoError(err)

	_, err = s.service.Reactivate(s.GetContext(), sub.ID)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *SubscriptionServiceSuite) TestPauseAndResume() {
	s.createPlan(0)
	sub, err := s.service.Create(s.GetContext(), CreateSubscriptionInput{
		CustomerID: "cust_1",
		PlanID:     "plan_pro",
		TrialDays:  -1,
	})
	s.Require().NoError(err)

	paused, err := s.service.Pause(s.GetContext(), sub.ID)
	s.Require().NoError(err)
	s.Equal(types.SubscriptionStatusPaused, paused.SubscriptionStatus)

	// pausing twice is invalid
	_, err = s.service.Pause(s.GetContext(), sub.ID)
	s.Error(err)

	resumed, err := s.service.Resume(s.GetContext(), sub.ID)
	s.Require().NoError(err)
	s.Equal(types.SubscriptionStatusActive, resumed.SubscriptionStatus)
}

func (s *SubscriptionServiceSuite) TestUpdateQuantity() {
	s.createPlan(0)
	sub, err := s.service.Create(s.GetContext(), CreateSubscriptionInput{
		CustomerID: "cust_1",
		PlanID:     "plan_pro",
		TrialDays:  -1,
	})
	s.Require().NoError(err)

	updated, err := s.service.UpdateQuantity(s.GetContext(), sub.ID, 5)
	s.Require().NoError(err)
	s.Equal(int64(5), updated.Quantity)

	_, err = s.service.UpdateQuantity(s.GetContext(), sub.ID, 0)
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *SubscriptionServiceSuite) TestHasAccessDuringGracePeriod() {
	s.createPlan(0)
	sub, err := s.service.Create(s.GetContext(), CreateSubscriptionInput{
		CustomerID: "cust_1",
		PlanID:     "plan_pro",
		TrialDays:  -1,
	})
	s.Require().NoError(err)

	ok, err := s.service.HasAccess(s.GetContext(), sub.ID, 7)
	s.Require().NoError(err)
	s.True(ok)

	stored, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.Require().NoError(err)
	stored.SubscriptionStatus = types.SubscriptionStatusPastDue
	stored.GracePeriodStartedAt = lo.ToPtr(s.GetClock().Now())
	s.Require().NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), stored))

	// inside the grace window access is kept
	s.GetClock().Advance(3 * 24 * time.Hour)
	ok, err = s.service.HasAccess(s.GetContext(), sub.ID, 7)
	s.Require().NoError(err)
	s.True(ok)

	// once the window closes access is lost
	s.GetClock().Advance(5 * 24 * time.Hour)
	ok, err = s.service.HasAccess(s.GetContext(), sub.ID, 7)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *SubscriptionServiceSuite) seedSubscription(customerID string, status types.SubscriptionStatus) *subscription.Subscription {
	now := s.GetNow()
	sub := &subscription.Subscription{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		CustomerID:         customerID,
		PlanID:             "plan_pro",
		SubscriptionStatus: status,
		Currency:           "USD",
		Interval:           types.BillingIntervalMonth,
		IntervalCount:      1,
		Quantity:           1,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 1, 0),
		Version:            1,
		BaseModel:          types.GetDefaultBaseModel(s.GetContext(), false),
	}
	s.Require().NoError(s.GetStores().SubscriptionRepo.Create(s.GetContext(), sub))
	return sub
}

func (s *SubscriptionServiceSuite) TestGetActiveMatchesActiveStatusOnly() {
	s.seedSubscription("cust_1", types.SubscriptionStatusTrialing)
	s.seedSubscription("cust_1", types.SubscriptionStatusPastDue)

	// trialing and past_due do not qualify
	_, err := s.service.GetActive(s.GetContext(), "cust_1")
	s.Error(err)
	s.True(ierr.IsNotFound(err))

	active := s.seedSubscription("cust_1", types.SubscriptionStatusActive)

	got, err := s.service.GetActive(s.GetContext(), "cust_1")
	s.Require().NoError(err)
	s.Equal(active.ID, got.ID)
}
