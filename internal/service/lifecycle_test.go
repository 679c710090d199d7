package service

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"

	"github.com/qazuor/qzpay-sub003/internal/domain/customer"
	"github.com/qazuor/qzpay-sub003/internal/domain/invoice"
	"github.com/qazuor/qzpay-sub003/internal/domain/payment"
	"github.com/qazuor/qzpay-sub003/internal/domain/paymentmethod"
	"github.com/qazuor/qzpay-sub003/internal/domain/price"
	"github.com/qazuor/qzpay-sub003/internal/domain/subscription"
	"github.com/qazuor/qzpay-sub003/internal/provider"
	"github.com/qazuor/qzpay-sub003/internal/testutil"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

type LifecycleServiceSuite struct {
	testutil.BaseServiceTestSuite
	payments *PaymentService
	service  *LifecycleService
}

func TestLifecycleService(t *testing.T) {
	suite.Run(t, new(LifecycleServiceSuite))
}

func (s *LifecycleServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	stores := s.GetStores()
	s.payments = NewPaymentService(
		stores.PaymentRepo,
		stores.CustomerRepo,
		stores.PaymentMethodRepo,
		s.GetProviderRegistry(),
		s.GetEventBus(),
		s.GetClock(),
		false,
		s.GetLogger(),
	)
	s.service = NewLifecycleService(
		stores.SubscriptionRepo,
		stores.PriceRepo,
		stores.InvoiceRepo,
		s.payments,
		s.GetEventBus(),
		s.GetClock(),
		s.GetConfig(),
		s.GetLogger(),
	)
}

// createCustomerWithCard provisions a billable customer whose default
// payment method is backed by the given test card.
func (s *LifecycleServiceSuite) createCustomerWithCard(card string) *customer.Customer {
	ctx := s.GetContext()

	providerCustomerID, err := s.GetMockProvider().CreateCustomer(ctx, "jordan@example.com", "Jordan")
	s.Require().NoError(err)

	attached, err := s.GetMockProvider().AttachPaymentMethod(ctx, provider.AttachRequest{
		ProviderCustomerID: providerCustomerID,
		MethodToken:        card,
	})
	s.Require().NoError(err)

	cust := &customer.Customer{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_CUSTOMER),
		ExternalID:  s.GetUUID(),
		Email:       "jordan@example.com",
		Name:        "Jordan",
		ProviderIDs: types.ProviderIDs{types.ProviderMock: providerCustomerID},
		BaseModel:   types.GetDefaultBaseModel(ctx, false),
	}
	s.Require().NoError(s.GetStores().CustomerRepo.Create(ctx, cust))

	method := &paymentmethod.PaymentMethod{
		ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT_METHOD),
		CustomerID:  cust.ID,
		Type:        types.PaymentMethodTypeCard,
		MethodSts:   types.PaymentMethodStatusActive,
		IsDefault:   true,
		ProviderIDs: types.ProviderIDs{types.ProviderMock: attached.ProviderMethodID},
		Version:     1,
		BaseModel:   types.GetDefaultBaseModel(ctx, false),
	}
	s.Require().NoError(s.GetStores().PaymentMethodRepo.Create(ctx, method))
	return cust
}

func (s *LifecycleServiceSuite) createPlanPrice(planID string, unitAmount int64) {
	p := &price.Price{
		ID:              types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PRICE),
		PlanID:          planID,
		Currency:        "USD",
		UnitAmount:      unitAmount,
		BillingInterval: types.BillingIntervalMonth,
		IntervalCount:   1,
		Active:          true,
		BaseModel:       types.GetDefaultBaseModel(s.GetContext(), false),
	}
	s.Require().NoError(s.GetStores().PriceRepo.Create(s.GetContext(), p))
}

func (s *LifecycleServiceSuite) createSubscription(customerID string, status types.SubscriptionStatus, periodEnd time.Time) *subscription.Subscription {
	sub := &subscription.Subscription{
		ID:                 types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		CustomerID:         customerID,
		PlanID:             "plan_pro",
		SubscriptionStatus: status,
		Currency:           "USD",
		Interval:           types.BillingIntervalMonth,
		IntervalCount:      1,
		Quantity:           1,
		CurrentPeriodStart: periodEnd.AddDate(0, -1, 0),
		CurrentPeriodEnd:   periodEnd,
		Version:            1,
		BaseModel:          types.GetDefaultBaseModel(s.GetContext(), false),
	}
	s.Require().NoError(s.GetStores().SubscriptionRepo.Create(s.GetContext(), sub))
	return sub
}

func (s *LifecycleServiceSuite) reload(id string) *subscription.Subscription {
	sub, err := s.GetStores().SubscriptionRepo.Get(s.GetContext(), id)
	s.Require().NoError(err)
	return sub
}

func (s *LifecycleServiceSuite) subscriptionPayments(subscriptionID string) []*payment.Payment {
	payments, err := s.GetStores().PaymentRepo.List(s.GetContext(), &payment.Filter{SubscriptionID: subscriptionID})
	s.Require().NoError(err)
	return payments
}

func (s *LifecycleServiceSuite) TestRenewalSuccess() {
	s.createPlanPrice("plan_pro", 1000)
	cust := s.createCustomerWithCard(provider.TestCardSucceeded)
	sub := s.createSubscription(cust.ID, types.SubscriptionStatusActive, s.GetNow().Add(-time.Hour))
	oldEnd := sub.CurrentPeriodEnd

	result, err := s.service.RunRenewals(s.GetContext())
	s.Require().NoError(err)
	s.Equal(1, result.Processed)
	s.Equal(1, result.Succeeded)
	s.Equal(0, result.Failed)

	updated := s.reload(sub.ID)
	s.Equal(types.SubscriptionStatusActive, updated.SubscriptionStatus)
	s.True(updated.CurrentPeriodStart.Equal(oldEnd))
	s.True(updated.CurrentPeriodEnd.Equal(oldEnd.AddDate(0, 1, 0)))
	s.NotEmpty(updated.LastPaymentID)
	s.NotNil(updated.LastRenewalAt)

	payments := s.subscriptionPayments(sub.ID)
	s.Require().Len(payments, 1)
	s.Equal(types.PaymentStatusSucceeded, payments[0].PaymentStatus)
	s.Equal(int64(1000), payments[0].Amount)

	invoices, err := s.GetStores().InvoiceRepo.List(s.GetContext(), &invoice.Filter{
		QueryFilter:    types.NewNoLimitQueryFilter(),
		SubscriptionID: sub.ID,
	})
	s.Require().NoError(err)
	s.Require().Len(invoices, 1)
	s.Equal(types.InvoiceStatusPaid, invoices[0].InvoiceStatus)
	s.Equal(int64(1000), invoices[0].Total)
	s.NotNil(invoices[0].PaidAt)
}

func (s *LifecycleServiceSuite) TestRenewalDeclineEntersGracePeriod() {
	s.createPlanPrice("plan_pro", 1000)
	cust := s.createCustomerWithCard(provider.TestCardDeclined)
	sub := s.createSubscription(cust.ID, types.SubscriptionStatusActive, s.GetNow().Add(-time.Hour))

	result, err := s.service.RunRenewals(s.GetContext())
	s.Require().NoError(err)
	s.Equal(1, result.Processed)
	s.Equal(1, result.Failed)

	updated := s.reload(sub.ID)
	s.Equal(types.SubscriptionStatusPastDue, updated.SubscriptionStatus)
	s.Require().NotNil(updated.GracePeriodStartedAt)
	s.True(updated.GracePeriodStartedAt.Equal(s.GetClock().Now()))
	s.Equal(0, updated.RetryCount)
	s.Equal("Your card was declined.", updated.LastRenewalError)
}

func (s *LifecycleServiceSuite) TestRenewalSkipsSubscriptionsNotDue() {
	s.createPlanPrice("plan_pro", 1000)
	cust := s.createCustomerWithCard(provider.TestCardSucceeded)
	s.createSubscription(cust.ID, types.SubscriptionStatusActive, s.GetNow().AddDate(0, 0, 10))

	pending := s.createSubscription(cust.ID, types.SubscriptionStatusActive, s.GetNow().Add(-time.Hour))
	pending.CancelAtPeriodEnd = true
	s.Require().NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), pending))

	result, err := s.service.RunRenewals(s.GetContext())
	s.Require().NoError(err)
	s.Equal(0, result.Processed)
}

func (s *LifecycleServiceSuite) TestRenewalChargesOncePerPeriod() {
	s.createPlanPrice("plan_pro", 1000)
	cust := s.createCustomerWithCard(provider.TestCardSucceeded)
	sub := s.createSubscription(cust.ID, types.SubscriptionStatusActive, s.GetNow().Add(-time.Hour))
	oldEnd := sub.CurrentPeriodEnd

	_, err := s.service.RunRenewals(s.GetContext())
	s.Require().NoError(err)

	// rewind the period as if the renewal write had been lost; the charge
	// for that period must be replayed, not issued again
	updated := s.reload(sub.ID)
	updated.CurrentPeriodStart = oldEnd.AddDate(0, -1, 0)
	updated.CurrentPeriodEnd = oldEnd
	s.Require().NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), updated))

	result, err := s.service.RunRenewals(s.GetContext())
	s.Require().NoError(err)
	s.Equal(1, result.Succeeded)

	s.Len(s.subscriptionPayments(sub.ID), 1)
}

func (s *LifecycleServiceSuite) TestTrialConversionSuccess() {
	s.createPlanPrice("plan_pro", 1000)
	cust := s.createCustomerWithCard(provider.TestCardSucceeded)
	sub := s.createSubscription(cust.ID, types.SubscriptionStatusTrialing, s.GetNow().Add(-time.Hour))
	sub.TrialStart = lo.ToPtr(s.GetNow().AddDate(0, 0, -14))
	sub.TrialEnd = lo.ToPtr(s.GetNow().Add(-time.Hour))
	s.Require().NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), sub))

	result, err := s.service.RunTrialConversions(s.GetContext())
	s.Require().NoError(err)
	s.Equal(1, result.Succeeded)

	updated := s.reload(sub.ID)
	s.Equal(types.SubscriptionStatusActive, updated.SubscriptionStatus)
	s.Require().NotNil(updated.TrialConvertedAt)
	s.True(updated.CurrentPeriodStart.Equal(s.GetClock().Now()))
	s.True(updated.CurrentPeriodEnd.Equal(s.GetClock().Now().AddDate(0, 1, 0)))

	payments := s.subscriptionPayments(sub.ID)
	s.Require().Len(payments, 1)
	s.Equal(types.PaymentStatusSucceeded, payments[0].PaymentStatus)
}

func (s *LifecycleServiceSuite) TestTrialConversionFailureCancelsImmediately() {
	s.createPlanPrice("plan_pro", 1000)
	cust := s.createCustomerWithCard(provider.TestCardInsufficientFunds)
	sub := s.createSubscription(cust.ID, types.SubscriptionStatusTrialing, s.GetNow().Add(-time.Hour))
	sub.TrialEnd = lo.ToPtr(s.GetNow().Add(-time.Hour))
	s.Require().NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), sub))

	result, err := s.service.RunTrialConversions(s.GetContext())
	s.Require().NoError(err)
	s.Equal(1, result.Failed)

	updated := s.reload(sub.ID)
	s.Equal(types.SubscriptionStatusCanceled, updated.SubscriptionStatus)
	s.NotNil(updated.CanceledAt)
	s.Equal("Trial conversion payment failed", updated.CancelReason)
}

func (s *LifecycleServiceSuite) TestTrialConversionWaitsForTrialEnd() {
	s.createPlanPrice("plan_pro", 1000)
	cust := s.createCustomerWithCard(provider.TestCardSucceeded)
	sub := s.createSubscription(cust.ID, types.SubscriptionStatusTrialing, s.GetNow().AddDate(0, 0, 5))
	sub.TrialEnd = lo.ToPtr(s.GetNow().AddDate(0, 0, 5))
	s.Require().NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), sub))

	result, err := s.service.RunTrialConversions(s.GetContext())
	s.Require().NoError(err)
	s.Equal(0, result.Processed)
}

func (s *LifecycleServiceSuite) TestRetryRecovery() {
	s.createPlanPrice("plan_pro", 1000)
	cust := s.createCustomerWithCard(provider.TestCardSucceeded)
	sub := s.createSubscription(cust.ID, types.SubscriptionStatusPastDue, s.GetNow().AddDate(0, 0, -2))
	sub.GracePeriodStartedAt = lo.ToPtr(s.GetNow().AddDate(0, 0, -2))
	sub.LastRenewalError = "Your card was declined."
	s.Require().NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), sub))
	oldEnd := sub.CurrentPeriodEnd

	result, err := s.service.RunRetries(s.GetContext())
	s.Require().NoError(err)
	s.Equal(1, result.Succeeded)

	updated := s.reload(sub.ID)
	s.Equal(types.SubscriptionStatusActive, updated.SubscriptionStatus)
	s.Nil(updated.GracePeriodStartedAt)
	s.Equal(0, updated.RetryCount)
	s.Nil(updated.LastRetryAt)
	s.Empty(updated.LastRetryError)
	s.Empty(updated.LastRenewalError)
	s.Require().NotNil(updated.RecoveredAt)
	s.True(updated.CurrentPeriodStart.Equal(oldEnd))
	s.True(updated.CurrentPeriodEnd.Equal(oldEnd.AddDate(0, 1, 0)))
}

func (s *LifecycleServiceSuite) TestRetryFailureAdvancesSchedule() {
	s.createPlanPrice("plan_pro", 1000)
	cust := s.createCustomerWithCard(provider.TestCardDeclined)
	sub := s.createSubscription(cust.ID, types.SubscriptionStatusPastDue, s.GetNow().AddDate(0, 0, -2))
	sub.GracePeriodStartedAt = lo.ToPtr(s.GetNow().AddDate(0, 0, -2))
	s.Require().NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), sub))

	result, err := s.service.RunRetries(s.GetContext())
	s.Require().NoError(err)
	s.Equal(1, result.Failed)

	updated := s.reload(sub.ID)
	s.Equal(types.SubscriptionStatusPastDue, updated.SubscriptionStatus)
	s.Equal(1, updated.RetryCount)
	s.Require().NotNil(updated.LastRetryAt)
	s.Equal("Your card was declined.", updated.LastRetryError)
}

func (s *LifecycleServiceSuite) TestRetryNotYetDue() {
	s.createPlanPrice("plan_pro", 1000)
	cust := s.createCustomerWithCard(provider.TestCardSucceeded)
	sub := s.createSubscription(cust.ID, types.SubscriptionStatusPastDue, s.GetNow())
	// grace started just now: first retry comes after one day
	sub.GracePeriodStartedAt = lo.ToPtr(s.GetNow())
	s.Require().NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), sub))

	result, err := s.service.RunRetries(s.GetContext())
	s.Require().NoError(err)
	s.Equal(0, result.Processed)

	s.GetClock().Advance(25 * time.Hour)
	result, err = s.service.RunRetries(s.GetContext())
	s.Require().NoError(err)
	s.Equal(1, result.Processed)
}

func (s *LifecycleServiceSuite) TestNonpaymentCancellation() {
	s.createPlanPrice("plan_pro", 1000)
	cust := s.createCustomerWithCard(provider.TestCardDeclined)
	sub := s.createSubscription(cust.ID, types.SubscriptionStatusPastDue, s.GetNow().AddDate(0, 0, -8))
	sub.GracePeriodStartedAt = lo.ToPtr(s.GetNow().AddDate(0, 0, -8))
	sub.RetryCount = 3
	s.Require().NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), sub))

	result, err := s.service.RunCancellations(s.GetContext())
	s.Require().NoError(err)
	s.Equal(1, result.Succeeded)

	updated := s.reload(sub.ID)
	s.Equal(types.SubscriptionStatusCanceled, updated.SubscriptionStatus)
	s.NotNil(updated.CanceledAt)
	s.NotNil(updated.GracePeriodEndedAt)
	s.Equal("Payment failed - grace period expired", updated.CancelReason)
}

func (s *LifecycleServiceSuite) TestCancellationWaitsForGraceExpiry() {
	s.createPlanPrice("plan_pro", 1000)
	cust := s.createCustomerWithCard(provider.TestCardDeclined)
	sub := s.createSubscription(cust.ID, types.SubscriptionStatusPastDue, s.GetNow().AddDate(0, 0, -2))
	sub.GracePeriodStartedAt = lo.ToPtr(s.GetNow().AddDate(0, 0, -2))
	sub.RetryCount = 3
	s.Require().NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), sub))

	result, err := s.service.RunCancellations(s.GetContext())
	s.Require().NoError(err)
	s.Equal(0, result.Processed)

	updated := s.reload(sub.ID)
	s.Equal(types.SubscriptionStatusPastDue, updated.SubscriptionStatus)
}

func (s *LifecycleServiceSuite) TestCancellationWaitsForRetriesToExhaust() {
	s.createPlanPrice("plan_pro", 1000)
	cust := s.createCustomerWithCard(provider.TestCardDeclined)
	sub := s.createSubscription(cust.ID, types.SubscriptionStatusPastDue, s.GetNow().AddDate(0, 0, -10))
	sub.GracePeriodStartedAt = lo.ToPtr(s.GetNow().AddDate(0, 0, -10))
	sub.RetryCount = 1
	s.Require().NoError(s.GetStores().SubscriptionRepo.Update(s.GetContext(), sub))

	result, err := s.service.RunCancellations(s.GetContext())
	s.Require().NoError(err)
	s.Equal(0, result.Processed)
}

func (s *LifecycleServiceSuite) TestRunExecutesAllPhases() {
	s.createPlanPrice("plan_pro", 1000)
	cust := s.createCustomerWithCard(provider.TestCardSucceeded)
	s.createSubscription(cust.ID, types.SubscriptionStatusActive, s.GetNow().Add(-time.Hour))

	result, err := s.service.Run(s.GetContext())
	s.Require().NoError(err)
	s.Equal(1, result.Renewals.Succeeded)
	s.Equal(0, result.TrialConversions.Processed)
	s.Equal(0, result.Retries.Processed)
	s.Equal(0, result.Cancellations.Processed)
	s.True(result.RanAt.Equal(s.GetClock().Now()))
}
