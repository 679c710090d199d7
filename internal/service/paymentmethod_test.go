package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/qazuor/qzpay-sub003/internal/domain/customer"
	"github.com/qazuor/qzpay-sub003/internal/domain/paymentmethod"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/provider"
	"github.com/qazuor/qzpay-sub003/internal/testutil"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

type PaymentMethodServiceSuite struct {
	testutil.BaseServiceTestSuite
	customers *CustomerService
	service   *PaymentMethodService
}

func TestPaymentMethodService(t *testing.T) {
	suite.Run(t, new(PaymentMethodServiceSuite))
}

func (s *PaymentMethodServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.customers = NewCustomerService(
		s.GetStores().CustomerRepo,
		s.GetProviderRegistry(),
		s.GetEventBus(),
		s.GetClock(),
		false,
		s.GetLogger(),
	)
	s.service = NewPaymentMethodService(
		s.GetStores().PaymentMethodRepo,
		s.customers,
		s.GetProviderRegistry(),
		s.GetEventBus(),
		s.GetClock(),
		false,
		s.GetLogger(),
	)
}

func (s *PaymentMethodServiceSuite) createCustomer() *customer.Customer {
	created, err := s.customers.Create(s.GetContext(), &customer.Customer{
		ExternalID: s.GetUUID(),
		Email:      "kim@example.com",
		Name:       "Kim",
	})
	s.Require().NoError(err)
	return created
}

func (s *PaymentMethodServiceSuite) TestAttachFirstMethodBecomesDefault() {
	cust := s.createCustomer()

	pm, err := s.service.Attach(s.GetContext(), AttachMethodInput{
		CustomerID:  cust.ID,
		Provider:    types.ProviderMock,
		MethodToken: provider.TestCardSucceeded,
	})
	s.Require().NoError(err)
	s.Equal(types.PaymentMethodTypeCard, pm.Type)
	s.Equal(types.PaymentMethodStatusActive, pm.MethodSts)
	s.True(pm.IsDefault)
	s.Require().NotNil(pm.Card)
	s.Equal("4242", pm.Card.Last4)
	s.Equal("visa", pm.Card.Brand)

	// attaching lazily created the provider customer
	got, err := s.customers.Get(s.GetContext(), cust.ID)
	s.Require().NoError(err)
	s.NotEmpty(got.ProviderIDs[types.ProviderMock])
}

func (s *PaymentMethodServiceSuite) TestAttachSecondMethodKeepsDefault() {
	cust := s.createCustomer()

	first, err := s.service.Attach(s.GetContext(), AttachMethodInput{
		CustomerID:  cust.ID,
		Provider:    types.ProviderMock,
		MethodToken: provider.TestCardSucceeded,
	})
	s.Require().NoError(err)

	second, err := s.service.Attach(s.GetContext(), AttachMethodInput{
		CustomerID:  cust.ID,
		Provider:    types.ProviderMock,
		MethodToken: "5555555555554444",
	})
	s.Require().NoError(err)
	s.False(second.IsDefault)

	def, err := s.service.GetDefault(s.GetContext(), cust.ID)
	s.Require().NoError(err)
	s.Equal(first.ID, def.ID)
}

func (s *PaymentMethodServiceSuite) TestAttachWithSetDefaultSwitchesDefault() {
	cust := s.createCustomer()

	_, err := s.service.Attach(s.GetContext(), AttachMethodInput{
		CustomerID:  cust.ID,
		Provider:    types.ProviderMock,
		MethodToken: provider.TestCardSucceeded,
	})
	s.Require().NoError(err)

	second, err := s.service.Attach(s.GetContext(), AttachMethodInput{
		CustomerID:  cust.ID,
		Provider:    types.ProviderMock,
		MethodToken: "5555555555554444",
		SetDefault:  true,
	})
	s.Require().NoError(err)
	s.True(second.IsDefault)

	methods, err := s.service.ListByCustomer(s.GetContext(), cust.ID)
	s.Require().NoError(err)
	s.Require().Len(methods, 2)
	for _, pm := range methods {
		s.Equal(pm.ID == second.ID, pm.IsDefault)
	}
}

func (s *PaymentMethodServiceSuite) TestAttachRejectsEmptyToken() {
	cust := s.createCustomer()

	_, err := s.service.Attach(s.GetContext(), AttachMethodInput{
		CustomerID: cust.ID,
		Provider:   types.ProviderMock,
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *PaymentMethodServiceSuite) TestAttachDeclinedByProvider() {
	cust := s.createCustomer()

	_, err := s.service.Attach(s.GetContext(), AttachMethodInput{
		CustomerID:  cust.ID,
		Provider:    types.ProviderMock,
		MethodToken: provider.TestCardAttachFails,
	})
	s.Error(err)
	s.True(ierr.IsPaymentDeclined(err))

	methods, err := s.service.ListByCustomer(s.GetContext(), cust.ID)
	s.Require().NoError(err)
	s.Empty(methods)
}

func (s *PaymentMethodServiceSuite) TestSetDefaultRejectsForeignMethod() {
	cust := s.createCustomer()
	other := s.createCustomer()

	pm, err := s.service.Attach(s.GetContext(), AttachMethodInput{
		CustomerID:  other.ID,
		Provider:    types.ProviderMock,
		MethodToken: provider.TestCardSucceeded,
	})
	s.Require().NoError(err)

	err = s.service.SetDefault(s.GetContext(), cust.ID, pm.ID)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *PaymentMethodServiceSuite) TestDetach() {
	cust := s.createCustomer()

	pm, err := s.service.Attach(s.GetContext(), AttachMethodInput{
		CustomerID:  cust.ID,
		Provider:    types.ProviderMock,
		MethodToken: provider.TestCardSucceeded,
	})
	s.Require().NoError(err)

	s.Require().NoError(s.service.Detach(s.GetContext(), pm.ID))

	got, err := s.service.Get(s.GetContext(), pm.ID)
	s.Require().NoError(err)
	s.Equal(types.PaymentMethodStatusDetached, got.MethodSts)
	s.False(got.IsDefault)

	// the provider-side method is gone
	err = s.GetMockProvider().DetachPaymentMethod(s.GetContext(), pm.ProviderIDs[types.ProviderMock])
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *PaymentMethodServiceSuite) TestCheckExpiringMarksExpiredCards() {
	cust := s.createCustomer()
	ctx := s.GetContext()
	now := s.GetClock().Now()

	expired := now.AddDate(0, -2, 0)
	soon := now.AddDate(0, 1, 0)

	expiredPM := newTestPaymentMethod(ctx, cust.ID, "pm_mock_expired")
	expiredPM.Card = &paymentmethod.Card{Last4: "0069", Brand: "visa", ExpMonth: int(expired.Month()), ExpYear: expired.Year()}
	s.Require().NoError(s.GetStores().PaymentMethodRepo.Create(ctx, expiredPM))

	soonPM := newTestPaymentMethod(ctx, cust.ID, "pm_mock_soon")
	soonPM.IsDefault = false
	soonPM.Card = &paymentmethod.Card{Last4: "4242", Brand: "visa", ExpMonth: int(soon.Month()), ExpYear: soon.Year()}
	s.Require().NoError(s.GetStores().PaymentMethodRepo.Create(ctx, soonPM))

	freshPM := newTestPaymentMethod(ctx, cust.ID, "pm_mock_fresh")
	freshPM.IsDefault = false
	freshPM.Card = &paymentmethod.Card{Last4: "1111", Brand: "visa", ExpMonth: 12, ExpYear: now.Year() + 4}
	s.Require().NoError(s.GetStores().PaymentMethodRepo.Create(ctx, freshPM))

	rec := &eventRecorder{}
	unsub := s.GetEventBus().On(types.EventPaymentMethodExpiring, func(event *types.LifecycleEvent) {
		rec.record(event)
	})
	defer unsub()

	expiring, err := s.service.CheckExpiring(s.GetContext(), 90)
	s.Require().NoError(err)
	s.Len(expiring, 2)

	got, err := s.service.Get(ctx, expiredPM.ID)
	s.Require().NoError(err)
	s.Equal(types.PaymentMethodStatusExpired, got.MethodSts)

	// not yet expired, only approaching
	got, err = s.service.Get(ctx, soonPM.ID)
	s.Require().NoError(err)
	s.Equal(types.PaymentMethodStatusActive, got.MethodSts)

	got, err = s.service.Get(ctx, freshPM.ID)
	s.Require().NoError(err)
	s.Equal(types.PaymentMethodStatusActive, got.MethodSts)

	s.Eventually(func() bool { return rec.count() == 2 }, time.Second, 10*time.Millisecond)
}
