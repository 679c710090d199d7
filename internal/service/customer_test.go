package service

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/qazuor/qzpay-sub003/internal/domain/customer"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/testutil"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

type CustomerServiceSuite struct {
	testutil.BaseServiceTestSuite
	service *CustomerService
}

func TestCustomerService(t *testing.T) {
	suite.Run(t, new(CustomerServiceSuite))
}

func (s *CustomerServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewCustomerService(
		s.GetStores().CustomerRepo,
		s.GetProviderRegistry(),
		s.GetEventBus(),
		s.GetClock(),
		false,
		s.GetLogger(),
	)
}

func (s *CustomerServiceSuite) TestCreate() {
	created, err := s.service.Create(s.GetContext(), &customer.Customer{
		ExternalID: "user-1",
		Email:      "ana@example.com",
		Name:       "Ana",
	})
	s.Require().NoError(err)
	s.NotEmpty(created.ID)
	s.NotNil(created.ProviderIDs)

	got, err := s.service.GetByExternalID(s.GetContext(), "user-1")
	s.Require().NoError(err)
	s.Equal(created.ID, got.ID)
}

func (s *CustomerServiceSuite) TestCreateRejectsDuplicateExternalID() {
	_, err := s.service.Create(s.GetContext(), &customer.Customer{
		ExternalID: "user-1",
		Email:      "ana@example.com",
	})
	s.Require().NoError(err)

	_, err = s.service.Create(s.GetContext(), &customer.Customer{
		ExternalID: "user-1",
		Email:      "other@example.com",
	})
	s.Error(err)
	s.True(ierr.IsAlreadyExists(err))
}

func (s *CustomerServiceSuite) TestCreateValidation() {
	_, err := s.service.Create(s.GetContext(), &customer.Customer{
		Email: "ana@example.com",
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))

	_, err = s.service.Create(s.GetContext(), &customer.Customer{
		ExternalID: "user-2",
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))

	_, err = s.service.Create(s.GetContext(), &customer.Customer{
		ExternalID:     "user-3",
		Email:          "ana@example.com",
		BillingAddress: &customer.Address{Country: "USA"},
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *CustomerServiceSuite) TestUpdate() {
	created, err := s.service.Create(s.GetContext(), &customer.Customer{
		ExternalID: "user-1",
		Email:      "ana@example.com",
		Name:       "Ana",
	})
	s.Require().NoError(err)

	created.Name = "Ana Maria"
	created.Tier = "enterprise"
	updated, err := s.service.Update(s.GetContext(), created)
	s.Require().NoError(err)
	s.Equal("Ana Maria", updated.Name)

	got, err := s.service.Get(s.GetContext(), created.ID)
	s.Require().NoError(err)
	s.Equal("enterprise", got.Tier)
}

func (s *CustomerServiceSuite) TestDeleteRemovesProviderCustomer() {
	providerCustomerID, err := s.GetMockProvider().CreateCustomer(s.GetContext(), "ana@example.com", "Ana")
	s.Require().NoError(err)

	created, err := s.service.Create(s.GetContext(), &customer.Customer{
		ExternalID:  "user-1",
		Email:       "ana@example.com",
		ProviderIDs: types.ProviderIDs{types.ProviderMock: providerCustomerID},
	})
	s.Require().NoError(err)

	s.Require().NoError(s.service.Delete(s.GetContext(), created.ID))

	_, err = s.service.Get(s.GetContext(), created.ID)
	s.Error(err)
	s.True(ierr.IsNotFound(err))

	_, err = s.GetMockProvider().GetCustomer(s.GetContext(), providerCustomerID)
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *CustomerServiceSuite) TestDeleteSurvivesProviderFailure() {
	// provider id that was never created on the mock side
	created, err := s.service.Create(s.GetContext(), &customer.Customer{
		ExternalID:  "user-1",
		Email:       "ana@example.com",
		ProviderIDs: types.ProviderIDs{types.ProviderMock: "cus_gone"},
	})
	s.Require().NoError(err)

	// provider cleanup is best-effort
	s.Require().NoError(s.service.Delete(s.GetContext(), created.ID))

	_, err = s.service.Get(s.GetContext(), created.ID)
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *CustomerServiceSuite) TestEnsureProviderCustomerCreatesOnce() {
	created, err := s.service.Create(s.GetContext(), &customer.Customer{
		ExternalID: "user-1",
		Email:      "ana@example.com",
		Name:       "Ana",
	})
	s.Require().NoError(err)

	first, err := s.service.EnsureProviderCustomer(s.GetContext(), created.ID, types.ProviderMock)
	s.Require().NoError(err)
	s.NotEmpty(first)

	// second call returns the stored id instead of creating another
	second, err := s.service.EnsureProviderCustomer(s.GetContext(), created.ID, types.ProviderMock)
	s.Require().NoError(err)
	s.Equal(first, second)

	got, err := s.service.Get(s.GetContext(), created.ID)
	s.Require().NoError(err)
	s.Equal(first, got.ProviderIDs[types.ProviderMock])
}

func (s *CustomerServiceSuite) TestEnsureProviderCustomerUnknownProvider() {
	created, err := s.service.Create(s.GetContext(), &customer.Customer{
		ExternalID: "user-1",
		Email:      "ana@example.com",
	})
	s.Require().NoError(err)

	_, err = s.service.EnsureProviderCustomer(s.GetContext(), created.ID, types.ProviderStripe)
	s.Error(err)
	s.True(ierr.IsProviderUnavailable(err))
}

func (s *CustomerServiceSuite) TestListAndCount() {
	for _, ext := range []string{"user-1", "user-2", "user-3"} {
		_, err := s.service.Create(s.GetContext(), &customer.Customer{
			ExternalID: ext,
			Email:      ext + "@example.com",
		})
		s.Require().NoError(err)
	}

	all, err := s.service.List(s.GetContext(), &customer.Filter{})
	s.Require().NoError(err)
	s.Len(all, 3)

	count, err := s.service.Count(s.GetContext(), &customer.Filter{})
	s.Require().NoError(err)
	s.Equal(3, count)

	one, err := s.service.List(s.GetContext(), &customer.Filter{ExternalID: "user-2"})
	s.Require().NoError(err)
	s.Require().Len(one, 1)
	s.Equal("user-2@example.com", one[0].Email)
}
