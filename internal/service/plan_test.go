package service

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/qazuor/qzpay-sub003/internal/domain/plan"
	"github.com/qazuor/qzpay-sub003/internal/domain/price"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/testutil"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

type PlanServiceSuite struct {
	testutil.BaseServiceTestSuite
	service *PlanService
}

func TestPlanService(t *testing.T) {
	suite.Run(t, new(PlanServiceSuite))
}

func (s *PlanServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	stores := s.GetStores()
	s.service = NewPlanService(stores.PlanRepo, stores.PriceRepo, s.GetLogger())
}

func (s *PlanServiceSuite) createPlan() *plan.Plan {
	created, err := s.service.Create(s.GetContext(), &plan.Plan{
		Name:            "Pro",
		Active:          true,
		EntitlementKeys: []string{"api_access"},
		LimitDefaults:   map[string]int64{"projects": 10},
	})
	s.Require().NoError(err)
	return created
}

func (s *PlanServiceSuite) TestCreate() {
	created := s.createPlan()
	s.NotEmpty(created.ID)

	got, err := s.service.Get(s.GetContext(), created.ID)
	s.Require().NoError(err)
	s.Equal("Pro", got.Name)
	s.Equal([]string{"api_access"}, got.EntitlementKeys)
}

func (s *PlanServiceSuite) TestCreateRequiresName() {
	_, err := s.service.Create(s.GetContext(), &plan.Plan{Active: true})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *PlanServiceSuite) TestAddPrice() {
	p := s.createPlan()

	pr, err := s.service.AddPrice(s.GetContext(), &price.Price{
		PlanID:          p.ID,
		Currency:        "USD",
		UnitAmount:      2900,
		BillingInterval: types.BillingIntervalMonth,
		IntervalCount:   1,
		TrialDays:       14,
		Active:          true,
	})
	s.Require().NoError(err)
	s.NotEmpty(pr.ID)

	prices, err := s.service.ListPrices(s.GetContext(), p.ID)
	s.Require().NoError(err)
	s.Require().Len(prices, 1)
	s.Equal(int64(2900), prices[0].UnitAmount)
	s.Equal(14, prices[0].TrialDays)
}

func (s *PlanServiceSuite) TestAddPriceRejectsUnknownPlan() {
	_, err := s.service.AddPrice(s.GetContext(), &price.Price{
		PlanID:          "plan_missing",
		Currency:        "USD",
		UnitAmount:      2900,
		BillingInterval: types.BillingIntervalMonth,
		IntervalCount:   1,
	})
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *PlanServiceSuite) TestAddPriceValidation() {
	p := s.createPlan()

	_, err := s.service.AddPrice(s.GetContext(), &price.Price{
		PlanID:          p.ID,
		Currency:        "USD",
		UnitAmount:      -1,
		BillingInterval: types.BillingIntervalMonth,
		IntervalCount:   1,
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))

	_, err = s.service.AddPrice(s.GetContext(), &price.Price{
		PlanID:          p.ID,
		Currency:        "USD",
		UnitAmount:      2900,
		BillingInterval: types.BillingIntervalMonth,
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))

	_, err = s.service.AddPrice(s.GetContext(), &price.Price{
		PlanID:          p.ID,
		Currency:        "USD",
		UnitAmount:      2900,
		BillingInterval: types.BillingInterval("fortnight"),
		IntervalCount:   1,
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *PlanServiceSuite) TestUpdate() {
	p := s.createPlan()

	p.Active = false
	p.Description = "Legacy tier"
	_, err := s.service.Update(s.GetContext(), p)
	s.Require().NoError(err)

	got, err := s.service.Get(s.GetContext(), p.ID)
	s.Require().NoError(err)
	s.False(got.Active)
	s.Equal("Legacy tier", got.Description)
}

func (s *PlanServiceSuite) TestDeletePrice() {
	p := s.createPlan()
	pr, err := s.service.AddPrice(s.GetContext(), &price.Price{
		PlanID:          p.ID,
		Currency:        "USD",
		UnitAmount:      2900,
		BillingInterval: types.BillingIntervalMonth,
		IntervalCount:   1,
		Active:          true,
	})
	s.Require().NoError(err)

	s.Require().NoError(s.service.DeletePrice(s.GetContext(), pr.ID))

	prices, err := s.service.ListPrices(s.GetContext(), p.ID)
	s.Require().NoError(err)
	s.Empty(prices)
}
