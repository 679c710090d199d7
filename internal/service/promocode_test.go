package service

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/qazuor/qzpay-sub003/internal/domain/discount"
	"github.com/qazuor/qzpay-sub003/internal/domain/promocode"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/testutil"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

type PromoCodeServiceSuite struct {
	testutil.BaseServiceTestSuite
	service *PromoCodeService
}

func TestPromoCodeService(t *testing.T) {
	suite.Run(t, new(PromoCodeServiceSuite))
}

func (s *PromoCodeServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	stores := s.GetStores()
	s.service = NewPromoCodeService(stores.PromoCodeRepo, stores.DiscountRepo, s.GetLogger())
}

func (s *PromoCodeServiceSuite) TestCreateNormalizesCode() {
	created, err := s.service.Create(s.GetContext(), &promocode.PromoCode{
		Code:          "  summer25 ",
		DiscountType:  types.DiscountTypePercentage,
		DiscountValue: 25,
		StackingMode:  types.StackingModeBest,
		Active:        true,
	})
	s.Require().NoError(err)
	s.Equal("SUMMER25", created.Code)
	s.Equal(int64(1), created.Version)

	// lookup is case-insensitive
	got, err := s.service.GetByCode(s.GetContext(), "Summer25")
	s.Require().NoError(err)
	s.Equal(created.ID, got.ID)
}

func (s *PromoCodeServiceSuite) TestCreateRejectsDuplicateCode() {
	_, err := s.service.Create(s.GetContext(), &promocode.PromoCode{
		Code:          "LAUNCH",
		DiscountType:  types.DiscountTypePercentage,
		DiscountValue: 10,
		StackingMode:  types.StackingModeBest,
		Active:        true,
	})
	s.Require().NoError(err)

	_, err = s.service.Create(s.GetContext(), &promocode.PromoCode{
		Code:          "launch",
		DiscountType:  types.DiscountTypePercentage,
		DiscountValue: 20,
		StackingMode:  types.StackingModeBest,
		Active:        true,
	})
	s.Error(err)
	s.True(ierr.IsAlreadyExists(err))
}

func (s *PromoCodeServiceSuite) TestCreateValidation() {
	_, err := s.service.Create(s.GetContext(), &promocode.PromoCode{
		DiscountType:  types.DiscountTypePercentage,
		DiscountValue: 10,
		StackingMode:  types.StackingModeBest,
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))

	// fixed amount requires a currency
	_, err = s.service.Create(s.GetContext(), &promocode.PromoCode{
		Code:          "FIXED5",
		DiscountType:  types.DiscountTypeFixedAmount,
		DiscountValue: 500,
		StackingMode:  types.StackingModeBest,
	})
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *PromoCodeServiceSuite) TestDeactivate() {
	created, err := s.service.Create(s.GetContext(), &promocode.PromoCode{
		Code:          "WINTER",
		DiscountType:  types.DiscountTypePercentage,
		DiscountValue: 15,
		StackingMode:  types.StackingModeBest,
		Active:        true,
	})
	s.Require().NoError(err)

	deactivated, err := s.service.Deactivate(s.GetContext(), created.ID)
	s.Require().NoError(err)
	s.False(deactivated.Active)

	got, err := s.service.Get(s.GetContext(), created.ID)
	s.Require().NoError(err)
	s.False(got.Active)
}

func (s *PromoCodeServiceSuite) TestRemainingRedemptions() {
	max := int64(3)
	promo := &promocode.PromoCode{MaxRedemptions: &max, CurrentRedemptions: 1}
	s.Require().NotNil(promo.RemainingRedemptions())
	s.Equal(int64(2), *promo.RemainingRedemptions())

	promo.CurrentRedemptions = 5
	s.Equal(int64(0), *promo.RemainingRedemptions())

	unlimited := &promocode.PromoCode{}
	s.Nil(unlimited.RemainingRedemptions())
}

func (s *PromoCodeServiceSuite) TestAutomaticDiscounts() {
	created, err := s.service.CreateDiscount(s.GetContext(), &discount.AutomaticDiscount{
		Name:          "Loyalty 10%",
		DiscountType:  types.DiscountTypePercentage,
		DiscountValue: 10,
		StackingMode:  types.StackingModeBest,
		Priority:      10,
		Active:        true,
	})
	s.Require().NoError(err)
	s.NotEmpty(created.ID)

	listed, err := s.service.ListDiscounts(s.GetContext(), &discount.Filter{})
	s.Require().NoError(err)
	s.Require().Len(listed, 1)

	created.Active = false
	_, err = s.service.UpdateDiscount(s.GetContext(), created)
	s.Require().NoError(err)

	got, err := s.service.GetDiscount(s.GetContext(), created.ID)
	s.Require().NoError(err)
	s.False(got.Active)

	s.Require().NoError(s.service.DeleteDiscount(s.GetContext(), created.ID))
	_, err = s.service.GetDiscount(s.GetContext(), created.ID)
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}
