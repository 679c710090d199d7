package service

import (
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"

	"github.com/qazuor/qzpay-sub003/internal/domain/discount"
	"github.com/qazuor/qzpay-sub003/internal/domain/promocode"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/testutil"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

type DiscountEngineServiceSuite struct {
	testutil.BaseServiceTestSuite
	service *DiscountEngineService
}

func TestDiscountEngineService(t *testing.T) {
	suite.Run(t, new(DiscountEngineServiceSuite))
}

func (s *DiscountEngineServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.service = NewDiscountEngineService(
		s.GetStores().PromoCodeRepo,
		s.GetStores().DiscountRepo,
		s.GetClock(),
		s.GetLogger(),
	)
}

func (s *DiscountEngineServiceSuite) baseContext() DiscountContext {
	return DiscountContext{
		CustomerID:  "cust_1",
		PlanID:      "plan_pro",
		Currency:    "USD",
		Subtotal:    10000,
		Quantity:    1,
		CurrentDate: s.GetNow(),
	}
}

func (s *DiscountEngineServiceSuite) percentPromo(code string, pct int64) *promocode.PromoCode {
	return &promocode.PromoCode{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PROMO_CODE),
		Code:          code,
		DiscountType:  types.DiscountTypePercentage,
		DiscountValue: pct,
		StackingMode:  types.StackingModeBest,
		Active:        true,
		BaseModel:     types.GetDefaultBaseModel(s.GetContext(), false),
	}
}

func (s *DiscountEngineServiceSuite) TestComputeAmountPercentage() {
	s.Equal(int64(1000), ComputeAmount(types.DiscountTypePercentage, 10, 10000))
	s.Equal(int64(2500), ComputeAmount(types.DiscountTypePercentage, 25, 10000))
	// rounds to nearest minor unit
	s.Equal(int64(33), ComputeAmount(types.DiscountTypePercentage, 33, 101))
}

func (s *DiscountEngineServiceSuite) TestComputeAmountClampsPercentage() {
	s.Equal(int64(10000), ComputeAmount(types.DiscountTypePercentage, 150, 10000))
	s.Equal(int64(0), ComputeAmount(types.DiscountTypePercentage, -10, 10000))
}

func (s *DiscountEngineServiceSuite) TestComputeAmountFixed() {
	s.Equal(int64(500), ComputeAmount(types.DiscountTypeFixedAmount, 500, 10000))
	// never exceeds the subtotal
	s.Equal(int64(10000), ComputeAmount(types.DiscountTypeFixedAmount, 50000, 10000))
	s.Equal(int64(0), ComputeAmount(types.DiscountTypeFixedAmount, -100, 10000))
}

func (s *DiscountEngineServiceSuite) TestComputeAmountFreeTrial() {
	s.Equal(int64(10000), ComputeAmount(types.DiscountTypeFreeTrial, 0, 10000))
}

func (s *DiscountEngineServiceSuite) TestComputeAmountZeroSubtotal() {
	s.Equal(int64(0), ComputeAmount(types.DiscountTypePercentage, 50, 0))
	s.Equal(int64(0), ComputeAmount(types.DiscountTypeFixedAmount, 500, -100))
}

func (s *DiscountEngineServiceSuite) TestValidatePromoCodeInactive() {
	promo := s.percentPromo("SAVE10", 10)
	promo.Active = false

	err := s.service.ValidatePromoCode(promo, s.baseContext())
	s.Error(err)
	s.True(ierr.IsValidation(err))
}

func (s *DiscountEngineServiceSuite) TestValidatePromoCodeExpiry() {
	promo := s.percentPromo("SAVE10", 10)
	promo.ValidUntil = lo.ToPtr(s.GetNow().Add(-time.Hour))
	s.Error(s.service.ValidatePromoCode(promo, s.baseContext()))

	promo = s.percentPromo("SOON", 10)
	promo.ValidFrom = lo.ToPtr(s.GetNow().Add(time.Hour))
	s.Error(s.service.ValidatePromoCode(promo, s.baseContext()))

	promo = s.percentPromo("LIVE", 10)
	promo.ValidFrom = lo.ToPtr(s.GetNow().Add(-time.Hour))
	promo.ValidUntil = lo.ToPtr(s.GetNow().Add(time.Hour))
	s.NoError(s.service.ValidatePromoCode(promo, s.baseContext()))
}

func (s *DiscountEngineServiceSuite) TestValidatePromoCodeRedemptionCap() {
	promo := s.percentPromo("CAPPED", 10)
	promo.MaxRedemptions = lo.ToPtr(int64(5))
	promo.CurrentRedemptions = 5

	err := s.service.ValidatePromoCode(promo, s.baseContext())
	s.Error(err)

	promo.CurrentRedemptions = 4
	s.NoError(s.service.ValidatePromoCode(promo, s.baseContext()))
}

func (s *DiscountEngineServiceSuite) TestValidatePromoCodeCurrencyMismatch() {
	promo := s.percentPromo("FIXED", 0)
	promo.DiscountType = types.DiscountTypeFixedAmount
	promo.DiscountValue = 500
	promo.Currency = "EUR"

	err := s.service.ValidatePromoCode(promo, s.baseContext())
	s.Error(err)

	promo.Currency = "usd"
	s.NoError(s.service.ValidatePromoCode(promo, s.baseContext()))
}

func (s *DiscountEngineServiceSuite) TestValidatePromoCodePlanApplicability() {
	promo := s.percentPromo("PLANS", 10)
	promo.ApplicablePlanIDs = []string{"plan_other"}
	s.Error(s.service.ValidatePromoCode(promo, s.baseContext()))

	promo.ApplicablePlanIDs = []string{"plan_other", "plan_pro"}
	s.NoError(s.service.ValidatePromoCode(promo, s.baseContext()))
}

func (s *DiscountEngineServiceSuite) TestValidatePromoCodeConditions() {
	promo := s.percentPromo("BIGCART", 10)
	promo.Conditions = []types.DiscountCondition{
		{Type: types.ConditionMinAmount, IntValue: 20000},
	}
	s.Error(s.service.ValidatePromoCode(promo, s.baseContext()))

	dctx := s.baseContext()
	dctx.Subtotal = 25000
	s.NoError(s.service.ValidatePromoCode(promo, dctx))
}

func (s *DiscountEngineServiceSuite) TestEvaluateConditions() {
	dctx := s.baseContext()
	dctx.CustomerTags = []string{"beta", "vip"}
	dctx.IsFirstPurchase = true
	dctx.Quantity = 3

	s.True(evaluateCondition(types.DiscountCondition{Type: types.ConditionFirstPurchase, BoolValue: true}, dctx))
	s.True(evaluateCondition(types.DiscountCondition{Type: types.ConditionMinQuantity, IntValue: 3}, dctx))
	s.False(evaluateCondition(types.DiscountCondition{Type: types.ConditionMinQuantity, IntValue: 4}, dctx))
	s.True(evaluateCondition(types.DiscountCondition{Type: types.ConditionCustomerTag, StringValue: "vip"}, dctx))
	s.False(evaluateCondition(types.DiscountCondition{Type: types.ConditionCustomerTag, StringValue: "none"}, dctx))
	s.True(evaluateCondition(types.DiscountCondition{Type: types.ConditionSpecificPlans, ListValue: []string{"plan_pro"}}, dctx))
	// unknown types evaluate to valid
	s.True(evaluateCondition(types.DiscountCondition{Type: "made_up"}, dctx))
}

func (s *DiscountEngineServiceSuite) TestEvaluateDateRangeCondition() {
	dctx := s.baseContext()
	cond := types.DiscountCondition{
		Type: types.ConditionDateRange,
		DateRangeVal: &types.DateRange{
			Start: lo.ToPtr(s.GetNow().Add(-time.Hour)),
			End:   lo.ToPtr(s.GetNow().Add(time.Hour)),
		},
	}
	s.True(evaluateCondition(cond, dctx))

	cond.DateRangeVal.End = lo.ToPtr(s.GetNow().Add(-time.Minute))
	s.False(evaluateCondition(cond, dctx))
}

func (s *DiscountEngineServiceSuite) TestApplyPromoCodesBest() {
	promos := []*promocode.PromoCode{
		s.percentPromo("SAVE10", 10),
		s.percentPromo("SAVE25", 25),
		s.percentPromo("SAVE5", 5),
	}

	result := s.service.ApplyPromoCodes(promos, types.StackingModeBest, s.baseContext())
	s.Equal(int64(2500), result.DiscountAmount)
	s.Equal(int64(7500), result.FinalAmount)
	s.Require().Len(result.AppliedDiscounts, 1)
	s.Equal("SAVE25", result.AppliedDiscounts[0].Code)
	s.Len(result.SkippedDiscounts, 2)
}

func (s *DiscountEngineServiceSuite) TestApplyPromoCodesNone() {
	promos := []*promocode.PromoCode{
		s.percentPromo("FIRST", 10),
		s.percentPromo("SECOND", 25),
	}

	result := s.service.ApplyPromoCodes(promos, types.StackingModeNone, s.baseContext())
	s.Equal(int64(1000), result.DiscountAmount)
	s.Require().Len(result.AppliedDiscounts, 1)
	s.Equal("FIRST", result.AppliedDiscounts[0].Code)
}

func (s *DiscountEngineServiceSuite) TestApplyPromoCodesAdditiveCapsAtSubtotal() {
	promos := []*promocode.PromoCode{
		s.percentPromo("A", 60),
		s.percentPromo("B", 60),
	}

	result := s.service.ApplyPromoCodes(promos, types.StackingModeAdditive, s.baseContext())
	s.Equal(int64(10000), result.DiscountAmount)
	s.Equal(int64(0), result.FinalAmount)
	s.Len(result.AppliedDiscounts, 2)
}

func (s *DiscountEngineServiceSuite) TestApplyPromoCodesMultiplicative() {
	promos := []*promocode.PromoCode{
		s.percentPromo("HALF", 50),
		s.percentPromo("TEN", 10),
	}

	// 50% of 10000 then 10% of the remaining 5000
	result := s.service.ApplyPromoCodes(promos, types.StackingModeMultiplicative, s.baseContext())
	s.Equal(int64(5500), result.DiscountAmount)
	s.Equal(int64(4500), result.FinalAmount)
}

func (s *DiscountEngineServiceSuite) TestApplyPromoCodesSkipsInvalid() {
	expired := s.percentPromo("OLD", 50)
	expired.ValidUntil = lo.ToPtr(s.GetNow().Add(-time.Hour))
	promos := []*promocode.PromoCode{expired, s.percentPromo("SAVE10", 10)}

	result := s.service.ApplyPromoCodes(promos, types.StackingModeBest, s.baseContext())
	s.Equal(int64(1000), result.DiscountAmount)
	s.Require().Len(result.SkippedDiscounts, 1)
	s.Equal("OLD", result.SkippedDiscounts[0].Code)
}

func (s *DiscountEngineServiceSuite) autoDiscount(name string, pct int64, priority int) *discount.AutomaticDiscount {
	return &discount.AutomaticDiscount{
		ID:            types.GenerateUUIDWithPrefix(types.UUID_PREFIX_DISCOUNT),
		Name:          name,
		DiscountType:  types.DiscountTypePercentage,
		DiscountValue: pct,
		Priority:      priority,
		StackingMode:  types.StackingModeBest,
		Active:        true,
		BaseModel:     types.GetDefaultBaseModel(s.GetContext(), false),
	}
}

func (s *DiscountEngineServiceSuite) TestApplyAutomaticDiscountsPriorityOrder() {
	discounts := []*discount.AutomaticDiscount{
		s.autoDiscount("low", 10, 1),
		s.autoDiscount("high", 5, 10),
	}

	// none mode applies only the highest-priority candidate
	result := s.service.ApplyAutomaticDiscounts(discounts, types.StackingModeNone, s.baseContext())
	s.Require().Len(result.AppliedDiscounts, 1)
	s.Equal("high", result.AppliedDiscounts[0].Name)
	s.Equal(int64(500), result.DiscountAmount)
}

func (s *DiscountEngineServiceSuite) TestApplyAutomaticDiscountsSkipsInactive() {
	inactive := s.autoDiscount("off", 50, 5)
	inactive.Active = false
	discounts := []*discount.AutomaticDiscount{inactive, s.autoDiscount("on", 10, 1)}

	result := s.service.ApplyAutomaticDiscounts(discounts, types.StackingModeBest, s.baseContext())
	s.Equal(int64(1000), result.DiscountAmount)
	s.Require().Len(result.SkippedDiscounts, 1)
	s.Equal("off", result.SkippedDiscounts[0].Name)
}

func (s *DiscountEngineServiceSuite) TestCombinePromoFirst() {
	promos := []*promocode.PromoCode{s.percentPromo("HALF", 50)}
	discounts := []*discount.AutomaticDiscount{s.autoDiscount("ten", 10, 1)}

	// 5000 off the subtotal, then 10% of the remaining 5000
	result := s.service.Combine(promos, discounts,
		types.StackingModeBest, types.StackingModeBest,
		types.CombinationModePromoFirst, s.baseContext())
	s.Equal(int64(5500), result.DiscountAmount)
	s.Equal(int64(4500), result.FinalAmount)
	s.Len(result.AppliedDiscounts, 2)
}

func (s *DiscountEngineServiceSuite) TestCombineAutoFirst() {
	promos := []*promocode.PromoCode{s.percentPromo("FIXED", 0)}
	promos[0].DiscountType = types.DiscountTypeFixedAmount
	promos[0].DiscountValue = 2000
	promos[0].Currency = "USD"
	discounts := []*discount.AutomaticDiscount{s.autoDiscount("half", 50, 1)}

	// 50% first leaves 5000, then the fixed 2000 comes off that
	result := s.service.Combine(promos, discounts,
		types.StackingModeBest, types.StackingModeBest,
		types.CombinationModeAutoFirst, s.baseContext())
	s.Equal(int64(7000), result.DiscountAmount)
	s.Equal(int64(3000), result.FinalAmount)
}

func (s *DiscountEngineServiceSuite) TestCombineBest() {
	promos := []*promocode.PromoCode{s.percentPromo("SMALL", 5)}
	discounts := []*discount.AutomaticDiscount{s.autoDiscount("big", 30, 1)}

	result := s.service.Combine(promos, discounts,
		types.StackingModeBest, types.StackingModeBest,
		types.CombinationModeBest, s.baseContext())
	s.Equal(int64(3000), result.DiscountAmount)
	s.Require().Len(result.AppliedDiscounts, 1)
	s.Equal("big", result.AppliedDiscounts[0].Name)
}

func (s *DiscountEngineServiceSuite) TestValidateCodeLooksUpAndValidates() {
	promo := s.percentPromo("WELCOME", 15)
	s.Require().NoError(s.GetStores().PromoCodeRepo.Create(s.GetContext(), promo))

	found, err := s.service.ValidateCode(s.GetContext(), "WELCOME", s.baseContext())
	s.NoError(err)
	s.Equal(promo.ID, found.ID)

	_, err = s.service.ValidateCode(s.GetContext(), "MISSING", s.baseContext())
	s.Error(err)
	s.True(ierr.IsNotFound(err))
}

func (s *DiscountEngineServiceSuite) TestValidateCodePerCustomerCap() {
	promo := s.percentPromo("ONCE", 15)
	promo.MaxRedemptionsPerCustomer = lo.ToPtr(int64(1))
	s.Require().NoError(s.GetStores().PromoCodeRepo.Create(s.GetContext(), promo))

	dctx := s.baseContext()
	_, err := s.service.ValidateCode(s.GetContext(), "ONCE", dctx)
	s.NoError(err)

	_, err = s.service.Redeem(s.GetContext(), promo, dctx.CustomerID, "inv_1", "USD", 1500)
	s.Require().NoError(err)

	_, err = s.service.ValidateCode(s.GetContext(), "ONCE", dctx)
	s.Error(err)
	s.True(ierr.IsValidation(err))

	// a different customer is still allowed
	other := dctx
	other.CustomerID = "cust_2"
	_, err = s.service.ValidateCode(s.GetContext(), "ONCE", other)
	s.NoError(err)
}

func (s *DiscountEngineServiceSuite) TestRedeemIncrementsCounter() {
	promo := s.percentPromo("COUNTME", 10)
	s.Require().NoError(s.GetStores().PromoCodeRepo.Create(s.GetContext(), promo))

	redemption, err := s.service.Redeem(s.GetContext(), promo, "cust_1", "inv_1", "USD", 1000)
	s.Require().NoError(err)
	s.Equal(promo.ID, redemption.PromoCodeID)
	s.Equal(int64(1000), redemption.DiscountAmount)
	s.True(redemption.RedeemedAt.Equal(s.GetClock().Now()))

	stored, err := s.GetStores().PromoCodeRepo.Get(s.GetContext(), promo.ID)
	s.Require().NoError(err)
	s.Equal(int64(1), stored.CurrentRedemptions)
}

func (s *DiscountEngineServiceSuite) TestDescribePromo() {
	promo := s.percentPromo("TEN", 10)
	s.Equal("10% off", DescribePromo(promo))

	fixed := s.percentPromo("FIVE", 0)
	fixed.DiscountType = types.DiscountTypeFixedAmount
	fixed.DiscountValue = 500
	fixed.Currency = "usd"
	s.Equal("5.00 USD off", DescribePromo(fixed))
}
