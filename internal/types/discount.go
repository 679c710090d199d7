package types

import (
	"time"

	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/samber/lo"
)

// DiscountType is the kind of discount a promo code or automatic discount
// grants.
type DiscountType string

const (
	DiscountTypePercentage  DiscountType = "percentage"
	DiscountTypeFixedAmount DiscountType = "fixed_amount"
	DiscountTypeFreeTrial   DiscountType = "free_trial"
)

func (d DiscountType) String() string {
	return string(d)
}

func (d DiscountType) Validate() error {
	allowed := []DiscountType{
		DiscountTypePercentage,
		DiscountTypeFixedAmount,
		DiscountTypeFreeTrial,
	}
	if !lo.Contains(allowed, d) {
		return ierr.NewError("invalid discount type").
			WithHint("Invalid discount type").
			WithReportableDetails(map[string]any{
				"type":          d,
				"allowed_types": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// StackingMode is the policy for combining multiple discounts
type StackingMode string

const (
	StackingModeNone           StackingMode = "none"
	StackingModeBest           StackingMode = "best"
	StackingModeAdditive       StackingMode = "additive"
	StackingModeMultiplicative StackingMode = "multiplicative"
)

func (m StackingMode) Validate() error {
	allowed := []StackingMode{
		StackingModeNone,
		StackingModeBest,
		StackingModeAdditive,
		StackingModeMultiplicative,
	}
	if !lo.Contains(allowed, m) {
		return ierr.NewError("invalid stacking mode").
			WithHint("Invalid stacking mode").
			WithReportableDetails(map[string]any{
				"mode":          m,
				"allowed_modes": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// CombinationMode decides how promo codes combine with automatic discounts
type CombinationMode string

const (
	CombinationModeBest       CombinationMode = "best"
	CombinationModePromoFirst CombinationMode = "promo_first"
	CombinationModeAutoFirst  CombinationMode = "auto_first"
)

// ConditionType is the kind of a discount condition
type ConditionType string

const (
	ConditionFirstPurchase    ConditionType = "first_purchase"
	ConditionMinAmount        ConditionType = "min_amount"
	ConditionMinQuantity      ConditionType = "min_quantity"
	ConditionSpecificPlans    ConditionType = "specific_plans"
	ConditionSpecificProducts ConditionType = "specific_products"
	ConditionCustomerTag      ConditionType = "customer_tag"
	ConditionDateRange        ConditionType = "date_range"
)

// DateRange is the value of a date_range condition; both bounds optional
type DateRange struct {
	Start *time.Time `json:"start,omitempty"`
	End   *time.Time `json:"end,omitempty"`
}

// DiscountCondition is a single eligibility rule attached to a promo code or
// automatic discount. Exactly one of the value fields is set depending on
// Type; unknown types evaluate to valid.
type DiscountCondition struct {
	Type         ConditionType `json:"type"`
	BoolValue    bool          `json:"bool_value,omitempty"`
	IntValue     int64         `json:"int_value,omitempty"`
	StringValue  string        `json:"string_value,omitempty"`
	ListValue    []string      `json:"list_value,omitempty"`
	DateRangeVal *DateRange    `json:"date_range,omitempty"`
}
