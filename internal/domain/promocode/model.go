package promocode

import (
	"time"

	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// PromoCode is a customer-redeemable discount code
type PromoCode struct {
	ID string `db:"id" json:"id"`

	// Code is the unique redeemable string, matched case-insensitively
	Code string `db:"code" json:"code"`

	DiscountType types.DiscountType `db:"discount_type" json:"discount_type"`

	// DiscountValue is a percentage for percentage type, minor units for
	// fixed_amount, and ignored for free_trial
	DiscountValue int64 `db:"discount_value" json:"discount_value"`

	// Currency is required for fixed_amount discounts
	Currency string `db:"currency" json:"currency,omitempty"`

	StackingMode types.StackingMode `db:"stacking_mode" json:"stacking_mode"`

	Conditions []types.DiscountCondition `db:"conditions" json:"conditions,omitempty"`

	MaxRedemptions            *int64 `db:"max_redemptions" json:"max_redemptions,omitempty"`
	CurrentRedemptions        int64  `db:"current_redemptions" json:"current_redemptions"`
	MaxRedemptionsPerCustomer *int64 `db:"max_redemptions_per_customer" json:"max_redemptions_per_customer,omitempty"`

	// ApplicablePlanIDs empty means all plans
	ApplicablePlanIDs    []string `db:"applicable_plan_ids" json:"applicable_plan_ids,omitempty"`
	ApplicableProductIDs []string `db:"applicable_product_ids" json:"applicable_product_ids,omitempty"`

	ValidFrom  *time.Time `db:"valid_from" json:"valid_from,omitempty"`
	ValidUntil *time.Time `db:"valid_until" json:"valid_until,omitempty"`

	Active bool `db:"active" json:"active"`

	Metadata types.Metadata `db:"metadata" json:"metadata,omitempty"`

	Version int64 `db:"version" json:"version"`

	types.BaseModel
}

func (p *PromoCode) Validate() error {
	if p.Code == "" {
		return ierr.NewError("promo code is required").
			WithHint("Promo code is required").
			Mark(ierr.ErrValidation)
	}
	if err := p.DiscountType.Validate(); err != nil {
		return err
	}
	if p.DiscountType == types.DiscountTypeFixedAmount && p.Currency == "" {
		return ierr.NewError("currency is required for fixed amount discounts").
			WithHint("Currency is required for fixed amount discounts").
			Mark(ierr.ErrValidation)
	}
	if p.DiscountValue < 0 {
		return ierr.NewError("discount value must not be negative").
			WithHint("Discount value must not be negative").
			Mark(ierr.ErrValidation)
	}
	return p.StackingMode.Validate()
}

// RemainingRedemptions returns how many redemptions are left, or nil when
// unlimited.
func (p *PromoCode) RemainingRedemptions() *int64 {
	if p.MaxRedemptions == nil {
		return nil
	}
	remaining := *p.MaxRedemptions - p.CurrentRedemptions
	if remaining < 0 {
		remaining = 0
	}
	return &remaining
}

// Redemption records a single use of a promo code by a customer
type Redemption struct {
	ID          string `db:"id" json:"id"`
	PromoCodeID string `db:"promo_code_id" json:"promo_code_id"`
	CustomerID  string `db:"customer_id" json:"customer_id"`

	// Amount actually discounted, in minor units
	DiscountAmount int64  `db:"discount_amount" json:"discount_amount"`
	Currency       string `db:"currency" json:"currency"`

	InvoiceID string `db:"invoice_id" json:"invoice_id,omitempty"`

	RedeemedAt time.Time `db:"redeemed_at" json:"redeemed_at"`

	types.BaseModel
}
