package discount

import (
	"time"

	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// AutomaticDiscount applies without a code when its conditions hold.
// Higher priority evaluates first.
type AutomaticDiscount struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`

	DiscountType  types.DiscountType `db:"discount_type" json:"discount_type"`
	DiscountValue int64              `db:"discount_value" json:"discount_value"`
	Currency      string             `db:"currency" json:"currency,omitempty"`

	Conditions []types.DiscountCondition `db:"conditions" json:"conditions,omitempty"`

	Priority int `db:"priority" json:"priority"`

	StackingMode types.StackingMode `db:"stacking_mode" json:"stacking_mode"`

	Active bool `db:"active" json:"active"`

	ValidFrom  *time.Time `db:"valid_from" json:"valid_from,omitempty"`
	ValidUntil *time.Time `db:"valid_until" json:"valid_until,omitempty"`

	types.BaseModel
}

func (d *AutomaticDiscount) Validate() error {
	if d.Name == "" {
		return ierr.NewError("discount name is required").
			WithHint("Discount name is required").
			Mark(ierr.ErrValidation)
	}
	if err := d.DiscountType.Validate(); err != nil {
		return err
	}
	return d.StackingMode.Validate()
}
