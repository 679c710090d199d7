package price

import (
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// Price binds a billing cadence and amount to a plan. UnitAmount is in
// integer minor currency units (cents).
type Price struct {
	ID       string `db:"id" json:"id"`
	PlanID   string `db:"plan_id" json:"plan_id"`
	Currency string `db:"currency" json:"currency"`

	UnitAmount int64 `db:"unit_amount" json:"unit_amount"`

	BillingInterval types.BillingInterval `db:"billing_interval" json:"billing_interval"`
	IntervalCount   int                   `db:"interval_count" json:"interval_count"`

	// TrialDays grants a free trial on new subscriptions; 0 means none
	TrialDays int `db:"trial_days" json:"trial_days,omitempty"`

	Active bool `db:"active" json:"active"`

	// ProviderIDs maps each payment provider to its price object id
	ProviderIDs types.ProviderIDs `db:"provider_ids" json:"provider_ids,omitempty"`

	Metadata types.Metadata `db:"metadata" json:"metadata,omitempty"`

	types.BaseModel
}

func (p *Price) Validate() error {
	if p.PlanID == "" {
		return ierr.NewError("plan id is required").
			WithHint("Plan ID is required").
			Mark(ierr.ErrValidation)
	}
	if p.UnitAmount < 0 {
		return ierr.NewError("unit amount must not be negative").
			WithHint("Unit amount must not be negative").
			Mark(ierr.ErrValidation)
	}
	if p.IntervalCount < 1 {
		return ierr.NewError("interval count must be at least 1").
			WithHint("Interval count must be at least 1").
			Mark(ierr.ErrValidation)
	}
	return p.BillingInterval.Validate()
}
