package plan

import (
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// Plan is a sellable product tier; prices attach billing cadences to it
type Plan struct {
	ID          string `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description,omitempty"`
	Active      bool   `db:"active" json:"active"`

	// Features are displayed capabilities of the plan
	Features []Feature `db:"features" json:"features,omitempty"`

	// EntitlementKeys are granted to the customer while a subscription to
	// this plan is active
	EntitlementKeys []string `db:"entitlement_keys" json:"entitlement_keys,omitempty"`

	// LimitDefaults maps limit key to the max value granted by this plan
	LimitDefaults map[string]int64 `db:"limit_defaults" json:"limit_defaults,omitempty"`

	Metadata types.Metadata `db:"metadata" json:"metadata,omitempty"`

	types.BaseModel
}

// Feature is a displayed plan capability
type Feature struct {
	Name     string `json:"name"`
	Included bool   `json:"included"`
}

func (p *Plan) Validate() error {
	if p.Name == "" {
		return ierr.NewError("plan name is required").
			WithHint("Plan name is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}
