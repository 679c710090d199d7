package addon

import (
	"time"

	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// AddOn is an optional extra billed alongside a subscription
type AddOn struct {
	ID          string `db:"id" json:"id"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description,omitempty"`

	UnitAmount int64          `db:"unit_amount" json:"unit_amount"`
	Currency   types.Currency `db:"currency" json:"currency"`

	// Entitlements and limit bumps granted while the add-on is attached
	EntitlementKeys []string         `db:"entitlement_keys" json:"entitlement_keys,omitempty"`
	LimitBumps      map[string]int64 `db:"limit_bumps" json:"limit_bumps,omitempty"`

	Active bool `db:"active" json:"active"`

	ProviderIDs types.ProviderIDs `db:"provider_ids" json:"provider_ids,omitempty"`

	Metadata types.Metadata `db:"metadata" json:"metadata,omitempty"`

	types.BaseModel
}

func (a *AddOn) Validate() error {
	if a.Name == "" {
		return ierr.NewError("addon name is required").
			WithHint("Add-on name is required").
			Mark(ierr.ErrValidation)
	}
	if a.UnitAmount < 0 {
		return ierr.NewError("addon unit amount must be non-negative").
			WithHint("Unit amount cannot be negative").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// SubscriptionAddOn attaches an add-on to a subscription with a quantity
type SubscriptionAddOn struct {
	ID             string `db:"id" json:"id"`
	SubscriptionID string `db:"subscription_id" json:"subscription_id"`
	AddOnID        string `db:"addon_id" json:"addon_id"`

	Quantity int64 `db:"quantity" json:"quantity"`

	AttachedAt time.Time  `db:"attached_at" json:"attached_at"`
	DetachedAt *time.Time `db:"detached_at" json:"detached_at,omitempty"`

	types.BaseModel
}

// IsAttached reports whether the add-on is currently billed
func (s *SubscriptionAddOn) IsAttached() bool {
	return s.DetachedAt == nil
}

func (s *SubscriptionAddOn) Validate() error {
	if s.SubscriptionID == "" {
		return ierr.NewError("subscription_id is required").
			WithHint("Subscription ID is required").
			Mark(ierr.ErrValidation)
	}
	if s.AddOnID == "" {
		return ierr.NewError("addon_id is required").
			WithHint("Add-on ID is required").
			Mark(ierr.ErrValidation)
	}
	if s.Quantity <= 0 {
		return ierr.NewError("quantity must be positive").
			WithHint("Quantity must be at least 1").
			Mark(ierr.ErrValidation)
	}
	return nil
}
