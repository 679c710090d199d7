package entitlement

import (
	"time"

	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// Definition names a grantable capability, e.g. `premium` or `api_access`
type Definition struct {
	Key         string `db:"key" json:"key"`
	Name        string `db:"name" json:"name"`
	Description string `db:"description" json:"description,omitempty"`

	types.BaseModel
}

func (d *Definition) Validate() error {
	if d.Key == "" {
		return ierr.NewError("entitlement key is required").
			WithHint("Entitlement key is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// Grant gives a customer an entitlement, optionally until ExpiresAt.
// A nil ExpiresAt never expires.
type Grant struct {
	ID             string `db:"id" json:"id"`
	CustomerID     string `db:"customer_id" json:"customer_id"`
	EntitlementKey string `db:"entitlement_key" json:"entitlement_key"`

	GrantedAt time.Time  `db:"granted_at" json:"granted_at"`
	ExpiresAt *time.Time `db:"expires_at" json:"expires_at,omitempty"`

	Source   types.GrantSource `db:"source" json:"source"`
	SourceID string            `db:"source_id" json:"source_id,omitempty"`

	types.BaseModel
}

// IsActive reports whether the grant is in force at the given instant
func (g *Grant) IsActive(now time.Time) bool {
	return g.ExpiresAt == nil || now.Before(*g.ExpiresAt)
}

// MergeExpiry applies the re-grant rule: the stored expiry becomes the max
// of existing and incoming, and no-expiry always wins over a finite expiry.
// Re-granting with an earlier expiry never shortens the grant.
func MergeExpiry(existing, incoming *time.Time) *time.Time {
	if existing == nil || incoming == nil {
		return nil
	}
	if incoming.After(*existing) {
		return incoming
	}
	return existing
}
