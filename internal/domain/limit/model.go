package limit

import (
	"time"

	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// Definition names a quota and its default cap
type Definition struct {
	Key          string `db:"key" json:"key"`
	Name         string `db:"name" json:"name"`
	DefaultValue int64  `db:"default_value" json:"default_value"`

	types.BaseModel
}

func (d *Definition) Validate() error {
	if d.Key == "" {
		return ierr.NewError("limit key is required").
			WithHint("Limit key is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}

// CustomerLimit tracks a customer's consumption of a quota.
// allowed <=> CurrentValue < MaxValue.
type CustomerLimit struct {
	ID         string `db:"id" json:"id"`
	CustomerID string `db:"customer_id" json:"customer_id"`
	LimitKey   string `db:"limit_key" json:"limit_key"`

	MaxValue     int64 `db:"max_value" json:"max_value"`
	CurrentValue int64 `db:"current_value" json:"current_value"`

	ResetAt *time.Time `db:"reset_at" json:"reset_at,omitempty"`

	Source types.GrantSource `db:"source" json:"source"`

	Version int64 `db:"version" json:"version"`

	types.BaseModel
}

// Allowed reports whether further consumption is permitted
func (l *CustomerLimit) Allowed() bool {
	return l.CurrentValue < l.MaxValue
}

// Remaining returns the unconsumed quota, never negative
func (l *CustomerLimit) Remaining() int64 {
	if l.CurrentValue >= l.MaxValue {
		return 0
	}
	return l.MaxValue - l.CurrentValue
}
