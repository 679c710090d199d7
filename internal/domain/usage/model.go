package usage

import (
	"time"

	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// Action says how a record affects the running counter
type Action string

const (
	ActionIncrement Action = "increment"
	ActionSet       Action = "set"
)

// UsageRecord is an append-only entry against a customer's limit counter
type UsageRecord struct {
	ID         string `db:"id" json:"id"`
	CustomerID string `db:"customer_id" json:"customer_id"`
	LimitKey   string `db:"limit_key" json:"limit_key"`

	Action Action `db:"action" json:"action"`
	Value  int64  `db:"value" json:"value"`

	RecordedAt time.Time `db:"recorded_at" json:"recorded_at"`

	IdempotencyKey string `db:"idempotency_key" json:"idempotency_key,omitempty"`

	Metadata types.Metadata `db:"metadata" json:"metadata,omitempty"`

	types.BaseModel
}

func (u *UsageRecord) Validate() error {
	if u.CustomerID == "" {
		return ierr.NewError("customer_id is required").
			WithHint("Customer ID is required").
			Mark(ierr.ErrValidation)
	}
	if u.LimitKey == "" {
		return ierr.NewError("limit_key is required").
			WithHint("Limit key is required").
			Mark(ierr.ErrValidation)
	}
	switch u.Action {
	case ActionIncrement, ActionSet:
	default:
		return ierr.NewError("invalid usage action").
			WithHint("Action must be increment or set").
			WithReportableDetails(map[string]any{"action": u.Action}).
			Mark(ierr.ErrValidation)
	}
	if u.Value < 0 {
		return ierr.NewError("usage value must be non-negative").
			WithHint("Usage value cannot be negative").
			Mark(ierr.ErrValidation)
	}
	return nil
}
