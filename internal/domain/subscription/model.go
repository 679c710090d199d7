package subscription

import (
	"time"

	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// Subscription is the mutating hot path of the billing engine. Lifecycle
// bookkeeping that the source system kept inside a metadata blob is modeled
// as first-class nullable fields here.
type Subscription struct {
	ID         string `db:"id" json:"id"`
	CustomerID string `db:"customer_id" json:"customer_id"`
	PlanID     string `db:"plan_id" json:"plan_id"`

	SubscriptionStatus types.SubscriptionStatus `db:"subscription_status" json:"subscription_status"`

	Currency      string                `db:"currency" json:"currency"`
	Interval      types.BillingInterval `db:"interval" json:"interval"`
	IntervalCount int                   `db:"interval_count" json:"interval_count"`
	Quantity      int64                 `db:"quantity" json:"quantity"`

	CurrentPeriodStart time.Time `db:"current_period_start" json:"current_period_start"`
	CurrentPeriodEnd   time.Time `db:"current_period_end" json:"current_period_end"`

	TrialStart *time.Time `db:"trial_start" json:"trial_start,omitempty"`
	TrialEnd   *time.Time `db:"trial_end" json:"trial_end,omitempty"`

	CancelAt          *time.Time `db:"cancel_at" json:"cancel_at,omitempty"`
	CanceledAt        *time.Time `db:"canceled_at" json:"canceled_at,omitempty"`
	CancelAtPeriodEnd bool       `db:"cancel_at_period_end" json:"cancel_at_period_end"`
	CancelReason      string     `db:"cancel_reason" json:"cancel_reason,omitempty"`

	// Grace period and retry bookkeeping, maintained by the lifecycle engine
	GracePeriodStartedAt *time.Time `db:"grace_period_started_at" json:"grace_period_started_at,omitempty"`
	GracePeriodEndedAt   *time.Time `db:"grace_period_ended_at" json:"grace_period_ended_at,omitempty"`
	RetryCount           int        `db:"retry_count" json:"retry_count"`
	LastRetryAt          *time.Time `db:"last_retry_at" json:"last_retry_at,omitempty"`
	LastRetryError       string     `db:"last_retry_error" json:"last_retry_error,omitempty"`
	LastRenewalAt        *time.Time `db:"last_renewal_at" json:"last_renewal_at,omitempty"`
	LastRenewalError     string     `db:"last_renewal_error" json:"last_renewal_error,omitempty"`
	LastPaymentID        string     `db:"last_payment_id" json:"last_payment_id,omitempty"`
	RecoveredAt          *time.Time `db:"recovered_at" json:"recovered_at,omitempty"`
	TrialConvertedAt     *time.Time `db:"trial_converted_at" json:"trial_converted_at,omitempty"`

	// ProviderIDs maps each payment provider to its subscription object id
	ProviderIDs types.ProviderIDs `db:"provider_ids" json:"provider_ids,omitempty"`

	Metadata types.Metadata `db:"metadata" json:"metadata,omitempty"`

	// Version is the optimistic-concurrency column; every update must carry
	// the version it read or fail with a version conflict
	Version int64 `db:"version" json:"version"`

	types.BaseModel
}

func (s *Subscription) Validate() error {
	if s.CustomerID == "" {
		return ierr.NewError("customer id is required").
			WithHint("Customer ID is required").
			Mark(ierr.ErrValidation)
	}
	if s.PlanID == "" {
		return ierr.NewError("plan id is required").
			WithHint("Plan ID is required").
			Mark(ierr.ErrValidation)
	}
	if s.Quantity < 1 {
		return ierr.NewError("quantity must be at least 1").
			WithHint("Quantity must be at least 1").
			Mark(ierr.ErrValidation)
	}
	if err := s.Interval.Validate(); err != nil {
		return err
	}
	return s.SubscriptionStatus.Validate()
}
