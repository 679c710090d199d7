package types

import (
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/samber/lo"
)

// SubscriptionStatus is the status of a subscription, following Stripe's
// subscription status vocabulary.
type SubscriptionStatus string

const (
	SubscriptionStatusTrialing          SubscriptionStatus = "trialing"
	SubscriptionStatusActive            SubscriptionStatus = "active"
	SubscriptionStatusPastDue           SubscriptionStatus = "past_due"
	SubscriptionStatusCanceled          SubscriptionStatus = "canceled"
	SubscriptionStatusPaused            SubscriptionStatus = "paused"
	SubscriptionStatusUnpaid            SubscriptionStatus = "unpaid"
	SubscriptionStatusIncomplete        SubscriptionStatus = "incomplete"
	SubscriptionStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
)

func (s SubscriptionStatus) String() string {
	return string(s)
}

func (s SubscriptionStatus) Validate() error {
	allowed := []SubscriptionStatus{
		SubscriptionStatusTrialing,
		SubscriptionStatusActive,
		SubscriptionStatusPastDue,
		SubscriptionStatusCanceled,
		SubscriptionStatusPaused,
		SubscriptionStatusUnpaid,
		SubscriptionStatusIncomplete,
		SubscriptionStatusIncompleteExpired,
	}
	if !lo.Contains(allowed, s) {
		return ierr.NewError("invalid subscription status").
			WithHint("Invalid subscription status").
			WithReportableDetails(map[string]any{
				"status":         s,
				"allowed_status": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// CountsForMRR reports whether subscriptions in this status contribute to
// monthly recurring revenue.
func (s SubscriptionStatus) CountsForMRR() bool {
	return s == SubscriptionStatusActive || s == SubscriptionStatusTrialing
}

// PaymentKind tags the reason a lifecycle payment was issued; it is attached
// to every external payment call for observability and provider-side
// idempotency.
type PaymentKind string

const (
	PaymentKindRenewal         PaymentKind = "renewal"
	PaymentKindTrialConversion PaymentKind = "trial_conversion"
	PaymentKindRetry           PaymentKind = "retry"
	PaymentKindOneTime         PaymentKind = "one_time"
)

// GrantSource identifies where an entitlement or limit grant came from
type GrantSource string

const (
	GrantSourceSubscription GrantSource = "subscription"
	GrantSourceAddon        GrantSource = "addon"
	GrantSourceManual       GrantSource = "manual"
	GrantSourcePromotion    GrantSource = "promotion"
)
