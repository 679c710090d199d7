package subscription

import (
	"time"

	"github.com/qazuor/qzpay-sub003/internal/types"
)

// HasAccess reports whether the subscription still grants product access.
// A past_due subscription keeps access while inside the grace period.
func HasAccess(s *Subscription, gracePeriodDays int, now time.Time) bool {
	switch s.SubscriptionStatus {
	case types.SubscriptionStatusActive, types.SubscriptionStatusTrialing:
		return true
	case types.SubscriptionStatusPastDue:
		if s.GracePeriodStartedAt == nil {
			return false
		}
		return now.Before(s.GracePeriodStartedAt.AddDate(0, 0, gracePeriodDays))
	default:
		return false
	}
}

// DaysUntilRenewal returns whole days until the current period ends,
// negative when the period is already over.
func DaysUntilRenewal(s *Subscription, now time.Time) int {
	return int(s.CurrentPeriodEnd.Sub(now).Hours() / 24)
}

// IsInTrial reports whether the subscription is inside its trial window
func IsInTrial(s *Subscription, now time.Time) bool {
	return s.SubscriptionStatus == types.SubscriptionStatusTrialing &&
		s.TrialEnd != nil && now.Before(*s.TrialEnd)
}

// DueForRenewal reports renewal-phase eligibility
func DueForRenewal(s *Subscription, now time.Time) bool {
	return s.SubscriptionStatus == types.SubscriptionStatusActive &&
		!s.CancelAtPeriodEnd &&
		!s.CurrentPeriodEnd.After(now)
}

// DueForTrialConversion reports trial-conversion-phase eligibility.
// conversionDays of 0 converts only once the trial has ended.
func DueForTrialConversion(s *Subscription, conversionDays int, now time.Time) bool {
	if s.SubscriptionStatus != types.SubscriptionStatusTrialing || s.TrialEnd == nil {
		return false
	}
	if conversionDays == 0 {
		return !now.Before(*s.TrialEnd)
	}
	return s.TrialEnd.Sub(now) <= time.Duration(conversionDays)*24*time.Hour
}

// NextRetryAt computes when the next payment retry is due, or nil when the
// retry schedule is exhausted or the subscription is not in grace.
func NextRetryAt(s *Subscription, retryIntervals []int) *time.Time {
	if s.GracePeriodStartedAt == nil {
		return nil
	}
	if s.RetryCount >= len(retryIntervals) {
		return nil
	}
	last := s.GracePeriodStartedAt
	if s.LastRetryAt != nil {
		last = s.LastRetryAt
	}
	next := last.AddDate(0, 0, retryIntervals[s.RetryCount])
	return &next
}

// DueForRetry reports retry-phase eligibility
func DueForRetry(s *Subscription, retryIntervals []int, now time.Time) bool {
	if s.SubscriptionStatus != types.SubscriptionStatusPastDue {
		return false
	}
	next := NextRetryAt(s, retryIntervals)
	return next != nil && !now.Before(*next)
}

// DueForNonpaymentCancel reports cancellation-phase eligibility: the grace
// period has expired and no retries remain.
func DueForNonpaymentCancel(s *Subscription, gracePeriodDays int, retryIntervals []int, now time.Time) bool {
	if s.SubscriptionStatus != types.SubscriptionStatusPastDue || s.GracePeriodStartedAt == nil {
		return false
	}
	if s.RetryCount < len(retryIntervals) {
		return false
	}
	return !now.Before(s.GracePeriodStartedAt.AddDate(0, 0, gracePeriodDays))
}
