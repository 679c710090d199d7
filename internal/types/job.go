package types

import (
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/samber/lo"
)

// JobType is the kind of deferred action a job performs
type JobType string

const (
	JobTypeSubscriptionRenewal     JobType = "subscription_renewal"
	JobTypeSubscriptionTrialEnding JobType = "subscription_trial_ending"
	JobTypePaymentRetry            JobType = "payment_retry"
	JobTypeWebhookDelivery         JobType = "webhook_delivery"
	JobTypeInvoiceGeneration       JobType = "invoice_generation"
	JobTypePayoutProcessing        JobType = "payout_processing"
	JobTypeCleanup                 JobType = "cleanup"
)

func (t JobType) Validate() error {
	allowed := []JobType{
		JobTypeSubscriptionRenewal,
		JobTypeSubscriptionTrialEnding,
		JobTypePaymentRetry,
		JobTypeWebhookDelivery,
		JobTypeInvoiceGeneration,
		JobTypePayoutProcessing,
		JobTypeCleanup,
	}
	if !lo.Contains(allowed, t) {
		return ierr.NewError("invalid job type").
			WithHint("Invalid job type").
			WithReportableDetails(map[string]any{
				"type":          t,
				"allowed_types": allowed,
			}).
			Mark(ierr.ErrValidation)
	}
	return nil
}

// JobStatus is the lifecycle status of a job
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusScheduled JobStatus = "scheduled"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCanceled  JobStatus = "canceled"
)

// JobPriority dictates worker pick-up order
type JobPriority string

const (
	JobPriorityCritical JobPriority = "critical"
	JobPriorityHigh     JobPriority = "high"
	JobPriorityNormal   JobPriority = "normal"
	JobPriorityLow      JobPriority = "low"
)

// Rank returns the numeric rank of the priority; lower runs first
func (p JobPriority) Rank() int {
	switch p {
	case JobPriorityCritical:
		return 0
	case JobPriorityHigh:
		return 1
	case JobPriorityNormal:
		return 2
	case JobPriorityLow:
		return 3
	default:
		return 4
	}
}

// WebhookEventStatus is the processing status of a persisted inbound
// webhook event.
type WebhookEventStatus string

const (
	WebhookEventStatusReceived     WebhookEventStatus = "received"
	WebhookEventStatusProcessed    WebhookEventStatus = "processed"
	WebhookEventStatusFailed       WebhookEventStatus = "failed"
	WebhookEventStatusDeadLettered WebhookEventStatus = "dead_lettered"
)
