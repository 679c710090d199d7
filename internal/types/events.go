package types

import (
	"encoding/json"
	"time"
)

// LifecycleEvent is the envelope delivered to host subscribers for every
// billing event.
type LifecycleEvent struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	SubscriptionID string          `json:"subscription_id,omitempty"`
	CustomerID     string          `json:"customer_id,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
	Timestamp      time.Time       `json:"timestamp"`
}

// Lifecycle engine event names
const (
	EventSubscriptionRenewed               = "subscription.renewed"
	EventSubscriptionRenewalFailed         = "subscription.renewal_failed"
	EventSubscriptionTrialConverted        = "subscription.trial_converted"
	EventSubscriptionTrialConversionFailed = "subscription.trial_conversion_failed"
	EventSubscriptionEnteredGracePeriod    = "subscription.entered_grace_period"
	EventSubscriptionRetryScheduled        = "subscription.retry_scheduled"
	EventSubscriptionRetrySucceeded        = "subscription.retry_succeeded"
	EventSubscriptionRetryFailed           = "subscription.retry_failed"
	EventSubscriptionCanceledNonpayment    = "subscription.canceled_nonpayment"
)

// Façade event names
const (
	EventCustomerCreated        = "customer.created"
	EventCustomerUpdated        = "customer.updated"
	EventCustomerDeleted        = "customer.deleted"
	EventPaymentSucceeded       = "payment.succeeded"
	EventPaymentFailed          = "payment.failed"
	EventPaymentRefunded        = "payment.refunded"
	EventInvoicePaid            = "invoice.paid"
	EventInvoiceDue             = "invoice.due"
	EventWebhookReceived        = "webhook.received"
	EventPaymentMethodExpiring  = "payment_method.expiring"
	EventSubscriptionCreated    = "subscription.created"
	EventSubscriptionCanceled   = "subscription.canceled"
	EventSubscriptionReactivate = "subscription.reactivated"
)
