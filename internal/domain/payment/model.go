package payment

import (
	"time"

	"github.com/shopspring/decimal"

	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// Payment is a single charge attempt against a customer. Amounts are in
// integer minor currency units.
type Payment struct {
	ID             string `db:"id" json:"id"`
	CustomerID     string `db:"customer_id" json:"customer_id"`
	SubscriptionID string `db:"subscription_id" json:"subscription_id,omitempty"`

	Amount   int64  `db:"amount" json:"amount"`
	Currency string `db:"currency" json:"currency"`

	// FX bookkeeping for charges settled in a currency other than the
	// price currency. ExchangeRate is an input, never computed here.
	BaseAmount   *int64           `db:"base_amount" json:"base_amount,omitempty"`
	BaseCurrency string           `db:"base_currency" json:"base_currency,omitempty"`
	ExchangeRate *decimal.Decimal `db:"exchange_rate" json:"exchange_rate,omitempty"`

	PaymentStatus types.PaymentStatus `db:"payment_status" json:"payment_status"`

	Provider          types.ProviderKind `db:"provider" json:"provider"`
	ProviderPaymentID string             `db:"provider_payment_id" json:"provider_payment_id,omitempty"`
	PaymentMethodID   string             `db:"payment_method_id" json:"payment_method_id,omitempty"`

	RefundedAmount int64 `db:"refunded_amount" json:"refunded_amount"`

	FailureCode    string `db:"failure_code" json:"failure_code,omitempty"`
	FailureMessage string `db:"failure_message" json:"failure_message,omitempty"`

	IdempotencyKey string `db:"idempotency_key" json:"idempotency_key,omitempty"`

	SucceededAt *time.Time `db:"succeeded_at" json:"succeeded_at,omitempty"`

	Metadata types.Metadata `db:"metadata" json:"metadata,omitempty"`

	Version int64 `db:"version" json:"version"`

	types.BaseModel
}

func (p *Payment) Validate() error {
	if p.CustomerID == "" {
		return ierr.NewError("customer id is required").
			WithHint("Customer ID is required").
			Mark(ierr.ErrValidation)
	}
	if p.Amount < 0 {
		return ierr.NewError("amount must not be negative").
			WithHint("Amount must not be negative").
			Mark(ierr.ErrValidation)
	}
	if p.Currency == "" {
		return ierr.NewError("currency is required").
			WithHint("Currency is required").
			Mark(ierr.ErrValidation)
	}
	return p.PaymentStatus.Validate()
}

// Refund is a full or partial reversal of a succeeded payment
type Refund struct {
	ID        string `db:"id" json:"id"`
	PaymentID string `db:"payment_id" json:"payment_id"`

	Amount   int64  `db:"amount" json:"amount"`
	Currency string `db:"currency" json:"currency"`

	RefundStatus types.RefundStatus `db:"refund_status" json:"refund_status"`

	Reason           string `db:"reason" json:"reason,omitempty"`
	ProviderRefundID string `db:"provider_refund_id" json:"provider_refund_id,omitempty"`

	types.BaseModel
}
