package paymentmethod

import (
	"time"

	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// PaymentMethod is a stored payment instrument. Card material beyond the
// display fields lives at the provider; QZPay never stores PCI data.
type PaymentMethod struct {
	ID         string `db:"id" json:"id"`
	CustomerID string `db:"customer_id" json:"customer_id"`

	Type      types.PaymentMethodType   `db:"type" json:"type"`
	MethodSts types.PaymentMethodStatus `db:"method_status" json:"method_status"`

	// IsDefault: at most one default per customer, enforced by the store
	IsDefault bool `db:"is_default" json:"is_default"`

	Card        *Card           `db:"card" json:"card,omitempty"`
	BankAccount *BankAccount    `db:"bank_account" json:"bank_account,omitempty"`
	Billing     *BillingDetails `db:"billing_details" json:"billing_details,omitempty"`

	// ProviderIDs maps each payment provider to its method object id
	ProviderIDs types.ProviderIDs `db:"provider_ids" json:"provider_ids,omitempty"`

	Metadata types.Metadata `db:"metadata" json:"metadata,omitempty"`

	Version int64 `db:"version" json:"version"`

	types.BaseModel
}

// Card holds display-safe card details
type Card struct {
	Last4    string `json:"last4"`
	Brand    string `json:"brand"`
	ExpMonth int    `json:"exp_month"`
	ExpYear  int    `json:"exp_year"`
}

// ExpiresBy reports whether the card expires on or before the cutoff
func (c *Card) ExpiresBy(cutoff time.Time) bool {
	if c == nil || c.ExpYear == 0 {
		return false
	}
	// a card is valid through the last day of its expiry month
	end := time.Date(c.ExpYear, time.Month(c.ExpMonth)+1, 0, 23, 59, 59, 0, time.UTC)
	return end.Before(cutoff)
}

// BankAccount holds display-safe bank account details
type BankAccount struct {
	Last4    string `json:"last4"`
	BankName string `json:"bank_name,omitempty"`
}

// BillingDetails is the name/address attached to the instrument
type BillingDetails struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Country string `json:"country,omitempty"`
}

func (m *PaymentMethod) Validate() error {
	if m.CustomerID == "" {
		return ierr.NewError("customer id is required").
			WithHint("Customer ID is required").
			Mark(ierr.ErrValidation)
	}
	if m.Type == "" {
		return ierr.NewError("payment method type is required").
			WithHint("Payment method type is required").
			Mark(ierr.ErrValidation)
	}
	return nil
}
