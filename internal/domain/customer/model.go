package customer

import (
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// Customer represents a billing customer owned by the host application
type Customer struct {
	// ID is the unique identifier for the customer
	ID string `db:"id" json:"id"`

	// ExternalID is the host application's user key
	ExternalID string `db:"external_id" json:"external_id"`

	// Email is the email of the customer
	Email string `db:"email" json:"email"`

	// Name is the name of the customer
	Name string `db:"name" json:"name"`

	// Phone is the optional phone number of the customer
	Phone string `db:"phone" json:"phone,omitempty"`

	// Language is the customer's preferred language
	Language string `db:"language" json:"language,omitempty"`

	// Segment is a host-defined marketing segment
	Segment string `db:"segment" json:"segment,omitempty"`

	// Tier is a host-defined customer tier, also matched by the
	// customer_tag discount condition
	Tier string `db:"tier" json:"tier,omitempty"`

	// Tags are free-form labels matched by discount conditions
	Tags []string `db:"tags" json:"tags,omitempty"`

	BillingAddress  *Address `db:"billing_address" json:"billing_address,omitempty"`
	ShippingAddress *Address `db:"shipping_address" json:"shipping_address,omitempty"`

	// TaxID and TaxIDType identify the customer for tax purposes
	TaxID     string `db:"tax_id" json:"tax_id,omitempty"`
	TaxIDType string `db:"tax_id_type" json:"tax_id_type,omitempty"`

	// ProviderIDs maps each payment provider to its customer object id
	ProviderIDs types.ProviderIDs `db:"provider_ids" json:"provider_ids,omitempty"`

	Metadata types.Metadata `db:"metadata" json:"metadata,omitempty"`

	types.BaseModel
}

// Address is a postal address attached to a customer
type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	// Country is an ISO 3166-1 alpha-2 code
	Country string `json:"country,omitempty"`
}

// Validate checks the customer's required fields and address formats
func (c *Customer) Validate() error {
	if c.ExternalID == "" {
		return ierr.NewError("external id is required").
			WithHint("External ID is required").
			Mark(ierr.ErrValidation)
	}
	if c.Email == "" {
		return ierr.NewError("email is required").
			WithHint("Email is required").
			Mark(ierr.ErrValidation)
	}
	if err := validateAddress(c.BillingAddress); err != nil {
		return err
	}
	return validateAddress(c.ShippingAddress)
}

func validateAddress(a *Address) error {
	if a == nil {
		return nil
	}
	if a.Country != "" && len(a.Country) != 2 {
		return ierr.NewError("invalid country code format").
			WithHint("Country code must be 2 characters").
			Mark(ierr.ErrValidation)
	}
	if len(a.PostalCode) > 20 {
		return ierr.NewError("invalid postal code format").
			WithHint("Postal code must be less than 20 characters").
			Mark(ierr.ErrValidation)
	}
	if len(a.Line1) > 255 || len(a.Line2) > 255 {
		return ierr.NewError("address line too long").
			WithHint("Address lines must be less than 255 characters").
			Mark(ierr.ErrValidation)
	}
	return nil
}
