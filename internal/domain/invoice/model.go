package invoice

import (
	"time"

	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// Invoice is an itemized bill. Monetary invariants:
//
//	Total = Subtotal - Discount + Tax
//	AmountPaid + AmountRemaining = Total (while open)
//	status paid <=> AmountRemaining == 0 && PaidAt != nil
type Invoice struct {
	ID             string `db:"id" json:"id"`
	CustomerID     string `db:"customer_id" json:"customer_id"`
	SubscriptionID string `db:"subscription_id" json:"subscription_id,omitempty"`

	// Number is the unique human-facing invoice number, e.g. INV-XYZ12A8Q
	Number string `db:"number" json:"number"`

	InvoiceStatus types.InvoiceStatus `db:"invoice_status" json:"invoice_status"`

	Currency string `db:"currency" json:"currency"`

	Subtotal        int64 `db:"subtotal" json:"subtotal"`
	Discount        int64 `db:"discount" json:"discount"`
	Tax             int64 `db:"tax" json:"tax"`
	Total           int64 `db:"total" json:"total"`
	AmountPaid      int64 `db:"amount_paid" json:"amount_paid"`
	AmountRemaining int64 `db:"amount_remaining" json:"amount_remaining"`

	Lines []*LineItem `db:"lines" json:"lines"`

	DueDate  *time.Time `db:"due_date" json:"due_date,omitempty"`
	PaidAt   *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	VoidedAt *time.Time `db:"voided_at" json:"voided_at,omitempty"`

	PeriodStart *time.Time `db:"period_start" json:"period_start,omitempty"`
	PeriodEnd   *time.Time `db:"period_end" json:"period_end,omitempty"`

	Metadata types.Metadata `db:"metadata" json:"metadata,omitempty"`

	types.BaseModel
}

// LineItem is a single invoice line; Amount = Quantity * UnitAmount
type LineItem struct {
	ID          string `db:"id" json:"id"`
	InvoiceID   string `db:"invoice_id" json:"invoice_id"`
	Description string `db:"description" json:"description"`

	Quantity   int64 `db:"quantity" json:"quantity"`
	UnitAmount int64 `db:"unit_amount" json:"unit_amount"`
	Amount     int64 `db:"amount" json:"amount"`

	PriceID string `db:"price_id" json:"price_id,omitempty"`

	PeriodStart *time.Time `db:"period_start" json:"period_start,omitempty"`
	PeriodEnd   *time.Time `db:"period_end" json:"period_end,omitempty"`

	Proration bool `db:"proration" json:"proration,omitempty"`
}

func (i *Invoice) Validate() error {
	if i.CustomerID == "" {
		return ierr.NewError("customer id is required").
			WithHint("Customer ID is required").
			Mark(ierr.ErrValidation)
	}
	if i.Total != i.Subtotal-i.Discount+i.Tax {
		return ierr.NewError("invoice totals do not balance").
			WithHint("Total must equal subtotal - discount + tax").
			WithReportableDetails(map[string]any{
				"subtotal": i.Subtotal,
				"discount": i.Discount,
				"tax":      i.Tax,
				"total":    i.Total,
			}).
			Mark(ierr.ErrValidation)
	}
	for _, line := range i.Lines {
		if line.Quantity < 1 {
			return ierr.NewError("line quantity must be at least 1").
				WithHint("Line quantity must be at least 1").
				Mark(ierr.ErrValidation)
		}
		if line.Amount != line.Quantity*line.UnitAmount {
			return ierr.NewError("line amount does not balance").
				WithHint("Line amount must equal quantity * unit amount").
				Mark(ierr.ErrValidation)
		}
	}
	return nil
}

// MarkPaid settles the invoice in full
func (i *Invoice) MarkPaid(paidAt time.Time) {
	i.InvoiceStatus = types.InvoiceStatusPaid
	i.AmountPaid = i.Total
	i.AmountRemaining = 0
	i.PaidAt = &paidAt
}
