package service

import (
	"context"
	"time"

	"github.com/qazuor/qzpay-sub003/internal/domain/invoice"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/logger"
	"github.com/qazuor/qzpay-sub003/internal/publisher"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// CreateInvoiceInput describes an invoice to issue. Totals are computed
// from the lines plus the given discount and tax.
type CreateInvoiceInput struct {
	CustomerID     string
	SubscriptionID string
	Currency       string
	Discount       int64
	Tax            int64
	Lines          []InvoiceLineInput
	DueDate        *time.Time
	PeriodStart    *time.Time
	PeriodEnd      *time.Time
	Metadata       types.Metadata
}

// InvoiceLineInput is one billable line on a new invoice
type InvoiceLineInput struct {
	Description string
	Quantity    int64
	UnitAmount  int64
	PriceID     string
	PeriodStart *time.Time
	PeriodEnd   *time.Time
	Proration   bool
}

// InvoiceService issues and settles invoices. Amounts are integer minor
// units; Total = Subtotal - Discount + Tax always holds.
type InvoiceService struct {
	repo     invoice.Repository
	payments *PaymentService
	eventBus *publisher.EventBus
	clock    types.Clock
	livemode bool
	logger   *logger.Logger
}

func NewInvoiceService(
	repo invoice.Repository,
	payments *PaymentService,
	eventBus *publisher.EventBus,
	clock types.Clock,
	livemode bool,
	log *logger.Logger,
) *InvoiceService {
	return &InvoiceService{
		repo:     repo,
		payments: payments,
		eventBus: eventBus,
		clock:    clock,
		livemode: livemode,
		logger:   log,
	}
}

// Create issues an open invoice from the given lines
func (s *InvoiceService) Create(ctx context.Context, input CreateInvoiceInput) (*invoice.Invoice, error) {
	if len(input.Lines) == 0 {
		return nil, ierr.NewError("invoice requires at least one line").
			WithHint("Invoice requires at least one line").
			Mark(ierr.ErrValidation)
	}

	inv := &invoice.Invoice{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE),
		CustomerID:     input.CustomerID,
		SubscriptionID: input.SubscriptionID,
		Number:         types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_INVOICE),
		InvoiceStatus:  types.InvoiceStatusOpen,
		Currency:       input.Currency,
		Discount:       input.Discount,
		Tax:            input.Tax,
		DueDate:        input.DueDate,
		PeriodStart:    input.PeriodStart,
		PeriodEnd:      input.PeriodEnd,
		Metadata:       input.Metadata,
		BaseModel:      types.GetDefaultBaseModel(ctx, s.livemode),
	}
	for _, line := range input.Lines {
		amount := line.Quantity * line.UnitAmount
		inv.Subtotal += amount
		inv.Lines = append(inv.Lines, &invoice.LineItem{
			ID:          types.GenerateUUID(),
			InvoiceID:   inv.ID,
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitAmount:  line.UnitAmount,
			Amount:      amount,
			PriceID:     line.PriceID,
			PeriodStart: line.PeriodStart,
			PeriodEnd:   line.PeriodEnd,
			Proration:   line.Proration,
		})
	}
	inv.Total = inv.Subtotal - inv.Discount + inv.Tax
	inv.AmountRemaining = inv.Total

	if err := inv.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

func (s *InvoiceService) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	return s.repo.Get(ctx, id)
}

func (s *InvoiceService) GetByNumber(ctx context.Context, number string) (*invoice.Invoice, error) {
	return s.repo.GetByNumber(ctx, number)
}

func (s *InvoiceService) List(ctx context.Context, filter *invoice.Filter) ([]*invoice.Invoice, error) {
	return s.repo.List(ctx, filter)
}

func (s *InvoiceService) ListByCustomer(ctx context.Context, customerID string) ([]*invoice.Invoice, error) {
	return s.repo.ListByCustomer(ctx, customerID)
}

// Pay charges the customer for the full remaining amount and settles the
// invoice. A declined charge leaves the invoice open.
func (s *InvoiceService) Pay(ctx context.Context, id, paymentMethodID string) (*invoice.Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.InvoiceStatus != types.InvoiceStatusOpen {
		return nil, ierr.NewError("invoice is not open").
			WithHint("Only open invoices can be paid").
			WithReportableDetails(map[string]any{"status": inv.InvoiceStatus}).
			Mark(ierr.ErrInvalidOperation)
	}

	payment, err := s.payments.ProcessPayment(ctx, ProcessPaymentInput{
		CustomerID:      inv.CustomerID,
		PaymentMethodID: paymentMethodID,
		SubscriptionID:  inv.SubscriptionID,
		Amount:          inv.AmountRemaining,
		Currency:        inv.Currency,
		Kind:            types.PaymentKindOneTime,
		Description:     "Invoice " + inv.Number,
		Metadata:        types.Metadata{"invoice_id": inv.ID},
	})
	if err != nil {
		return nil, err
	}
	if payment.PaymentStatus != types.PaymentStatusSucceeded {
		return nil, ierr.NewError("invoice payment declined").
			WithHint("The payment was declined").
			WithReportableDetails(map[string]any{
				"invoice_id":   inv.ID,
				"payment_id":   payment.ID,
				"failure_code": payment.FailureCode,
			}).
			Mark(ierr.ErrPaymentDeclined)
	}

	return s.markPaid(ctx, inv, payment.ID)
}

// MarkPaid settles the invoice against a payment that already succeeded,
// e.g. one confirmed through a provider webhook.
func (s *InvoiceService) MarkPaid(ctx context.Context, id, paymentID string) (*invoice.Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.InvoiceStatus == types.InvoiceStatusPaid {
		return inv, nil
	}
	if inv.InvoiceStatus != types.InvoiceStatusOpen {
		return nil, ierr.NewError("invoice is not open").
			WithHint("Only open invoices can be marked paid").
			WithReportableDetails(map[string]any{"status": inv.InvoiceStatus}).
			Mark(ierr.ErrInvalidOperation)
	}
	return s.markPaid(ctx, inv, paymentID)
}

func (s *InvoiceService) markPaid(ctx context.Context, inv *invoice.Invoice, paymentID string) (*invoice.Invoice, error) {
	inv.MarkPaid(s.clock.Now())
	if err := s.repo.Update(ctx, inv); err != nil {
		return nil, err
	}

	s.eventBus.Emit(ctx, &types.LifecycleEvent{
		ID:             types.GenerateUUID(),
		Type:           types.EventInvoicePaid,
		CustomerID:     inv.CustomerID,
		SubscriptionID: inv.SubscriptionID,
		Data: mustMarshal(map[string]any{
			"invoice_id": inv.ID,
			"number":     inv.Number,
			"total":      inv.Total,
			"payment_id": paymentID,
		}),
		Timestamp: s.clock.Now(),
	})
	return inv, nil
}

// Void cancels an unpaid invoice
func (s *InvoiceService) Void(ctx context.Context, id string) (*invoice.Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.InvoiceStatus == types.InvoiceStatusPaid {
		return nil, ierr.NewError("paid invoices cannot be voided").
			WithHint("Paid invoices cannot be voided").
			Mark(ierr.ErrInvalidOperation)
	}

	now := s.clock.Now()
	inv.InvoiceStatus = types.InvoiceStatusVoid
	inv.VoidedAt = &now
	inv.AmountRemaining = 0
	if err := s.repo.Update(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// ListDue returns open invoices whose due date falls on or before the
// cutoff; the cron layer turns these into payment reminders.
func (s *InvoiceService) ListDue(ctx context.Context, cutoff time.Time) ([]*invoice.Invoice, error) {
	return s.repo.List(ctx, &invoice.Filter{
		QueryFilter:   types.NewNoLimitQueryFilter(),
		InvoiceStatus: []types.InvoiceStatus{types.InvoiceStatusOpen},
		DueBefore:     &cutoff,
	})
}

// RemindDue emits an invoice.due event for every open invoice at or past
// its due date, and returns the invoices reminded about.
func (s *InvoiceService) RemindDue(ctx context.Context) ([]*invoice.Invoice, error) {
	now := s.clock.Now()
	due, err := s.ListDue(ctx, now)
	if err != nil {
		return nil, err
	}

	for _, inv := range due {
		s.eventBus.Emit(ctx, &types.LifecycleEvent{
			ID:             types.GenerateUUID(),
			Type:           types.EventInvoiceDue,
			CustomerID:     inv.CustomerID,
			SubscriptionID: inv.SubscriptionID,
			Data: mustMarshal(map[string]any{
				"invoice_id":       inv.ID,
				"number":           inv.Number,
				"amount_remaining": inv.AmountRemaining,
				"due_date":         inv.DueDate,
			}),
			Timestamp: now,
		})
	}
	return due, nil
}
