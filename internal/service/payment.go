package service

import (
	"context"
	"encoding/json"

	"github.com/qazuor/qzpay-sub003/internal/domain/customer"
	"github.com/qazuor/qzpay-sub003/internal/domain/payment"
	"github.com/qazuor/qzpay-sub003/internal/domain/paymentmethod"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/idempotency"
	"github.com/qazuor/qzpay-sub003/internal/logger"
	"github.com/qazuor/qzpay-sub003/internal/provider"
	"github.com/qazuor/qzpay-sub003/internal/publisher"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// ProcessPaymentInput describes a charge the billing engine wants collected
type ProcessPaymentInput struct {
	CustomerID string
	// PaymentMethodID empty means charge the customer's default method
	PaymentMethodID string
	SubscriptionID  string
	Amount          int64
	Currency        string
	Kind            types.PaymentKind
	Description     string
	// IdempotencyKey empty means the service derives one from the input
	IdempotencyKey string
	Metadata       map[string]string
}

// PaymentService charges, refunds, and records payments. A provider decline
// produces a failed payment row, not an error; errors mean the charge could
// not be attempted at all.
type PaymentService struct {
	paymentRepo  payment.Repository
	customerRepo customer.Repository
	methodRepo   paymentmethod.Repository
	registry     *provider.Registry
	idem         *idempotency.Generator
	eventBus     *publisher.EventBus
	clock        types.Clock
	livemode     bool
	logger       *logger.Logger
}

func NewPaymentService(
	paymentRepo payment.Repository,
	customerRepo customer.Repository,
	methodRepo paymentmethod.Repository,
	registry *provider.Registry,
	eventBus *publisher.EventBus,
	clock types.Clock,
	livemode bool,
	log *logger.Logger,
) *PaymentService {
	return &PaymentService{
		paymentRepo:  paymentRepo,
		customerRepo: customerRepo,
		methodRepo:   methodRepo,
		registry:     registry,
		idem:         idempotency.NewGenerator(),
		eventBus:     eventBus,
		clock:        clock,
		livemode:     livemode,
		logger:       log,
	}
}

// ProcessPayment charges the customer and persists the outcome. Reusing an
// idempotency key returns the payment recorded for the first attempt.
func (s *PaymentService) ProcessPayment(ctx context.Context, input ProcessPaymentInput) (*payment.Payment, error) {
	if input.Amount <= 0 {
		return nil, ierr.NewError("amount must be positive").
			WithHint("Amount must be positive").
			WithReportableDetails(map[string]any{"amount": input.Amount}).
			Mark(ierr.ErrValidation)
	}

	cust, err := s.customerRepo.Get(ctx, input.CustomerID)
	if err != nil {
		return nil, err
	}

	method, err := s.resolveMethod(ctx, input)
	if err != nil {
		return nil, err
	}

	kind, prov, err := s.resolveProvider(cust, method)
	if err != nil {
		return nil, err
	}

	key := input.IdempotencyKey
	if key == "" {
		key = s.idem.GenerateKey(idempotency.ScopePayment, map[string]interface{}{
			"customer_id":     input.CustomerID,
			"subscription_id": input.SubscriptionID,
			"amount":          input.Amount,
			"currency":        input.Currency,
			"kind":            string(input.Kind),
		})
	}
	if existing, err := s.paymentRepo.GetByIdempotencyKey(ctx, key); err == nil {
		s.logger.Debugw("payment replayed by idempotency key",
			"payment_id", existing.ID, "idempotency_key", key)
		return existing, nil
	} else if !ierr.IsNotFound(err) {
		return nil, err
	}

	result, err := prov.Charge(ctx, provider.ChargeRequest{
		ProviderCustomerID: cust.ProviderIDs[kind],
		ProviderMethodID:   method.ProviderIDs[kind],
		Amount:             input.Amount,
		Currency:           input.Currency,
		Description:        input.Description,
		IdempotencyKey:     key,
		Metadata:           input.Metadata,
	})
	if err != nil {
		return nil, err
	}

	p := &payment.Payment{
		ID:                types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PAYMENT),
		CustomerID:        input.CustomerID,
		SubscriptionID:    input.SubscriptionID,
		Amount:            input.Amount,
		Currency:          input.Currency,
		PaymentStatus:     result.Status,
		Provider:          kind,
		ProviderPaymentID: result.ProviderPaymentID,
		PaymentMethodID:   method.ID,
		FailureCode:       result.FailureCode,
		FailureMessage:    result.FailureMessage,
		IdempotencyKey:    key,
		Metadata:          types.Metadata{"payment_kind": string(input.Kind)},
		Version:           1,
		BaseModel:         types.GetDefaultBaseModel(ctx, s.livemode),
	}
	if result.Status == types.PaymentStatusSucceeded {
		now := s.clock.Now()
		p.SucceededAt = &now
	}

	if err := s.paymentRepo.Create(ctx, p); err != nil {
		return nil, err
	}

	s.emitPaymentEvent(ctx, p)
	return p, nil
}

// RefundPayment reverses part or all of a succeeded payment
func (s *PaymentService) RefundPayment(ctx context.Context, paymentID string, amount int64, reason string) (*payment.Refund, error) {
	p, err := s.paymentRepo.Get(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if p.PaymentStatus != types.PaymentStatusSucceeded && p.PaymentStatus != types.PaymentStatusRefunded {
		return nil, ierr.NewError("only succeeded payments can be refunded").
			WithHint("Only succeeded payments can be refunded").
			WithReportableDetails(map[string]any{
				"payment_id": paymentID,
				"status":     p.PaymentStatus,
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	if amount <= 0 || amount > p.Amount-p.RefundedAmount {
		return nil, ierr.NewError("refund amount exceeds refundable balance").
			WithHint("Refund amount exceeds refundable balance").
			WithReportableDetails(map[string]any{
				"amount":     amount,
				"refundable": p.Amount - p.RefundedAmount,
			}).
			Mark(ierr.ErrValidation)
	}

	prov, err := s.registry.Get(p.Provider)
	if err != nil {
		return nil, err
	}

	key := s.idem.GenerateKey(idempotency.ScopeRefund, map[string]interface{}{
		"payment_id": paymentID,
		"amount":     amount,
		"refunded":   p.RefundedAmount,
	})
	result, err := prov.Refund(ctx, provider.RefundRequest{
		ProviderPaymentID: p.ProviderPaymentID,
		Amount:            amount,
		Reason:            reason,
		IdempotencyKey:    key,
	})
	if err != nil {
		return nil, err
	}

	refund := &payment.Refund{
		ID:               types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REFUND),
		PaymentID:        paymentID,
		Amount:           amount,
		Currency:         p.Currency,
		RefundStatus:     result.Status,
		Reason:           reason,
		ProviderRefundID: result.ProviderRefundID,
		BaseModel:        types.GetDefaultBaseModel(ctx, s.livemode),
	}
	if err := s.paymentRepo.CreateRefund(ctx, refund); err != nil {
		return nil, err
	}

	if result.Status == types.RefundStatusSucceeded {
		p.RefundedAmount += amount
		if p.RefundedAmount >= p.Amount {
			p.PaymentStatus = types.PaymentStatusRefunded
		}
		if err := s.paymentRepo.Update(ctx, p); err != nil {
			return nil, err
		}

		s.eventBus.Emit(ctx, &types.LifecycleEvent{
			ID:         types.GenerateUUID(),
			Type:       types.EventPaymentRefunded,
			CustomerID: p.CustomerID,
			Data:       mustMarshal(map[string]any{"payment_id": p.ID, "refund_id": refund.ID, "amount": amount}),
			Timestamp:  s.clock.Now(),
		})
	}
	return refund, nil
}

// GetPayment returns a payment by id
func (s *PaymentService) GetPayment(ctx context.Context, id string) (*payment.Payment, error) {
	return s.paymentRepo.Get(ctx, id)
}

// ListPayments returns payments matching the filter
func (s *PaymentService) ListPayments(ctx context.Context, filter *payment.Filter) ([]*payment.Payment, error) {
	return s.paymentRepo.List(ctx, filter)
}

func (s *PaymentService) resolveMethod(ctx context.Context, input ProcessPaymentInput) (*paymentmethod.PaymentMethod, error) {
	if input.PaymentMethodID != "" {
		method, err := s.methodRepo.Get(ctx, input.PaymentMethodID)
		if err != nil {
			return nil, err
		}
		if method.CustomerID != input.CustomerID {
			return nil, ierr.NewError("payment method belongs to another customer").
				WithHint("Payment method belongs to another customer").
				Mark(ierr.ErrInvalidOperation)
		}
		return method, nil
	}
	return s.methodRepo.GetDefault(ctx, input.CustomerID)
}

// resolveProvider picks the provider both the customer and the method are
// attached to. Registration order does not matter because a method is only
// ever attached through one provider.
func (s *PaymentService) resolveProvider(cust *customer.Customer, method *paymentmethod.PaymentMethod) (types.ProviderKind, provider.Provider, error) {
	for kind, methodID := range method.ProviderIDs {
		if methodID == "" || cust.ProviderIDs[kind] == "" {
			continue
		}
		prov, err := s.registry.Get(kind)
		if err != nil {
			continue
		}
		return kind, prov, nil
	}
	return "", nil, ierr.NewError("no configured provider for payment method").
		WithHint("The payment method is not attached to any configured provider").
		WithReportableDetails(map[string]any{
			"payment_method_id": method.ID,
			"customer_id":       cust.ID,
		}).
		Mark(ierr.ErrProviderUnavailable)
}

func (s *PaymentService) emitPaymentEvent(ctx context.Context, p *payment.Payment) {
	eventType := types.EventPaymentFailed
	if p.PaymentStatus == types.PaymentStatusSucceeded {
		eventType = types.EventPaymentSucceeded
	}
	s.eventBus.Emit(ctx, &types.LifecycleEvent{
		ID:             types.GenerateUUID(),
		Type:           eventType,
		SubscriptionID: p.SubscriptionID,
		CustomerID:     p.CustomerID,
		Data: mustMarshal(map[string]any{
			"payment_id":      p.ID,
			"amount":          p.Amount,
			"currency":        p.Currency,
			"failure_code":    p.FailureCode,
			"failure_message": p.FailureMessage,
		}),
		Timestamp: s.clock.Now(),
	})
}

func mustMarshal(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}
