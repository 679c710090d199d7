package provider

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/paymentintent"
	"github.com/stripe/stripe-go/v82/paymentmethod"
	"github.com/stripe/stripe-go/v82/refund"
	"github.com/stripe/stripe-go/v82/transfer"

	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/logger"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// StripeProvider adapts the Stripe API to the provider port
type StripeProvider struct {
	logger *logger.Logger
}

func NewStripeProvider(secretKey string, log *logger.Logger) *StripeProvider {
	stripe.Key = secretKey
	return &StripeProvider{logger: log}
}

func (s *StripeProvider) Kind() types.ProviderKind {
	return types.ProviderStripe
}

func (s *StripeProvider) CreateCustomer(_ context.Context, email, name string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	c, err := customer.New(params)
	if err != nil {
		return "", s.wrapErr(err, "failed to create stripe customer")
	}
	return c.ID, nil
}

func (s *StripeProvider) GetCustomer(_ context.Context, providerCustomerID string) (string, error) {
	c, err := customer.Get(providerCustomerID, nil)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == 404 {
			return "", ierr.WithError(err).
				WithMessage("stripe customer not found").
				WithHint("The customer does not exist at Stripe").
				Mark(ierr.ErrNotFound)
		}
		return "", s.wrapErr(err, "failed to get stripe customer")
	}
	return c.ID, nil
}

func (s *StripeProvider) DeleteCustomer(_ context.Context, providerCustomerID string) error {
	if _, err := customer.Del(providerCustomerID, nil); err != nil {
		return s.wrapErr(err, "failed to delete stripe customer")
	}
	return nil
}

func (s *StripeProvider) AttachPaymentMethod(_ context.Context, req AttachRequest) (*AttachResult, error) {
	params := &stripe.PaymentMethodAttachParams{
		Customer: stripe.String(req.ProviderCustomerID),
	}
	pm, err := paymentmethod.Attach(req.MethodToken, params)
	if err != nil {
		return nil, s.wrapErr(err, "failed to attach payment method")
	}

	result := &AttachResult{
		ProviderMethodID: pm.ID,
		Type:             types.PaymentMethodTypeCard,
	}
	if pm.Card != nil {
		result.CardLast4 = pm.Card.Last4
		result.CardBrand = string(pm.Card.Brand)
		result.CardExpMonth = int(pm.Card.ExpMonth)
		result.CardExpYear = int(pm.Card.ExpYear)
	}
	return result, nil
}

func (s *StripeProvider) DetachPaymentMethod(_ context.Context, providerMethodID string) error {
	if _, err := paymentmethod.Detach(providerMethodID, nil); err != nil {
		return s.wrapErr(err, "failed to detach payment method")
	}
	return nil
}

func (s *StripeProvider) Charge(_ context.Context, req ChargeRequest) (*ChargeResult, error) {
	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.Amount),
		Currency:      stripe.String(string(req.Currency)),
		Customer:      stripe.String(req.ProviderCustomerID),
		PaymentMethod: stripe.String(req.ProviderMethodID),
		Description:   stripe.String(req.Description),
		Confirm:       stripe.Bool(true),
		OffSession:    stripe.Bool(true),
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		// Card errors are payment outcomes, not transport failures
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			code := string(stripeErr.Code)
			if stripeErr.DeclineCode != "" {
				code = string(stripeErr.DeclineCode)
			}
			result := &ChargeResult{
				Status:         types.PaymentStatusFailed,
				FailureCode:    code,
				FailureMessage: stripeErr.Msg,
			}
			if stripeErr.PaymentIntent != nil {
				result.ProviderPaymentID = stripeErr.PaymentIntent.ID
			}
			return result, nil
		}
		return nil, s.wrapErr(err, "failed to create payment intent")
	}

	return &ChargeResult{
		ProviderPaymentID: pi.ID,
		Status:            mapStripeIntentStatus(pi.Status),
	}, nil
}

func (s *StripeProvider) Refund(_ context.Context, req RefundRequest) (*RefundResult, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.ProviderPaymentID),
		Amount:        stripe.Int64(req.Amount),
	}
	if req.Reason != "" {
		params.Reason = stripe.String(req.Reason)
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	r, err := refund.New(params)
	if err != nil {
		return nil, s.wrapErr(err, "failed to create refund")
	}

	status := types.RefundStatusPending
	if r.Status == stripe.RefundStatusSucceeded {
		status = types.RefundStatusSucceeded
	} else if r.Status == stripe.RefundStatusFailed {
		status = types.RefundStatusFailed
	}
	return &RefundResult{
		ProviderRefundID: r.ID,
		Status:           status,
	}, nil
}

func (s *StripeProvider) Transfer(_ context.Context, req TransferRequest) (*TransferResult, error) {
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(req.Amount),
		Currency:    stripe.String(string(req.Currency)),
		Destination: stripe.String(req.ProviderAccountID),
		Description: stripe.String(req.Description),
	}
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	t, err := transfer.New(params)
	if err != nil {
		return nil, s.wrapErr(err, "failed to create transfer")
	}
	return &TransferResult{
		ProviderTransferID: t.ID,
		Status:             types.PayoutStatusPaid,
	}, nil
}

func mapStripeIntentStatus(status stripe.PaymentIntentStatus) types.PaymentStatus {
	switch status {
	case stripe.PaymentIntentStatusSucceeded:
		return types.PaymentStatusSucceeded
	case stripe.PaymentIntentStatusRequiresAction,
		stripe.PaymentIntentStatusRequiresConfirmation:
		return types.PaymentStatusRequiresAction
	case stripe.PaymentIntentStatusRequiresCapture:
		return types.PaymentStatusRequiresCapture
	case stripe.PaymentIntentStatusProcessing:
		return types.PaymentStatusProcessing
	case stripe.PaymentIntentStatusCanceled:
		return types.PaymentStatusCanceled
	default:
		return types.PaymentStatusFailed
	}
}

func (s *StripeProvider) wrapErr(err error, msg string) error {
	s.logger.Errorw(msg, "error", err)
	return ierr.WithError(err).
		WithMessage(msg).
		WithHint("Stripe request failed").
		Mark(ierr.ErrProviderUnavailable)
}
