package provider

import (
	"context"

	"github.com/qazuor/qzpay-sub003/internal/types"
)

// ChargeRequest asks a provider to collect a payment
type ChargeRequest struct {
	ProviderCustomerID string
	ProviderMethodID   string
	Amount             int64
	Currency           types.Currency
	Description        string
	IdempotencyKey     string
	Metadata           map[string]string
}

// ChargeResult reports the provider-side outcome of a charge. A declined
// card is a result with a failed status, not an error; errors are reserved
// for transport and provider availability problems.
type ChargeResult struct {
	ProviderPaymentID string
	Status            types.PaymentStatus
	FailureCode       string
	FailureMessage    string
}

// RefundRequest asks a provider to return part or all of a payment
type RefundRequest struct {
	ProviderPaymentID string
	Amount            int64
	Reason            string
	IdempotencyKey    string
}

type RefundResult struct {
	ProviderRefundID string
	Status           types.RefundStatus
}

// AttachRequest binds a payment method token to a provider customer
type AttachRequest struct {
	ProviderCustomerID string
	MethodToken        string
}

type AttachResult struct {
	ProviderMethodID string
	Type             types.PaymentMethodType
	CardLast4        string
	CardBrand        string
	CardExpMonth     int
	CardExpYear      int
}

// TransferRequest moves collected funds to a vendor account
type TransferRequest struct {
	ProviderAccountID string
	Amount            int64
	Currency          types.Currency
	Description       string
	IdempotencyKey    string
}

type TransferResult struct {
	ProviderTransferID string
	Status             types.PayoutStatus
}

// Provider is the payment-provider port. Adapters translate these calls
// into provider API requests; the billing engine never sees provider SDK
// types.
type Provider interface {
	Kind() types.ProviderKind

	CreateCustomer(ctx context.Context, email, name string) (string, error)
	GetCustomer(ctx context.Context, providerCustomerID string) (string, error)
	DeleteCustomer(ctx context.Context, providerCustomerID string) error

	AttachPaymentMethod(ctx context.Context, req AttachRequest) (*AttachResult, error)
	DetachPaymentMethod(ctx context.Context, providerMethodID string) error

	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
}
