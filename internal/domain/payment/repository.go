package payment

import (
	"context"
	"time"

	"github.com/qazuor/qzpay-sub003/internal/types"
)

type Filter struct {
	types.QueryFilter
	CustomerID     string
	SubscriptionID string
	PaymentStatus  []types.PaymentStatus
	Currency       string
	StartTime      *time.Time
	EndTime        *time.Time
}

// Repository defines the interface for payment and refund data access
type Repository interface {
	Create(ctx context.Context, payment *Payment) error
	Get(ctx context.Context, id string) (*Payment, error)
	GetByProviderPaymentID(ctx context.Context, provider types.ProviderKind, providerPaymentID string) (*Payment, error)
	// GetByIdempotencyKey returns the payment recorded for a prior attempt
	// with the same key, or ErrNotFound
	GetByIdempotencyKey(ctx context.Context, key string) (*Payment, error)
	List(ctx context.Context, filter *Filter) ([]*Payment, error)
	Count(ctx context.Context, filter *Filter) (int, error)
	// ListInPeriod returns every payment created inside [start, end)
	// regardless of pagination; the metrics engine scans with it
	ListInPeriod(ctx context.Context, start, end time.Time) ([]*Payment, error)
	Update(ctx context.Context, payment *Payment) error

	CreateRefund(ctx context.Context, refund *Refund) error
	GetRefund(ctx context.Context, id string) (*Refund, error)
	ListRefundsByPayment(ctx context.Context, paymentID string) ([]*Refund, error)
	UpdateRefund(ctx context.Context, refund *Refund) error
}
