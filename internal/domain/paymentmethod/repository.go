package paymentmethod

import (
	"context"
	"time"

	"github.com/qazuor/qzpay-sub003/internal/types"
)

type Filter struct {
	types.QueryFilter
	CustomerID string
	Type       types.PaymentMethodType
}

// Repository defines the interface for payment method data access
type Repository interface {
	Create(ctx context.Context, pm *PaymentMethod) error
	Get(ctx context.Context, id string) (*PaymentMethod, error)
	List(ctx context.Context, filter *Filter) ([]*PaymentMethod, error)
	Count(ctx context.Context, filter *Filter) (int, error)
	ListByCustomer(ctx context.Context, customerID string) ([]*PaymentMethod, error)
	GetDefault(ctx context.Context, customerID string) (*PaymentMethod, error)
	// SetDefault atomically flips every other method of the customer to
	// non-default and marks the target as default
	SetDefault(ctx context.Context, customerID, paymentMethodID string) error
	Update(ctx context.Context, pm *PaymentMethod) error
	Delete(ctx context.Context, id string) error

	// ListCardsExpiringBy returns active card methods whose expiry falls
	// on or before the cutoff
	ListCardsExpiringBy(ctx context.Context, cutoff time.Time) ([]*PaymentMethod, error)
}
