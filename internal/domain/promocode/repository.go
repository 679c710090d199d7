package promocode

import (
	"context"

	"github.com/qazuor/qzpay-sub003/internal/types"
)

type Filter struct {
	types.QueryFilter
	Active *bool
}

// Repository defines the interface for promo code data access
type Repository interface {
	Create(ctx context.Context, promo *PromoCode) error
	Get(ctx context.Context, id string) (*PromoCode, error)
	GetByCode(ctx context.Context, code string) (*PromoCode, error)
	List(ctx context.Context, filter *Filter) ([]*PromoCode, error)
	Count(ctx context.Context, filter *Filter) (int, error)
	Update(ctx context.Context, promo *PromoCode) error
	Delete(ctx context.Context, id string) error

	// IncrementRedemptions must be serialized per promo id so concurrent
	// redemptions respect max_redemptions. It fails with a conflict when
	// the cap is already reached.
	IncrementRedemptions(ctx context.Context, id string) error

	CreateRedemption(ctx context.Context, redemption *Redemption) error
	CountRedemptionsByCustomer(ctx context.Context, promoCodeID, customerID string) (int64, error)
}
