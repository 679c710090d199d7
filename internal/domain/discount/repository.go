package discount

import (
	"context"

	"github.com/qazuor/qzpay-sub003/internal/types"
)

type Filter struct {
	types.QueryFilter
	Active *bool
}

// Repository defines the interface for automatic discount data access
type Repository interface {
	Create(ctx context.Context, d *AutomaticDiscount) error
	Get(ctx context.Context, id string) (*AutomaticDiscount, error)
	List(ctx context.Context, filter *Filter) ([]*AutomaticDiscount, error)
	Count(ctx context.Context, filter *Filter) (int, error)
	ListActive(ctx context.Context) ([]*AutomaticDiscount, error)
	Update(ctx context.Context, d *AutomaticDiscount) error
	Delete(ctx context.Context, id string) error
}
