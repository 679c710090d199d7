package price

import (
	"context"

	"github.com/qazuor/qzpay-sub003/internal/types"
)

type Filter struct {
	types.QueryFilter
	PlanID   string
	Active   *bool
	Currency string
}

// Repository defines the interface for price data access
type Repository interface {
	Create(ctx context.Context, price *Price) error
	Get(ctx context.Context, id string) (*Price, error)
	List(ctx context.Context, filter *Filter) ([]*Price, error)
	Count(ctx context.Context, filter *Filter) (int, error)
	ListByPlan(ctx context.Context, planID string) ([]*Price, error)
	Update(ctx context.Context, price *Price) error
	Delete(ctx context.Context, id string) error
}
