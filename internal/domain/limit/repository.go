package limit

import (
	"context"

	"github.com/qazuor/qzpay-sub003/internal/types"
)

type Filter struct {
	types.QueryFilter
	CustomerID string
	LimitKey   string
}

// Repository defines the interface for limit data access
type Repository interface {
	CreateDefinition(ctx context.Context, def *Definition) error
	GetDefinition(ctx context.Context, key string) (*Definition, error)
	ListDefinitions(ctx context.Context, filter *types.QueryFilter) ([]*Definition, error)

	Upsert(ctx context.Context, l *CustomerLimit) (*CustomerLimit, error)
	Get(ctx context.Context, customerID, limitKey string) (*CustomerLimit, error)
	List(ctx context.Context, filter *Filter) ([]*CustomerLimit, error)
	// Increment atomically adds delta to current_value; it is serialized
	// per (customer, key) so concurrent consumption cannot overshoot
	Increment(ctx context.Context, customerID, limitKey string, delta int64) (*CustomerLimit, error)
	// SetCurrent replaces current_value, used by metered `set` actions
	SetCurrent(ctx context.Context, customerID, limitKey string, value int64) (*CustomerLimit, error)
	Delete(ctx context.Context, customerID, limitKey string) error
}
