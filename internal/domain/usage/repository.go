package usage

import (
	"context"
	"time"

	"github.com/qazuor/qzpay-sub003/internal/types"
)

type Filter struct {
	types.QueryFilter
	CustomerID string
	LimitKey   string
	StartTime  *time.Time
	EndTime    *time.Time
}

// Repository defines the interface for usage record data access
type Repository interface {
	Create(ctx context.Context, record *UsageRecord) error
	Get(ctx context.Context, id string) (*UsageRecord, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*UsageRecord, error)
	List(ctx context.Context, filter *Filter) ([]*UsageRecord, error)
	Count(ctx context.Context, filter *Filter) (int, error)
}
