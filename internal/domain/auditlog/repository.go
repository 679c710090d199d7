package auditlog

import (
	"context"
	"time"

	"github.com/qazuor/qzpay-sub003/internal/types"
)

type Filter struct {
	types.QueryFilter
	EntityType string
	EntityID   string
	ActorID    string
	StartTime  *time.Time
	EndTime    *time.Time
}

// Repository defines the interface for audit log data access.
// Entries are append-only; there is no update or delete.
type Repository interface {
	Create(ctx context.Context, e *Entry) error
	Get(ctx context.Context, id string) (*Entry, error)
	List(ctx context.Context, filter *Filter) ([]*Entry, error)
	Count(ctx context.Context, filter *Filter) (int, error)
}
