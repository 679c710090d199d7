package invoice

import (
	"context"
	"time"

	"github.com/qazuor/qzpay-sub003/internal/types"
)

type Filter struct {
	types.QueryFilter
	CustomerID     string
	SubscriptionID string
	InvoiceStatus  []types.InvoiceStatus
	DueBefore      *time.Time
}

// Repository defines the interface for invoice data access
type Repository interface {
	Create(ctx context.Context, inv *Invoice) error
	Get(ctx context.Context, id string) (*Invoice, error)
	GetByNumber(ctx context.Context, number string) (*Invoice, error)
	List(ctx context.Context, filter *Filter) ([]*Invoice, error)
	Count(ctx context.Context, filter *Filter) (int, error)
	ListByCustomer(ctx context.Context, customerID string) ([]*Invoice, error)
	Update(ctx context.Context, inv *Invoice) error
	Delete(ctx context.Context, id string) error
}
