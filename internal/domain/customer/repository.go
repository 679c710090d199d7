package customer

import (
	"context"

	"github.com/qazuor/qzpay-sub003/internal/types"
)

// Filter narrows customer list queries
type Filter struct {
	types.QueryFilter
	ExternalID     string
	Email          string
	CustomerIDs    []string
	IncludeDeleted bool
}

// Repository defines the interface for customer data access
type Repository interface {
	Create(ctx context.Context, customer *Customer) error
	Get(ctx context.Context, id string) (*Customer, error)
	GetByExternalID(ctx context.Context, externalID string) (*Customer, error)
	GetByEmail(ctx context.Context, email string) (*Customer, error)
	List(ctx context.Context, filter *Filter) ([]*Customer, error)
	Count(ctx context.Context, filter *Filter) (int, error)
	Update(ctx context.Context, customer *Customer) error
	// Delete soft-deletes the customer
	Delete(ctx context.Context, id string) error
}
