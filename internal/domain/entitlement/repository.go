package entitlement

import (
	"context"

	"github.com/qazuor/qzpay-sub003/internal/types"
)

type Filter struct {
	types.QueryFilter
	CustomerID     string
	EntitlementKey string
	Source         types.GrantSource
}

// Repository defines the interface for entitlement data access
type Repository interface {
	CreateDefinition(ctx context.Context, def *Definition) error
	GetDefinition(ctx context.Context, key string) (*Definition, error)
	ListDefinitions(ctx context.Context, filter *types.QueryFilter) ([]*Definition, error)

	// Upsert creates the grant or, when one exists for the same
	// (customer, key), merges the expiry per MergeExpiry
	Upsert(ctx context.Context, grant *Grant) (*Grant, error)
	GetGrant(ctx context.Context, customerID, entitlementKey string) (*Grant, error)
	ListGrants(ctx context.Context, filter *Filter) ([]*Grant, error)
	RevokeGrant(ctx context.Context, customerID, entitlementKey string) error
	RevokeBySource(ctx context.Context, source types.GrantSource, sourceID string) error
}
