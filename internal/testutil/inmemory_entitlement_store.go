package testutil

import (
	"context"
	"fmt"

	"github.com/samber/lo"

	"github.com/qazuor/qzpay-sub003/internal/domain/entitlement"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// InMemoryEntitlementStore implements entitlement.Repository
type InMemoryEntitlementStore struct {
	definitions *InMemoryStore[*entitlement.Definition]
	grants      *InMemoryStore[*entitlement.Grant]
}

// NewInMemoryEntitlementStore creates a new in-memory entitlement store
func NewInMemoryEntitlementStore() *InMemoryEntitlementStore {
	return &InMemoryEntitlementStore{
		definitions: NewInMemoryStore[*entitlement.Definition](),
		grants:      NewInMemoryStore[*entitlement.Grant](),
	}
}

func grantKey(customerID, entitlementKey string) string {
	return fmt.Sprintf("%s/%s", customerID, entitlementKey)
}

func copyGrant(g *entitlement.Grant) *entitlement.Grant {
	if g == nil {
		return nil
	}
	clone := *g
	if g.ExpiresAt != nil {
		expires := *g.ExpiresAt
		clone.ExpiresAt = &expires
	}
	return &clone
}

func (s *InMemoryEntitlementStore) CreateDefinition(ctx context.Context, def *entitlement.Definition) error {
	clone := *def
	return s.definitions.Create(ctx, def.Key, &clone)
}

func (s *InMemoryEntitlementStore) GetDefinition(ctx context.Context, key string) (*entitlement.Definition, error) {
	def, err := s.definitions.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	clone := *def
	return &clone, nil
}

func (s *InMemoryEntitlementStore) ListDefinitions(ctx context.Context, filter *types.QueryFilter) ([]*entitlement.Definition, error) {
	var f interface{}
	if filter != nil {
		f = filter
	}
	items, err := s.definitions.List(ctx, f, nil, func(i, j *entitlement.Definition) bool {
		return i.Key < j.Key
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(def *entitlement.Definition, _ int) *entitlement.Definition {
		clone := *def
		return &clone
	}), nil
}

// Upsert merges the expiry per the re-grant rule: the later expiry wins
// and no-expiry beats any finite expiry
func (s *InMemoryEntitlementStore) Upsert(ctx context.Context, grant *entitlement.Grant) (*entitlement.Grant, error) {
	key := grantKey(grant.CustomerID, grant.EntitlementKey)

	existing, err := s.grants.Get(ctx, key)
	if err != nil {
		if !ierr.IsNotFound(err) {
			return nil, err
		}
		clone := copyGrant(grant)
		if err := s.grants.Create(ctx, key, clone); err != nil {
			return nil, err
		}
		return copyGrant(clone), nil
	}

	merged := copyGrant(existing)
	merged.ExpiresAt = entitlement.MergeExpiry(existing.ExpiresAt, grant.ExpiresAt)
	merged.Source = grant.Source
	merged.SourceID = grant.SourceID
	if err := s.grants.Update(ctx, key, merged); err != nil {
		return nil, err
	}
	return copyGrant(merged), nil
}

func (s *InMemoryEntitlementStore) GetGrant(ctx context.Context, customerID, entitlementKey string) (*entitlement.Grant, error) {
	g, err := s.grants.Get(ctx, grantKey(customerID, entitlementKey))
	if err != nil {
		return nil, err
	}
	return copyGrant(g), nil
}

func (s *InMemoryEntitlementStore) ListGrants(ctx context.Context, filter *entitlement.Filter) ([]*entitlement.Grant, error) {
	items, err := s.grants.List(ctx, filter, grantFilterFn, grantSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(g *entitlement.Grant, _ int) *entitlement.Grant {
		return copyGrant(g)
	}), nil
}

func (s *InMemoryEntitlementStore) RevokeGrant(ctx context.Context, customerID, entitlementKey string) error {
	return s.grants.Delete(ctx, grantKey(customerID, entitlementKey))
}

func (s *InMemoryEntitlementStore) RevokeBySource(ctx context.Context, source types.GrantSource, sourceID string) error {
	filterFn := func(_ context.Context, g *entitlement.Grant, _ interface{}) bool {
		return g.Source == source && g.SourceID == sourceID
	}
	grants, err := s.grants.List(ctx, nil, filterFn, nil)
	if err != nil {
		return err
	}
	for _, g := range grants {
		if err := s.grants.Delete(ctx, grantKey(g.CustomerID, g.EntitlementKey)); err != nil {
			return err
		}
	}
	return nil
}

// Clear wipes definitions and grants
func (s *InMemoryEntitlementStore) Clear() {
	s.definitions.Clear()
	s.grants.Clear()
}

func grantFilterFn(_ context.Context, g *entitlement.Grant, filter interface{}) bool {
	f, ok := filter.(*entitlement.Filter)
	if !ok {
		return true
	}

	if f.CustomerID != "" && g.CustomerID != f.CustomerID {
		return false
	}
	if f.EntitlementKey != "" && g.EntitlementKey != f.EntitlementKey {
		return false
	}
	if f.Source != "" && g.Source != f.Source {
		return false
	}
	return true
}

func grantSortFn(i, j *entitlement.Grant) bool {
	return i.GrantedAt.After(j.GrantedAt)
}
