package service

import (
	"context"
	"time"

	"github.com/qazuor/qzpay-sub003/internal/domain/entitlement"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/logger"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// GrantInput describes an entitlement grant request
type GrantInput struct {
	CustomerID     string
	EntitlementKey string
	// ExpiresAt nil means the grant never expires
	ExpiresAt *time.Time
	Source    types.GrantSource
	SourceID  string
}

// EntitlementService manages entitlement definitions and customer grants.
// Re-granting never shortens an existing grant: the repository merges
// expiries so the later one (or no expiry) wins.
type EntitlementService struct {
	repo   entitlement.Repository
	clock  types.Clock
	logger *logger.Logger
}

func NewEntitlementService(repo entitlement.Repository, clock types.Clock, log *logger.Logger) *EntitlementService {
	return &EntitlementService{repo: repo, clock: clock, logger: log}
}

func (s *EntitlementService) CreateDefinition(ctx context.Context, def *entitlement.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	def.BaseModel = types.GetDefaultBaseModel(ctx, false)
	return s.repo.CreateDefinition(ctx, def)
}

func (s *EntitlementService) GetDefinition(ctx context.Context, key string) (*entitlement.Definition, error) {
	return s.repo.GetDefinition(ctx, key)
}

func (s *EntitlementService) ListDefinitions(ctx context.Context, filter *types.QueryFilter) ([]*entitlement.Definition, error) {
	return s.repo.ListDefinitions(ctx, filter)
}

// Grant gives the customer an entitlement. When a grant for the same
// (customer, key) already exists the expiry is merged, never shortened.
func (s *EntitlementService) Grant(ctx context.Context, input GrantInput) (*entitlement.Grant, error) {
	if input.CustomerID == "" || input.EntitlementKey == "" {
		return nil, ierr.NewError("customer id and entitlement key are required").
			WithHint("Customer ID and entitlement key are required").
			Mark(ierr.ErrValidation)
	}

	grant := &entitlement.Grant{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ENTITLEMENT),
		CustomerID:     input.CustomerID,
		EntitlementKey: input.EntitlementKey,
		GrantedAt:      s.clock.Now(),
		ExpiresAt:      input.ExpiresAt,
		Source:         input.Source,
		SourceID:       input.SourceID,
		BaseModel:      types.GetDefaultBaseModel(ctx, false),
	}
	stored, err := s.repo.Upsert(ctx, grant)
	if err != nil {
		return nil, err
	}

	s.logger.Debugw("entitlement granted",
		"customer_id", input.CustomerID,
		"entitlement_key", input.EntitlementKey,
		"source", input.Source)
	return stored, nil
}

// Has reports whether the customer holds an active grant for the key
func (s *EntitlementService) Has(ctx context.Context, customerID, entitlementKey string) (bool, error) {
	grant, err := s.repo.GetGrant(ctx, customerID, entitlementKey)
	if err != nil {
		if ierr.IsNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return grant.IsActive(s.clock.Now()), nil
}

// ListActive returns the customer's grants that are in force now
func (s *EntitlementService) ListActive(ctx context.Context, customerID string) ([]*entitlement.Grant, error) {
	grants, err := s.repo.ListGrants(ctx, &entitlement.Filter{
		QueryFilter: types.NewNoLimitQueryFilter(),
		CustomerID:  customerID,
	})
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	active := make([]*entitlement.Grant, 0, len(grants))
	for _, g := range grants {
		if g.IsActive(now) {
			active = append(active, g)
		}
	}
	return active, nil
}

func (s *EntitlementService) Revoke(ctx context.Context, customerID, entitlementKey string) error {
	return s.repo.RevokeGrant(ctx, customerID, entitlementKey)
}

// RevokeBySource removes every grant created by a given source record,
// e.g. all grants of a canceled subscription.
func (s *EntitlementService) RevokeBySource(ctx context.Context, source types.GrantSource, sourceID string) error {
	return s.repo.RevokeBySource(ctx, source, sourceID)
}
