package service

import (
	"context"

	"github.com/qazuor/qzpay-sub003/internal/domain/limit"
	"github.com/qazuor/qzpay-sub003/internal/domain/usage"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/logger"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// RecordUsageInput is one usage event against a customer's limit counter
type RecordUsageInput struct {
	CustomerID string
	LimitKey   string
	Action     usage.Action
	Value      int64
	// IdempotencyKey non-empty makes repeated recording a no-op
	IdempotencyKey string
	Metadata       types.Metadata
}

// LimitService manages quota definitions, per-customer limits, and the
// usage records that move their counters. Counter updates are serialized by
// the repository so concurrent consumption cannot overshoot.
type LimitService struct {
	limitRepo limit.Repository
	usageRepo usage.Repository
	clock     types.Clock
	logger    *logger.Logger
}

func NewLimitService(limitRepo limit.Repository, usageRepo usage.Repository, clock types.Clock, log *logger.Logger) *LimitService {
	return &LimitService{limitRepo: limitRepo, usageRepo: usageRepo, clock: clock, logger: log}
}

func (s *LimitService) CreateDefinition(ctx context.Context, def *limit.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	def.BaseModel = types.GetDefaultBaseModel(ctx, false)
	return s.limitRepo.CreateDefinition(ctx, def)
}

func (s *LimitService) GetDefinition(ctx context.Context, key string) (*limit.Definition, error) {
	return s.limitRepo.GetDefinition(ctx, key)
}

func (s *LimitService) ListDefinitions(ctx context.Context, filter *types.QueryFilter) ([]*limit.Definition, error) {
	return s.limitRepo.ListDefinitions(ctx, filter)
}

// SetLimit creates or replaces a customer's cap for a limit key
func (s *LimitService) SetLimit(ctx context.Context, customerID, limitKey string, maxValue int64, source types.GrantSource) (*limit.CustomerLimit, error) {
	if maxValue < 0 {
		return nil, ierr.NewError("max value must not be negative").
			WithHint("Max value must not be negative").
			Mark(ierr.ErrValidation)
	}
	l := &limit.CustomerLimit{
		ID:         types.GenerateUUIDWithPrefix(types.UUID_PREFIX_LIMIT),
		CustomerID: customerID,
		LimitKey:   limitKey,
		MaxValue:   maxValue,
		Source:     source,
		Version:    1,
		BaseModel:  types.GetDefaultBaseModel(ctx, false),
	}
	return s.limitRepo.Upsert(ctx, l)
}

// Get returns a customer's limit, falling back to the definition default
// when the customer has no explicit cap.
func (s *LimitService) Get(ctx context.Context, customerID, limitKey string) (*limit.CustomerLimit, error) {
	l, err := s.limitRepo.Get(ctx, customerID, limitKey)
	if err == nil {
		return l, nil
	}
	if !ierr.IsNotFound(err) {
		return nil, err
	}

	def, defErr := s.limitRepo.GetDefinition(ctx, limitKey)
	if defErr != nil {
		return nil, err
	}
	return &limit.CustomerLimit{
		CustomerID: customerID,
		LimitKey:   limitKey,
		MaxValue:   def.DefaultValue,
	}, nil
}

// Allowed reports whether the customer may consume one more unit
func (s *LimitService) Allowed(ctx context.Context, customerID, limitKey string) (bool, error) {
	l, err := s.Get(ctx, customerID, limitKey)
	if err != nil {
		return false, err
	}
	return l.Allowed(), nil
}

// RecordUsage appends a usage record and moves the counter. With an
// idempotency key, re-recording returns the original record and leaves the
// counter untouched.
func (s *LimitService) RecordUsage(ctx context.Context, input RecordUsageInput) (*usage.UsageRecord, error) {
	record := &usage.UsageRecord{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_USAGE_RECORD),
		CustomerID:     input.CustomerID,
		LimitKey:       input.LimitKey,
		Action:         input.Action,
		Value:          input.Value,
		RecordedAt:     s.clock.Now(),
		IdempotencyKey: input.IdempotencyKey,
		Metadata:       input.Metadata,
		BaseModel:      types.GetDefaultBaseModel(ctx, false),
	}
	if err := record.Validate(); err != nil {
		return nil, err
	}

	if input.IdempotencyKey != "" {
		existing, err := s.usageRepo.GetByIdempotencyKey(ctx, input.IdempotencyKey)
		if err == nil {
			return existing, nil
		}
		if !ierr.IsNotFound(err) {
			return nil, err
		}
	}

	switch input.Action {
	case usage.ActionIncrement:
		if _, err := s.limitRepo.Increment(ctx, input.CustomerID, input.LimitKey, input.Value); err != nil {
			return nil, err
		}
	case usage.ActionSet:
		if _, err := s.limitRepo.SetCurrent(ctx, input.CustomerID, input.LimitKey, input.Value); err != nil {
			return nil, err
		}
	}

	if err := s.usageRepo.Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

// Release gives back consumed quota, e.g. when a resource is deleted. The
// repository clamps the counter at zero.
func (s *LimitService) Release(ctx context.Context, customerID, limitKey string, value int64) (*limit.CustomerLimit, error) {
	if value < 0 {
		return nil, ierr.NewError("release value must not be negative").
			WithHint("Release value must not be negative").
			Mark(ierr.ErrValidation)
	}
	return s.limitRepo.Increment(ctx, customerID, limitKey, -value)
}

// ListUsage returns the usage records matching the filter
func (s *LimitService) ListUsage(ctx context.Context, filter *usage.Filter) ([]*usage.UsageRecord, error) {
	return s.usageRepo.List(ctx, filter)
}

// ListLimits returns the customer's limits
func (s *LimitService) ListLimits(ctx context.Context, customerID string) ([]*limit.CustomerLimit, error) {
	return s.limitRepo.List(ctx, &limit.Filter{
		QueryFilter: types.NewNoLimitQueryFilter(),
		CustomerID:  customerID,
	})
}

// RemoveLimit deletes a customer's cap for a limit key
func (s *LimitService) RemoveLimit(ctx context.Context, customerID, limitKey string) error {
	return s.limitRepo.Delete(ctx, customerID, limitKey)
}
