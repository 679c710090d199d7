package service

import (
	"context"

	"github.com/qazuor/qzpay-sub003/internal/domain/plan"
	"github.com/qazuor/qzpay-sub003/internal/domain/price"
	"github.com/qazuor/qzpay-sub003/internal/logger"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// PlanService manages plans and their prices
type PlanService struct {
	planRepo  plan.Repository
	priceRepo price.Repository
	logger    *logger.Logger
}

func NewPlanService(planRepo plan.Repository, priceRepo price.Repository, log *logger.Logger) *PlanService {
	return &PlanService{planRepo: planRepo, priceRepo: priceRepo, logger: log}
}

func (s *PlanService) Create(ctx context.Context, p *plan.Plan) (*plan.Plan, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	p.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PLAN)
	p.BaseModel = types.GetDefaultBaseModel(ctx, false)
	if err := s.planRepo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PlanService) Get(ctx context.Context, id string) (*plan.Plan, error) {
	return s.planRepo.Get(ctx, id)
}

func (s *PlanService) List(ctx context.Context, filter *plan.Filter) ([]*plan.Plan, error) {
	return s.planRepo.List(ctx, filter)
}

func (s *PlanService) Update(ctx context.Context, p *plan.Plan) (*plan.Plan, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.planRepo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PlanService) Delete(ctx context.Context, id string) error {
	return s.planRepo.Delete(ctx, id)
}

// AddPrice attaches a billing cadence and amount to the plan
func (s *PlanService) AddPrice(ctx context.Context, pr *price.Price) (*price.Price, error) {
	if err := pr.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.planRepo.Get(ctx, pr.PlanID); err != nil {
		return nil, err
	}
	pr.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PRICE)
	pr.BaseModel = types.GetDefaultBaseModel(ctx, false)
	if err := s.priceRepo.Create(ctx, pr); err != nil {
		return nil, err
	}
	return pr, nil
}

func (s *PlanService) GetPrice(ctx context.Context, id string) (*price.Price, error) {
	return s.priceRepo.Get(ctx, id)
}

func (s *PlanService) ListPrices(ctx context.Context, planID string) ([]*price.Price, error) {
	return s.priceRepo.ListByPlan(ctx, planID)
}

func (s *PlanService) UpdatePrice(ctx context.Context, pr *price.Price) (*price.Price, error) {
	if err := pr.Validate(); err != nil {
		return nil, err
	}
	if err := s.priceRepo.Update(ctx, pr); err != nil {
		return nil, err
	}
	return pr, nil
}

func (s *PlanService) DeletePrice(ctx context.Context, id string) error {
	return s.priceRepo.Delete(ctx, id)
}
