package service

import (
	"context"
	"strings"

	"github.com/qazuor/qzpay-sub003/internal/domain/discount"
	"github.com/qazuor/qzpay-sub003/internal/domain/promocode"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/logger"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// PromoCodeService is the admin surface for promo codes and automatic
// discounts. Checkout-time validation and redemption live on the
// discount engine.
type PromoCodeService struct {
	promoRepo    promocode.Repository
	discountRepo discount.Repository
	logger       *logger.Logger
}

func NewPromoCodeService(promoRepo promocode.Repository, discountRepo discount.Repository, log *logger.Logger) *PromoCodeService {
	return &PromoCodeService{promoRepo: promoRepo, discountRepo: discountRepo, logger: log}
}

// Create registers a promo code. Codes are stored uppercase and must be
// unique.
func (s *PromoCodeService) Create(ctx context.Context, promo *promocode.PromoCode) (*promocode.PromoCode, error) {
	promo.Code = strings.ToUpper(strings.TrimSpace(promo.Code))
	if err := promo.Validate(); err != nil {
		return nil, err
	}
	if existing, err := s.promoRepo.GetByCode(ctx, promo.Code); err == nil && existing != nil {
		return nil, ierr.NewError("promo code already exists").
			WithHint("A promo code with this code already exists").
			WithReportableDetails(map[string]any{"code": promo.Code}).
			Mark(ierr.ErrAlreadyExists)
	}

	promo.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_PROMO_CODE)
	promo.Version = 1
	promo.BaseModel = types.GetDefaultBaseModel(ctx, false)
	if err := s.promoRepo.Create(ctx, promo); err != nil {
		return nil, err
	}
	return promo, nil
}

func (s *PromoCodeService) Get(ctx context.Context, id string) (*promocode.PromoCode, error) {
	return s.promoRepo.Get(ctx, id)
}

func (s *PromoCodeService) GetByCode(ctx context.Context, code string) (*promocode.PromoCode, error) {
	return s.promoRepo.GetByCode(ctx, strings.ToUpper(strings.TrimSpace(code)))
}

func (s *PromoCodeService) List(ctx context.Context, filter *promocode.Filter) ([]*promocode.PromoCode, error) {
	return s.promoRepo.List(ctx, filter)
}

func (s *PromoCodeService) Update(ctx context.Context, promo *promocode.PromoCode) (*promocode.PromoCode, error) {
	if err := promo.Validate(); err != nil {
		return nil, err
	}
	if err := s.promoRepo.Update(ctx, promo); err != nil {
		return nil, err
	}
	return promo, nil
}

// Deactivate stops a code from validating without erasing its history
func (s *PromoCodeService) Deactivate(ctx context.Context, id string) (*promocode.PromoCode, error) {
	promo, err := s.promoRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	promo.Active = false
	if err := s.promoRepo.Update(ctx, promo); err != nil {
		return nil, err
	}
	return promo, nil
}

func (s *PromoCodeService) Delete(ctx context.Context, id string) error {
	return s.promoRepo.Delete(ctx, id)
}

// CreateDiscount registers an automatic discount
func (s *PromoCodeService) CreateDiscount(ctx context.Context, d *discount.AutomaticDiscount) (*discount.AutomaticDiscount, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	d.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_DISCOUNT)
	d.BaseModel = types.GetDefaultBaseModel(ctx, false)
	if err := s.discountRepo.Create(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *PromoCodeService) GetDiscount(ctx context.Context, id string) (*discount.AutomaticDiscount, error) {
	return s.discountRepo.Get(ctx, id)
}

func (s *PromoCodeService) ListDiscounts(ctx context.Context, filter *discount.Filter) ([]*discount.AutomaticDiscount, error) {
	return s.discountRepo.List(ctx, filter)
}

func (s *PromoCodeService) UpdateDiscount(ctx context.Context, d *discount.AutomaticDiscount) (*discount.AutomaticDiscount, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	if err := s.discountRepo.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *PromoCodeService) DeleteDiscount(ctx context.Context, id string) error {
	return s.discountRepo.Delete(ctx, id)
}
