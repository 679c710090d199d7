package service

import (
	"github.com/shopspring/decimal"

	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// VolumeTier is one band of a quantity-based pricing schedule. MaxQuantity
// nil means the band is open-ended.
type VolumeTier struct {
	MinQuantity   int64              `json:"min_quantity"`
	MaxQuantity   *int64             `json:"max_quantity,omitempty"`
	DiscountType  types.DiscountType `json:"discount_type"`
	DiscountValue int64              `json:"discount_value"`
}

// Contains reports whether the quantity falls inside this tier's range
func (t VolumeTier) Contains(quantity int64) bool {
	if quantity < t.MinQuantity {
		return false
	}
	return t.MaxQuantity == nil || quantity <= *t.MaxQuantity
}

// VolumePricingService computes quantity-based pricing. All functions are
// pure; amounts are minor units.
type VolumePricingService struct{}

func NewVolumePricingService() *VolumePricingService {
	return &VolumePricingService{}
}

// FindTier returns the tier with the largest MinQuantity that still
// contains the quantity, or nil when no tier matches.
func (s *VolumePricingService) FindTier(tiers []VolumeTier, quantity int64) *VolumeTier {
	var found *VolumeTier
	for i := range tiers {
		t := tiers[i]
		if !t.Contains(quantity) {
			continue
		}
		if found == nil || t.MinQuantity > found.MinQuantity {
			found = &tiers[i]
		}
	}
	return found
}

// FlatVolumeDiscount prices the whole quantity at the single tier the
// quantity falls into.
func (s *VolumePricingService) FlatVolumeDiscount(tiers []VolumeTier, quantity, basePrice int64) (int64, error) {
	if quantity < 0 || basePrice < 0 {
		return 0, ierr.NewError("quantity and base price must not be negative").
			WithHint("Quantity and base price must not be negative").
			WithReportableDetails(map[string]any{
				"quantity":   quantity,
				"base_price": basePrice,
			}).
			Mark(ierr.ErrValidation)
	}

	gross := quantity * basePrice
	tier := s.FindTier(tiers, quantity)
	if tier == nil {
		return gross, nil
	}
	return gross - ComputeAmount(tier.DiscountType, tier.DiscountValue, gross), nil
}

// GraduatedTieredPricing prices each slice of the quantity at its own
// tier's discounted unit price and sums the slices.
func (s *VolumePricingService) GraduatedTieredPricing(tiers []VolumeTier, quantity, basePrice int64) (int64, error) {
	if quantity < 0 || basePrice < 0 {
		return 0, ierr.NewError("quantity and base price must not be negative").
			WithHint("Quantity and base price must not be negative").
			WithReportableDetails(map[string]any{
				"quantity":   quantity,
				"base_price": basePrice,
			}).
			Mark(ierr.ErrValidation)
	}

	var total int64
	for _, t := range tiers {
		slice := tierSlice(t, quantity)
		if slice == 0 {
			continue
		}
		total += slice * tierUnitPrice(t, basePrice)
	}
	return total, nil
}

// tierSlice is how many units of the total quantity fall in this tier's
// range.
func tierSlice(t VolumeTier, quantity int64) int64 {
	if quantity < t.MinQuantity {
		return 0
	}
	upper := quantity
	if t.MaxQuantity != nil && *t.MaxQuantity < upper {
		upper = *t.MaxQuantity
	}
	return upper - t.MinQuantity + 1
}

// tierUnitPrice is the base price reduced by the tier's discount, floored
// at zero.
func tierUnitPrice(t VolumeTier, basePrice int64) int64 {
	switch t.DiscountType {
	case types.DiscountTypePercentage:
		pct := t.DiscountValue
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		return decimal.NewFromInt(basePrice).
			Mul(decimal.NewFromInt(100 - pct)).
			Div(decimal.NewFromInt(100)).
			Round(0).
			IntPart()
	case types.DiscountTypeFixedAmount:
		unit := basePrice - t.DiscountValue
		if unit < 0 {
			return 0
		}
		return unit
	default:
		return basePrice
	}
}
