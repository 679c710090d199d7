package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/qazuor/qzpay-sub003/internal/domain/discount"
	"github.com/qazuor/qzpay-sub003/internal/domain/promocode"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/logger"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// DiscountContext carries everything the engine needs to decide whether a
// discount applies and how much it is worth. Amounts are minor units.
type DiscountContext struct {
	CustomerID      string
	PlanID          string
	ProductIDs      []string
	CustomerTags    []string
	Currency        string
	Subtotal        int64
	Quantity        int64
	IsFirstPurchase bool
	CurrentDate     time.Time
}

// AppliedDiscount is one discount that contributed to the final amount
type AppliedDiscount struct {
	ID             string             `json:"id"`
	Code           string             `json:"code,omitempty"`
	Name           string             `json:"name,omitempty"`
	DiscountType   types.DiscountType `json:"discount_type"`
	DiscountValue  int64              `json:"discount_value"`
	DiscountAmount int64              `json:"discount_amount"`
}

// SkippedDiscount is a candidate that did not apply, with the reason
type SkippedDiscount struct {
	ID     string `json:"id"`
	Code   string `json:"code,omitempty"`
	Name   string `json:"name,omitempty"`
	Reason string `json:"reason"`
}

// DiscountResult is the outcome of running candidates through the engine
type DiscountResult struct {
	OriginalAmount   int64             `json:"original_amount"`
	DiscountAmount   int64             `json:"discount_amount"`
	FinalAmount      int64             `json:"final_amount"`
	AppliedDiscounts []AppliedDiscount `json:"applied_discounts"`
	SkippedDiscounts []SkippedDiscount `json:"skipped_discounts"`
}

func emptyResult(subtotal int64) *DiscountResult {
	return &DiscountResult{
		OriginalAmount:   subtotal,
		DiscountAmount:   0,
		FinalAmount:      subtotal,
		AppliedDiscounts: []AppliedDiscount{},
		SkippedDiscounts: []SkippedDiscount{},
	}
}

// DiscountEngineService validates promo codes, evaluates automatic
// discounts, and computes stacked discount amounts. The computation paths
// are pure; repositories are only touched for code lookup and redemption
// bookkeeping.
type DiscountEngineService struct {
	promoRepo    promocode.Repository
	discountRepo discount.Repository
	clock        types.Clock
	logger       *logger.Logger
}

func NewDiscountEngineService(
	promoRepo promocode.Repository,
	discountRepo discount.Repository,
	clock types.Clock,
	log *logger.Logger,
) *DiscountEngineService {
	return &DiscountEngineService{
		promoRepo:    promoRepo,
		discountRepo: discountRepo,
		clock:        clock,
		logger:       log,
	}
}

// ValidatePromoCode checks a promo against the context. Checks run in a
// fixed order so callers get stable error messages.
func (s *DiscountEngineService) ValidatePromoCode(promo *promocode.PromoCode, dctx DiscountContext) error {
	if !promo.Active {
		return promoInvalid(promo, "promo code is not active")
	}
	if promo.ValidUntil != nil && dctx.CurrentDate.After(*promo.ValidUntil) {
		return promoInvalid(promo, "promo code has expired")
	}
	if promo.ValidFrom != nil && dctx.CurrentDate.Before(*promo.ValidFrom) {
		return promoInvalid(promo, "promo code is not yet valid")
	}
	if promo.MaxRedemptions != nil && promo.CurrentRedemptions >= *promo.MaxRedemptions {
		return promoInvalid(promo, "promo code redemption limit reached")
	}
	if promo.DiscountType == types.DiscountTypeFixedAmount && !strings.EqualFold(promo.Currency, dctx.Currency) {
		return promoInvalid(promo, "promo code currency does not match")
	}
	if len(promo.ApplicablePlanIDs) > 0 && !lo.Contains(promo.ApplicablePlanIDs, dctx.PlanID) {
		return promoInvalid(promo, "promo code does not apply to this plan")
	}
	if len(promo.ApplicableProductIDs) > 0 && len(lo.Intersect(promo.ApplicableProductIDs, dctx.ProductIDs)) == 0 {
		return promoInvalid(promo, "promo code does not apply to these products")
	}
	for _, cond := range promo.Conditions {
		if !evaluateCondition(cond, dctx) {
			return promoInvalid(promo, fmt.Sprintf("condition %s not met", cond.Type))
		}
	}
	return nil
}

func promoInvalid(promo *promocode.PromoCode, reason string) error {
	return ierr.NewError(reason).
		WithHint("Promo code cannot be applied").
		WithReportableDetails(map[string]any{
			"code":   promo.Code,
			"reason": reason,
		}).
		Mark(ierr.ErrValidation)
}

// evaluateCondition returns whether a single eligibility rule holds.
// Unknown condition types are treated as valid.
func evaluateCondition(cond types.DiscountCondition, dctx DiscountContext) bool {
	switch cond.Type {
	case types.ConditionFirstPurchase:
		return !cond.BoolValue || dctx.IsFirstPurchase
	case types.ConditionMinAmount:
		return dctx.Subtotal >= cond.IntValue
	case types.ConditionMinQuantity:
		return dctx.Quantity >= cond.IntValue
	case types.ConditionSpecificPlans:
		return lo.Contains(cond.ListValue, dctx.PlanID)
	case types.ConditionSpecificProducts:
		return len(lo.Intersect(cond.ListValue, dctx.ProductIDs)) > 0
	case types.ConditionCustomerTag:
		return lo.Contains(dctx.CustomerTags, cond.StringValue)
	case types.ConditionDateRange:
		if cond.DateRangeVal == nil {
			return true
		}
		if cond.DateRangeVal.Start != nil && dctx.CurrentDate.Before(*cond.DateRangeVal.Start) {
			return false
		}
		if cond.DateRangeVal.End != nil && dctx.CurrentDate.After(*cond.DateRangeVal.End) {
			return false
		}
		return true
	default:
		return true
	}
}

// ComputeAmount returns the discount a single promo or automatic discount is
// worth against the subtotal. The result never exceeds the subtotal.
func ComputeAmount(discountType types.DiscountType, value int64, subtotal int64) int64 {
	if subtotal <= 0 {
		return 0
	}
	switch discountType {
	case types.DiscountTypePercentage:
		pct := value
		if pct < 0 {
			pct = 0
		}
		if pct > 100 {
			pct = 100
		}
		amount := decimal.NewFromInt(subtotal).
			Mul(decimal.NewFromInt(pct)).
			Div(decimal.NewFromInt(100)).
			Round(0).
			IntPart()
		return amount
	case types.DiscountTypeFixedAmount:
		if value < 0 {
			return 0
		}
		if value > subtotal {
			return subtotal
		}
		return value
	case types.DiscountTypeFreeTrial:
		return subtotal
	default:
		return 0
	}
}

// candidate is the engine's internal view of either a promo code or an
// automatic discount.
type candidate struct {
	id            string
	code          string
	name          string
	discountType  types.DiscountType
	discountValue int64
}

func promoCandidate(p *promocode.PromoCode) candidate {
	return candidate{
		id:            p.ID,
		code:          p.Code,
		discountType:  p.DiscountType,
		discountValue: p.DiscountValue,
	}
}

func autoCandidate(d *discount.AutomaticDiscount) candidate {
	return candidate{
		id:            d.ID,
		name:          d.Name,
		discountType:  d.DiscountType,
		discountValue: d.DiscountValue,
	}
}

func (c candidate) applied(amount int64) AppliedDiscount {
	return AppliedDiscount{
		ID:             c.id,
		Code:           c.code,
		Name:           c.name,
		DiscountType:   c.discountType,
		DiscountValue:  c.discountValue,
		DiscountAmount: amount,
	}
}

func (c candidate) skipped(reason string) SkippedDiscount {
	return SkippedDiscount{ID: c.id, Code: c.code, Name: c.name, Reason: reason}
}

// stack applies the candidates to the subtotal under the given mode
func stack(subtotal int64, mode types.StackingMode, candidates []candidate) *DiscountResult {
	result := emptyResult(subtotal)
	if len(candidates) == 0 {
		return result
	}

	switch mode {
	case types.StackingModeNone:
		first := candidates[0]
		amount := ComputeAmount(first.discountType, first.discountValue, subtotal)
		result.AppliedDiscounts = append(result.AppliedDiscounts, first.applied(amount))
		result.DiscountAmount = amount
		for _, c := range candidates[1:] {
			result.SkippedDiscounts = append(result.SkippedDiscounts, c.skipped("stacking mode none allows a single discount"))
		}

	case types.StackingModeBest:
		bestIdx, bestAmount := 0, int64(-1)
		amounts := make([]int64, len(candidates))
		for i, c := range candidates {
			amounts[i] = ComputeAmount(c.discountType, c.discountValue, subtotal)
			if amounts[i] > bestAmount {
				bestIdx, bestAmount = i, amounts[i]
			}
		}
		for i, c := range candidates {
			if i == bestIdx {
				result.AppliedDiscounts = append(result.AppliedDiscounts, c.applied(amounts[i]))
				continue
			}
			result.SkippedDiscounts = append(result.SkippedDiscounts, c.skipped("a larger discount was applied"))
		}
		result.DiscountAmount = bestAmount

	case types.StackingModeAdditive:
		var total int64
		for _, c := range candidates {
			amount := ComputeAmount(c.discountType, c.discountValue, subtotal)
			total += amount
			result.AppliedDiscounts = append(result.AppliedDiscounts, c.applied(amount))
		}
		if total > subtotal {
			total = subtotal
		}
		result.DiscountAmount = total

	case types.StackingModeMultiplicative:
		remaining := subtotal
		for _, c := range candidates {
			amount := ComputeAmount(c.discountType, c.discountValue, remaining)
			remaining -= amount
			result.AppliedDiscounts = append(result.AppliedDiscounts, c.applied(amount))
		}
		result.DiscountAmount = subtotal - remaining

	default:
		return result
	}

	result.FinalAmount = subtotal - result.DiscountAmount
	return result
}

// ApplyPromoCodes validates each promo against the context and stacks the
// valid ones. Invalid promos end up in SkippedDiscounts with the reason.
func (s *DiscountEngineService) ApplyPromoCodes(promos []*promocode.PromoCode, mode types.StackingMode, dctx DiscountContext) *DiscountResult {
	valid := make([]candidate, 0, len(promos))
	skipped := make([]SkippedDiscount, 0)
	for _, p := range promos {
		if err := s.ValidatePromoCode(p, dctx); err != nil {
			skipped = append(skipped, promoCandidate(p).skipped(validationReason(err)))
			continue
		}
		valid = append(valid, promoCandidate(p))
	}

	result := stack(dctx.Subtotal, mode, valid)
	result.SkippedDiscounts = append(result.SkippedDiscounts, skipped...)
	return result
}

// ApplyAutomaticDiscounts filters and orders the active automatic
// discounts, then stacks them. Candidates are ordered by priority
// descending before stacking, which matters for none and multiplicative
// modes.
func (s *DiscountEngineService) ApplyAutomaticDiscounts(discounts []*discount.AutomaticDiscount, mode types.StackingMode, dctx DiscountContext) *DiscountResult {
	eligible := make([]*discount.AutomaticDiscount, 0, len(discounts))
	skipped := make([]SkippedDiscount, 0)

	for _, d := range discounts {
		if reason, ok := s.automaticEligible(d, dctx); !ok {
			skipped = append(skipped, autoCandidate(d).skipped(reason))
		} else {
			eligible = append(eligible, d)
		}
	}

	ordered := make([]*discount.AutomaticDiscount, len(eligible))
	copy(ordered, eligible)
	// stable so equal-priority discounts keep input order
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	candidates := lo.Map(ordered, func(d *discount.AutomaticDiscount, _ int) candidate {
		return autoCandidate(d)
	})
	result := stack(dctx.Subtotal, mode, candidates)
	result.SkippedDiscounts = append(result.SkippedDiscounts, skipped...)
	return result
}

func (s *DiscountEngineService) automaticEligible(d *discount.AutomaticDiscount, dctx DiscountContext) (string, bool) {
	if !d.Active {
		return "discount is not active", false
	}
	if d.ValidUntil != nil && dctx.CurrentDate.After(*d.ValidUntil) {
		return "discount has expired", false
	}
	if d.ValidFrom != nil && dctx.CurrentDate.Before(*d.ValidFrom) {
		return "discount is not yet valid", false
	}
	for _, cond := range d.Conditions {
		if !evaluateCondition(cond, dctx) {
			return fmt.Sprintf("condition %s not met", cond.Type), false
		}
	}
	return "", true
}

// Combine merges a promo-code pass with an automatic-discount pass.
//
// promo_first computes the promo discount on the subtotal and the automatic
// discount on what remains; auto_first is the inverse; best keeps whichever
// single pass discounts more.
func (s *DiscountEngineService) Combine(
	promos []*promocode.PromoCode,
	discounts []*discount.AutomaticDiscount,
	promoMode, autoMode types.StackingMode,
	combination types.CombinationMode,
	dctx DiscountContext,
) *DiscountResult {
	switch combination {
	case types.CombinationModePromoFirst:
		first := s.ApplyPromoCodes(promos, promoMode, dctx)
		reduced := dctx
		reduced.Subtotal = first.FinalAmount
		second := s.ApplyAutomaticDiscounts(discounts, autoMode, reduced)
		return mergeSequential(dctx.Subtotal, first, second)

	case types.CombinationModeAutoFirst:
		first := s.ApplyAutomaticDiscounts(discounts, autoMode, dctx)
		reduced := dctx
		reduced.Subtotal = first.FinalAmount
		second := s.ApplyPromoCodes(promos, promoMode, reduced)
		return mergeSequential(dctx.Subtotal, first, second)

	case types.CombinationModeBest:
		promoResult := s.ApplyPromoCodes(promos, promoMode, dctx)
		autoResult := s.ApplyAutomaticDiscounts(discounts, autoMode, dctx)
		if promoResult.DiscountAmount >= autoResult.DiscountAmount {
			for _, a := range autoResult.AppliedDiscounts {
				promoResult.SkippedDiscounts = append(promoResult.SkippedDiscounts, SkippedDiscount{
					ID: a.ID, Code: a.Code, Name: a.Name, Reason: "promo codes discounted more",
				})
			}
			return promoResult
		}
		for _, a := range promoResult.AppliedDiscounts {
			autoResult.SkippedDiscounts = append(autoResult.SkippedDiscounts, SkippedDiscount{
				ID: a.ID, Code: a.Code, Name: a.Name, Reason: "automatic discounts discounted more",
			})
		}
		return autoResult

	default:
		return emptyResult(dctx.Subtotal)
	}
}

func mergeSequential(subtotal int64, first, second *DiscountResult) *DiscountResult {
	merged := emptyResult(subtotal)
	merged.AppliedDiscounts = append(merged.AppliedDiscounts, first.AppliedDiscounts...)
	merged.AppliedDiscounts = append(merged.AppliedDiscounts, second.AppliedDiscounts...)
	merged.SkippedDiscounts = append(merged.SkippedDiscounts, first.SkippedDiscounts...)
	merged.SkippedDiscounts = append(merged.SkippedDiscounts, second.SkippedDiscounts...)
	merged.DiscountAmount = first.DiscountAmount + second.DiscountAmount
	if merged.DiscountAmount > subtotal {
		merged.DiscountAmount = subtotal
	}
	merged.FinalAmount = subtotal - merged.DiscountAmount
	return merged
}

// ValidateCode looks up a code and validates it, including the per-customer
// redemption cap which needs repository access.
func (s *DiscountEngineService) ValidateCode(ctx context.Context, code string, dctx DiscountContext) (*promocode.PromoCode, error) {
	promo, err := s.promoRepo.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := s.ValidatePromoCode(promo, dctx); err != nil {
		return nil, err
	}
	if promo.MaxRedemptionsPerCustomer != nil && dctx.CustomerID != "" {
		count, err := s.promoRepo.CountRedemptionsByCustomer(ctx, promo.ID, dctx.CustomerID)
		if err != nil {
			return nil, err
		}
		if count >= *promo.MaxRedemptionsPerCustomer {
			return nil, promoInvalid(promo, "customer redemption limit reached")
		}
	}
	return promo, nil
}

// Redeem increments the promo's redemption counter and records who redeemed
// it. IncrementRedemptions is serialized by the repository so the global cap
// holds under concurrency.
func (s *DiscountEngineService) Redeem(ctx context.Context, promo *promocode.PromoCode, customerID, invoiceID, currency string, discountAmount int64) (*promocode.Redemption, error) {
	if err := s.promoRepo.IncrementRedemptions(ctx, promo.ID); err != nil {
		return nil, err
	}

	redemption := &promocode.Redemption{
		ID:             types.GenerateUUIDWithPrefix(types.UUID_PREFIX_REDEMPTION),
		PromoCodeID:    promo.ID,
		CustomerID:     customerID,
		DiscountAmount: discountAmount,
		Currency:       currency,
		InvoiceID:      invoiceID,
		RedeemedAt:     s.clock.Now(),
		BaseModel:      types.GetDefaultBaseModel(ctx, false),
	}
	if err := s.promoRepo.CreateRedemption(ctx, redemption); err != nil {
		return nil, err
	}

	s.logger.Infow("promo code redeemed",
		"promo_code_id", promo.ID,
		"code", promo.Code,
		"customer_id", customerID,
		"discount_amount", discountAmount)
	return redemption, nil
}

// ActiveAutomaticDiscounts loads the automatic discounts eligible for the
// context, ordered by priority descending.
func (s *DiscountEngineService) ActiveAutomaticDiscounts(ctx context.Context) ([]*discount.AutomaticDiscount, error) {
	return s.discountRepo.ListActive(ctx)
}

// DescribePromo renders a human-readable description of a promo code
func DescribePromo(promo *promocode.PromoCode) string {
	var b strings.Builder
	switch promo.DiscountType {
	case types.DiscountTypePercentage:
		fmt.Fprintf(&b, "%d%% off", promo.DiscountValue)
	case types.DiscountTypeFixedAmount:
		fmt.Fprintf(&b, "%s %s off", formatMinorUnits(promo.DiscountValue), strings.ToUpper(promo.Currency))
	case types.DiscountTypeFreeTrial:
		b.WriteString("Free trial")
	}
	if len(promo.ApplicablePlanIDs) > 0 {
		fmt.Fprintf(&b, " on %d plan(s)", len(promo.ApplicablePlanIDs))
	}
	if promo.ValidUntil != nil {
		fmt.Fprintf(&b, ", expires %s", promo.ValidUntil.Format("2006-01-02"))
	}
	return b.String()
}

func formatMinorUnits(amount int64) string {
	return decimal.NewFromInt(amount).Div(decimal.NewFromInt(100)).StringFixed(2)
}

func validationReason(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
