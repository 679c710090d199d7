package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/samber/lo"

	"github.com/qazuor/qzpay-sub003/internal/domain/promocode"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// InMemoryPromoCodeStore implements promocode.Repository. Redemption
// increments are serialized by a dedicated mutex so concurrent redemptions
// respect the cap.
type InMemoryPromoCodeStore struct {
	*InMemoryStore[*promocode.PromoCode]
	redemptions *InMemoryStore[*promocode.Redemption]
	redeemMu    sync.Mutex
}

// NewInMemoryPromoCodeStore creates a new in-memory promo code store
func NewInMemoryPromoCodeStore() *InMemoryPromoCodeStore {
	return &InMemoryPromoCodeStore{
		InMemoryStore: NewInMemoryStore[*promocode.PromoCode](),
		redemptions:   NewInMemoryStore[*promocode.Redemption](),
	}
}

func copyPromoCode(p *promocode.PromoCode) *promocode.PromoCode {
	if p == nil {
		return nil
	}

	clone := *p
	clone.Metadata = p.Metadata.Copy()
	clone.Conditions = append([]types.DiscountCondition(nil), p.Conditions...)
	clone.ApplicablePlanIDs = append([]string(nil), p.ApplicablePlanIDs...)
	clone.ApplicableProductIDs = append([]string(nil), p.ApplicableProductIDs...)
	if p.MaxRedemptions != nil {
		max := *p.MaxRedemptions
		clone.MaxRedemptions = &max
	}
	if p.MaxRedemptionsPerCustomer != nil {
		max := *p.MaxRedemptionsPerCustomer
		clone.MaxRedemptionsPerCustomer = &max
	}
	return &clone
}

func (s *InMemoryPromoCodeStore) Create(ctx context.Context, p *promocode.PromoCode) error {
	clone := copyPromoCode(p)
	if clone.Version == 0 {
		clone.Version = 1
		p.Version = 1
	}
	return s.InMemoryStore.Create(ctx, p.ID, clone)
}

func (s *InMemoryPromoCodeStore) Get(ctx context.Context, id string) (*promocode.PromoCode, error) {
	p, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return copyPromoCode(p), nil
}

func (s *InMemoryPromoCodeStore) GetByCode(ctx context.Context, code string) (*promocode.PromoCode, error) {
	filterFn := func(_ context.Context, p *promocode.PromoCode, _ interface{}) bool {
		return strings.EqualFold(p.Code, code) && !p.IsDeleted()
	}
	items, err := s.InMemoryStore.List(ctx, nil, filterFn, nil)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, ierr.NewError("promo code not found").
			WithHint("No promo code with this code").
			WithReportableDetails(map[string]any{"code": code}).
			Mark(ierr.ErrNotFound)
	}
	return copyPromoCode(items[0]), nil
}

func (s *InMemoryPromoCodeStore) List(ctx context.Context, filter *promocode.Filter) ([]*promocode.PromoCode, error) {
	items, err := s.InMemoryStore.List(ctx, filter, promoCodeFilterFn, promoCodeSortFn)
	if err != nil {
		return nil, err
	}
	return lo.Map(items, func(p *promocode.PromoCode, _ int) *promocode.PromoCode {
		return copyPromoCode(p)
	}), nil
}

func (s *InMemoryPromoCodeStore) Count(ctx context.Context, filter *promocode.Filter) (int, error) {
	return s.InMemoryStore.Count(ctx, filter, promoCodeFilterFn)
}

func (s *InMemoryPromoCodeStore) Update(ctx context.Context, p *promocode.PromoCode) error {
	current, err := s.InMemoryStore.Get(ctx, p.ID)
	if err != nil {
		return err
	}
	if current.Version != p.Version {
		return ierr.NewError("promo code was modified concurrently").
			WithHint("The promo code changed since it was read").
			WithReportableDetails(map[string]any{
				"promo_code_id":    p.ID,
				"expected_version": p.Version,
				"actual_version":   current.Version,
			}).
			Mark(ierr.ErrVersionConflict)
	}

	clone := copyPromoCode(p)
	clone.Version++
	if err := s.InMemoryStore.Update(ctx, p.ID, clone); err != nil {
		return err
	}
	p.Version = clone.Version
	return nil
}

func (s *InMemoryPromoCodeStore) Delete(ctx context.Context, id string) error {
	return s.InMemoryStore.Delete(ctx, id)
}

// IncrementRedemptions is serialized per store; it fails with a conflict
// once the cap is reached
func (s *InMemoryPromoCodeStore) IncrementRedemptions(ctx context.Context, id string) error {
	s.redeemMu.Lock()
	defer s.redeemMu.Unlock()

	p, err := s.InMemoryStore.Get(ctx, id)
	if err != nil {
		return err
	}
	if p.MaxRedemptions != nil && p.CurrentRedemptions >= *p.MaxRedemptions {
		return ierr.NewError("promo code redemption limit reached").
			WithHint("This promo code has no redemptions left").
			WithReportableDetails(map[string]any{
				"promo_code_id":   id,
				"max_redemptions": *p.MaxRedemptions,
			}).
			Mark(ierr.ErrInvalidOperation)
	}

	clone := copyPromoCode(p)
	clone.CurrentRedemptions++
	clone.Version++
	return s.InMemoryStore.Update(ctx, id, clone)
}

func (s *InMemoryPromoCodeStore) CreateRedemption(ctx context.Context, r *promocode.Redemption) error {
	clone := *r
	return s.redemptions.Create(ctx, r.ID, &clone)
}

func (s *InMemoryPromoCodeStore) CountRedemptionsByCustomer(ctx context.Context, promoCodeID, customerID string) (int64, error) {
	filterFn := func(_ context.Context, r *promocode.Redemption, _ interface{}) bool {
		return r.PromoCodeID == promoCodeID && r.CustomerID == customerID
	}
	count, err := s.redemptions.Count(ctx, nil, filterFn)
	return int64(count), err
}

// Clear wipes promo codes and redemptions
func (s *InMemoryPromoCodeStore) Clear() {
	s.InMemoryStore.Clear()
	s.redemptions.Clear()
}

func promoCodeFilterFn(_ context.Context, p *promocode.PromoCode, filter interface{}) bool {
	f, ok := filter.(*promocode.Filter)
	if !ok {
		return !p.IsDeleted()
	}

	if p.IsDeleted() {
		return false
	}
	if f.Active != nil && p.Active != *f.Active {
		return false
	}
	return true
}

func promoCodeSortFn(i, j *promocode.PromoCode) bool {
	return i.CreatedAt.After(j.CreatedAt)
}
