package service

import (
	"context"
	"fmt"
	"time"

	"github.com/qazuor/qzpay-sub003/internal/domain/vendor"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/idempotency"
	"github.com/qazuor/qzpay-sub003/internal/logger"
	"github.com/qazuor/qzpay-sub003/internal/provider"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// SchedulePayoutInput collects a vendor's gross earnings for a period.
// Commission and net are derived from the vendor's commission rate.
type SchedulePayoutInput struct {
	VendorID    string
	PeriodStart time.Time
	PeriodEnd   time.Time
	GrossAmount int64
}

// PayoutRunResult summarizes one processing pass over scheduled payouts
type PayoutRunResult struct {
	Processed int
	Paid      int
	Failed    int
}

// VendorService manages marketplace vendors and their payouts. Funds move
// through the provider's transfer API; the engine only tracks the ledger.
type VendorService struct {
	repo     vendor.Repository
	registry *provider.Registry
	idem     *idempotency.Generator
	clock    types.Clock
	livemode bool
	logger   *logger.Logger
}

func NewVendorService(repo vendor.Repository, registry *provider.Registry, clock types.Clock, livemode bool, log *logger.Logger) *VendorService {
	return &VendorService{
		repo:     repo,
		registry: registry,
		idem:     idempotency.NewGenerator(),
		clock:    clock,
		livemode: livemode,
		logger:   log,
	}
}

func (s *VendorService) Create(ctx context.Context, v *vendor.Vendor) (*vendor.Vendor, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	v.ID = types.GenerateUUIDWithPrefix(types.UUID_PREFIX_VENDOR)
	if v.ProviderIDs == nil {
		v.ProviderIDs = types.ProviderIDs{}
	}
	v.BaseModel = types.GetDefaultBaseModel(ctx, s.livemode)
	if err := s.repo.Create(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *VendorService) Get(ctx context.Context, id string) (*vendor.Vendor, error) {
	return s.repo.Get(ctx, id)
}

func (s *VendorService) List(ctx context.Context, filter *types.QueryFilter) ([]*vendor.Vendor, error) {
	return s.repo.List(ctx, filter)
}

func (s *VendorService) Update(ctx context.Context, v *vendor.Vendor) (*vendor.Vendor, error) {
	if err := v.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *VendorService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// SchedulePayout creates a scheduled payout for the period. Net is always
// gross minus commission.
func (s *VendorService) SchedulePayout(ctx context.Context, input SchedulePayoutInput) (*vendor.VendorPayout, error) {
	if input.GrossAmount <= 0 {
		return nil, ierr.NewError("gross amount must be positive").
			WithHint("Gross amount must be positive").
			WithReportableDetails(map[string]any{"gross_amount": input.GrossAmount}).
			Mark(ierr.ErrValidation)
	}
	v, err := s.repo.Get(ctx, input.VendorID)
	if err != nil {
		return nil, err
	}

	commission := v.CommissionOn(input.GrossAmount)
	payout := &vendor.VendorPayout{
		ID:               types.GenerateUUIDWithPrefix(types.UUID_PREFIX_VENDOR_PAYOUT),
		VendorID:         v.ID,
		PeriodStart:      input.PeriodStart,
		PeriodEnd:        input.PeriodEnd,
		GrossAmount:      input.GrossAmount,
		CommissionAmount: commission,
		NetAmount:        input.GrossAmount - commission,
		Currency:         v.PayoutCurrency,
		PayoutStatus:     types.PayoutStatusScheduled,
		BaseModel:        types.GetDefaultBaseModel(ctx, s.livemode),
	}
	if err := payout.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.CreatePayout(ctx, payout); err != nil {
		return nil, err
	}
	return payout, nil
}

func (s *VendorService) GetPayout(ctx context.Context, id string) (*vendor.VendorPayout, error) {
	return s.repo.GetPayout(ctx, id)
}

func (s *VendorService) ListPayouts(ctx context.Context, filter *vendor.PayoutFilter) ([]*vendor.VendorPayout, error) {
	return s.repo.ListPayouts(ctx, filter)
}

// ProcessScheduledPayouts transfers every scheduled payout through the
// vendor's provider account. Failures mark the payout failed and move on;
// the next run will not retry failed payouts automatically.
func (s *VendorService) ProcessScheduledPayouts(ctx context.Context) (*PayoutRunResult, error) {
	payouts, err := s.repo.ListScheduledPayouts(ctx)
	if err != nil {
		return nil, err
	}

	result := &PayoutRunResult{}
	for _, payout := range payouts {
		result.Processed++
		if err := s.processPayout(ctx, payout); err != nil {
			result.Failed++
			s.logger.Errorw("payout failed",
				"payout_id", payout.ID, "vendor_id", payout.VendorID, "error", err)
			continue
		}
		result.Paid++
	}

	s.logger.Infow("payout run completed",
		"processed", result.Processed, "paid", result.Paid, "failed", result.Failed)
	return result, nil
}

func (s *VendorService) processPayout(ctx context.Context, payout *vendor.VendorPayout) error {
	v, err := s.repo.Get(ctx, payout.VendorID)
	if err != nil {
		return s.failPayout(ctx, payout, err.Error())
	}

	kind, accountID, err := s.resolvePayoutAccount(v)
	if err != nil {
		return s.failPayout(ctx, payout, err.Error())
	}
	prov, err := s.registry.Get(kind)
	if err != nil {
		return s.failPayout(ctx, payout, err.Error())
	}

	key := s.idem.GenerateKey(idempotency.ScopePayout, map[string]interface{}{
		"payout_id": payout.ID,
		"amount":    payout.NetAmount,
	})
	transfer, err := prov.Transfer(ctx, provider.TransferRequest{
		ProviderAccountID: accountID,
		Amount:            payout.NetAmount,
		Currency:          payout.Currency,
		Description:       fmt.Sprintf("Payout %s to %s", payout.ID, payout.PeriodEnd.Format("2006-01-02")),
		IdempotencyKey:    key,
	})
	if err != nil {
		return s.failPayout(ctx, payout, err.Error())
	}

	now := s.clock.Now()
	payout.PayoutStatus = types.PayoutStatusPaid
	payout.PaidAt = &now
	payout.ProviderTransferID = transfer.ProviderTransferID
	return s.repo.UpdatePayout(ctx, payout)
}

func (s *VendorService) failPayout(ctx context.Context, payout *vendor.VendorPayout, reason string) error {
	payout.PayoutStatus = types.PayoutStatusFailed
	payout.FailureReason = reason
	if err := s.repo.UpdatePayout(ctx, payout); err != nil {
		return err
	}
	return ierr.NewError("payout transfer failed").
		WithHint("The payout transfer could not be completed").
		WithReportableDetails(map[string]any{
			"payout_id": payout.ID,
			"reason":    reason,
		}).
		Mark(ierr.ErrProviderUnavailable)
}

// resolvePayoutAccount picks the vendor's connected provider account. A
// vendor is onboarded to one provider at a time.
func (s *VendorService) resolvePayoutAccount(v *vendor.Vendor) (types.ProviderKind, string, error) {
	for kind, accountID := range v.ProviderIDs {
		if accountID == "" {
			continue
		}
		if _, err := s.registry.Get(kind); err == nil {
			return kind, accountID, nil
		}
	}
	return "", "", ierr.NewError("vendor has no payout account").
		WithHint("The vendor has no connected provider account").
		WithReportableDetails(map[string]any{"vendor_id": v.ID}).
		Mark(ierr.ErrProviderUnavailable)
}
