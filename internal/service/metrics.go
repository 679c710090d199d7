package service

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/qazuor/qzpay-sub003/internal/domain/payment"
	"github.com/qazuor/qzpay-sub003/internal/domain/price"
	"github.com/qazuor/qzpay-sub003/internal/domain/subscription"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/logger"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// MetricsService computes revenue analytics over the billing data. All
// outputs are integer minor units; MRR is reported per currency and
// aggregation across currencies is left to the caller.
type MetricsService struct {
	subscriptionRepo subscription.Repository
	paymentRepo      payment.Repository
	priceRepo        price.Repository
	logger           *logger.Logger
}

func NewMetricsService(
	subscriptionRepo subscription.Repository,
	paymentRepo payment.Repository,
	priceRepo price.Repository,
	log *logger.Logger,
) *MetricsService {
	return &MetricsService{
		subscriptionRepo: subscriptionRepo,
		paymentRepo:      paymentRepo,
		priceRepo:        priceRepo,
		logger:           log,
	}
}

// NormalizeMonthly converts a price's unit amount to its monthly
// equivalent. A week is treated as 30/7 of a month and a day as 1/30.
func NormalizeMonthly(unitAmount int64, interval types.BillingInterval, intervalCount int) int64 {
	if intervalCount < 1 {
		intervalCount = 1
	}
	amount := decimal.NewFromInt(unitAmount)
	count := decimal.NewFromInt(int64(intervalCount))

	var monthly decimal.Decimal
	switch interval {
	case types.BillingIntervalDay:
		monthly = amount.Mul(decimal.NewFromInt(30)).Div(count)
	case types.BillingIntervalWeek:
		monthly = amount.Mul(decimal.NewFromInt(30)).Div(decimal.NewFromInt(7)).Div(count)
	case types.BillingIntervalMonth:
		monthly = amount.Div(count)
	case types.BillingIntervalYear:
		monthly = amount.Div(decimal.NewFromInt(12).Mul(count))
	default:
		return 0
	}
	return monthly.Round(0).IntPart()
}

// SubscriptionMRR is the monthly recurring revenue a single subscription
// contributes. Only active and trialing subscriptions count.
func SubscriptionMRR(sub *subscription.Subscription, unitAmount int64) int64 {
	if !sub.SubscriptionStatus.CountsForMRR() {
		return 0
	}
	return NormalizeMonthly(unitAmount, sub.Interval, sub.IntervalCount) * sub.Quantity
}

// MRRByCurrency sums MRR across all current subscriptions, keyed by
// currency.
func (s *MetricsService) MRRByCurrency(ctx context.Context) (map[string]int64, error) {
	subs, err := s.listAllSubscriptions(ctx)
	if err != nil {
		return nil, err
	}

	result := make(map[string]int64)
	for _, sub := range subs {
		if !sub.SubscriptionStatus.CountsForMRR() {
			continue
		}
		unitAmount, err := s.resolveUnitAmount(ctx, sub)
		if err != nil {
			s.logger.Warnw("skipping subscription with unresolvable price",
				"subscription_id", sub.ID, "plan_id", sub.PlanID, "error", err)
			continue
		}
		result[sub.Currency] += SubscriptionMRR(sub, unitAmount)
	}
	return result, nil
}

// MRRSnapshot is the per-subscription MRR at a moment in time
type MRRSnapshot struct {
	// Entries maps subscription id to its status and MRR
	Entries map[string]MRRSnapshotEntry `json:"entries"`
	TakenAt time.Time                   `json:"taken_at"`
}

type MRRSnapshotEntry struct {
	SubscriptionStatus types.SubscriptionStatus `json:"subscription_status"`
	MRR                int64                    `json:"mrr"`
}

// TakeMRRSnapshot captures the current per-subscription MRR for later
// breakdown computation.
func (s *MetricsService) TakeMRRSnapshot(ctx context.Context, now time.Time) (*MRRSnapshot, error) {
	subs, err := s.listAllSubscriptions(ctx)
	if err != nil {
		return nil, err
	}

	snapshot := &MRRSnapshot{
		Entries: make(map[string]MRRSnapshotEntry, len(subs)),
		TakenAt: now,
	}
	for _, sub := range subs {
		var mrr int64
		if sub.SubscriptionStatus.CountsForMRR() {
			unitAmount, err := s.resolveUnitAmount(ctx, sub)
			if err != nil {
				s.logger.Warnw("skipping subscription with unresolvable price",
					"subscription_id", sub.ID, "plan_id", sub.PlanID, "error", err)
				continue
			}
			mrr = SubscriptionMRR(sub, unitAmount)
		}
		snapshot.Entries[sub.ID] = MRRSnapshotEntry{
			SubscriptionStatus: sub.SubscriptionStatus,
			MRR:                mrr,
		}
	}
	return snapshot, nil
}

// MRRBreakdown decomposes MRR movement between two snapshots
type MRRBreakdown struct {
	New          int64 `json:"new"`
	Reactivation int64 `json:"reactivation"`
	Expansion    int64 `json:"expansion"`
	Contraction  int64 `json:"contraction"`
	Churned      int64 `json:"churned"`
}

// ComputeMRRBreakdown classifies every subscription movement between the
// previous and current snapshots.
func ComputeMRRBreakdown(previous, current *MRRSnapshot) MRRBreakdown {
	var b MRRBreakdown

	for id, cur := range current.Entries {
		prev, existed := previous.Entries[id]
		curActive := cur.SubscriptionStatus.CountsForMRR()

		switch {
		case !existed && curActive:
			b.New += cur.MRR
		case existed && !prev.SubscriptionStatus.CountsForMRR() && curActive:
			b.Reactivation += cur.MRR
		case existed && prev.SubscriptionStatus.CountsForMRR() && curActive:
			if cur.MRR > prev.MRR {
				b.Expansion += cur.MRR - prev.MRR
			} else if cur.MRR < prev.MRR {
				b.Contraction += prev.MRR - cur.MRR
			}
		}
	}

	for id, prev := range previous.Entries {
		if !prev.SubscriptionStatus.CountsForMRR() {
			continue
		}
		cur, exists := current.Entries[id]
		if !exists || !cur.SubscriptionStatus.CountsForMRR() {
			b.Churned += prev.MRR
		}
	}
	return b
}

// ChurnResult reports cancellation velocity over a period
type ChurnResult struct {
	// Rate is a percentage with two decimal places of precision
	Rate           decimal.Decimal `json:"rate"`
	CanceledCount  int64           `json:"canceled_count"`
	ActiveAtStart  int64           `json:"active_at_start"`
	ChurnedRevenue int64           `json:"churned_revenue"`
}

// ChurnRate computes the percentage of period-start subscribers that
// canceled inside the period.
func (s *MetricsService) ChurnRate(ctx context.Context, periodStart, periodEnd time.Time) (*ChurnResult, error) {
	if periodEnd.Before(periodStart) {
		return nil, ierr.NewError("period end must not precede period start").
			WithHint("Period end must not precede period start").
			Mark(ierr.ErrValidation)
	}

	subs, err := s.listAllSubscriptions(ctx)
	if err != nil {
		return nil, err
	}

	result := &ChurnResult{Rate: decimal.Zero}
	for _, sub := range subs {
		if !sub.CreatedAt.After(periodStart) && sub.SubscriptionStatus.CountsForMRR() {
			result.ActiveAtStart++
		}
		if sub.CanceledAt == nil {
			continue
		}
		canceledAt := *sub.CanceledAt
		if canceledAt.Before(periodStart) || canceledAt.After(periodEnd) {
			continue
		}
		result.CanceledCount++
		unitAmount, err := s.resolveUnitAmount(ctx, sub)
		if err == nil {
			result.ChurnedRevenue += NormalizeMonthly(unitAmount, sub.Interval, sub.IntervalCount) * sub.Quantity
		}
	}

	if result.ActiveAtStart > 0 {
		result.Rate = decimal.NewFromInt(result.CanceledCount).
			Div(decimal.NewFromInt(result.ActiveAtStart)).
			Mul(decimal.NewFromInt(100)).
			Round(2)
	}
	return result, nil
}

// RevenueResult reports collected revenue over a period for one currency
type RevenueResult struct {
	Currency  string `json:"currency"`
	Total     int64  `json:"total"`
	Recurring int64  `json:"recurring"`
	OneTime   int64  `json:"one_time"`
	Refunded  int64  `json:"refunded"`
	Net       int64  `json:"net"`
}

// Revenue sums succeeded payments in [periodStart, periodEnd) for the given
// currency. Recurring means tied to a subscription.
func (s *MetricsService) Revenue(ctx context.Context, periodStart, periodEnd time.Time, currency string) (*RevenueResult, error) {
	payments, err := s.paymentRepo.ListInPeriod(ctx, periodStart, periodEnd)
	if err != nil {
		return nil, err
	}

	result := &RevenueResult{Currency: currency}
	for _, p := range payments {
		if p.Currency != currency {
			continue
		}
		switch p.PaymentStatus {
		case types.PaymentStatusSucceeded:
			result.Total += p.Amount
			if p.SubscriptionID != "" {
				result.Recurring += p.Amount
			} else {
				result.OneTime += p.Amount
			}
		case types.PaymentStatusRefunded:
			result.Refunded += p.Amount
		}
	}
	result.Net = result.Total - result.Refunded
	return result, nil
}

// resolveUnitAmount finds the subscription's price by plan, preferring an
// exact interval match and falling back to the plan's first price.
func (s *MetricsService) resolveUnitAmount(ctx context.Context, sub *subscription.Subscription) (int64, error) {
	prices, err := s.priceRepo.ListByPlan(ctx, sub.PlanID)
	if err != nil {
		return 0, err
	}
	if len(prices) == 0 {
		return 0, ierr.NewError("no price found for plan").
			WithHint("Plan has no prices configured").
			WithReportableDetails(map[string]any{"plan_id": sub.PlanID}).
			Mark(ierr.ErrNotFound)
	}
	for _, p := range prices {
		if p.BillingInterval == sub.Interval && p.IntervalCount == sub.IntervalCount {
			return p.UnitAmount, nil
		}
	}
	return prices[0].UnitAmount, nil
}

func (s *MetricsService) listAllSubscriptions(ctx context.Context) ([]*subscription.Subscription, error) {
	filter := &subscription.Filter{QueryFilter: types.NewNoLimitQueryFilter()}
	return s.subscriptionRepo.List(ctx, filter)
}
