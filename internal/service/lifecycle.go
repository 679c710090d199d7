package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/qazuor/qzpay-sub003/internal/config"
	"github.com/qazuor/qzpay-sub003/internal/domain/invoice"
	"github.com/qazuor/qzpay-sub003/internal/domain/price"
	"github.com/qazuor/qzpay-sub003/internal/domain/subscription"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/idempotency"
	"github.com/qazuor/qzpay-sub003/internal/logger"
	"github.com/qazuor/qzpay-sub003/internal/publisher"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

const (
	cancelReasonNonpayment      = "Payment failed - grace period expired"
	cancelReasonTrialConversion = "Trial conversion payment failed"
)

// PhaseDetail is the per-subscription outcome of one lifecycle phase
type PhaseDetail struct {
	SubscriptionID string `json:"subscription_id"`
	Success        bool   `json:"success"`
	PaymentID      string `json:"payment_id,omitempty"`
	Error          string `json:"error,omitempty"`
}

// PhaseResult aggregates one phase of a lifecycle run
type PhaseResult struct {
	Processed int           `json:"processed"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Details   []PhaseDetail `json:"details"`
}

func (r *PhaseResult) record(d PhaseDetail) {
	r.Processed++
	if d.Success {
		r.Succeeded++
	} else {
		r.Failed++
	}
	r.Details = append(r.Details, d)
}

// LifecycleResult is the outcome of a full engine invocation
type LifecycleResult struct {
	Renewals         PhaseResult `json:"renewals"`
	TrialConversions PhaseResult `json:"trial_conversions"`
	Retries          PhaseResult `json:"retries"`
	Cancellations    PhaseResult `json:"cancellations"`
	RanAt            time.Time   `json:"ran_at"`
}

// LifecycleService drives subscriptions through renewal, trial conversion,
// payment retry, and non-payment cancellation. A single subscription
// failure never aborts a phase; it lands in the phase result and the run
// moves on. Only systemic failures (storage scans) surface as errors.
type LifecycleService struct {
	subscriptionRepo subscription.Repository
	priceRepo        price.Repository
	invoiceRepo      invoice.Repository
	payments         *PaymentService
	eventBus         *publisher.EventBus
	idem             *idempotency.Generator
	clock            types.Clock
	config           *config.Configuration
	logger           *logger.Logger
}

func NewLifecycleService(
	subscriptionRepo subscription.Repository,
	priceRepo price.Repository,
	invoiceRepo invoice.Repository,
	payments *PaymentService,
	eventBus *publisher.EventBus,
	clock types.Clock,
	cfg *config.Configuration,
	log *logger.Logger,
) *LifecycleService {
	return &LifecycleService{
		subscriptionRepo: subscriptionRepo,
		priceRepo:        priceRepo,
		invoiceRepo:      invoiceRepo,
		payments:         payments,
		eventBus:         eventBus,
		idem:             idempotency.NewGenerator(),
		clock:            clock,
		config:           cfg,
		logger:           log,
	}
}

// Run executes the four lifecycle phases. Phases run concurrently and
// independently; within a phase, subscriptions are processed by a bounded
// worker pool.
func (s *LifecycleService) Run(ctx context.Context) (*LifecycleResult, error) {
	now := s.clock.Now()
	result := &LifecycleResult{RanAt: now}

	p := pool.New().WithErrors().WithContext(ctx)
	p.Go(func(ctx context.Context) error {
		r, err := s.runRenewals(ctx, now)
		if err != nil {
			return err
		}
		result.Renewals = *r
		return nil
	})
	p.Go(func(ctx context.Context) error {
		r, err := s.runTrialConversions(ctx, now)
		if err != nil {
			return err
		}
		result.TrialConversions = *r
		return nil
	})
	p.Go(func(ctx context.Context) error {
		r, err := s.runRetries(ctx, now)
		if err != nil {
			return err
		}
		result.Retries = *r
		return nil
	})
	p.Go(func(ctx context.Context) error {
		r, err := s.runCancellations(ctx, now)
		if err != nil {
			return err
		}
		result.Cancellations = *r
		return nil
	})

	if err := p.Wait(); err != nil {
		return nil, err
	}

	s.logger.Infow("lifecycle run finished",
		"renewals", result.Renewals.Processed,
		"trial_conversions", result.TrialConversions.Processed,
		"retries", result.Retries.Processed,
		"cancellations", result.Cancellations.Processed)
	return result, nil
}

// RunRenewals executes only the renewal phase; the cron runner schedules
// phases at different cadences.
func (s *LifecycleService) RunRenewals(ctx context.Context) (*PhaseResult, error) {
	return s.runRenewals(ctx, s.clock.Now())
}

// RunTrialConversions executes only the trial conversion phase
func (s *LifecycleService) RunTrialConversions(ctx context.Context) (*PhaseResult, error) {
	return s.runTrialConversions(ctx, s.clock.Now())
}

// RunRetries executes only the payment retry phase
func (s *LifecycleService) RunRetries(ctx context.Context) (*PhaseResult, error) {
	return s.runRetries(ctx, s.clock.Now())
}

// RunCancellations executes only the non-payment cancellation phase
func (s *LifecycleService) RunCancellations(ctx context.Context) (*PhaseResult, error) {
	return s.runCancellations(ctx, s.clock.Now())
}

// forEachSubscription fans the subscriptions out over a bounded worker pool
// and collects per-subscription details into a phase result.
func (s *LifecycleService) forEachSubscription(
	ctx context.Context,
	subs []*subscription.Subscription,
	process func(ctx context.Context, sub *subscription.Subscription) PhaseDetail,
) *PhaseResult {
	result := &PhaseResult{Details: []PhaseDetail{}}
	var mu sync.Mutex

	workers := s.config.Billing.WorkerPoolSize
	if workers < 1 {
		workers = 1
	}

	p := pool.New().WithMaxGoroutines(workers)
	for _, sub := range subs {
		sub := sub
		p.Go(func() {
			detail := s.safeProcess(ctx, sub, process)
			mu.Lock()
			result.record(detail)
			mu.Unlock()
		})
	}
	p.Wait()
	return result
}

func (s *LifecycleService) safeProcess(
	ctx context.Context,
	sub *subscription.Subscription,
	process func(ctx context.Context, sub *subscription.Subscription) PhaseDetail,
) (detail PhaseDetail) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Errorw("lifecycle phase panicked",
				"subscription_id", sub.ID, "panic", r)
			detail = PhaseDetail{SubscriptionID: sub.ID, Error: fmt.Sprintf("panic: %v", r)}
		}
	}()
	return process(ctx, sub)
}

// --- renewal phase ---

func (s *LifecycleService) runRenewals(ctx context.Context, now time.Time) (*PhaseResult, error) {
	subs, err := s.subscriptionRepo.ListDueForRenewal(ctx, now)
	if err != nil {
		return nil, err
	}

	eligible := make([]*subscription.Subscription, 0, len(subs))
	for _, sub := range subs {
		if subscription.DueForRenewal(sub, now) {
			eligible = append(eligible, sub)
		}
	}
	return s.forEachSubscription(ctx, eligible, func(ctx context.Context, sub *subscription.Subscription) PhaseDetail {
		return s.processRenewal(ctx, sub, now)
	}), nil
}

func (s *LifecycleService) processRenewal(ctx context.Context, sub *subscription.Subscription, now time.Time) PhaseDetail {
	pr, err := s.resolvePrice(ctx, sub)
	if err != nil {
		return s.renewalFailure(ctx, sub, now, err.Error())
	}
	amount := pr.UnitAmount * sub.Quantity

	key := s.idem.GenerateKey(idempotency.ScopeRenewal, map[string]interface{}{
		"subscription_id": sub.ID,
		"period_end":      sub.CurrentPeriodEnd.Unix(),
	})
	pay, err := s.payments.ProcessPayment(ctx, ProcessPaymentInput{
		CustomerID:     sub.CustomerID,
		SubscriptionID: sub.ID,
		Amount:         amount,
		Currency:       sub.Currency,
		Kind:           types.PaymentKindRenewal,
		Description:    fmt.Sprintf("Subscription renewal - %s", sub.PlanID),
		IdempotencyKey: key,
	})
	if err != nil {
		return s.renewalFailure(ctx, sub, now, err.Error())
	}
	if pay.PaymentStatus != types.PaymentStatusSucceeded {
		return s.renewalFailure(ctx, sub, now, failureMessage(pay.FailureMessage))
	}

	oldEnd := sub.CurrentPeriodEnd
	newEnd := types.AddInterval(oldEnd, sub.Interval, sub.IntervalCount)

	sub.SubscriptionStatus = types.SubscriptionStatusActive
	sub.CurrentPeriodStart = oldEnd
	sub.CurrentPeriodEnd = newEnd
	sub.LastRenewalAt = &now
	sub.LastRenewalError = ""
	sub.LastPaymentID = pay.ID
	if err := s.subscriptionRepo.Update(ctx, sub); err != nil {
		return PhaseDetail{SubscriptionID: sub.ID, Error: err.Error()}
	}

	if err := s.createRenewalInvoice(ctx, sub, pr, amount, oldEnd, newEnd, now); err != nil {
		s.logger.Errorw("failed to create renewal invoice",
			"subscription_id", sub.ID, "error", err)
	}

	s.emit(ctx, types.EventSubscriptionRenewed, sub, map[string]any{
		"payment_id":         pay.ID,
		"current_period_end": newEnd,
	})
	return PhaseDetail{SubscriptionID: sub.ID, Success: true, PaymentID: pay.ID}
}

// renewalFailure moves the subscription into its grace period
func (s *LifecycleService) renewalFailure(ctx context.Context, sub *subscription.Subscription, now time.Time, msg string) PhaseDetail {
	sub.SubscriptionStatus = types.SubscriptionStatusPastDue
	sub.GracePeriodStartedAt = &now
	sub.LastRenewalError = msg
	sub.RetryCount = 0
	sub.LastRetryAt = nil
	if err := s.subscriptionRepo.Update(ctx, sub); err != nil {
		return PhaseDetail{SubscriptionID: sub.ID, Error: err.Error()}
	}

	s.emit(ctx, types.EventSubscriptionRenewalFailed, sub, map[string]any{"error": msg})
	s.emit(ctx, types.EventSubscriptionEnteredGracePeriod, sub, map[string]any{
		"grace_period_days": s.config.Billing.GracePeriodDays,
	})
	return PhaseDetail{SubscriptionID: sub.ID, Error: msg}
}

// --- trial conversion phase ---

func (s *LifecycleService) runTrialConversions(ctx context.Context, now time.Time) (*PhaseResult, error) {
	cutoff := now.AddDate(0, 0, s.config.Billing.TrialConversionDays)
	subs, err := s.subscriptionRepo.ListTrialsEndingBy(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	eligible := make([]*subscription.Subscription, 0, len(subs))
	for _, sub := range subs {
		if subscription.DueForTrialConversion(sub, s.config.Billing.TrialConversionDays, now) {
			eligible = append(eligible, sub)
		}
	}
	return s.forEachSubscription(ctx, eligible, func(ctx context.Context, sub *subscription.Subscription) PhaseDetail {
		return s.processTrialConversion(ctx, sub, now)
	}), nil
}

func (s *LifecycleService) processTrialConversion(ctx context.Context, sub *subscription.Subscription, now time.Time) PhaseDetail {
	pr, err := s.resolvePrice(ctx, sub)
	if err != nil {
		return s.trialConversionFailure(ctx, sub, now, err.Error())
	}
	amount := pr.UnitAmount * sub.Quantity

	key := s.idem.GenerateKey(idempotency.ScopeTrialConversion, map[string]interface{}{
		"subscription_id": sub.ID,
		"trial_end":       sub.TrialEnd.Unix(),
	})
	pay, err := s.payments.ProcessPayment(ctx, ProcessPaymentInput{
		CustomerID:     sub.CustomerID,
		SubscriptionID: sub.ID,
		Amount:         amount,
		Currency:       sub.Currency,
		Kind:           types.PaymentKindTrialConversion,
		Description:    fmt.Sprintf("Trial conversion - %s", sub.PlanID),
		IdempotencyKey: key,
	})
	if err != nil {
		return s.trialConversionFailure(ctx, sub, now, err.Error())
	}
	if pay.PaymentStatus != types.PaymentStatusSucceeded {
		return s.trialConversionFailure(ctx, sub, now, failureMessage(pay.FailureMessage))
	}

	newEnd := types.AddInterval(now, sub.Interval, sub.IntervalCount)
	sub.SubscriptionStatus = types.SubscriptionStatusActive
	sub.CurrentPeriodStart = now
	sub.CurrentPeriodEnd = newEnd
	sub.TrialConvertedAt = &now
	sub.LastPaymentID = pay.ID
	if err := s.subscriptionRepo.Update(ctx, sub); err != nil {
		return PhaseDetail{SubscriptionID: sub.ID, Error: err.Error()}
	}

	if err := s.createRenewalInvoice(ctx, sub, pr, amount, now, newEnd, now); err != nil {
		s.logger.Errorw("failed to create trial conversion invoice",
			"subscription_id", sub.ID, "error", err)
	}

	s.emit(ctx, types.EventSubscriptionTrialConverted, sub, map[string]any{"payment_id": pay.ID})
	return PhaseDetail{SubscriptionID: sub.ID, Success: true, PaymentID: pay.ID}
}

// trialConversionFailure cancels immediately: a trial has no grace period
func (s *LifecycleService) trialConversionFailure(ctx context.Context, sub *subscription.Subscription, now time.Time, msg string) PhaseDetail {
	sub.SubscriptionStatus = types.SubscriptionStatusCanceled
	sub.CanceledAt = &now
	sub.CancelReason = cancelReasonTrialConversion
	if err := s.subscriptionRepo.Update(ctx, sub); err != nil {
		return PhaseDetail{SubscriptionID: sub.ID, Error: err.Error()}
	}

	s.emit(ctx, types.EventSubscriptionTrialConversionFailed, sub, map[string]any{"error": msg})
	return PhaseDetail{SubscriptionID: sub.ID, Error: msg}
}

// --- retry phase ---

func (s *LifecycleService) runRetries(ctx context.Context, now time.Time) (*PhaseResult, error) {
	subs, err := s.subscriptionRepo.ListPastDue(ctx)
	if err != nil {
		return nil, err
	}

	eligible := make([]*subscription.Subscription, 0, len(subs))
	for _, sub := range subs {
		if subscription.DueForRetry(sub, s.config.Billing.RetryIntervals, now) {
			eligible = append(eligible, sub)
		}
	}
	return s.forEachSubscription(ctx, eligible, func(ctx context.Context, sub *subscription.Subscription) PhaseDetail {
		return s.processRetry(ctx, sub, now)
	}), nil
}

func (s *LifecycleService) processRetry(ctx context.Context, sub *subscription.Subscription, now time.Time) PhaseDetail {
	pr, err := s.resolvePrice(ctx, sub)
	if err != nil {
		return s.retryFailure(ctx, sub, now, err.Error())
	}
	amount := pr.UnitAmount * sub.Quantity

	key := s.idem.GenerateKey(idempotency.ScopeRetry, map[string]interface{}{
		"subscription_id": sub.ID,
		"retry_count":     sub.RetryCount,
	})
	pay, err := s.payments.ProcessPayment(ctx, ProcessPaymentInput{
		CustomerID:     sub.CustomerID,
		SubscriptionID: sub.ID,
		Amount:         amount,
		Currency:       sub.Currency,
		Kind:           types.PaymentKindRetry,
		Description:    fmt.Sprintf("Payment retry - %s", sub.PlanID),
		IdempotencyKey: key,
	})
	if err != nil {
		return s.retryFailure(ctx, sub, now, err.Error())
	}
	if pay.PaymentStatus != types.PaymentStatusSucceeded {
		return s.retryFailure(ctx, sub, now, failureMessage(pay.FailureMessage))
	}

	// recover: past_due -> active, period advances by one interval
	oldEnd := sub.CurrentPeriodEnd
	newEnd := types.AddInterval(oldEnd, sub.Interval, sub.IntervalCount)
	sub.SubscriptionStatus = types.SubscriptionStatusActive
	sub.CurrentPeriodStart = oldEnd
	sub.CurrentPeriodEnd = newEnd
	sub.GracePeriodStartedAt = nil
	sub.RetryCount = 0
	sub.LastRetryAt = nil
	sub.LastRetryError = ""
	sub.LastRenewalError = ""
	sub.RecoveredAt = &now
	sub.LastPaymentID = pay.ID
	if err := s.subscriptionRepo.Update(ctx, sub); err != nil {
		return PhaseDetail{SubscriptionID: sub.ID, Error: err.Error()}
	}

	if err := s.createRenewalInvoice(ctx, sub, pr, amount, oldEnd, newEnd, now); err != nil {
		s.logger.Errorw("failed to create recovery invoice",
			"subscription_id", sub.ID, "error", err)
	}

	s.emit(ctx, types.EventSubscriptionRetrySucceeded, sub, map[string]any{
		"payment_id":   pay.ID,
		"recovered_at": now,
	})
	return PhaseDetail{SubscriptionID: sub.ID, Success: true, PaymentID: pay.ID}
}

// retryFailure advances the retry schedule; cancellation belongs to the
// cancellation phase, never here.
func (s *LifecycleService) retryFailure(ctx context.Context, sub *subscription.Subscription, now time.Time, msg string) PhaseDetail {
	sub.RetryCount++
	sub.LastRetryAt = &now
	sub.LastRetryError = msg
	if err := s.subscriptionRepo.Update(ctx, sub); err != nil {
		return PhaseDetail{SubscriptionID: sub.ID, Error: err.Error()}
	}

	intervals := s.config.Billing.RetryIntervals
	if sub.RetryCount < len(intervals) {
		s.emit(ctx, types.EventSubscriptionRetryScheduled, sub, map[string]any{
			"retry_count":         sub.RetryCount,
			"next_retry_interval": intervals[sub.RetryCount],
		})
	} else {
		s.emit(ctx, types.EventSubscriptionRetryFailed, sub, map[string]any{
			"retry_count":         sub.RetryCount,
			"max_retries_reached": true,
		})
	}
	return PhaseDetail{SubscriptionID: sub.ID, Error: msg}
}

// --- cancellation phase ---

func (s *LifecycleService) runCancellations(ctx context.Context, now time.Time) (*PhaseResult, error) {
	subs, err := s.subscriptionRepo.ListPastDue(ctx)
	if err != nil {
		return nil, err
	}

	eligible := make([]*subscription.Subscription, 0, len(subs))
	for _, sub := range subs {
		if subscription.DueForNonpaymentCancel(sub, s.config.Billing.GracePeriodDays, s.config.Billing.RetryIntervals, now) {
			eligible = append(eligible, sub)
		}
	}
	return s.forEachSubscription(ctx, eligible, func(ctx context.Context, sub *subscription.Subscription) PhaseDetail {
		return s.processCancellation(ctx, sub, now)
	}), nil
}

func (s *LifecycleService) processCancellation(ctx context.Context, sub *subscription.Subscription, now time.Time) PhaseDetail {
	sub.SubscriptionStatus = types.SubscriptionStatusCanceled
	sub.CanceledAt = &now
	sub.CancelReason = cancelReasonNonpayment
	sub.GracePeriodEndedAt = &now
	if err := s.subscriptionRepo.Update(ctx, sub); err != nil {
		return PhaseDetail{SubscriptionID: sub.ID, Error: err.Error()}
	}

	s.emit(ctx, types.EventSubscriptionCanceledNonpayment, sub, map[string]any{
		"cancel_reason": cancelReasonNonpayment,
	})
	return PhaseDetail{SubscriptionID: sub.ID, Success: true}
}

// --- shared helpers ---

// resolvePrice matches the subscription's interval against the plan's
// prices, falling back to the plan's first price.
func (s *LifecycleService) resolvePrice(ctx context.Context, sub *subscription.Subscription) (*price.Price, error) {
	prices, err := s.priceRepo.ListByPlan(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		return nil, ierr.NewError("no price found for plan").
			WithHint("Plan has no prices configured").
			WithReportableDetails(map[string]any{"plan_id": sub.PlanID}).
			Mark(ierr.ErrNotFound)
	}
	for _, p := range prices {
		if p.BillingInterval == sub.Interval && p.IntervalCount == sub.IntervalCount {
			return p, nil
		}
	}
	return prices[0], nil
}

func (s *LifecycleService) createRenewalInvoice(
	ctx context.Context,
	sub *subscription.Subscription,
	pr *price.Price,
	amount int64,
	periodStart, periodEnd, now time.Time,
) error {
	invoiceID := types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE)
	inv := &invoice.Invoice{
		ID:             invoiceID,
		CustomerID:     sub.CustomerID,
		SubscriptionID: sub.ID,
		Number:         types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_INVOICE),
		InvoiceStatus:  types.InvoiceStatusPaid,
		Currency:       sub.Currency,
		Subtotal:       amount,
		Total:          amount,
		AmountPaid:     amount,
		Lines: []*invoice.LineItem{{
			ID:          types.GenerateUUIDWithPrefix(types.UUID_PREFIX_INVOICE_LINE_ITEM),
			InvoiceID:   invoiceID,
			Description: fmt.Sprintf("Subscription renewal - %s", sub.PlanID),
			Quantity:    sub.Quantity,
			UnitAmount:  pr.UnitAmount,
			Amount:      amount,
			PriceID:     pr.ID,
			PeriodStart: &periodStart,
			PeriodEnd:   &periodEnd,
		}},
		PaidAt:      &now,
		PeriodStart: &periodStart,
		PeriodEnd:   &periodEnd,
		BaseModel:   types.GetDefaultBaseModel(ctx, s.config.Billing.Livemode),
	}
	if err := inv.Validate(); err != nil {
		return err
	}
	return s.invoiceRepo.Create(ctx, inv)
}

// emit publishes after the storage write so subscribers never observe state
// that was rolled back.
func (s *LifecycleService) emit(ctx context.Context, eventType string, sub *subscription.Subscription, data map[string]any) {
	s.eventBus.Emit(ctx, &types.LifecycleEvent{
		ID:             types.GenerateUUID(),
		Type:           eventType,
		SubscriptionID: sub.ID,
		CustomerID:     sub.CustomerID,
		Data:           mustMarshal(data),
		Timestamp:      s.clock.Now(),
	})
}

func failureMessage(msg string) string {
	if msg == "" {
		return "payment failed"
	}
	return msg
}
