package cron

import (
	"context"
	"time"

	"github.com/robfig/cron"

	"github.com/qazuor/qzpay-sub003/internal/logger"
	"github.com/qazuor/qzpay-sub003/internal/service"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// jobRetention is how long terminal jobs are kept before cleanup
const jobRetention = 90 * 24 * time.Hour

// expiringCardWindowDays is how far ahead the expiry scan looks
const expiringCardWindowDays = 30

// Runner owns the recurring billing schedules: renewals hourly, payment
// retries every fifteen minutes, invoice reminders and card-expiry scans
// daily, vendor payouts weekly, and job cleanup monthly.
type Runner struct {
	cron    *cron.Cron
	billing *service.Billing
	clock   types.Clock
	logger  *logger.Logger
}

func NewRunner(billing *service.Billing, clock types.Clock, log *logger.Logger) *Runner {
	return &Runner{
		cron:    cron.New(),
		billing: billing,
		clock:   clock,
		logger:  log,
	}
}

// Start registers the default schedules and launches the scheduler
func (r *Runner) Start() error {
	schedules := []struct {
		spec string
		name string
		fn   func(ctx context.Context) error
	}{
		{ScheduleEveryHour, "renewals", r.runRenewals},
		{ScheduleEveryHour, "trial_conversions", r.runTrialConversions},
		{ScheduleEvery15Minutes, "payment_retries", r.runRetries},
		{ScheduleEveryHour, "nonpayment_cancellations", r.runCancellations},
		{ScheduleDaily6AM, "invoice_reminders", r.runInvoiceReminders},
		{ScheduleDailyMidnight, "card_expiry_scan", r.runCardExpiryScan},
		{ScheduleWeeklyMonday, "vendor_payouts", r.runVendorPayouts},
		{ScheduleMonthlyFirst, "job_cleanup", r.runJobCleanup},
	}

	for _, s := range schedules {
		s := s
		if err := r.cron.AddFunc(s.spec, func() { r.invoke(s.name, s.fn) }); err != nil {
			return err
		}
	}

	r.cron.Start()
	r.logger.Infow("cron runner started", "schedules", len(schedules))
	return nil
}

// Stop halts the scheduler; running invocations finish on their own
func (r *Runner) Stop() {
	r.cron.Stop()
	r.logger.Info("cron runner stopped")
}

func (r *Runner) invoke(name string, fn func(ctx context.Context) error) {
	ctx := context.WithValue(context.Background(), types.CtxActorID, types.DefaultActorID)
	start := time.Now()
	if err := fn(ctx); err != nil {
		r.logger.Errorw("scheduled task failed", "task", name, "error", err)
		return
	}
	r.logger.Debugw("scheduled task finished", "task", name, "elapsed", time.Since(start))
}

func (r *Runner) runRenewals(ctx context.Context) error {
	_, err := r.billing.Lifecycle.RunRenewals(ctx)
	return err
}

func (r *Runner) runTrialConversions(ctx context.Context) error {
	_, err := r.billing.Lifecycle.RunTrialConversions(ctx)
	return err
}

func (r *Runner) runRetries(ctx context.Context) error {
	_, err := r.billing.Lifecycle.RunRetries(ctx)
	return err
}

func (r *Runner) runCancellations(ctx context.Context) error {
	_, err := r.billing.Lifecycle.RunCancellations(ctx)
	return err
}

func (r *Runner) runInvoiceReminders(ctx context.Context) error {
	_, err := r.billing.Invoices.RemindDue(ctx)
	return err
}

func (r *Runner) runCardExpiryScan(ctx context.Context) error {
	_, err := r.billing.PaymentMethods.CheckExpiring(ctx, expiringCardWindowDays)
	return err
}

func (r *Runner) runVendorPayouts(ctx context.Context) error {
	_, err := r.billing.Vendors.ProcessScheduledPayouts(ctx)
	return err
}

func (r *Runner) runJobCleanup(ctx context.Context) error {
	_, err := r.billing.Jobs.Cleanup(ctx, jobRetention)
	return err
}

// IsLastDayOfMonth guards handlers registered on the monthly-last
// schedule, which fires on every day from the 28th onward.
func IsLastDayOfMonth(t time.Time) bool {
	return t.AddDate(0, 0, 1).Day() == 1
}
