package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lib/pq"

	"github.com/qazuor/qzpay-sub003/internal/domain/subscription"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/logger"
	"github.com/qazuor/qzpay-sub003/internal/postgres"
)

const subscriptionColumns = `
	id, customer_id, plan_id, subscription_status, currency, interval,
	interval_count, quantity, current_period_start, current_period_end,
	trial_start, trial_end, cancel_at, canceled_at, cancel_at_period_end,
	cancel_reason, grace_period_started_at, grace_period_ended_at,
	retry_count, last_retry_at, last_retry_error, last_renewal_at,
	last_renewal_error, last_payment_id, recovered_at, trial_converted_at,
	provider_ids, metadata, version, status, livemode, created_at,
	updated_at, deleted_at, created_by, updated_by`

// SubscriptionRepository is the postgres-backed subscription store.
// Updates are version guarded; a write that lost the race fails with a
// version conflict instead of silently overwriting.
type SubscriptionRepository struct {
	client *postgres.Client
	logger *logger.Logger
}

func NewSubscriptionRepository(client *postgres.Client, log *logger.Logger) *SubscriptionRepository {
	return &SubscriptionRepository{client: client, logger: log}
}

func (r *SubscriptionRepository) Create(ctx context.Context, sub *subscription.Subscription) error {
	query := `INSERT INTO subscriptions (` + subscriptionColumns + `) VALUES (
		:id, :customer_id, :plan_id, :subscription_status, :currency, :interval,
		:interval_count, :quantity, :current_period_start, :current_period_end,
		:trial_start, :trial_end, :cancel_at, :canceled_at, :cancel_at_period_end,
		:cancel_reason, :grace_period_started_at, :grace_period_ended_at,
		:retry_count, :last_retry_at, :last_retry_error, :last_renewal_at,
		:last_renewal_error, :last_payment_id, :recovered_at, :trial_converted_at,
		:provider_ids, :metadata, :version, :status, :livemode, :created_at,
		:updated_at, :deleted_at, :created_by, :updated_by)`

	if _, err := sqlxNamedExec(ctx, r.client, query, sub); err != nil {
		return wrapWriteErr(err, "failed to insert subscription")
	}
	return nil
}

func (r *SubscriptionRepository) Get(ctx context.Context, id string) (*subscription.Subscription, error) {
	var sub subscription.Subscription
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE id = $1 AND deleted_at IS NULL`

	err := r.client.Querier(ctx).GetContext(ctx, &sub, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("subscription not found").
				WithHint("Subscription not found").
				WithReportableDetails(map[string]any{"subscription_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, wrapReadErr(err, "failed to load subscription")
	}
	return &sub, nil
}

func (r *SubscriptionRepository) List(ctx context.Context, filter *subscription.Filter) ([]*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE deleted_at IS NULL`
	args := []any{}

	if filter.CustomerID != "" {
		args = append(args, filter.CustomerID)
		query += ` AND customer_id = ` + placeholder(len(args))
	}
	if len(filter.SubscriptionStatus) > 0 {
		statuses := make([]string, 0, len(filter.SubscriptionStatus))
		for _, s := range filter.SubscriptionStatus {
			statuses = append(statuses, string(s))
		}
		args = append(args, pq.Array(statuses))
		query += ` AND subscription_status = ANY(` + placeholder(len(args)) + `)`
	}
	if filter.PlanID != "" {
		args = append(args, filter.PlanID)
		query += ` AND plan_id = ` + placeholder(len(args))
	}
	query += ` ORDER BY created_at DESC`
	query, args = paginate(query, args, filter)

	var subs []*subscription.Subscription
	if err := selectList(ctx, r.client, &subs, query, args...); err != nil {
		return nil, wrapReadErr(err, "failed to list subscriptions")
	}
	return subs, nil
}

func (r *SubscriptionRepository) Count(ctx context.Context, filter *subscription.Filter) (int, error) {
	query := `SELECT COUNT(*) FROM subscriptions WHERE deleted_at IS NULL`
	args := []any{}
	if filter.CustomerID != "" {
		args = append(args, filter.CustomerID)
		query += ` AND customer_id = ` + placeholder(len(args))
	}

	var count int
	if err := r.client.Querier(ctx).GetContext(ctx, &count, query, args...); err != nil {
		return 0, wrapReadErr(err, "failed to count subscriptions")
	}
	return count, nil
}

// Update writes the row the caller read. The WHERE clause carries the read
// version, so concurrent writers conflict instead of clobbering.
func (r *SubscriptionRepository) Update(ctx context.Context, sub *subscription.Subscription) error {
	readVersion := sub.Version
	sub.Version++
	sub.UpdatedAt = time.Now().UTC()

	query := `UPDATE subscriptions SET
		subscription_status = :subscription_status,
		currency = :currency,
		interval = :interval,
		interval_count = :interval_count,
		quantity = :quantity,
		current_period_start = :current_period_start,
		current_period_end = :current_period_end,
		trial_start = :trial_start,
		trial_end = :trial_end,
		cancel_at = :cancel_at,
		canceled_at = :canceled_at,
		cancel_at_period_end = :cancel_at_period_end,
		cancel_reason = :cancel_reason,
		grace_period_started_at = :grace_period_started_at,
		grace_period_ended_at = :grace_period_ended_at,
		retry_count = :retry_count,
		last_retry_at = :last_retry_at,
		last_retry_error = :last_retry_error,
		last_renewal_at = :last_renewal_at,
		last_renewal_error = :last_renewal_error,
		last_payment_id = :last_payment_id,
		recovered_at = :recovered_at,
		trial_converted_at = :trial_converted_at,
		provider_ids = :provider_ids,
		metadata = :metadata,
		version = :version,
		updated_at = :updated_at,
		updated_by = :updated_by
		WHERE id = :id AND version = :read_version AND deleted_at IS NULL`

	result, err := sqlxNamedExec(ctx, r.client, query, withReadVersion(sub, readVersion))
	if err != nil {
		sub.Version = readVersion
		return wrapWriteErr(err, "failed to update subscription")
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		sub.Version = readVersion
		return versionConflict("subscription", sub.ID, readVersion)
	}
	return nil
}

func (r *SubscriptionRepository) Delete(ctx context.Context, id string) error {
	query := `UPDATE subscriptions SET deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted_at IS NULL`
	result, err := r.client.Querier(ctx).ExecContext(ctx, query, id)
	if err != nil {
		return wrapWriteErr(err, "failed to delete subscription")
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ierr.NewError("subscription not found").
			WithHint("Subscription not found").
			WithReportableDetails(map[string]any{"subscription_id": id}).
			Mark(ierr.ErrNotFound)
	}
	return nil
}

func (r *SubscriptionRepository) ListByCustomer(ctx context.Context, customerID string) ([]*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE customer_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC`

	var subs []*subscription.Subscription
	if err := selectList(ctx, r.client, &subs, query, customerID); err != nil {
		return nil, wrapReadErr(err, "failed to list customer subscriptions")
	}
	return subs, nil
}

func (r *SubscriptionRepository) GetActiveByCustomer(ctx context.Context, customerID string) (*subscription.Subscription, error) {
	var sub subscription.Subscription
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE customer_id = $1
		AND subscription_status = 'active'
		AND deleted_at IS NULL
		ORDER BY created_at DESC LIMIT 1`

	err := r.client.Querier(ctx).GetContext(ctx, &sub, query, customerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("no active subscription").
				WithHint("The customer has no active subscription").
				WithReportableDetails(map[string]any{"customer_id": customerID}).
				Mark(ierr.ErrNotFound)
		}
		return nil, wrapReadErr(err, "failed to load active subscription")
	}
	return &sub, nil
}

func (r *SubscriptionRepository) ListDueForRenewal(ctx context.Context, now time.Time) ([]*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE subscription_status = 'active'
		AND current_period_end <= $1
		AND deleted_at IS NULL
		ORDER BY current_period_end ASC`

	var subs []*subscription.Subscription
	if err := selectList(ctx, r.client, &subs, query, now); err != nil {
		return nil, wrapReadErr(err, "failed to list renewals due")
	}
	return subs, nil
}

func (r *SubscriptionRepository) ListTrialsEndingBy(ctx context.Context, cutoff time.Time) ([]*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE subscription_status = 'trialing'
		AND trial_end IS NOT NULL AND trial_end <= $1
		AND deleted_at IS NULL
		ORDER BY trial_end ASC`

	var subs []*subscription.Subscription
	if err := selectList(ctx, r.client, &subs, query, cutoff); err != nil {
		return nil, wrapReadErr(err, "failed to list ending trials")
	}
	return subs, nil
}

func (r *SubscriptionRepository) ListPastDue(ctx context.Context) ([]*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions
		WHERE subscription_status = 'past_due'
		AND deleted_at IS NULL
		ORDER BY grace_period_started_at ASC`

	var subs []*subscription.Subscription
	if err := selectList(ctx, r.client, &subs, query); err != nil {
		return nil, wrapReadErr(err, "failed to list past due subscriptions")
	}
	return subs, nil
}

type subscriptionUpdateRow struct {
	*subscription.Subscription
	ReadVersion int64 `db:"read_version"`
}

func withReadVersion(sub *subscription.Subscription, readVersion int64) subscriptionUpdateRow {
	return subscriptionUpdateRow{Subscription: sub, ReadVersion: readVersion}
}

func versionConflict(entity, id string, version int64) error {
	return ierr.NewError(entity + " was modified concurrently").
		WithHint("The record changed since it was read; reload and retry").
		WithReportableDetails(map[string]any{
			"entity":  entity,
			"id":      id,
			"version": version,
		}).
		Mark(ierr.ErrVersionConflict)
}

var _ subscription.Repository = (*SubscriptionRepository)(nil)
