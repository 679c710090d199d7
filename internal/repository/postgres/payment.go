package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/lib/pq"

	"github.com/qazuor/qzpay-sub003/internal/domain/payment"
	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/logger"
	"github.com/qazuor/qzpay-sub003/internal/postgres"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

const paymentColumns = `
	id, customer_id, subscription_id, amount, currency, base_amount,
	base_currency, exchange_rate, payment_status, provider,
	provider_payment_id, payment_method_id, refunded_amount, failure_code,
	failure_message, idempotency_key, succeeded_at, metadata, version,
	status, livemode, created_at, updated_at, deleted_at, created_by,
	updated_by`

const refundColumns = `
	id, payment_id, amount, currency, refund_status, reason,
	provider_refund_id, status, livemode, created_at, updated_at,
	deleted_at, created_by, updated_by`

// PaymentRepository is the postgres-backed payment and refund store
type PaymentRepository struct {
	client *postgres.Client
	logger *logger.Logger
}

func NewPaymentRepository(client *postgres.Client, log *logger.Logger) *PaymentRepository {
	return &PaymentRepository{client: client, logger: log}
}

func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	query := `INSERT INTO payments (` + paymentColumns + `) VALUES (
		:id, :customer_id, :subscription_id, :amount, :currency, :base_amount,
		:base_currency, :exchange_rate, :payment_status, :provider,
		:provider_payment_id, :payment_method_id, :refunded_amount, :failure_code,
		:failure_message, :idempotency_key, :succeeded_at, :metadata, :version,
		:status, :livemode, :created_at, :updated_at, :deleted_at, :created_by,
		:updated_by)`

	if _, err := sqlxNamedExec(ctx, r.client, query, p); err != nil {
		return wrapWriteErr(err, "failed to insert payment")
	}
	return nil
}

func (r *PaymentRepository) Get(ctx context.Context, id string) (*payment.Payment, error) {
	var p payment.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE id = $1 AND deleted_at IS NULL`

	err := r.client.Querier(ctx).GetContext(ctx, &p, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("payment not found").
				WithHint("Payment not found").
				WithReportableDetails(map[string]any{"payment_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, wrapReadErr(err, "failed to load payment")
	}
	return &p, nil
}

func (r *PaymentRepository) GetByProviderPaymentID(ctx context.Context, provider types.ProviderKind, providerPaymentID string) (*payment.Payment, error) {
	var p payment.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE provider = $1 AND provider_payment_id = $2 AND deleted_at IS NULL`

	err := r.client.Querier(ctx).GetContext(ctx, &p, query, provider, providerPaymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("payment not found").
				WithHint("Payment not found").
				WithReportableDetails(map[string]any{
					"provider":            provider,
					"provider_payment_id": providerPaymentID,
				}).
				Mark(ierr.ErrNotFound)
		}
		return nil, wrapReadErr(err, "failed to load payment by provider id")
	}
	return &p, nil
}

func (r *PaymentRepository) GetByIdempotencyKey(ctx context.Context, key string) (*payment.Payment, error) {
	var p payment.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE idempotency_key = $1 AND deleted_at IS NULL
		ORDER BY created_at ASC LIMIT 1`

	err := r.client.Querier(ctx).GetContext(ctx, &p, query, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("payment not found").
				WithHint("No payment with this idempotency key").
				Mark(ierr.ErrNotFound)
		}
		return nil, wrapReadErr(err, "failed to load payment by idempotency key")
	}
	return &p, nil
}

func (r *PaymentRepository) List(ctx context.Context, filter *payment.Filter) ([]*payment.Payment, error) {
	query, args := r.buildListQuery(`SELECT `+paymentColumns+` FROM payments WHERE deleted_at IS NULL`, filter)
	query += ` ORDER BY created_at DESC`
	query, args = paginate(query, args, filter)

	var payments []*payment.Payment
	if err := selectList(ctx, r.client, &payments, query, args...); err != nil {
		return nil, wrapReadErr(err, "failed to list payments")
	}
	return payments, nil
}

func (r *PaymentRepository) Count(ctx context.Context, filter *payment.Filter) (int, error) {
	query, args := r.buildListQuery(`SELECT COUNT(*) FROM payments WHERE deleted_at IS NULL`, filter)

	var count int
	if err := r.client.Querier(ctx).GetContext(ctx, &count, query, args...); err != nil {
		return 0, wrapReadErr(err, "failed to count payments")
	}
	return count, nil
}

func (r *PaymentRepository) buildListQuery(base string, filter *payment.Filter) (string, []any) {
	query := base
	args := []any{}

	if filter.CustomerID != "" {
		args = append(args, filter.CustomerID)
		query += ` AND customer_id = ` + placeholder(len(args))
	}
	if filter.SubscriptionID != "" {
		args = append(args, filter.SubscriptionID)
		query += ` AND subscription_id = ` + placeholder(len(args))
	}
	if len(filter.PaymentStatus) > 0 {
		statuses := make([]string, 0, len(filter.PaymentStatus))
		for _, s := range filter.PaymentStatus {
			statuses = append(statuses, string(s))
		}
		args = append(args, pq.Array(statuses))
		query += ` AND payment_status = ANY(` + placeholder(len(args)) + `)`
	}
	if filter.Currency != "" {
		args = append(args, filter.Currency)
		query += ` AND UPPER(currency) = UPPER(` + placeholder(len(args)) + `)`
	}
	if filter.StartTime != nil {
		args = append(args, *filter.StartTime)
		query += ` AND created_at >= ` + placeholder(len(args))
	}
	if filter.EndTime != nil {
		args = append(args, *filter.EndTime)
		query += ` AND created_at < ` + placeholder(len(args))
	}
	return query, args
}

func (r *PaymentRepository) ListInPeriod(ctx context.Context, start, end time.Time) ([]*payment.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE created_at >= $1 AND created_at < $2 AND deleted_at IS NULL
		ORDER BY created_at ASC`

	var payments []*payment.Payment
	if err := selectList(ctx, r.client, &payments, query, start, end); err != nil {
		return nil, wrapReadErr(err, "failed to list payments in period")
	}
	return payments, nil
}

// Update is version guarded like the subscription store
func (r *PaymentRepository) Update(ctx context.Context, p *payment.Payment) error {
	readVersion := p.Version
	p.Version++
	p.UpdatedAt = time.Now().UTC()

	query := `UPDATE payments SET
		payment_status = :payment_status,
		provider_payment_id = :provider_payment_id,
		refunded_amount = :refunded_amount,
		failure_code = :failure_code,
		failure_message = :failure_message,
		succeeded_at = :succeeded_at,
		metadata = :metadata,
		version = :version,
		updated_at = :updated_at,
		updated_by = :updated_by
		WHERE id = :id AND version = :read_version AND deleted_at IS NULL`

	result, err := sqlxNamedExec(ctx, r.client, query, paymentUpdateRow{Payment: p, ReadVersion: readVersion})
	if err != nil {
		p.Version = readVersion
		return wrapWriteErr(err, "failed to update payment")
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		p.Version = readVersion
		return versionConflict("payment", p.ID, readVersion)
	}
	return nil
}

func (r *PaymentRepository) CreateRefund(ctx context.Context, refund *payment.Refund) error {
	query := `INSERT INTO refunds (` + refundColumns + `) VALUES (
		:id, :payment_id, :amount, :currency, :refund_status, :reason,
		:provider_refund_id, :status, :livemode, :created_at, :updated_at,
		:deleted_at, :created_by, :updated_by)`

	if _, err := sqlxNamedExec(ctx, r.client, query, refund); err != nil {
		return wrapWriteErr(err, "failed to insert refund")
	}
	return nil
}

func (r *PaymentRepository) GetRefund(ctx context.Context, id string) (*payment.Refund, error) {
	var refund payment.Refund
	query := `SELECT ` + refundColumns + ` FROM refunds
		WHERE id = $1 AND deleted_at IS NULL`

	err := r.client.Querier(ctx).GetContext(ctx, &refund, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ierr.NewError("refund not found").
				WithHint("Refund not found").
				WithReportableDetails(map[string]any{"refund_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, wrapReadErr(err, "failed to load refund")
	}
	return &refund, nil
}

func (r *PaymentRepository) ListRefundsByPayment(ctx context.Context, paymentID string) ([]*payment.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds
		WHERE payment_id = $1 AND deleted_at IS NULL
		ORDER BY created_at ASC`

	var refunds []*payment.Refund
	if err := selectList(ctx, r.client, &refunds, query, paymentID); err != nil {
		return nil, wrapReadErr(err, "failed to list refunds")
	}
	return refunds, nil
}

func (r *PaymentRepository) UpdateRefund(ctx context.Context, refund *payment.Refund) error {
	refund.UpdatedAt = time.Now().UTC()
	query := `UPDATE refunds SET
		refund_status = :refund_status,
		provider_refund_id = :provider_refund_id,
		updated_at = :updated_at,
		updated_by = :updated_by
		WHERE id = :id AND deleted_at IS NULL`

	if _, err := sqlxNamedExec(ctx, r.client, query, refund); err != nil {
		return wrapWriteErr(err, "failed to update refund")
	}
	return nil
}

type paymentUpdateRow struct {
	*payment.Payment
	ReadVersion int64 `db:"read_version"`
}

var _ payment.Repository = (*PaymentRepository)(nil)
