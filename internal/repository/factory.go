package repository

import (
	"github.com/qazuor/qzpay-sub003/internal/config"
	"github.com/qazuor/qzpay-sub003/internal/domain/addon"
	"github.com/qazuor/qzpay-sub003/internal/domain/auditlog"
	"github.com/qazuor/qzpay-sub003/internal/domain/customer"
	"github.com/qazuor/qzpay-sub003/internal/domain/discount"
	"github.com/qazuor/qzpay-sub003/internal/domain/entitlement"
	"github.com/qazuor/qzpay-sub003/internal/domain/invoice"
	"github.com/qazuor/qzpay-sub003/internal/domain/job"
	"github.com/qazuor/qzpay-sub003/internal/domain/limit"
	"github.com/qazuor/qzpay-sub003/internal/domain/payment"
	"github.com/qazuor/qzpay-sub003/internal/domain/paymentmethod"
	"github.com/qazuor/qzpay-sub003/internal/domain/plan"
	"github.com/qazuor/qzpay-sub003/internal/domain/price"
	"github.com/qazuor/qzpay-sub003/internal/domain/promocode"
	"github.com/qazuor/qzpay-sub003/internal/domain/subscription"
	"github.com/qazuor/qzpay-sub003/internal/domain/usage"
	"github.com/qazuor/qzpay-sub003/internal/domain/vendor"
	"github.com/qazuor/qzpay-sub003/internal/domain/webhookevent"
	"github.com/qazuor/qzpay-sub003/internal/logger"
	pgclient "github.com/qazuor/qzpay-sub003/internal/postgres"
	pgrepo "github.com/qazuor/qzpay-sub003/internal/repository/postgres"
	"github.com/qazuor/qzpay-sub003/internal/testutil"
)

// Repositories bundles every store the engine needs. The mutating hot
// path, subscriptions and payments, is postgres-backed when a database is
// configured; the remaining entities run on the embedded in-memory stores
// until a host supplies its own implementations.
type Repositories struct {
	Customer      customer.Repository
	Plan          plan.Repository
	Price         price.Repository
	Subscription  subscription.Repository
	Payment       payment.Repository
	PaymentMethod paymentmethod.Repository
	Invoice       invoice.Repository
	PromoCode     promocode.Repository
	Discount      discount.Repository
	Entitlement   entitlement.Repository
	Limit         limit.Repository
	Usage         usage.Repository
	Vendor        vendor.Repository
	AddOn         addon.Repository
	Job           job.Repository
	WebhookEvent  webhookevent.Repository
	AuditLog      auditlog.Repository
}

// New builds the repository set for the configured storage
func New(cfg *config.Configuration, log *logger.Logger) (*Repositories, error) {
	repos := &Repositories{
		Customer:      testutil.NewInMemoryCustomerStore(),
		Plan:          testutil.NewInMemoryPlanStore(),
		Price:         testutil.NewInMemoryPriceStore(),
		Subscription:  testutil.NewInMemorySubscriptionStore(),
		Payment:       testutil.NewInMemoryPaymentStore(),
		PaymentMethod: testutil.NewInMemoryPaymentMethodStore(),
		Invoice:       testutil.NewInMemoryInvoiceStore(),
		PromoCode:     testutil.NewInMemoryPromoCodeStore(),
		Discount:      testutil.NewInMemoryDiscountStore(),
		Entitlement:   testutil.NewInMemoryEntitlementStore(),
		Limit:         testutil.NewInMemoryLimitStore(),
		Usage:         testutil.NewInMemoryUsageStore(),
		Vendor:        testutil.NewInMemoryVendorStore(),
		AddOn:         testutil.NewInMemoryAddOnStore(),
		Job:           testutil.NewInMemoryJobStore(),
		WebhookEvent:  testutil.NewInMemoryWebhookEventStore(),
		AuditLog:      testutil.NewInMemoryAuditLogStore(),
	}

	if cfg.Postgres.Host != "" {
		client, err := pgclient.NewClient(cfg, log)
		if err != nil {
			return nil, err
		}
		repos.Subscription = pgrepo.NewSubscriptionRepository(client, log)
		repos.Payment = pgrepo.NewPaymentRepository(client, log)
	} else {
		log.Warn("postgres not configured, running on in-memory storage")
	}
	return repos, nil
}
