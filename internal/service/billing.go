package service

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
	"github.com/qazuor/qzpay-sub003/internal/logger"
	"github.com/qazuor/qzpay-sub003/internal/provider"
	"github.com/qazuor/qzpay-sub003/internal/publisher"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// ServiceParams collects everything the billing services depend on.
// Repositories are interfaces, so hosts can bring their own storage.
type ServiceParams struct {
	Config   *config.Configuration
	Logger   *logger.Logger
	Clock    types.Clock
	EventBus *publisher.EventBus
	Registry *provider.Registry

	CustomerRepo      customer.Repository
	PlanRepo          plan.Repository
	PriceRepo         price.Repository
	SubscriptionRepo  subscription.Repository
	PaymentRepo       payment.Repository
	PaymentMethodRepo paymentmethod.Repository
	InvoiceRepo       invoice.Repository
	PromoCodeRepo     promocode.Repository
	DiscountRepo      discount.Repository
	EntitlementRepo   entitlement.Repository
	LimitRepo         limit.Repository
	UsageRepo         usage.Repository
	VendorRepo        vendor.Repository
	AddOnRepo         addon.Repository
	JobRepo           job.Repository
	AuditLogRepo      auditlog.Repository
}

// Billing is the engine's façade: one constructor wires every service
// against shared infrastructure, and hosts reach features through the
// named groups.
type Billing struct {
	Customers      *CustomerService
	Plans          *PlanService
	Subscriptions  *SubscriptionService
	PaymentMethods *PaymentMethodService
	Payments       *PaymentService
	Invoices       *InvoiceService
	PromoCodes     *PromoCodeService
	Discounts      *DiscountEngineService
	Pricing        *VolumePricingService
	Entitlements   *EntitlementService
	Limits         *LimitService
	Vendors        *VendorService
	AddOns         *AddOnService
	Jobs           *JobService
	Metrics        *MetricsService
	Lifecycle      *LifecycleService
	Health         *HealthService
	Audit          *AuditService

	eventBus  *publisher.EventBus
	auditSubs []publisher.Unsubscribe
}

// NewBilling wires the full engine from its dependencies
func NewBilling(params ServiceParams) *Billing {
	cfg := params.Config
	log := params.Logger
	clock := params.Clock
	livemode := cfg.Billing.Livemode

	customers := NewCustomerService(params.CustomerRepo, params.Registry, params.EventBus, clock, livemode, log)
	entitlements := NewEntitlementService(params.EntitlementRepo, clock, log)
	limits := NewLimitService(params.LimitRepo, params.UsageRepo, clock, log)
	payments := NewPaymentService(
		params.PaymentRepo, params.CustomerRepo, params.PaymentMethodRepo,
		params.Registry, params.EventBus, clock, livemode, log,
	)

	b := &Billing{
		Customers: customers,
		Plans:     NewPlanService(params.PlanRepo, params.PriceRepo, log),
		Subscriptions: NewSubscriptionService(
			params.SubscriptionRepo, params.PlanRepo, params.PriceRepo,
			entitlements, limits, params.EventBus, clock, livemode, log,
		),
		PaymentMethods: NewPaymentMethodService(
			params.PaymentMethodRepo, customers, params.Registry,
			params.EventBus, clock, livemode, log,
		),
		Payments:     payments,
		Invoices:     NewInvoiceService(params.InvoiceRepo, payments, params.EventBus, clock, livemode, log),
		PromoCodes:   NewPromoCodeService(params.PromoCodeRepo, params.DiscountRepo, log),
		Discounts:    NewDiscountEngineService(params.PromoCodeRepo, params.DiscountRepo, clock, log),
		Pricing:      NewVolumePricingService(),
		Entitlements: entitlements,
		Limits:       limits,
		Vendors:      NewVendorService(params.VendorRepo, params.Registry, clock, livemode, log),
		AddOns: NewAddOnService(
			params.AddOnRepo, params.SubscriptionRepo,
			entitlements, limits, clock, livemode, log,
		),
		Jobs:    NewJobService(params.JobRepo, clock, log),
		Metrics: NewMetricsService(params.SubscriptionRepo, params.PaymentRepo, params.PriceRepo, log),
		Lifecycle: NewLifecycleService(
			params.SubscriptionRepo, params.PriceRepo, params.InvoiceRepo,
			payments, params.EventBus, clock, cfg, log,
		),
		Health: NewHealthService(params.CustomerRepo, params.Registry, clock, log),
		Audit:  NewAuditService(params.AuditLogRepo, clock, log),

		eventBus: params.EventBus,
	}
	b.auditSubs = b.Audit.Attach(params.EventBus)
	return b
}

// On subscribes a handler to an event type; the returned closure removes
// the subscription.
func (b *Billing) On(eventType string, handler publisher.EventHandler) publisher.Unsubscribe {
	return b.eventBus.On(eventType, handler)
}

// Once subscribes a handler that fires at most once
func (b *Billing) Once(eventType string, handler publisher.EventHandler) publisher.Unsubscribe {
	return b.eventBus.Once(eventType, handler)
}

// Close releases the event bus and all subscriptions
func (b *Billing) Close() error {
	for _, unsub := range b.auditSubs {
		unsub()
	}
	b.auditSubs = nil
	return b.eventBus.Close()
}
