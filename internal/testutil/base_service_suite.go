package testutil

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

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
	"github.com/qazuor/qzpay-sub003/internal/provider"
	"github.com/qazuor/qzpay-sub003/internal/publisher"
	"github.com/qazuor/qzpay-sub003/internal/pubsub/memory"
	"github.com/qazuor/qzpay-sub003/internal/types"
)

// Stores holds all the repository interfaces for testing
type Stores struct {
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
	WebhookEventRepo  webhookevent.Repository
	AuditLogRepo      auditlog.Repository
}

// BaseServiceTestSuite provides common functionality for all service test suites
type BaseServiceTestSuite struct {
	suite.Suite
	ctx      context.Context
	stores   Stores
	eventBus *publisher.EventBus
	mockProv *provider.MockProvider
	registry *provider.Registry
	clock    *MockClock
	logger   *logger.Logger
	config   *config.Configuration
	now      time.Time
}

// SetupSuite is called once before running the tests in the suite
func (s *BaseServiceTestSuite) SetupSuite() {
	s.config = &config.Configuration{
		Logging: logger.Config{Level: "info"},
		Billing: config.BillingConfig{
			GracePeriodDays:     7,
			RetryIntervals:      []int{1, 3, 5},
			TrialConversionDays: 0,
			DefaultCurrency:     "USD",
			Livemode:            false,
			WorkerPoolSize:      4,
		},
		Webhook: config.WebhookConfig{
			TimestampToleranceSeconds: 300,
			MaxDeliveryAttempts:       3,
		},
	}

	var err error
	s.logger, err = logger.NewLogger(s.config.Logging)
	if err != nil {
		s.T().Fatalf("failed to create logger: %v", err)
	}
}

// SetupTest is called before each test
func (s *BaseServiceTestSuite) SetupTest() {
	s.setupContext()
	s.setupStores()
	s.now = time.Now().UTC()
	s.clock = NewMockClock(s.now)
}

// TearDownTest is called after each test
func (s *BaseServiceTestSuite) TearDownTest() {
	s.clearStores()
	if s.eventBus != nil {
		_ = s.eventBus.Close()
		s.eventBus = nil
	}
}

func (s *BaseServiceTestSuite) setupContext() {
	s.ctx = context.Background()
	s.ctx = context.WithValue(s.ctx, types.CtxActorID, types.DefaultActorID)
	s.ctx = context.WithValue(s.ctx, types.CtxRequestID, types.GenerateUUID())
}

func (s *BaseServiceTestSuite) setupStores() {
	s.stores = Stores{
		CustomerRepo:      NewInMemoryCustomerStore(),
		PlanRepo:          NewInMemoryPlanStore(),
		PriceRepo:         NewInMemoryPriceStore(),
		SubscriptionRepo:  NewInMemorySubscriptionStore(),
		PaymentRepo:       NewInMemoryPaymentStore(),
		PaymentMethodRepo: NewInMemoryPaymentMethodStore(),
		InvoiceRepo:       NewInMemoryInvoiceStore(),
		PromoCodeRepo:     NewInMemoryPromoCodeStore(),
		DiscountRepo:      NewInMemoryDiscountStore(),
		EntitlementRepo:   NewInMemoryEntitlementStore(),
		LimitRepo:         NewInMemoryLimitStore(),
		UsageRepo:         NewInMemoryUsageStore(),
		VendorRepo:        NewInMemoryVendorStore(),
		AddOnRepo:         NewInMemoryAddOnStore(),
		JobRepo:           NewInMemoryJobStore(),
		WebhookEventRepo:  NewInMemoryWebhookEventStore(),
		AuditLogRepo:      NewInMemoryAuditLogStore(),
	}

	s.mockProv = provider.NewMockProvider()
	s.registry = provider.NewRegistry()
	s.registry.Register(s.mockProv)

	bus, err := publisher.NewEventBus(memory.NewPubSub(s.logger), s.logger)
	if err != nil {
		s.T().Fatalf("failed to create event bus: %v", err)
	}
	s.eventBus = bus
}

func (s *BaseServiceTestSuite) clearStores() {
	s.stores.CustomerRepo.(*InMemoryCustomerStore).Clear()
	s.stores.PlanRepo.(*InMemoryPlanStore).Clear()
	s.stores.PriceRepo.(*InMemoryPriceStore).Clear()
	s.stores.SubscriptionRepo.(*InMemorySubscriptionStore).Clear()
	s.stores.PaymentRepo.(*InMemoryPaymentStore).Clear()
	s.stores.PaymentMethodRepo.(*InMemoryPaymentMethodStore).Clear()
	s.stores.InvoiceRepo.(*InMemoryInvoiceStore).Clear()
	s.stores.PromoCodeRepo.(*InMemoryPromoCodeStore).Clear()
	s.stores.DiscountRepo.(*InMemoryDiscountStore).Clear()
	s.stores.EntitlementRepo.(*InMemoryEntitlementStore).Clear()
	s.stores.LimitRepo.(*InMemoryLimitStore).Clear()
	s.stores.UsageRepo.(*InMemoryUsageStore).Clear()
	s.stores.VendorRepo.(*InMemoryVendorStore).Clear()
	s.stores.AddOnRepo.(*InMemoryAddOnStore).Clear()
	s.stores.JobRepo.(*InMemoryJobStore).Clear()
	s.stores.WebhookEventRepo.(*InMemoryWebhookEventStore).Clear()
	s.stores.AuditLogRepo.(*InMemoryAuditLogStore).Clear()
}

func (s *BaseServiceTestSuite) ClearStores() {
	s.clearStores()
}

// GetContext returns the test context
func (s *BaseServiceTestSuite) GetContext() context.Context {
	return s.ctx
}

// GetConfig returns the test configuration
func (s *BaseServiceTestSuite) GetConfig() *config.Configuration {
	return s.config
}

// GetStores returns all test repositories
func (s *BaseServiceTestSuite) GetStores() Stores {
	return s.stores
}

// GetEventBus returns the test lifecycle event bus
func (s *BaseServiceTestSuite) GetEventBus() *publisher.EventBus {
	return s.eventBus
}

// GetMockProvider returns the deterministic test provider
func (s *BaseServiceTestSuite) GetMockProvider() *provider.MockProvider {
	return s.mockProv
}

// GetProviderRegistry returns the provider registry with the mock registered
func (s *BaseServiceTestSuite) GetProviderRegistry() *provider.Registry {
	return s.registry
}

// GetClock returns the controllable test clock
func (s *BaseServiceTestSuite) GetClock() *MockClock {
	return s.clock
}

// GetLogger returns the test logger
func (s *BaseServiceTestSuite) GetLogger() *logger.Logger {
	return s.logger
}

// GetNow returns the current test time
func (s *BaseServiceTestSuite) GetNow() time.Time {
	return s.now.UTC()
}

// GetUUID returns a new UUID string
func (s *BaseServiceTestSuite) GetUUID() string {
	return types.GenerateUUID()
}
