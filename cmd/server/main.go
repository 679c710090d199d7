package main

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/fx"

	"github.com/qazuor/qzpay-sub003/internal/api"
	v1 "github.com/qazuor/qzpay-sub003/internal/api/v1"
	"github.com/qazuor/qzpay-sub003/internal/config"
	"github.com/qazuor/qzpay-sub003/internal/cron"
	"github.com/qazuor/qzpay-sub003/internal/logger"
	"github.com/qazuor/qzpay-sub003/internal/provider"
	"github.com/qazuor/qzpay-sub003/internal/publisher"
	pubsubmemory "github.com/qazuor/qzpay-sub003/internal/pubsub/memory"
	"github.com/qazuor/qzpay-sub003/internal/repository"
	"github.com/qazuor/qzpay-sub003/internal/sentry"
	"github.com/qazuor/qzpay-sub003/internal/service"
	"github.com/qazuor/qzpay-sub003/internal/types"
	"github.com/qazuor/qzpay-sub003/internal/webhook"
)

func init() {
	// all billing timestamps are UTC
	time.Local = time.UTC
}

func main() {
	// .env is optional; real deployments configure through the environment
	_ = godotenv.Load()

	var opts []fx.Option

	opts = append(opts,
		fx.Provide(
			config.NewConfig,
			provideLogger,
			types.NewRealClock,
			pubsubmemory.NewPubSub,
			publisher.NewEventBus,
			provideRegistry,
			repository.New,
			provideBilling,
			webhook.NewDispatcher,
			provideWebhookService,
			provideHandlers,
			provideRouter,
			provideCronRunner,
		),
		sentry.Module(),
		fx.Invoke(startServer),
	)

	app := fx.New(opts...)
	app.Run()
}

func provideLogger(cfg *config.Configuration) (*logger.Logger, error) {
	return logger.NewLogger(cfg.Logging)
}

// provideRegistry registers every payment provider the configuration
// carries credentials for. The mock provider is always present in test
// mode so the engine works without any external account.
func provideRegistry(cfg *config.Configuration, log *logger.Logger) *provider.Registry {
	registry := provider.NewRegistry()

	if cfg.Providers.Stripe.APIKey != "" {
		registry.Register(provider.NewStripeProvider(cfg.Providers.Stripe.APIKey, log))
	}
	if cfg.Providers.MercadoPago.AccessToken != "" {
		registry.Register(
			provider.NewMercadoPagoProvider(cfg.Providers.MercadoPago.AccessToken, log).
				WithBaseURL(cfg.Providers.MercadoPago.BaseURL),
		)
	}
	if !cfg.Billing.Livemode {
		registry.Register(provider.NewMockProvider())
	}

	if len(registry.Kinds()) == 0 {
		log.Warn("no payment providers configured")
	}
	return registry
}

func provideBilling(
	cfg *config.Configuration,
	log *logger.Logger,
	clock types.Clock,
	eventBus *publisher.EventBus,
	registry *provider.Registry,
	repos *repository.Repositories,
) *service.Billing {
	return service.NewBilling(service.ServiceParams{
		Config:   cfg,
		Logger:   log,
		Clock:    clock,
		EventBus: eventBus,
		Registry: registry,

		CustomerRepo:      repos.Customer,
		PlanRepo:          repos.Plan,
		PriceRepo:         repos.Price,
		SubscriptionRepo:  repos.Subscription,
		PaymentRepo:       repos.Payment,
		PaymentMethodRepo: repos.PaymentMethod,
		InvoiceRepo:       repos.Invoice,
		PromoCodeRepo:     repos.PromoCode,
		DiscountRepo:      repos.Discount,
		EntitlementRepo:   repos.Entitlement,
		LimitRepo:         repos.Limit,
		UsageRepo:         repos.Usage,
		VendorRepo:        repos.Vendor,
		AddOnRepo:         repos.AddOn,
		JobRepo:           repos.Job,
		AuditLogRepo:      repos.AuditLog,
	})
}

func provideWebhookService(
	cfg *config.Configuration,
	dispatcher *webhook.Dispatcher,
	repos *repository.Repositories,
	clock types.Clock,
	log *logger.Logger,
) *webhook.Service {
	return webhook.NewService(cfg, dispatcher, repos.WebhookEvent, clock, log)
}

func provideHandlers(
	billing *service.Billing,
	webhookService *webhook.Service,
	log *logger.Logger,
) api.Handlers {
	return api.Handlers{
		Webhook:   v1.NewWebhookHandler(webhookService, log),
		Health:    v1.NewHealthHandler(billing.Health),
		Lifecycle: v1.NewLifecycleHandler(billing.Lifecycle, log),
	}
}

func provideRouter(cfg *config.Configuration, handlers api.Handlers) *gin.Engine {
	return api.NewRouter(cfg, handlers)
}

func provideCronRunner(billing *service.Billing, clock types.Clock, log *logger.Logger) *cron.Runner {
	return cron.NewRunner(billing, clock, log)
}

func startServer(
	lc fx.Lifecycle,
	cfg *config.Configuration,
	router *gin.Engine,
	runner *cron.Runner,
	billing *service.Billing,
	log *logger.Logger,
) {
	srv := &http.Server{
		Addr:              cfg.Server.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := runner.Start(); err != nil {
				return err
			}
			go func() {
				log.Infow("starting server", "address", cfg.Server.Address)
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatalw("server failed", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			runner.Stop()
			if err := billing.Close(); err != nil {
				log.Errorw("failed to close billing engine", "error", err)
			}
			return srv.Shutdown(ctx)
		},
	})
}
