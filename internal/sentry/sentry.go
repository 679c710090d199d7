package sentry

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/fx"

	"github.com/qazuor/qzpay-sub003/internal/config"
	"github.com/qazuor/qzpay-sub003/internal/logger"
)

// Service wraps the Sentry SDK. Without a DSN every call is a no-op, so
// callers never branch on whether monitoring is configured.
type Service struct {
	cfg    *config.Configuration
	logger *logger.Logger
}

// Module provides fx options for Sentry
func Module() fx.Option {
	return fx.Options(
		fx.Provide(NewService),
		fx.Invoke(RegisterHooks),
	)
}

func NewService(cfg *config.Configuration, log *logger.Logger) *Service {
	return &Service{cfg: cfg, logger: log}
}

func (s *Service) enabled() bool {
	return s.cfg.Sentry.DSN != ""
}

// RegisterHooks initializes Sentry on start and flushes on shutdown
func RegisterHooks(lc fx.Lifecycle, svc *Service) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if !svc.enabled() {
				svc.logger.Info("sentry is disabled")
				return nil
			}

			err := sentry.Init(sentry.ClientOptions{
				Dsn:              svc.cfg.Sentry.DSN,
				Environment:      svc.cfg.Sentry.Environment,
				EnableTracing:    true,
				TracesSampleRate: svc.cfg.Sentry.TracesSampleRate,
				TracesSampler: sentry.TracesSampler(func(ctx sentry.SamplingContext) float64 {
					// health probes would dominate the trace volume
					if ctx.Span.Name == "GET /health" {
						return 0.0
					}
					return svc.cfg.Sentry.TracesSampleRate
				}),
			})
			if err != nil {
				svc.logger.Errorw("failed to initialize sentry", "error", err)
				return err
			}
			svc.logger.Infow("sentry initialized", "environment", svc.cfg.Sentry.Environment)
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if svc.enabled() {
				sentry.Flush(2 * time.Second)
			}
			return nil
		},
	})
}

// CaptureException reports an error
func (s *Service) CaptureException(err error) {
	if !s.enabled() {
		return
	}
	sentry.CaptureException(err)
}

// AddBreadcrumb records a trail event on the current scope
func (s *Service) AddBreadcrumb(category, message string, data map[string]interface{}) {
	if !s.enabled() {
		return
	}
	sentry.AddBreadcrumb(&sentry.Breadcrumb{
		Category: category,
		Message:  message,
		Level:    sentry.LevelInfo,
		Data:     data,
	})
}

// Flush waits for queued events to be delivered
func (s *Service) Flush(timeout time.Duration) bool {
	if !s.enabled() {
		return true
	}
	return sentry.Flush(timeout)
}
