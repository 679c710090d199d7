package middleware

import (
	"time"

	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"

	"github.com/qazuor/qzpay-sub003/internal/config"
)

// SentryMiddleware captures errors and performance data when a DSN is
// configured; otherwise it is a pass-through.
func SentryMiddleware(cfg *config.Configuration) gin.HandlerFunc {
	if cfg.Sentry.DSN == "" {
		return func(c *gin.Context) {
			c.Next()
		}
	}

	return sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         2 * time.Second,
	})
}
