package api

import (
	"github.com/gin-gonic/gin"

	v1 "github.com/qazuor/qzpay-sub003/internal/api/v1"
	"github.com/qazuor/qzpay-sub003/internal/config"
	"github.com/qazuor/qzpay-sub003/internal/rest/middleware"
)

type Handlers struct {
	Webhook   *v1.WebhookHandler
	Health    *v1.HealthHandler
	Lifecycle *v1.LifecycleHandler
}

func NewRouter(cfg *config.Configuration, handlers Handlers) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware,
		middleware.CORSMiddleware,
		middleware.SentryMiddleware(cfg),
		middleware.ErrorHandler(),
	)

	router.GET("/health", handlers.Health.Check)
	router.POST("/webhooks/:provider", handlers.Webhook.Receive)

	cron := router.Group("/cron")
	{
		cron.POST("/lifecycle", handlers.Lifecycle.Run)
	}

	return router
}
