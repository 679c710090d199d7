package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qazuor/qzpay-sub003/internal/logger"
	"github.com/qazuor/qzpay-sub003/internal/service"
)

// LifecycleHandler lets hosts trigger the billing engine's periodic run
// over HTTP, e.g. from an external scheduler.
type LifecycleHandler struct {
	lifecycle *service.LifecycleService
	log       *logger.Logger
}

func NewLifecycleHandler(lifecycle *service.LifecycleService, log *logger.Logger) *LifecycleHandler {
	return &LifecycleHandler{lifecycle: lifecycle, log: log}
}

// Run executes renewals, trial conversions, retries and cancellations
func (h *LifecycleHandler) Run(c *gin.Context) {
	result, err := h.lifecycle.Run(c.Request.Context())
	if err != nil {
		h.log.Errorw("lifecycle run failed", "error", err)
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}
