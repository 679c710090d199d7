package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/qazuor/qzpay-sub003/internal/service"
)

// HealthHandler exposes the aggregated component probes
type HealthHandler struct {
	health *service.HealthService
}

func NewHealthHandler(health *service.HealthService) *HealthHandler {
	return &HealthHandler{health: health}
}

// Check runs all probes. An unhealthy report still returns the body, with
// 503 so load balancers take the instance out of rotation.
func (h *HealthHandler) Check(c *gin.Context) {
	report := h.health.Check(c.Request.Context())

	status := http.StatusOK
	if report.Status == service.HealthStatusUnhealthy {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, report)
}
