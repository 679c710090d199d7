package v1

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	ierr "github.com/qazuor/qzpay-sub003/internal/errors"
	"github.com/qazuor/qzpay-sub003/internal/logger"
	"github.com/qazuor/qzpay-sub003/internal/types"
	"github.com/qazuor/qzpay-sub003/internal/webhook"
)

const signatureHeader = "X-Webhook-Signature"

// WebhookHandler receives provider webhook deliveries
type WebhookHandler struct {
	service *webhook.Service
	log     *logger.Logger
}

func NewWebhookHandler(service *webhook.Service, log *logger.Logger) *WebhookHandler {
	return &WebhookHandler{service: service, log: log}
}

// Receive ingests one delivery. Verification failures are the caller's
// fault and return 400; accepted events return 200 even when no handler is
// registered, so providers do not retry event types we ignore.
func (h *WebhookHandler) Receive(c *gin.Context) {
	provider := types.ProviderKind(c.Param("provider"))

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Failed to read request body").
			Mark(ierr.ErrMalformedWebhook))
		return
	}

	event, err := h.service.Ingest(c.Request.Context(), provider, payload, c.GetHeader(signatureHeader))
	if err != nil {
		h.log.Warnw("webhook rejected", "provider", provider, "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"received": true,
		"event_id": event.ID,
	})
}
