// internal/handlers/webhook.go
package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/tarksober/license-backend/internal/services"
)

// maxWebhookBody caps what is read from a gateway notification.
const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	webhookService *services.WebhookService
}

func NewWebhookHandler(webhookService *services.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
	}
}

// POST|GET /v1/payment-webhook
// The gateway retries anything but a 200, so every delivery is
// acknowledged and the outcome stays server-side.
func (h *WebhookHandler) HandleNotification(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		logrus.WithError(err).Warn("Failed to read webhook body")
		body = nil
	}

	h.webhookService.Process(c.Request.Context(), services.WebhookDelivery{
		ContentType: c.GetHeader("Content-Type"),
		Body:        body,
		Query:       c.Request.URL.Query(),
	})

	c.String(http.StatusOK, "OK")
}
