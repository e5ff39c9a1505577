package handlers

import (
	"io"
	"net/http"

	"teetime/internal/logger"
	"teetime/internal/models"
	"teetime/internal/service"

	"github.com/gin-gonic/gin"
)

const maxWebhookBody = 1 << 20

// Payments handlers

// PaymentWebhook - POST /api/payments/webhooks/:provider
// Принимать уведомления от платежного провайдера. Повторы отвечают 200
func (h *Handlers) PaymentWebhook(c *gin.Context) {
	provider := c.Param("provider")
	log := logger.WithContext(c.Request.Context()).With("provider", provider)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: "invalid_webhook", Error: "Failed to read body"})
		return
	}

	event, err := h.webhooks.Decode(provider, c.Request.Header, body)
	if err != nil {
		switch {
		case isUnknownProvider(err):
			c.AbortWithStatusJSON(http.StatusNotFound, models.ErrorResponse{Code: "unknown_provider", Error: err.Error()})
		case service.IsWebhookRejection(err):
			log.Warn("Rejected payment webhook", "error", err)
			c.AbortWithStatusJSON(http.StatusBadRequest, models.ErrorResponse{Code: "invalid_webhook", Error: err.Error()})
		default:
			respondError(c, err)
		}
		return
	}

	applied, err := h.services.Bookings.ApplyPaymentEvent(c.Request.Context(), event)
	if err != nil {
		respondError(c, err)
		return
	}

	log.Info("Payment webhook handled", "event_id", event.ID, "event_type", event.Type, "applied", applied)
	c.JSON(http.StatusOK, gin.H{"event_id": event.ID, "applied": applied})
}
